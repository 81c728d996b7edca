// Package report renders the final crawl summary from an analytics
// checkpoint.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vajraaang/spacetime-crawler/internal/analytics"
)

// Render loads the analytics checkpoint at statePath (the full path,
// including its file name) and returns the report text. An error means
// the checkpoint could not be read or decoded.
func Render(statePath string) (string, error) {
	summary, err := analytics.LoadSummary(statePath)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Unique pages (URL defragmented only): %d\n", summary.UniquePages)
	b.WriteString("\n")
	b.WriteString("Longest page (by word count):\n")
	fmt.Fprintf(&b, "%s, %d\n", summary.LongestPage.URL, summary.LongestPage.Words)
	b.WriteString("\n")
	b.WriteString("Top 50 words (stopwords removed):\n")
	for _, wc := range summary.TopWords {
		fmt.Fprintf(&b, "%s, %d\n", wc.Word, wc.Count)
	}
	b.WriteString("\n")

	hosts := make([]string, 0, len(summary.Subdomains))
	for host := range summary.Subdomains {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	fmt.Fprintf(&b, "Subdomains in uci.edu: %d\n", len(hosts))
	for _, host := range hosts {
		fmt.Fprintf(&b, "%s, %d\n", host, summary.Subdomains[host])
	}

	return b.String(), nil
}
