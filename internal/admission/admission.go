// Package admission decides whether a discovered URL is worth adding
// to the frontier: in-scope host, sane shape, no obvious crawler trap.
package admission

import (
	"net/url"
	"regexp"
	"strings"
)

// allowedHosts are the host suffixes the crawl is scoped to. A host is
// permitted iff it equals one of these or ends in "."+suffix.
var allowedHosts = []string{
	"ics.uci.edu",
	"cs.uci.edu",
	"informatics.uci.edu",
	"stat.uci.edu",
}

// blacklistedExtRe matches the canonical set of non-HTML resource
// extensions this crawler must never fetch.
var blacklistedExtRe = regexp.MustCompile(`(?i)\.(` + strings.Join([]string{
	"css", "js", "bmp", "gif", "jpe?g", "ico",
	"png", "tiff?", "mid", "mp2", "mp3", "mp4",
	"wav", "avi", "mov", "mpeg", "ram", "m4v", "mkv", "ogg", "ogv", "pdf",
	"ps", "eps", "tex", "ppt", "pptx", "doc", "docx", "xls", "xlsx", "names",
	"data", "dat", "exe", "bz2", "tar", "msi", "bin", "7z", "psd", "dmg", "iso",
	"epub", "dll", "cnf", "tgz", "sha1",
	"thmx", "mso", "arff", "rtf", "jar", "csv",
	"rm", "smil", "wmv", "swf", "wma", "zip", "rar", "gz",
}, "|") + `)$`)

var trapQueryRe = regexp.MustCompile(`replytocom=|session=|sid=|phpsessid=|jsessionid=|utm_`)

// IsValid reports whether rawURL should ever be enqueued. Any parsing
// exception is treated as invalid rather than propagated.
func IsValid(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	// Evaluate against the URL with its fragment stripped, the same way
	// the frontier identifies a page.
	u.Fragment = ""

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	if !hostAllowed(host) {
		return false
	}

	if len(u.String()) > 300 {
		return false
	}
	if len(u.Path) > 200 {
		return false
	}

	segs := pathSegments(u.Path)
	if len(segs) > 25 {
		return false
	}
	segCounts := make(map[string]int, len(segs))
	for _, seg := range segs {
		seg = strings.ToLower(seg)
		segCounts[seg]++
		if segCounts[seg] > 5 {
			return false
		}
	}

	if u.RawQuery != "" {
		if len(u.RawQuery) > 200 {
			return false
		}
		q := strings.ToLower(u.RawQuery)
		if trapQueryRe.MatchString(q) {
			return false
		}

		params, err := url.ParseQuery(u.RawQuery)
		if err != nil {
			return false
		}
		pairCount := 0
		for _, vs := range params {
			pairCount += len(vs)
		}
		if pairCount > 8 {
			return false
		}
		keyCounts := make(map[string]int, len(params))
		for k, vs := range params {
			k = strings.ToLower(k)
			keyCounts[k] += len(vs)
			if keyCounts[k] > 2 {
				return false
			}
			for _, v := range vs {
				if len(v) > 100 {
					return false
				}
			}
		}

		lowerPath := strings.ToLower(u.Path)
		if (strings.Contains(lowerPath, "calendar") || strings.Contains(lowerPath, "event")) && pairCount >= 4 {
			return false
		}
	}

	if blacklistedExtRe.MatchString(strings.ToLower(u.Path)) {
		return false
	}

	return true
}

func hostAllowed(host string) bool {
	for _, d := range allowedHosts {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func pathSegments(path string) []string {
	var segs []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	return segs
}
