// Package htmlx parses a fetched page into the set of outlinks and the
// visible text the analytics engine tokenizes, following <base> the
// way a browser would and skipping non-visible script/style content.
package htmlx

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// MaxBodyBytes is the largest HTML document this package will parse;
// larger bodies are treated as empty pages rather than risk pathological
// parse time on hostile input.
const MaxBodyBytes = 5_000_000

var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
}

var ignoredLinkSchemes = []string{"mailto:", "javascript:", "tel:"}

// Extracted is the result of parsing one page.
type Extracted struct {
	// Links holds absolute, fragment-stripped URLs resolved against the
	// page's effective base, deduplicated in first-seen order.
	Links []string
	// Text is the whitespace-joined visible text of the page.
	Text string
}

// Extract parses body as HTML relative to effectiveURL and returns the
// outlinks and visible text. A non-HTML content type or an oversized
// body yields a zero-value Extracted rather than an error.
func Extract(body []byte, contentType string, effectiveURL string) Extracted {
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "text/html") {
		return Extracted{}
	}
	if len(body) > MaxBodyBytes {
		return Extracted{}
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return Extracted{}
	}

	base, err := url.Parse(stripFragment(effectiveURL))
	if err != nil {
		return Extracted{}
	}
	if baseHref, ok := findBaseHref(doc); ok {
		if resolved, err := base.Parse(stripFragment(baseHref)); err == nil {
			base = resolved
		}
	}

	var textParts []string
	seen := make(map[string]bool)
	var links []string

	var walk func(n *html.Node, skip bool)
	walk = func(n *html.Node, skip bool) {
		switch n.Type {
		case html.ElementNode:
			if skippedTags[n.Data] {
				skip = true
			}
			if n.Data == "a" {
				if href, ok := attr(n, "href"); ok {
					if abs, ok := resolveLink(base, href); ok && !seen[abs] {
						seen[abs] = true
						links = append(links, abs)
					}
				}
			}
		case html.TextNode:
			if !skip {
				if text := strings.TrimSpace(n.Data); text != "" {
					textParts = append(textParts, text)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skip)
		}
	}
	walk(doc, false)

	return Extracted{Links: links, Text: strings.Join(textParts, " ")}
}

func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range ignoredLinkSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	return abs.String(), true
}

func findBaseHref(doc *html.Node) (string, bool) {
	var found string
	var ok bool
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if ok {
			return
		}
		if n.Type == html.ElementNode && n.Data == "base" {
			if href, has := attr(n, "href"); has && strings.TrimSpace(href) != "" {
				found = href
				ok = true
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
			if ok {
				return
			}
		}
	}
	walk(doc)
	return found, ok
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func stripFragment(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i]
	}
	return raw
}
