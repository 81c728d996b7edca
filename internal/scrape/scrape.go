// Package scrape is the pipeline glue between a fetched page and the
// frontier: HTML extraction, analytics recording, low-information
// heuristics, duplicate detection, and admission filtering of the
// discovered outlinks.
package scrape

import (
	"github.com/vajraaang/spacetime-crawler/internal/admission"
	"github.com/vajraaang/spacetime-crawler/internal/analytics"
	"github.com/vajraaang/spacetime-crawler/internal/cacheclient"
	"github.com/vajraaang/spacetime-crawler/internal/htmlx"
)

const (
	nearDuplicateThresholdBits = 3
	minWordsToRecord           = 50

	maxOutlinks                 = 1000
	minWords                    = 10
	linkHeavyOutlinkThreshold   = 200
	linkHeavyWordsPerLinkCutoff = 0.05
)

// Scraper wires the HTML extractor, analytics engine, and admission
// filter into the single-page processing step the worker pool calls.
type Scraper struct {
	analytics *analytics.Analytics
}

// New creates a Scraper backed by the given Analytics engine.
func New(a *analytics.Analytics) *Scraper {
	return &Scraper{analytics: a}
}

// Scrape processes one fetched page and returns the outlinks worth
// enqueueing. A non-200 status, a missing body, or any low-information
// heuristic yields an empty slice.
func (s *Scraper) Scrape(requestedURL string, resp cacheclient.FetchResponse) []string {
	if resp.Status != 200 || resp.Response == nil || len(resp.Response.Content) == 0 {
		return nil
	}

	effectiveURL := resp.Response.URL
	if effectiveURL == "" {
		effectiveURL = requestedURL
	}

	extracted := htmlx.Extract(resp.Response.Content, resp.Response.ContentType(), effectiveURL)

	isNew := s.analytics.RecordURL(effectiveURL)

	words := s.analytics.Tokenize(extracted.Text)
	wordCount := len(words)
	outlinkCount := len(extracted.Links)

	if outlinkCount > maxOutlinks {
		s.analytics.MarkLowInfoSkipped()
		return nil
	}
	if wordCount < minWords {
		s.analytics.MarkLowInfoSkipped()
		return nil
	}
	if outlinkCount > linkHeavyOutlinkThreshold {
		ratio := float64(wordCount) / float64(outlinkCount+1)
		if ratio < linkHeavyWordsPerLinkCutoff {
			s.analytics.MarkLowInfoSkipped()
			return nil
		}
	}

	if isNew && wordCount >= minWordsToRecord {
		if s.analytics.IsDuplicateText(words, nearDuplicateThresholdBits) {
			return nil
		}
		s.analytics.RecordWords(effectiveURL, words)
	}

	links := make([]string, 0, len(extracted.Links))
	for _, link := range extracted.Links {
		if admission.IsValid(link) {
			links = append(links, link)
		}
	}
	return links
}
