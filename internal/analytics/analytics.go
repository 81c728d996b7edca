// Package analytics accumulates the crawl metrics the final report is
// built from: unique pages, subdomain counts, word frequencies, the
// longest page, and exact/near-duplicate counts. State is checkpointed
// to disk periodically so a restart can resume instead of recount.
package analytics

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vajraaang/spacetime-crawler/internal/canonical"
)

var wordRe = regexp.MustCompile(`[a-zA-Z]{2,}(?:['’][a-zA-Z]+)*`)

// LongestPage records the page with the most tokenized words seen so far.
type LongestPage struct {
	URL   string
	Words int
}

// state is the gob-serializable snapshot of everything Analytics tracks:
// an opaque, same-process-family checkpoint rather than a cross-language
// wire format.
type state struct {
	UniqueURLHashes map[[32]byte]struct{}
	SubdomainCounts map[string]int
	WordFrequencies map[string]int
	LongestPage     LongestPage
	ExactDigests    map[[32]byte]struct{}
	SimhashBuckets  map[int]map[uint64]struct{}
	DuplicateExact  int
	DuplicateNear   int
	SkippedLowInfo  int
}

func newState() *state {
	return &state{
		UniqueURLHashes: make(map[[32]byte]struct{}),
		SubdomainCounts: make(map[string]int),
		WordFrequencies: make(map[string]int),
		ExactDigests:    make(map[[32]byte]struct{}),
		SimhashBuckets:  make(map[int]map[uint64]struct{}),
	}
}

// Analytics is safe for concurrent use by multiple scraper workers.
type Analytics struct {
	mu sync.Mutex

	outDir        string
	statePath     string
	summaryPath   string
	saveEveryPage int
	saveEvery     time.Duration

	stopwords map[string]struct{}

	state *state

	dirtyPages int
	lastSaveAt time.Time

	log zerolog.Logger
}

// Option configures New.
type Option func(*Analytics)

// WithSaveEvery overrides the default checkpoint-every-N-pages threshold.
func WithSaveEvery(pages int, interval time.Duration) Option {
	return func(a *Analytics) {
		a.saveEveryPage = pages
		a.saveEvery = interval
	}
}

// New creates an Analytics instance rooted at outDir and loads any
// existing checkpoint found there.
func New(outDir string, log zerolog.Logger, opts ...Option) *Analytics {
	a := &Analytics{
		outDir:        outDir,
		statePath:     filepath.Join(outDir, "state.pkl"),
		summaryPath:   filepath.Join(outDir, "summary.json"),
		saveEveryPage: 250,
		saveEvery:     60 * time.Second,
		stopwords:     defaultStopwords(),
		state:         newState(),
		lastSaveAt:    time.Now(),
		log:           log,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.loadStopwordsFile()
	a.loadIfPresent()
	return a
}

// Tokenize splits text into lowercase word tokens with stopwords removed.
func (a *Analytics) Tokenize(text string) []string {
	raw := wordRe.FindAllString(text, -1)
	words := make([]string, 0, len(raw))
	for _, w := range raw {
		w = strings.ToLower(strings.ReplaceAll(w, "’", "'"))
		if _, stop := a.stopwords[w]; stop {
			continue
		}
		words = append(words, w)
	}
	return words
}

func defragURL(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i]
	}
	return raw
}

func urlKeyHash(urlKey string) [32]byte {
	return sha256.Sum256([]byte(urlKey))
}

// RecordURL registers url as fetched, counting it toward unique pages
// and, for *.uci.edu hosts, the subdomain tally. It reports whether the
// URL had not already been recorded.
func (a *Analytics) RecordURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	urlKey := defragURL(rawURL)
	if canon, err := canonical.Canonicalize(rawURL); err == nil {
		urlKey = canon
	}
	h := urlKeyHash(urlKey)

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.state.UniqueURLHashes[h]; ok {
		return false
	}
	a.state.UniqueURLHashes[h] = struct{}{}

	host := hostOf(urlKey)
	if strings.HasSuffix(host, ".uci.edu") {
		a.state.SubdomainCounts[host]++
	}

	a.dirtyPages++
	a.maybeSaveLocked()
	return true
}

// RecordWords folds a page's tokenized words into the frequency table
// and tracks the longest page seen.
func (a *Analytics) RecordWords(rawURL string, words []string) {
	if rawURL == "" || len(words) == 0 {
		return
	}
	urlKey := defragURL(rawURL)

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(words) > a.state.LongestPage.Words {
		a.state.LongestPage = LongestPage{URL: urlKey, Words: len(words)}
	}
	for _, w := range words {
		a.state.WordFrequencies[w]++
	}
	a.dirtyPages++
	a.maybeSaveLocked()
}

// UniquePages returns the number of distinct canonical URLs recorded.
func (a *Analytics) UniquePages() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.state.UniqueURLHashes)
}

type wordCount struct {
	Word  string
	Count int
}

// TopWords returns the n most frequent non-stopword tokens, most
// frequent first, ties broken lexicographically by word.
func (a *Analytics) TopWords(n int) []wordCount {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.topWordsLocked(n)
}

func (a *Analytics) topWordsLocked(n int) []wordCount {
	items := make([]wordCount, 0, len(a.state.WordFrequencies))
	for w, c := range a.state.WordFrequencies {
		if _, stop := a.stopwords[w]; stop {
			continue
		}
		items = append(items, wordCount{Word: w, Count: c})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Word < items[j].Word
	})
	if n >= 0 && len(items) > n {
		items = items[:n]
	}
	return items
}

// MarkLowInfoSkipped records that a page was skipped as too low in
// textual content to be worth analyzing.
func (a *Analytics) MarkLowInfoSkipped() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.SkippedLowInfo++
	a.dirtyPages++
	a.maybeSaveLocked()
}

// simhash computes a 64-bit Charikar fingerprint over features: one
// truncated SHA-256 digest per feature, summed bit-by-bit with +1/-1
// weights, then thresholded at zero.
func simhash(features []string) uint64 {
	if len(features) == 0 {
		return 0
	}
	var acc [64]int
	for _, f := range features {
		sum := sha256.Sum256([]byte(f))
		h := uint64(0)
		for i := 0; i < 8; i++ {
			h = (h << 8) | uint64(sum[i])
		}
		for i := 0; i < 64; i++ {
			if (h>>uint(i))&1 == 1 {
				acc[i]++
			} else {
				acc[i]--
			}
		}
	}
	var out uint64
	for i, v := range acc {
		if v >= 0 {
			out |= 1 << uint(i)
		}
	}
	return out
}

func shingles(words []string, k int) []string {
	if k <= 1 || len(words) < k {
		return words
	}
	out := make([]string, 0, len(words)-k+1)
	for i := 0; i+k <= len(words); i++ {
		out = append(out, strings.Join(words[i:i+k], " "))
	}
	return out
}

func bucketKeys(sim uint64) [4]int {
	var keys [4]int
	for i := 0; i < 4; i++ {
		band := int((sim >> uint(i*16)) & 0xFFFF)
		keys[i] = (i << 16) | band
	}
	return keys
}

// IsDuplicateText reports whether words matches a previously accepted
// page either exactly (digest match) or nearly (SimHash Hamming
// distance <= nearThresholdBits among LSH band candidates; the scraper
// passes 3). As a side
// effect, a non-duplicate page is registered so later pages can be
// compared against it.
func (a *Analytics) IsDuplicateText(words []string, nearThresholdBits int) bool {
	if len(words) == 0 {
		return false
	}

	digest := sha256.Sum256([]byte(strings.Join(words, " ")))
	sim := simhash(shingles(words, 3))
	keys := bucketKeys(sim)

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.state.ExactDigests[digest]; ok {
		a.state.DuplicateExact++
		return true
	}

	candidates := make(map[uint64]struct{})
	for _, k := range keys {
		if bucket, ok := a.state.SimhashBuckets[k]; ok {
			for c := range bucket {
				candidates[c] = struct{}{}
			}
		}
	}
	for cand := range candidates {
		if bits.OnesCount64(sim^cand) <= nearThresholdBits {
			a.state.DuplicateNear++
			return true
		}
	}

	a.state.ExactDigests[digest] = struct{}{}
	for _, k := range keys {
		if a.state.SimhashBuckets[k] == nil {
			a.state.SimhashBuckets[k] = make(map[uint64]struct{})
		}
		a.state.SimhashBuckets[k][sim] = struct{}{}
	}

	a.dirtyPages++
	a.maybeSaveLocked()
	return false
}

func (a *Analytics) maybeSaveLocked() {
	now := time.Now()
	if a.dirtyPages >= a.saveEveryPage || now.Sub(a.lastSaveAt) >= a.saveEvery {
		a.saveLocked()
		a.dirtyPages = 0
		a.lastSaveAt = now
	}
}

// Save forces an immediate checkpoint, regardless of the dirty-page or
// time-based triggers. Intended for a clean-shutdown path.
func (a *Analytics) Save() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saveLocked()
}

func (a *Analytics) saveLocked() {
	if err := os.MkdirAll(a.outDir, 0o755); err != nil {
		a.log.Error().Err(err).Msg("failed to create analytics directory")
		return
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a.state); err != nil {
		a.log.Error().Err(err).Msg("failed to encode analytics checkpoint")
		return
	}
	tmpPath := a.statePath + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		a.log.Error().Err(err).Msg("failed to write analytics checkpoint")
		return
	}
	if err := os.Rename(tmpPath, a.statePath); err != nil {
		a.log.Error().Err(err).Msg("failed to install analytics checkpoint")
		return
	}

	summary := a.summaryLocked()
	summaryBytes, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		a.log.Error().Err(err).Msg("failed to encode analytics summary")
		return
	}
	tmpSummaryPath := a.summaryPath + ".tmp"
	if err := os.WriteFile(tmpSummaryPath, summaryBytes, 0o644); err != nil {
		a.log.Error().Err(err).Msg("failed to write analytics summary")
		return
	}
	if err := os.Rename(tmpSummaryPath, a.summaryPath); err != nil {
		a.log.Error().Err(err).Msg("failed to install analytics summary")
	}
}

// Summary is the JSON-serializable snapshot consumed by the report
// command.
type Summary struct {
	UniquePages int         `json:"unique_pages"`
	LongestPage LongestPage `json:"longest_page"`
	TopWords    []wordCount `json:"top_words"`
	Subdomains  map[string]int `json:"subdomains"`
	Duplicates  struct {
		Exact   int `json:"exact"`
		Near    int `json:"near"`
		LowInfo int `json:"lowinfo"`
	} `json:"duplicates"`
}

func (a *Analytics) summaryLocked() Summary {
	s := Summary{
		UniquePages: len(a.state.UniqueURLHashes),
		LongestPage: a.state.LongestPage,
		TopWords:    a.topWordsLocked(50),
		Subdomains:  make(map[string]int, len(a.state.SubdomainCounts)),
	}
	for host, count := range a.state.SubdomainCounts {
		s.Subdomains[host] = count
	}
	s.Duplicates.Exact = a.state.DuplicateExact
	s.Duplicates.Near = a.state.DuplicateNear
	s.Duplicates.LowInfo = a.state.SkippedLowInfo
	return s
}

// Summary returns the current in-memory summary without writing it to disk.
func (a *Analytics) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summaryLocked()
}

func (a *Analytics) loadIfPresent() {
	data, err := os.ReadFile(a.statePath)
	if err != nil {
		return
	}
	loaded := newState()
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(loaded); err != nil {
		a.log.Warn().Err(err).Msg("analytics checkpoint corrupt, starting fresh")
		return
	}
	a.state = loaded
}

// LoadSummary reads the analytics checkpoint at the given path (the full
// path, including its file name, not just the containing directory) and
// returns the resulting summary. Unlike New, which treats a missing
// checkpoint as the start of a fresh crawl, LoadSummary reports a missing
// or corrupt checkpoint as an error, since the caller has nothing else to
// fall back to.
func LoadSummary(statePath string) (Summary, error) {
	data, err := os.ReadFile(statePath)
	if err != nil {
		return Summary{}, fmt.Errorf("reading analytics checkpoint: %w", err)
	}
	loaded := newState()
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(loaded); err != nil {
		return Summary{}, fmt.Errorf("decoding analytics checkpoint: %w", err)
	}
	a := &Analytics{state: loaded, stopwords: defaultStopwords()}
	a.loadStopwordsFile()
	return a.summaryLocked(), nil
}

func hostOf(rawURL string) string {
	// Minimal host extraction from a URL key: the canonical form, or the
	// fragment-stripped raw URL when it could not be canonicalized.
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest = rest[i+1:]
	}
	if strings.HasPrefix(rest, "[") {
		if i := strings.Index(rest, "]"); i >= 0 {
			return strings.ToLower(rest[1:i])
		}
	}
	if i := strings.LastIndex(rest, ":"); i >= 0 {
		rest = rest[:i]
	}
	return strings.ToLower(rest)
}
