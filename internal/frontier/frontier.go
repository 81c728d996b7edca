package frontier

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/rs/zerolog"

	"github.com/vajraaang/spacetime-crawler/internal/admission"
	"github.com/vajraaang/spacetime-crawler/internal/canonical"
)

const (
	// bloomEstimatedItems sizes the pre-filter for a single crawl's worth
	// of discovered URLs; false positives only cost an extra hash lookup
	// against the authoritative seen set, never correctness.
	bloomEstimatedItems = 2_000_000
	bloomFalsePositive  = 0.01
)

// Frontier is the single source of truth for which URLs have been
// discovered, which are pending, and which host is allowed to be
// fetched next. Safe for concurrent use.
type Frontier struct {
	mu sync.Mutex
	cv *sync.Cond

	log       zerolog.Logger
	store     *store
	timeDelay time.Duration

	bloom *bloom.BloomFilter
	seen  map[string]struct{}

	pending []string

	hostNextAllowed map[string]time.Time

	inProgress int
	closed     bool
}

// Options configures a new Frontier.
type Options struct {
	SavePath  string
	Restart   bool
	SeedURLs  []string
	TimeDelay time.Duration
	Log       zerolog.Logger
}

// New opens (or creates) the persistent store at opts.SavePath and
// rehydrates in-memory state from it, seeding from opts.SeedURLs when
// restarting or when the store was empty.
func New(opts Options) (*Frontier, error) {
	st, err := openStore(opts.SavePath, opts.Restart)
	if err != nil {
		return nil, err
	}

	f := &Frontier{
		log:             opts.Log,
		store:           st,
		timeDelay:       opts.TimeDelay,
		bloom:           bloom.NewWithEstimates(bloomEstimatedItems, bloomFalsePositive),
		seen:            make(map[string]struct{}),
		hostNextAllowed: make(map[string]time.Time),
	}
	f.cv = sync.NewCond(&f.mu)

	if opts.Restart {
		for _, u := range opts.SeedURLs {
			f.addURLLocked(u)
		}
		return f, nil
	}

	rows, err := st.loadAll()
	if err != nil {
		st.close()
		return nil, err
	}
	tbd, total := 0, 0
	for _, r := range rows {
		total++
		f.seen[r.URLHash] = struct{}{}
		f.bloom.AddString(r.URLHash)
		if !r.Completed && admission.IsValid(r.URL) {
			f.pending = append(f.pending, r.URL)
			tbd++
		}
	}
	f.log.Info().Int("to_be_downloaded", tbd).Int("total", total).Msg("frontier rehydrated from save file")

	if len(f.seen) == 0 {
		for _, u := range opts.SeedURLs {
			f.addURLLocked(u)
		}
	}

	return f, nil
}

// Close releases the underlying persistent store.
func (f *Frontier) Close() error {
	return f.store.close()
}

// AddURL canonicalizes and enqueues url if it has not been seen before.
func (f *Frontier) AddURL(rawURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addURLLocked(rawURL)
}

func (f *Frontier) addURLLocked(rawURL string) {
	if f.closed {
		return
	}
	key, err := canonical.Canonicalize(rawURL)
	if err != nil {
		return
	}
	hash, err := canonical.HashHex(key)
	if err != nil {
		return
	}

	if f.bloom.TestString(hash) {
		if _, ok := f.seen[hash]; ok {
			return
		}
	}

	f.seen[hash] = struct{}{}
	f.bloom.AddString(hash)
	if err := f.store.insertIfAbsent(hash, key); err != nil {
		f.log.Error().Err(err).Str("url", key).Msg("failed to persist discovered url")
	}
	f.pending = append(f.pending, key)
	f.cv.Signal()
}

// GetTBDURL blocks until a URL is available to crawl or the frontier
// has drained, in which case ok is false. Respects ctx cancellation.
func (f *Frontier) GetTBDURL(ctx context.Context) (string, bool) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			f.mu.Lock()
			f.cv.Broadcast()
			f.mu.Unlock()
		case <-done:
		}
	}()

	f.mu.Lock()
	defer f.mu.Unlock()

	for !f.closed && len(f.pending) == 0 {
		if ctx.Err() != nil {
			return "", false
		}
		if f.inProgress == 0 {
			f.closed = true
			f.cv.Broadcast()
			return "", false
		}
		f.cv.Wait()
	}

	if f.closed || ctx.Err() != nil {
		return "", false
	}

	n := len(f.pending) - 1
	url := f.pending[n]
	f.pending = f.pending[:n]
	f.inProgress++
	return url, true
}

// WaitForPoliteness blocks until url's host may be fetched per the
// configured per-host delay, or ctx is cancelled.
func (f *Frontier) WaitForPoliteness(ctx context.Context, rawURL string) {
	host := canonical.Host(rawURL)
	if host == "" {
		return
	}

	for {
		f.mu.Lock()
		now := time.Now()
		allowedAt := f.hostNextAllowed[host]
		if !now.Before(allowedAt) {
			f.hostNextAllowed[host] = now.Add(f.timeDelay)
			f.mu.Unlock()
			return
		}
		wait := allowedAt.Sub(now)
		f.mu.Unlock()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

// MarkURLComplete records url as fetched and, if no more work remains
// anywhere, closes the frontier.
func (f *Frontier) MarkURLComplete(rawURL string) {
	key, err := canonical.Canonicalize(rawURL)
	if err != nil {
		key = rawURL
	}
	hash, err := canonical.HashHex(key)
	if err != nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[hash]; !ok {
		f.log.Error().Str("url", key).Msg("completed url was never seen")
	} else if err := f.store.markCompleted(hash); err != nil {
		f.log.Error().Err(err).Str("url", key).Msg("failed to persist completion")
	}

	if f.inProgress > 0 {
		f.inProgress--
	}

	if f.inProgress == 0 && len(f.pending) == 0 {
		f.closed = true
	}
	f.cv.Broadcast()
}
