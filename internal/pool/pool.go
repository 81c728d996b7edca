// Package pool runs the fixed-size group of worker goroutines that
// drain the frontier: fetch, scrape, re-enqueue discovered links, mark
// complete.
package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vajraaang/spacetime-crawler/internal/cacheclient"
	"github.com/vajraaang/spacetime-crawler/internal/frontier"
	"github.com/vajraaang/spacetime-crawler/internal/scrape"
)

// Fetcher is the subset of cacheclient.Client the pool depends on,
// kept as an interface so tests can substitute a fake.
type Fetcher interface {
	Fetch(ctx context.Context, url string) cacheclient.FetchResponse
}

// Pool owns N worker goroutines pulling from a shared Frontier.
type Pool struct {
	frontier *frontier.Frontier
	fetcher  Fetcher
	scraper  *scrape.Scraper
	workers  int
	log      zerolog.Logger
}

// New creates a Pool of the given size.
func New(f *frontier.Frontier, fetcher Fetcher, scraper *scrape.Scraper, workers int, log zerolog.Logger) *Pool {
	return &Pool{frontier: f, fetcher: fetcher, scraper: scraper, workers: workers, log: log}
}

// Run starts all workers and blocks until the frontier drains or ctx
// is cancelled.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	workerLog := p.log.With().Int("worker", id).Logger()
	for {
		url, ok := p.frontier.GetTBDURL(ctx)
		if !ok {
			workerLog.Info().Msg("worker exiting: frontier drained")
			return
		}

		p.process(ctx, workerLog, url)
	}
}

func (p *Pool) process(ctx context.Context, log zerolog.Logger, url string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("url", url).Interface("panic", fmt.Sprintf("%v", r)).Msg("worker panic recovered")
		}
		// CRITICAL: every successful GetTBDURL must be paired with
		// exactly one MarkURLComplete, even on fetch/scrape failure or panic.
		p.frontier.MarkURLComplete(url)
	}()

	p.frontier.WaitForPoliteness(ctx, url)

	resp := p.fetcher.Fetch(ctx, url)
	links := p.scraper.Scrape(url, resp)

	for _, link := range links {
		p.frontier.AddURL(link)
	}

	log.Debug().Str("url", url).Int("links", len(links)).Msg("page processed")
}
