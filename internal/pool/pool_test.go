package pool

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vajraaang/spacetime-crawler/internal/analytics"
	"github.com/vajraaang/spacetime-crawler/internal/cacheclient"
	"github.com/vajraaang/spacetime-crawler/internal/frontier"
	"github.com/vajraaang/spacetime-crawler/internal/scrape"
)

// fakeFetcher serves canned HTML pages keyed by URL, simulating a tiny
// closed web graph so the pool's termination behavior can be tested
// without a real cache server.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) cacheclient.FetchResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.pages[url]
	if !ok {
		return cacheclient.FetchResponse{URL: url, Status: 404}
	}
	return cacheclient.FetchResponse{
		URL:    url,
		Status: 200,
		Response: &cacheclient.InnerResponse{
			URL:     url,
			Status:  200,
			Content: []byte(body),
			Headers: map[string]string{"Content-Type": "text/html"},
		},
	}
}

func TestPoolDrainsSmallGraphAndTerminates(t *testing.T) {
	longText := "lorem ipsum dolor sit amet consectetur adipiscing elit sed do eiusmod tempor incididunt ut labore et dolore magna aliqua "
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://ics.uci.edu/a": `<html><body><a href="/b">b</a><p>` + longText + `</p></body></html>`,
		"https://ics.uci.edu/b": `<html><body><a href="/a">a</a><p>` + longText + `more unique words here to avoid duplicate detection across pages entirely` + `</p></body></html>`,
	}}

	path := filepath.Join(t.TempDir(), "frontier.db")
	f, err := frontier.New(frontier.Options{
		SavePath:  path,
		Restart:   true,
		SeedURLs:  []string{"https://ics.uci.edu/a"},
		TimeDelay: 0,
		Log:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	a := analytics.New(t.TempDir(), zerolog.Nop())
	scraper := scrape.New(a)
	p := New(f, fetcher, scraper, 2, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("pool did not terminate within the deadline")
	}

	if a.UniquePages() == 0 {
		t.Errorf("expected at least one unique page recorded")
	}
}

func TestPoolSurvivesFetchFailureAndStillTerminates(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}}

	path := filepath.Join(t.TempDir(), "frontier.db")
	f, err := frontier.New(frontier.Options{
		SavePath:  path,
		Restart:   true,
		SeedURLs:  []string{"https://ics.uci.edu/missing"},
		TimeDelay: 0,
		Log:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	a := analytics.New(t.TempDir(), zerolog.Nop())
	scraper := scrape.New(a)
	p := New(f, fetcher, scraper, 1, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("pool did not terminate after a 404 response")
	}
}
