package frontier

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestFrontier(t *testing.T, seeds []string) *Frontier {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frontier.db")
	f, err := New(Options{
		SavePath:  path,
		Restart:   true,
		SeedURLs:  seeds,
		TimeDelay: 0,
		Log:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestFrontierSeedsOnRestart(t *testing.T) {
	f := newTestFrontier(t, []string{"https://ics.uci.edu/"})

	ctx := context.Background()
	url, ok := f.GetTBDURL(ctx)
	if !ok || url != "https://ics.uci.edu/" {
		t.Fatalf("GetTBDURL() = (%q, %v), want (https://ics.uci.edu/, true)", url, ok)
	}
}

func TestFrontierAddURLDedupes(t *testing.T) {
	f := newTestFrontier(t, nil)
	f.AddURL("https://ics.uci.edu/page")
	f.AddURL("https://ics.uci.edu/page#fragment-only-differs")

	ctx := context.Background()
	_, ok := f.GetTBDURL(ctx)
	if !ok {
		t.Fatalf("expected one url available")
	}
	f.MarkURLComplete("https://ics.uci.edu/page")

	_, ok = f.GetTBDURL(ctx)
	if ok {
		t.Errorf("expected frontier to be closed after the only url completed, with no duplicate re-added")
	}
}

func TestFrontierClosesWhenDrained(t *testing.T) {
	f := newTestFrontier(t, []string{"https://ics.uci.edu/"})
	ctx := context.Background()

	url, ok := f.GetTBDURL(ctx)
	if !ok {
		t.Fatalf("expected a url")
	}
	f.MarkURLComplete(url)

	_, ok = f.GetTBDURL(ctx)
	if ok {
		t.Errorf("expected frontier to report closed once in_progress and pending are both zero")
	}
}

func TestFrontierBlocksUntilURLAdded(t *testing.T) {
	f := newTestFrontier(t, nil)
	ctx := context.Background()

	// Simulate one worker in flight so the frontier doesn't immediately close.
	f.mu.Lock()
	f.inProgress = 1
	f.mu.Unlock()

	done := make(chan string, 1)
	go func() {
		url, ok := f.GetTBDURL(ctx)
		if ok {
			done <- url
		} else {
			done <- ""
		}
	}()

	time.Sleep(20 * time.Millisecond)
	f.AddURL("https://ics.uci.edu/late")

	select {
	case got := <-done:
		if got != "https://ics.uci.edu/late" {
			t.Errorf("GetTBDURL() = %q, want https://ics.uci.edu/late", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for GetTBDURL to unblock")
	}
}

func TestFrontierGetTBDURLRespectsContextCancellation(t *testing.T) {
	f := newTestFrontier(t, nil)
	f.mu.Lock()
	f.inProgress = 1
	f.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		_, ok := f.GetTBDURL(ctx)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Errorf("GetTBDURL() should report !ok after context cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for GetTBDURL to observe cancellation")
	}
}

func TestWaitForPolitenessDelaysSameHost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frontier.db")
	f, err := New(Options{
		SavePath:  path,
		Restart:   true,
		TimeDelay: 100 * time.Millisecond,
		Log:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	ctx := context.Background()
	start := time.Now()
	f.WaitForPoliteness(ctx, "https://ics.uci.edu/a")
	f.WaitForPoliteness(ctx, "https://ics.uci.edu/b")
	elapsed := time.Since(start)

	if elapsed < 100*time.Millisecond {
		t.Errorf("expected second call to the same host to wait out the politeness delay, elapsed %v", elapsed)
	}
}

func TestFrontierRehydratesFromSaveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frontier.db")

	f1, err := New(Options{SavePath: path, Restart: true, SeedURLs: []string{"https://ics.uci.edu/"}, Log: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	url, ok := f1.GetTBDURL(context.Background())
	if !ok {
		t.Fatal("expected seed url")
	}
	f1.AddURL("https://ics.uci.edu/child")
	f1.MarkURLComplete(url)
	f1.Close()

	f2, err := New(Options{SavePath: path, Restart: false, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New() on reopen error: %v", err)
	}
	defer f2.Close()

	got, ok := f2.GetTBDURL(context.Background())
	if !ok || got != "https://ics.uci.edu/child" {
		t.Errorf("GetTBDURL() after rehydrate = (%q, %v), want (https://ics.uci.edu/child, true)", got, ok)
	}
}
