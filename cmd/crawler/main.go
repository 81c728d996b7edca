// Command crawler runs the spacetime-crawler: a politeness-aware worker
// pool that pulls URLs from a durable frontier, fetches pages through a
// shared cache server, and feeds newly discovered links back in.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vajraaang/spacetime-crawler/internal/analytics"
	"github.com/vajraaang/spacetime-crawler/internal/cacheclient"
	"github.com/vajraaang/spacetime-crawler/internal/config"
	"github.com/vajraaang/spacetime-crawler/internal/frontier"
	"github.com/vajraaang/spacetime-crawler/internal/logging"
	"github.com/vajraaang/spacetime-crawler/internal/pool"
	"github.com/vajraaang/spacetime-crawler/internal/scrape"
)

func main() {
	var configFile string
	var restart bool

	root := &cobra.Command{
		Use:   "crawler",
		Short: "Run the spacetime web crawler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile, restart)
		},
	}
	root.Flags().StringVar(&configFile, "config_file", "config.ini", "path to the crawler's config.ini")
	root.Flags().BoolVar(&restart, "restart", false, "wipe the frontier and analytics state and start from the seed urls")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configFile string, restart bool) error {
	log := logging.New("crawler")

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if restart {
		wipeAnalytics(log)
	}

	client := cacheclient.New(cfg.CacheHost, cfg.CachePort, cfg.UserAgent, logging.New("cache"))

	a := analytics.New("analytics", logging.New("analytics"))
	defer a.Save()

	f, err := frontier.New(frontier.Options{
		SavePath:  cfg.SaveFile,
		Restart:   restart,
		SeedURLs:  cfg.SeedURLs,
		TimeDelay: cfg.TimeDelay,
		Log:       logging.New("frontier"),
	})
	if err != nil {
		return fmt.Errorf("opening frontier: %w", err)
	}
	defer f.Close()

	scraper := scrape.New(a)
	workerPool := pool.New(f, client, scraper, cfg.ThreadsCount, logging.New("worker"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		workerPool.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("crawl complete")
	case sig := <-sigCh:
		log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down gracefully")
		cancel()
		select {
		case <-done:
			log.Info().Msg("shutdown complete")
		case <-time.After(30 * time.Second):
			log.Error().Msg("shutdown timeout exceeded, forcing exit")
			return fmt.Errorf("shutdown timed out")
		}
	}

	return nil
}

func wipeAnalytics(log zerolog.Logger) {
	if err := os.RemoveAll("analytics"); err != nil {
		log.Warn().Err(err).Msg("failed to remove analytics directory, falling back to removing state.pkl only")
		os.Remove("analytics/state.pkl")
	}
}
