// Package config loads the crawler's config.ini into a typed Config.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

const (
	defaultUserAgent    = "IR W26 SPACETIME-CRAWLER 00000000,00000000,00000000"
	defaultTimeDelay    = 0.5
	defaultSaveFile     = "frontier.db"
	defaultThreadsCount = 1
	defaultCacheServer  = "styx.ics.uci.edu:9000"
)

// Config holds everything read out of config.ini.
type Config struct {
	UserAgent    string
	SeedURLs     []string
	TimeDelay    time.Duration
	CacheHost    string
	CachePort    string
	SaveFile     string
	ThreadsCount int
}

// Load parses path (an INI file) into a Config, applying defaults for
// any absent key. A missing or unreadable file is an error. An absent
// seed_urls key is not: SeedURLs is left empty and the caller decides
// whether that is acceptable (e.g. resuming from an existing frontier).
func Load(path string) (*Config, error) {
	cfg := &Config{
		UserAgent:    defaultUserAgent,
		TimeDelay:    time.Duration(defaultTimeDelay * float64(time.Second)),
		SaveFile:     defaultSaveFile,
		ThreadsCount: defaultThreadsCount,
	}
	cfg.CacheHost, cfg.CachePort = splitHostPort(defaultCacheServer)

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config file %q: %w", path, err)
	}

	section := file.Section("")
	if file.HasSection("CRAWLER") {
		section = file.Section("CRAWLER")
	}

	if v := section.Key("user_agent").String(); v != "" {
		cfg.UserAgent = v
	}
	if v := section.Key("seed_urls").String(); v != "" {
		cfg.SeedURLs = splitAndTrim(v)
	}
	if v := section.Key("time_delay").String(); v != "" {
		seconds, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing time_delay %q: %w", v, err)
		}
		cfg.TimeDelay = time.Duration(seconds * float64(time.Second))
	}
	if v := section.Key("cache_server").String(); v != "" {
		host, port := splitHostPort(v)
		if host == "" || port == "" {
			return nil, fmt.Errorf("cache_server must be host:port, got %q", v)
		}
		cfg.CacheHost, cfg.CachePort = host, port
	}
	if v := section.Key("save_file").String(); v != "" {
		cfg.SaveFile = v
	}
	if v := section.Key("threads_count").String(); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parsing threads_count %q: %w", v, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("threads_count must be positive, got %d", n)
		}
		cfg.ThreadsCount = n
	}

	return cfg, nil
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitHostPort(v string) (host, port string) {
	idx := strings.LastIndex(v, ":")
	if idx < 0 {
		return "", ""
	}
	return v[:idx], v[idx+1:]
}
