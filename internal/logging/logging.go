// Package logging builds per-component zerolog loggers that write to
// both a named file under Logs/ and the console.
package logging

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

const logsDir = "Logs"

var (
	mu      sync.Mutex
	openLog = make(map[string]*os.File)
)

// New returns a logger for name that writes every event, at every
// level, both to Logs/<name>.log and to stderr in console format.
// Repeated calls with the same name share the underlying file handle.
func New(name string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		console := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("component", name).Logger()
		console.Error().Err(err).Msg("failed to create Logs directory; logging to console only")
		return console
	}

	f, ok := openLog[name]
	if !ok {
		path := filepath.Join(logsDir, name+".log")
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			console := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("component", name).Logger()
			console.Error().Err(err).Msg("failed to open log file; logging to console only")
			return console
		}
		openLog[name] = f
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr}
	multi := zerolog.MultiLevelWriter(f, console)
	return zerolog.New(multi).With().Timestamp().Str("component", name).Logger()
}

// CloseAll closes every log file opened via New. Intended for clean
// shutdown paths and tests.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for name, f := range openLog {
		f.Close()
		delete(openLog, name)
	}
}
