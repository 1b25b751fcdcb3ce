// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const defaultTimeFmt = time.RFC3339

var (
	mu           sync.Mutex
	baseWriter   io.Writer = os.Stderr
	baseComponent string
	baseLogger   = zerolog.New(baseWriter).With().Timestamp().Logger()

	nowFn        = time.Now
	isTerminalFn = term.IsTerminal
)

// Config controls how Init sets up the global logger.
type Config struct {
	// Format is "console" (human-readable, colorized if attached to a
	// terminal) or "json" (one object per line, for journald/syslog).
	Format string
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string
	// Component is attached to every log line as the "component" field,
	// letting the daemon distinguish sampler/alertengine/ipc/... output.
	Component string
}

// Init installs the global zerolog logger according to cfg. It is safe to
// call more than once (e.g. after a config reload changes the log level).
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = defaultTimeFmt

	var w io.Writer = os.Stderr
	if cfg.Format != "json" {
		w = newConsoleWriter(os.Stderr)
	}

	baseWriter = w
	baseComponent = cfg.Component

	logger := zerolog.New(w).With().Timestamp()
	if cfg.Component != "" {
		logger = logger.Str("component", cfg.Component)
	}
	baseLogger = logger.Logger()
	log.Logger = baseLogger
}

func newConsoleWriter(w io.Writer) io.Writer {
	isTTY := false
	if f, ok := w.(*os.File); ok {
		isTTY = isTerminalFn(int(f.Fd()))
	}
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    !isTTY,
	}
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Component returns a sub-logger tagged with the given component name,
// without disturbing the global component set by Init.
func Component(name string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return baseLogger.With().Str("component", name).Logger()
}
