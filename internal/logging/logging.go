// Package logging builds the process-wide slog handler.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// Output formats accepted by New.
const (
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

// Options controls handler selection.
type Options struct {
	// Format is "json", "pretty" or empty for auto-detection.
	Format string
	// Level is one of debug, info, warn, error (default: info).
	Level string
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New returns a logger writing to out. With no explicit format, colourised
// output is used when out is a terminal and JSON otherwise.
func New(out io.Writer, opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = FormatJSON
		if isTerminal(out) {
			format = FormatPretty
		}
	}

	switch format {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})), nil
	case FormatPretty:
		return slog.New(tint.NewHandler(out, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(out),
		})), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (valid: json, pretty)", opts.Format)
	}
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
