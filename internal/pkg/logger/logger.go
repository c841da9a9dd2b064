// internal/pkg/logger/logger.go
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Options configures New
type Options struct {
	Level     string
	Format    string // json or text
	Output    io.Writer
	AddSource bool

	// SampleRate keeps that share of debug and info records. Zero or one
	// and above keeps everything.
	SampleRate float64

	Service     string
	Version     string
	Environment string
}

// Setup builds a logger from level and format and installs it as the slog
// default. Used before configuration is loaded.
func Setup(level, format string) *slog.Logger {
	l := New(Options{
		Level:       level,
		Format:      format,
		AddSource:   strings.EqualFold(level, "debug"),
		Environment: os.Getenv("APP_ENV"),
	})
	slog.SetDefault(l)
	return l
}

// New builds the handler stack. Records pass redaction first, then sampling,
// then pick up context attributes before reaching the JSON or text writer.
func New(o Options) *slog.Logger {
	out := o.Output
	if out == nil {
		out = os.Stdout
	}

	hopts := &slog.HandlerOptions{
		Level:       ParseLevel(o.Level),
		AddSource:   o.AddSource,
		ReplaceAttr: replaceAttr(o.Format == "text"),
	}

	var h slog.Handler
	if o.Format == "text" {
		h = newPrettyHandler(out, hopts)
	} else {
		h = slog.NewJSONHandler(out, hopts)
	}
	h = contextHandler{next: h}
	if o.SampleRate > 0 && o.SampleRate < 1 {
		h = NewSamplingHandler(h, o.SampleRate)
	}
	h = newRedactHandler(h)

	var static []slog.Attr
	for _, kv := range [][2]string{{"service", o.Service}, {"version", o.Version}, {"env", o.Environment}} {
		if kv[1] != "" {
			static = append(static, slog.String(kv[0], kv[1]))
		}
	}
	if len(static) > 0 {
		h = h.WithAttrs(static)
	}

	return slog.New(h)
}

// ParseLevel maps a level name to slog. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// replaceAttr writes timestamps with nanoseconds and, for JSON, names the
// level "severity" as the log shipper expects.
func replaceAttr(text bool) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			if t, ok := a.Value.Any().(time.Time); ok {
				a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
			}
		case slog.LevelKey:
			if !text {
				a.Key = "severity"
			}
		}
		return a
	}
}
