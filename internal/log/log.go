// Package log holds the process logger. Code that has a context logs through
// Ctx, so attributes attached with With (a request id, a scenario name) follow
// the call down into the schedule and solver packages.
//
// Lines are JSON on stderr; stdout is left to command output. The level is
// shared by every logger derived from the default one and is set once at
// startup from the log_level config key or a flag with Configure.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

var (
	level slog.LevelVar
	root  = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true, Level: &level}))
}

type loggerKey struct{}

// Ctx returns the logger carried by ctx, or the root logger.
func Ctx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return root
}

// With returns a context whose logger adds args to every line.
func With(ctx context.Context, args ...any) context.Context {
	return WithLogger(ctx, Ctx(ctx).With(args...))
}

func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// Configure sets the level from a config value. The empty string keeps the
// current level.
func Configure(name string) error {
	if name == "" {
		return nil
	}
	l, err := ParseLevel(name)
	if err != nil {
		return err
	}
	level.Set(l)
	return nil
}

func Level() slog.Level { return level.Level() }

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}
