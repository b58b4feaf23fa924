package testlink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/splitio/go-toolkit/v5/logging"
)

// SlogToSplitAdapter routes Split SDK log output into a *slog.Logger so the
// SDK behind SplitDefaults logs through the same handler as the listener.
// Split's Warning maps to slog Warn and Verbose to Debug.
type SlogToSplitAdapter struct {
	logger *slog.Logger
}

var _ logging.LoggerInterface = (*SlogToSplitAdapter)(nil)

// NewSplitLogger wraps logger, or slog.Default() when logger is nil.
func NewSplitLogger(logger *slog.Logger) *SlogToSplitAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogToSplitAdapter{logger: logger.With("source", "split-sdk")}
}

func (a *SlogToSplitAdapter) Error(msg ...any)   { a.log(slog.LevelError, msg) }
func (a *SlogToSplitAdapter) Warning(msg ...any) { a.log(slog.LevelWarn, msg) }
func (a *SlogToSplitAdapter) Info(msg ...any)    { a.log(slog.LevelInfo, msg) }
func (a *SlogToSplitAdapter) Debug(msg ...any)   { a.log(slog.LevelDebug, msg) }
func (a *SlogToSplitAdapter) Verbose(msg ...any) { a.log(slog.LevelDebug, msg) }

// log uses the first argument as the message and keeps any others as a
// structured "details" attribute.
func (a *SlogToSplitAdapter) log(level slog.Level, msg []any) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, level) {
		return
	}
	switch len(msg) {
	case 0:
		a.logger.Log(ctx, level, "")
	case 1:
		a.logger.Log(ctx, level, fmt.Sprint(msg[0]))
	default:
		a.logger.Log(ctx, level, fmt.Sprint(msg[0]), "details", msg[1:])
	}
}
