package log

import (
	"context"
	"log/slog"
)

// bridgeHandler lets BaseLogger double as a slog.Handler so stdlib code
// that logs through slog (or through RedirectStdLog's *log.Logger) ends up
// flowing through the same formatter/output pipeline as the rest of
// workstalkd.
type bridgeHandler struct {
	logger *BaseLogger
	attrs  []slog.Attr
}

func newBridgeHandler(logger *BaseLogger) *bridgeHandler {
	return &bridgeHandler{logger: logger}
}

func (h *bridgeHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.level <= fromSlogLevel(level)
}

func (h *bridgeHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]Field, 0, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		fields = append(fields, Field{Key: a.Key, Value: a.Value.Any()})
	}
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, Field{Key: a.Key, Value: a.Value.Any()})
		return true
	})
	h.logger.log(fromSlogLevel(r.Level), r.Message, fields)
	return nil
}

func (h *bridgeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := &bridgeHandler{logger: h.logger, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
	return nh
}

func (h *bridgeHandler) WithGroup(_ string) slog.Handler {
	return h
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level <= slog.LevelDebug:
		return DebugLevel
	case level == slog.LevelInfo:
		return InfoLevel
	case level == slog.LevelWarn:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
