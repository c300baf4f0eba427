package log

import (
	"log"
	"log/slog"
)

// ToStdLogger adapts a Logger to a *log.Logger for interop with libraries
// that expect the standard library's logger (e.g. net/http's ErrorLog).
func ToStdLogger(l Logger, level Level) *log.Logger {
	bl, ok := l.(*BaseLogger)
	if !ok {
		return log.Default()
	}
	return slog.NewLogLogger(newBridgeHandler(bl), toSlogLevel(level))
}

// RedirectStdLog points the standard library's global logger at l, so
// third-party code that logs via log.Printf ends up in the same
// formatter/output pipeline as the rest of workstalkd.
func RedirectStdLog(l Logger) {
	log.SetOutput(stdLogWriter{l: l})
	log.SetFlags(0)
}

type stdLogWriter struct {
	l Logger
}

func (w stdLogWriter) Write(p []byte) (int, error) {
	msg := string(p)
	if n := len(msg); n > 0 && msg[n-1] == '\n' {
		msg = msg[:n-1]
	}
	w.l.Info(msg)
	return len(p), nil
}
