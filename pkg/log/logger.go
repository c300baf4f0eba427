package log

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Level is the severity of a log entry.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name, case-insensitively. Unrecognized input
// returns InfoLevel and a non-nil error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// Field is one piece of structured context attached to a log entry.
type Field struct {
	Key   string
	Value any
}

func Str(key, value string) Field           { return Field{Key: key, Value: value} }
func Int(key string, value int) Field       { return Field{Key: key, Value: value} }
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field     { return Field{Key: key, Value: value} }
func Err(err error) Field                   { return Field{Key: "error", Value: err} }
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, Value: d}
}

// Component tags a logger with a component name, the convention used
// throughout workstalkd to scope log lines to the engine, server, or timer
// driver.
func Component(name string) Field { return Field{Key: "component", Value: name} }

// Entry is a single formatted-log-record-to-be.
type Entry struct {
	Level     Level
	Message   string
	Fields    map[string]any
	Timestamp time.Time
}

// Formatter renders an Entry to bytes.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// Output writes a formatted entry somewhere.
type Output interface {
	Write(entry *Entry, formatted []byte) error
	Close() error
}

// Logger is workstalkd's logging facade. Every component receives one by
// constructor injection rather than reaching for a package-level global.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	With(fields ...Field) Logger
	WithComponent(component string) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// BaseLogger is the concrete Logger implementation. It renders entries with
// its own Formatter and writes them to its Outputs; its slog field wraps the
// same pipeline in a bridge handler.
type BaseLogger struct {
	level     Level
	fields    []Field
	formatter Formatter
	outputs   []Output
	slog      *slog.Logger
}

type Option func(*BaseLogger)

func WithLevel(level Level) Option {
	return func(l *BaseLogger) { l.level = level }
}

func WithFormatter(f Formatter) Option {
	return func(l *BaseLogger) { l.formatter = f }
}

func WithOutput(o Output) Option {
	return func(l *BaseLogger) { l.outputs = append(l.outputs, o) }
}

// NewLogger builds a Logger. With no WithOutput option, it writes to the
// console in text format.
func NewLogger(opts ...Option) Logger {
	l := &BaseLogger{
		level:     InfoLevel,
		formatter: &TextFormatter{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if len(l.outputs) == 0 {
		l.outputs = []Output{NewConsoleOutput()}
	}
	l.slog = slog.New(newBridgeHandler(l))
	return l
}

func (l *BaseLogger) clone() *BaseLogger {
	cp := *l
	cp.fields = append([]Field(nil), l.fields...)
	cp.slog = slog.New(newBridgeHandler(&cp))
	return &cp
}

func (l *BaseLogger) With(fields ...Field) Logger {
	cp := l.clone()
	cp.fields = append(cp.fields, fields...)
	return cp
}

func (l *BaseLogger) WithComponent(component string) Logger {
	return l.With(Component(component))
}

func (l *BaseLogger) SetLevel(level Level) { l.level = level }
func (l *BaseLogger) GetLevel() Level      { return l.level }

func (l *BaseLogger) log(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	all := append(append([]Field(nil), l.fields...), fields...)
	m := make(map[string]any, len(all))
	for _, f := range all {
		m[f.Key] = f.Value
	}
	entry := &Entry{Level: level, Message: msg, Fields: m, Timestamp: time.Now()}
	formatted, err := l.formatter.Format(entry)
	if err != nil {
		return
	}
	for _, out := range l.outputs {
		_ = out.Write(entry, formatted)
	}
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }
func (l *BaseLogger) Fatal(msg string, fields ...Field) { l.log(FatalLevel, msg, fields) }

// Config is the declarative logging configuration used by cmd/workstalkd.
type Config struct {
	Level  string
	Format string
}

// ApplyConfig builds a Logger from a Config. An unparseable level falls back
// to InfoLevel and the parse error is returned alongside the Logger. Format
// "json" selects JSONFormatter; any other value selects TextFormatter.
func ApplyConfig(cfg *Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = InfoLevel
	}
	var formatter Formatter = &TextFormatter{}
	if cfg.Format == "json" {
		formatter = &JSONFormatter{}
	}
	l := NewLogger(WithLevel(level), WithFormatter(formatter), WithOutput(NewConsoleOutput()))
	return l, err
}
