package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleOutput writes formatted entries to a writer (stderr by default),
// serialized by a mutex since multiple goroutines log concurrently.
type ConsoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleOutput creates a ConsoleOutput writing to os.Stderr.
func NewConsoleOutput() *ConsoleOutput {
	return &ConsoleOutput{w: os.Stderr}
}

// NewWriterOutput creates a ConsoleOutput writing to an arbitrary writer,
// primarily for tests.
func NewWriterOutput(w io.Writer) *ConsoleOutput {
	return &ConsoleOutput{w: w}
}

func (c *ConsoleOutput) Write(_ *Entry, formatted []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.w.Write(formatted)
	return err
}

func (c *ConsoleOutput) Close() error { return nil }

// DiscardOutput drops every entry. Useful for tests that don't want log
// noise but still need a valid Logger.
type DiscardOutput struct{}

func (DiscardOutput) Write(*Entry, []byte) error { return nil }
func (DiscardOutput) Close() error               { return nil }

// NewTestLogger returns a Logger that discards output, for use in tests
// that need to inject a Logger but don't care about its contents.
func NewTestLogger() Logger {
	return NewLogger(WithLevel(DebugLevel), WithOutput(DiscardOutput{}))
}
