package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(WarnLevel), WithFormatter(&TextFormatter{}), WithOutput(NewWriterOutput(&buf)))

	l.Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("Info logged below WarnLevel threshold: %q", buf.String())
	}

	l.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("Warn not logged: %q", buf.String())
	}
}

func TestWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(DebugLevel), WithFormatter(&TextFormatter{}), WithOutput(NewWriterOutput(&buf)))
	l = l.With(Component("engine"), Str("conn", "abc"))
	l.Info("hello")

	out := buf.String()
	if !strings.Contains(out, "component=engine") || !strings.Contains(out, "conn=abc") {
		t.Fatalf("With fields missing from output: %q", out)
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(DebugLevel), WithFormatter(&JSONFormatter{}), WithOutput(NewWriterOutput(&buf)))
	l.Info("hi", Int("n", 7))

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output not valid JSON: %v (%q)", err, buf.String())
	}
	if decoded["msg"] != "hi" {
		t.Fatalf("msg = %v, want hi", decoded["msg"])
	}
	if decoded["n"] != float64(7) {
		t.Fatalf("n = %v, want 7", decoded["n"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": DebugLevel,
		"info":  InfoLevel,
		"warn":  WarnLevel,
		"error": ErrorLevel,
		"":      InfoLevel,
	}
	for s, want := range cases {
		got, err := ParseLevel(s)
		if err != nil {
			t.Fatalf("ParseLevel(%q) error: %v", s, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := ParseLevel("bogus"); err == nil {
		t.Fatalf("ParseLevel(bogus) should error")
	}
}

func TestWithIsIndependentPerClone(t *testing.T) {
	var bufA, bufB bytes.Buffer
	base := NewLogger(WithLevel(DebugLevel), WithFormatter(&TextFormatter{}), WithOutput(NewWriterOutput(&bufA)))
	derived := base.With(Str("scope", "b"))
	// derived shares the output (NewWriterOutput(&bufA)); verify With doesn't
	// mutate the base logger's field set.
	_ = bufB
	base.Info("base-line")
	derived.Info("derived-line")

	out := bufA.String()
	if strings.Contains(strings.Split(out, "\n")[0], "scope=b") {
		t.Fatalf("base logger picked up derived's field: %q", out)
	}
	if !strings.Contains(out, "derived-line") || !strings.Contains(out, "scope=b") {
		t.Fatalf("derived logger missing its field: %q", out)
	}
}
