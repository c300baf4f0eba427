package log

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// TextFormatter renders an Entry as a single human-readable line:
// "time LEVEL message key=value key=value", with keys sorted.
type TextFormatter struct{}

func (f *TextFormatter) Format(e *Entry) ([]byte, error) {
	var b strings.Builder
	b.WriteString(e.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"))
	b.WriteByte(' ')
	b.WriteString(e.Level.String())
	b.WriteByte(' ')
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// JSONFormatter renders an Entry as one JSON object per line.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(e *Entry) ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+3)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["level"] = e.Level.String()
	out["msg"] = e.Message
	out["ts"] = e.Timestamp.Format("2006-01-02T15:04:05.000Z07:00")
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
