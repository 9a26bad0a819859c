package strategy

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const maxLogEntries = 500

// LogEntry is a line of an instance's activity log. Displayed is set once a
// UI has fetched it as pending.
type LogEntry struct {
	Time      time.Time `json:"time"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Displayed bool      `json:"displayed"`
}

type logBook struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (b *logBook) add(e LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	if n := len(b.entries); n > maxLogEntries {
		b.entries = append(b.entries[:0:0], b.entries[n-maxLogEntries:]...)
	}
}

func (b *logBook) snapshot() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// pending returns entries not yet displayed and marks them displayed.
func (b *logBook) pending() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []LogEntry
	for i := range b.entries {
		if !b.entries[i].Displayed {
			out = append(out, b.entries[i])
			b.entries[i].Displayed = true
		}
	}
	return out
}

// renderFields turns zap fields into "msg key=value ..." for the UI log.
func renderFields(msg string, fields []zap.Field) string {
	if len(fields) == 0 {
		return msg
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, enc.Fields[k])
	}
	return sb.String()
}
