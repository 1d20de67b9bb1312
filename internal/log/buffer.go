package log

import (
	"sync"
	"time"
)

// The warning buffer keeps the most recent warnings and errors so a long sampling run can
// report them once it finishes.
var warningBuffer *LogBuffer
var warningBufferOnce sync.Once

// LogEntry is one captured log line.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp" msgpack:"timestamp"`
	Level     string         `json:"level" msgpack:"level"`
	Message   string         `json:"message" msgpack:"message"`
	Caller    string         `json:"caller,omitempty" msgpack:"caller,omitempty"`
	Fields    map[string]any `json:"fields,omitempty" msgpack:"fields,omitempty"`
}

// LogBuffer is a fixed-size ring of log entries, safe for concurrent use.
type LogBuffer struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
	total   int
}

// NewLogBuffer returns a buffer holding the last size entries.
func NewLogBuffer(size int) *LogBuffer {
	if size < 1 {
		size = 1
	}
	return &LogBuffer{entries: make([]LogEntry, size)}
}

// GetWarningBuffer returns the warning buffer instance, creating it if necessary
func GetWarningBuffer() *LogBuffer {
	warningBufferOnce.Do(func() {
		warningBuffer = NewLogBuffer(100) // Keep last 100 warnings
	})
	return warningBuffer
}

// AddEntry appends an entry, overwriting the oldest one when the buffer is full.
func (b *LogBuffer) AddEntry(e LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
	b.total++
}

// Entries returns the buffered entries, oldest first.
func (b *LogBuffer) Entries() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		return append([]LogEntry(nil), b.entries[:b.next]...)
	}
	out := make([]LogEntry, 0, len(b.entries))
	out = append(out, b.entries[b.next:]...)
	return append(out, b.entries[:b.next]...)
}

// Total returns the number of entries ever added, including overwritten ones.
func (b *LogBuffer) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Clear empties the buffer.
func (b *LogBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.entries)
	b.next, b.full, b.total = 0, false, 0
}
