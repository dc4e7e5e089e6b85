package history

import (
	"sync"
	"time"

	"deepfakedetector/internal/model"
)

// DefaultCapacity is how many verdicts the log keeps.
const DefaultCapacity = 5

// Log keeps the most recent verdicts, newest first. It lives as long as the
// process and is never written to disk.
type Log struct {
	mu       sync.Mutex
	entries  []model.HistoryEntry
	capacity int
	now      func() time.Time
}

// NewLog creates a Log holding at most capacity entries.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		entries:  make([]model.HistoryEntry, 0, capacity+1),
		capacity: capacity,
		now:      time.Now,
	}
}

// WithClock replaces the timestamp source.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
	return l
}

// Append records a completed verdict at the front, evicting from the back
// once the log is over capacity. It returns the entry that was stored.
func (l *Log) Append(kind model.SourceKind, verdict model.Verdict) model.HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := model.HistoryEntry{
		Timestamp:     l.now().Format(model.HistoryTimeLayout),
		Category:      kind.Category(),
		Result:        verdict.Result(),
		ConfidencePct: verdict.ConfidenceLabel(),
	}

	l.entries = append(l.entries, model.HistoryEntry{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = entry

	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
	return entry
}

// List returns a copy of the log, newest first.
func (l *Log) List() []model.HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.HistoryEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of stored entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Capacity reports the eviction bound.
func (l *Log) Capacity() int {
	return l.capacity
}
