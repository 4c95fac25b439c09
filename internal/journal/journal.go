// Package journal keeps the terminal outcome of every submit flow.
package journal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"timereport/internal/report"
)

const defaultMaxEntries = 1000

// Entry is one finished submit flow.
type Entry struct {
	ID       string         `json:"id" msgpack:"id"`
	ItemID   string         `json:"item_id,omitempty" msgpack:"item_id"`
	State    string         `json:"state" msgpack:"state"`
	Client   string         `json:"client" msgpack:"client"`
	Record   report.Record  `json:"record" msgpack:"record"`
	Previous *report.Record `json:"previous,omitempty" msgpack:"previous"`
	Error    string         `json:"error,omitempty" msgpack:"error"`
	At       time.Time      `json:"at" msgpack:"at"`
}

// Journal stores entries, newest first on read.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// stamp fills the ID and time of a new entry.
func stamp(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return e
}

// Memory is an in-process Journal bounded to max entries.
type Memory struct {
	mu      sync.Mutex
	max     int
	entries []Entry // oldest first
}

func NewMemory(max int) *Memory {
	if max <= 0 {
		max = defaultMaxEntries
	}
	return &Memory{max: max}
}

func (m *Memory) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, stamp(e))
	if over := len(m.entries) - m.max; over > 0 {
		m.entries = append([]Entry(nil), m.entries[over:]...)
	}
	return nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}
	out := make([]Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
