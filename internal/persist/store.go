// Package persist keeps the best-result record across process restarts.
package persist

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
)

// ErrNotFound is returned by Load when nothing has been saved yet
var ErrNotFound = errors.New("record not found")

// Record is the persisted best result
type Record struct {
	BestScore       float64           `json:"bestScore"`
	BestCombination field.Combination `json:"bestCombo"`
	// BestMetrics are the readings behind BestScore
	BestMetrics map[string]float64 `json:"bestMetrics,omitempty"`
	IsRunning   bool               `json:"isRunning"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// Clone returns a copy that shares no maps with r
func (r Record) Clone() Record {
	r.BestCombination = r.BestCombination.Clone()
	r.BestMetrics = maps.Clone(r.BestMetrics)
	return r
}

// Store loads and overwrites the record. Save is synchronous: when it
// returns nil the record is durable.
type Store interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, rec Record) error
	Close() error
}

// MemoryStore keeps the record in process memory
type MemoryStore struct {
	mu    sync.Mutex
	rec   Record
	saved bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the last saved record
func (m *MemoryStore) Load(_ context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return Record{}, ErrNotFound
	}
	return m.rec.Clone(), nil
}

// Save overwrites the record
func (m *MemoryStore) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = rec.Clone()
	m.saved = true
	return nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
