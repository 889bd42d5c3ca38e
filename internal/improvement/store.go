package improvement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/measure"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/persist"
)

// BestResult is a copy of the store's current best
type BestResult struct {
	Score       float64           `json:"score"`
	Combination field.Combination `json:"combination"`
	Metrics     measure.Snapshot  `json:"metrics"`
	Set         bool              `json:"set"`
	Running     bool              `json:"running"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// BestStore holds the best result found so far and writes every change
// through to a persist.Store before acknowledging it.
type BestStore struct {
	mu        sync.Mutex
	store     persist.Store
	score     float64
	combo     field.Combination
	snapshot  measure.Snapshot
	set       bool
	running   bool
	updatedAt time.Time
	now       func() time.Time
}

// NewBestStore loads the persisted record. A missing record starts at score
// 0 with an empty combination, not running.
func NewBestStore(ctx context.Context, store persist.Store) (*BestStore, error) {
	b := &BestStore{
		store: store,
		combo: make(field.Combination),
		now:   time.Now,
	}
	rec, err := store.Load(ctx)
	switch {
	case errors.Is(err, persist.ErrNotFound):
		return b, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load best record: %w", err)
	}
	b.score = rec.BestScore
	b.combo = rec.BestCombination.Clone()
	b.snapshot = measure.NewSnapshot(rec.BestMetrics)
	b.running = rec.IsRunning
	b.updatedAt = rec.UpdatedAt
	b.set = len(b.combo) > 0
	return b, nil
}

// RecordIfBetter replaces the best when score is strictly greater than the
// current best, which is 0 on an empty store and after a reset. The
// combination is copied before it is stored. It returns true when the best
// was replaced.
func (b *BestStore) RecordIfBetter(ctx context.Context, score float64, combo field.Combination, snap measure.Snapshot) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !(score > b.score) {
		return false, nil
	}
	clone := combo.Clone()
	now := b.now()
	if err := b.saveLocked(ctx, score, clone, snap, b.running, now); err != nil {
		return false, err
	}
	b.score = score
	b.combo = clone
	b.snapshot = snap
	b.set = true
	b.updatedAt = now
	return true, nil
}

// Reset forgets the best result: score 0, empty combination
func (b *BestStore) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if err := b.saveLocked(ctx, 0, make(field.Combination), measure.Snapshot{}, b.running, now); err != nil {
		return err
	}
	b.score = 0
	b.combo = make(field.Combination)
	b.snapshot = measure.Snapshot{}
	b.set = false
	b.updatedAt = now
	return nil
}

// SetRunning persists the running flag
func (b *BestStore) SetRunning(ctx context.Context, running bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.saveLocked(ctx, b.score, b.combo, b.snapshot, running, b.updatedAt); err != nil {
		return err
	}
	b.running = running
	return nil
}

// Best returns a copy of the current best
func (b *BestStore) Best() BestResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BestResult{
		Score:       b.score,
		Combination: b.combo.Clone(),
		Metrics:     b.snapshot,
		Set:         b.set,
		Running:     b.running,
		UpdatedAt:   b.updatedAt,
	}
}

func (b *BestStore) saveLocked(ctx context.Context, score float64, combo field.Combination, snap measure.Snapshot, running bool, at time.Time) error {
	rec := persist.Record{
		BestScore:       score,
		BestCombination: combo,
		IsRunning:       running,
		UpdatedAt:       at,
	}
	if snap.Len() > 0 {
		rec.BestMetrics = snap.Map()
	}
	err := b.store.Save(ctx, rec)
	if err != nil {
		return fmt.Errorf("failed to persist best record: %w", err)
	}
	return nil
}
