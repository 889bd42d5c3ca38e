package persist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
)

func sampleRecord() Record {
	return Record{
		BestScore: 4.25,
		BestCombination: field.Combination{
			"na-price": {Kind: field.KindNumeric, Value: 430, Label: "N.A. Wholesale Price"},
			"shifts":   {Kind: field.KindChoice, Option: "2", Label: "Production Shifts"},
		},
		BestMetrics: map[string]float64{"eps": 4.25, "net_revenue": 182000, "image_rating": 71},
		IsRunning:   true,
		UpdatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	badgerStore, err := OpenBadgerInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerStore.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"badger": badgerStore,
	}
}

func TestStoreLoadEmpty(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(context.Background())
			assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleRecord()
			require.NoError(t, s.Save(ctx, want))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("record mismatch (-want +got):\n%s", diff)
			}

			// last writer wins
			want.BestScore = 5
			want.IsRunning = false
			require.NoError(t, s.Save(ctx, want))
			got, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, 5.0, got.BestScore)
			assert.False(t, got.IsRunning)
		})
	}
}

func TestStoreIsolation(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec := sampleRecord()
			require.NoError(t, s.Save(ctx, rec))
			rec.BestCombination["na-price"] = field.Entry{Kind: field.KindNumeric, Value: 1}
			rec.BestMetrics["eps"] = -1

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, 430.0, got.BestCombination["na-price"].Value)
			assert.Equal(t, 4.25, got.BestMetrics["eps"])

			got.BestCombination["na-price"] = field.Entry{Kind: field.KindNumeric, Value: 2}
			again, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, 430.0, again.BestCombination["na-price"].Value)
		})
	}
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenBadger(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleRecord()))
	require.NoError(t, s.Close())

	s, err = OpenBadger(dir, nil)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4.25, got.BestScore)
	assert.Equal(t, "2", got.BestCombination["shifts"].Option)
	assert.Equal(t, 182000.0, got.BestMetrics["net_revenue"])
}

func TestStoreClearsMetrics(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, sampleRecord()))
			require.NoError(t, s.Save(ctx, Record{BestCombination: field.Combination{}}))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, got.BestMetrics)
			assert.Zero(t, got.BestScore)
		})
	}
}

func TestOpenBadgerRequiresPath(t *testing.T) {
	_, err := OpenBadger("", nil)
	require.Error(t, err)
}

func TestBadgerCancelledContext(t *testing.T) {
	s, err := OpenBadgerInMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Save(ctx, sampleRecord()), context.Canceled)
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
