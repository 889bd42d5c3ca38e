package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
)

// Record keys, all written in one transaction
const (
	keyRunning = "state/isRunning"
	keyScore   = "state/bestScore"
	keyCombo   = "state/bestCombo"
	keyMetrics = "state/bestMetrics"
	keyUpdated = "state/updatedAt"
)

// BadgerStore persists the record in a Badger database
type BadgerStore struct {
	db *badger.DB
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens (creating if needed) a store at path with synchronous
// writes. A nil logger silences Badger.
func OpenBadger(path string, logger *slog.Logger) (*BadgerStore, error) {
	if path == "" {
		return nil, errors.New("path is required for persistent store")
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create state directory %s: %w", path, err)
	}
	opts := badger.DefaultOptions(path).WithSyncWrites(true).WithNumVersionsToKeep(1)
	return open(opts, logger)
}

// OpenBadgerInMemory opens a store that lives only as long as the process
func OpenBadgerInMemory() (*BadgerStore, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), nil)
}

func open(opts badger.Options, logger *slog.Logger) (*BadgerStore, error) {
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Load reads the record. It returns ErrNotFound when no record was saved.
func (s *BadgerStore) Load(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		found := false
		for key, dst := range map[string]any{
			keyRunning: &rec.IsRunning,
			keyScore:   &rec.BestScore,
			keyCombo:   &rec.BestCombination,
			keyMetrics: &rec.BestMetrics,
			keyUpdated: &rec.UpdatedAt,
		} {
			item, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get %s: %w", key, err)
			}
			found = true
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, dst)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		}
		if !found {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	if rec.BestCombination == nil {
		rec.BestCombination = make(map[string]field.Entry)
	}
	return rec, nil
}

// Save overwrites every key of the record in a single transaction
func (s *BadgerStore) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	values := map[string]any{
		keyRunning: rec.IsRunning,
		keyScore:   rec.BestScore,
		keyCombo:   rec.BestCombination.Clone(),
		keyMetrics: rec.BestMetrics,
		keyUpdated: rec.UpdatedAt,
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for key, v := range values {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode %s: %w", key, err)
			}
			if err := txn.Set([]byte(key), data); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// Close closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
