// Package history keeps a ledger of every score improvement so past
// decision sets can be listed, summarized and re-applied.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	_ "modernc.org/sqlite"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/measure"
)

// ErrNotFound is returned by Get for an unknown entry id
var ErrNotFound = errors.New("history entry not found")

// timeLayout is fixed width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one recorded score
type Entry struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"sessionId"`
	Type        string            `json:"type"`
	Score       float64           `json:"score"`
	Metrics     measure.Snapshot  `json:"metrics"`
	Combination field.Combination `json:"combination"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Summary describes the recorded scores
type Summary struct {
	Count  int       `json:"count"`
	Mean   float64   `json:"mean"`
	StdDev float64   `json:"stdDev"`
	Max    float64   `json:"max"`
	First  time.Time `json:"first,omitempty"`
	Last   time.Time `json:"last,omitempty"`
}

// Ledger is a sqlite-backed history of improvements
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the ledger at path and migrates it to the
// latest schema. ":memory:" opens a private in-memory ledger.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// one connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure history database: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db, now: time.Now}, nil
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Append stores e under a new id. A zero CreatedAt is set to now.
func (l *Ledger) Append(ctx context.Context, e Entry) (Entry, error) {
	e.ID = uuid.NewString()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	if e.Combination == nil {
		e.Combination = make(field.Combination)
	}
	metrics, err := json.Marshal(e.Metrics)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode metrics: %w", err)
	}
	combo, err := json.Marshal(e.Combination)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode combination: %w", err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO improvements (id, session_id, event_type, score, metrics, combination, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Type, e.Score, string(metrics), string(combo), e.CreatedAt.Format(timeLayout))
	if err != nil {
		return Entry{}, fmt.Errorf("failed to append history entry: %w", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (l *Ledger) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, session_id, event_type, score, metrics, combination, created_at
		FROM improvements ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return out, nil
}

// Get returns the entry with the given id
func (l *Ledger) Get(ctx context.Context, id string) (Entry, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, session_id, event_type, score, metrics, combination, created_at
		 FROM improvements WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return e, err
}

// Summary computes score statistics over the whole ledger
func (l *Ledger) Summary(ctx context.Context) (Summary, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT score, created_at FROM improvements ORDER BY created_at, rowid`)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to summarize history: %w", err)
	}
	defer rows.Close()

	var (
		scores []float64
		times  []time.Time
	)
	for rows.Next() {
		var (
			score float64
			at    string
		)
		if err := rows.Scan(&score, &at); err != nil {
			return Summary{}, fmt.Errorf("failed to scan history row: %w", err)
		}
		t, err := time.Parse(timeLayout, at)
		if err != nil {
			return Summary{}, fmt.Errorf("bad timestamp %q: %w", at, err)
		}
		scores = append(scores, score)
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("failed to summarize history: %w", err)
	}

	s := Summary{Count: len(scores)}
	if s.Count == 0 {
		return s, nil
	}
	s.Mean, s.StdDev = stat.MeanStdDev(scores, nil)
	if s.Count == 1 {
		s.StdDev = 0
	}
	s.Max = floats.Max(scores)
	s.First = times[0]
	s.Last = times[len(times)-1]
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e              Entry
		metrics, combo string
		createdAt      string
	)
	if err := row.Scan(&e.ID, &e.SessionID, &e.Type, &e.Score, &metrics, &combo, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("failed to scan history row: %w", err)
	}
	if err := json.Unmarshal([]byte(metrics), &e.Metrics); err != nil {
		return Entry{}, fmt.Errorf("failed to decode metrics of %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(combo), &e.Combination); err != nil {
		return Entry{}, fmt.Errorf("failed to decode combination of %s: %w", e.ID, err)
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("bad timestamp %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return e, nil
}
