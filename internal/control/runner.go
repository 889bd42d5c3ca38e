// Package control runs optimization sessions on behalf of the HTTP and gRPC
// control surfaces and fans their progress out to the ledger, the event hub
// and the webhook notifier.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/form"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/history"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/improvement"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/measure"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/metrics"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
)

var (
	// ErrAlreadyRunning is returned when a command needs the page while a session runs
	ErrAlreadyRunning = errors.New("optimizer already running")
	// ErrNotRunning is returned by Stop when no session runs
	ErrNotRunning = errors.New("optimizer not running")
	// ErrNoBest is returned by ApplyBest before anything was recorded
	ErrNoBest = errors.New("no best result recorded")
	// ErrNoLedger is returned by history commands when no ledger is configured
	ErrNoLedger = errors.New("history ledger not configured")
)

// Deps are the collaborators of a Runner. Ledger, Hub, Notifier and
// Collector are optional.
type Deps struct {
	Mutator    *form.Mutator
	Reader     *measure.Reader
	Store      *improvement.BestStore
	Classifier *field.Classifier
	Options    improvement.Options
	Ledger     *history.Ledger
	Hub        *Hub
	Notifier   *Notifier
	Collector  *metrics.Collector
}

// StartOptions are the arguments of the start command
type StartOptions struct {
	// SettleDelay replaces the configured settle delay when positive
	SettleDelay time.Duration
	// Resume continues from the stored best instead of resetting it
	Resume bool
}

// Status is a snapshot of the runner state
type Status struct {
	Running              bool                       `json:"running"`
	SessionID            string                     `json:"sessionId,omitempty"`
	Best                 improvement.BestResult     `json:"best"`
	LastEvent            *improvement.ProgressEvent `json:"lastEvent,omitempty"`
	Passes               int                        `json:"passes"`
	MissedRecalculations int64                      `json:"missedRecalculations"`
}

// Runner owns the page and runs at most one session at a time
type Runner struct {
	deps Deps
	log  *slog.Logger

	mu         sync.Mutex
	classifier *field.Classifier
	session    *improvement.Session
	done       chan struct{}
	sessionID  string
	last       *improvement.ProgressEvent
	passes     int
}

// NewRunner creates a runner
func NewRunner(deps Deps) *Runner {
	if deps.Reader == nil {
		deps.Reader = measure.NewReader(nil)
	}
	if deps.Classifier == nil {
		deps.Classifier = field.DefaultClassifier()
	}
	return &Runner{
		deps:       deps,
		log:        logger.Component("runner"),
		classifier: deps.Classifier,
	}
}

// Start launches a new session in the background and returns its id
func (r *Runner) Start(opts StartOptions) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return "", ErrAlreadyRunning
	}

	sessionOpts := r.deps.Options
	sessionOpts.Resume = opts.Resume
	if r.deps.Collector != nil {
		sessionOpts.Recorder = r.deps.Collector
	}
	s, err := improvement.NewSession(r.deps.Mutator, r.deps.Reader, r.classifier, r.deps.Store, sessionOpts)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	// the override lasts for this session only
	configured := r.deps.Mutator.SettleDelay()
	settle := configured
	if opts.SettleDelay > 0 {
		settle = opts.SettleDelay
		r.deps.Mutator.SetSettleDelay(settle)
	}

	r.session = s
	r.sessionID = s.ID()
	r.done = make(chan struct{})
	r.last = nil
	r.passes = 0
	go r.consume(s, r.done, configured)

	r.log.Info("optimizer started", "session_id", s.ID(), "resume", opts.Resume, "settle_delay", settle)
	return s.ID(), nil
}

func (r *Runner) consume(s *improvement.Session, done chan struct{}, settle time.Duration) {
	defer close(done)
	for ev := range s.Run(context.Background()) {
		r.handle(ev)
	}
	r.deps.Mutator.SetSettleDelay(settle)
	r.mu.Lock()
	if r.session == s {
		r.session = nil
	}
	r.mu.Unlock()
}

func (r *Runner) handle(ev improvement.ProgressEvent) {
	r.mu.Lock()
	last := ev
	r.last = &last
	if ev.Type == improvement.EventPassCompleted {
		r.passes = ev.Pass
	}
	r.mu.Unlock()

	if ev.IsScore() && r.deps.Ledger != nil {
		_, err := r.deps.Ledger.Append(context.Background(), history.Entry{
			SessionID:   ev.SessionID,
			Type:        string(ev.Type),
			Score:       ev.Score,
			Metrics:     ev.Metrics,
			Combination: ev.Combination,
			CreatedAt:   ev.Timestamp,
		})
		if err != nil {
			r.log.Warn("failed to append history entry", "error", err)
		}
	}
	if r.deps.Notifier != nil && (ev.Type == improvement.EventNewBestScore || ev.Type == improvement.EventInitialScore) {
		r.deps.Notifier.Notify(ev)
	}
	if r.deps.Hub != nil {
		r.deps.Hub.Broadcast(ev)
	}
	if ev.Type == improvement.EventStopped {
		r.log.Info("optimizer stopped", "session_id", ev.SessionID, "best", ev.Score, "error", ev.Error)
	}
}

// Stop cancels the running session and waits for it to finish or for ctx
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	s, done := r.session, r.done
	r.mu.Unlock()
	if s == nil {
		return ErrNotRunning
	}
	s.Cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the current session, if any, has finished
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a session is active
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

// Status returns the runner state
func (r *Runner) Status() Status {
	r.mu.Lock()
	st := Status{
		Running:              r.session != nil,
		SessionID:            r.sessionID,
		Passes:               r.passes,
		MissedRecalculations: r.deps.Mutator.MissedRecalculations(),
	}
	if r.last != nil {
		last := *r.last
		st.LastEvent = &last
	}
	r.mu.Unlock()
	st.Best = r.deps.Store.Best()
	return st
}

// Best returns the stored best result
func (r *Runner) Best() improvement.BestResult {
	return r.deps.Store.Best()
}

// ApplyBest writes the stored best combination into the page
func (r *Runner) ApplyBest(ctx context.Context) (measure.Snapshot, error) {
	best := r.deps.Store.Best()
	if !best.Set || len(best.Combination) == 0 {
		return measure.Snapshot{}, ErrNoBest
	}
	return r.apply(ctx, best.Combination)
}

// ApplyHistory writes the combination of a ledger entry into the page
func (r *Runner) ApplyHistory(ctx context.Context, id string) (measure.Snapshot, error) {
	if r.deps.Ledger == nil {
		return measure.Snapshot{}, ErrNoLedger
	}
	entry, err := r.deps.Ledger.Get(ctx, id)
	if err != nil {
		return measure.Snapshot{}, err
	}
	return r.apply(ctx, entry.Combination)
}

func (r *Runner) apply(ctx context.Context, combo field.Combination) (measure.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return measure.Snapshot{}, ErrAlreadyRunning
	}
	snap, err := improvement.Apply(ctx, r.deps.Mutator, r.deps.Reader, r.classifier, r.deps.Options.Discover, combo)
	if err != nil {
		return measure.Snapshot{}, fmt.Errorf("failed to apply values: %w", err)
	}
	r.log.Info("values applied", "fields", len(combo))
	return snap, nil
}

// Reset forgets the stored best result
func (r *Runner) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return ErrAlreadyRunning
	}
	return r.deps.Store.Reset(ctx)
}

// SetClassifier replaces the label table, including for a running session
func (r *Runner) SetClassifier(c *field.Classifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifier = c
	if r.session != nil {
		r.session.SetClassifier(c)
	}
	r.log.Info("classifier updated")
}

// History lists ledger entries, newest first
func (r *Runner) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if r.deps.Ledger == nil {
		return nil, ErrNoLedger
	}
	return r.deps.Ledger.List(ctx, limit)
}

// HistorySummary summarizes the ledger
func (r *Runner) HistorySummary(ctx context.Context) (history.Summary, error) {
	if r.deps.Ledger == nil {
		return history.Summary{}, ErrNoLedger
	}
	return r.deps.Ledger.Summary(ctx)
}

// Hub returns the event hub, nil when not configured
func (r *Runner) Hub() *Hub {
	return r.deps.Hub
}

// Collector returns the metrics collector, nil when not configured
func (r *Runner) Collector() *metrics.Collector {
	return r.deps.Collector
}

// HistoryEntry returns one ledger entry
func (r *Runner) HistoryEntry(ctx context.Context, id string) (history.Entry, error) {
	if r.deps.Ledger == nil {
		return history.Entry{}, ErrNoLedger
	}
	return r.deps.Ledger.Get(ctx, id)
}
