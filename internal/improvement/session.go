package improvement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/form"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/measure"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/config"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/utils"
)

// Options configures a Session
type Options struct {
	Objective         ObjectiveFunction
	Steps             []float64
	BroadSweep        bool
	OptimizeChoices   bool
	Precision         int
	InterPassDelay    time.Duration
	StagnationTimeout time.Duration
	// MaxPasses stops the session after that many passes; 0 runs until cancelled.
	MaxPasses int
	Restart   RestartStrategy
	Discover  field.DiscoverOptions
	// Resume continues from the stored best instead of resetting it.
	Resume bool
	// ObserverInterval enables the passive watcher when positive.
	ObserverInterval time.Duration
	Recorder         Recorder
	Clock            func() time.Time
	// Sleep waits between passes and must return early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// OptionsFromConfig builds session options from the daemon configuration
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	objective, err := NewObjectiveFunction(cfg.Search.Objective)
	if err != nil {
		return Options{}, err
	}
	interPass, err := cfg.Search.GetInterPassDelay()
	if err != nil {
		return Options{}, fmt.Errorf("invalid inter_pass_delay: %w", err)
	}
	stagnation, err := cfg.Search.GetStagnationTimeout()
	if err != nil {
		return Options{}, fmt.Errorf("invalid stagnation_timeout: %w", err)
	}
	restart, err := NewRestartStrategy(cfg.Restart)
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		Objective:         objective,
		Steps:             cfg.Search.Steps,
		BroadSweep:        cfg.Search.BroadSweep,
		OptimizeChoices:   cfg.Search.OptimizeChoices,
		Precision:         cfg.Search.Precision,
		InterPassDelay:    interPass,
		StagnationTimeout: stagnation,
		MaxPasses:         cfg.Search.MaxPasses,
		Restart:           restart,
		Discover: field.DiscoverOptions{
			InputClass:        cfg.Form.InputClass,
			IgnoreSelectClass: cfg.Form.IgnoreSelectClass,
		},
	}
	if cfg.Observer.Enabled {
		if opts.ObserverInterval, err = cfg.Observer.GetPollInterval(); err != nil {
			return Options{}, fmt.Errorf("invalid poll_interval: %w", err)
		}
	}
	return opts, nil
}

// Session is one optimization run over a page. It owns the search state
// (best reading, best combination, time of last improvement) for its
// lifetime; Cancel is the single way to stop it.
type Session struct {
	id         string
	bench      *bench
	store      *BestStore
	opts       Options
	local      *LocalSearch
	choices    *ChoiceSearch
	stagnation *StagnationDetector
	classifier atomic.Pointer[field.Classifier]
	recorder   Recorder
	log        *slog.Logger

	stopped atomic.Bool
	started atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc

	observed     chan ProgressEvent
	yield        func(ProgressEvent) bool
	consumerGone bool

	best      Reading
	bestCombo field.Combination
	hasBest   bool
}

// NewSession wires a session over a mutator and reader
func NewSession(m *form.Mutator, reader *measure.Reader, classifier *field.Classifier, store *BestStore, opts Options) (*Session, error) {
	if opts.Objective == nil {
		opts.Objective = &EPSObjective{}
	}
	if opts.Restart == nil {
		opts.Restart = NewRandomRestart(10, 2*time.Second, nil)
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if classifier == nil {
		classifier = field.DefaultClassifier()
	}
	if reader == nil {
		reader = measure.NewReader(nil)
	}
	local, err := NewLocalSearch(opts.Steps, opts.BroadSweep, NewStepExplorer(opts.Precision))
	if err != nil {
		return nil, err
	}

	id := utils.NewSessionID()
	s := &Session{
		id:         id,
		store:      store,
		opts:       opts,
		local:      local,
		choices:    &ChoiceSearch{},
		stagnation: NewStagnationDetector(opts.StagnationTimeout, opts.Clock),
		recorder:   opts.Recorder,
		log:        logger.Component("session").With("session_id", id),
		observed:   make(chan ProgressEvent, 64),
		bestCombo:  make(field.Combination),
	}
	s.classifier.Store(classifier)
	s.bench = &bench{
		mutator:    m,
		reader:     reader,
		objective:  opts.Objective,
		discover:   opts.Discover,
		classifier: s.classifier.Load,
		reference:  func() measure.Snapshot { return store.Best().Metrics },
		recorder:   opts.Recorder,
	}
	return s, nil
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// SetClassifier swaps the label table used from the next field discovery on
func (s *Session) SetClassifier(c *field.Classifier) {
	s.classifier.Store(c)
}

// Cancel stops the session at the next cancellation point and stops the
// watcher. It is safe to call from any goroutine, any number of times.
func (s *Session) Cancel() {
	s.stopped.Store(true)
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stopped reports whether Cancel has been called
func (s *Session) Stopped() bool {
	return s.stopped.Load()
}

func (s *Session) isStopped(ctx context.Context) bool {
	return s.stopped.Load() || ctx.Err() != nil
}

// emit hands pending watcher events and then ev to the consumer. It returns
// false once the consumer has stopped iterating.
func (s *Session) emit(ev ProgressEvent) bool {
	for {
		select {
		case o := <-s.observed:
			if !s.yieldOne(o) {
				return false
			}
			continue
		default:
		}
		break
	}
	return s.yieldOne(ev)
}

func (s *Session) yieldOne(ev ProgressEvent) bool {
	if s.consumerGone {
		return false
	}
	ev.SessionID = s.id
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.opts.Clock()
	}
	if !s.yield(ev) {
		s.consumerGone = true
		s.Cancel()
		return false
	}
	return true
}

// improve adopts r as the search incumbent with combination combo and offers
// it to the store. The first reading of a fresh session is reported as
// initial_score; later readings are reported as new_best_score only when the
// store accepts them, so reported bests never fall below the recorded best.
func (s *Session) improve(ctx context.Context, r Reading, combo field.Combination, fieldID string) error {
	s.adoptStored()
	if s.hasBest && !(r.Score > s.best.Score) {
		return nil
	}
	initial := !s.hasBest
	recorded, err := s.store.RecordIfBetter(context.WithoutCancel(ctx), r.Score, combo, r.Snapshot)
	if err != nil {
		return err
	}
	s.best = r
	s.bestCombo = combo.Clone()
	s.hasBest = true
	s.stagnation.Mark()
	if recorded {
		s.recorder.ObserveBest(r.Score)
	}

	typ := EventNewBestScore
	switch {
	case initial:
		typ = EventInitialScore
	case !recorded:
		s.log.Debug("improved below the recorded best", "score", r.Score, "field", fieldID)
		return nil
	}
	s.log.Info("new best score", "type", typ, "score", r.Score, "field", fieldID, "recorded", recorded)
	s.emit(ProgressEvent{
		Type:        typ,
		Score:       r.Score,
		Metrics:     r.Snapshot,
		Combination: combo.Clone(),
		Field:       fieldID,
	})
	return nil
}

// adoptStored takes over the store's best when it beats the incumbent, as
// happens when the watcher records a hand-edited page. It reports whether
// the incumbent changed.
func (s *Session) adoptStored() bool {
	if !s.hasBest {
		return false
	}
	b := s.store.Best()
	if !b.Set || !(b.Score > s.best.Score) {
		return false
	}
	s.log.Info("adopting recorded best", "score", b.Score, "previous", s.best.Score)
	s.best = Reading{Score: b.Score, Snapshot: b.Metrics, OK: true}
	s.bestCombo = b.Combination
	s.stagnation.Mark()
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
