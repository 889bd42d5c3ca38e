package improvement

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
)

// ErrSessionStarted is reported when Run is called twice on one session
var ErrSessionStarted = errors.New("session already started")

// Run returns the lazy sequence of progress events of the session. The
// search starts when the sequence is first iterated and ends with exactly one
// stopped event. Breaking out of the loop cancels the session.
//
// A session runs once; iterating a second time yields a single stopped event
// carrying ErrSessionStarted.
func (s *Session) Run(ctx context.Context) iter.Seq[ProgressEvent] {
	return func(yield func(ProgressEvent) bool) {
		s.yield = yield
		if !s.started.CompareAndSwap(false, true) {
			s.yieldOne(ProgressEvent{Type: EventStopped, Error: ErrSessionStarted.Error()})
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.cancel = cancel
		s.mu.Unlock()
		defer cancel()
		if s.stopped.Load() {
			cancel()
		}

		var wg sync.WaitGroup
		if s.opts.ObserverInterval > 0 {
			w := NewWatcher(s.bench, s.store, s.opts.ObserverInterval, s.observed)
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.Run(ctx)
			}()
		}

		err := s.run(ctx)

		cancel()
		wg.Wait()

		stopped := ProgressEvent{Type: EventStopped, Score: s.best.Score, Metrics: s.best.Snapshot}
		if err != nil {
			stopped.Error = err.Error()
			s.log.Error("session stopped", "error", err)
		} else {
			s.log.Info("session stopped", "best", s.best.Score)
		}
		s.emit(stopped)
	}
}

func (s *Session) run(ctx context.Context) (err error) {
	// persistence of the flag uses a detached context so a cancelled run
	// still records that it is no longer running
	if err := s.store.SetRunning(context.WithoutCancel(ctx), true); err != nil {
		return err
	}
	defer func() {
		if rerr := s.store.SetRunning(context.WithoutCancel(ctx), false); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if s.opts.Resume {
		best := s.store.Best()
		if best.Set {
			s.best = Reading{Score: best.Score, Snapshot: best.Metrics, OK: true}
			s.bestCombo = best.Combination
			s.hasBest = true
		}
		s.log.Info("resuming session", "best", best.Score, "fields", len(best.Combination))
	} else if err := s.store.Reset(ctx); err != nil {
		return err
	}
	s.stagnation.Mark()

	for pass := 1; ; pass++ {
		if s.isStopped(ctx) {
			return nil
		}
		if err := s.pass(ctx, pass); err != nil {
			return err
		}
		if s.isStopped(ctx) {
			return nil
		}

		if s.stagnation.Stagnant() {
			if err := s.restart(ctx, pass); err != nil {
				return err
			}
		}

		s.recorder.ObservePass()
		if !s.emit(ProgressEvent{Type: EventPassCompleted, Pass: pass, Score: s.best.Score, Metrics: s.best.Snapshot}) {
			return nil
		}
		if s.opts.MaxPasses > 0 && pass >= s.opts.MaxPasses {
			return nil
		}
		if err := s.opts.Sleep(ctx, s.opts.InterPassDelay); err != nil {
			return nil
		}
	}
}

// pass re-applies the best combination, scores the page and searches every
// field once in page order
func (s *Session) pass(ctx context.Context, pass int) error {
	var (
		r   Reading
		err error
	)
	s.adoptStored()
	if len(s.bestCombo) > 0 {
		r, err = s.bench.apply(ctx, s.bestCombo)
	} else {
		r, err = s.bench.recompute(ctx)
	}
	if err != nil {
		return err
	}

	fields, err := s.bench.fields(ctx)
	if err != nil {
		return err
	}
	current := field.Capture(fields)

	if beats(r, s.best) {
		if err := s.improve(ctx, r, current, ""); err != nil {
			return err
		}
	}
	incumbent := r
	if s.hasBest {
		incumbent = s.best
	}
	s.log.Debug("pass started", "pass", pass, "fields", len(fields), "score", r.Score, "ok", r.OK)

	for _, d := range fields {
		if s.isStopped(ctx) {
			return nil
		}
		if d.Kind == field.KindChoice && !s.opts.OptimizeChoices {
			continue
		}
		if d.Kind == field.KindNumeric && !d.Classified() {
			s.log.Debug("skipping unclassified field", "field", d.ID, "label", d.Label)
			continue
		}

		onImprove := func(value float64, option string, r Reading) error {
			current.Set(d, value, option)
			return s.improve(ctx, r, current, d.ID)
		}

		var res FieldResult
		if d.Kind == field.KindChoice {
			options := make([]string, len(d.Options))
			for i, o := range d.Options {
				options[i] = o.Value
			}
			trial := func(ctx context.Context, option string) (Reading, error) {
				return s.bench.tryOption(ctx, d, option)
			}
			res, err = s.choices.Optimize(ctx, d.ID, d.Selected, options, incumbent, trial, onImprove)
		} else {
			trial := func(ctx context.Context, v float64) (float64, Reading, error) {
				return s.bench.tryValue(ctx, d, v)
			}
			res, err = s.local.Optimize(ctx, d, incumbent, trial, onImprove)
		}
		if err != nil {
			return err
		}
		if res.Improved {
			incumbent = res.Best
		}
		if res.Cancelled {
			return nil
		}
		if !s.emit(ProgressEvent{
			Type:     EventFieldConverged,
			Field:    d.ID,
			Pass:     pass,
			Score:    s.best.Score,
			Metrics:  s.best.Snapshot,
			Improved: res.Improved,
		}) {
			return nil
		}
	}
	return nil
}

// restart runs the restart strategy after the search has stagnated
func (s *Session) restart(ctx context.Context, pass int) error {
	s.log.Info("search stagnated, restarting", "since_improvement", s.stagnation.Since(), "strategy", s.opts.Restart.Name())
	if !s.emit(ProgressEvent{Type: EventRestartTriggered, Pass: pass, Score: s.best.Score}) {
		return nil
	}

	fields, err := s.bench.fields(ctx)
	if err != nil {
		return err
	}
	res, err := s.opts.Restart.Restart(ctx, s.bench, fields, s.best, s.bestCombo)
	if err != nil {
		return err
	}
	s.recorder.ObserveRestart(res.Improved)
	if res.Improved {
		if err := s.improve(ctx, res.Best, res.Combination, ""); err != nil {
			return err
		}
	}
	s.emit(ProgressEvent{
		Type:     EventRestartFinished,
		Pass:     pass,
		Attempt:  res.Attempts,
		Improved: res.Improved,
		Score:    s.best.Score,
		Metrics:  s.best.Snapshot,
	})
	return nil
}

// Best returns the best result recorded so far
func (s *Session) Best() BestResult {
	return s.store.Best()
}
