package improvement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/form"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/measure"
)

// bench runs mutate → recompute → settle → read cycles against the page.
// Each cycle holds the cycle lock and runs on a context that ignores
// cancellation, so a cycle is never torn and observers never see the inputs
// of a cycle that has not been scored yet.
type bench struct {
	cycle      sync.Mutex
	mutator    *form.Mutator
	reader     *measure.Reader
	objective  ObjectiveFunction
	discover   field.DiscoverOptions
	classifier func() *field.Classifier
	reference  func() measure.Snapshot
	recorder   Recorder
}

// fields lists and classifies the fields currently rendered
func (b *bench) fields(ctx context.Context) ([]field.Descriptor, error) {
	doc, err := b.mutator.Page().HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	fields, err := field.Discover(doc, b.discover)
	if err != nil {
		return nil, err
	}
	return b.classifier().Apply(fields), nil
}

// read scores the metrics currently rendered
func (b *bench) read(ctx context.Context) (Reading, error) {
	snap, err := b.reader.ReadPage(ctx, b.mutator.Page())
	if err != nil {
		return Reading{}, err
	}
	score, ok := b.objective.Evaluate(snap, b.reference())
	return Reading{Score: score, Snapshot: snap, OK: ok}, nil
}

// recomputeLocked presses recalculate, settles and reads. A page without a
// recalculate action yields a non-improving reading.
func (b *bench) recomputeLocked(ctx context.Context, settle time.Duration) (Reading, error) {
	if err := b.mutator.TriggerRecompute(ctx); err != nil {
		if errors.Is(err, form.ErrNoRecalculate) {
			b.recorder.ObserveTrial(false)
			return Reading{}, nil
		}
		return Reading{}, err
	}
	b.mutator.SettleFor(ctx, settle)
	r, err := b.read(ctx)
	if err != nil {
		return Reading{}, err
	}
	b.recorder.ObserveTrial(r.OK)
	return r, nil
}

// recompute runs one cycle without changing any field
func (b *bench) recompute(ctx context.Context) (Reading, error) {
	b.cycle.Lock()
	defer b.cycle.Unlock()
	return b.recomputeLocked(context.WithoutCancel(ctx), b.mutator.SettleDelay())
}

// tryValue writes v into d and scores the result. It returns the value
// actually written after clamping and rounding.
func (b *bench) tryValue(ctx context.Context, d field.Descriptor, v float64) (float64, Reading, error) {
	b.cycle.Lock()
	defer b.cycle.Unlock()
	ctx = context.WithoutCancel(ctx)
	written, err := b.mutator.SetValue(ctx, d, v)
	if err != nil {
		return written, Reading{}, err
	}
	r, err := b.recomputeLocked(ctx, b.mutator.SettleDelay())
	return written, r, err
}

// tryValues writes one value per target then scores the result once
func (b *bench) tryValues(ctx context.Context, targets []field.Descriptor, values []float64, settle time.Duration) ([]float64, Reading, error) {
	b.cycle.Lock()
	defer b.cycle.Unlock()
	ctx = context.WithoutCancel(ctx)
	written := make([]float64, len(targets))
	for i, d := range targets {
		v, err := b.mutator.SetValue(ctx, d, values[i])
		if err != nil {
			return written, Reading{}, err
		}
		written[i] = v
	}
	r, err := b.recomputeLocked(ctx, settle)
	return written, r, err
}

// tryOption selects option on d and scores the result
func (b *bench) tryOption(ctx context.Context, d field.Descriptor, option string) (Reading, error) {
	b.cycle.Lock()
	defer b.cycle.Unlock()
	ctx = context.WithoutCancel(ctx)
	if err := b.mutator.SetChoice(ctx, d, option); err != nil {
		return Reading{}, err
	}
	return b.recomputeLocked(ctx, b.mutator.SettleDelay())
}

// apply writes combo into the page, recomputes and reads
func (b *bench) apply(ctx context.Context, combo field.Combination) (Reading, error) {
	b.cycle.Lock()
	defer b.cycle.Unlock()
	ctx = context.WithoutCancel(ctx)
	fields, err := b.fields(ctx)
	if err != nil {
		return Reading{}, err
	}
	if err := b.mutator.Apply(ctx, fields, combo); err != nil {
		return Reading{}, err
	}
	return b.read(ctx)
}

// observe reads the page and its fields between cycles
func (b *bench) observe(ctx context.Context) (Reading, []field.Descriptor, error) {
	b.cycle.Lock()
	defer b.cycle.Unlock()
	r, err := b.read(ctx)
	if err != nil {
		return Reading{}, nil, err
	}
	fields, err := b.fields(ctx)
	if err != nil {
		return Reading{}, nil, err
	}
	return r, fields, nil
}

// Apply writes combo into the page outside of a session, recomputes and
// returns the metrics read afterwards.
func Apply(ctx context.Context, m *form.Mutator, reader *measure.Reader, classifier *field.Classifier, discover field.DiscoverOptions, combo field.Combination) (measure.Snapshot, error) {
	if classifier == nil {
		classifier = field.DefaultClassifier()
	}
	if reader == nil {
		reader = measure.NewReader(nil)
	}
	b := &bench{
		mutator:    m,
		reader:     reader,
		objective:  &EPSObjective{},
		discover:   discover,
		classifier: func() *field.Classifier { return classifier },
		reference:  func() measure.Snapshot { return measure.Snapshot{} },
		recorder:   nopRecorder{},
	}
	r, err := b.apply(ctx, combo)
	if err != nil {
		return measure.Snapshot{}, err
	}
	return r.Snapshot, nil
}
