package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/utils"
)

// ErrNoRecalculate is returned when the page offers no recalculate action
var ErrNoRecalculate = errors.New("no recalculate action on page")

// MutatorOptions configures value formatting and recomputation
type MutatorOptions struct {
	Precision         int
	SettleDelay       time.Duration
	RecalculateLabels []string
}

// Mutator writes candidate values into a Page and triggers recomputation
type Mutator struct {
	page   Page
	opts   MutatorOptions
	log    *slog.Logger
	sleep  func(ctx context.Context, d time.Duration)
	settle atomic.Int64
	missed atomic.Int64
}

// NewMutator creates a mutator over page
func NewMutator(page Page, opts MutatorOptions) *Mutator {
	if len(opts.RecalculateLabels) == 0 {
		opts.RecalculateLabels = []string{"calculate", "update scores"}
	}
	m := &Mutator{
		page:  page,
		opts:  opts,
		log:   logger.Component("mutator"),
		sleep: sleepUninterrupted,
	}
	m.settle.Store(int64(opts.SettleDelay))
	return m
}

// Page returns the page being driven
func (m *Mutator) Page() Page {
	return m.page
}

// SetSettleDelay changes the delay used by Settle
func (m *Mutator) SetSettleDelay(d time.Duration) {
	m.settle.Store(int64(d))
}

// SettleDelay returns the delay currently used by Settle
func (m *Mutator) SettleDelay() time.Duration {
	return time.Duration(m.settle.Load())
}

// SetSleep replaces the settle wait, for tests that must not block
func (m *Mutator) SetSleep(fn func(ctx context.Context, d time.Duration)) {
	m.sleep = fn
}

// Normalize clamps v into the field range and rounds it to the configured
// precision. Unclassified fields are only rounded.
func (m *Mutator) Normalize(d field.Descriptor, v float64) float64 {
	if d.Class != nil {
		v = d.Class.Clamp(v)
	}
	return utils.Round(v, m.opts.Precision)
}

// Format renders v with the configured fixed number of decimals
func (m *Mutator) Format(v float64) string {
	return strconv.FormatFloat(v, 'f', m.opts.Precision, 64)
}

// SetValue writes a normalized numeric value and returns what was written
func (m *Mutator) SetValue(ctx context.Context, d field.Descriptor, v float64) (float64, error) {
	v = m.Normalize(d, v)
	if err := m.page.SetInput(ctx, d.ID, m.Format(v)); err != nil {
		return v, fmt.Errorf("failed to set %s: %w", d.ID, err)
	}
	return v, nil
}

// SetChoice selects option on a choice field
func (m *Mutator) SetChoice(ctx context.Context, d field.Descriptor, option string) error {
	if err := m.page.SelectOption(ctx, d.ID, option); err != nil {
		return fmt.Errorf("failed to select %s on %s: %w", option, d.ID, err)
	}
	return nil
}

// TriggerRecompute presses the recalculate action. It returns
// ErrNoRecalculate when the page has none; callers treat that trial as
// non-improving.
func (m *Mutator) TriggerRecompute(ctx context.Context) error {
	pressed, err := m.page.PressButton(ctx, m.opts.RecalculateLabels)
	if err != nil {
		return fmt.Errorf("failed to press recalculate: %w", err)
	}
	if !pressed {
		missed := m.missed.Add(1)
		m.log.Warn("recalculate action not found", "labels", m.opts.RecalculateLabels, "missed", missed)
		return ErrNoRecalculate
	}
	return nil
}

// MissedRecalculations returns how many recompute attempts found no action
func (m *Mutator) MissedRecalculations() int64 {
	return m.missed.Load()
}

// Settle waits the settle delay. The wait runs to completion even when ctx
// is cancelled so a mutate/recompute/read cycle is never torn.
func (m *Mutator) Settle(ctx context.Context) {
	m.sleep(ctx, m.SettleDelay())
}

// Apply writes every entry of combo whose field is present on the page and
// differs from the rendered value, then recomputes and settles. Entries for
// fields no longer rendered are ignored. Apply is idempotent.
func (m *Mutator) Apply(ctx context.Context, fields []field.Descriptor, combo field.Combination) error {
	for _, d := range fields {
		e, ok := combo[d.ID]
		if !ok {
			continue
		}
		switch d.Kind {
		case field.KindChoice:
			if e.Option == "" || e.Option == d.Selected || !d.HasOption(e.Option) {
				continue
			}
			if err := m.SetChoice(ctx, d, e.Option); err != nil {
				return err
			}
		default:
			target := m.Normalize(d, e.Value)
			if m.Format(target) == m.Format(d.Value) {
				continue
			}
			if _, err := m.SetValue(ctx, d, target); err != nil {
				return err
			}
		}
	}
	if err := m.TriggerRecompute(ctx); err != nil && !errors.Is(err, ErrNoRecalculate) {
		return err
	}
	m.Settle(ctx)
	return nil
}

// SettleFor waits d instead of the configured delay, with the same
// uninterrupted semantics as Settle.
func (m *Mutator) SettleFor(ctx context.Context, d time.Duration) {
	m.sleep(ctx, d)
}

func sleepUninterrupted(_ context.Context, d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
