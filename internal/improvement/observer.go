package improvement

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
)

// Watcher passively polls the page between search cycles. Every change of
// score is reported as a new_score event, and a strictly better score is
// recorded into the store together with the values on the page. It never
// writes to the page.
type Watcher struct {
	bench   *bench
	store   *BestStore
	limiter *rate.Limiter
	out     chan<- ProgressEvent
	log     *slog.Logger

	last    float64
	hasLast bool
}

// NewWatcher creates a watcher polling at most once per interval
func NewWatcher(b *bench, store *BestStore, interval time.Duration, out chan<- ProgressEvent) *Watcher {
	return &Watcher{
		bench:   b,
		store:   store,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		out:     out,
		log:     logger.Component("watcher"),
	}
}

// Run polls until ctx is done
func (w *Watcher) Run(ctx context.Context) {
	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		w.poll(ctx)
	}
}

func (w *Watcher) poll(ctx context.Context) {
	r, fields, err := w.bench.observe(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Debug("observation failed", "error", err)
		}
		return
	}
	if !r.OK || (w.hasLast && r.Score == w.last) {
		return
	}
	w.last = r.Score
	w.hasLast = true

	combo := field.Capture(fields)
	recorded, err := w.store.RecordIfBetter(context.WithoutCancel(ctx), r.Score, combo, r.Snapshot)
	if err != nil {
		w.log.Warn("failed to record observed score", "error", err)
	}
	if recorded {
		w.log.Info("observed better score", "score", r.Score)
	}

	select {
	case w.out <- ProgressEvent{Type: EventNewScore, Score: r.Score, Metrics: r.Snapshot, Combination: combo, Timestamp: time.Now()}:
	default:
		w.log.Debug("dropping observed score, consumer is behind", "score", r.Score)
	}
}
