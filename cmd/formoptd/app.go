package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/control"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/form"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/form/browser"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/form/sim"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/history"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/improvement"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/measure"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/metrics"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/persist"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/config"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
)

// app holds everything a command needs to drive the form
type app struct {
	runner   *control.Runner
	store    *improvement.BestStore
	hub      *control.Hub
	notifier *control.Notifier
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// openStore opens the persisted best record, in memory when no path is set
func openStore(cfg *config.Config) (persist.Store, error) {
	if cfg.Storage.StatePath == "" {
		return persist.NewMemoryStore(), nil
	}
	return persist.OpenBadger(cfg.Storage.StatePath, logger.Component("badger"))
}

// openPage opens the configured form driver
func openPage(ctx context.Context, cfg *config.Config) (form.Page, func(), error) {
	switch cfg.Form.Driver {
	case "sim", "":
		return sim.New(), func() {}, nil
	case "browser":
		p, err := browser.Open(ctx, cfg.Form.URL, cfg.Form.Headless)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown form driver %q", cfg.Form.Driver)
	}
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	opts, err := improvement.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	settle, err := cfg.Search.GetSettleDelay()
	if err != nil {
		return nil, fmt.Errorf("invalid settle_delay: %w", err)
	}

	page, closePage, err := openPage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closePage)
	mutator := form.NewMutator(page, form.MutatorOptions{
		Precision:         cfg.Search.Precision,
		SettleDelay:       settle,
		RecalculateLabels: cfg.Form.RecalculateLabels,
	})

	backing, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := backing.Close(); err != nil {
			logger.Warn("failed to close state store", "error", err)
		}
	})
	a.store, err = improvement.NewBestStore(ctx, backing)
	if err != nil {
		return nil, err
	}

	var ledger *history.Ledger
	if cfg.Storage.HistoryPath != "" {
		ledger, err = history.Open(cfg.Storage.HistoryPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := ledger.Close(); err != nil {
				logger.Warn("failed to close history ledger", "error", err)
			}
		})
	}

	a.hub = control.NewHub()
	a.closers = append(a.closers, a.hub.Close)
	a.notifier = control.NewNotifier(cfg.Notify)
	a.closers = append(a.closers, a.notifier.Close)

	a.runner = control.NewRunner(control.Deps{
		Mutator:    mutator,
		Reader:     measure.NewReader(cfg.Measures),
		Store:      a.store,
		Classifier: field.NewClassifier(cfg.Classifier),
		Options:    opts,
		Ledger:     ledger,
		Hub:        a.hub,
		Notifier:   a.notifier,
		Collector:  metrics.NewCollector(func() float64 { return float64(mutator.MissedRecalculations()) }),
	})
	// stop a running session before the page and stores close
	a.closers = append(a.closers, func() {
		if err := a.runner.Stop(context.Background()); err != nil && !errors.Is(err, control.ErrNotRunning) {
			logger.Warn("failed to stop optimizer", "error", err)
		}
	})
	return a, nil
}
