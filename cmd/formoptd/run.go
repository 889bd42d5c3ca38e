package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/control"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/improvement"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
)

var (
	runResume      bool
	runMaxPasses   int
	runSettleDelay time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one optimization session in the foreground",
	Long: `Runs a session against the configured form and prints every progress
event as a JSON line on stdout. Interrupt to stop; the best combination found
so far stays in the state store.`,
	RunE: runForeground,
}

func init() {
	runCmd.Flags().BoolVar(&runResume, "resume", false, "Continue from the stored best instead of resetting it")
	runCmd.Flags().IntVar(&runMaxPasses, "max-passes", -1, "Stop after this many passes (0 runs until interrupted, -1 uses the config)")
	runCmd.Flags().DurationVar(&runSettleDelay, "settle-delay", 0, "Override the settle delay after each recompute")
	rootCmd.AddCommand(runCmd)
}

func runForeground(cmd *cobra.Command, args []string) error {
	if runMaxPasses >= 0 {
		cfg.Search.MaxPasses = runMaxPasses
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	events, cancel := a.hub.Subscribe(1024)
	defer cancel()
	if _, err := a.runner.Start(control.StartOptions{SettleDelay: runSettleDelay, Resume: runResume}); err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		_ = a.runner.Wait(context.Background())
		close(done)
	}()

	enc := json.NewEncoder(cmd.OutOrStdout())
	emit := func(ev improvement.ProgressEvent) (bool, error) {
		if err := enc.Encode(ev); err != nil {
			return true, err
		}
		if ev.Type == improvement.EventStopped {
			return true, stoppedError(&ev)
		}
		return false, nil
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("interrupted, stopping session")
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
			err := a.runner.Stop(stopCtx)
			cancelStop()
			if err != nil && !errors.Is(err, control.ErrNotRunning) {
				return err
			}
			return nil
		case ev := <-events:
			if finished, err := emit(ev); finished {
				return err
			}
		case <-done:
			// everything the session emitted is buffered by now
			for {
				select {
				case ev := <-events:
					if finished, err := emit(ev); finished {
						return err
					}
				default:
					logger.Warn("stopped event was dropped")
					return stoppedError(a.runner.Status().LastEvent)
				}
			}
		}
	}
}

func stoppedError(ev *improvement.ProgressEvent) error {
	if ev != nil && ev.Error != "" {
		return errors.New(ev.Error)
	}
	return nil
}
