package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/form/sim"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
)

var simformAddr string

var simformCmd = &cobra.Command{
	Use:   "simform",
	Short: "Serve the simulated decision form over HTTP",
	Long: `Serves the simulated camera company decision form so the browser driver
(form.driver: browser) can be exercised without the real host site.`,
	RunE: runSimform,
}

func init() {
	simformCmd.Flags().StringVar(&simformAddr, "addr", ":8081", "Listen address")
	rootCmd.AddCommand(simformCmd)
}

func runSimform(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              simformAddr,
		Handler:           sim.New().Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("simulated form listening", "addr", simformAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
