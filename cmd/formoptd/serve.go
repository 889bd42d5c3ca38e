package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/control"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/config"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
)

var (
	serveResume bool
	serveStart  bool
	httpAddr    string
	grpcAddr    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the optimizer daemon with HTTP and gRPC control",
	Long: `Serves the control plane. Sessions are started and stopped over HTTP
(/v1/optimizer:start) or gRPC. With --resume a session that was running when
the daemon last exited is continued from the stored best.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveResume, "resume", false, "Continue a session that was running at the last exit")
	serveCmd.Flags().BoolVar(&serveStart, "start", false, "Start a session immediately")
	serveCmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides server.http_addr)")
	serveCmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (overrides server.grpc_addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if httpAddr != "" {
		cfg.Server.HTTPAddr = httpAddr
	}
	if grpcAddr != "" {
		cfg.Server.GRPCAddr = grpcAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	wasRunning := a.store.Best().Running
	switch {
	case serveResume && wasRunning:
		id, err := a.runner.Start(control.StartOptions{Resume: true})
		if err != nil {
			return err
		}
		logger.Info("resumed interrupted session", "session_id", id)
	case serveStart:
		id, err := a.runner.Start(control.StartOptions{Resume: serveResume})
		if err != nil {
			return err
		}
		logger.Info("session started", "session_id", id)
	case wasRunning:
		logger.Info("previous session was interrupted; pass --resume to continue it")
	}

	// TODO: Configure gRPC server security (e.g., TLS, authentication)
	// before exposing the control plane beyond localhost.
	grpcServer := grpc.NewServer()
	control.RegisterControlServer(grpcServer, control.NewGRPCServer(a.runner))
	grpcLis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen for gRPC", "addr", cfg.Server.GRPCAddr, "error", err)
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           control.NewHTTPServer(a.runner).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gRPC server listening", "addr", cfg.Server.GRPCAddr)
		return grpcServer.Serve(grpcLis)
	})
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if configPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, configPath, func(next *config.Config) {
				a.runner.SetClassifier(field.NewClassifier(next.Classifier))
				if !cmd.Flags().Changed("log-level") {
					logger.SetLevel(next.LogLevel)
				}
				logger.Info("config reloaded", "path", configPath, "log_level", logger.Level())
			}, func(err error) {
				logger.Warn("config reload failed", "path", configPath, "error", err)
			})
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.runner.Stop(shutdownCtx); err != nil && !errors.Is(err, control.ErrNotRunning) {
			logger.Warn("optimizer did not stop cleanly", "error", err)
		}

		grpcServer.GracefulStop()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Error("server error", "error", err)
		return err
	}
	return nil
}
