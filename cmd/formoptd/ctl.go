package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/control"
)

var (
	ctlAddr        string
	ctlTimeout     time.Duration
	ctlResume      bool
	ctlSettleDelay time.Duration
)

var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Control a running daemon over gRPC",
}

func init() {
	ctlCmd.PersistentFlags().StringVar(&ctlAddr, "addr", "localhost:9090", "Daemon gRPC address")
	ctlCmd.PersistentFlags().DurationVar(&ctlTimeout, "timeout", 30*time.Second, "Request timeout")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a session",
		RunE: withClient(func(ctx context.Context, c *control.Client) (any, error) {
			id, err := c.Start(ctx, control.StartOptions{SettleDelay: ctlSettleDelay, Resume: ctlResume})
			return map[string]any{"sessionId": id}, err
		}),
	}
	startCmd.Flags().BoolVar(&ctlResume, "resume", false, "Continue from the stored best")
	startCmd.Flags().DurationVar(&ctlSettleDelay, "settle-delay", 0, "Override the settle delay")

	ctlCmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Print the daemon status",
			RunE: withClient(func(ctx context.Context, c *control.Client) (any, error) {
				return c.Status(ctx)
			}),
		},
		startCmd,
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the running session",
			RunE: withClient(func(ctx context.Context, c *control.Client) (any, error) {
				return c.Stop(ctx)
			}),
		},
		&cobra.Command{
			Use:   "apply-best",
			Short: "Write the stored best combination into the form",
			RunE: withClient(func(ctx context.Context, c *control.Client) (any, error) {
				return c.ApplyBest(ctx)
			}),
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Forget the stored best result",
			RunE: withClient(func(ctx context.Context, c *control.Client) (any, error) {
				return c.Reset(ctx)
			}),
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Stream progress events until interrupted",
			RunE: func(cmd *cobra.Command, args []string) error {
				conn, err := dialControl()
				if err != nil {
					return err
				}
				defer conn.Close()
				enc := json.NewEncoder(cmd.OutOrStdout())
				return control.NewClient(conn).Watch(cmd.Context(), func(ev map[string]any) error {
					return enc.Encode(ev)
				})
			},
		},
	)
	rootCmd.AddCommand(ctlCmd)
}

func dialControl() (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(ctlAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", ctlAddr, err)
	}
	return conn, nil
}

// withClient runs fn against the daemon and prints its result as JSON
func withClient(fn func(ctx context.Context, c *control.Client) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		conn, err := dialControl()
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), ctlTimeout)
		defer cancel()
		out, err := fn(ctx, control.NewClient(conn))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
}
