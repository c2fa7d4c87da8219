package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sara-platform/portal/internal/presence"
	"github.com/sara-platform/portal/internal/session"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
}

var presenceWorkerCmd = &cobra.Command{
	Use:   "presence",
	Short: "Run the presence sweeper on its own",
	Long:  `Count online users on the configured schedule and publish the figure, without serving HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startPresenceWorker(cmd.Context())
	},
}

var (
	sweepOnce     bool
	sweepStrategy string
)

func startPresenceWorker(ctx context.Context) error {
	deps, err := initializeDependencies(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	if sweepStrategy != "" {
		deps.Config.Presence.Strategy = sweepStrategy
		if err := deps.Config.Presence.Validate(); err != nil {
			return err
		}
	}

	tracker := newTracker(deps, session.NewStore(deps.Redis, deps.Logger))
	sweeper, err := presence.NewSweeper(tracker, deps.Config.Presence.Strategy, deps.Config.Presence.SweepSchedule)
	if err != nil {
		return err
	}

	if sweepOnce {
		online, err := sweeper.Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d users online (%s)\n", online, deps.Config.Presence.Strategy)
		return nil
	}

	deps.Logger.Info("starting presence worker",
		"strategy", deps.Config.Presence.Strategy,
		"schedule", deps.Config.Presence.SweepSchedule,
		"window", deps.Config.Presence.OnlineWindow)
	sweeper.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	deps.Logger.Info("received signal, shutting down presence worker", "signal", sig)

	select {
	case <-sweeper.Stop().Done():
		deps.Logger.Info("presence worker stopped")
	case <-time.After(30 * time.Second):
		deps.Logger.Warn("shutdown timeout reached, forcing exit")
	}
	return nil
}

func init() {
	presenceWorkerCmd.Flags().BoolVar(&sweepOnce, "once", false, "run a single sweep, print the count and exit")
	presenceWorkerCmd.Flags().StringVar(&sweepStrategy, "strategy", "", "timestamp or sessions (overrides config)")

	workerCmd.AddCommand(presenceWorkerCmd)
}
