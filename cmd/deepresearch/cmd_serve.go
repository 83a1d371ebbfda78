package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/viant/deepresearch/internal/logging"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and processor until interrupted",
	Long: `Runs the periodic scheduler, the single investigation worker, the
notification relay and the clarification sweep. A task interrupted by
shutdown stays in_progress and is recovered once its lock goes stale.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	srv, closer, err := open(cmd)
	if err != nil {
		return err
	}
	defer closer()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Runtime().Start(ctx); err != nil {
		return err
	}
	cfg := srv.Config()
	logging.Named("cli").Info("serving",
		zap.String("store", cfg.Store.Kind),
		zap.Int("tickIntervalMinutes", cfg.TickIntervalMinutes),
		zap.String("reports", cfg.Reports.BaseURL))
	<-ctx.Done()
	return nil
}
