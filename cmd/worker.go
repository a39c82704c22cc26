package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/jobs"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a Temporal worker that executes submitted jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := jobs.DialTemporal(cfg.Temporal)
		if err != nil {
			return err
		}
		defer c.Close()

		w := jobs.NewWorker(c, cfg.Temporal.TaskQueue, env.Runner, cfg.Jobs.MaxConcurrent)
		if err := w.Start(); err != nil {
			return eris.Wrap(err, "start worker")
		}
		zap.L().Info("worker started",
			zap.String("task_queue", cfg.Temporal.TaskQueue),
			zap.String("namespace", cfg.Temporal.Namespace),
		)

		<-ctx.Done()
		zap.L().Info("stopping worker")
		w.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
