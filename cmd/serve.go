package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/api"
	"github.com/sells-group/provider-cli/internal/jobs"
	"github.com/sells-group/provider-cli/internal/oracle"
)

const shutdownTimeout = 30 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the job API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		dispatcher, shutdownDispatcher, err := initDispatcher(env)
		if err != nil {
			return err
		}

		manager := jobs.NewManager(env.Store, dispatcher)
		if cfg.Jobs.Dispatcher != "temporal" {
			n, err := manager.RecoverInterrupted(ctx)
			if err != nil {
				zap.L().Warn("could not recover interrupted jobs", zap.Error(err))
			} else if n > 0 {
				zap.L().Info("failed jobs interrupted by restart", zap.Int("count", n))
			}
		}

		server := api.New(manager, serverOptions(env)...)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           server.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		done := make(chan struct{})
		go func() {
			defer close(done)
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
			if err := shutdownDispatcher(shutdownCtx); err != nil {
				zap.L().Warn("dispatcher shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("dispatcher", cfg.Jobs.Dispatcher))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		<-done

		return nil
	},
}

// initDispatcher returns the configured dispatcher and its shutdown func.
func initDispatcher(env *appEnv) (jobs.Dispatcher, func(context.Context) error, error) {
	switch cfg.Jobs.Dispatcher {
	case "temporal":
		c, err := jobs.DialTemporal(cfg.Temporal)
		if err != nil {
			return nil, nil, err
		}
		return jobs.NewTemporalDispatcher(c, cfg.Temporal), func(context.Context) error {
			c.Close()
			return nil
		}, nil
	case "local", "":
		d := jobs.NewLocalDispatcher(env.Runner, cfg.Jobs.MaxConcurrent)
		return d, d.Shutdown, nil
	default:
		return nil, nil, eris.Errorf("unknown jobs.dispatcher %q", cfg.Jobs.Dispatcher)
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// serverOptions leaves chat unset when no oracle is configured so the
// endpoint reports 503 instead of an upstream failure.
func serverOptions(env *appEnv) []api.Option {
	opts := []api.Option{api.WithUploads(cfg.Jobs.UploadDir, cfg.Jobs.MaxUploadMB<<20)}
	if _, disabled := env.Oracle.(oracle.Disabled); !disabled {
		opts = append(opts, api.WithChat(env.Chat()))
	}
	return opts
}
