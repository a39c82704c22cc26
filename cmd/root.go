package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var cfg *config.Config

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:     "provider-cli",
	Short:   "Healthcare provider validation pipeline",
	Long:    "Ingests provider rosters and scanned documents, validates each provider against the NPI registry and their website, enriches and scores them, and reports what needs review.",
	Version: version,
	// Errors are logged once in main; usage is only useful for flag mistakes.
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setupRuntime,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

// setupRuntime loads configuration, applies flag overrides and installs
// the global logger before any subcommand runs.
func setupRuntime(cmd *cobra.Command, _ []string) error {
	c, err := config.LoadFile(configPath)
	if err != nil {
		return eris.Wrap(err, "load config")
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if err := config.InitLogger(c.Log); err != nil {
		return eris.Wrap(err, "init logger")
	}
	cfg = c

	zap.L().Debug("runtime ready",
		zap.String("command", cmd.CommandPath()),
		zap.String("version", version),
		zap.String("store", cfg.Store.Driver),
		zap.String("oracle", cfg.Oracle.Provider),
	)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
