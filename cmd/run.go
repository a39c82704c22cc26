package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/export"
	"github.com/sells-group/provider-cli/internal/ingest"
	"github.com/sells-group/provider-cli/internal/model"
	"github.com/sells-group/provider-cli/internal/report"
)

var (
	runKind   string
	runExport string
	runFormat string
)

var runCmd = &cobra.Command{
	Use:   "run <source>",
	Short: "Validate a provider file in the foreground and print the report",
	Long:  "Runs one job synchronously. The source may be a local path or an http(s):// or ftp:// URL.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source := args[0]

		kind, err := resolveKind(source, runKind)
		if err != nil {
			return err
		}
		format, err := export.ParseFormat(runFormat)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Store.CreateJob(ctx, kind, source)
		if err != nil {
			return eris.Wrap(err, "create job")
		}

		err = env.Runner.RunWithProgress(ctx, job.ID, func(p model.Progress) {
			zap.L().Info("validated", zap.Int("current", p.Current), zap.Int("total", p.Total))
		})
		if err != nil {
			return eris.Wrap(err, "run job")
		}

		job, err = env.Store.GetJob(ctx, job.ID)
		if err != nil {
			return eris.Wrap(err, "load job")
		}
		if job.Phase != model.JobPhaseCompleted {
			return eris.Errorf("job %s failed: %s", job.ID, job.Error)
		}

		fmt.Fprint(os.Stdout, report.Format(job.Result.Report))

		if runExport != "" {
			if err := writeExportFile(runExport, format, export.Rows(job.Result.Outcomes)); err != nil {
				return err
			}
			zap.L().Info("results exported", zap.String("path", runExport))
		}
		return nil
	},
}

// resolveKind returns the explicit kind or infers it from the source name.
func resolveKind(source, explicit string) (model.InputKind, error) {
	if explicit != "" {
		k := model.InputKind(explicit)
		if !k.Valid() {
			return "", eris.Errorf("unknown kind %q (want tabular or document)", explicit)
		}
		return k, nil
	}
	return ingest.KindFor(source)
}

func writeExportFile(path string, format export.Format, rows []export.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create export file")
	}
	if err := export.Write(f, format, rows); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "write export")
	}
	return f.Close()
}

func init() {
	runCmd.Flags().StringVar(&runKind, "kind", "", "input kind: tabular or document (default inferred from extension)")
	runCmd.Flags().StringVar(&runExport, "export", "", "write flattened results to this file")
	runCmd.Flags().StringVar(&runFormat, "format", "csv", "export format: csv or xlsx")
	rootCmd.AddCommand(runCmd)
}
