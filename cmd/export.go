package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/provider-cli/internal/export"
	"github.com/sells-group/provider-cli/internal/jobs"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export <job-id>",
	Short: "Export a completed job's results as CSV or XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rows, err := jobs.NewManager(st, nil).Export(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "export")
		}

		if exportOut == "" {
			return export.Write(os.Stdout, format, rows)
		}
		return writeExportFile(exportOut, format, rows)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "export format: csv or xlsx")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
