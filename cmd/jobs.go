package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/provider-cli/internal/model"
	"github.com/sells-group/provider-cli/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect validation jobs",
	Long:  "Commands for listing and viewing validation jobs in the configured store.",
}

// -- jobs list --

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		phase, _ := cmd.Flags().GetString("phase")
		limit, _ := cmd.Flags().GetInt("limit")

		list, err := st.ListJobs(ctx, store.JobFilter{Phase: model.JobPhase(phase), Limit: limit})
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}

		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		formatJobsList(os.Stdout, list)
		return nil
	},
}

// -- jobs show --

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show full details of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

func init() {
	jobsListCmd.Flags().String("phase", "", "filter by phase (initializing, validating, completed, failed, ...)")
	jobsListCmd.Flags().Int("limit", 50, "max number of jobs to display")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	rootCmd.AddCommand(jobsCmd)
}

// formatJobsList writes a tabular list of jobs to w.
func formatJobsList(out io.Writer, list []model.Job) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tPHASE\tPROGRESS\tCREATED\tDURATION\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t--------\t-------\t--------\t-----")

	for _, j := range list {
		end := j.UpdatedAt
		if j.CompletedAt != nil {
			end = *j.CompletedAt
		}
		dur := end.Sub(j.CreatedAt).Round(time.Second).String()

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\t%s\n",
			j.ID,
			j.Kind,
			j.Phase,
			j.Progress.Current, j.Progress.Total,
			j.CreatedAt.Format("2006-01-02 15:04"),
			dur,
			truncate(j.Error, 60),
		)
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
