package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/mc-extractor/internal/model"
	"github.com/sells-group/mc-extractor/internal/sink"
	"github.com/sells-group/mc-extractor/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect extraction run history",
	Long:  "Commands for listing runs and viewing their rows, including rows never written to the CSV.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("runs")
	},
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List extraction runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			_, _ = fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}
		sink.RenderSummary(os.Stdout, run)
		return nil
	},
}

// -- runs rows --

var runsRowsCmd = &cobra.Command{
	Use:   "rows <run-id>",
	Short: "Show the result rows of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := st.GetRun(ctx, args[0]); err != nil {
			return eris.Wrap(err, "runs rows")
		}

		tierFlag, _ := cmd.Flags().GetString("tier")
		filter := store.RowFilter{RunID: args[0]}
		if tierFlag != "" {
			tier, ok := model.ParseTier(tierFlag)
			if !ok {
				return eris.Errorf("runs rows: unknown tier %q", tierFlag)
			}
			filter.Tier = tier
		}
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		rows, err := st.ListRows(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs rows")
		}
		sink.RenderTable(os.Stdout, rows)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, completed, stopped, errored)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsShowCmd.Flags().Bool("json", false, "print the run as JSON")

	runsRowsCmd.Flags().String("tier", "", `filter by status tier (e.g. "Success", "Manual Check")`)
	runsRowsCmd.Flags().Int("limit", 0, "max number of rows (0 for all)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsRowsCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a table of runs to out.
func formatRunsList(out io.Writer, runs []model.Run) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Source", "Status", "Processed", "Saved", "Started", "Duration"})

	for _, r := range runs {
		t.AppendRow(table.Row{
			truncateID(r.ID),
			r.Source,
			string(r.Status),
			fmt.Sprintf("%d/%d", r.Processed, r.Total),
			r.Persisted,
			r.StartedAt.Format("2006-01-02 15:04"),
			runDuration(r),
		})
	}
	t.Render()
}

// runDuration is the elapsed time of a finished run, or "-" while it runs.
func runDuration(r model.Run) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
