package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/mc-extractor/internal/classify"
	"github.com/sells-group/mc-extractor/internal/sink"
	"github.com/sells-group/mc-extractor/internal/store"
)

var (
	exportCSV  string
	exportXLSX string
	exportAll  bool
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Re-export a recorded run to CSV and/or XLSX",
	Long:  "Writes the rows of a recorded run to new output files. Failed rows are skipped unless --all is set.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("runs"); err != nil {
			return err
		}
		if exportCSV == "" && exportXLSX == "" {
			return eris.New("export: --csv or --xlsx is required")
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := exportRun(ctx, st, args[0], exportCSV, exportXLSX, exportAll)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "Exported %d rows from run %s\n", n, truncateID(args[0]))
		return nil
	},
}

// exportRun copies a run's rows into fresh sinks and returns how many were
// written.
func exportRun(ctx context.Context, st store.Store, runID, csvPath, xlsxPath string, all bool) (int, error) {
	if _, err := st.GetRun(ctx, runID); err != nil {
		return 0, eris.Wrap(err, "export")
	}
	rows, err := st.ListRows(ctx, store.RowFilter{RunID: runID})
	if err != nil {
		return 0, eris.Wrap(err, "export")
	}

	var sinks []sink.Sink
	if csvPath != "" {
		s, err := sink.NewCSV(csvPath)
		if err != nil {
			return 0, err
		}
		sinks = append(sinks, s)
	}
	if xlsxPath != "" {
		s, err := sink.NewXLSX(xlsxPath)
		if err != nil {
			sink.Multi(sinks...).Close() //nolint:errcheck
			return 0, err
		}
		sinks = append(sinks, s)
	}
	out := sink.Multi(sinks...)

	written := 0
	for _, row := range rows {
		if !all && !classify.Persist(row.Tier) {
			continue
		}
		if err := out.Write(row); err != nil {
			out.Close() //nolint:errcheck
			return written, err
		}
		written++
	}
	if err := out.Close(); err != nil {
		return written, err
	}
	return written, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportCSV, "csv", "", "CSV output path")
	exportCmd.Flags().StringVar(&exportXLSX, "xlsx", "", "XLSX output path")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "include Failed rows")
	rootCmd.AddCommand(exportCmd)
}
