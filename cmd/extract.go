package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/mc-extractor/internal/batch"
	"github.com/sells-group/mc-extractor/internal/model"
	"github.com/sells-group/mc-extractor/internal/sink"
	"github.com/sells-group/mc-extractor/internal/worklist"
)

const (
	defaultRangeStart = 1706527
	defaultRangeEnd   = 1706530
)

var (
	extractStart  int
	extractEnd    int
	extractList   string
	extractCSV    string
	extractXLSX   string
	extractDryRun bool
	extractQuiet  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract carrier contacts for a range or list of MC numbers",
	Long: "Searches SAFER for each MC number in order, applies the eligibility gates, " +
		"and appends every non-failed result to the CSV as it is produced. " +
		"Ctrl-C stops after the MC number in flight.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		wl, err := extractWorklist(extractList, extractStart, extractEnd, cfg.Batch.MaxRange)
		if err != nil {
			return err
		}
		if extractDryRun {
			previewWorklist(os.Stdout, wl)
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		csvPath := firstNonEmpty(extractCSV, cfg.Output.CSVPath)
		unlock, err := lockOutput(csvPath)
		if err != nil {
			return err
		}
		defer unlock()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		pipe, err := newPipeline(cfg.Pipeline)
		if err != nil {
			return err
		}

		out, err := openSinks(csvPath, firstNonEmpty(extractXLSX, cfg.Output.XLSXPath))
		if err != nil {
			return err
		}

		orch := batch.New(batchConfig(), sessionFactory(cfg.Session), pipe, out, recorder(st))

		events := make(chan model.Event)
		var (
			g    errgroup.Group
			run  *model.Run
			rows []model.ResultRow
		)
		g.Go(func() error {
			rows = followRun(events, wl.Len(), os.Stderr, !extractQuiet)
			return nil
		})
		g.Go(func() error {
			var err error
			run, err = orch.Run(ctx, wl, events)
			return err
		})
		runErr := g.Wait()

		if err := out.Close(); err != nil && runErr == nil {
			runErr = err
		}
		if runErr != nil {
			return runErr
		}

		if !extractQuiet {
			sink.RenderTable(os.Stdout, rows)
		}
		sink.RenderSummary(os.Stdout, run)
		zap.L().Info("extract finished",
			zap.String("run_id", run.ID),
			zap.String("status", string(run.Status)),
			zap.String("csv", csvPath),
		)

		if run.Status == model.RunStatusErrored {
			return eris.Errorf("extract: run %s ended with error: %s", run.ID, run.Error)
		}
		return nil
	},
}

// extractWorklist picks the list file when given, else the range.
func extractWorklist(list string, start, end, maxRange int) (worklist.Worklist, error) {
	if list != "" {
		return worklist.FromFile(list)
	}
	return worklist.FromRangeMax(start, end, maxRange)
}

// previewWorklist prints what a run would process without opening a page
// session.
func previewWorklist(w io.Writer, wl worklist.Worklist) {
	const shown = 10
	_, _ = fmt.Fprintf(w, "Source: %s\n", wl.Source)
	_, _ = fmt.Fprintf(w, "MC numbers: %d\n", wl.Len())
	nums := make([]string, 0, shown)
	for i, mc := range wl.Numbers {
		if i == shown {
			break
		}
		nums = append(nums, mc.String())
	}
	line := strings.Join(nums, ", ")
	if wl.Len() > shown {
		line += fmt.Sprintf(", ... (%d more)", wl.Len()-shown)
	}
	_, _ = fmt.Fprintln(w, line)
}

// followRun drains events until the channel closes and returns every row,
// failed ones included. With show set it renders a progress bar to w.
func followRun(events <-chan model.Event, total int, w io.Writer, show bool) []model.ResultRow {
	var (
		tracker  *progress.Tracker
		rendered chan struct{}
	)
	if show {
		pw := progress.NewWriter()
		pw.SetOutputWriter(w)
		pw.SetAutoStop(true)
		pw.SetTrackerLength(30)
		pw.SetMessageLength(36)
		pw.SetUpdateFrequency(100 * time.Millisecond)
		pw.SetStyle(progress.StyleDefault)
		pw.Style().Visibility.ETA = true
		pw.Style().Visibility.Value = true
		tracker = &progress.Tracker{Message: "Processing MC numbers", Total: int64(total), Units: progress.UnitsDefault}
		pw.AppendTracker(tracker)

		rendered = make(chan struct{})
		go func() {
			defer close(rendered)
			pw.Render()
		}()
	}

	var rows []model.ResultRow
	for ev := range events {
		switch ev.Kind {
		case model.EventRow:
			rows = append(rows, *ev.Row)
			if tracker != nil {
				tracker.UpdateMessage(fmt.Sprintf("MC %s: %s", ev.Row.MC, ev.Row.Tier))
			}
		case model.EventProgress:
			if tracker != nil {
				tracker.SetValue(int64(ev.Current))
			}
		case model.EventFinished:
			if tracker == nil {
				continue
			}
			if ev.Status == model.RunStatusErrored {
				tracker.MarkAsErrored()
			} else {
				tracker.UpdateMessage(fmt.Sprintf("Run %s", ev.Status))
				tracker.MarkAsDone()
			}
		}
	}

	if tracker != nil {
		// The renderer stops on its own once the tracker is finished.
		if !tracker.IsDone() {
			tracker.MarkAsDone()
		}
		<-rendered
	}
	return rows
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	extractCmd.Flags().IntVar(&extractStart, "start", defaultRangeStart, "first MC number of the range")
	extractCmd.Flags().IntVar(&extractEnd, "end", defaultRangeEnd, "last MC number of the range (inclusive)")
	extractCmd.Flags().StringVar(&extractList, "list", "", "file with one MC number per line (overrides --start/--end)")
	extractCmd.Flags().StringVar(&extractCSV, "csv", "", "output CSV path (default from config)")
	extractCmd.Flags().StringVar(&extractXLSX, "xlsx", "", "also write an XLSX workbook to this path")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "print the worklist and exit without searching")
	extractCmd.Flags().BoolVarP(&extractQuiet, "quiet", "q", false, "hide the progress bar and results table")
	rootCmd.AddCommand(extractCmd)
}
