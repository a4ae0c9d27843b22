package sink

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sells-group/mc-extractor/internal/model"
)

// RenderTable writes every row, Failed included, as a table with
// display-form addresses.
func RenderTable(w io.Writer, rows []model.ResultRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	header := table.Row{}
	for _, h := range Header {
		header = append(header, h)
	}
	t.AppendHeader(header)

	for _, r := range rows {
		cells := Record(r, DisplayAddress)
		row := make(table.Row, len(cells))
		for i, c := range cells {
			row[i] = c
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(rows)})
	t.Render()
}

// RenderSummary writes per-tier counts for a run.
func RenderSummary(w io.Writer, run *model.Run) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Run " + run.ID)
	t.AppendHeader(table.Row{"Status", "Count"})
	for _, tier := range model.AllTiers() {
		t.AppendRow(table.Row{string(tier), run.Tiers[tier]})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Processed", run.Processed})
	t.AppendRow(table.Row{"Saved", run.Persisted})
	t.AppendFooter(table.Row{"Result", string(run.Status)})
	t.Render()
}
