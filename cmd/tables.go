package cmd

import (
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/pipeline"
)

// renderHistory writes the attempt history of one run.
func renderHistory(w io.Writer, out *pipeline.Outcome) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Footer = text.FormatDefault
	t.SetTitle(out.Board + " (" + string(out.State) + ")")
	t.AppendHeader(table.Row{"#", "State", "Attempt", "Kind", "Summary", "At"})

	for i, e := range out.History {
		t.AppendRow(table.Row{i + 1, e.State, e.Attempt, e.Kind, e.Summary(), e.At.Format(time.TimeOnly)})
	}

	t.AppendFooter(table.Row{
		"", "static " + strconv.Itoa(out.Attempts.Static), "live " + strconv.Itoa(out.Attempts.Live),
		"", strconv.Itoa(len(out.Records)) + " records", out.Duration.Round(time.Millisecond).String(),
	})
	t.Render()
}

// renderErrors writes the errors a run ended with.
func renderErrors(w io.Writer, out *pipeline.Outcome) {
	if len(out.RemainingErrors) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Step", "Kind", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 80}})
	for _, e := range out.RemainingErrors {
		t.AppendRow(table.Row{e.Step, e.Kind, e.Error})
	}
	t.Render()
}

// renderBatch writes one summary row per board.
func renderBatch(w io.Writer, results []pipeline.BatchResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Board", "State", "Static", "Live", "Records", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	ok := 0
	for _, r := range results {
		if r.Err != nil || r.Outcome == nil {
			msg := "no outcome"
			if r.Err != nil {
				msg = r.Err.Error()
			}
			t.AppendRow(table.Row{r.Board.Name, "-", "-", "-", "-", msg})
			continue
		}
		if r.Outcome.Success {
			ok++
		}
		t.AppendRow(table.Row{
			r.Board.Name, r.Outcome.State,
			r.Outcome.Attempts.Static, r.Outcome.Attempts.Live, len(r.Outcome.Records), "",
		})
	}
	t.Style().Format.Footer = text.FormatDefault
	t.AppendFooter(table.Row{"", strconv.Itoa(ok) + "/" + strconv.Itoa(len(results)) + " succeeded"})
	t.Render()
}
