package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/and161185/worklog/internal/convert"
	"github.com/and161185/worklog/internal/report"
	"github.com/and161185/worklog/internal/timecalc"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func orDash(s string) string {
	if s == "" {
		return report.Empty
	}
	return s
}

// renderGrid prints one line per member, one column per day, then the
// absence and billable totals.
func renderGrid(out io.Writer, g report.Grid) error {
	w := newTable(out)
	fmt.Fprint(w, "MEMBER")
	for _, d := range g.Days {
		fmt.Fprintf(w, "\t%s", d.Format("Mon 02"))
	}
	fmt.Fprintln(w, "\tABSENT\tBILLABLE\tHOURS")

	for _, r := range g.Rows {
		fmt.Fprintf(w, "%s %s", r.Client.FirstName, r.Client.LastName)
		for _, c := range r.Cells {
			fmt.Fprintf(w, "\t%s", c)
		}
		fmt.Fprintf(w, "\t%d\t%d\t%s\n", r.Totals.Absent, r.Totals.Billable, orDash(timecalc.FormatDuration(r.Totals.BillableMs)))
	}

	fmt.Fprint(w, "TOTAL")
	for range g.Days {
		fmt.Fprint(w, "\t")
	}
	fmt.Fprintf(w, "\t%d\t%d\t%s\n", g.Footer.Absent, g.Footer.Billable, orDash(timecalc.FormatDuration(g.Footer.BillableMs)))
	return w.Flush()
}

func renderMonth(out io.Writer, s *structpb.Struct, loc *time.Location) error {
	cm, err := convert.ClientMonthFrom(s)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s (%s)\n", cm.Client.FirstName, cm.Client.LastName, cm.Client.Role)

	w := newTable(out)
	fmt.Fprintln(w, "DATE\tSTART\tEND\tDURATION\tFLAGS\tVERSION\tID\tTITLE")
	for _, l := range cm.Logs {
		end, dur := report.Empty, report.Empty
		if l.EndTime != nil {
			end = l.EndTime.In(loc).Format("15:04")
			dur = orDash(timecalc.FormatDuration(l.Duration))
		}
		flags := report.Empty
		switch {
		case l.IsAbsent:
			flags = "absent"
		case l.IsBillable:
			flags = "billable"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			l.StartTime.In(loc).Format("2006-01-02"), l.StartTime.In(loc).Format("15:04"),
			end, dur, flags, l.Version, l.ID, l.Title)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "month: %.2fh  all time: %s\n", cm.MonthHours, orDash(timecalc.FormatDuration(cm.TotalDuration)))
	return err
}

func renderInbox(out io.Writer, s *structpb.Struct) error {
	w := newTable(out)
	fmt.Fprintln(w, "ID\tSTATUS\tMESSAGE")
	for _, v := range s.GetFields()["notifications"].GetListValue().GetValues() {
		f := convert.Read(v.GetStructValue())
		state := "info"
		switch {
		case f.Has("answer") && f.Bool("answer"):
			state = "accepted"
		case f.Has("answer"):
			state = "declined"
		case f.Has("projectId"):
			state = "pending"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.String("id"), state, f.String("message"))
	}
	return w.Flush()
}
