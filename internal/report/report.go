// Package report lays project statistics out as a per-day attendance grid.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/and161185/worklog/internal/model"
	"github.com/and161185/worklog/internal/timecalc"
)

// Cell markers.
const (
	Absent = "A"
	Empty  = "-"
)

// Totals counts absences and billable work.
type Totals struct {
	Absent     int
	Billable   int
	BillableMs int64 // only logs with an end time
}

// Row is one member's line of the grid.
type Row struct {
	Client model.Client
	Logs   []model.Log
	Cells  []string // one per Grid.Days entry
	Totals Totals
}

// Grid is a rendered statistics table.
type Grid struct {
	Days   []time.Time
	Rows   []Row
	Footer Totals
}

// Cell renders a member's day: "A" when absent, the worked duration when
// billable with an end, "-" otherwise.
func Cell(logs []model.Log, day time.Time, loc *time.Location) string {
	for _, l := range logs {
		if !timecalc.SameDay(l.StartTime, day, loc) {
			continue
		}
		switch {
		case l.IsAbsent:
			return Absent
		case l.IsBillable && l.EndTime != nil:
			if s := timecalc.FormatDuration(l.Duration); s != "" {
				return s
			}
		}
		return Empty
	}
	return Empty
}

// Days lists the grid columns from start to end inclusive.
func Days(start, end time.Time, loc *time.Location) []time.Time {
	return timecalc.Days(start, end, loc)
}

// RowTotals summarises one member's logs.
func RowTotals(logs []model.Log) Totals {
	var t Totals
	for _, l := range logs {
		if l.IsAbsent {
			t.Absent++
		}
		if l.IsBillable {
			t.Billable++
			if l.EndTime != nil {
				t.BillableMs += l.Duration
			}
		}
	}
	return t
}

// GrandTotals sums the logs of every row.
func GrandTotals(rows []Row) Totals {
	var t Totals
	for _, r := range rows {
		rt := RowTotals(r.Logs)
		t.Absent += rt.Absent
		t.Billable += rt.Billable
		t.BillableMs += rt.BillableMs
	}
	return t
}

// SortKey selects the column Sort orders by.
type SortKey int

const (
	ByName SortKey = iota
	ByAbsent
	ByBillable
	ByEmptyDays
)

// ParseSortKey maps a column name to a SortKey; unknown names sort by name.
func ParseSortKey(s string) SortKey {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "absent":
		return ByAbsent
	case "billable":
		return ByBillable
	case "empty":
		return ByEmptyDays
	default:
		return ByName
	}
}

func emptyDays(r Row) int {
	n := 0
	for _, c := range r.Cells {
		if c == Empty {
			n++
		}
	}
	return n
}

func fullName(c model.Client) string {
	return strings.ToLower(c.FirstName + " " + c.LastName)
}

// Sort returns a copy of rows ordered by key. Ties keep name order. The
// input slice is not modified.
func Sort(rows []Row, key SortKey, desc bool) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)

	metric := func(r Row) int64 {
		switch key {
		case ByAbsent:
			return int64(r.Totals.Absent)
		case ByBillable:
			return r.Totals.BillableMs
		case ByEmptyDays:
			return int64(emptyDays(r))
		}
		return 0
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if key != ByName {
			if ma, mb := metric(a), metric(b); ma != mb {
				if desc {
					return ma > mb
				}
				return ma < mb
			}
		}
		na, nb := fullName(a.Client), fullName(b.Client)
		if key == ByName && desc {
			return na > nb
		}
		return na < nb
	})
	return out
}

// Build lays out stats over its date range in loc.
func Build(stats model.Statistics, loc *time.Location) Grid {
	g := Grid{Days: Days(stats.Start, stats.End, loc)}
	g.Rows = make([]Row, 0, len(stats.Members))
	for _, m := range stats.Members {
		r := Row{Client: m.Client, Logs: m.Logs, Cells: make([]string, len(g.Days)), Totals: RowTotals(m.Logs)}
		for i, d := range g.Days {
			r.Cells[i] = Cell(m.Logs, d, loc)
		}
		g.Rows = append(g.Rows, r)
	}
	g.Footer = GrandTotals(g.Rows)
	return g
}
