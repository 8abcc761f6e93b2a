// Package timecalc holds pure helpers for log durations, hour totals and
// calendar boundaries.
package timecalc

import (
	"fmt"
	"time"

	"github.com/and161185/worklog/internal/model"
)

const (
	msPerHour   = int64(time.Hour / time.Millisecond)
	msPerMinute = int64(time.Minute / time.Millisecond)
)

// Duration returns end - start in milliseconds. Misordered input yields a
// negative value.
func Duration(start, end time.Time) int64 {
	return end.Sub(start).Milliseconds()
}

// AccumulateHours sums worked hours over logs that are not absent and have an end.
func AccumulateHours(logs []model.Log) float64 {
	var total float64
	for _, l := range logs {
		if l.IsAbsent || l.EndTime == nil {
			continue
		}
		total += l.EndTime.Sub(l.StartTime).Hours()
	}
	return total
}

// MonthHours accumulates hours of logs starting in ref's calendar month and
// year, evaluated in ref's location.
func MonthHours(logs []model.Log, ref time.Time) float64 {
	y, m, _ := ref.Date()
	var inMonth []model.Log
	for _, l := range logs {
		ly, lm, _ := l.StartTime.In(ref.Location()).Date()
		if ly == y && lm == m {
			inMonth = append(inMonth, l)
		}
	}
	return AccumulateHours(inMonth)
}

// FormatDuration renders milliseconds as zero-padded "HH:MM". Hours are not
// capped at 24. Zero and negative input render as "".
func FormatDuration(ms int64) string {
	if ms <= 0 {
		return ""
	}
	h := ms / msPerHour
	m := (ms % msPerHour) / msPerMinute
	return fmt.Sprintf("%02d:%02d", h, m)
}

// FormatNullable is FormatDuration for an optional value.
func FormatNullable(ms *int64) string {
	if ms == nil {
		return ""
	}
	return FormatDuration(*ms)
}

// StartOfDay returns 00:00:00.000 of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns 23:59:59.999 of t's day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// WeekRange returns Monday 00:00 and Sunday 23:59:59.999 of the ISO week
// containing t, in loc.
func WeekRange(t time.Time, loc *time.Location) (time.Time, time.Time) {
	day := StartOfDay(t, loc)
	wd := int(day.Weekday())
	if wd == 0 {
		wd = 7
	}
	monday := day.AddDate(0, 0, -(wd - 1))
	return monday, EndOfDay(monday.AddDate(0, 0, 6), loc)
}

// MonthRange returns the first and last instant of t's month in loc.
func MonthRange(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return first, first.AddDate(0, 1, 0).Add(-time.Millisecond)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// DayCount returns how many calendar days in loc lie between start and end
// inclusive, or 0 when end falls on an earlier day.
func DayCount(start, end time.Time, loc *time.Location) int {
	sy, sm, sd := start.In(loc).Date()
	ey, em, ed := end.In(loc).Date()
	a := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a)/(24*time.Hour)) + 1
}

// Days lists the start of every day from start to end inclusive.
func Days(start, end time.Time, loc *time.Location) []time.Time {
	last := StartOfDay(end, loc)
	var out []time.Time
	for d := StartOfDay(start, loc); !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
