package core

import "time"

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// Period is a named relative time window used to filter transactions
// by their event date.
type Period string

// ParsePeriod maps a raw query value to a Period. Unrecognized values
// degrade to PeriodAll instead of erroring, so a bad filter never
// breaks a listing.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case PeriodToday, PeriodWeek, PeriodMonth:
		return Period(s)
	default:
		return PeriodAll
	}
}

// Window returns the half-open interval [from, to) covered by the
// period relative to now, in now's location:
//
//   today — the current calendar date
//   week  — a rolling window starting 7 days ago at midnight
//   month — from the first day of the current month, 00:00
//   all   — unbounded (ok == false, no filtering)
func (p Period) Window(now time.Time) (from, to time.Time, ok bool) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch p {
	case PeriodToday:
		return midnight, midnight.AddDate(0, 0, 1), true
	case PeriodWeek:
		return midnight.AddDate(0, 0, -7), midnight.AddDate(0, 0, 1), true
	case PeriodMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return monthStart, midnight.AddDate(0, 0, 1), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// MonthStart returns the first instant of now's calendar month.
func MonthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}
