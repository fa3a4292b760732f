// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring payment dueness.
// Each frequency (daily, weekly, monthly, yearly) has its own strategy that
// computes the next due instant from the last execution, so that a payment
// whose scheduler was down for a while still fires on the next run instead
// of silently skipping periods.

package services

import (
	"fmt"
	"time"

	"kassa/internal/core"
)

// DuenessChecker is the strategy interface for one frequency. NextDue
// computes when the payment should fire next, given its last execution
// and the schedule's start date (which carries the target day-of-month
// and month for monthly and yearly schedules).
type DuenessChecker interface {
	NextDue(lastExecuted, startDate time.Time) time.Time
}

// DailyChecker fires one calendar day after the last execution.
type DailyChecker struct{}

func (DailyChecker) NextDue(lastExecuted, _ time.Time) time.Time {
	return lastExecuted.AddDate(0, 0, 1)
}

// WeeklyChecker fires seven calendar days after the last execution.
type WeeklyChecker struct{}

func (WeeklyChecker) NextDue(lastExecuted, _ time.Time) time.Time {
	return lastExecuted.AddDate(0, 0, 7)
}

// MonthlyChecker fires in the month after the last execution, on the
// start date's day-of-month clamped to the target month's length
// (a schedule anchored on the 31st fires on Feb 28/29, Apr 30, ...).
type MonthlyChecker struct{}

func (MonthlyChecker) NextDue(lastExecuted, startDate time.Time) time.Time {
	year, month, _ := lastExecuted.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	day := clampDay(startDate.Day(), year, month)
	return time.Date(year, month, day,
		lastExecuted.Hour(), lastExecuted.Minute(), lastExecuted.Second(), 0,
		lastExecuted.Location())
}

// YearlyChecker fires in the year after the last execution, on the
// start date's month and day. A Feb 29 anchor clamps to Feb 28 in
// non-leap years.
type YearlyChecker struct{}

func (YearlyChecker) NextDue(lastExecuted, startDate time.Time) time.Time {
	year := lastExecuted.Year() + 1
	month := startDate.Month()
	day := clampDay(startDate.Day(), year, month)
	return time.Date(year, month, day,
		lastExecuted.Hour(), lastExecuted.Minute(), lastExecuted.Second(), 0,
		lastExecuted.Location())
}

func clampDay(day int, year int, month time.Month) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

// duenessStrategies maps frequencies to their checkers. The registry
// enables O(1) lookup and extension without modifying existing checkers.
var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for a frequency, or an error if
// the frequency has no registered strategy.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker registers a custom checker for a frequency.
func RegisterDuenessChecker(frequency core.Frequency, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}

// IsDue reports whether the payment should execute at now. A payment
// that never executed is due once its start date has arrived; after
// that it is due whenever now has reached the frequency's next due
// instant. Deactivation does not reset this: a reactivated payment
// keeps its last execution and resumes from there.
func IsDue(rp core.RecurringPayment, now time.Time) (bool, error) {
	checker, err := GetDuenessChecker(rp.Frequency)
	if err != nil {
		return false, err
	}
	if rp.LastExecuted == nil {
		return !now.Before(rp.StartDate), nil
	}
	return !now.Before(checker.NextDue(*rp.LastExecuted, rp.StartDate)), nil
}
