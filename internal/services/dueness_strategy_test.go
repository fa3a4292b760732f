package services

import (
	"testing"
	"time"

	"kassa/internal/core"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGetDuenessChecker(t *testing.T) {
	for _, f := range []core.Frequency{core.Daily, core.Weekly, core.Monthly, core.Yearly} {
		if _, err := GetDuenessChecker(f); err != nil {
			t.Errorf("GetDuenessChecker(%s) error = %v", f, err)
		}
	}
	if _, err := GetDuenessChecker("fortnightly"); err == nil {
		t.Error("GetDuenessChecker(fortnightly) expected error, got nil")
	}
}

func TestDailyCheckerNextDue(t *testing.T) {
	next := DailyChecker{}.NextDue(date(2024, time.March, 10), time.Time{})
	if want := date(2024, time.March, 11); !next.Equal(want) {
		t.Errorf("NextDue() = %v, want %v", next, want)
	}
}

func TestWeeklyCheckerNextDue(t *testing.T) {
	next := WeeklyChecker{}.NextDue(date(2024, time.February, 26), time.Time{})
	if want := date(2024, time.March, 4); !next.Equal(want) {
		t.Errorf("NextDue() = %v, want %v", next, want)
	}
}

func TestMonthlyCheckerNextDue(t *testing.T) {
	tests := []struct {
		name         string
		lastExecuted time.Time
		startDate    time.Time
		want         time.Time
	}{
		{
			name:         "plain month advance",
			lastExecuted: date(2024, time.January, 15),
			startDate:    date(2024, time.January, 15),
			want:         date(2024, time.February, 15),
		},
		{
			name:         "day 31 clamps to leap February",
			lastExecuted: date(2024, time.January, 31),
			startDate:    date(2024, time.January, 31),
			want:         date(2024, time.February, 29),
		},
		{
			name:         "day 31 clamps to non-leap February",
			lastExecuted: date(2023, time.January, 31),
			startDate:    date(2023, time.January, 31),
			want:         date(2023, time.February, 28),
		},
		{
			name:         "clamped execution restores anchor day",
			lastExecuted: date(2024, time.February, 29),
			startDate:    date(2024, time.January, 31),
			want:         date(2024, time.March, 31),
		},
		{
			name:         "December rolls into next year",
			lastExecuted: date(2024, time.December, 10),
			startDate:    date(2024, time.January, 10),
			want:         date(2025, time.January, 10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MonthlyChecker{}.NextDue(tt.lastExecuted, tt.startDate)
			if !got.Equal(tt.want) {
				t.Errorf("NextDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestYearlyCheckerNextDue(t *testing.T) {
	tests := []struct {
		name         string
		lastExecuted time.Time
		startDate    time.Time
		want         time.Time
	}{
		{
			name:         "plain year advance",
			lastExecuted: date(2024, time.June, 1),
			startDate:    date(2023, time.June, 1),
			want:         date(2025, time.June, 1),
		},
		{
			name:         "Feb 29 anchor clamps to Feb 28",
			lastExecuted: date(2024, time.February, 29),
			startDate:    date(2024, time.February, 29),
			want:         date(2025, time.February, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := YearlyChecker{}.NextDue(tt.lastExecuted, tt.startDate)
			if !got.Equal(tt.want) {
				t.Errorf("NextDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDue(t *testing.T) {
	lastExecuted := date(2024, time.January, 15)

	tests := []struct {
		name string
		rp   core.RecurringPayment
		now  time.Time
		want bool
	}{
		{
			name: "never executed before start date",
			rp:   core.RecurringPayment{Frequency: core.Monthly, StartDate: date(2024, time.January, 15)},
			now:  date(2024, time.January, 14),
			want: false,
		},
		{
			name: "never executed at start date",
			rp:   core.RecurringPayment{Frequency: core.Monthly, StartDate: date(2024, time.January, 15)},
			now:  date(2024, time.January, 15),
			want: true,
		},
		{
			name: "not due again same day",
			rp: core.RecurringPayment{
				Frequency:    core.Monthly,
				StartDate:    date(2024, time.January, 15),
				LastExecuted: &lastExecuted,
			},
			now:  date(2024, time.January, 15),
			want: false,
		},
		{
			name: "not due before next month anchor",
			rp: core.RecurringPayment{
				Frequency:    core.Monthly,
				StartDate:    date(2024, time.January, 15),
				LastExecuted: &lastExecuted,
			},
			now:  date(2024, time.February, 14),
			want: false,
		},
		{
			name: "due at next month anchor",
			rp: core.RecurringPayment{
				Frequency:    core.Monthly,
				StartDate:    date(2024, time.January, 15),
				LastExecuted: &lastExecuted,
			},
			now:  date(2024, time.February, 15),
			want: true,
		},
		{
			name: "still due after skipped months",
			rp: core.RecurringPayment{
				Frequency:    core.Monthly,
				StartDate:    date(2024, time.January, 15),
				LastExecuted: &lastExecuted,
			},
			now:  date(2024, time.May, 3),
			want: true,
		},
		{
			name: "daily due next day",
			rp: core.RecurringPayment{
				Frequency:    core.Daily,
				StartDate:    date(2024, time.January, 15),
				LastExecuted: &lastExecuted,
			},
			now:  date(2024, time.January, 16),
			want: true,
		},
		{
			name: "weekly not due after six days",
			rp: core.RecurringPayment{
				Frequency:    core.Weekly,
				StartDate:    date(2024, time.January, 15),
				LastExecuted: &lastExecuted,
			},
			now:  date(2024, time.January, 21),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsDue(tt.rp, tt.now)
			if err != nil {
				t.Fatalf("IsDue() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDueUnknownFrequency(t *testing.T) {
	_, err := IsDue(core.RecurringPayment{Frequency: "hourly", StartDate: date(2024, time.January, 1)}, date(2024, time.June, 1))
	if err == nil {
		t.Fatal("IsDue() expected error for unknown frequency, got nil")
	}
}
