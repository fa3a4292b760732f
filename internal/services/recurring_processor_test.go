package services

import (
	"context"
	"testing"
	"time"

	"kassa/internal/core"
)

func createPayment(t *testing.T, f *fixture, rp core.RecurringPayment) *core.RecurringPayment {
	t.Helper()
	rp.AccountID = f.account.ID
	created, err := f.repo.CreateRecurringPayment(context.Background(), rp)
	if err != nil {
		t.Fatalf("CreateRecurringPayment() error = %v", err)
	}
	return created
}

func TestRunDueMonthlyCycle(t *testing.T) {
	f := newFixture(t)
	p := NewRecurringProcessor(f.repo, f.engine, nil, nil)
	ctx := context.Background()

	createPayment(t, f, core.RecurringPayment{
		Amount:      core.Money{Cents: 1500},
		Description: "Streaming",
		Frequency:   core.Monthly,
		StartDate:   date(2024, time.January, 15),
		IsActive:    true,
	})

	// Before the start date nothing fires.
	n, err := p.RunDue(ctx, date(2024, time.January, 14))
	if err != nil {
		t.Fatalf("RunDue() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("RunDue() before start = %d, want 0", n)
	}

	// On the start date the payment executes once.
	n, err = p.RunDue(ctx, date(2024, time.January, 15))
	if err != nil {
		t.Fatalf("RunDue() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("RunDue() at start = %d, want 1", n)
	}

	account, err := f.repo.GetAccount(ctx, f.user.ID, f.account.ID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.Balance.Cents != -1500 {
		t.Errorf("balance after execution = %d, want -1500", account.Balance.Cents)
	}

	// Running again the same day is a no-op.
	n, err = p.RunDue(ctx, date(2024, time.January, 15))
	if err != nil {
		t.Fatalf("RunDue() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("RunDue() repeat = %d, want 0", n)
	}

	// The next anchor day fires again.
	n, err = p.RunDue(ctx, date(2024, time.February, 15))
	if err != nil {
		t.Fatalf("RunDue() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("RunDue() next month = %d, want 1", n)
	}

	account, err = f.repo.GetAccount(ctx, f.user.ID, f.account.ID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.Balance.Cents != -3000 {
		t.Errorf("balance after two executions = %d, want -3000", account.Balance.Cents)
	}
}

func TestRunDueSkipsInactive(t *testing.T) {
	f := newFixture(t)
	p := NewRecurringProcessor(f.repo, f.engine, nil, nil)
	ctx := context.Background()

	rp := createPayment(t, f, core.RecurringPayment{
		Amount:      core.Money{Cents: 900},
		Description: "Paused",
		Frequency:   core.Daily,
		StartDate:   date(2024, time.January, 1),
		IsActive:    true,
	})
	if err := f.repo.SetRecurringActive(ctx, f.user.ID, rp.ID, false); err != nil {
		t.Fatalf("SetRecurringActive() error = %v", err)
	}

	n, err := p.RunDue(ctx, date(2024, time.June, 1))
	if err != nil {
		t.Fatalf("RunDue() error = %v", err)
	}
	if n != 0 {
		t.Errorf("RunDue() with inactive payment = %d, want 0", n)
	}
}

func TestRunDueReactivationKeepsCursor(t *testing.T) {
	f := newFixture(t)
	p := NewRecurringProcessor(f.repo, f.engine, nil, nil)
	ctx := context.Background()

	rp := createPayment(t, f, core.RecurringPayment{
		Amount:      core.Money{Cents: 2000},
		Description: "Gym",
		Frequency:   core.Monthly,
		StartDate:   date(2024, time.January, 10),
		IsActive:    true,
	})

	if n, _ := p.RunDue(ctx, date(2024, time.January, 10)); n != 1 {
		t.Fatalf("initial execution expected")
	}

	// Deactivate, pass the February anchor, reactivate in March.
	if err := f.repo.SetRecurringActive(ctx, f.user.ID, rp.ID, false); err != nil {
		t.Fatalf("SetRecurringActive() error = %v", err)
	}
	if n, _ := p.RunDue(ctx, date(2024, time.February, 10)); n != 0 {
		t.Fatal("inactive payment must not execute")
	}
	if err := f.repo.SetRecurringActive(ctx, f.user.ID, rp.ID, true); err != nil {
		t.Fatalf("SetRecurringActive() error = %v", err)
	}

	// The cursor survived deactivation: the payment is overdue and
	// fires on the next run.
	n, err := p.RunDue(ctx, date(2024, time.March, 1))
	if err != nil {
		t.Fatalf("RunDue() error = %v", err)
	}
	if n != 1 {
		t.Errorf("RunDue() after reactivation = %d, want 1", n)
	}
}

func TestRunDueRespectsEndDate(t *testing.T) {
	f := newFixture(t)
	p := NewRecurringProcessor(f.repo, f.engine, nil, nil)
	ctx := context.Background()

	end := date(2024, time.March, 1)
	createPayment(t, f, core.RecurringPayment{
		Amount:      core.Money{Cents: 500},
		Description: "Trial",
		Frequency:   core.Daily,
		StartDate:   date(2024, time.January, 1),
		EndDate:     &end,
		IsActive:    true,
	})

	n, err := p.RunDue(ctx, date(2024, time.March, 2))
	if err != nil {
		t.Fatalf("RunDue() error = %v", err)
	}
	if n != 0 {
		t.Errorf("RunDue() past end date = %d, want 0", n)
	}
}

func TestRunDueCategoryCarriesOver(t *testing.T) {
	f := newFixture(t)
	p := NewRecurringProcessor(f.repo, f.engine, nil, nil)
	ctx := context.Background()

	bills, err := f.repo.EnsureCategory(ctx, core.Category{
		UserID: f.user.ID,
		Name:   "Bills",
		Type:   core.CategoryExpense,
	})
	if err != nil {
		t.Fatalf("EnsureCategory() error = %v", err)
	}

	createPayment(t, f, core.RecurringPayment{
		CategoryID:  &bills.ID,
		Amount:      core.Money{Cents: 7000},
		Description: "Electricity",
		Frequency:   core.Monthly,
		StartDate:   date(2024, time.January, 5),
		IsActive:    true,
	})

	if n, _ := p.RunDue(ctx, date(2024, time.January, 5)); n != 1 {
		t.Fatal("execution expected")
	}

	transactions, err := f.repo.ListRecentTransactions(ctx, f.user.ID, 10)
	if err != nil {
		t.Fatalf("ListRecentTransactions() error = %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(transactions))
	}
	got := transactions[0]
	if got.CategoryID == nil || *got.CategoryID != bills.ID {
		t.Errorf("transaction category = %v, want %d", got.CategoryID, bills.ID)
	}
	if got.Type != core.TypeExpense {
		t.Errorf("transaction type = %s, want expense", got.Type)
	}
	if got.Description != "Electricity" {
		t.Errorf("transaction description = %q", got.Description)
	}
}
