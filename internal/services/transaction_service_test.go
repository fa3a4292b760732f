package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"kassa/internal/core"
)

type recordingInvalidator struct {
	userIDs []int64
}

func (r *recordingInvalidator) InvalidateUser(userID int64) {
	r.userIDs = append(r.userIDs, userID)
}

func TestTransactionServiceCreate(t *testing.T) {
	f := newFixture(t)
	inv := &recordingInvalidator{}
	svc := NewTransactionService(f.repo, f.engine, nil, inv)
	ctx := context.Background()

	created, err := svc.Create(ctx, f.user.ID, core.Transaction{
		AccountID: f.account.ID,
		Type:      core.TypeIncome,
		Amount:    core.Money{Cents: 50000},
		Date:      time.Now(),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == 0 {
		t.Error("Create() did not assign an id")
	}

	account, err := f.repo.GetAccount(ctx, f.user.ID, f.account.ID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.Balance.Cents != 50000 {
		t.Errorf("balance = %d, want 50000", account.Balance.Cents)
	}
	if len(inv.userIDs) != 1 || inv.userIDs[0] != f.user.ID {
		t.Errorf("invalidations = %v, want [%d]", inv.userIDs, f.user.ID)
	}
}

func TestTransactionServiceCreateForeignAccount(t *testing.T) {
	f := newFixture(t)
	svc := NewTransactionService(f.repo, f.engine, nil, nil)
	ctx := context.Background()

	other, err := f.repo.CreateUser(ctx, "other", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	_, err = svc.Create(ctx, other.ID, core.Transaction{
		AccountID: f.account.ID,
		Type:      core.TypeExpense,
		Amount:    core.Money{Cents: 100},
		Date:      time.Now(),
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Create() on foreign account error = %v, want ErrNotFound", err)
	}
}

func TestTransactionServiceCreateForeignCategory(t *testing.T) {
	f := newFixture(t)
	svc := NewTransactionService(f.repo, f.engine, nil, nil)
	ctx := context.Background()

	other, err := f.repo.CreateUser(ctx, "other", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	foreign, err := f.repo.EnsureCategory(ctx, core.Category{
		UserID: other.ID,
		Name:   "Theirs",
		Type:   core.CategoryExpense,
	})
	if err != nil {
		t.Fatalf("EnsureCategory() error = %v", err)
	}

	_, err = svc.Create(ctx, f.user.ID, core.Transaction{
		AccountID:  f.account.ID,
		CategoryID: &foreign.ID,
		Type:       core.TypeExpense,
		Amount:     core.Money{Cents: 100},
		Date:       time.Now(),
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Create() with foreign category error = %v, want ErrNotFound", err)
	}
}

func TestTransactionServiceUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	inv := &recordingInvalidator{}
	svc := NewTransactionService(f.repo, f.engine, nil, inv)
	ctx := context.Background()

	created, err := svc.Create(ctx, f.user.ID, core.Transaction{
		AccountID: f.account.ID,
		Type:      core.TypeExpense,
		Amount:    core.Money{Cents: 3000},
		Date:      time.Now(),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	edited := *created
	edited.Amount = core.Money{Cents: 4500}
	if _, err := svc.Update(ctx, f.user.ID, created.ID, edited); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	account, err := f.repo.GetAccount(ctx, f.user.ID, f.account.ID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.Balance.Cents != -4500 {
		t.Errorf("balance after update = %d, want -4500", account.Balance.Cents)
	}

	if err := svc.Delete(ctx, f.user.ID, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	account, err = f.repo.GetAccount(ctx, f.user.ID, f.account.ID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.Balance.Cents != 0 {
		t.Errorf("balance after delete = %d, want 0", account.Balance.Cents)
	}

	if len(inv.userIDs) != 3 {
		t.Errorf("invalidations = %d, want 3", len(inv.userIDs))
	}
}

func TestTransactionServiceDeleteForeign(t *testing.T) {
	f := newFixture(t)
	svc := NewTransactionService(f.repo, f.engine, nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, f.user.ID, core.Transaction{
		AccountID: f.account.ID,
		Type:      core.TypeExpense,
		Amount:    core.Money{Cents: 100},
		Date:      time.Now(),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	other, err := f.repo.CreateUser(ctx, "other", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := svc.Delete(ctx, other.ID, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Delete() by non-owner error = %v, want ErrNotFound", err)
	}
}
