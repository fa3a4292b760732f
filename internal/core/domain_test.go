package core

import (
	"testing"
	"time"
)

func TestAccountValidate(t *testing.T) {
	acc := Account{Name: "Wallet", Currency: CurrencyUZS}
	if err := acc.Validate(); err != nil {
		t.Fatalf("valid account rejected: %v", err)
	}

	acc.Name = "  "
	if err := acc.Validate(); err == nil {
		t.Error("blank name accepted")
	}

	acc.Name = "Wallet"
	acc.Currency = "GBP"
	if err := acc.Validate(); err == nil {
		t.Error("unknown currency accepted")
	}
}

func TestTransactionValidate(t *testing.T) {
	tx := Transaction{
		Type:   TypeExpense,
		Amount: Money{Cents: 3000},
		Date:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("valid transaction rejected: %v", err)
	}

	tx.Amount = Money{Cents: 0}
	if err := tx.Validate(); err == nil {
		t.Error("zero amount accepted")
	}

	tx.Amount = Money{Cents: -100}
	if err := tx.Validate(); err == nil {
		t.Error("negative amount accepted")
	}

	tx.Amount = Money{Cents: 100}
	tx.Type = "loan"
	if err := tx.Validate(); err == nil {
		t.Error("unknown type accepted")
	}
}

func TestRecurringPaymentValidate(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	rp := RecurringPayment{
		Amount:      Money{Cents: 5000},
		Description: "Rent",
		Frequency:   Monthly,
		StartDate:   start,
	}
	if err := rp.Validate(); err != nil {
		t.Fatalf("valid payment rejected: %v", err)
	}

	end := start.AddDate(0, -1, 0)
	rp.EndDate = &end
	if err := rp.Validate(); err == nil {
		t.Error("end date before start date accepted")
	}

	rp.EndDate = nil
	rp.Frequency = "biweekly"
	if err := rp.Validate(); err == nil {
		t.Error("unknown frequency accepted")
	}
}
