package core

import (
	"errors"
	"strings"
	"time"
)

const (
	CurrencyUZS Currency = "UZS"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

const (
	TypeTransfer TransactionType = "transfer"
	TypeExpense  TransactionType = "expense"
	TypeIncome   TransactionType = "income"
)

const (
	CategoryExpense CategoryType = "expense"
	CategoryIncome  CategoryType = "income"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

type (
	Currency        string
	TransactionType string
	CategoryType    string
	Frequency       string

	Money struct {
		Cents int64
	}

	// Account is the root of a per-user subtree: its transactions and
	// recurring payments are cascade-deleted with it. Balance is mutated
	// only by the ledger engine.
	Account struct {
		ID        int64
		UserID    int64
		Name      string
		Balance   Money
		Currency  Currency
		Icon      string
		CreatedAt time.Time
	}

	// Category is shared across a user's transactions. (UserID, Name, Type)
	// is unique; re-creating an existing triple returns the stored row.
	Category struct {
		ID     int64
		UserID int64
		Name   string
		Type   CategoryType
		Icon   string
		Color  string
	}

	// Transaction references an optional category; deleting the category
	// nulls the reference, never the transaction. Date is the user-settable
	// event timestamp that all period filters use.
	Transaction struct {
		ID          int64
		AccountID   int64
		CategoryID  *int64
		Type        TransactionType
		Amount      Money
		Description string
		Date        time.Time
		CreatedAt   time.Time
	}

	RecurringPayment struct {
		ID           int64
		AccountID    int64
		CategoryID   *int64
		Amount       Money
		Description  string
		Frequency    Frequency
		StartDate    time.Time
		EndDate      *time.Time
		IsActive     bool
		LastExecuted *time.Time
	}
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrUnknownCurrency  = errors.New("unknown currency")
	ErrUnknownType      = errors.New("unknown type")
	ErrUnknownFrequency = errors.New("unknown frequency")
)

func (c Currency) Valid() bool {
	switch c {
	case CurrencyUZS, CurrencyUSD, CurrencyEUR:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	switch t {
	case TypeTransfer, TypeExpense, TypeIncome:
		return true
	}
	return false
}

func (t CategoryType) Valid() bool {
	return t == CategoryExpense || t == CategoryIncome
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 100 {
		return errors.New("account name too long (max 100 characters)")
	}
	if !a.Currency.Valid() {
		return ErrUnknownCurrency
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 50 {
		return errors.New("category name too long (max 50 characters)")
	}
	if !c.Type.Valid() {
		return ErrUnknownType
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrUnknownType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (rp RecurringPayment) Validate() error {
	if !rp.Frequency.Valid() {
		return ErrUnknownFrequency
	}
	if err := rp.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(rp.Description)) == 0 {
		return errors.New("empty description")
	}
	if len(rp.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if rp.StartDate.IsZero() {
		return errors.New("start date cannot be zero")
	}
	if rp.EndDate != nil && rp.EndDate.Before(rp.StartDate) {
		return errors.New("end date must be after start date")
	}
	return nil
}
