package core

// CategoryAmount is an amount aggregated per category. Name is empty
// for the uncategorized bucket (transactions whose category was
// deleted or never set).
type CategoryAmount struct {
	CategoryID *int64
	Name       string
	Icon       string
	Amount     Money
}

// Summary is the dashboard overview for one user.
type Summary struct {
	TotalBalance  Money
	TodayExpenses Money
	TodayIncome   Money
	MonthExpenses Money
	MonthIncome   Money
	Accounts      []Account
}

// Statistics is the month breakdown for one user.
type Statistics struct {
	Year               int
	Month              int // 1-12
	MonthExpenses      Money
	MonthIncome        Money
	Balance            Money
	ExpensesByCategory []CategoryAmount
}
