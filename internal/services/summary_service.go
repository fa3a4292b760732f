package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"kassa/internal/cache"
	"kassa/internal/core"
	"kassa/internal/storage"
)

// SummaryService is the read side: dashboard summaries, filtered
// transaction listings and monthly statistics, all derived from the
// transaction set the ledger maintains. The dashboard summary is
// cached per user and invalidated on every ledger write.
type SummaryService struct {
	repo      *storage.SQLiteRepository
	summaries cache.Cache[core.Summary]
	now       func() time.Time
}

func NewSummaryService(repo *storage.SQLiteRepository, summaries cache.Cache[core.Summary]) *SummaryService {
	return &SummaryService{
		repo:      repo,
		summaries: summaries,
		now:       time.Now,
	}
}

// InvalidateUser drops the user's cached summary after a ledger write.
func (s *SummaryService) InvalidateUser(userID int64) {
	if s.summaries != nil {
		s.summaries.Delete(summaryKey(userID))
	}
}

func summaryKey(userID int64) string {
	return "summary:" + strconv.FormatInt(userID, 10)
}

// GetSummary assembles the dashboard overview: total balance across
// accounts, today's and the current month's expense and income sums,
// and the account list.
func (s *SummaryService) GetSummary(ctx context.Context, userID int64) (*core.Summary, error) {
	if s.summaries != nil {
		if cached, ok := s.summaries.Get(summaryKey(userID)); ok {
			return &cached, nil
		}
	}

	now := s.now()
	summary := &core.Summary{}

	total, err := s.repo.TotalBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("summary total balance: %w", err)
	}
	summary.TotalBalance = total

	todayFrom, todayTo, _ := core.PeriodToday.Window(now)
	monthFrom, monthTo, _ := core.PeriodMonth.Window(now)

	sums := []struct {
		dst  *core.Money
		typ  core.TransactionType
		from time.Time
		to   time.Time
	}{
		{&summary.TodayExpenses, core.TypeExpense, todayFrom, todayTo},
		{&summary.TodayIncome, core.TypeIncome, todayFrom, todayTo},
		{&summary.MonthExpenses, core.TypeExpense, monthFrom, monthTo},
		{&summary.MonthIncome, core.TypeIncome, monthFrom, monthTo},
	}
	for _, sum := range sums {
		from, to := sum.from, sum.to
		got, err := s.repo.SumByType(ctx, userID, sum.typ, &from, &to)
		if err != nil {
			return nil, fmt.Errorf("summary sum %s: %w", sum.typ, err)
		}
		*sum.dst = got
	}

	accounts, err := s.repo.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("summary accounts: %w", err)
	}
	summary.Accounts = accounts

	if s.summaries != nil {
		s.summaries.Set(summaryKey(userID), *summary)
	}
	return summary, nil
}

// GetAccountTransactions lists an account's transactions filtered by
// period, type and category. The account must belong to the user.
func (s *SummaryService) GetAccountTransactions(ctx context.Context, userID, accountID int64, period core.Period, typ *core.TransactionType, categoryID *int64, limit int) ([]core.Transaction, error) {
	if _, err := s.repo.GetAccount(ctx, userID, accountID); err != nil {
		return nil, err
	}

	filter := storage.TransactionFilter{
		AccountID:  accountID,
		Type:       typ,
		CategoryID: categoryID,
		Limit:      limit,
	}
	if from, to, ok := period.Window(s.now()); ok {
		filter.From = &from
		filter.To = &to
	}

	return s.repo.ListTransactions(ctx, filter)
}

// GetAccountPeriodSums returns the expense and income totals for one
// account over a period, for the account detail header.
func (s *SummaryService) GetAccountPeriodSums(ctx context.Context, userID, accountID int64, period core.Period) (expenses, income core.Money, err error) {
	if _, err := s.repo.GetAccount(ctx, userID, accountID); err != nil {
		return core.Money{}, core.Money{}, err
	}

	var from, to *time.Time
	if f, t, ok := period.Window(s.now()); ok {
		from, to = &f, &t
	}

	expenses, err = s.repo.SumAccountByType(ctx, accountID, core.TypeExpense, from, to)
	if err != nil {
		return core.Money{}, core.Money{}, err
	}
	income, err = s.repo.SumAccountByType(ctx, accountID, core.TypeIncome, from, to)
	if err != nil {
		return core.Money{}, core.Money{}, err
	}
	return expenses, income, nil
}

// GetStatistics computes the month breakdown for year-month: expense
// and income totals, the current total balance, and per-category
// expense buckets sorted by amount, truncated to the top limit buckets
// (0 keeps them all). Zero year and month default to the current month.
func (s *SummaryService) GetStatistics(ctx context.Context, userID int64, year, month, limit int) (*core.Statistics, error) {
	now := s.now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 1, 0)

	stats := &core.Statistics{Year: year, Month: month}

	expenses, err := s.repo.SumByType(ctx, userID, core.TypeExpense, &from, &to)
	if err != nil {
		return nil, fmt.Errorf("statistics expenses: %w", err)
	}
	stats.MonthExpenses = expenses

	income, err := s.repo.SumByType(ctx, userID, core.TypeIncome, &from, &to)
	if err != nil {
		return nil, fmt.Errorf("statistics income: %w", err)
	}
	stats.MonthIncome = income

	balance, err := s.repo.TotalBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("statistics balance: %w", err)
	}
	stats.Balance = balance

	byCategory, err := s.repo.GroupByCategory(ctx, userID, core.TypeExpense, &from, &to, limit)
	if err != nil {
		return nil, fmt.Errorf("statistics categories: %w", err)
	}
	stats.ExpensesByCategory = byCategory

	return stats, nil
}
