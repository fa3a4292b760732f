package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"kassa/internal/core"
)

// Amounts cross the API as decimal strings ("12.34"); cents stay an
// internal representation.

type accountResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Balance   string `json:"balance"`
	Currency  string `json:"currency"`
	Icon      string `json:"icon,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toAccountResponse(a core.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Balance:   a.Balance.String(),
		Currency:  string(a.Currency),
		Icon:      a.Icon,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

type transactionResponse struct {
	ID          int64  `json:"id"`
	AccountID   int64  `json:"account_id"`
	CategoryID  *int64 `json:"category_id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		AccountID:   t.AccountID,
		CategoryID:  t.CategoryID,
		Type:        string(t.Type),
		Amount:      t.Amount.String(),
		Description: t.Description,
		Date:        t.Date.Format(time.RFC3339),
	}
}

type categoryResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Type: string(c.Type), Icon: c.Icon, Color: c.Color}
}

type recurringResponse struct {
	ID           int64  `json:"id"`
	AccountID    int64  `json:"account_id"`
	CategoryID   *int64 `json:"category_id"`
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	Frequency    string `json:"frequency"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date,omitempty"`
	IsActive     bool   `json:"is_active"`
	LastExecuted string `json:"last_executed,omitempty"`
}

func toRecurringResponse(rp core.RecurringPayment) recurringResponse {
	resp := recurringResponse{
		ID:          rp.ID,
		AccountID:   rp.AccountID,
		CategoryID:  rp.CategoryID,
		Amount:      rp.Amount.String(),
		Description: rp.Description,
		Frequency:   string(rp.Frequency),
		StartDate:   rp.StartDate.Format("2006-01-02"),
		IsActive:    rp.IsActive,
	}
	if rp.EndDate != nil {
		resp.EndDate = rp.EndDate.Format("2006-01-02")
	}
	if rp.LastExecuted != nil {
		resp.LastExecuted = rp.LastExecuted.Format(time.RFC3339)
	}
	return resp
}

// --- summary and statistics ---

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	// Concurrent dashboard loads share one computation per user.
	v, err, _ := s.summaryGroup.Do(strconv.FormatInt(uid, 10), func() (any, error) {
		return s.summaries.GetSummary(r.Context(), uid)
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	summary := v.(*core.Summary)

	accounts := make([]accountResponse, 0, len(summary.Accounts))
	for _, a := range summary.Accounts {
		accounts = append(accounts, toAccountResponse(a))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_balance":  summary.TotalBalance.String(),
		"today_expenses": summary.TodayExpenses.String(),
		"today_income":   summary.TodayIncome.String(),
		"month_expenses": summary.MonthExpenses.String(),
		"month_income":   summary.MonthIncome.String(),
		"accounts":       accounts,
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)
	stats, err := s.summaries.GetStatistics(r.Context(), userID(r), year, month, parseLimit(r, 0))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	byCategory := make([]map[string]any, 0, len(stats.ExpensesByCategory))
	for _, ca := range stats.ExpensesByCategory {
		byCategory = append(byCategory, map[string]any{
			"category_id": ca.CategoryID,
			"name":        ca.Name,
			"icon":        ca.Icon,
			"amount":      ca.Amount.String(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"year":                 stats.Year,
		"month":                stats.Month,
		"month_expenses":       stats.MonthExpenses.String(),
		"month_income":         stats.MonthIncome.String(),
		"balance":              stats.Balance.String(),
		"expenses_by_category": byCategory,
	})
}

// --- accounts ---

type createAccountRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Icon     string `json:"icon"`
	Balance  string `json:"balance"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.repo.ListAccounts(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Opening balances may be negative (an account can start in debt).
	var balance int64
	if strings.TrimSpace(req.Balance) != "" {
		cents, err := core.ParseSignedDecimalToCents(req.Balance)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid balance")
			return
		}
		balance = cents
	}

	account := core.Account{
		UserID:   userID(r),
		Name:     sanitizeInput(req.Name),
		Balance:  core.Money{Cents: balance},
		Currency: core.Currency(req.Currency),
		Icon:     sanitizeInput(req.Icon),
	}
	if err := account.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.repo.CreateAccount(r.Context(), account)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(*created))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	account, err := s.repo.GetAccount(r.Context(), userID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(*account))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	if err := s.repo.DeleteAccount(r.Context(), userID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.summaries.InvalidateUser(userID(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAccountTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	period := core.ParsePeriod(r.URL.Query().Get("period"))

	var typ *core.TransactionType
	if v := r.URL.Query().Get("type"); v != "" {
		t := core.TransactionType(v)
		if !t.Valid() {
			writeError(w, http.StatusBadRequest, "invalid transaction type")
			return
		}
		typ = &t
	}

	var categoryID *int64
	if v := r.URL.Query().Get("category_id"); v != "" {
		cid, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid category id")
			return
		}
		categoryID = &cid
	}

	transactions, err := s.summaries.GetAccountTransactions(r.Context(), userID(r), id, period, typ, categoryID, parseLimit(r, 0))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		resp = append(resp, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAccountAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	// Scope check before reading the audit trail.
	if _, err := s.repo.GetAccount(r.Context(), userID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	entries, err := s.repo.ListAuditEntries(r.Context(), id, parseLimit(r, 50))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, map[string]any{
			"id":             e.ID,
			"event":          e.Event,
			"transaction_id": e.TransactionID,
			"delta":          core.Money{Cents: e.DeltaCents}.String(),
			"recorded_at":    e.RecordedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- categories ---

type createCategoryRequest struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	var typ *core.CategoryType
	if v := r.URL.Query().Get("type"); v != "" {
		t := core.CategoryType(v)
		if !t.Valid() {
			writeError(w, http.StatusBadRequest, "invalid category type")
			return
		}
		typ = &t
	}

	categories, err := s.repo.ListCategories(r.Context(), userID(r), typ)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCreateCategory is idempotent: re-posting an existing
// (name, type) pair returns the stored category instead of erroring.
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category := core.Category{
		UserID: userID(r),
		Name:   sanitizeInput(req.Name),
		Type:   core.CategoryType(req.Type),
		Icon:   sanitizeInput(req.Icon),
		Color:  sanitizeInput(req.Color),
	}
	if err := category.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	stored, err := s.repo.EnsureCategory(r.Context(), category)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(*stored))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	if err := s.repo.DeleteCategory(r.Context(), userID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- transactions ---

type transactionRequest struct {
	AccountID   int64  `json:"account_id"`
	CategoryID  *int64 `json:"category_id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

func (r transactionRequest) toTransaction() (core.Transaction, error) {
	cents, err := core.ParseDecimalToCents(r.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := parseDate(r.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		AccountID:   r.AccountID,
		CategoryID:  r.CategoryID,
		Type:        core.TransactionType(r.Type),
		Amount:      core.Money{Cents: cents},
		Description: sanitizeInput(r.Description),
		Date:        date,
	}, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := req.toTransaction()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.transactions.Create(r.Context(), userID(r), t)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(*created))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	t, err := s.repo.GetTransaction(r.Context(), userID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(*t))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := req.toTransaction()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	updated, err := s.transactions.Update(r.Context(), userID(r), id, t)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(*updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	if err := s.transactions.Delete(r.Context(), userID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- recurring payments ---

type recurringRequest struct {
	AccountID   int64  `json:"account_id"`
	CategoryID  *int64 `json:"category_id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	payments, err := s.repo.ListRecurringPayments(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]recurringResponse, 0, len(payments))
	for _, rp := range payments {
		resp = append(resp, toRecurringResponse(rp))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid start date")
		return
	}
	endDate, err := parseOptionalDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid end date")
		return
	}

	rp := core.RecurringPayment{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Amount:      core.Money{Cents: cents},
		Description: sanitizeInput(req.Description),
		Frequency:   core.Frequency(req.Frequency),
		StartDate:   startDate,
		EndDate:     endDate,
		IsActive:    true,
	}
	if err := rp.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	// The account must belong to the caller.
	if _, err := s.repo.GetAccount(r.Context(), userID(r), rp.AccountID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if rp.CategoryID != nil {
		if _, err := s.repo.GetCategory(r.Context(), userID(r), *rp.CategoryID); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	created, err := s.repo.CreateRecurringPayment(r.Context(), rp)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecurringResponse(*created))
}

func (s *Server) handleGetRecurring(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid payment id")
		return
	}
	rp, err := s.repo.GetRecurringPayment(r.Context(), userID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecurringResponse(*rp))
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid payment id")
		return
	}
	if err := s.repo.DeleteRecurringPayment(r.Context(), userID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActivateRecurring(w http.ResponseWriter, r *http.Request) {
	s.setRecurringActive(w, r, true)
}

func (s *Server) handleDeactivateRecurring(w http.ResponseWriter, r *http.Request) {
	s.setRecurringActive(w, r, false)
}

func (s *Server) setRecurringActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid payment id")
		return
	}
	if err := s.repo.SetRecurringActive(r.Context(), userID(r), id, active); err != nil {
		writeServiceError(w, r, err)
		return
	}

	rp, err := s.repo.GetRecurringPayment(r.Context(), userID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecurringResponse(*rp))
}
