package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"kassa/internal/cache"
	"kassa/internal/config"
	"kassa/internal/core"
	"kassa/internal/ledger"
	"kassa/internal/services"
	"kassa/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("init repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	summaryCache := cache.New[core.Summary](cache.BackendMemory, nil, "test:", 100, time.Minute)
	engine := ledger.New(repo)
	summaries := services.NewSummaryService(repo, summaryCache)
	transactions := services.NewTransactionService(repo, engine, nil, summaries)

	manager := cache.NewManager()
	manager.StartCleanup(time.Minute)

	cfg := &config.Config{Port: "8081", RateLimitPerMinute: 10000}
	s := NewServer(cfg, repo, transactions, summaries, manager)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func doRequest(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// registerUser creates a user through the API and returns its token.
func registerUser(t *testing.T, s *Server, username string) string {
	t.Helper()

	rec := doRequest(t, s, "POST", "/api/register", "", `{"username":"`+username+`","password":"password123","password2":"password123"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &resp)
	if resp.Token == "" {
		t.Fatal("register returned empty token")
	}
	return resp.Token
}

// createAccount creates an account through the API and returns its id.
func createAccount(t *testing.T, s *Server, token, name, balance string) int64 {
	t.Helper()

	rec := doRequest(t, s, "POST", "/api/accounts", token,
		`{"name":"`+name+`","currency":"USD","balance":"`+balance+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, rec, &resp)
	return resp.ID
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, s, "GET", path, "", "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s returned %d", path, rec.Code)
		}
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	token := registerUser(t, s, "alice")
	if token == "" {
		t.Fatal("expected a token")
	}

	// Same username again conflicts.
	rec := doRequest(t, s, "POST", "/api/register", "", `{"username":"alice","password":"password123","password2":"password123"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register returned %d, want 409", rec.Code)
	}

	// Short password is a validation error.
	rec = doRequest(t, s, "POST", "/api/register", "", `{"username":"bob","password":"short","password2":"short"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("short password returned %d, want 422", rec.Code)
	}

	// So is a confirmation that does not match.
	rec = doRequest(t, s, "POST", "/api/register", "", `{"username":"bob","password":"password123","password2":"password124"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("password mismatch returned %d, want 422", rec.Code)
	}

	rec = doRequest(t, s, "POST", "/api/login", "", `{"username":"alice","password":"password123"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("login returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, "POST", "/api/login", "", `{"username":"alice","password":"wrongpassword"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password returned %d, want 401", rec.Code)
	}
}

func TestAPIRequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/summary", "/api/accounts", "/api/recurring"} {
		rec := doRequest(t, s, "GET", path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without token returned %d, want 401", path, rec.Code)
		}
	}

	rec := doRequest(t, s, "GET", "/api/summary", "not-a-real-token", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bogus token returned %d, want 401", rec.Code)
	}
}

func TestWebPagesRedirectToLogin(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, "GET", "/", "", "")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("dashboard without session returned %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("redirect location = %q, want /login", loc)
	}
}

func TestAccountAndTransactionFlow(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "alice")

	accountID := createAccount(t, s, token, "Wallet", "100.00")

	// Record an expense of 30.00.
	rec := doRequest(t, s, "POST", "/api/transactions", token,
		`{"account_id":`+itoa(accountID)+`,"type":"expense","amount":"30.00","description":"groceries"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction returned %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID     int64  `json:"id"`
		Amount string `json:"amount"`
	}
	decodeBody(t, rec, &created)
	if created.Amount != "30.00" {
		t.Errorf("amount = %q, want 30.00", created.Amount)
	}

	assertBalance(t, s, token, accountID, "70.00")

	// Correct the amount upward.
	rec = doRequest(t, s, "PUT", "/api/transactions/"+itoa(created.ID), token,
		`{"account_id":`+itoa(accountID)+`,"type":"expense","amount":"45.00","description":"groceries"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update transaction returned %d: %s", rec.Code, rec.Body.String())
	}
	assertBalance(t, s, token, accountID, "55.00")

	// Delete restores the opening balance.
	rec = doRequest(t, s, "DELETE", "/api/transactions/"+itoa(created.ID), token, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete transaction returned %d: %s", rec.Code, rec.Body.String())
	}
	assertBalance(t, s, token, accountID, "100.00")

	rec = doRequest(t, s, "GET", "/api/transactions/"+itoa(created.ID), token, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted transaction returned %d, want 404", rec.Code)
	}
}

func TestTransactionValidationAndScoping(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "alice")
	accountID := createAccount(t, s, token, "Wallet", "0.00")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"zero amount", `{"account_id":` + itoa(accountID) + `,"type":"expense","amount":"0.00"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"account_id":` + itoa(accountID) + `,"type":"expense","amount":"-5.00"}`, http.StatusUnprocessableEntity},
		{"unknown type", `{"account_id":` + itoa(accountID) + `,"type":"withdrawal","amount":"5.00"}`, http.StatusUnprocessableEntity},
		{"missing account", `{"account_id":999,"type":"expense","amount":"5.00"}`, http.StatusNotFound},
		{"malformed body", `{"account_id":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, "POST", "/api/transactions", token, tt.body)
			if rec.Code != tt.want {
				t.Errorf("returned %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	// Another user cannot see or spend from the account.
	other := registerUser(t, s, "mallory")
	rec := doRequest(t, s, "GET", "/api/accounts/"+itoa(accountID), other, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign account read returned %d, want 404", rec.Code)
	}
	rec = doRequest(t, s, "POST", "/api/transactions", other,
		`{"account_id":`+itoa(accountID)+`,"type":"expense","amount":"5.00"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign account spend returned %d, want 404", rec.Code)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "alice")

	rec := doRequest(t, s, "POST", "/api/accounts", token, `{"name":"","currency":"USD"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty name returned %d, want 422", rec.Code)
	}

	rec = doRequest(t, s, "POST", "/api/accounts", token, `{"name":"Wallet","currency":"XXX"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown currency returned %d, want 422", rec.Code)
	}

	// Negative opening balances are allowed.
	rec = doRequest(t, s, "POST", "/api/accounts", token, `{"name":"Loan","currency":"USD","balance":"-250.00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("debt account returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Balance string `json:"balance"`
	}
	decodeBody(t, rec, &resp)
	if resp.Balance != "-250.00" {
		t.Errorf("balance = %q, want -250.00", resp.Balance)
	}
}

func TestCategoryCreateIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "alice")

	body := `{"name":"groceries","type":"expense"}`
	rec := doRequest(t, s, "POST", "/api/categories", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category returned %d: %s", rec.Code, rec.Body.String())
	}
	var first struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, rec, &first)

	rec = doRequest(t, s, "POST", "/api/categories", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("repeat create returned %d: %s", rec.Code, rec.Body.String())
	}
	var second struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, rec, &second)

	if first.ID != second.ID {
		t.Errorf("repeat create returned id %d, want %d", second.ID, first.ID)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "alice")
	accountID := createAccount(t, s, token, "Wallet", "100.00")

	rec := doRequest(t, s, "POST", "/api/transactions", token,
		`{"account_id":`+itoa(accountID)+`,"type":"expense","amount":"12.50"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, "GET", "/api/summary", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		TotalBalance  string `json:"total_balance"`
		TodayExpenses string `json:"today_expenses"`
		Accounts      []any  `json:"accounts"`
	}
	decodeBody(t, rec, &resp)

	if resp.TotalBalance != "87.50" {
		t.Errorf("total_balance = %q, want 87.50", resp.TotalBalance)
	}
	if resp.TodayExpenses != "12.50" {
		t.Errorf("today_expenses = %q, want 12.50", resp.TodayExpenses)
	}
	if len(resp.Accounts) != 1 {
		t.Errorf("accounts = %d, want 1", len(resp.Accounts))
	}
}

func TestRecurringEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "alice")
	accountID := createAccount(t, s, token, "Wallet", "100.00")

	rec := doRequest(t, s, "POST", "/api/recurring", token,
		`{"account_id":`+itoa(accountID)+`,"amount":"9.99","description":"streaming","frequency":"monthly","start_date":"2026-01-15"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create recurring returned %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID       int64 `json:"id"`
		IsActive bool  `json:"is_active"`
	}
	decodeBody(t, rec, &created)
	if !created.IsActive {
		t.Error("new payment should start active")
	}

	rec = doRequest(t, s, "POST", "/api/recurring/"+itoa(created.ID)+"/deactivate", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate returned %d: %s", rec.Code, rec.Body.String())
	}
	var updated struct {
		IsActive bool `json:"is_active"`
	}
	decodeBody(t, rec, &updated)
	if updated.IsActive {
		t.Error("payment should be paused after deactivate")
	}

	// Unknown frequency is a validation error.
	rec = doRequest(t, s, "POST", "/api/recurring", token,
		`{"account_id":`+itoa(accountID)+`,"amount":"9.99","description":"x","frequency":"fortnightly","start_date":"2026-01-15"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown frequency returned %d, want 422", rec.Code)
	}
}

func assertBalance(t *testing.T, s *Server, token string, accountID int64, want string) {
	t.Helper()

	rec := doRequest(t, s, "GET", "/api/accounts/"+itoa(accountID), token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get account returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Balance string `json:"balance"`
	}
	decodeBody(t, rec, &resp)
	if resp.Balance != want {
		t.Errorf("balance = %q, want %q", resp.Balance, want)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
