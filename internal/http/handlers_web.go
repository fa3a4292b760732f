package http

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"kassa/internal/core"
)

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(m core.Money) string { return m.String() },
		"moneyIn": func(m core.Money, c core.Currency) string {
			return m.Format(c)
		},
		"shortDate": func(v any) string {
			switch t := v.(type) {
			case time.Time:
				return t.Format("2006-01-02")
			case *time.Time:
				if t != nil {
					return t.Format("2006-01-02")
				}
			}
			return ""
		},
		"monthName": func(m int) string { return time.Month(m).String() },
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "page", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template render failed", "page", name, "error", err)
	}
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	summary, err := s.summaries.GetSummary(r.Context(), uid)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	recent, err := s.repo.ListRecentTransactions(r.Context(), uid, 10)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.render(w, r, "dashboard.html", map[string]any{
		"Summary": summary,
		"Recent":  recent,
	})
}

func (s *Server) handleAccountPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	uid := userID(r)

	account, err := s.repo.GetAccount(r.Context(), uid, id)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	period := core.ParsePeriod(r.URL.Query().Get("period"))
	transactions, err := s.summaries.GetAccountTransactions(r.Context(), uid, id, period, nil, nil, 100)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	expenses, income, err := s.summaries.GetAccountPeriodSums(r.Context(), uid, id, period)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.render(w, r, "account.html", map[string]any{
		"Account":      account,
		"Period":       period,
		"Transactions": transactions,
		"Expenses":     expenses,
		"Income":       income,
	})
}

func (s *Server) handleStatisticsPage(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)
	stats, err := s.summaries.GetStatistics(r.Context(), userID(r), year, month, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.render(w, r, "statistics.html", map[string]any{"Stats": stats})
}

func (s *Server) handleRecurringPage(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	payments, err := s.repo.ListRecurringPayments(r.Context(), uid)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	accounts, err := s.repo.ListAccounts(r.Context(), uid)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.render(w, r, "recurring.html", map[string]any{
		"Payments": payments,
		"Accounts": accounts,
	})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login.html", nil)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	resp, err := s.login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		s.render(w, r, "login.html", map[string]any{"Error": "Invalid username or password"})
		return
	}

	setSessionCookie(w, resp.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "register.html", nil)
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	resp, err := s.register(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"), r.PostFormValue("password2"))
	if err != nil {
		s.render(w, r, "register.html", map[string]any{"Error": err.Error()})
		return
	}

	setSessionCookie(w, resp.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
