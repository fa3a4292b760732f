// Package http serves the web UI and the JSON API. Handlers stay thin:
// parsing and response shaping here, ledger and query semantics in the
// services.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"kassa/internal/cache"
	"kassa/internal/config"
	"kassa/internal/middleware/ratelimit"
	"kassa/internal/middleware/security"
	"kassa/internal/middleware/trace"
	"kassa/internal/services"
	"kassa/internal/storage"
	appweb "kassa/web"
)

type Server struct {
	http.Server

	templates    *template.Template
	repo         *storage.SQLiteRepository
	transactions *services.TransactionService
	summaries    *services.SummaryService

	tracer       *trace.Middleware
	headers      *security.HeadersMiddleware
	limiter      *ratelimit.Limiter
	cacheManager *cache.Manager

	// summaryGroup collapses concurrent dashboard loads for the same
	// user into one query.
	summaryGroup singleflight.Group

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(cfg *config.Config, repo *storage.SQLiteRepository, transactions *services.TransactionService, summaries *services.SummaryService, cacheManager *cache.Manager) *Server {
	mux := http.NewServeMux()

	s := &Server{
		repo:         repo,
		transactions: transactions,
		summaries:    summaries,
		tracer:       trace.NewMiddleware(extractClientIP),
		headers:      security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			CleanupInterval:   5 * time.Minute,
		}),
		cacheManager: cacheManager,
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	// JSON API
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	mux.HandleFunc("GET /api/summary", s.auth(s.handleSummary))
	mux.HandleFunc("GET /api/statistics", s.auth(s.handleStatistics))

	mux.HandleFunc("GET /api/accounts", s.auth(s.handleListAccounts))
	mux.HandleFunc("POST /api/accounts", s.auth(s.handleCreateAccount))
	mux.HandleFunc("GET /api/accounts/{id}", s.auth(s.handleGetAccount))
	mux.HandleFunc("DELETE /api/accounts/{id}", s.auth(s.handleDeleteAccount))
	mux.HandleFunc("GET /api/accounts/{id}/transactions", s.auth(s.handleAccountTransactions))
	mux.HandleFunc("GET /api/accounts/{id}/audit", s.auth(s.handleAccountAudit))

	mux.HandleFunc("GET /api/categories", s.auth(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.auth(s.handleCreateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.auth(s.handleDeleteCategory))

	mux.HandleFunc("POST /api/transactions", s.auth(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions/{id}", s.auth(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.auth(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.auth(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/recurring", s.auth(s.handleListRecurring))
	mux.HandleFunc("POST /api/recurring", s.auth(s.handleCreateRecurring))
	mux.HandleFunc("GET /api/recurring/{id}", s.auth(s.handleGetRecurring))
	mux.HandleFunc("DELETE /api/recurring/{id}", s.auth(s.handleDeleteRecurring))
	mux.HandleFunc("POST /api/recurring/{id}/activate", s.auth(s.handleActivateRecurring))
	mux.HandleFunc("POST /api/recurring/{id}/deactivate", s.auth(s.handleDeactivateRecurring))

	// Web UI
	mux.HandleFunc("GET /{$}", s.webAuth(s.handleDashboardPage))
	mux.HandleFunc("GET /accounts/{id}", s.webAuth(s.handleAccountPage))
	mux.HandleFunc("GET /statistics", s.webAuth(s.handleStatisticsPage))
	mux.HandleFunc("GET /recurring", s.webAuth(s.handleRecurringPage))
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLoginForm)
	mux.HandleFunc("GET /register", s.handleRegisterPage)
	mux.HandleFunc("POST /register", s.handleRegisterForm)
	mux.HandleFunc("POST /logout", s.handleLogout)

	rateLimited := s.limiter.Middleware(extractClientIP, nil)
	handler := s.tracer.Middleware(s.headers.Middleware(rateLimited(mux)))

	s.Server = http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Shutdown stops the HTTP server and the background cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// extractClientIP resolves the client address, honoring proxy headers.
func extractClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if i := strings.IndexByte(ip, ','); i >= 0 {
			return strings.TrimSpace(ip[:i])
		}
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
