package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"kassa/internal/storage"
)

type contextKey string

const userIDKey contextKey = "user_id"

const sessionCookie = "kassa_token"

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

type authResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// handleRegister creates a user and issues their first API token in
// one request, as two explicit steps.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.register(r.Context(), req.Username, req.Password, req.Password2)
	if err != nil {
		if errors.Is(err, storage.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		if isValidationError(err) || isCredentialError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

var (
	errUsernameRequired = errors.New("username is required")
	errPasswordTooShort = errors.New("password must be at least 8 characters")
	errPasswordMismatch = errors.New("passwords do not match")
)

func isCredentialError(err error) bool {
	return errors.Is(err, errUsernameRequired) ||
		errors.Is(err, errPasswordTooShort) ||
		errors.Is(err, errPasswordMismatch)
}

func (s *Server) register(ctx context.Context, username, password, password2 string) (*authResponse, error) {
	username = sanitizeInput(username)
	if username == "" {
		return nil, errUsernameRequired
	}
	if len(password) < 8 {
		return nil, errPasswordTooShort
	}
	if password != password2 {
		return nil, errPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, username, string(hash))
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	if err := s.repo.CreateToken(ctx, user.ID, token); err != nil {
		return nil, err
	}

	return &authResponse{UserID: user.ID, Username: user.Username, Token: token}, nil
}

func (s *Server) login(ctx context.Context, username, password string) (*authResponse, error) {
	user, err := s.repo.GetUserByUsername(ctx, sanitizeInput(username))
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, err
	}

	token := uuid.NewString()
	if err := s.repo.CreateToken(ctx, user.ID, token); err != nil {
		return nil, err
	}

	return &authResponse{UserID: user.ID, Username: user.Username, Token: token}, nil
}

// auth wraps an API handler with bearer-token authentication.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

// webAuth is auth for browser pages: unauthenticated visitors are
// redirected to the login form instead of getting a JSON error.
func (s *Server) webAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.authenticate(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

// authenticate resolves the caller from the Authorization header or,
// for browser sessions, the token cookie.
func (s *Server) authenticate(r *http.Request) (int64, bool) {
	token := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	} else if c, err := r.Cookie(sessionCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		return 0, false
	}

	userID, err := s.repo.GetUserIDByToken(r.Context(), token)
	if err != nil {
		return 0, false
	}
	return userID, true
}

func userID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
