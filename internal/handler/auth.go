package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/mail"
	"strings"

	"github.com/dukerupert/habitd/internal/credential"
	"github.com/dukerupert/habitd/internal/store"
)

const minPasswordLength = 8

type AuthHandler struct {
	users  UserRepository
	cred   credential.Service
	logger *slog.Logger
}

func NewAuthHandler(users UserRepository, cred credential.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, cred: cred, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func normalizeEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", errors.New("email is invalid")
	}
	return strings.ToLower(s), nil
}

// Register creates an account. Username is accepted as an alias for name.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSpace(req.Username)
	}
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := h.cred.HashPassword(req.Password)
	if err != nil {
		serverError(w, h.logger, r, "failed to create user", err)
		return
	}

	user, err := h.users.Create(r.Context(), email, name, hash)
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusBadRequest, "email already registered")
		return
	}
	if err != nil {
		serverError(w, h.logger, r, "failed to create user", err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

// Token exchanges credentials for an access token. It accepts an OAuth2
// password form (username, password) or a JSON body (email, password).
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var email, password string

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req struct {
			Email    string `json:"email"`
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		email = req.Email
		if email == "" {
			email = req.Username
		}
		password = req.Password
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form")
			return
		}
		email = r.PostFormValue("username")
		password = r.PostFormValue("password")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.users.GetByEmail(r.Context(), email)
	if err != nil {
		serverError(w, h.logger, r, "failed to look up user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	if err := h.cred.VerifyPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, credential.ErrMismatchedPassword) {
			writeError(w, http.StatusUnauthorized, "Incorrect email or password")
			return
		}
		serverError(w, h.logger, r, "failed to verify password", err)
		return
	}

	token, err := h.cred.IssueToken(user.ID)
	if err != nil {
		serverError(w, h.logger, r, "failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(h.cred.TokenTTL().Seconds()),
	})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), currentUser(r))
	if err != nil {
		serverError(w, h.logger, r, "failed to get user", err)
		return
	}
	if user == nil {
		// token outlived its account
		writeError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

