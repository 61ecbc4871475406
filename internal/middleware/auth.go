package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/habitd/internal/auth"
	"github.com/dukerupert/habitd/internal/model"
)

// TokenParser validates an access token and returns the user id it was issued for.
type TokenParser interface {
	ParseToken(token string) (string, error)
}

// UserLookup finds an account by id, returning nil when it does not exist.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// RequireBearer validates the bearer token, checks that its account still
// exists and populates AuthContext. The access_token query parameter is
// accepted for clients that cannot set headers, such as browser WebSocket
// connections.
func RequireBearer(tokens TokenParser, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "Not authenticated")
				return
			}

			userID, err := tokens.ParseToken(token)
			if err != nil {
				unauthorized(w, "Could not validate credentials")
				return
			}

			user, err := users.GetByID(r.Context(), userID)
			if err != nil {
				slog.ErrorContext(r.Context(), "look up token subject", "path", r.URL.Path, "error", err)
				writeDetail(w, http.StatusInternalServerError, "failed to validate credentials")
				return
			}
			if user == nil {
				// token outlived its account
				unauthorized(w, "Could not validate credentials")
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{UserID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("access_token")
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized, detail)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
