package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/habitd/internal/auth"
	"github.com/dukerupert/habitd/internal/websocket"
)

const maxBodyBytes = 1 << 20

// Broadcaster pushes change notifications to a user's live connections.
type Broadcaster interface {
	BroadcastTo(userID string, msg websocket.Message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// NotFound answers routes that match no pattern.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not Found")
}

// serverError logs err and answers 500 with a generic detail.
func serverError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, detail string, err error) {
	logger.Error(detail, "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, detail)
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("invalid JSON")
	}
	return nil
}

func notify(b Broadcaster, userID, entity, action, id string, extra map[string]any) {
	if b == nil {
		return
	}
	b.BroadcastTo(userID, websocket.NewMessage(entity, action, id, extra))
}

func currentUser(r *http.Request) string {
	return auth.UserID(r.Context())
}

// emptyIfNil keeps list endpoints from encoding null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
