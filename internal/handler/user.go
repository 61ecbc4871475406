package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/habitd/internal/credential"
	"github.com/dukerupert/habitd/internal/model"
	"github.com/dukerupert/habitd/internal/store"
)

type UserHandler struct {
	users  UserRepository
	cred   credential.Service
	hub    Broadcaster
	logger *slog.Logger
}

func NewUserHandler(users UserRepository, cred credential.Service, hub Broadcaster, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, cred: cred, hub: hub, logger: logger}
}

// self reports whether the {id} path value names the caller. Acting on
// another account is forbidden.
func self(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id != currentUser(r) {
		writeError(w, http.StatusForbidden, "Not allowed to access another user")
		return "", false
	}
	return id, true
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := self(w, r)
	if !ok {
		return
	}
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		serverError(w, h.logger, r, "failed to get user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type userUpdateRequest struct {
	Email                *string `json:"email"`
	Name                 *string `json:"name"`
	Password             *string `json:"password"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := self(w, r)
	if !ok {
		return
	}

	var req userUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var patch model.UserPatch
	if req.Email != nil {
		email, err := normalizeEmail(*req.Email)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.Email = &email
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "name cannot be blank")
			return
		}
		patch.Name = &name
	}
	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
			return
		}
		hash, err := h.cred.HashPassword(*req.Password)
		if err != nil {
			serverError(w, h.logger, r, "failed to update user", err)
			return
		}
		patch.PasswordHash = &hash
	}
	patch.NotificationsEnabled = req.NotificationsEnabled

	if patch.IsEmpty() {
		writeError(w, http.StatusBadRequest, "No fields provided for update")
		return
	}

	user, err := h.users.Update(r.Context(), id, patch)
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusBadRequest, "email already registered")
		return
	}
	if err != nil {
		serverError(w, h.logger, r, "failed to update user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	notify(h.hub, id, "user", "updated", id, nil)
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := self(w, r)
	if !ok {
		return
	}
	deleted, err := h.users.Delete(r.Context(), id)
	if err != nil {
		serverError(w, h.logger, r, "failed to delete user", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	h.logger.Info("user deleted", "user_id", id)
	w.WriteHeader(http.StatusNoContent)
}
