package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/habitd/internal/store"
)

type ReminderHandler struct {
	reminders *store.ReminderStore
	hub       Broadcaster
	logger    *slog.Logger
}

func NewReminderHandler(reminders *store.ReminderStore, hub Broadcaster, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{reminders: reminders, hub: hub, logger: logger}
}

type reminderRequest struct {
	Text      *string    `json:"text"`
	DueDate   *time.Time `json:"due_date"`
	Completed *bool      `json:"completed"`
}

// validate requires text and due_date. completed is required only for full
// replacement.
func (req reminderRequest) validate(requireCompleted bool) string {
	if req.Text == nil || strings.TrimSpace(*req.Text) == "" {
		return "text is required"
	}
	if req.DueDate == nil {
		return "due_date is required (RFC 3339)"
	}
	if requireCompleted && req.Completed == nil {
		return "completed is required"
	}
	return ""
}

func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.reminders.ListByUser(r.Context(), currentUser(r))
	if err != nil {
		serverError(w, h.logger, r, "failed to list reminders", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(false); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	userID := currentUser(r)
	rem, err := h.reminders.Create(r.Context(), userID, strings.TrimSpace(*req.Text), *req.DueDate, req.Completed != nil && *req.Completed)
	if err != nil {
		serverError(w, h.logger, r, "failed to create reminder", err)
		return
	}

	notify(h.hub, userID, "reminder", "created", rem.ID, nil)
	writeJSON(w, http.StatusCreated, rem)
}

// Replace serves PUT /reminders/{id}; every field must be supplied.
func (h *ReminderHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(true); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	userID := currentUser(r)
	rem, err := h.reminders.Update(r.Context(), userID, r.PathValue("id"), strings.TrimSpace(*req.Text), *req.DueDate, *req.Completed)
	if err != nil {
		serverError(w, h.logger, r, "failed to update reminder", err)
		return
	}
	if rem == nil {
		writeError(w, http.StatusNotFound, "Reminder not found")
		return
	}

	notify(h.hub, userID, "reminder", "updated", rem.ID, nil)
	writeJSON(w, http.StatusOK, rem)
}

func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	id := r.PathValue("id")
	deleted, err := h.reminders.Delete(r.Context(), userID, id)
	if err != nil {
		serverError(w, h.logger, r, "failed to delete reminder", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Reminder not found")
		return
	}

	notify(h.hub, userID, "reminder", "deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
