package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/habitd/internal/habit"
	"github.com/dukerupert/habitd/internal/model"
	"github.com/dukerupert/habitd/internal/store"
)

type CompletionHandler struct {
	completions CompletionRepository
	habits      HabitRepository
	hub         Broadcaster
	loc         *time.Location
	now         func() time.Time
	logger      *slog.Logger
}

func NewCompletionHandler(completions CompletionRepository, habits HabitRepository, hub Broadcaster, loc *time.Location, logger *slog.Logger) *CompletionHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CompletionHandler{
		completions: completions,
		habits:      habits,
		hub:         hub,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}
}

type completionRequest struct {
	HabitID   string `json:"habit_id"`
	Date      string `json:"date"`
	Completed *bool  `json:"completed"`
}

// resolve validates the request and fills in today's date when none is given.
func (h *CompletionHandler) resolve(req *completionRequest) string {
	if req.HabitID == "" {
		return "habit_id is required"
	}
	if req.Date == "" {
		req.Date = habit.Today(h.now(), h.loc)
		return ""
	}
	if _, err := habit.ParseDate(req.Date); err != nil {
		return err.Error()
	}
	return ""
}

func (h *CompletionHandler) ownedCompletion(w http.ResponseWriter, r *http.Request) (*model.Completion, bool) {
	c, err := h.completions.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		serverError(w, h.logger, r, "failed to get completion", err)
		return nil, false
	}
	if c == nil || c.UserID != currentUser(r) {
		writeError(w, http.StatusNotFound, "Completion not found")
		return nil, false
	}
	return c, true
}

func (h *CompletionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := h.resolve(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if _, ok := ownedHabit(w, r, h.habits, h.logger, req.HabitID); !ok {
		return
	}

	userID := currentUser(r)
	c, err := h.completions.Create(r.Context(), model.Completion{
		HabitID:   req.HabitID,
		UserID:    userID,
		Date:      req.Date,
		Completed: req.Completed != nil && *req.Completed,
	})
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusBadRequest, "A completion already exists for this habit and date")
		return
	}
	if err != nil {
		serverError(w, h.logger, r, "failed to create completion", err)
		return
	}

	notify(h.hub, userID, "completion", "created", c.ID, map[string]any{"habit_id": c.HabitID, "date": c.Date})
	writeJSON(w, http.StatusCreated, c)
}

func (h *CompletionHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ownedCompletion(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListByHabit serves GET /habits/{id}/completions with optional from/to dates.
func (h *CompletionHandler) ListByHabit(w http.ResponseWriter, r *http.Request) {
	existing, ok := ownedHabit(w, r, h.habits, h.logger, r.PathValue("id"))
	if !ok {
		return
	}

	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := habit.ParseDate(d); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	list, err := h.completions.ListByHabit(r.Context(), existing.ID, from, to)
	if err != nil {
		serverError(w, h.logger, r, "failed to list completions", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (h *CompletionHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.ownedCompletion(w, r)
	if !ok {
		return
	}

	var req struct {
		Completed *bool `json:"completed"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Completed == nil {
		writeError(w, http.StatusBadRequest, "No fields provided for update")
		return
	}

	c, err := h.completions.SetCompleted(r.Context(), existing.ID, *req.Completed)
	if err != nil {
		serverError(w, h.logger, r, "failed to update completion", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Completion not found")
		return
	}

	notify(h.hub, c.UserID, "completion", "updated", c.ID, map[string]any{"habit_id": c.HabitID, "date": c.Date})
	writeJSON(w, http.StatusOK, c)
}

// Upsert serves PUT /completions/upsert: the record for (habit_id, date) is
// created if absent and updated in place otherwise.
func (h *CompletionHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := h.resolve(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Completed == nil {
		writeError(w, http.StatusBadRequest, "completed is required")
		return
	}
	if _, ok := ownedHabit(w, r, h.habits, h.logger, req.HabitID); !ok {
		return
	}

	userID := currentUser(r)
	c, err := h.completions.Upsert(r.Context(), userID, req.HabitID, req.Date, *req.Completed)
	if err != nil {
		serverError(w, h.logger, r, "failed to upsert completion", err)
		return
	}

	notify(h.hub, userID, "completion", "updated", c.ID, map[string]any{"habit_id": c.HabitID, "date": c.Date})
	writeJSON(w, http.StatusOK, c)
}

func (h *CompletionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.ownedCompletion(w, r)
	if !ok {
		return
	}
	deleted, err := h.completions.Delete(r.Context(), existing.ID)
	if err != nil {
		serverError(w, h.logger, r, "failed to delete completion", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Completion not found")
		return
	}

	notify(h.hub, existing.UserID, "completion", "deleted", existing.ID, map[string]any{"habit_id": existing.HabitID})
	w.WriteHeader(http.StatusNoContent)
}

// Prepare runs the daily completions sweep for today. Safe to call any
// number of times.
func (h *CompletionHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	today := habit.Today(h.now(), h.loc)
	created, err := h.completions.PrepareDay(r.Context(), today)
	if err != nil {
		serverError(w, h.logger, r, "failed to prepare completions", err)
		return
	}

	h.logger.Info("prepared completions", "date", today, "created", created)
	writeJSON(w, http.StatusOK, map[string]any{
		"detail":  "Daily completions prepared",
		"date":    today,
		"created": created,
	})
}
