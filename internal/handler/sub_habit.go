package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/habitd/internal/habit"
	"github.com/dukerupert/habitd/internal/model"
	"github.com/dukerupert/habitd/internal/store"
)

type SubHabitHandler struct {
	subHabits *store.SubHabitStore
	habits    HabitRepository
	hub       Broadcaster
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

func NewSubHabitHandler(subHabits *store.SubHabitStore, habits HabitRepository, hub Broadcaster, loc *time.Location, logger *slog.Logger) *SubHabitHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &SubHabitHandler{
		subHabits: subHabits,
		habits:    habits,
		hub:       hub,
		loc:       loc,
		now:       time.Now,
		logger:    logger,
	}
}

// owned loads the sub-habit named by {id} and checks its parent habit
// belongs to the caller.
func (h *SubHabitHandler) owned(w http.ResponseWriter, r *http.Request) (*model.SubHabit, bool) {
	sh, err := h.subHabits.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		serverError(w, h.logger, r, "failed to get sub-habit", err)
		return nil, false
	}
	if sh == nil {
		writeError(w, http.StatusNotFound, "Sub-habit not found")
		return nil, false
	}
	parent, err := h.habits.GetByID(r.Context(), sh.HabitID)
	if err != nil {
		serverError(w, h.logger, r, "failed to get habit", err)
		return nil, false
	}
	if parent == nil || parent.UserID != currentUser(r) {
		writeError(w, http.StatusNotFound, "Sub-habit not found")
		return nil, false
	}
	return sh, true
}

type subHabitRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	SortIndex   *int    `json:"sort_index"`
}

func (h *SubHabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	parent, ok := ownedHabit(w, r, h.habits, h.logger, r.PathValue("id"))
	if !ok {
		return
	}

	var req subHabitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	var desc string
	if req.Description != nil {
		desc = *req.Description
	}
	var sortIndex int
	if req.SortIndex != nil {
		sortIndex = *req.SortIndex
	}

	sh, err := h.subHabits.Create(r.Context(), parent.ID, strings.TrimSpace(*req.Name), desc, sortIndex)
	if err != nil {
		serverError(w, h.logger, r, "failed to create sub-habit", err)
		return
	}

	notify(h.hub, parent.UserID, "sub_habit", "created", sh.ID, map[string]any{"habit_id": parent.ID})
	writeJSON(w, http.StatusCreated, sh)
}

func (h *SubHabitHandler) List(w http.ResponseWriter, r *http.Request) {
	parent, ok := ownedHabit(w, r, h.habits, h.logger, r.PathValue("id"))
	if !ok {
		return
	}
	list, err := h.subHabits.ListByHabit(r.Context(), parent.ID)
	if err != nil {
		serverError(w, h.logger, r, "failed to list sub-habits", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (h *SubHabitHandler) Get(w http.ResponseWriter, r *http.Request) {
	sh, ok := h.owned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (h *SubHabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	sh, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req subHabitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := model.SubHabitPatch{Description: req.Description, SortIndex: req.SortIndex}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "name cannot be blank")
			return
		}
		p.Name = &name
	}
	if p.IsEmpty() {
		writeError(w, http.StatusBadRequest, "No fields provided for update")
		return
	}

	updated, err := h.subHabits.Update(r.Context(), sh.ID, p)
	if err != nil {
		serverError(w, h.logger, r, "failed to update sub-habit", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "Sub-habit not found")
		return
	}

	notify(h.hub, currentUser(r), "sub_habit", "updated", sh.ID, map[string]any{"habit_id": sh.HabitID})
	writeJSON(w, http.StatusOK, updated)
}

func (h *SubHabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sh, ok := h.owned(w, r)
	if !ok {
		return
	}
	if _, err := h.subHabits.Delete(r.Context(), sh.ID); err != nil {
		serverError(w, h.logger, r, "failed to delete sub-habit", err)
		return
	}

	notify(h.hub, currentUser(r), "sub_habit", "deleted", sh.ID, map[string]any{"habit_id": sh.HabitID})
	w.WriteHeader(http.StatusNoContent)
}

// SetCompletion serves PUT /sub_habits/{id}/completions.
func (h *SubHabitHandler) SetCompletion(w http.ResponseWriter, r *http.Request) {
	sh, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req struct {
		Date      string `json:"date"`
		Completed *bool  `json:"completed"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Completed == nil {
		writeError(w, http.StatusBadRequest, "completed is required")
		return
	}
	if req.Date == "" {
		req.Date = habit.Today(h.now(), h.loc)
	} else if _, err := habit.ParseDate(req.Date); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := currentUser(r)
	c, err := h.subHabits.UpsertCompletion(r.Context(), userID, sh.ID, req.Date, *req.Completed)
	if err != nil {
		serverError(w, h.logger, r, "failed to record sub-habit completion", err)
		return
	}

	notify(h.hub, userID, "sub_habit_completion", "updated", c.ID, map[string]any{"sub_habit_id": sh.ID, "date": c.Date})
	writeJSON(w, http.StatusOK, c)
}

func (h *SubHabitHandler) ListCompletions(w http.ResponseWriter, r *http.Request) {
	sh, ok := h.owned(w, r)
	if !ok {
		return
	}
	list, err := h.subHabits.ListCompletions(r.Context(), sh.ID)
	if err != nil {
		serverError(w, h.logger, r, "failed to list sub-habit completions", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}
