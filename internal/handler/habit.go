package handler

import (
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/habitd/internal/habit"
	"github.com/dukerupert/habitd/internal/model"
)

var hexColorRegexp = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type HabitHandler struct {
	habits      HabitRepository
	completions CompletionRepository
	hub         Broadcaster
	loc         *time.Location
	now         func() time.Time
	logger      *slog.Logger
}

func NewHabitHandler(habits HabitRepository, completions CompletionRepository, hub Broadcaster, loc *time.Location, logger *slog.Logger) *HabitHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &HabitHandler{
		habits:      habits,
		completions: completions,
		hub:         hub,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}
}

// ownedHabit loads the habit and checks it belongs to the caller. Other
// users' habits are reported as missing.
func ownedHabit(w http.ResponseWriter, r *http.Request, habits HabitRepository, logger *slog.Logger, id string) (*model.Habit, bool) {
	h, err := habits.GetByID(r.Context(), id)
	if err != nil {
		serverError(w, logger, r, "failed to get habit", err)
		return nil, false
	}
	if h == nil || h.UserID != currentUser(r) {
		writeError(w, http.StatusNotFound, "Habit not found")
		return nil, false
	}
	return h, true
}

type habitRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	SortIndex   *int    `json:"sort_index"`
	Category    *string `json:"category"`
	Color       *string `json:"color"`
	Icon        *string `json:"icon"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Archived    *bool   `json:"archived"`
}

// patch validates the request fields and converts them to a HabitPatch.
func (req habitRequest) patch() (model.HabitPatch, string) {
	var p model.HabitPatch
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return p, "name cannot be blank"
		}
		p.Name = &name
	}
	if req.Color != nil && !hexColorRegexp.MatchString(*req.Color) {
		return p, "color must be a hex color (e.g. #FF0000)"
	}
	for _, d := range []*string{req.StartDate, req.EndDate} {
		if d == nil {
			continue
		}
		if _, err := habit.ParseDate(*d); err != nil {
			return p, err.Error()
		}
	}
	p.Description = req.Description
	p.SortIndex = req.SortIndex
	p.Category = req.Category
	p.Color = req.Color
	p.Icon = req.Icon
	p.StartDate = req.StartDate
	p.EndDate = req.EndDate
	p.Archived = req.Archived
	return p, ""
}

func dateRangeOK(h model.Habit) bool {
	var start, end string
	if h.StartDate != nil {
		start = *h.StartDate
	}
	if h.EndDate != nil {
		end = *h.EndDate
	}
	return habit.ValidRange(start, end)
}

func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req habitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == nil {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	p, msg := req.patch()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	userID := currentUser(r)
	newHabit := p.Apply(model.Habit{UserID: userID})
	if !dateRangeOK(newHabit) {
		writeError(w, http.StatusBadRequest, "start_date must not be after end_date")
		return
	}

	created, err := h.habits.Create(r.Context(), newHabit)
	if err != nil {
		serverError(w, h.logger, r, "failed to create habit", err)
		return
	}

	notify(h.hub, userID, "habit", "created", created.ID, nil)
	writeJSON(w, http.StatusCreated, created)
}

func (h *HabitHandler) Get(w http.ResponseWriter, r *http.Request) {
	existing, ok := ownedHabit(w, r, h.habits, h.logger, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

// ListByUser serves GET /users/{id}/habits. Archived habits are included
// only with ?include_archived=true.
func (h *HabitHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := self(w, r)
	if !ok {
		return
	}
	includeArchived, _ := strconv.ParseBool(r.URL.Query().Get("include_archived"))

	habits, err := h.habits.ListByUser(r.Context(), userID, includeArchived)
	if err != nil {
		serverError(w, h.logger, r, "failed to list habits", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(habits))
}

func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := ownedHabit(w, r, h.habits, h.logger, r.PathValue("id"))
	if !ok {
		return
	}

	var req habitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, msg := req.patch()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if p.IsEmpty() {
		writeError(w, http.StatusBadRequest, "No fields provided for update")
		return
	}
	if !dateRangeOK(p.Apply(*existing)) {
		writeError(w, http.StatusBadRequest, "start_date must not be after end_date")
		return
	}

	updated, err := h.habits.Update(r.Context(), existing.ID, p)
	if err != nil {
		serverError(w, h.logger, r, "failed to update habit", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "Habit not found")
		return
	}

	notify(h.hub, existing.UserID, "habit", "updated", updated.ID, nil)
	writeJSON(w, http.StatusOK, updated)
}

func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := ownedHabit(w, r, h.habits, h.logger, r.PathValue("id"))
	if !ok {
		return
	}

	deleted, err := h.habits.Delete(r.Context(), existing.ID)
	if err != nil {
		serverError(w, h.logger, r, "failed to delete habit", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Habit not found")
		return
	}

	notify(h.hub, existing.UserID, "habit", "deleted", existing.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}

// Sort reorders the caller's habits to match the given id list.
func (h *HabitHandler) Sort(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	userID := currentUser(r)
	if err := h.habits.UpdateSortOrder(r.Context(), userID, req.IDs); err != nil {
		serverError(w, h.logger, r, "failed to sort habits", err)
		return
	}

	habits, err := h.habits.ListByUser(r.Context(), userID, true)
	if err != nil {
		serverError(w, h.logger, r, "failed to list habits", err)
		return
	}

	notify(h.hub, userID, "habit", "sorted", "", nil)
	writeJSON(w, http.StatusOK, emptyIfNil(habits))
}

type streakResponse struct {
	UserID  string `json:"user_id"`
	HabitID string `json:"habit_id"`
	Date    string `json:"date"`
	Streak  int    `json:"streak"`
}

// Streak serves GET /users/{id}/habits/{habit_id}/completion_streak.
func (h *HabitHandler) Streak(w http.ResponseWriter, r *http.Request) {
	userID, ok := self(w, r)
	if !ok {
		return
	}
	existing, ok := ownedHabit(w, r, h.habits, h.logger, r.PathValue("habit_id"))
	if !ok {
		return
	}

	dates, err := h.completions.CompletedDates(r.Context(), userID, existing.ID)
	if err != nil {
		serverError(w, h.logger, r, "failed to calculate streak", err)
		return
	}

	today := h.now().In(h.loc)
	writeJSON(w, http.StatusOK, streakResponse{
		UserID:  userID,
		HabitID: existing.ID,
		Date:    habit.Today(today, h.loc),
		Streak:  habit.Streak(dates, today),
	})
}
