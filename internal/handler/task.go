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

// TaskHandler serves tasks, their sub-tasks, and the daily statuses and
// attributes attached to either.
type TaskHandler struct {
	tasks          *store.TaskStore
	taskDetails    *store.TaskDetailStore
	subTaskDetails *store.TaskDetailStore
	hub            Broadcaster
	loc            *time.Location
	now            func() time.Time
	logger         *slog.Logger
}

func NewTaskHandler(tasks *store.TaskStore, taskDetails, subTaskDetails *store.TaskDetailStore, hub Broadcaster, loc *time.Location, logger *slog.Logger) *TaskHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &TaskHandler{
		tasks:          tasks,
		taskDetails:    taskDetails,
		subTaskDetails: subTaskDetails,
		hub:            hub,
		loc:            loc,
		now:            time.Now,
		logger:         logger,
	}
}

type taskRequest struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	CompletionMode *string `json:"completion_mode"`
}

func (req taskRequest) patch(validMode func(string) bool) (model.TaskPatch, string) {
	p := model.TaskPatch{Description: req.Description}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return p, "title cannot be blank"
		}
		p.Title = &title
	}
	if req.CompletionMode != nil {
		mode := strings.ToUpper(strings.TrimSpace(*req.CompletionMode))
		if !validMode(mode) {
			return p, "invalid completion_mode"
		}
		p.CompletionMode = &mode
	}
	return p, ""
}

func (h *TaskHandler) ownedTask(w http.ResponseWriter, r *http.Request, id string) (*model.Task, bool) {
	t, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		serverError(w, h.logger, r, "failed to get task", err)
		return nil, false
	}
	if t == nil || t.UserID != currentUser(r) {
		writeError(w, http.StatusNotFound, "Task not found")
		return nil, false
	}
	return t, true
}

func (h *TaskHandler) ownedSubTask(w http.ResponseWriter, r *http.Request, id string) (*model.SubTask, bool) {
	st, err := h.tasks.GetSubTaskByID(r.Context(), id)
	if err != nil {
		serverError(w, h.logger, r, "failed to get sub-task", err)
		return nil, false
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "Sub-task not found")
		return nil, false
	}
	parent, err := h.tasks.GetByID(r.Context(), st.TaskID)
	if err != nil {
		serverError(w, h.logger, r, "failed to get task", err)
		return nil, false
	}
	if parent == nil || parent.UserID != currentUser(r) {
		writeError(w, http.StatusNotFound, "Sub-task not found")
		return nil, false
	}
	return st, true
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == nil {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.CompletionMode == nil {
		mode := model.TaskModeAll
		req.CompletionMode = &mode
	}
	p, msg := req.patch(model.ValidTaskMode)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	var desc string
	if p.Description != nil {
		desc = *p.Description
	}

	userID := currentUser(r)
	t, err := h.tasks.Create(r.Context(), userID, *p.Title, desc, *p.CompletionMode)
	if err != nil {
		serverError(w, h.logger, r, "failed to create task", err)
		return
	}

	notify(h.hub, userID, "task", "created", t.ID, nil)
	writeJSON(w, http.StatusCreated, t)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListByUser(r.Context(), currentUser(r))
	if err != nil {
		serverError(w, h.logger, r, "failed to list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(tasks))
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownedTask(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownedTask(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, msg := req.patch(model.ValidTaskMode)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if p.IsEmpty() {
		writeError(w, http.StatusBadRequest, "No fields provided for update")
		return
	}

	updated, err := h.tasks.Update(r.Context(), t.ID, p)
	if err != nil {
		serverError(w, h.logger, r, "failed to update task", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}

	notify(h.hub, t.UserID, "task", "updated", t.ID, nil)
	writeJSON(w, http.StatusOK, updated)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownedTask(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if _, err := h.tasks.Delete(r.Context(), t.ID); err != nil {
		serverError(w, h.logger, r, "failed to delete task", err)
		return
	}

	notify(h.hub, t.UserID, "task", "deleted", t.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) CreateSubTask(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownedTask(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == nil {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.CompletionMode == nil {
		mode := model.SubTaskModeFull
		req.CompletionMode = &mode
	}
	p, msg := req.patch(model.ValidSubTaskMode)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	var desc string
	if p.Description != nil {
		desc = *p.Description
	}

	st, err := h.tasks.CreateSubTask(r.Context(), t.ID, *p.Title, desc, *p.CompletionMode)
	if err != nil {
		serverError(w, h.logger, r, "failed to create sub-task", err)
		return
	}

	notify(h.hub, t.UserID, "sub_task", "created", st.ID, map[string]any{"task_id": t.ID})
	writeJSON(w, http.StatusCreated, st)
}

func (h *TaskHandler) ListSubTasks(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ownedTask(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	list, err := h.tasks.ListSubTasks(r.Context(), t.ID)
	if err != nil {
		serverError(w, h.logger, r, "failed to list sub-tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (h *TaskHandler) GetSubTask(w http.ResponseWriter, r *http.Request) {
	st, ok := h.ownedSubTask(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *TaskHandler) UpdateSubTask(w http.ResponseWriter, r *http.Request) {
	st, ok := h.ownedSubTask(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, msg := req.patch(model.ValidSubTaskMode)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if p.IsEmpty() {
		writeError(w, http.StatusBadRequest, "No fields provided for update")
		return
	}

	updated, err := h.tasks.UpdateSubTask(r.Context(), st.ID, p)
	if err != nil {
		serverError(w, h.logger, r, "failed to update sub-task", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "Sub-task not found")
		return
	}

	notify(h.hub, currentUser(r), "sub_task", "updated", st.ID, map[string]any{"task_id": st.TaskID})
	writeJSON(w, http.StatusOK, updated)
}

func (h *TaskHandler) DeleteSubTask(w http.ResponseWriter, r *http.Request) {
	st, ok := h.ownedSubTask(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	if _, err := h.tasks.DeleteSubTask(r.Context(), st.ID); err != nil {
		serverError(w, h.logger, r, "failed to delete sub-task", err)
		return
	}

	notify(h.hub, currentUser(r), "sub_task", "deleted", st.ID, map[string]any{"task_id": st.TaskID})
	w.WriteHeader(http.StatusNoContent)
}

// ownerFunc resolves the {id} path value to an owned task or sub-task id.
type ownerFunc func(w http.ResponseWriter, r *http.Request) (string, bool)

func (h *TaskHandler) taskOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	t, ok := h.ownedTask(w, r, r.PathValue("id"))
	if !ok {
		return "", false
	}
	return t.ID, true
}

func (h *TaskHandler) subTaskOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	st, ok := h.ownedSubTask(w, r, r.PathValue("id"))
	if !ok {
		return "", false
	}
	return st.ID, true
}

func (h *TaskHandler) PutTaskStatus(w http.ResponseWriter, r *http.Request) {
	h.putStatus(w, r, "task_status", h.taskDetails, h.taskOwner)
}

func (h *TaskHandler) PutSubTaskStatus(w http.ResponseWriter, r *http.Request) {
	h.putStatus(w, r, "sub_task_status", h.subTaskDetails, h.subTaskOwner)
}

func (h *TaskHandler) ListTaskStatuses(w http.ResponseWriter, r *http.Request) {
	h.listStatuses(w, r, h.taskDetails, h.taskOwner)
}

func (h *TaskHandler) ListSubTaskStatuses(w http.ResponseWriter, r *http.Request) {
	h.listStatuses(w, r, h.subTaskDetails, h.subTaskOwner)
}

func (h *TaskHandler) ListTaskAttributes(w http.ResponseWriter, r *http.Request) {
	h.listAttributes(w, r, h.taskDetails, h.taskOwner)
}

func (h *TaskHandler) ListSubTaskAttributes(w http.ResponseWriter, r *http.Request) {
	h.listAttributes(w, r, h.subTaskDetails, h.subTaskOwner)
}

func (h *TaskHandler) PutTaskAttribute(w http.ResponseWriter, r *http.Request) {
	h.putAttribute(w, r, "task_attribute", h.taskDetails, h.taskOwner)
}

func (h *TaskHandler) PutSubTaskAttribute(w http.ResponseWriter, r *http.Request) {
	h.putAttribute(w, r, "sub_task_attribute", h.subTaskDetails, h.subTaskOwner)
}

func (h *TaskHandler) DeleteTaskAttribute(w http.ResponseWriter, r *http.Request) {
	h.deleteAttribute(w, r, "task_attribute", h.taskDetails, h.taskOwner)
}

func (h *TaskHandler) DeleteSubTaskAttribute(w http.ResponseWriter, r *http.Request) {
	h.deleteAttribute(w, r, "sub_task_attribute", h.subTaskDetails, h.subTaskOwner)
}

func (h *TaskHandler) putStatus(w http.ResponseWriter, r *http.Request, entity string, details *store.TaskDetailStore, owner ownerFunc) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	var req struct {
		Date            string `json:"date"`
		CompletionValue string `json:"completion_value"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !model.ValidStatusValue(req.CompletionValue) {
		writeError(w, http.StatusBadRequest, "completion_value must be True, False or Partial")
		return
	}
	if req.Date == "" {
		req.Date = habit.Today(h.now(), h.loc)
	} else if _, err := habit.ParseDate(req.Date); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := details.UpsertStatus(r.Context(), ownerID, req.Date, req.CompletionValue)
	if err != nil {
		serverError(w, h.logger, r, "failed to record status", err)
		return
	}

	notify(h.hub, currentUser(r), entity, "updated", status.ID, map[string]any{"owner_id": ownerID, "date": status.Date})
	writeJSON(w, http.StatusOK, status)
}

func (h *TaskHandler) listStatuses(w http.ResponseWriter, r *http.Request, details *store.TaskDetailStore, owner ownerFunc) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	list, err := details.ListStatuses(r.Context(), ownerID)
	if err != nil {
		serverError(w, h.logger, r, "failed to list statuses", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (h *TaskHandler) listAttributes(w http.ResponseWriter, r *http.Request, details *store.TaskDetailStore, owner ownerFunc) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	list, err := details.ListAttributes(r.Context(), ownerID)
	if err != nil {
		serverError(w, h.logger, r, "failed to list attributes", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (h *TaskHandler) putAttribute(w http.ResponseWriter, r *http.Request, entity string, details *store.TaskDetailStore, owner ownerFunc) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	key := strings.TrimSpace(r.PathValue("key"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "attribute key is required")
		return
	}

	var req struct {
		Value *string `json:"attribute_value"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "attribute_value is required")
		return
	}

	attr, err := details.SetAttribute(r.Context(), ownerID, key, *req.Value)
	if err != nil {
		serverError(w, h.logger, r, "failed to set attribute", err)
		return
	}

	notify(h.hub, currentUser(r), entity, "updated", attr.ID, map[string]any{"owner_id": ownerID, "key": key})
	writeJSON(w, http.StatusOK, attr)
}

func (h *TaskHandler) deleteAttribute(w http.ResponseWriter, r *http.Request, entity string, details *store.TaskDetailStore, owner ownerFunc) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	key := r.PathValue("key")
	deleted, err := details.DeleteAttribute(r.Context(), ownerID, key)
	if err != nil {
		serverError(w, h.logger, r, "failed to delete attribute", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Attribute not found")
		return
	}

	notify(h.hub, currentUser(r), entity, "deleted", "", map[string]any{"owner_id": ownerID, "key": key})
	w.WriteHeader(http.StatusNoContent)
}
