package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/habitd/internal/push"
	"github.com/dukerupert/habitd/internal/store"
)

// PushSender delivers web push messages and exposes the VAPID public key
// browsers subscribe with.
type PushSender interface {
	push.Sender
	VAPIDPublicKey() string
}

type PushHandler struct {
	subs   *store.PushStore
	sender PushSender
	logger *slog.Logger
}

func NewPushHandler(subs *store.PushStore, sender PushSender, logger *slog.Logger) *PushHandler {
	return &PushHandler{subs: subs, sender: sender, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

// VAPIDKey handles GET /push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.sender.VAPIDPublicKey()})
}

// Subscribe handles POST /push/subscribe. Re-subscribing an endpoint moves it
// to the caller and refreshes its keys.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Endpoint = strings.TrimSpace(req.Endpoint)
	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh and auth are required")
		return
	}
	if !strings.HasPrefix(req.Endpoint, "https://") {
		writeError(w, http.StatusBadRequest, "endpoint must be an https URL")
		return
	}

	sub, err := h.subs.CreateSubscription(r.Context(), currentUser(r), req.Endpoint, req.P256dh, req.Auth, strings.TrimSpace(req.DeviceName))
	if err != nil {
		serverError(w, h.logger, r, "failed to save subscription", err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// ListSubscriptions handles GET /push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subs.ListByUser(r.Context(), currentUser(r))
	if err != nil {
		serverError(w, h.logger, r, "failed to list subscriptions", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(subs))
}

// Unsubscribe handles DELETE /push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	ok, err := h.subs.DeleteSubscription(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		serverError(w, h.logger, r, "failed to delete subscription", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Subscription not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Test handles POST /push/test by sending a sample message to every device
// of the caller.
func (h *PushHandler) Test(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subs.ListByUser(r.Context(), currentUser(r))
	if err != nil {
		serverError(w, h.logger, r, "failed to list subscriptions", err)
		return
	}

	payload := push.Payload{
		Title: "Test notification",
		Body:  "Push notifications are working!",
		URL:   "/reminders",
		Tag:   "test",
	}

	sent := 0
	for i := range subs {
		err := h.sender.Send(r.Context(), &subs[i], payload)
		switch {
		case errors.Is(err, push.ErrExpired):
			if err := h.subs.DeleteByEndpoint(r.Context(), subs[i].Endpoint); err != nil {
				h.logger.Error("delete expired subscription", "error", err)
			}
		case err != nil:
			h.logger.Warn("test push send", "subscription_id", subs[i].ID, "error", err)
		default:
			sent++
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
