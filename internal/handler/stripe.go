package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dukerupert/habitd/internal/store"
)

const maxWebhookBytes = 65536

// chargeStatuses maps the charge events we follow to a stored payment status.
var chargeStatuses = map[stripe.EventType]string{
	"charge.succeeded": "succeeded",
	"charge.failed":    "failed",
	"charge.refunded":  "refunded",
}

// StripeWebhookHandler keeps stored payments in step with Stripe charge events.
type StripeWebhookHandler struct {
	payments *store.PaymentStore
	secret   string
	hub      Broadcaster
	logger   *slog.Logger
}

func NewStripeWebhookHandler(payments *store.PaymentStore, secret string, hub Broadcaster, logger *slog.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{payments: payments, secret: secret, hub: hub, logger: logger}
}

// Handle serves POST /payments/stripe/webhook.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	event, err := webhook.ConstructEventWithOptions(body, r.Header.Get("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.Warn("stripe webhook rejected", "error", err)
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	status, ok := chargeStatuses[event.Type]
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil || charge.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid charge payload")
		return
	}

	updated, err := h.payments.SetStatusByCharge(r.Context(), charge.ID, status)
	if err != nil {
		// A 5xx makes Stripe retry the delivery.
		serverError(w, h.logger, r, "failed to update payment", err)
		return
	}
	for _, p := range updated {
		notify(h.hub, p.UserID, "payment", "updated", p.ID, map[string]any{"payment_status": status})
	}
	h.logger.Info("stripe charge synced", "event", event.Type, "charge_id", charge.ID, "payments", len(updated))

	w.WriteHeader(http.StatusOK)
}
