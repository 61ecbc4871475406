package handler

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/dukerupert/habitd/internal/model"
	"github.com/dukerupert/habitd/internal/store"
)

var currencyRegexp = regexp.MustCompile(`^[A-Z]{3}$`)

type PaymentHandler struct {
	payments *store.PaymentStore
	logger   *slog.Logger
}

func NewPaymentHandler(payments *store.PaymentStore, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

type paymentRequest struct {
	StripeChargeID *string `json:"stripe_charge_id"`
	Amount         *int64  `json:"amount"`
	Currency       *string `json:"currency"`
	PaymentStatus  *string `json:"payment_status"`
}

func (req paymentRequest) patch() (model.PaymentPatch, string) {
	p := model.PaymentPatch{StripeChargeID: req.StripeChargeID, PaymentStatus: req.PaymentStatus}
	if req.Amount != nil {
		if *req.Amount < 0 {
			return p, "amount must not be negative"
		}
		p.Amount = req.Amount
	}
	if req.Currency != nil {
		c := strings.ToUpper(strings.TrimSpace(*req.Currency))
		if !currencyRegexp.MatchString(c) {
			return p, "currency must be a three-letter ISO code"
		}
		p.Currency = &c
	}
	return p, ""
}

func (h *PaymentHandler) owned(w http.ResponseWriter, r *http.Request) (*model.Payment, bool) {
	p, err := h.payments.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		serverError(w, h.logger, r, "failed to get payment", err)
		return nil, false
	}
	if p == nil || p.UserID != currentUser(r) {
		writeError(w, http.StatusNotFound, "Payment not found")
		return nil, false
	}
	return p, true
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.StripeChargeID == nil || req.Amount == nil || req.Currency == nil || req.PaymentStatus == nil {
		writeError(w, http.StatusBadRequest, "stripe_charge_id, amount, currency and payment_status are required")
		return
	}
	p, msg := req.patch()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := h.payments.Create(r.Context(), model.Payment{
		UserID:         currentUser(r),
		StripeChargeID: *p.StripeChargeID,
		Amount:         *p.Amount,
		Currency:       *p.Currency,
		PaymentStatus:  *p.PaymentStatus,
	})
	if err != nil {
		serverError(w, h.logger, r, "failed to create payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.owned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListByUser serves GET /users/{id}/payments.
func (h *PaymentHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := self(w, r)
	if !ok {
		return
	}
	list, err := h.payments.ListByUser(r.Context(), userID)
	if err != nil {
		serverError(w, h.logger, r, "failed to list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req paymentRequest
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

	updated, err := h.payments.Update(r.Context(), existing.ID, p)
	if err != nil {
		serverError(w, h.logger, r, "failed to update payment", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "Payment not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.owned(w, r)
	if !ok {
		return
	}
	if _, err := h.payments.Delete(r.Context(), existing.ID); err != nil {
		serverError(w, h.logger, r, "failed to delete payment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
