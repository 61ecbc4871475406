package model

import "time"

// Payment is a recorded charge. Amount is in the currency's minor units.
type Payment struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	StripeChargeID string    `json:"stripe_charge_id"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	PaymentStatus  string    `json:"payment_status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type PaymentPatch struct {
	StripeChargeID *string
	Amount         *int64
	Currency       *string
	PaymentStatus  *string
}

func (p PaymentPatch) IsEmpty() bool {
	return p.StripeChargeID == nil && p.Amount == nil && p.Currency == nil && p.PaymentStatus == nil
}
