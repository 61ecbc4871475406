package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/habitd/internal/model"
)

type PaymentStore struct {
	db *sql.DB
}

func NewPaymentStore(db *sql.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

func scanPayment(scanner interface{ Scan(...any) error }) (*model.Payment, error) {
	var p model.Payment
	err := scanner.Scan(&p.ID, &p.UserID, &p.StripeChargeID, &p.Amount, &p.Currency, &p.PaymentStatus, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const paymentCols = `id, user_id, stripe_charge_id, amount, currency, payment_status, created_at, updated_at`

func (s *PaymentStore) Create(ctx context.Context, p model.Payment) (*model.Payment, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (id, user_id, stripe_charge_id, amount, currency, payment_status) VALUES (?, ?, ?, ?, ?, ?)`,
		id, p.UserID, p.StripeChargeID, p.Amount, p.Currency, p.PaymentStatus,
	)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *PaymentStore) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentCols+` FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (s *PaymentStore) ListByUser(ctx context.Context, userID string) ([]model.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (s *PaymentStore) Update(ctx context.Context, id string, p model.PaymentPatch) (*model.Payment, error) {
	var set setClause
	if p.StripeChargeID != nil {
		set.add("stripe_charge_id", *p.StripeChargeID)
	}
	if p.Amount != nil {
		set.add("amount", *p.Amount)
	}
	if p.Currency != nil {
		set.add("currency", *p.Currency)
	}
	if p.PaymentStatus != nil {
		set.add("payment_status", *p.PaymentStatus)
	}
	if set.empty() {
		return s.GetByID(ctx, id)
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE payments SET `+set.sql()+` WHERE id = ?`,
		append(set.args, id)...,
	)
	if err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *PaymentStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete payment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SetStatusByCharge sets payment_status on every payment recorded for the
// charge and returns the updated rows.
func (s *PaymentStore) SetStatusByCharge(ctx context.Context, chargeID, status string) ([]model.Payment, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE payments SET payment_status = ?, updated_at = CURRENT_TIMESTAMP WHERE stripe_charge_id = ?`,
		status, chargeID,
	)
	if err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE stripe_charge_id = ? ORDER BY created_at DESC`,
		chargeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payments by charge: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
