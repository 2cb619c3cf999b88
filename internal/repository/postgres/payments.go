package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"mangashelf-backend/internal/models"
)

type paymentRepository struct {
	q Querier
}

const paymentColumns = `id, order_id, payment_number, amount, payment_method, pg_provider, status,
	pg_transaction_id, refund_amount, refund_reason, failure_reason,
	completed_at, refunded_at, failed_at, created_at, updated_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p                                     models.Payment
		pgProvider, pgTxID, refundReason, why sql.NullString
		refundAmount                          decimal.NullDecimal
		completedAt, refundedAt, failedAt     sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.OrderID, &p.PaymentNumber, &p.Amount, &p.PaymentMethod, &pgProvider, &p.Status,
		&pgTxID, &refundAmount, &refundReason, &why,
		&completedAt, &refundedAt, &failedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.PGProvider = stringPtr(pgProvider)
	p.PGTransactionID = stringPtr(pgTxID)
	p.RefundReason = stringPtr(refundReason)
	p.FailureReason = stringPtr(why)
	if refundAmount.Valid {
		p.RefundAmount = &refundAmount.Decimal
	}
	p.CompletedAt = timePtr(completedAt)
	p.RefundedAt = timePtr(refundedAt)
	p.FailedAt = timePtr(failedAt)
	return &p, nil
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}

func (r *paymentRepository) Create(ctx context.Context, p *models.Payment) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO payments (order_id, payment_number, amount, payment_method, pg_provider, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, p.OrderID, p.PaymentNumber, p.Amount, p.PaymentMethod, p.PGProvider, p.Status, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	p, err := scanPayment(r.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get payment %d: %w", id, notFound(err))
	}
	return p, nil
}

func (r *paymentRepository) GetForUpdate(ctx context.Context, id int64) (*models.Payment, error) {
	p, err := scanPayment(r.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to lock payment %d: %w", id, notFound(err))
	}
	return p, nil
}

func (r *paymentRepository) GetByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	p, err := scanPayment(r.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID))
	if err != nil {
		return nil, fmt.Errorf("failed to get payment for order %d: %w", orderID, notFound(err))
	}
	return p, nil
}

func (r *paymentRepository) Update(ctx context.Context, p *models.Payment) error {
	var refundAmount decimal.NullDecimal
	if p.RefundAmount != nil {
		refundAmount = decimal.NewNullDecimal(*p.RefundAmount)
	}

	res, err := r.q.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, pg_transaction_id = $2, refund_amount = $3, refund_reason = $4, failure_reason = $5,
			completed_at = $6, refunded_at = $7, failed_at = $8, updated_at = $9
		WHERE id = $10
	`, p.Status, p.PGTransactionID, refundAmount, p.RefundReason, p.FailureReason,
		p.CompletedAt, p.RefundedAt, p.FailedAt, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update payment %d: %w", p.ID, err)
	}
	return requireAffected(res)
}
