package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted: {PaymentStatusRefunded},
	PaymentStatusFailed:    nil,
	PaymentStatusRefunded:  nil,
}

// CanTransitionTo reports whether a payment may move from s to next. Payments
// never transition to the status they already hold.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Payment struct {
	ID              int64            `json:"id"`
	OrderID         int64            `json:"orderId"`
	PaymentNumber   string           `json:"paymentNumber"`
	Amount          decimal.Decimal  `json:"amount"`
	PaymentMethod   string           `json:"paymentMethod"`
	PGProvider      *string          `json:"pgProvider,omitempty"`
	Status          PaymentStatus    `json:"status"`
	PGTransactionID *string          `json:"pgTransactionId,omitempty"`
	RefundAmount    *decimal.Decimal `json:"refundAmount,omitempty"`
	RefundReason    *string          `json:"refundReason,omitempty"`
	FailureReason   *string          `json:"failureReason,omitempty"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
	RefundedAt      *time.Time       `json:"refundedAt,omitempty"`
	FailedAt        *time.Time       `json:"failedAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

func (p *Payment) transition(next PaymentStatus, now time.Time) error {
	if !p.Status.CanTransitionTo(next) {
		return fmt.Errorf("payment %s cannot move from %s to %s", p.PaymentNumber, p.Status, next)
	}
	p.Status = next
	p.UpdatedAt = now
	return nil
}

func (p *Payment) Complete(pgTransactionID string, now time.Time) error {
	if err := p.transition(PaymentStatusCompleted, now); err != nil {
		return err
	}
	p.CompletedAt = &now
	if pgTransactionID != "" {
		p.PGTransactionID = &pgTransactionID
	}
	return nil
}

func (p *Payment) Fail(reason string, now time.Time) error {
	if err := p.transition(PaymentStatusFailed, now); err != nil {
		return err
	}
	p.FailedAt = &now
	if reason != "" {
		p.FailureReason = &reason
	}
	return nil
}

// Refund returns the full payment amount.
func (p *Payment) Refund(reason string, now time.Time) error {
	if err := p.transition(PaymentStatusRefunded, now); err != nil {
		return err
	}
	amount := p.Amount
	p.RefundAmount = &amount
	p.RefundedAt = &now
	if reason != "" {
		p.RefundReason = &reason
	}
	return nil
}
