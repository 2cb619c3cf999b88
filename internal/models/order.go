package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:      {OrderStatusCompleted, OrderStatusRefunded},
	OrderStatusCompleted: {OrderStatusRefunded},
	OrderStatusCancelled: nil,
	OrderStatusRefunded:  nil,
}

// ParseOrderStatus accepts only the five known tags, exactly as spelled.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(s)
	_, ok := orderTransitions[status]
	return status, ok
}

// CanTransitionTo reports whether the order may move from s to next. Staying in
// the same status is always allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		_, known := orderTransitions[s]
		return known
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Order struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"userId"`
	OrderNumber    string          `json:"orderNumber"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
	Status         OrderStatus     `json:"status"`
	PaymentMethod  string          `json:"paymentMethod,omitempty"`
	CouponCode     *string         `json:"couponCode,omitempty"`
	Lines          []OrderLine     `json:"orderItems"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	PaidAt         *time.Time      `json:"paidAt,omitempty"`
	CancelledAt    *time.Time      `json:"cancelledAt,omitempty"`
}

type OrderLine struct {
	ID       int64           `json:"id"`
	OrderID  int64           `json:"orderId"`
	VolumeID int64           `json:"volumeId"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Recalculate refreshes every line subtotal and the order totals. It must run
// before each persist.
func (o *Order) Recalculate() {
	total := decimal.Zero
	for i := range o.Lines {
		line := &o.Lines[i]
		if line.Quantity <= 0 {
			line.Quantity = 1
		}
		line.Subtotal = line.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total = total.Add(line.Subtotal)
	}
	o.TotalAmount = total
	o.FinalAmount = o.TotalAmount.Sub(o.DiscountAmount)
}

// TransitionTo moves the order to next and stamps paid/cancelled times the
// first time those statuses are reached.
func (o *Order) TransitionTo(next OrderStatus, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("order %s cannot move from %s to %s", o.OrderNumber, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = now
	switch next {
	case OrderStatusPaid:
		if o.PaidAt == nil {
			o.PaidAt = &now
		}
	case OrderStatusCancelled:
		if o.CancelledAt == nil {
			o.CancelledAt = &now
		}
	}
	return nil
}
