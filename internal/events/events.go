// Package events publishes domain events after the state change they describe
// has been committed. Delivery is best effort.
package events

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"mangashelf-backend/internal/models"
)

const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	PaymentCreated     = "payment.created"
	PaymentCompleted   = "payment.completed"
	PaymentFailed      = "payment.failed"
	PaymentRefunded    = "payment.refunded"
	PagesIngested      = "pages.ingested"
	PagesDeleted       = "pages.deleted"
)

type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurredAt"`
	Payload    map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

func New(eventType, key string, occurredAt time.Time, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: occurredAt.UTC(),
		Payload:    payload,
	}
}

// Event payloads
func OrderPayload(order *models.Order) map[string]any {
	return map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"userId":      order.UserID,
		"status":      order.Status,
		"finalAmount": order.FinalAmount.StringFixed(2),
	}
}

func OrderStatusChangedPayload(order *models.Order, from models.OrderStatus) map[string]any {
	payload := OrderPayload(order)
	payload["previousStatus"] = from
	return payload
}

func PaymentPayload(payment *models.Payment) map[string]any {
	payload := map[string]any{
		"paymentId":     payment.ID,
		"paymentNumber": payment.PaymentNumber,
		"orderId":       payment.OrderID,
		"status":        payment.Status,
		"amount":        payment.Amount.StringFixed(2),
	}
	if payment.FailureReason != nil {
		payload["failureReason"] = *payment.FailureReason
	}
	if payment.RefundAmount != nil {
		payload["refundAmount"] = payment.RefundAmount.StringFixed(2)
	}
	return payload
}

func PagesIngestedPayload(volumeID int64, pageCount int) map[string]any {
	return map[string]any{
		"volumeId":  volumeID,
		"pageCount": pageCount,
	}
}

func PagesDeletedPayload(volumeID int64, removed int64) map[string]any {
	return map[string]any{
		"volumeId": volumeID,
		"removed":  removed,
	}
}

func VolumeKey(volumeID int64) string {
	return "volume-" + strconv.FormatInt(volumeID, 10)
}

type noopPublisher struct{}

// NewNoopPublisher drops every event. It is used when no broker is configured.
func NewNoopPublisher() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, Event) error { return nil }
func (noopPublisher) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types lists the recorded event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}
