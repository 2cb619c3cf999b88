package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mangashelf-backend/internal/apperrors"
	"mangashelf-backend/internal/events"
	"mangashelf-backend/internal/models"
)

func createPendingOrder(t *testing.T, f *fixture) *models.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(context.Background(), CreateOrderParams{
		UserID: 7, VolumeIDs: []int64{3, 5}, PaymentMethod: "CARD",
	})
	require.NoError(t, err)
	return order
}

func TestPaymentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := createPendingOrder(t, f)

	payment, err := f.payments.CreatePayment(ctx, CreatePaymentParams{OrderID: order.ID})
	require.NoError(t, err)
	assert.Equal(t, "PAY-20260301-0001", payment.PaymentNumber)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, "CARD", payment.PaymentMethod)
	assert.True(t, payment.Amount.Equal(order.FinalAmount))

	completed, err := f.payments.CompletePayment(ctx, payment.ID, "TXN1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, completed.Status)
	assert.Equal(t, "TXN1", *completed.PGTransactionID)
	assert.Equal(t, fixedNow, *completed.CompletedAt)

	paidOrder, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, paidOrder.Status)
	require.NotNil(t, paidOrder.PaidAt)

	_, err = f.payments.CompletePayment(ctx, payment.ID, "TXN2")
	assertKind(t, err, apperrors.KindBusinessRule)

	byOrder, err := f.payments.GetPaymentByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "TXN1", *byOrder.PGTransactionID)

	assert.Equal(t, []string{
		events.OrderCreated,
		events.PaymentCreated,
		events.PaymentCompleted,
		events.OrderStatusChanged,
	}, f.recorder.Types())
}

func TestCreatePayment_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := createPendingOrder(t, f)

	_, err := f.payments.CreatePayment(ctx, CreatePaymentParams{OrderID: 404})
	assertKind(t, err, apperrors.KindNotFound)

	provider := "toss"
	payment, err := f.payments.CreatePayment(ctx, CreatePaymentParams{OrderID: order.ID, PaymentMethod: "BANK", PGProvider: &provider})
	require.NoError(t, err)
	assert.Equal(t, "BANK", payment.PaymentMethod)
	assert.Equal(t, "toss", *payment.PGProvider)

	_, err = f.payments.CreatePayment(ctx, CreatePaymentParams{OrderID: order.ID})
	assertKind(t, err, apperrors.KindBusinessRule)

	cancelled := createPendingOrder(t, f)
	require.NoError(t, f.orders.CancelOrder(ctx, cancelled.ID, 7))
	_, err = f.payments.CreatePayment(ctx, CreatePaymentParams{OrderID: cancelled.ID})
	assertKind(t, err, apperrors.KindBusinessRule)
}

func TestCompletePayment_CancelledOrderAbortsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := createPendingOrder(t, f)

	payment, err := f.payments.CreatePayment(ctx, CreatePaymentParams{OrderID: order.ID})
	require.NoError(t, err)
	require.NoError(t, f.orders.CancelOrder(ctx, order.ID, 7))

	_, err = f.payments.CompletePayment(ctx, payment.ID, "TXN1")
	assertKind(t, err, apperrors.KindBusinessRule)

	stored, err := f.payments.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
	assert.Nil(t, stored.CompletedAt)
}

func TestRefundPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := createPendingOrder(t, f)

	payment, err := f.payments.CreatePayment(ctx, CreatePaymentParams{OrderID: order.ID})
	require.NoError(t, err)

	_, err = f.payments.RefundPayment(ctx, payment.ID, "too early")
	assertKind(t, err, apperrors.KindBusinessRule)

	_, err = f.payments.CompletePayment(ctx, payment.ID, "TXN1")
	require.NoError(t, err)

	refunded, err := f.payments.RefundPayment(ctx, payment.ID, "damaged copy")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundAmount)
	assert.True(t, refunded.RefundAmount.Equal(refunded.Amount))
	assert.Equal(t, "damaged copy", *refunded.RefundReason)
	assert.NotNil(t, refunded.RefundedAt)

	refundedOrder, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRefunded, refundedOrder.Status)
	assert.NotNil(t, refundedOrder.PaidAt)

	_, err = f.payments.RefundPayment(ctx, payment.ID, "twice")
	assertKind(t, err, apperrors.KindBusinessRule)
}

func TestRefundPayment_CompletedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := createPendingOrder(t, f)

	payment, err := f.payments.CreatePayment(ctx, CreatePaymentParams{OrderID: order.ID})
	require.NoError(t, err)
	_, err = f.payments.CompletePayment(ctx, payment.ID, "TXN1")
	require.NoError(t, err)
	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, "COMPLETED")
	require.NoError(t, err)

	_, err = f.payments.RefundPayment(ctx, payment.ID, "")
	require.NoError(t, err)

	stored, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRefunded, stored.Status)
}

func TestFailPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := createPendingOrder(t, f)

	payment, err := f.payments.CreatePayment(ctx, CreatePaymentParams{OrderID: order.ID})
	require.NoError(t, err)

	failed, err := f.payments.FailPayment(ctx, payment.ID, "card declined")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, failed.Status)
	assert.Equal(t, "card declined", *failed.FailureReason)
	assert.NotNil(t, failed.FailedAt)

	_, err = f.payments.FailPayment(ctx, payment.ID, "again")
	assertKind(t, err, apperrors.KindBusinessRule)
	_, err = f.payments.CompletePayment(ctx, payment.ID, "TXN1")
	assertKind(t, err, apperrors.KindBusinessRule)

	stillPending, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stillPending.Status)
}

func TestFailPayment_CompletedPaymentCannotFail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := createPendingOrder(t, f)

	payment, err := f.payments.CreatePayment(ctx, CreatePaymentParams{OrderID: order.ID})
	require.NoError(t, err)
	_, err = f.payments.CompletePayment(ctx, payment.ID, "TXN1")
	require.NoError(t, err)

	_, err = f.payments.FailPayment(ctx, payment.ID, "late decline")
	assertKind(t, err, apperrors.KindBusinessRule)
}

func TestGetPayment_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.payments.GetPayment(ctx, 404)
	assertKind(t, err, apperrors.KindNotFound)
	_, err = f.payments.GetPaymentByOrder(ctx, 404)
	assertKind(t, err, apperrors.KindNotFound)
}
