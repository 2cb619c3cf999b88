package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mangashelf-backend/internal/models"
	"mangashelf-backend/internal/repository"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

var orderRowColumns = []string{
	"id", "user_id", "order_number", "total_amount", "discount_amount", "final_amount", "status",
	"payment_method", "coupon_code", "created_at", "updated_at", "paid_at", "cancelled_at",
}

func TestUsers_GetByID(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, email, created_at FROM users WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "created_at"}).
			AddRow(7, "reader", "reader@example.com", created))

	user, err := store.Users().GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "reader", user.Username)
	assert.Equal(t, created, user.CreatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(int64(8)).
		WillReturnError(sql.ErrNoRows)

	_, err = store.Users().GetByID(ctx, 8)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrders_CreateInsertsLines(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	order := &models.Order{
		UserID:      7,
		OrderNumber: "ORD-20260301-0001",
		Status:      models.OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		Lines: []models.OrderLine{
			{VolumeID: 3, Price: decimal.RequireFromString("10.00"), Quantity: 1},
			{VolumeID: 5, Price: decimal.RequireFromString("15.00"), Quantity: 1},
		},
	}
	order.Recalculate()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs(int64(7), "ORD-20260301-0001", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "PENDING",
			"", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(41))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO order_lines")).
		WithArgs(int64(41), int64(3), sqlmock.AnyArg(), 1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO order_lines")).
		WithArgs(int64(41), int64(5), sqlmock.AnyArg(), 1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	require.NoError(t, store.Orders().Create(context.Background(), order))
	assert.Equal(t, int64(41), order.ID)
	assert.Equal(t, int64(41), order.Lines[1].OrderID)
	assert.Equal(t, int64(2), order.Lines[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrders_GetForUpdateLocksRow(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(41)).
		WillReturnRows(sqlmock.NewRows(orderRowColumns).
			AddRow(41, 7, "ORD-20260301-0001", "25.00", "0.00", "25.00", "PAID", "CARD", "SPRING", now, now, now, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_lines WHERE order_id = ANY($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "volume_id", "price", "quantity", "subtotal"}).
			AddRow(1, 41, 3, "10.00", 1, "10.00").
			AddRow(2, 41, 5, "15.00", 1, "15.00"))

	order, err := store.Orders().GetForUpdate(context.Background(), 41)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.True(t, order.FinalAmount.Equal(decimal.RequireFromString("25")))
	require.NotNil(t, order.CouponCode)
	assert.Equal(t, "SPRING", *order.CouponCode)
	assert.NotNil(t, order.PaidAt)
	assert.Nil(t, order.CancelledAt)
	assert.Len(t, order.Lines, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrders_ListByUserWithoutOrders(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE user_id = $1")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(orderRowColumns))

	orders, err := store.Orders().ListByUser(context.Background(), 9)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.NotNil(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrders_UpdateStatusMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1")).
		WithArgs("CANCELLED", nil, sqlmock.AnyArg(), sqlmock.AnyArg(), int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	now := time.Now()
	err := store.Orders().UpdateStatus(context.Background(), &models.Order{
		ID: 99, Status: models.OrderStatusCancelled, CancelledAt: &now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayments_GetByOrderIDMapsNulls(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	columns := []string{
		"id", "order_id", "payment_number", "amount", "payment_method", "pg_provider", "status",
		"pg_transaction_id", "refund_amount", "refund_reason", "failure_reason",
		"completed_at", "refunded_at", "failed_at", "created_at", "updated_at",
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE order_id = $1")).
		WithArgs(int64(41)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(5, 41, "PAY-20260301-0001", "25.00", "CARD", nil, "REFUNDED",
				"TXN1", "25.00", "damaged", nil, now, now, nil, now, now))

	payment, err := store.Payments().GetByOrderID(context.Background(), 41)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, payment.Status)
	assert.Nil(t, payment.PGProvider)
	assert.Nil(t, payment.FailureReason)
	require.NotNil(t, payment.RefundAmount)
	assert.True(t, payment.RefundAmount.Equal(payment.Amount))
	assert.Equal(t, "TXN1", *payment.PGTransactionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPages_CreateStoresFrameData(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	frames := json.RawMessage(`{"frames":[{"x":0,"y":0}]}`)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO pages")).
		WithArgs(int64(3), 1, "/uploads/volumes/3/page_001.jpg", []byte(frames), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO pages")).
		WithArgs(int64(3), 2, "/uploads/volumes/3/page_002.png", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(13))

	first := &models.Page{VolumeID: 3, PageNumber: 1, ImagePath: "/uploads/volumes/3/page_001.jpg", FrameData: frames, CreatedAt: now, UpdatedAt: now}
	second := &models.Page{VolumeID: 3, PageNumber: 2, ImagePath: "/uploads/volumes/3/page_002.png", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Pages().Create(context.Background(), first))
	require.NoError(t, store.Pages().Create(context.Background(), second))
	assert.Equal(t, int64(12), first.ID)
	assert.Equal(t, int64(13), second.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM pages WHERE volume_id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE volumes SET page_count = $1")).
		WithArgs(0, sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(tx repository.Store) error {
		removed, err := tx.Pages().DeleteByVolume(context.Background(), 3)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(4), removed)
		return tx.Volumes().UpdatePageCount(context.Background(), 3, 0, now)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx repository.Store) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
