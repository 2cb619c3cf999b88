package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"mangashelf-backend/internal/apperrors"
	"mangashelf-backend/internal/events"
	"mangashelf-backend/internal/models"
	"mangashelf-backend/internal/repository"
	"mangashelf-backend/internal/sequence"
)

type PaymentService struct {
	store     repository.Store
	sequencer sequence.Sequencer
	events    eventSink
	logger    *zap.Logger
	now       func() time.Time
}

func NewPaymentService(store repository.Store, sequencer sequence.Sequencer, publisher events.Publisher, logger *zap.Logger) *PaymentService {
	logger = logger.With(zap.String("component", "PaymentService"))
	return &PaymentService{
		store:     store,
		sequencer: sequencer,
		events:    eventSink{publisher: publisher, logger: logger},
		logger:    logger,
		now:       time.Now,
	}
}

type CreatePaymentParams struct {
	OrderID       int64
	PaymentMethod string
	PGProvider    *string
}

// CreatePayment opens the single payment of a pending order for its final
// amount.
func (s *PaymentService) CreatePayment(ctx context.Context, params CreatePaymentParams) (*models.Payment, error) {
	var payment *models.Payment
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		order, err := tx.Orders().GetForUpdate(ctx, params.OrderID)
		if err != nil {
			return lookupError(err, "order", params.OrderID)
		}

		existing, err := tx.Payments().GetByOrderID(ctx, order.ID)
		switch {
		case err == nil:
			return apperrors.BusinessRule("order %s already has payment %s", order.OrderNumber, existing.PaymentNumber)
		case !errors.Is(err, repository.ErrNotFound):
			return apperrors.Internal(err, "failed to check payments of order %d", order.ID)
		}

		if order.Status != models.OrderStatusPending {
			return apperrors.BusinessRule("order %s is %s; only PENDING orders can be paid", order.OrderNumber, order.Status)
		}

		now := s.now()
		seq, err := s.sequencer.Next(ctx, sequence.PaymentSequence, now)
		if err != nil {
			return apperrors.Internal(err, "failed to allocate payment number")
		}

		method := params.PaymentMethod
		if method == "" {
			method = order.PaymentMethod
		}
		payment = &models.Payment{
			OrderID:       order.ID,
			PaymentNumber: sequence.Number("PAY", now, seq),
			Amount:        order.FinalAmount,
			PaymentMethod: method,
			PGProvider:    params.PGProvider,
			Status:        models.PaymentStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.Payments().Create(ctx, payment)
	})
	if err != nil {
		return nil, passThrough(err, "failed to create payment for order %d", params.OrderID)
	}

	s.logger.Info("Payment created",
		zap.String("payment_number", payment.PaymentNumber),
		zap.Int64("order_id", payment.OrderID),
		zap.String("amount", payment.Amount.StringFixed(2)))
	s.events.publish(ctx, events.New(events.PaymentCreated, payment.PaymentNumber, payment.CreatedAt, events.PaymentPayload(payment)))
	return payment, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	payment, err := s.store.Payments().GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "payment", id)
	}
	return payment, nil
}

func (s *PaymentService) GetPaymentByOrder(ctx context.Context, orderID int64) (*models.Payment, error) {
	payment, err := s.store.Payments().GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("no payment for order %d", orderID)
		}
		return nil, apperrors.Internal(err, "failed to load payment of order %d", orderID)
	}
	return payment, nil
}

// CompletePayment records the gateway confirmation and marks the order paid
// in the same transaction.
func (s *PaymentService) CompletePayment(ctx context.Context, id int64, pgTransactionID string) (*models.Payment, error) {
	var (
		payment *models.Payment
		order   *models.Order
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		if payment, order, err = s.lockPaymentAndOrder(ctx, tx, id); err != nil {
			return err
		}

		now := s.now()
		if err := payment.Complete(pgTransactionID, now); err != nil {
			return apperrors.BusinessRule("payment %s is %s; only PENDING payments can be completed", payment.PaymentNumber, payment.Status)
		}
		if err := order.TransitionTo(models.OrderStatusPaid, now); err != nil {
			return apperrors.BusinessRule("order %s is %s and cannot be marked paid", order.OrderNumber, order.Status)
		}

		if err := tx.Payments().Update(ctx, payment); err != nil {
			return err
		}
		return tx.Orders().UpdateStatus(ctx, order)
	})
	if err != nil {
		return nil, passThrough(err, "failed to complete payment %d", id)
	}

	s.logger.Info("Payment completed",
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("order_number", order.OrderNumber),
		zap.String("pg_transaction_id", pgTransactionID))
	s.events.publish(ctx,
		events.New(events.PaymentCompleted, payment.PaymentNumber, payment.UpdatedAt, events.PaymentPayload(payment)),
		events.New(events.OrderStatusChanged, order.OrderNumber, order.UpdatedAt,
			events.OrderStatusChangedPayload(order, models.OrderStatusPending)),
	)
	return payment, nil
}

func (s *PaymentService) FailPayment(ctx context.Context, id int64, reason string) (*models.Payment, error) {
	var payment *models.Payment
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		payment, err = tx.Payments().GetForUpdate(ctx, id)
		if err != nil {
			return lookupError(err, "payment", id)
		}
		if err := payment.Fail(reason, s.now()); err != nil {
			return apperrors.BusinessRule("payment %s is %s; only PENDING payments can fail", payment.PaymentNumber, payment.Status)
		}
		return tx.Payments().Update(ctx, payment)
	})
	if err != nil {
		return nil, passThrough(err, "failed to record failure of payment %d", id)
	}

	s.logger.Info("Payment failed", zap.String("payment_number", payment.PaymentNumber), zap.String("reason", reason))
	s.events.publish(ctx, events.New(events.PaymentFailed, payment.PaymentNumber, payment.UpdatedAt, events.PaymentPayload(payment)))
	return payment, nil
}

// RefundPayment refunds the full amount of a completed payment and moves the
// order to REFUNDED. paid_at is kept.
func (s *PaymentService) RefundPayment(ctx context.Context, id int64, reason string) (*models.Payment, error) {
	var (
		payment *models.Payment
		order   *models.Order
		from    models.OrderStatus
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		if payment, order, err = s.lockPaymentAndOrder(ctx, tx, id); err != nil {
			return err
		}

		now := s.now()
		if err := payment.Refund(reason, now); err != nil {
			return apperrors.BusinessRule("payment %s is %s; only COMPLETED payments can be refunded", payment.PaymentNumber, payment.Status)
		}
		from = order.Status
		if err := order.TransitionTo(models.OrderStatusRefunded, now); err != nil {
			return apperrors.BusinessRule("order %s is %s and cannot be refunded", order.OrderNumber, order.Status)
		}

		if err := tx.Payments().Update(ctx, payment); err != nil {
			return err
		}
		return tx.Orders().UpdateStatus(ctx, order)
	})
	if err != nil {
		return nil, passThrough(err, "failed to refund payment %d", id)
	}

	s.logger.Info("Payment refunded",
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("order_number", order.OrderNumber),
		zap.String("refund_amount", payment.RefundAmount.StringFixed(2)))
	s.events.publish(ctx,
		events.New(events.PaymentRefunded, payment.PaymentNumber, payment.UpdatedAt, events.PaymentPayload(payment)),
		events.New(events.OrderStatusChanged, order.OrderNumber, order.UpdatedAt, events.OrderStatusChangedPayload(order, from)),
	)
	return payment, nil
}

func (s *PaymentService) lockPaymentAndOrder(ctx context.Context, tx repository.Store, id int64) (*models.Payment, *models.Order, error) {
	payment, err := tx.Payments().GetForUpdate(ctx, id)
	if err != nil {
		return nil, nil, lookupError(err, "payment", id)
	}
	order, err := tx.Orders().GetForUpdate(ctx, payment.OrderID)
	if err != nil {
		return nil, nil, lookupError(err, "order", payment.OrderID)
	}
	return payment, order, nil
}
