package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"mangashelf-backend/internal/apperrors"
	"mangashelf-backend/internal/events"
	"mangashelf-backend/internal/models"
	"mangashelf-backend/internal/repository"
	"mangashelf-backend/internal/sequence"
)

type OrderService struct {
	store     repository.Store
	sequencer sequence.Sequencer
	events    eventSink
	logger    *zap.Logger
	now       func() time.Time
}

func NewOrderService(store repository.Store, sequencer sequence.Sequencer, publisher events.Publisher, logger *zap.Logger) *OrderService {
	logger = logger.With(zap.String("component", "OrderService"))
	return &OrderService{
		store:     store,
		sequencer: sequencer,
		events:    eventSink{publisher: publisher, logger: logger},
		logger:    logger,
		now:       time.Now,
	}
}

type CreateOrderParams struct {
	UserID        int64
	VolumeIDs     []int64
	CouponCode    *string
	PaymentMethod string
}

func (s *OrderService) CreateOrder(ctx context.Context, params CreateOrderParams) (*models.Order, error) {
	if len(params.VolumeIDs) == 0 {
		return nil, apperrors.Validation("an order needs at least one volume")
	}
	seen := make(map[int64]bool, len(params.VolumeIDs))
	for _, id := range params.VolumeIDs {
		if seen[id] {
			return nil, apperrors.Validation("volume %d is listed more than once", id)
		}
		seen[id] = true
	}

	if _, err := s.store.Users().GetByID(ctx, params.UserID); err != nil {
		return nil, lookupError(err, "user", params.UserID)
	}

	lines := make([]models.OrderLine, 0, len(params.VolumeIDs))
	for _, id := range params.VolumeIDs {
		volume, err := s.store.Volumes().GetByID(ctx, id)
		if err != nil {
			return nil, lookupError(err, "volume", id)
		}
		lines = append(lines, models.OrderLine{VolumeID: volume.ID, Price: volume.Price, Quantity: 1})
	}

	now := s.now()
	seq, err := s.sequencer.Next(ctx, sequence.OrderSequence, now)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to allocate order number")
	}

	order := &models.Order{
		UserID:         params.UserID,
		OrderNumber:    sequence.Number("ORD", now, seq),
		DiscountAmount: decimal.Zero,
		Status:         models.OrderStatusPending,
		PaymentMethod:  params.PaymentMethod,
		CouponCode:     params.CouponCode,
		Lines:          lines,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	order.Recalculate()

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		return tx.Orders().Create(ctx, order)
	})
	if err != nil {
		return nil, passThrough(err, "failed to save order")
	}

	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", order.UserID),
		zap.String("final_amount", order.FinalAmount.StringFixed(2)))
	s.events.publish(ctx, events.New(events.OrderCreated, order.OrderNumber, now, events.OrderPayload(order)))
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "order", id)
	}
	return order, nil
}

func (s *OrderService) ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	if _, err := s.store.Users().GetByID(ctx, userID); err != nil {
		return nil, lookupError(err, "user", userID)
	}
	orders, err := s.store.Orders().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list orders of user %d", userID)
	}
	return orders, nil
}

// UpdateOrderStatus applies an administrative status change. Requesting the
// current status succeeds without writing.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id int64, status string) (*models.Order, error) {
	next, ok := models.ParseOrderStatus(status)
	if !ok {
		return nil, apperrors.Validation("invalid order status %q", status)
	}

	var (
		order   *models.Order
		from    models.OrderStatus
		changed bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		order, err = tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return lookupError(err, "order", id)
		}
		from = order.Status
		if from == next {
			return nil
		}
		if err := order.TransitionTo(next, s.now()); err != nil {
			return apperrors.BusinessRule("cannot change order %s from %s to %s", order.OrderNumber, from, next)
		}
		changed = true
		return tx.Orders().UpdateStatus(ctx, order)
	})
	if err != nil {
		return nil, passThrough(err, "failed to update order %d", id)
	}

	if changed {
		s.logger.Info("Order status changed",
			zap.String("order_number", order.OrderNumber),
			zap.String("from", string(from)),
			zap.String("to", string(next)))
		s.events.publish(ctx, events.New(events.OrderStatusChanged, order.OrderNumber, order.UpdatedAt,
			events.OrderStatusChangedPayload(order, from)))
	}
	return order, nil
}

// CancelOrder cancels an unpaid order on behalf of its owner. Paid orders
// must go through a refund instead.
func (s *OrderService) CancelOrder(ctx context.Context, id, userID int64) error {
	var (
		order   *models.Order
		changed bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		order, err = tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return lookupError(err, "order", id)
		}
		if order.UserID != userID {
			return apperrors.BusinessRule("order %d does not belong to user %d", id, userID)
		}

		switch order.Status {
		case models.OrderStatusCancelled:
			return nil
		case models.OrderStatusPaid, models.OrderStatusCompleted:
			return apperrors.BusinessRule("order %s is already paid; request a refund instead", order.OrderNumber)
		}

		if err := order.TransitionTo(models.OrderStatusCancelled, s.now()); err != nil {
			return apperrors.BusinessRule("order %s cannot be cancelled from %s", order.OrderNumber, order.Status)
		}
		changed = true
		return tx.Orders().UpdateStatus(ctx, order)
	})
	if err != nil {
		return passThrough(err, "failed to cancel order %d", id)
	}

	if changed {
		s.logger.Info("Order cancelled", zap.String("order_number", order.OrderNumber), zap.Int64("user_id", userID))
		s.events.publish(ctx, events.New(events.OrderStatusChanged, order.OrderNumber, order.UpdatedAt,
			events.OrderStatusChangedPayload(order, models.OrderStatusPending)))
	}
	return nil
}
