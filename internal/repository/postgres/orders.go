package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"mangashelf-backend/internal/models"
)

type orderRepository struct {
	q Querier
}

const orderColumns = `id, user_id, order_number, total_amount, discount_amount, final_amount, status,
	payment_method, coupon_code, created_at, updated_at, paid_at, cancelled_at`

func scanOrder(row rowScanner) (models.Order, error) {
	var (
		order       models.Order
		couponCode  sql.NullString
		paidAt      sql.NullTime
		cancelledAt sql.NullTime
	)
	err := row.Scan(
		&order.ID, &order.UserID, &order.OrderNumber, &order.TotalAmount, &order.DiscountAmount, &order.FinalAmount,
		&order.Status, &order.PaymentMethod, &couponCode, &order.CreatedAt, &order.UpdatedAt, &paidAt, &cancelledAt,
	)
	if err != nil {
		return order, err
	}
	if couponCode.Valid {
		order.CouponCode = &couponCode.String
	}
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	if cancelledAt.Valid {
		order.CancelledAt = &cancelledAt.Time
	}
	return order, nil
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, order_number, total_amount, discount_amount, final_amount, status,
			payment_method, coupon_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, order.UserID, order.OrderNumber, order.TotalAmount, order.DiscountAmount, order.FinalAmount, order.Status,
		order.PaymentMethod, order.CouponCode, order.CreatedAt, order.UpdatedAt).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range order.Lines {
		line := &order.Lines[i]
		line.OrderID = order.ID
		err := r.q.QueryRowContext(ctx, `
			INSERT INTO order_lines (order_id, volume_id, price, quantity, subtotal)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, line.OrderID, line.VolumeID, line.Price, line.Quantity, line.Subtotal).Scan(&line.ID)
		if err != nil {
			return fmt.Errorf("failed to create order line for volume %d: %w", line.VolumeID, err)
		}
	}
	return nil
}

func (r *orderRepository) get(ctx context.Context, id int64, lock bool) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", id, notFound(err))
	}

	lines, err := r.linesFor(ctx, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Lines = lines[order.ID]
	return &order, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	return r.get(ctx, id, false)
}

func (r *orderRepository) GetForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	return r.get(ctx, id, true)
}

func (r *orderRepository) ListByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	var ids []int64
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	lines, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, nil
}

func (r *orderRepository) linesFor(ctx context.Context, orderIDs []int64) (map[int64][]models.OrderLine, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, order_id, volume_id, price, quantity, subtotal
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load order lines: %w", err)
	}
	defer rows.Close()

	lines := make(map[int64][]models.OrderLine, len(orderIDs))
	for rows.Next() {
		var line models.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.VolumeID, &line.Price, &line.Quantity, &line.Subtotal); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines[line.OrderID] = append(lines[line.OrderID], line)
	}
	return lines, rows.Err()
}

func (r *orderRepository) UpdateStatus(ctx context.Context, order *models.Order) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, paid_at = $2, cancelled_at = $3, updated_at = $4
		WHERE id = $5
	`, order.Status, order.PaidAt, order.CancelledAt, order.UpdatedAt, order.ID)
	if err != nil {
		return fmt.Errorf("failed to update order %d: %w", order.ID, err)
	}
	return requireAffected(res)
}
