package postgres

import (
	"context"
	"fmt"
	"time"

	"mangashelf-backend/internal/models"
)

type userRepository struct {
	q Querier
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.q.QueryRowContext(ctx, `
		SELECT id, username, email, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, notFound(err))
	}
	return &user, nil
}

type volumeRepository struct {
	q Querier
}

const volumeColumns = `id, series_id, volume_number, title, price, page_count, created_at, updated_at`

func (r *volumeRepository) get(ctx context.Context, id int64, lock bool) (*models.Volume, error) {
	query := `SELECT ` + volumeColumns + ` FROM volumes WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var v models.Volume
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.SeriesID, &v.VolumeNumber, &v.Title, &v.Price, &v.PageCount, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get volume %d: %w", id, notFound(err))
	}
	return &v, nil
}

func (r *volumeRepository) GetByID(ctx context.Context, id int64) (*models.Volume, error) {
	return r.get(ctx, id, false)
}

func (r *volumeRepository) GetForUpdate(ctx context.Context, id int64) (*models.Volume, error) {
	return r.get(ctx, id, true)
}

func (r *volumeRepository) UpdatePageCount(ctx context.Context, id int64, pageCount int, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE volumes
		SET page_count = $1, updated_at = $2
		WHERE id = $3
	`, pageCount, at, id)
	if err != nil {
		return fmt.Errorf("failed to update page count of volume %d: %w", id, err)
	}
	return requireAffected(res)
}
