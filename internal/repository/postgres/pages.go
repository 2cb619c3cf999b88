package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"mangashelf-backend/internal/models"
)

type pageRepository struct {
	q Querier
}

const pageColumns = `id, volume_id, page_number, image_path, frame_data, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (models.Page, error) {
	var (
		page      models.Page
		frameData []byte
	)
	err := row.Scan(&page.ID, &page.VolumeID, &page.PageNumber, &page.ImagePath, &frameData, &page.CreatedAt, &page.UpdatedAt)
	if len(frameData) > 0 {
		page.FrameData = json.RawMessage(frameData)
	}
	return page, err
}

// jsonParam keeps an absent frame document NULL instead of an empty string.
func jsonParam(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func (r *pageRepository) ListByVolume(ctx context.Context, volumeID int64) ([]models.Page, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+pageColumns+`
		FROM pages
		WHERE volume_id = $1
		ORDER BY page_number
	`, volumeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	pages := []models.Page{}
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func (r *pageRepository) GetByID(ctx context.Context, id int64) (*models.Page, error) {
	page, err := scanPage(r.q.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get page %d: %w", id, notFound(err))
	}
	return &page, nil
}

func (r *pageRepository) GetByNumber(ctx context.Context, volumeID int64, pageNumber int) (*models.Page, error) {
	page, err := scanPage(r.q.QueryRowContext(ctx, `
		SELECT `+pageColumns+`
		FROM pages
		WHERE volume_id = $1 AND page_number = $2
	`, volumeID, pageNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to get page %d of volume %d: %w", pageNumber, volumeID, notFound(err))
	}
	return &page, nil
}

func (r *pageRepository) CountByVolume(ctx context.Context, volumeID int64) (int, error) {
	var count int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE volume_id = $1`, volumeID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return count, nil
}

func (r *pageRepository) Create(ctx context.Context, page *models.Page) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO pages (volume_id, page_number, image_path, frame_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, page.VolumeID, page.PageNumber, page.ImagePath, jsonParam(page.FrameData), page.CreatedAt, page.UpdatedAt).Scan(&page.ID)
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	return nil
}

func (r *pageRepository) Update(ctx context.Context, page *models.Page) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE pages
		SET page_number = $1, image_path = $2, frame_data = $3, updated_at = $4
		WHERE id = $5
	`, page.PageNumber, page.ImagePath, jsonParam(page.FrameData), page.UpdatedAt, page.ID)
	if err != nil {
		return fmt.Errorf("failed to update page %d: %w", page.ID, err)
	}
	return requireAffected(res)
}

func (r *pageRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM pages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete page %d: %w", id, err)
	}
	return requireAffected(res)
}

func (r *pageRepository) DeleteByVolume(ctx context.Context, volumeID int64) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM pages WHERE volume_id = $1`, volumeID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pages of volume %d: %w", volumeID, err)
	}
	return res.RowsAffected()
}
