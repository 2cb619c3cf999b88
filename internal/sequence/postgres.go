package sequence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PostgresSequencer struct {
	db *sql.DB
}

func NewPostgresSequencer(db *sql.DB) *PostgresSequencer {
	return &PostgresSequencer{db: db}
}

func (s *PostgresSequencer) Next(ctx context.Context, name string, day time.Time) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO number_sequences (name, day, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (name, day) DO UPDATE SET value = number_sequences.value + 1
		RETURNING value
	`, name, day.Format("2006-01-02")).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", name, err)
	}
	return value, nil
}
