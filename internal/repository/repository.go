// Package repository declares the persistence ports used by the services. The
// postgres and memory subpackages implement them.
package repository

import (
	"context"
	"errors"
	"time"

	"mangashelf-backend/internal/models"
)

var ErrNotFound = errors.New("record not found")

type Users interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type Volumes interface {
	GetByID(ctx context.Context, id int64) (*models.Volume, error)
	// GetForUpdate locks the volume row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*models.Volume, error)
	UpdatePageCount(ctx context.Context, id int64, pageCount int, at time.Time) error
}

type Pages interface {
	ListByVolume(ctx context.Context, volumeID int64) ([]models.Page, error)
	GetByID(ctx context.Context, id int64) (*models.Page, error)
	GetByNumber(ctx context.Context, volumeID int64, pageNumber int) (*models.Page, error)
	CountByVolume(ctx context.Context, volumeID int64) (int, error)
	Create(ctx context.Context, page *models.Page) error
	Update(ctx context.Context, page *models.Page) error
	Delete(ctx context.Context, id int64) error
	DeleteByVolume(ctx context.Context, volumeID int64) (int64, error)
}

type Orders interface {
	// Create inserts the order and its lines, filling in generated ids.
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	GetForUpdate(ctx context.Context, id int64) (*models.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Order, error)
	UpdateStatus(ctx context.Context, order *models.Order) error
}

type Payments interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id int64) (*models.Payment, error)
	GetForUpdate(ctx context.Context, id int64) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID int64) (*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
}

// Store groups the repositories. Inside WithTx every repository handed to fn
// shares one transaction, which commits only when fn returns nil.
type Store interface {
	Users() Users
	Volumes() Volumes
	Pages() Pages
	Orders() Orders
	Payments() Payments
	WithTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
