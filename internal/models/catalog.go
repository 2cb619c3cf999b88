package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type Volume struct {
	ID           int64           `json:"id"`
	SeriesID     int64           `json:"seriesId"`
	VolumeNumber int             `json:"volumeNumber"`
	Title        string          `json:"title"`
	Price        decimal.Decimal `json:"price"`
	PageCount    int             `json:"pageCount"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type Page struct {
	ID         int64           `json:"id"`
	VolumeID   int64           `json:"volumeId"`
	PageNumber int             `json:"pageNumber"`
	ImagePath  string          `json:"imagePath"`
	FrameData  json.RawMessage `json:"frameData,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}
