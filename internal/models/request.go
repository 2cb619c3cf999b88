package models

import "encoding/json"

type CreateOrderRequest struct {
	UserID        int64   `json:"userId" binding:"required,gt=0" example:"7"`
	VolumeIDs     []int64 `json:"volumeIds" binding:"required,min=1,dive,gt=0"`
	CouponCode    *string `json:"couponCode,omitempty"`
	PaymentMethod string  `json:"paymentMethod,omitempty" example:"CARD"`
}

type CreatePaymentRequest struct {
	OrderID       int64   `json:"orderId" binding:"required,gt=0" example:"1"`
	PaymentMethod string  `json:"paymentMethod,omitempty" example:"CARD"`
	PGProvider    *string `json:"pgProvider,omitempty" example:"toss"`
}

type CreatePageRequest struct {
	VolumeID   int64  `json:"volumeId" binding:"required,gt=0"`
	PageNumber int    `json:"pageNumber" binding:"required,gt=0"`
	ImagePath  string `json:"imagePath" binding:"required"`
	// FrameData is an opaque JSON document describing interactive panels.
	FrameData json.RawMessage `json:"frameData,omitempty" swaggertype:"object"`
}

type UpdatePageRequest struct {
	ImagePath *string         `json:"imagePath,omitempty"`
	FrameData json.RawMessage `json:"frameData,omitempty" swaggertype:"object"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
