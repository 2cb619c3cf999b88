package models

type OrderListResponse struct {
	Orders []Order `json:"orders"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}
