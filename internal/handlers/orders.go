package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"mangashelf-backend/internal/models"
	"mangashelf-backend/internal/services"
)

type OrdersHandler struct {
	orders *services.OrderService
}

func NewOrdersHandler(orders *services.OrderService) *OrdersHandler {
	return &OrdersHandler{orders: orders}
}

// CreateOrder godoc
// @Summary     Create an order
// @Description Creates a PENDING order for one copy of each listed volume, priced at the current volume prices.
// @Tags        orders
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateOrderRequest true "Order contents"
// @Success     201 {object} models.Order
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /orders [post]
func (h *OrdersHandler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: %v", err)
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), services.CreateOrderParams{
		UserID:        req.UserID,
		VolumeIDs:     req.VolumeIDs,
		CouponCode:    req.CouponCode,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// GetOrder godoc
// @Summary     Get an order
// @Tags        orders
// @Produce     json
// @Security    Bearer
// @Param       id path int true "Order ID"
// @Success     200 {object} models.Order
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /orders/{id} [get]
func (h *OrdersHandler) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListOrders godoc
// @Summary     List orders of a user
// @Description Returns the user's orders, newest first.
// @Tags        orders
// @Produce     json
// @Security    Bearer
// @Param       userId query int true "User ID"
// @Success     200 {object} models.OrderListResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /orders [get]
func (h *OrdersHandler) ListOrders(c *gin.Context) {
	userID, ok := requiredQueryInt64(c, "userId")
	if !ok {
		return
	}
	orders, err := h.orders.ListOrdersByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OrderListResponse{Orders: orders})
}

// UpdateOrderStatus godoc
// @Summary     Change an order's status
// @Description Applies a status transition. Setting the current status again is a no-op.
// @Tags        orders
// @Produce     json
// @Security    Bearer
// @Param       id     path  int    true "Order ID"
// @Param       status query string true "Target status" Enums(PENDING, PAID, COMPLETED, CANCELLED, REFUNDED)
// @Success     200 {object} models.Order
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /orders/{id}/status [put]
func (h *OrdersHandler) UpdateOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	status := c.Query("status")
	if status == "" {
		badRequest(c, "query parameter status is required")
		return
	}
	order, err := h.orders.UpdateOrderStatus(c.Request.Context(), id, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CancelOrder godoc
// @Summary     Cancel an order
// @Description Cancels a PENDING order owned by the given user.
// @Tags        orders
// @Security    Bearer
// @Param       id     path  int true "Order ID"
// @Param       userId query int true "Owner user ID"
// @Success     204
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /orders/{id} [delete]
func (h *OrdersHandler) CancelOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := requiredQueryInt64(c, "userId")
	if !ok {
		return
	}
	if err := h.orders.CancelOrder(c.Request.Context(), id, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
