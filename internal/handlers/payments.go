package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"mangashelf-backend/internal/models"
	"mangashelf-backend/internal/services"
)

type PaymentsHandler struct {
	payments *services.PaymentService
}

func NewPaymentsHandler(payments *services.PaymentService) *PaymentsHandler {
	return &PaymentsHandler{payments: payments}
}

// CreatePayment godoc
// @Summary     Open a payment for an order
// @Description Creates the PENDING payment of a PENDING order for its final amount. An order has at most one payment.
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreatePaymentRequest true "Payment request"
// @Success     201 {object} models.Payment
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /payments [post]
func (h *PaymentsHandler) CreatePayment(c *gin.Context) {
	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: %v", err)
		return
	}

	payment, err := h.payments.CreatePayment(c.Request.Context(), services.CreatePaymentParams{
		OrderID:       req.OrderID,
		PaymentMethod: req.PaymentMethod,
		PGProvider:    req.PGProvider,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

// GetPayment godoc
// @Summary     Get a payment
// @Tags        payments
// @Produce     json
// @Security    Bearer
// @Param       id path int true "Payment ID"
// @Success     200 {object} models.Payment
// @Failure     404 {object} models.ErrorResponse
// @Router      /payments/{id} [get]
func (h *PaymentsHandler) GetPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	payment, err := h.payments.GetPayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// GetPaymentByOrder godoc
// @Summary     Get the payment of an order
// @Tags        payments
// @Produce     json
// @Security    Bearer
// @Param       orderId path int true "Order ID"
// @Success     200 {object} models.Payment
// @Failure     404 {object} models.ErrorResponse
// @Router      /payments/order/{orderId} [get]
func (h *PaymentsHandler) GetPaymentByOrder(c *gin.Context) {
	orderID, ok := pathID(c, "orderId")
	if !ok {
		return
	}
	payment, err := h.payments.GetPaymentByOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// CompletePayment godoc
// @Summary     Complete a payment
// @Description Records the gateway transaction and marks the order PAID.
// @Tags        payments
// @Produce     json
// @Security    Bearer
// @Param       id              path  int    true "Payment ID"
// @Param       pgTransactionId query string true "Gateway transaction ID"
// @Success     200 {object} models.Payment
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /payments/{id}/complete [post]
func (h *PaymentsHandler) CompletePayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	txID := c.Query("pgTransactionId")
	if txID == "" {
		badRequest(c, "query parameter pgTransactionId is required")
		return
	}
	payment, err := h.payments.CompletePayment(c.Request.Context(), id, txID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// FailPayment godoc
// @Summary     Mark a payment as failed
// @Tags        payments
// @Produce     json
// @Security    Bearer
// @Param       id     path  int    true  "Payment ID"
// @Param       reason query string false "Failure reason"
// @Success     200 {object} models.Payment
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /payments/{id}/fail [post]
func (h *PaymentsHandler) FailPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	payment, err := h.payments.FailPayment(c.Request.Context(), id, c.Query("reason"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// RefundPayment godoc
// @Summary     Refund a payment
// @Description Refunds the full amount of a COMPLETED payment and moves the order to REFUNDED.
// @Tags        payments
// @Produce     json
// @Security    Bearer
// @Param       id           path  int    true  "Payment ID"
// @Param       refundReason query string false "Refund reason"
// @Success     200 {object} models.Payment
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /payments/{id}/refund [post]
func (h *PaymentsHandler) RefundPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	payment, err := h.payments.RefundPayment(c.Request.Context(), id, c.Query("refundReason"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}
