package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/quickcart-backend/internal/app/service"
	apperrors "github.com/ikkim/quickcart-backend/internal/errors"
	"github.com/ikkim/quickcart-backend/internal/middleware"
	"github.com/ikkim/quickcart-backend/pkg/payment/razorpay"
)

type PaymentController struct {
	paymentService service.PaymentService
}

func NewPaymentController(paymentService service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
	}
}

// CreateGatewayOrderRequest carries the amount in minor currency units
type CreateGatewayOrderRequest struct {
	Amount   int64  `json:"amount" binding:"required"`
	Currency string `json:"currency"`
}

// CreateGatewayOrder opens a gateway order for the payment widget
// POST /api/v1/payments/create-order
func (ctrl *PaymentController) CreateGatewayOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateGatewayOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.PaymentInvalidAmount, "amount is required")
		return
	}

	order, err := ctrl.paymentService.CreateGatewayOrder(c.Request.Context(), req.Amount, req.Currency)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPaymentAmount):
			apperrors.BadRequest(c, apperrors.PaymentInvalidAmount, "amount must be greater than zero")
		case errors.Is(err, service.ErrPaymentGatewayUnavailable):
			apperrors.RespondWithError(c, http.StatusServiceUnavailable, apperrors.PaymentGatewayUnavailable, "Online payment is not available")
		default:
			log.Error("Failed to create gateway order", err, map[string]interface{}{
				"amount": req.Amount,
			})
			apperrors.RespondWithError(c, http.StatusBadGateway, apperrors.PaymentGatewayFailed, "Could not start the payment, please try again")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       order.ID,
		"amount":   order.Amount,
		"currency": order.Currency,
		"keyId":    ctrl.paymentService.KeyID(),
	})
}

// VerifyPayment checks the signature the widget returned
// POST /api/v1/payments/verify
func (ctrl *PaymentController) VerifyPayment(c *gin.Context) {
	var req razorpay.PaymentResponse
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "failure",
			"message": "Invalid verification payload",
		})
		return
	}

	if err := ctrl.paymentService.VerifyPayment(req); err != nil {
		status := http.StatusBadRequest
		message := "Payment verification failed"
		if errors.Is(err, service.ErrPaymentGatewayUnavailable) {
			status = http.StatusServiceUnavailable
			message = "Online payment is not available"
		}
		c.JSON(status, gin.H{
			"status":  "failure",
			"message": message,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
	})
}
