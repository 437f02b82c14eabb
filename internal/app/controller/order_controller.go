package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/internal/app/repository"
	"github.com/ikkim/quickcart-backend/internal/app/service"
	apperrors "github.com/ikkim/quickcart-backend/internal/errors"
	"github.com/ikkim/quickcart-backend/internal/middleware"
	"github.com/ikkim/quickcart-backend/pkg/payment/razorpay"
)

type OrderController struct {
	orderService service.OrderService
}

func NewOrderController(orderService service.OrderService) *OrderController {
	return &OrderController{
		orderService: orderService,
	}
}

type CartItemRequest struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type PlaceOrderRequest struct {
	Name        string                    `json:"name" binding:"required"`
	Email       string                    `json:"email" binding:"required,email"`
	Address     string                    `json:"address" binding:"required"`
	City        string                    `json:"city" binding:"required"`
	PostalCode  string                    `json:"postalCode" binding:"required"`
	Phone       string                    `json:"phone" binding:"required"`
	PaymentMode model.PaymentMode         `json:"paymentMode"`
	Payment     *razorpay.PaymentResponse `json:"payment"`
	CartItems   []CartItemRequest         `json:"cartItems"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// PlaceOrder records a checkout submission
// POST /api/v1/orders
func (ctrl *OrderController) PlaceOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid order request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BindingError(c, err, "Invalid order payload")
		return
	}

	input := service.PlaceOrderInput{
		Name:        req.Name,
		Email:       req.Email,
		Address:     req.Address,
		City:        req.City,
		PostalCode:  req.PostalCode,
		Phone:       req.Phone,
		PaymentMode: model.PaymentMode(strings.ToLower(string(req.PaymentMode))),
		Payment:     req.Payment,
		Items:       make([]service.OrderItemInput, 0, len(req.CartItems)),
	}
	for _, item := range req.CartItems {
		input.Items = append(input.Items, service.OrderItemInput{ProductID: item.Product, Quantity: item.Quantity})
	}
	if userID, ok := middleware.GetUserID(c); ok {
		input.UserID = &userID
	}

	order, err := ctrl.orderService.PlaceOrder(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingCustomerField):
			apperrors.BadRequest(c, apperrors.ValidationRequired, err.Error())
		case errors.Is(err, service.ErrInvalidPaymentMode):
			apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "paymentMode must be cod or online")
		case errors.Is(err, service.ErrInvalidOrderItems):
			apperrors.BadRequest(c, apperrors.OrderInvalidItems, "Your cart has no orderable items")
		case errors.Is(err, service.ErrProductNotFound):
			apperrors.BadRequest(c, apperrors.ProductNotFound, err.Error())
		case errors.Is(err, service.ErrPaymentVerificationFailed):
			apperrors.BadRequest(c, apperrors.PaymentVerificationFailed, "Payment could not be verified")
		case errors.Is(err, service.ErrPaymentGatewayUnavailable):
			apperrors.RespondWithError(c, http.StatusServiceUnavailable, apperrors.PaymentGatewayUnavailable, "Online payment is not available")
		default:
			log.Error("Failed to place order", err, map[string]interface{}{
				"email": req.Email,
			})
			apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "place order")
		}
		return
	}

	log.Info("Order placed successfully", map[string]interface{}{
		"order_id":     order.ID,
		"total_amount": order.TotalAmount,
	})

	c.JSON(http.StatusCreated, gin.H{
		"orderId": order.ID,
		"order":   order,
	})
}

// GetOrdersByEmail lists a customer's orders. Shoppers may only read their own.
// GET /api/v1/orders/user/:email
func (ctrl *OrderController) GetOrdersByEmail(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	email := strings.ToLower(strings.TrimSpace(c.Param("email")))
	callerEmail, _ := middleware.GetUserEmail(c)
	role, _ := middleware.GetUserRole(c)
	if role != model.RoleAdmin && !strings.EqualFold(callerEmail, email) {
		log.Warn("Order history requested for another customer", map[string]interface{}{
			"requested": email,
		})
		apperrors.Forbidden(c, "")
		return
	}

	orders, err := ctrl.orderService.GetOrdersByEmail(email)
	if err != nil {
		log.Error("Failed to fetch orders by email", err, nil)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
	})
}

// ListOrders returns every order (Admin only)
// GET /api/v1/orders?status=&paymentStatus=
func (ctrl *OrderController) ListOrders(c *gin.Context) {
	orders, err := ctrl.orderService.ListOrders(repository.OrderFilter{
		Status:        model.OrderStatus(c.Query("status")),
		PaymentStatus: model.PaymentStatus(c.Query("paymentStatus")),
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrderStatus) || errors.Is(err, service.ErrInvalidPaymentStatus) {
			apperrors.BadRequest(c, apperrors.OrderInvalidStatus, err.Error())
			return
		}
		middleware.GetLoggerFromContext(c).Error("Failed to list orders", err, nil)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
	})
}

// UpdateOrderStatus moves an order through fulfilment (Admin only)
// PUT /api/v1/orders/:id/status
func (ctrl *OrderController) UpdateOrderStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationRequired, "status is required")
		return
	}

	order, err := ctrl.orderService.UpdateOrderStatus(c.Param("id"), model.OrderStatus(req.Status))
	ctrl.respondStatusUpdate(c, order, err)
}

// UpdatePaymentStatus records payment reconciliation (Admin only)
// PUT /api/v1/orders/:id/payment-status
func (ctrl *OrderController) UpdatePaymentStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationRequired, "status is required")
		return
	}

	order, err := ctrl.orderService.UpdatePaymentStatus(c.Param("id"), model.PaymentStatus(req.Status))
	ctrl.respondStatusUpdate(c, order, err)
}

func (ctrl *OrderController) respondStatusUpdate(c *gin.Context, order *model.Order, err error) {
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOrderStatus), errors.Is(err, service.ErrInvalidPaymentStatus):
			apperrors.BadRequest(c, apperrors.OrderInvalidStatus, err.Error())
		case errors.Is(err, service.ErrOrderNotFound):
			apperrors.NotFound(c, apperrors.OrderNotFound, "Order not found")
		default:
			middleware.GetLoggerFromContext(c).Error("Failed to update order", err, map[string]interface{}{
				"order_id": c.Param("id"),
			})
			apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "update order")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
	})
}
