package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/internal/app/repository"
	"github.com/ikkim/quickcart-backend/pkg/logger"
	"github.com/ikkim/quickcart-backend/pkg/payment/razorpay"
)

var (
	ErrInvalidPaymentAmount      = errors.New("invalid payment amount")
	ErrPaymentGatewayUnavailable = errors.New("payment gateway is not configured")
	ErrGatewayOrderFailed        = errors.New("failed to create gateway order")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")

	// A valid signature alone does not pay for an order.
	ErrUnknownGatewayOrder   = fmt.Errorf("%w: gateway order was not opened here", ErrPaymentVerificationFailed)
	ErrPaymentAmountMismatch = fmt.Errorf("%w: paid amount does not match the order total", ErrPaymentVerificationFailed)
	ErrPaymentAlreadyUsed    = fmt.Errorf("%w: payment already settles another order", ErrPaymentVerificationFailed)
)

// GatewayClient is the part of the Razorpay client the service needs
type GatewayClient interface {
	KeyID() string
	CreateOrder(ctx context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error)
	VerifyPaymentSignature(p razorpay.PaymentResponse) error
}

// PaymentVerifier checks a completed gateway payment
type PaymentVerifier interface {
	VerifyPayment(p razorpay.PaymentResponse) error
}

type PaymentService interface {
	PaymentVerifier
	// CreateGatewayOrder registers amount (in minor units) with the gateway
	CreateGatewayOrder(ctx context.Context, amount int64, currency string) (*razorpay.Order, error)
	KeyID() string
}

type paymentService struct {
	gateway         GatewayClient
	gatewayOrders   repository.GatewayOrderRepository
	defaultCurrency string
}

// NewPaymentService accepts a nil gateway; every call then fails with ErrPaymentGatewayUnavailable.
// Every gateway order it opens is recorded in gatewayOrders so PlaceOrder can
// check the amount that was paid.
func NewPaymentService(gateway GatewayClient, gatewayOrders repository.GatewayOrderRepository, defaultCurrency string) PaymentService {
	if defaultCurrency == "" {
		defaultCurrency = "INR"
	}
	return &paymentService{
		gateway:         gateway,
		gatewayOrders:   gatewayOrders,
		defaultCurrency: defaultCurrency,
	}
}

func (s *paymentService) KeyID() string {
	if s.gateway == nil {
		return ""
	}
	return s.gateway.KeyID()
}

func (s *paymentService) CreateGatewayOrder(ctx context.Context, amount int64, currency string) (*razorpay.Order, error) {
	if s.gateway == nil {
		return nil, ErrPaymentGatewayUnavailable
	}
	if amount <= 0 {
		logger.Warn("Rejected gateway order with non-positive amount", map[string]interface{}{
			"amount": amount,
		})
		return nil, ErrInvalidPaymentAmount
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.defaultCurrency
	}

	receipt := "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	logger.Info("Creating gateway order", map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	})

	order, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		logger.Error("Gateway order creation failed", err, map[string]interface{}{
			"amount":  amount,
			"receipt": receipt,
		})
		return nil, fmt.Errorf("%w: %v", ErrGatewayOrderFailed, err)
	}

	if err := s.gatewayOrders.Create(&model.GatewayOrder{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  receipt,
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayOrderFailed, err)
	}

	logger.Info("Gateway order created", map[string]interface{}{
		"gateway_order_id": order.ID,
		"amount":           order.Amount,
	})
	return order, nil
}

func (s *paymentService) VerifyPayment(p razorpay.PaymentResponse) error {
	if s.gateway == nil {
		return ErrPaymentGatewayUnavailable
	}
	if err := s.gateway.VerifyPaymentSignature(p); err != nil {
		logger.Warn("Payment signature verification failed", map[string]interface{}{
			"gateway_order_id": p.OrderID,
			"payment_id":       p.PaymentID,
			"error":            err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrPaymentVerificationFailed, err)
	}

	logger.Info("Payment verified", map[string]interface{}{
		"gateway_order_id": p.OrderID,
		"payment_id":       p.PaymentID,
	})
	return nil
}
