// Package checkout drives a shopper from a priced cart to a placed order,
// either cash on delivery or through the hosted payment widget.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrEmptyCart                 = errors.New("cart is empty")
	ErrGatewayOrderFailed        = errors.New("could not start the payment")
	ErrPaymentDismissed          = errors.New("payment was not completed")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrNothingToOrder            = errors.New("no orderable items in cart")
	ErrCartChanged               = errors.New("cart changed during payment")
	ErrSubmitInProgress          = errors.New("checkout already in progress")
	ErrSessionClosed             = errors.New("checkout session already completed")
)

type PaymentMode string

const (
	ModeCOD    PaymentMode = "cod"
	ModeOnline PaymentMode = "online"
)

// Form is the shipping and payment form. Fields are declared in display
// order, which is the order they are validated in.
type Form struct {
	Name        string      `json:"name" validate:"required"`
	Email       string      `json:"email" validate:"required,email"`
	Address     string      `json:"address" validate:"required"`
	City        string      `json:"city" validate:"required"`
	PostalCode  string      `json:"postalCode" validate:"required"`
	Phone       string      `json:"phone" validate:"required"`
	PaymentMode PaymentMode `json:"paymentMode" validate:"required,oneof=cod online"`
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		return name
	})
	return v
}

// FieldError names the first form field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (f Form) normalized() Form {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Address = strings.TrimSpace(f.Address)
	f.City = strings.TrimSpace(f.City)
	f.PostalCode = strings.TrimSpace(f.PostalCode)
	f.Phone = strings.TrimSpace(f.Phone)
	return f
}

// Validate checks fields in display order and stops at the first failure.
func (f Form) Validate() error {
	err := formValidator.Struct(f.normalized())
	if err == nil {
		return nil
	}
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) || len(invalid) == 0 {
		return err
	}
	first := invalid[0]
	return &FieldError{Field: first.Field(), Message: fieldMessage(first)}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "is not a valid email address"
	case "oneof":
		return "must be " + strings.ReplaceAll(fe.Param(), " ", " or ")
	}
	return "is invalid"
}

// GatewayOrder is a payment order opened with the gateway. Amount is in minor units.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
}

// PaymentResult is what the widget hands back once the shopper paid.
type PaymentResult struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type VerifyResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (v VerifyResult) Success() bool {
	return v.Status == "success"
}

type OrderLine struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

type OrderRequest struct {
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Address     string         `json:"address"`
	City        string         `json:"city"`
	PostalCode  string         `json:"postalCode"`
	Phone       string         `json:"phone"`
	PaymentMode PaymentMode    `json:"paymentMode"`
	Payment     *PaymentResult `json:"payment,omitempty"`
	Items       []OrderLine    `json:"cartItems"`
}

type OrderReceipt struct {
	OrderID string `json:"orderId"`
}

// WidgetRequest is everything the hosted widget needs to take a payment.
type WidgetRequest struct {
	KeyID    string
	OrderID  string
	Amount   int64
	Currency string
	Name     string
	Email    string
	Phone    string
}

type Gateway interface {
	CreateGatewayOrder(ctx context.Context, amount int64, currency string) (*GatewayOrder, error)
	VerifyPayment(ctx context.Context, result PaymentResult) (*VerifyResult, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderReceipt, error)
}

// Widget blocks until the shopper completes or dismisses the payment.
type Widget interface {
	Open(ctx context.Context, req WidgetRequest) (PaymentResult, error)
}

type CartClearer interface {
	Clear(ctx context.Context) error
}
