package razorpay

import "errors"

var (
	// ErrInvalidConfig is returned when the key pair or base URL is missing
	ErrInvalidConfig = errors.New("invalid razorpay config")

	// ErrInvalidRequest is returned when the request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidAmount is returned when the order amount is not positive
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrOrderCreationFailed is returned when the gateway rejects an order
	ErrOrderCreationFailed = errors.New("gateway order creation failed")

	// ErrSignatureMismatch is returned when a payment signature does not verify
	ErrSignatureMismatch = errors.New("invalid signature")

	// ErrNetworkError is returned when there's a network communication error
	ErrNetworkError = errors.New("network error")

	// ErrUnauthorized is returned when the key pair is rejected
	ErrUnauthorized = errors.New("unauthorized: invalid API key")
)
