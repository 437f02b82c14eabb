package razorpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		KeyID:     "rzp_test_key",
		KeySecret: "test_secret",
		BaseURL:   server.URL,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "https://api.razorpay.com/v1"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCreateOrder(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/orders", r.URL.Path)
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "rzp_test_key", user)
			assert.Equal(t, "test_secret", pass)

			var body CreateOrderRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, int64(16000), body.Amount)
			assert.Equal(t, "INR", body.Currency)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(Order{ID: "order_123", Amount: body.Amount, Currency: body.Currency, Status: "created"})
		})

		order, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 16000})
		require.NoError(t, err)
		assert.Equal(t, "order_123", order.ID)
		assert.Equal(t, int64(16000), order.Amount)
		assert.Equal(t, "INR", order.Currency)
	})

	t.Run("Non-positive amount is rejected locally", func(t *testing.T) {
		called := false
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			called = true
		})

		_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 0})
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.False(t, called)
	})

	t.Run("Bad request maps to ErrInvalidRequest", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
		})

		_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 10})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("Unauthorized", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`))
		})

		_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 100})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("Unparseable server error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		})

		_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 100})
		assert.ErrorIs(t, err, ErrOrderCreationFailed)
	})
}

func TestVerifyPaymentSignature(t *testing.T) {
	client, err := NewClient(Config{KeyID: "rzp_test_key", KeySecret: "test_secret", BaseURL: "http://unused"})
	require.NoError(t, err)

	valid := PaymentResponse{
		OrderID:   "order_123",
		PaymentID: "pay_456",
		Signature: Sign("test_secret", "order_123", "pay_456"),
	}

	tests := []struct {
		name    string
		payment PaymentResponse
		wantErr error
	}{
		{name: "Valid signature", payment: valid, wantErr: nil},
		{
			name:    "Tampered payment id",
			payment: PaymentResponse{OrderID: valid.OrderID, PaymentID: "pay_other", Signature: valid.Signature},
			wantErr: ErrSignatureMismatch,
		},
		{
			name:    "Signed with another secret",
			payment: PaymentResponse{OrderID: valid.OrderID, PaymentID: valid.PaymentID, Signature: Sign("other", "order_123", "pay_456")},
			wantErr: ErrSignatureMismatch,
		},
		{
			name:    "Missing signature",
			payment: PaymentResponse{OrderID: valid.OrderID, PaymentID: valid.PaymentID},
			wantErr: ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.VerifyPaymentSignature(tt.payment)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSign_KnownVector(t *testing.T) {
	assert.Equal(t, "8c8df7e38bfcb56516693c69ab8b28b82328b007ff30f842ef21b6e4cecdfd3c", Sign("secret", "a", "b"))
}
