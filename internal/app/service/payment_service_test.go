package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/internal/app/repository"
	"github.com/ikkim/quickcart-backend/internal/db"
	"github.com/ikkim/quickcart-backend/pkg/payment/razorpay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	createErr error
	verifyErr error
	requests  []razorpay.CreateOrderRequest
	verified  []razorpay.PaymentResponse
}

func (f *fakeGateway) KeyID() string { return "rzp_test_key" }

func (f *fakeGateway) CreateOrder(ctx context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error) {
	f.requests = append(f.requests, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &razorpay.Order{
		ID:       fmt.Sprintf("order_test_%d", len(f.requests)),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (f *fakeGateway) VerifyPaymentSignature(p razorpay.PaymentResponse) error {
	f.verified = append(f.verified, p)
	return f.verifyErr
}

type failingGatewayOrders struct{}

func (failingGatewayOrders) Create(*model.GatewayOrder) error { return errors.New("disk full") }

func (failingGatewayOrders) FindByID(string) (*model.GatewayOrder, error) {
	return nil, errors.New("disk full")
}

func gatewayOrderRepo(t *testing.T) repository.GatewayOrderRepository {
	t.Helper()
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })
	return repository.NewGatewayOrderRepository(testDB)
}

func TestPaymentService_CreateGatewayOrder(t *testing.T) {
	gateway := &fakeGateway{}
	opened := gatewayOrderRepo(t)
	svc := NewPaymentService(gateway, opened, "INR")

	order, err := svc.CreateGatewayOrder(context.Background(), 16000, "")
	require.NoError(t, err)
	assert.Equal(t, "order_test_1", order.ID)
	assert.Equal(t, int64(16000), order.Amount)
	assert.Equal(t, "INR", order.Currency)

	require.Len(t, gateway.requests, 1)
	assert.Contains(t, gateway.requests[0].Receipt, "rcpt_")
	assert.Equal(t, "rzp_test_key", svc.KeyID())

	recorded, err := opened.FindByID("order_test_1")
	require.NoError(t, err)
	assert.Equal(t, int64(16000), recorded.Amount)
	assert.Equal(t, gateway.requests[0].Receipt, recorded.Receipt)
}

func TestPaymentService_CreateGatewayOrder_Errors(t *testing.T) {
	t.Run("Non-positive amount", func(t *testing.T) {
		gateway := &fakeGateway{}
		svc := NewPaymentService(gateway, gatewayOrderRepo(t), "INR")

		_, err := svc.CreateGatewayOrder(context.Background(), 0, "INR")
		assert.ErrorIs(t, err, ErrInvalidPaymentAmount)
		assert.Empty(t, gateway.requests)
	})

	t.Run("Gateway failure", func(t *testing.T) {
		svc := NewPaymentService(&fakeGateway{createErr: razorpay.ErrUnauthorized}, gatewayOrderRepo(t), "INR")

		_, err := svc.CreateGatewayOrder(context.Background(), 100, "INR")
		assert.ErrorIs(t, err, ErrGatewayOrderFailed)
	})

	t.Run("Gateway order not recorded", func(t *testing.T) {
		gateway := &fakeGateway{}
		svc := NewPaymentService(gateway, failingGatewayOrders{}, "INR")

		order, err := svc.CreateGatewayOrder(context.Background(), 100, "INR")
		assert.ErrorIs(t, err, ErrGatewayOrderFailed)
		assert.Nil(t, order, "an unrecorded order is never handed to the shopper")
		assert.Len(t, gateway.requests, 1)
	})

	t.Run("No gateway configured", func(t *testing.T) {
		svc := NewPaymentService(nil, nil, "")

		_, err := svc.CreateGatewayOrder(context.Background(), 100, "INR")
		assert.ErrorIs(t, err, ErrPaymentGatewayUnavailable)
		assert.ErrorIs(t, svc.VerifyPayment(razorpay.PaymentResponse{}), ErrPaymentGatewayUnavailable)
		assert.Empty(t, svc.KeyID())
	})
}

func TestPaymentService_VerifyPayment(t *testing.T) {
	gateway := &fakeGateway{}
	svc := NewPaymentService(gateway, gatewayOrderRepo(t), "INR")

	payment := razorpay.PaymentResponse{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"}
	require.NoError(t, svc.VerifyPayment(payment))
	assert.Equal(t, []razorpay.PaymentResponse{payment}, gateway.verified)

	gateway.verifyErr = razorpay.ErrSignatureMismatch
	err := svc.VerifyPayment(payment)
	assert.ErrorIs(t, err, ErrPaymentVerificationFailed)
	assert.False(t, errors.Is(err, razorpay.ErrSignatureMismatch))
}
