package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ikkim/quickcart-backend/internal/storefront/cart"
	"github.com/ikkim/quickcart-backend/internal/storefront/cartview"
	"github.com/ikkim/quickcart-backend/internal/storefront/catalog"
	"github.com/ikkim/quickcart-backend/internal/storefront/localstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	createErr error
	verdict   VerifyResult
	verifyErr error
	amounts   []int64
	verified  []PaymentResult
}

func (g *fakeGateway) CreateGatewayOrder(ctx context.Context, amount int64, currency string) (*GatewayOrder, error) {
	g.amounts = append(g.amounts, amount)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &GatewayOrder{ID: "order_gw_1", Amount: amount, Currency: currency, KeyID: "rzp_test_key"}, nil
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, result PaymentResult) (*VerifyResult, error) {
	g.verified = append(g.verified, result)
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return &g.verdict, nil
}

type fakeOrders struct {
	mu       sync.Mutex
	requests []OrderRequest
	err      error
	gate     chan struct{}
}

func (o *fakeOrders) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderReceipt, error) {
	if o.gate != nil {
		<-o.gate
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, req)
	if o.err != nil {
		return nil, o.err
	}
	return &OrderReceipt{OrderID: "order-1"}, nil
}

type staticWidget struct {
	result PaymentResult
	err    error
	onOpen func()
	seen   []WidgetRequest
}

func (w *staticWidget) Open(ctx context.Context, req WidgetRequest) (PaymentResult, error) {
	w.seen = append(w.seen, req)
	if w.onOpen != nil {
		w.onOpen()
	}
	return w.result, w.err
}

// liveCart prices whatever the store holds at the time of the call.
type liveCart struct {
	store    *cart.Store
	products map[string]catalog.Product
	reads    int
}

func (c *liveCart) Refresh(ctx context.Context) cartview.View {
	c.reads++
	return cartview.Aggregate(c.store.Load(ctx), c.products)
}

type fixture struct {
	store   *cart.Store
	cart    *liveCart
	gateway *fakeGateway
	orders  *fakeOrders
	widget  *staticWidget
}

func (f *fixture) deps() Deps {
	return Deps{Gateway: f.gateway, Orders: f.orders, Widget: f.widget, Cart: f.store}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := cart.NewStore(localstore.NewMemory())
	require.NoError(t, store.AddLine(ctx, "A", 2))
	require.NoError(t, store.AddLine(ctx, "B", 1))

	offer := 80.0
	products := map[string]catalog.Product{
		"A": {ID: "A", Name: "Kettle", Price: 100, OfferPrice: &offer},
	}

	return &fixture{
		store:   store,
		cart:    &liveCart{store: store, products: products},
		gateway: &fakeGateway{verdict: VerifyResult{Status: "success"}},
		orders:  &fakeOrders{},
		widget: &staticWidget{result: PaymentResult{
			OrderID: "order_gw_1", PaymentID: "pay_1", Signature: "sig",
		}},
	}
}

func validForm(mode PaymentMode) Form {
	return Form{
		Name:        "Asha",
		Email:       " Asha@Example.com ",
		Address:     "12 MG Road",
		City:        "Pune",
		PostalCode:  "411001",
		Phone:       "9999999999",
		PaymentMode: mode,
	}
}

func TestBegin_EmptyCart(t *testing.T) {
	empty := &liveCart{store: cart.NewStore(localstore.NewMemory())}
	_, err := Begin(context.Background(), empty, Deps{})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestForm_ValidateFieldOrder(t *testing.T) {
	form := Form{Email: "not-an-email", PaymentMode: "bank"}

	var fe *FieldError
	require.ErrorAs(t, form.Validate(), &fe)
	assert.Equal(t, "name", fe.Field)

	form.Name = "Asha"
	require.ErrorAs(t, form.Validate(), &fe)
	assert.Equal(t, "email", fe.Field)
	assert.Equal(t, "is not a valid email address", fe.Message)

	form.Email = "asha@example.com"
	require.ErrorAs(t, form.Validate(), &fe)
	assert.Equal(t, "address", fe.Field)
	assert.Equal(t, "is required", fe.Message)

	form = validForm("bank")
	require.ErrorAs(t, form.Validate(), &fe)
	assert.Equal(t, "paymentMode", fe.Field)
	assert.Equal(t, "must be cod or online", fe.Message)

	form.Phone = ""
	require.ErrorAs(t, form.Validate(), &fe)
	assert.Equal(t, "phone", fe.Field)
}

func TestSubmit_CODHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session, err := Begin(ctx, f.cart, f.deps())
	require.NoError(t, err)
	assert.Equal(t, StateFormEntry, session.State())

	receipt, err := session.Submit(ctx, validForm(ModeCOD))
	require.NoError(t, err)
	assert.Equal(t, "order-1", receipt.OrderID)
	assert.Equal(t, StateSucceeded, session.State())

	require.Len(t, f.orders.requests, 1)
	req := f.orders.requests[0]
	assert.Equal(t, []OrderLine{{ProductID: "A", Quantity: 2}}, req.Items, "unresolved lines are not ordered")
	assert.Equal(t, "asha@example.com", req.Email)
	assert.Nil(t, req.Payment)
	assert.Empty(t, f.gateway.amounts, "cod never touches the gateway")

	assert.Empty(t, f.store.Load(ctx))

	_, err = session.Submit(ctx, validForm(ModeCOD))
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSubmit_OnlineHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session, err := Begin(ctx, f.cart, f.deps())
	require.NoError(t, err)

	_, err = session.Submit(ctx, validForm(ModeOnline))
	require.NoError(t, err)

	assert.Equal(t, []int64{16000}, f.gateway.amounts)
	require.Len(t, f.widget.seen, 1)
	assert.Equal(t, "order_gw_1", f.widget.seen[0].OrderID)
	assert.Equal(t, "asha@example.com", f.widget.seen[0].Email)

	require.Len(t, f.orders.requests, 1)
	require.NotNil(t, f.orders.requests[0].Payment)
	assert.Equal(t, "pay_1", f.orders.requests[0].Payment.PaymentID)
	assert.Empty(t, f.store.Load(ctx))
}

func TestSubmit_OnlineVerificationFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gateway.verdict = VerifyResult{Status: "failure", Message: "Payment verification failed"}

	session, err := Begin(ctx, f.cart, f.deps())
	require.NoError(t, err)

	form := validForm(ModeOnline)
	_, err = session.Submit(ctx, form)
	assert.ErrorIs(t, err, ErrPaymentVerificationFailed)

	assert.Equal(t, StateFormEntry, session.State())
	assert.Equal(t, form, session.Form(), "form is preserved")
	assert.Empty(t, f.orders.requests, "no order without a verified payment")
	assert.Len(t, f.store.Load(ctx), 2, "cart is preserved")
}

func TestSubmit_GatewayOrderFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gateway.createErr = errors.New("502 bad gateway")

	session, err := Begin(ctx, f.cart, f.deps())
	require.NoError(t, err)

	_, err = session.Submit(ctx, validForm(ModeOnline))
	assert.ErrorIs(t, err, ErrGatewayOrderFailed)
	assert.Equal(t, StateFormEntry, session.State())
	assert.Empty(t, f.widget.seen)

	f.gateway.createErr = nil
	_, err = session.Submit(ctx, validForm(ModeOnline))
	assert.NoError(t, err, "the shopper can retry from form entry")
}

func TestSubmit_WidgetDismissed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.widget.err = ErrPaymentDismissed

	session, err := Begin(ctx, f.cart, f.deps())
	require.NoError(t, err)

	_, err = session.Submit(ctx, validForm(ModeOnline))
	assert.ErrorIs(t, err, ErrPaymentDismissed)
	assert.Empty(t, f.gateway.verified)
	assert.Len(t, f.store.Load(ctx), 2)
}

func TestSubmit_NothingToOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cart.products = nil

	session, err := Begin(ctx, f.cart, f.deps())
	require.NoError(t, err)

	_, err = session.Submit(ctx, validForm(ModeCOD))
	assert.ErrorIs(t, err, ErrNothingToOrder)
	assert.Empty(t, f.orders.requests, "order service is never called")
}

func TestSubmit_OrderFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	serverErr := errors.New("500: Failed to place order")
	f.orders.err = serverErr

	session, err := Begin(ctx, f.cart, f.deps())
	require.NoError(t, err)

	_, err = session.Submit(ctx, validForm(ModeCOD))
	assert.ErrorIs(t, err, serverErr)
	assert.Equal(t, StateFormEntry, session.State())
	assert.Len(t, f.store.Load(ctx), 2)
}

func TestSubmit_InvalidFormTouchesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, err := Begin(ctx, f.cart, f.deps())
	require.NoError(t, err)

	form := validForm(ModeCOD)
	form.City = " "
	_, err = session.Submit(ctx, form)

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "city", fe.Field)
	assert.Empty(t, f.orders.requests)
}

func TestSubmit_RejectsConcurrentSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.orders.gate = make(chan struct{})

	session, err := Begin(ctx, f.cart, f.deps())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := session.Submit(ctx, validForm(ModeCOD))
		done <- err
	}()

	require.Eventually(t, func() bool { return session.State() == StatePlacing }, time.Second, 5*time.Millisecond)

	_, err = session.Submit(ctx, validForm(ModeCOD))
	assert.ErrorIs(t, err, ErrSubmitInProgress)

	close(f.orders.gate)
	assert.NoError(t, <-done)
}

func TestSubmit_CancelledWhileAwaitingWidget(t *testing.T) {
	f := newFixture(t)
	deps := f.deps()
	deps.Widget = BridgeWidget(func(WidgetRequest, func(PaymentResult), func(error)) {})

	session, err := Begin(context.Background(), f.cart, deps)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for session.State() != StateGatewayAwaitingUser {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err = session.Submit(ctx, validForm(ModeOnline))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.gateway.verified)
	assert.Empty(t, f.orders.requests)
	assert.Len(t, f.store.Load(context.Background()), 2)
}

func TestSubmit_EmptyPaymentModeIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, err := Begin(ctx, f.cart, f.deps())
	require.NoError(t, err)
	reads := f.cart.reads

	_, err = session.Submit(ctx, validForm(""))

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "paymentMode", fe.Field)
	assert.Equal(t, StateFormEntry, session.State())
	assert.Equal(t, reads, f.cart.reads, "cart is not read")
	assert.Empty(t, f.gateway.amounts)
	assert.Empty(t, f.widget.seen)
	assert.Empty(t, f.orders.requests)
	assert.Len(t, f.store.Load(ctx), 2)
}

func TestSubmit_CODOrdersCartAsItIsAtSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, err := Begin(ctx, f.cart, f.deps())
	require.NoError(t, err)

	require.NoError(t, f.store.Clear(ctx))

	_, err = session.Submit(ctx, validForm(ModeCOD))
	assert.ErrorIs(t, err, ErrNothingToOrder)
	assert.Equal(t, StateFormEntry, session.State())
	assert.Empty(t, f.orders.requests, "order service is never called")

	require.NoError(t, f.store.AddLine(ctx, "A", 3))
	_, err = session.Submit(ctx, validForm(ModeCOD))
	require.NoError(t, err)
	require.Len(t, f.orders.requests, 1)
	assert.Equal(t, []OrderLine{{ProductID: "A", Quantity: 3}}, f.orders.requests[0].Items)
}

func TestSubmit_OnlineChargesLiveTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, err := Begin(ctx, f.cart, f.deps())
	require.NoError(t, err)

	require.NoError(t, f.store.SetQuantity(ctx, "A", 10))

	_, err = session.Submit(ctx, validForm(ModeOnline))
	require.NoError(t, err)

	assert.Equal(t, []int64{80000}, f.gateway.amounts)
	require.Len(t, f.widget.seen, 1)
	assert.Equal(t, int64(80000), f.widget.seen[0].Amount)
	require.Len(t, f.orders.requests, 1)
	assert.Equal(t, []OrderLine{{ProductID: "A", Quantity: 10}}, f.orders.requests[0].Items)
}

func TestSubmit_CartEditedWhilePaying(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.widget.onOpen = func() {
		require.NoError(t, f.store.SetQuantity(ctx, "A", 5))
	}

	session, err := Begin(ctx, f.cart, f.deps())
	require.NoError(t, err)

	_, err = session.Submit(ctx, validForm(ModeOnline))
	assert.ErrorIs(t, err, ErrCartChanged)
	assert.Equal(t, []int64{16000}, f.gateway.amounts)
	assert.Len(t, f.gateway.verified, 1)
	assert.Empty(t, f.orders.requests, "a payment for another total is never ordered")
	assert.Equal(t, StateFormEntry, session.State())
	assert.Len(t, f.store.Load(ctx), 2, "cart is preserved")
}
