package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ikkim/quickcart-backend/internal/storefront/cartview"
	"github.com/ikkim/quickcart-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

type State string

const (
	StateFormEntry            State = "form_entry"
	StateDirectPlacement      State = "direct_placement"
	StateGatewayOrderCreation State = "gateway_order_creation"
	StateGatewayAwaitingUser  State = "gateway_awaiting_user"
	StateGatewayVerification  State = "gateway_verification"
	StatePlacing              State = "placing"
	StateSucceeded            State = "succeeded"
)

// CartSource yields the cart as it is right now. *cartview.Aggregator
// satisfies it.
type CartSource interface {
	Refresh(ctx context.Context) cartview.View
}

type Deps struct {
	Gateway  Gateway
	Orders   OrderPlacer
	Widget   Widget
	Cart     CartClearer
	Currency string
}

// Session is one checkout attempt. It is never persisted; dropping it
// abandons the checkout.
type Session struct {
	cart CartSource
	deps Deps

	mu         sync.Mutex
	state      State
	form       Form
	submitting bool
	receipt    *OrderReceipt
}

// Begin opens a session over cart. There is no session for an empty cart.
// The cart is read again on every submit, so edits made after Begin are
// what gets charged and ordered.
func Begin(ctx context.Context, cart CartSource, deps Deps) (*Session, error) {
	if cart.Refresh(ctx).Empty() {
		return nil, ErrEmptyCart
	}
	if deps.Currency == "" {
		deps.Currency = "INR"
	}
	return &Session{
		cart:  cart,
		deps:  deps,
		state: StateFormEntry,
		form:  Form{PaymentMode: ModeCOD},
	}, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Form returns the last submitted form, kept across failed attempts.
func (s *Session) Form() Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

func (s *Session) Receipt() *OrderReceipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receipt
}

// AmountMinor is the total of view in minor currency units.
func AmountMinor(view cartview.View) int64 {
	return view.Total.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// orderLines keeps the lines that can be ordered: resolved and non-zero.
func orderLines(view cartview.View) []OrderLine {
	items := make([]OrderLine, 0, len(view.Lines))
	for _, l := range view.Lines {
		if l.Resolved() && l.Quantity > 0 {
			items = append(items, OrderLine{ProductID: l.ProductID, Quantity: l.Quantity})
		}
	}
	return items
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Submit runs the checkout for form. Any failure returns the session to
// form entry with the form and the cart untouched.
func (s *Session) Submit(ctx context.Context, form Form) (*OrderReceipt, error) {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	if s.state == StateSucceeded {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.submitting = true
	s.form = form
	s.mu.Unlock()

	receipt, err := s.run(ctx, form.normalized())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	if err != nil {
		s.state = StateFormEntry
		return nil, err
	}
	s.state = StateSucceeded
	s.receipt = receipt
	return receipt, nil
}

func (s *Session) run(ctx context.Context, form Form) (*OrderReceipt, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	if form.PaymentMode == ModeCOD {
		s.setState(StateDirectPlacement)
		return s.commit(ctx, form, nil, 0)
	}

	view := s.cart.Refresh(ctx)
	if len(orderLines(view)) == 0 {
		return nil, ErrNothingToOrder
	}
	s.setState(StateGatewayOrderCreation)
	amount := AmountMinor(view)
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrGatewayOrderFailed)
	}
	order, err := s.deps.Gateway.CreateGatewayOrder(ctx, amount, s.deps.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatewayOrderFailed, err)
	}

	s.setState(StateGatewayAwaitingUser)
	payment, err := s.deps.Widget.Open(ctx, WidgetRequest{
		KeyID:    order.KeyID,
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Name:     form.Name,
		Email:    form.Email,
		Phone:    form.Phone,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrPaymentDismissed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrPaymentDismissed, err)
	}

	s.setState(StateGatewayVerification)
	verdict, err := s.deps.Gateway.VerifyPayment(ctx, payment)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymentVerificationFailed, err)
	}
	if !verdict.Success() {
		return nil, fmt.Errorf("%w: %s", ErrPaymentVerificationFailed, verdict.Message)
	}

	return s.commit(ctx, form, &payment, order.Amount)
}

// commit orders the cart as it is now. For a paid checkout the live total
// must still equal charged, otherwise the order is refused and the cart kept.
func (s *Session) commit(ctx context.Context, form Form, payment *PaymentResult, charged int64) (*OrderReceipt, error) {
	s.setState(StatePlacing)

	view := s.cart.Refresh(ctx)
	items := orderLines(view)
	if len(items) == 0 {
		return nil, ErrNothingToOrder
	}
	if payment != nil {
		if live := AmountMinor(view); live != charged {
			logger.Warn("Cart changed while the payment was open", map[string]interface{}{
				"gateway_order_id": payment.OrderID,
				"charged":          charged,
				"cart_total":       live,
			})
			return nil, fmt.Errorf("%w: paid %d, cart now totals %d", ErrCartChanged, charged, live)
		}
	}

	receipt, err := s.deps.Orders.PlaceOrder(ctx, OrderRequest{
		Name:        form.Name,
		Email:       form.Email,
		Address:     form.Address,
		City:        form.City,
		PostalCode:  form.PostalCode,
		Phone:       form.Phone,
		PaymentMode: form.PaymentMode,
		Payment:     payment,
		Items:       items,
	})
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	if err := s.deps.Cart.Clear(ctx); err != nil {
		logger.Warn("Order placed but cart could not be cleared", map[string]interface{}{
			"order_id": receipt.OrderID,
			"error":    err.Error(),
		})
	}

	logger.Info("Order placed", map[string]interface{}{
		"order_id":     receipt.OrderID,
		"payment_mode": string(form.PaymentMode),
		"items":        len(items),
	})
	return receipt, nil
}
