package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/internal/app/repository"
	"github.com/ikkim/quickcart-backend/internal/websocket"
	"github.com/ikkim/quickcart-backend/pkg/logger"
	"github.com/ikkim/quickcart-backend/pkg/payment/razorpay"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidOrderItems    = errors.New("order must contain at least one item with a positive quantity")
	ErrInvalidPaymentMode   = errors.New("invalid payment mode")
	ErrInvalidOrderStatus   = errors.New("invalid order status")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrMissingCustomerField = errors.New("missing customer field")
)

type OrderItemInput struct {
	ProductID string
	Quantity  int
}

// PlaceOrderInput is a checkout submission. Payment is set when the shopper
// already completed a gateway payment for this order.
type PlaceOrderInput struct {
	UserID      *string
	Name        string
	Email       string
	Address     string
	City        string
	PostalCode  string
	Phone       string
	PaymentMode model.PaymentMode
	Payment     *razorpay.PaymentResponse
	Items       []OrderItemInput
}

// OrderEventPublisher receives order lifecycle events
type OrderEventPublisher interface {
	PublishOrderEvent(event websocket.OrderEvent)
}

type OrderService interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*model.Order, error)
	GetOrderByID(id string) (*model.Order, error)
	GetOrdersByEmail(email string) ([]model.Order, error)
	ListOrders(filter repository.OrderFilter) ([]model.Order, error)
	UpdateOrderStatus(id string, status model.OrderStatus) (*model.Order, error)
	UpdatePaymentStatus(id string, status model.PaymentStatus) (*model.Order, error)
}

type orderService struct {
	orderRepo repository.OrderRepository
	payments  PaymentVerifier
	events    OrderEventPublisher
	db        *gorm.DB
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	payments PaymentVerifier,
	events OrderEventPublisher,
	db *gorm.DB,
) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		payments:  payments,
		events:    events,
		db:        db,
	}
}

func (in *PlaceOrderInput) normalize() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"name", &in.Name},
		{"email", &in.Email},
		{"address", &in.Address},
		{"city", &in.City},
		{"postalCode", &in.PostalCode},
		{"phone", &in.Phone},
	}
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingCustomerField, f.name)
		}
	}
	in.Email = normalizeEmail(in.Email)

	if in.PaymentMode == "" {
		in.PaymentMode = model.PaymentModeCOD
	}
	if in.PaymentMode != model.PaymentModeCOD && in.PaymentMode != model.PaymentModeOnline {
		return ErrInvalidPaymentMode
	}
	return nil
}

// mergeItems folds repeated products into one line and rejects non-positive quantities.
func mergeItems(items []OrderItemInput) ([]OrderItemInput, error) {
	if len(items) == 0 {
		return nil, ErrInvalidOrderItems
	}
	merged := make([]OrderItemInput, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ProductID)
		if id == "" || item.Quantity <= 0 {
			return nil, ErrInvalidOrderItems
		}
		if i, ok := index[id]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, OrderItemInput{ProductID: id, Quantity: item.Quantity})
	}
	return merged, nil
}

// toMinorUnits converts an order total to the gateway's integer amount.
func toMinorUnits(total decimal.Decimal) int64 {
	return total.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// matchPayment checks that p pays for a gateway order opened by this server,
// for exactly total, and that no other order was settled with it.
func matchPayment(tx *gorm.DB, p razorpay.PaymentResponse, total decimal.Decimal) error {
	opened, err := repository.NewGatewayOrderRepository(tx).FindByID(p.OrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownGatewayOrder, p.OrderID)
	}
	if err != nil {
		return err
	}
	if due := toMinorUnits(total); due != opened.Amount {
		return fmt.Errorf("%w: paid %d, order total %d", ErrPaymentAmountMismatch, opened.Amount, due)
	}

	var used int64
	err = tx.Unscoped().Model(&model.Order{}).
		Where("gateway_order_id = ? OR gateway_payment_id = ?", p.OrderID, p.PaymentID).
		Count(&used).Error
	if err != nil {
		return err
	}
	if used > 0 {
		return ErrPaymentAlreadyUsed
	}
	return nil
}

// isDuplicateKey reports a unique index violation on postgres or sqlite.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

func (s *orderService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*model.Order, error) {
	if err := input.normalize(); err != nil {
		logger.Warn("Order rejected: invalid customer details", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}
	items, err := mergeItems(input.Items)
	if err != nil {
		logger.Warn("Order rejected: invalid items", map[string]interface{}{
			"email":      input.Email,
			"item_count": len(input.Items),
		})
		return nil, err
	}

	logger.Info("Placing order", map[string]interface{}{
		"email":        input.Email,
		"payment_mode": input.PaymentMode,
		"item_count":   len(items),
	})

	status := model.OrderStatusPending
	paymentStatus := model.PaymentStatusUnpaid
	if input.Payment != nil {
		if s.payments == nil {
			return nil, ErrPaymentGatewayUnavailable
		}
		if err := s.payments.VerifyPayment(*input.Payment); err != nil {
			return nil, err
		}
		status = model.OrderStatusConfirmed
		paymentStatus = model.PaymentStatusPaid
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic during order placement, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"email": input.Email,
			})
		}
	}()

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	var products []model.Product
	if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
		tx.Rollback()
		logger.Error("Failed to load order products", err, map[string]interface{}{
			"email": input.Email,
		})
		return nil, err
	}
	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	total := decimal.Zero
	orderItems := make([]model.OrderItem, 0, len(items))
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			tx.Rollback()
			logger.Warn("Order rejected: product not found", map[string]interface{}{
				"email":      input.Email,
				"product_id": item.ProductID,
			})
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID)
		}

		price := product.EffectivePrice()
		total = total.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(item.Quantity))))
		orderItems = append(orderItems, model.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     price,
			Quantity:  item.Quantity,
		})
	}

	order := &model.Order{
		UserID:        input.UserID,
		Name:          input.Name,
		Email:         input.Email,
		Address:       input.Address,
		City:          input.City,
		PostalCode:    input.PostalCode,
		Phone:         input.Phone,
		PaymentMode:   input.PaymentMode,
		TotalAmount:   total.Round(2).InexactFloat64(),
		Status:        status,
		PaymentStatus: paymentStatus,
		OrderItems:    orderItems,
	}
	if input.Payment != nil {
		if err := matchPayment(tx, *input.Payment, total); err != nil {
			tx.Rollback()
			logger.Warn("Order rejected: payment does not settle this order", map[string]interface{}{
				"email":            input.Email,
				"gateway_order_id": input.Payment.OrderID,
				"payment_id":       input.Payment.PaymentID,
				"error":            err.Error(),
			})
			return nil, err
		}
		gatewayOrderID, paymentID := input.Payment.OrderID, input.Payment.PaymentID
		order.GatewayOrderID = &gatewayOrderID
		order.GatewayPaymentID = &paymentID
	}

	if err := tx.Create(order).Error; err != nil {
		tx.Rollback()
		if input.Payment != nil && isDuplicateKey(err) {
			logger.Warn("Order rejected: payment already used", map[string]interface{}{
				"email":      input.Email,
				"payment_id": input.Payment.PaymentID,
			})
			return nil, ErrPaymentAlreadyUsed
		}
		logger.Error("Failed to create order", err, map[string]interface{}{
			"email": input.Email,
		})
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		logger.Error("Failed to commit order transaction", err, map[string]interface{}{
			"email": input.Email,
		})
		return nil, err
	}

	logger.Info("Order placed", map[string]interface{}{
		"order_id":       order.ID,
		"email":          order.Email,
		"total_amount":   order.TotalAmount,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
	})

	s.publish(websocket.EventOrderCreated, order)
	return order, nil
}

func (s *orderService) publish(eventType websocket.EventType, order *model.Order) {
	if s.events == nil {
		return
	}
	s.events.PublishOrderEvent(websocket.OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		Email:         order.Email,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalAmount:   order.TotalAmount,
	})
}

func (s *orderService) GetOrderByID(id string) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *orderService) GetOrdersByEmail(email string) ([]model.Order, error) {
	return s.orderRepo.FindByEmail(normalizeEmail(email))
}

func (s *orderService) ListOrders(filter repository.OrderFilter) ([]model.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidOrderStatus
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		return nil, ErrInvalidPaymentStatus
	}
	return s.orderRepo.FindAll(filter)
}

func (s *orderService) UpdateOrderStatus(id string, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		logger.Warn("Rejected invalid order status", map[string]interface{}{
			"order_id": id,
			"status":   status,
		})
		return nil, ErrInvalidOrderStatus
	}

	if err := s.orderRepo.UpdateStatus(id, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	order, err := s.GetOrderByID(id)
	if err != nil {
		return nil, err
	}
	logger.Info("Order status updated", map[string]interface{}{
		"order_id": id,
		"status":   status,
	})
	s.publish(websocket.EventOrderStatusChanged, order)
	return order, nil
}

func (s *orderService) UpdatePaymentStatus(id string, status model.PaymentStatus) (*model.Order, error) {
	if !status.Valid() {
		logger.Warn("Rejected invalid payment status", map[string]interface{}{
			"order_id": id,
			"status":   status,
		})
		return nil, ErrInvalidPaymentStatus
	}

	if err := s.orderRepo.UpdatePaymentStatus(id, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	order, err := s.GetOrderByID(id)
	if err != nil {
		return nil, err
	}
	logger.Info("Order payment status updated", map[string]interface{}{
		"order_id":       id,
		"payment_status": status,
	})
	s.publish(websocket.EventOrderPaymentStatusChanged, order)
	return order, nil
}
