package repository

import (
	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/pkg/logger"
	"gorm.io/gorm"
)

type OrderFilter struct {
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
}

// SalesRow is one product's total ordered quantity
type SalesRow struct {
	ProductID    string
	SoldQuantity int64
}

type OrderRepository interface {
	Create(order *model.Order) error
	FindByID(id string) (*model.Order, error)
	FindByEmail(email string) ([]model.Order, error)
	FindAll(filter OrderFilter) ([]model.Order, error)
	UpdateStatus(id string, status model.OrderStatus) error
	UpdatePaymentStatus(id string, status model.PaymentStatus) error
	MostSold(limit int) ([]SalesRow, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) preloadOrder() *gorm.DB {
	return r.db.Preload("OrderItems", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_items.id ASC")
	})
}

func (r *orderRepository) Create(order *model.Order) error {
	logger.Debug("Creating order in database", map[string]interface{}{
		"email":        order.Email,
		"total_amount": order.TotalAmount,
		"payment_mode": order.PaymentMode,
	})

	if err := r.db.Create(order).Error; err != nil {
		logger.Error("Failed to create order in database", err, map[string]interface{}{
			"email":        order.Email,
			"total_amount": order.TotalAmount,
		})
		return err
	}

	logger.Debug("Order created in database", map[string]interface{}{
		"order_id":     order.ID,
		"total_amount": order.TotalAmount,
		"item_count":   len(order.OrderItems),
	})
	return nil
}

func (r *orderRepository) FindByID(id string) (*model.Order, error) {
	logger.Debug("Finding order by ID in database", map[string]interface{}{
		"order_id": id,
	})

	var order model.Order
	if err := r.preloadOrder().Where("id = ?", id).First(&order).Error; err != nil {
		logger.Error("Failed to find order by ID in database", err, map[string]interface{}{
			"order_id": id,
		})
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByEmail(email string) ([]model.Order, error) {
	logger.Debug("Finding orders by email in database", map[string]interface{}{
		"email": email,
	})

	var orders []model.Order
	if err := r.preloadOrder().Where("email = ?", email).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders by email in database", err, map[string]interface{}{
			"email": email,
		})
		return nil, err
	}

	logger.Debug("Orders found by email in database", map[string]interface{}{
		"email": email,
		"count": len(orders),
	})
	return orders, nil
}

func (r *orderRepository) FindAll(filter OrderFilter) ([]model.Order, error) {
	query := r.preloadOrder().Order("created_at DESC")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}

	var orders []model.Order
	if err := query.Find(&orders).Error; err != nil {
		logger.Error("Failed to list orders in database", err, map[string]interface{}{
			"status":         filter.Status,
			"payment_status": filter.PaymentStatus,
		})
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(id string, status model.OrderStatus) error {
	logger.Debug("Updating order status in database", map[string]interface{}{
		"order_id": id,
		"status":   status,
	})

	result := r.db.Model(&model.Order{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		logger.Error("Failed to update order status in database", result.Error, map[string]interface{}{
			"order_id": id,
			"status":   status,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *orderRepository) UpdatePaymentStatus(id string, status model.PaymentStatus) error {
	logger.Debug("Updating order payment status in database", map[string]interface{}{
		"order_id":       id,
		"payment_status": status,
	})

	result := r.db.Model(&model.Order{}).Where("id = ?", id).Update("payment_status", status)
	if result.Error != nil {
		logger.Error("Failed to update order payment status in database", result.Error, map[string]interface{}{
			"order_id":       id,
			"payment_status": status,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MostSold ranks products by the quantity ordered across all live orders
func (r *orderRepository) MostSold(limit int) ([]SalesRow, error) {
	var rows []SalesRow
	query := r.db.Table("order_items").
		Select("order_items.product_id AS product_id, SUM(order_items.quantity) AS sold_quantity").
		Joins("JOIN orders ON orders.id = order_items.order_id AND orders.deleted_at IS NULL").
		Group("order_items.product_id").
		Order("sold_quantity DESC, order_items.product_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&rows).Error; err != nil {
		logger.Error("Failed to aggregate most sold products", err, map[string]interface{}{
			"limit": limit,
		})
		return nil, err
	}
	return rows, nil
}
