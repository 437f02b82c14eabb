package repository

import (
	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/pkg/logger"
	"gorm.io/gorm"
)

type GatewayOrderRepository interface {
	Create(order *model.GatewayOrder) error
	FindByID(id string) (*model.GatewayOrder, error)
}

type gatewayOrderRepository struct {
	db *gorm.DB
}

// NewGatewayOrderRepository works on db or on an open transaction.
func NewGatewayOrderRepository(db *gorm.DB) GatewayOrderRepository {
	return &gatewayOrderRepository{db: db}
}

func (r *gatewayOrderRepository) Create(order *model.GatewayOrder) error {
	if err := r.db.Create(order).Error; err != nil {
		logger.Error("Failed to record gateway order in database", err, map[string]interface{}{
			"gateway_order_id": order.ID,
			"amount":           order.Amount,
		})
		return err
	}
	return nil
}

func (r *gatewayOrderRepository) FindByID(id string) (*model.GatewayOrder, error) {
	var order model.GatewayOrder
	if err := r.db.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}
