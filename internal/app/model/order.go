package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string
type PaymentStatus string
type PaymentMode string

const (
	OrderStatusPending      OrderStatus = "pending"
	OrderStatusNotConfirmed OrderStatus = "not_confirmed"
	OrderStatusConfirmed    OrderStatus = "confirmed"
	OrderStatusAccepted     OrderStatus = "accepted"
	OrderStatusDelivered    OrderStatus = "delivered"

	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusFailed PaymentStatus = "failed"

	PaymentModeCOD    PaymentMode = "cod"
	PaymentModeOnline PaymentMode = "online"
)

var validOrderStatuses = map[OrderStatus]bool{
	OrderStatusPending:      true,
	OrderStatusNotConfirmed: true,
	OrderStatusConfirmed:    true,
	OrderStatusAccepted:     true,
	OrderStatusDelivered:    true,
}

var validPaymentStatuses = map[PaymentStatus]bool{
	PaymentStatusUnpaid: true,
	PaymentStatusPaid:   true,
	PaymentStatusFailed: true,
}

func (s OrderStatus) Valid() bool   { return validOrderStatuses[s] }
func (s PaymentStatus) Valid() bool { return validPaymentStatuses[s] }

type Order struct {
	ID               string         `gorm:"type:varchar(36);primarykey" json:"id"`
	UserID           *string        `gorm:"type:varchar(36);index" json:"userId,omitempty"`
	Name             string         `gorm:"not null" json:"name"`
	Email            string         `gorm:"not null;index" json:"email"`
	Address          string         `gorm:"type:text;not null" json:"address"`
	City             string         `gorm:"not null" json:"city"`
	PostalCode       string         `gorm:"not null" json:"postalCode"`
	Phone            string         `gorm:"not null" json:"phone"`
	PaymentMode      PaymentMode    `gorm:"type:varchar(20);default:'cod'" json:"paymentMode"`
	GatewayOrderID   *string        `gorm:"type:varchar(64);uniqueIndex" json:"gatewayOrderId,omitempty"`
	GatewayPaymentID *string        `gorm:"type:varchar(64);uniqueIndex" json:"gatewayPaymentId,omitempty"`
	TotalAmount      float64        `gorm:"not null" json:"totalAmount"`
	Status           OrderStatus    `gorm:"type:varchar(20);default:'pending'" json:"status"`
	PaymentStatus    PaymentStatus  `gorm:"type:varchar(20);default:'unpaid'" json:"paymentStatus"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	OrderItems []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// OrderItem snapshots the product name and unit price at purchase time.
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	OrderID   string    `gorm:"type:varchar(36);not null;index" json:"orderId"`
	ProductID string    `gorm:"type:varchar(36);not null;index" json:"productId"`
	Name      string    `gorm:"not null" json:"name"`
	Price     float64   `gorm:"not null" json:"price"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`

	Order Order `gorm:"foreignKey:OrderID" json:"-"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// ProductSales is a row of the most-sold ranking.
type ProductSales struct {
	Product      Product `json:"product"`
	SoldQuantity int64   `json:"soldQuantity"`
}
