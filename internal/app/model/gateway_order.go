package model

import "time"

// GatewayOrder is a payment order opened with the gateway. Amount is in
// minor currency units and is what the shopper is asked to pay.
type GatewayOrder struct {
	ID        string    `gorm:"type:varchar(64);primarykey" json:"id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Currency  string    `gorm:"type:varchar(3);not null" json:"currency"`
	Receipt   string    `gorm:"type:varchar(40)" json:"receipt"`
	CreatedAt time.Time `json:"createdAt"`
}

func (GatewayOrder) TableName() string {
	return "gateway_orders"
}
