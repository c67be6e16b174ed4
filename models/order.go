package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"   // placed, awaiting payment
	OrderStatusPaid      OrderStatus = "paid"      // settled by the payment provider
	OrderStatusCancelled OrderStatus = "cancelled" // cancelled before payment
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled, OrderStatusShipped, OrderStatusDelivered:
		return st, nil
	default:
		return "", fmt.Errorf("invalid order status %q", s)
	}
}

type Order struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Reference   string          `gorm:"size:64;uniqueIndex;not null" json:"reference"`
	BuyerID     uint            `gorm:"index;not null" json:"buyerId"`
	AddressID   uint            `gorm:"not null" json:"addressId"`
	Address     *Address        `gorm:"foreignKey:AddressID" json:"address,omitempty"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"totalAmount"`
	Status      OrderStatus     `gorm:"size:20;not null;default:'pending'" json:"status"`
	Items       []Item          `gorm:"polymorphic:Parent;polymorphicValue:order" json:"items"`
	Payment     *Payment        `gorm:"foreignKey:OrderID" json:"payment,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
