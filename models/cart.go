package models

import "time"

type Cart struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BuyerID   uint      `gorm:"uniqueIndex;not null" json:"buyerId"` // one cart per buyer
	Items     []Item    `gorm:"polymorphic:Parent;polymorphicValue:cart" json:"items"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Wishlist struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BuyerID   uint      `gorm:"uniqueIndex;not null" json:"buyerId"`
	Items     []Item    `gorm:"polymorphic:Parent;polymorphicValue:wishlist" json:"items"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
