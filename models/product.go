package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog entry checkout prices against. The core only reads it.
type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string          `gorm:"size:512;not null" json:"title"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Description string          `json:"description,omitempty"`
	Category    string          `gorm:"size:512" json:"category,omitempty"`
	Image       string          `json:"image,omitempty"`
	RatingRate  float64         `json:"ratingRate,omitempty"`
	RatingCount int             `json:"ratingCount,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
