package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Parent types an Item can hang off.
const (
	ParentCart     = "cart"
	ParentOrder    = "order"
	ParentWishlist = "wishlist"
)

func ValidParentType(parentType string) bool {
	switch parentType {
	case ParentCart, ParentOrder, ParentWishlist:
		return true
	}
	return false
}

// Item is a line item of a cart, an order or a wishlist. There is at most one
// Item per (parent, product); UnitPrice is frozen only on order items.
type Item struct {
	ID         uint                `gorm:"primaryKey" json:"id"`
	ParentID   uint                `gorm:"not null;uniqueIndex:idx_items_parent_product,priority:2" json:"parentId"`
	ParentType string              `gorm:"size:16;not null;uniqueIndex:idx_items_parent_product,priority:1" json:"parentType"`
	ProductID  uint                `gorm:"not null;uniqueIndex:idx_items_parent_product,priority:3" json:"productId"`
	Product    *Product            `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity   int                 `gorm:"not null;check:chk_items_quantity,quantity >= 1" json:"quantity"`
	UnitPrice  decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"unitPrice"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// LineTotal is UnitPrice × Quantity for order items, and Product.Price × Quantity otherwise.
func (i Item) LineTotal() decimal.Decimal {
	qty := decimal.NewFromInt(int64(i.Quantity))
	if i.UnitPrice.Valid {
		return i.UnitPrice.Decimal.Mul(qty)
	}
	if i.Product != nil {
		return i.Product.Price.Mul(qty)
	}
	return decimal.Zero
}
