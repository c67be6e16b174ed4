package itemControllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/catalog"
	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger owns line items for every parent type and their quantity arithmetic.
type Ledger struct {
	db      *gorm.DB
	catalog catalog.Store
}

func NewLedger(db *gorm.DB, store catalog.Store) *Ledger {
	return &Ledger{db: db, catalog: store}
}

func validateParentType(parentType string) error {
	if !models.ValidParentType(parentType) {
		return apperr.Validation("invalid parent type, must be 'cart', 'order', or 'wishlist'")
	}
	return nil
}

// validateMutable rejects writes to order items, which are frozen at checkout.
func validateMutable(parentType string) error {
	if err := validateParentType(parentType); err != nil {
		return err
	}
	if parentType == models.ParentOrder {
		return apperr.Validation("order items cannot be changed after checkout")
	}
	return nil
}

// Add inserts the product under the parent or, if it is already there, adds
// quantity to the existing line.
func (l *Ledger) Add(ctx context.Context, parentID uint, parentType string, productID uint, quantity int) (*models.Item, error) {
	if err := validateMutable(parentType); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}
	if _, err := l.catalog.Product(ctx, productID); err != nil {
		return nil, err
	}
	return UpsertTx(l.db.WithContext(ctx), parentID, parentType, productID, quantity)
}

// UpsertTx is the accumulate-or-insert statement shared by the cart and the ledger.
func UpsertTx(tx *gorm.DB, parentID uint, parentType string, productID uint, quantity int) (*models.Item, error) {
	item := models.Item{
		ParentID:   parentID,
		ParentType: parentType,
		ProductID:  productID,
		Quantity:   quantity,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "parent_type"}, {Name: "parent_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("items.quantity + excluded.quantity"),
			"updated_at": time.Now(),
		}),
	}).Create(&item).Error
	if err != nil {
		return nil, fmt.Errorf("upsert item: %w", err)
	}

	var stored models.Item
	if err := tx.Where("parent_type = ? AND parent_id = ? AND product_id = ?", parentType, parentID, productID).
		First(&stored).Error; err != nil {
		return nil, fmt.Errorf("reload item: %w", err)
	}
	return &stored, nil
}

// UpdateQuantity overwrites the quantity of an existing line.
func (l *Ledger) UpdateQuantity(ctx context.Context, parentID uint, parentType string, productID uint, quantity int) (*models.Item, error) {
	if err := validateMutable(parentType); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}

	var item models.Item
	err := l.db.WithContext(ctx).
		Where("parent_type = ? AND parent_id = ? AND product_id = ?", parentType, parentID, productID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("item not found")
	}
	if err != nil {
		return nil, err
	}

	item.Quantity = quantity
	if err := l.db.WithContext(ctx).Model(&item).Update("quantity", quantity).Error; err != nil {
		return nil, fmt.Errorf("update item quantity: %w", err)
	}
	return &item, nil
}

// Remove deletes the product's line under the parent; a missing line is not an error.
func (l *Ledger) Remove(ctx context.Context, parentID uint, parentType string, productID uint) error {
	if err := validateMutable(parentType); err != nil {
		return err
	}
	return l.db.WithContext(ctx).
		Where("parent_type = ? AND parent_id = ? AND product_id = ?", parentType, parentID, productID).
		Delete(&models.Item{}).Error
}

// List returns the parent's items with their products, oldest first.
func (l *Ledger) List(ctx context.Context, parentID uint, parentType string) ([]models.Item, error) {
	if err := validateParentType(parentType); err != nil {
		return nil, err
	}
	items := []models.Item{}
	err := l.db.WithContext(ctx).
		Preload("Product").
		Where("parent_type = ? AND parent_id = ?", parentType, parentID).
		Order("id").
		Find(&items).Error
	return items, err
}

// Owns reports whether the parent row belongs to the buyer.
func (l *Ledger) Owns(ctx context.Context, buyerID, parentID uint, parentType string) (bool, error) {
	if err := validateParentType(parentType); err != nil {
		return false, err
	}
	var model interface{}
	switch parentType {
	case models.ParentCart:
		model = &models.Cart{}
	case models.ParentWishlist:
		model = &models.Wishlist{}
	case models.ParentOrder:
		model = &models.Order{}
	}
	var count int64
	err := l.db.WithContext(ctx).Model(model).
		Where("id = ? AND buyer_id = ?", parentID, buyerID).
		Count(&count).Error
	return count > 0, err
}

// ClearTx deletes every item under the parent.
func ClearTx(tx *gorm.DB, parentID uint, parentType string) (int64, error) {
	res := tx.Where("parent_type = ? AND parent_id = ?", parentType, parentID).Delete(&models.Item{})
	return res.RowsAffected, res.Error
}

// CopyTx copies items under a new parent, freezing each line at the given
// unit price. The source items are left untouched.
func CopyTx(tx *gorm.DB, items []models.Item, parentID uint, parentType string, prices map[uint]decimal.Decimal) ([]models.Item, error) {
	copies := make([]models.Item, 0, len(items))
	for _, it := range items {
		price, ok := prices[it.ProductID]
		if !ok {
			return nil, apperr.NotFound(fmt.Sprintf("product %d not found", it.ProductID))
		}
		copies = append(copies, models.Item{
			ParentID:   parentID,
			ParentType: parentType,
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			UnitPrice:  decimal.NewNullDecimal(price),
		})
	}
	if len(copies) == 0 {
		return copies, nil
	}
	if err := tx.Omit(clause.Associations).Create(&copies).Error; err != nil {
		return nil, fmt.Errorf("copy items: %w", err)
	}
	return copies, nil
}
