package cartControllers

import (
	"context"
	"errors"

	itemControllers "github.com/Sammyalade/Jumia-backend/controllers/item"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/catalog"
	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service is the per-buyer cart aggregate.
type Service struct {
	db      *gorm.DB
	catalog catalog.Store
}

func NewService(db *gorm.DB, store catalog.Store) *Service {
	return &Service{db: db, catalog: store}
}

// CartView is the cart as shown to the buyer. Empty is set instead of
// failing when there is nothing in the cart.
type CartView struct {
	CartID uint            `json:"cartId"`
	Items  []models.Item   `json:"items"`
	Empty  bool            `json:"empty"`
	Total  decimal.Decimal `json:"total"`
}

func (s *Service) ensureCart(ctx context.Context, buyerID uint) (*models.Cart, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Buyer{}).Where("id = ?", buyerID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperr.NotFound("buyer not found")
	}

	cart := models.Cart{BuyerID: buyerID}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "buyer_id"}}, DoNothing: true}).
		Create(&cart).Error
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Where("buyer_id = ?", buyerID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetOrCreate returns the buyer's cart with items and products, creating an
// empty one on first use.
func (s *Service) GetOrCreate(ctx context.Context, buyerID uint) (*models.Cart, error) {
	cart, err := s.ensureCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("items.id") }).
		Preload("Items.Product").
		First(cart, cart.ID).Error
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem adds quantity of the product, accumulating onto an existing line.
func (s *Service) AddItem(ctx context.Context, buyerID, productID uint, quantity int) (*models.Item, error) {
	if quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}
	if _, err := s.catalog.Product(ctx, productID); err != nil {
		return nil, err
	}
	cart, err := s.ensureCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return itemControllers.UpsertTx(s.db.WithContext(ctx), cart.ID, models.ParentCart, productID, quantity)
}

func (s *Service) findCart(ctx context.Context, buyerID uint) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.WithContext(ctx).Where("buyer_id = ?", buyerID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// RemoveItem drops the product's line; absent lines and carts are ignored.
func (s *Service) RemoveItem(ctx context.Context, buyerID, productID uint) error {
	cart, err := s.findCart(ctx, buyerID)
	if err != nil || cart == nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where("parent_type = ? AND parent_id = ? AND product_id = ?", models.ParentCart, cart.ID, productID).
		Delete(&models.Item{}).Error
}

// Clear empties the buyer's cart.
func (s *Service) Clear(ctx context.Context, buyerID uint) error {
	cart, err := s.findCart(ctx, buyerID)
	if err != nil || cart == nil {
		return err
	}
	return ClearTx(s.db.WithContext(ctx), cart.ID)
}

// ClearTx empties a cart inside the caller's transaction.
func ClearTx(tx *gorm.DB, cartID uint) error {
	_, err := itemControllers.ClearTx(tx, cartID, models.ParentCart)
	return err
}

func (s *Service) View(ctx context.Context, buyerID uint) (*CartView, error) {
	cart, err := s.GetOrCreate(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, it := range cart.Items {
		total = total.Add(it.LineTotal())
	}
	items := cart.Items
	if items == nil {
		items = []models.Item{}
	}
	return &CartView{
		CartID: cart.ID,
		Items:  items,
		Empty:  len(items) == 0,
		Total:  total,
	}, nil
}
