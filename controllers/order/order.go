package orderControllers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	cartControllers "github.com/Sammyalade/Jumia-backend/controllers/cart"
	itemControllers "github.com/Sammyalade/Jumia-backend/controllers/item"
	paymentControllers "github.com/Sammyalade/Jumia-backend/controllers/payment"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/Sammyalade/Jumia-backend/outbox"
	"github.com/Sammyalade/Jumia-backend/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("github.com/Sammyalade/Jumia-backend/controllers/order")

// Workflow owns order creation and the order status lifecycle.
type Workflow struct {
	db         *gorm.DB
	reconciler *paymentControllers.Reconciler
	hub        *Hub
	metrics    *telemetry.Metrics
}

// NewWorkflow wires the workflow; hub and metrics may be nil.
func NewWorkflow(db *gorm.DB, reconciler *paymentControllers.Reconciler, hub *Hub, metrics *telemetry.Metrics) *Workflow {
	return &Workflow{db: db, reconciler: reconciler, hub: hub, metrics: metrics}
}

type PlaceOrderResult struct {
	Order       *models.Order `json:"order"`
	ApprovalURL string        `json:"approvalUrl,omitempty"`
}

// Generate unique order reference
func generateOrderRef() string {
	// Example: 20250908130500-<uuid4>
	return time.Now().Format("20060102150405") + "-" + uuid.NewString()
}

func orderKey(orderID uint) string {
	return strconv.FormatUint(uint64(orderID), 10)
}

func (w *Workflow) notify(order models.Order) {
	if w.hub != nil {
		w.hub.OrderChanged(order)
	}
}

// PlaceOrder turns the buyer's cart into a pending order and opens a provider
// payment for it. Everything up to the provider call commits atomically; if
// the provider then fails, the committed order is returned with a
// PaymentGatewayError so the caller can retry payment for it.
func (w *Workflow) PlaceOrder(ctx context.Context, buyerID, addressID uint) (res *PlaceOrderResult, err error) {
	ctx, span := tracer.Start(ctx, "order.place", trace.WithAttributes(attribute.Int64("buyer.id", int64(buyerID))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var order models.Order
	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// concurrent checkouts of one buyer queue here
		var cart models.Cart
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("buyer_id = ?", buyerID).First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.ErrEmptyCart, "cart is empty")
			}
			return err
		}

		var items []models.Item
		if err := tx.Where("parent_type = ? AND parent_id = ?", models.ParentCart, cart.ID).
			Order("id").Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return apperr.New(apperr.ErrEmptyCart, "cart is empty")
		}

		var address models.Address
		err := tx.Where("id = ? AND user_id = (?)", addressID,
			tx.Model(&models.Buyer{}).Select("user_id").Where("id = ?", buyerID)).
			First(&address).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.ErrInvalidAddress, "address does not belong to buyer")
		}
		if err != nil {
			return err
		}

		ids := make([]uint, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ProductID)
		}
		var products []models.Product
		if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
			return err
		}
		prices := make(map[uint]decimal.Decimal, len(products))
		for _, p := range products {
			prices[p.ID] = p.Price
		}

		total := decimal.Zero
		for _, it := range items {
			price, ok := prices[it.ProductID]
			if !ok {
				return apperr.NotFound(fmt.Sprintf("product %d not found", it.ProductID))
			}
			total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}

		order = models.Order{
			Reference:   generateOrderRef(),
			BuyerID:     buyerID,
			AddressID:   address.ID,
			TotalAmount: total,
			Status:      models.OrderStatusPending,
		}
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		copies, err := itemControllers.CopyTx(tx, items, order.ID, models.ParentOrder, prices)
		if err != nil {
			return err
		}
		order.Items = copies

		if err := cartControllers.ClearTx(tx, cart.ID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if _, err := paymentControllers.CreateIntentTx(tx, order.ID, total); err != nil {
			return err
		}
		return outbox.Insert(tx, outbox.TopicOrders, orderKey(order.ID), outbox.EventOrderCreated, map[string]any{
			"order_id":  order.ID,
			"buyer_id":  buyerID,
			"reference": order.Reference,
			"total":     total.StringFixed(2),
			"items":     len(copies),
		})
	})
	if err != nil {
		return nil, err
	}

	w.metrics.ObserveOrderPlaced()
	w.notify(order)
	slog.InfoContext(ctx, "order placed",
		"order_id", order.ID, "buyer_id", buyerID, "total", order.TotalAmount.StringFixed(2))

	res = &PlaceOrderResult{Order: &order}
	pay, err := w.reconciler.CreatePayment(ctx, order.ID, order.TotalAmount)
	if err != nil {
		return res, err
	}
	order.Payment = pay.Payment
	res.ApprovalURL = pay.ApprovalURL
	return res, nil
}

func lockOrder(tx *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus moves an order along the fulfilment path. Orders become paid
// only through payment settlement.
func (w *Workflow) UpdateStatus(ctx context.Context, orderID uint, status string) (*models.Order, error) {
	next, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, apperr.Validation("invalid order status")
	}
	switch next {
	case models.OrderStatusPaid:
		return nil, apperr.Validation("orders are marked paid by payment settlement only")
	case models.OrderStatusCancelled:
		return w.Cancel(ctx, orderID)
	}

	var order *models.Order
	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = lockOrder(tx, orderID); err != nil {
			return err
		}
		from := order.Status
		if err := checkTransition(from, next); err != nil {
			return err
		}
		if err := tx.Model(order).Update("status", next).Error; err != nil {
			return err
		}
		order.Status = next
		return outbox.Insert(tx, outbox.TopicOrders, orderKey(order.ID), outbox.EventOrderStatusChanged, map[string]any{
			"order_id": order.ID,
			"from":     from,
			"to":       next,
		})
	})
	if err != nil {
		return nil, err
	}

	w.notify(*order)
	return w.ViewByID(ctx, orderID)
}

// Cancel cancels a pending order and abandons its payment intent. Cancelling
// an already cancelled order changes nothing.
func (w *Workflow) Cancel(ctx context.Context, orderID uint) (*models.Order, error) {
	changed := false
	var order *models.Order
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = lockOrder(tx, orderID); err != nil {
			return err
		}
		if order.Status == models.OrderStatusCancelled {
			return nil
		}
		from := order.Status
		if err := checkTransition(from, models.OrderStatusCancelled); err != nil {
			return err
		}
		if err := tx.Model(order).Update("status", models.OrderStatusCancelled).Error; err != nil {
			return err
		}
		order.Status = models.OrderStatusCancelled
		if err := paymentControllers.AbandonIntentTx(tx, order.ID); err != nil {
			return err
		}
		changed = true
		return outbox.Insert(tx, outbox.TopicOrders, orderKey(order.ID), outbox.EventOrderCancelled, map[string]any{
			"order_id": order.ID,
			"from":     from,
		})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		w.notify(*order)
		slog.InfoContext(ctx, "order cancelled", "order_id", order.ID)
	}
	return w.ViewByID(ctx, orderID)
}

func preloadOrder(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("items.id") }).
		Preload("Items.Product").
		Preload("Address").
		Preload("Payment")
}

// View lists the buyer's orders, newest first.
func (w *Workflow) View(ctx context.Context, buyerID uint) ([]models.Order, error) {
	orders := []models.Order{}
	err := preloadOrder(w.db.WithContext(ctx)).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	return orders, err
}

func (w *Workflow) ViewByID(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := preloadOrder(w.db.WithContext(ctx)).First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// RetryPayment re-opens the provider payment of a pending order.
func (w *Workflow) RetryPayment(ctx context.Context, orderID uint) (*PlaceOrderResult, error) {
	pay, err := w.reconciler.RetryPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order, err := w.ViewByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &PlaceOrderResult{Order: order, ApprovalURL: pay.ApprovalURL}, nil
}
