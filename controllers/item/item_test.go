package itemControllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/catalog"
	"github.com/Sammyalade/Jumia-backend/database/databasetest"
	"github.com/Sammyalade/Jumia-backend/middleware"
	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newLedger(t *testing.T) (*Ledger, databasetest.Fixture, models.Cart) {
	t.Helper()
	db := databasetest.Open(t)
	f := databasetest.Seed(t, db, "ledger@example.com", "19.99", "5.00")
	cart := models.Cart{BuyerID: f.Buyer.ID}
	require.NoError(t, db.Create(&cart).Error)
	return NewLedger(db, catalog.NewStore(db, nil, 0)), f, cart
}

func TestAddAccumulatesExistingLine(t *testing.T) {
	l, f, cart := newLedger(t)
	ctx := context.Background()
	productID := f.Products[0].ID

	_, err := l.Add(ctx, cart.ID, models.ParentCart, productID, 2)
	require.NoError(t, err)
	item, err := l.Add(ctx, cart.ID, models.ParentCart, productID, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)

	items, err := l.List(ctx, cart.ID, models.ParentCart)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	require.NotNil(t, items[0].Product)
	assert.Equal(t, "Product 1", items[0].Product.Title)
}

func TestAddQuantitiesSum(t *testing.T) {
	l, f, _ := newLedger(t)
	productID := f.Products[1].ID
	parent := uint(1000)

	rapid.Check(t, func(rt *rapid.T) {
		parent++
		quantities := rapid.SliceOfN(rapid.IntRange(1, 50), 1, 6).Draw(rt, "quantities")

		want := 0
		for _, q := range quantities {
			_, err := l.Add(context.Background(), parent, models.ParentWishlist, productID, q)
			if err != nil {
				rt.Fatalf("add %d: %v", q, err)
			}
			want += q
		}

		items, err := l.List(context.Background(), parent, models.ParentWishlist)
		if err != nil {
			rt.Fatal(err)
		}
		if len(items) != 1 || items[0].Quantity != want {
			rt.Fatalf("want one line with quantity %d, got %+v", want, items)
		}
	})
}

func TestLedgerValidation(t *testing.T) {
	l, f, cart := newLedger(t)
	ctx := context.Background()

	_, err := l.Add(ctx, cart.ID, "basket", f.Products[0].ID, 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = l.Add(ctx, cart.ID, models.ParentCart, f.Products[0].ID, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = l.Add(ctx, cart.ID, models.ParentCart, 9999, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = l.Add(ctx, 1, models.ParentOrder, f.Products[0].ID, 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = l.UpdateQuantity(ctx, cart.ID, models.ParentCart, f.Products[0].ID, 2)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, l.Remove(ctx, 1, models.ParentOrder, f.Products[0].ID), apperr.ErrValidation)
}

func TestUpdateAndRemove(t *testing.T) {
	l, f, cart := newLedger(t)
	ctx := context.Background()
	productID := f.Products[0].ID

	_, err := l.Add(ctx, cart.ID, models.ParentCart, productID, 1)
	require.NoError(t, err)

	item, err := l.UpdateQuantity(ctx, cart.ID, models.ParentCart, productID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, item.Quantity)

	_, err = l.UpdateQuantity(ctx, cart.ID, models.ParentCart, productID, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, l.Remove(ctx, cart.ID, models.ParentCart, productID))
	require.NoError(t, l.Remove(ctx, cart.ID, models.ParentCart, productID))

	items, err := l.List(ctx, cart.ID, models.ParentCart)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}

func TestCopyTxFreezesPrices(t *testing.T) {
	l, f, cart := newLedger(t)
	ctx := context.Background()

	_, err := l.Add(ctx, cart.ID, models.ParentCart, f.Products[0].ID, 2)
	require.NoError(t, err)
	src, err := l.List(ctx, cart.ID, models.ParentCart)
	require.NoError(t, err)

	prices := map[uint]decimal.Decimal{f.Products[0].ID: decimal.RequireFromString("19.99")}
	copies, err := CopyTx(l.db, src, 77, models.ParentOrder, prices)
	require.NoError(t, err)
	require.Len(t, copies, 1)
	assert.True(t, copies[0].UnitPrice.Valid)
	assert.Equal(t, "39.98", copies[0].LineTotal().StringFixed(2))

	_, err = CopyTx(l.db, src, 78, models.ParentOrder, map[uint]decimal.Decimal{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	n, err := ClearTx(l.db, cart.ID, models.ParentCart)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestHandlersCheckOwnership(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, f, cart := newLedger(t)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextBuyerID, f.Buyer.ID); c.Next() })
	r.POST("/item/add", AddItemHandler(l))
	r.GET("/item/items", ListItemsHandler(l))

	post := func(parentID uint) *httptest.ResponseRecorder {
		body, _ := json.Marshal(ItemInput{ParentID: parentID, ParentType: models.ParentCart, ProductID: f.Products[0].ID, Quantity: 2})
		req := httptest.NewRequest(http.MethodPost, "/item/add", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, post(cart.ID).Code)
	assert.Equal(t, http.StatusNotFound, post(cart.ID+100).Code)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/item/items?parentId=%d&parentType=cart", cart.ID), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var items []models.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	req = httptest.NewRequest(http.MethodGet, "/item/items?parentId=x&parentType=cart", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
