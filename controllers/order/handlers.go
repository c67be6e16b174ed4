package orderControllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/middleware"
	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/gin-gonic/gin"
)

// -------- Request Structs --------
type PlaceOrderRequest struct {
	AddressID uint `json:"addressId" binding:"required"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func orderID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		apperr.Respond(c, apperr.Validation("invalid order id"))
		return 0, false
	}
	return uint(id), true
}

// ownedOrder loads the order in the path and answers 404 unless the caller owns it.
func ownedOrder(c *gin.Context, w *Workflow) (*models.Order, bool) {
	id, ok := orderID(c)
	if !ok {
		return nil, false
	}
	order, err := w.ViewByID(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, err)
		return nil, false
	}
	if order.BuyerID != middleware.BuyerID(c) {
		apperr.Respond(c, apperr.NotFound("order not found"))
		return nil, false
	}
	return order, true
}

// POST /order/placeOrder
func PlaceOrderHandler(w *Workflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Respond(c, apperr.Validation("Invalid input: "+err.Error()))
			return
		}

		res, err := w.PlaceOrder(c.Request.Context(), middleware.BuyerID(c), req.AddressID)
		if err != nil {
			if res != nil && errors.Is(err, apperr.ErrPaymentGateway) {
				// the order exists; the client retries payment for it
				body := apperr.Body(err)
				body["order"] = res.Order
				c.AbortWithStatusJSON(apperr.Status(err), body)
				return
			}
			apperr.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":     "Order placed successfully",
			"order":       res.Order,
			"approvalUrl": res.ApprovalURL,
		})
	}
}

// GET /order/orders
func GetOrders(w *Workflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := w.View(c.Request.Context(), middleware.BuyerID(c))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

// GET /order/order/:id
func GetOrder(w *Workflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := ownedOrder(c, w)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// PUT /order/order/:id/status
func UpdateOrderStatus(w *Workflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}
		var req UpdateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Respond(c, apperr.Validation("Invalid input: "+err.Error()))
			return
		}
		order, err := w.UpdateStatus(c.Request.Context(), id, req.Status)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "order": order})
	}
}

// PUT /order/order/:id/cancel
func CancelOrder(w *Workflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		owned, ok := ownedOrder(c, w)
		if !ok {
			return
		}
		order, err := w.Cancel(c.Request.Context(), owned.ID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order cancelled", "order": order})
	}
}

// POST /order/order/:id/payment
func RetryPaymentHandler(w *Workflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		owned, ok := ownedOrder(c, w)
		if !ok {
			return
		}
		res, err := w.RetryPayment(c.Request.Context(), owned.ID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": res.Order, "approvalUrl": res.ApprovalURL})
	}
}
