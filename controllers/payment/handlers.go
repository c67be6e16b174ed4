package paymentControllers

import (
	"net/http"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/middleware"
	"github.com/gin-gonic/gin"
)

// GET /order/paypal/execute?paymentId=&PayerID=
func ExecutePaymentHandler(r *Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentID := c.Query("paymentId")
		payerID := c.Query("PayerID")
		if payerID == "" {
			payerID = c.Query("payerId")
		}
		if paymentID == "" || payerID == "" {
			apperr.Respond(c, apperr.Validation("paymentId and PayerID are required"))
			return
		}

		_, order, err := r.Lookup(c.Request.Context(), paymentID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		if order.BuyerID != middleware.BuyerID(c) {
			apperr.Respond(c, apperr.NotFound("payment not found"))
			return
		}

		res, err := r.ExecutePayment(c.Request.Context(), paymentID, payerID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Payment executed successfully",
			"payment": res.Payment,
			"orderId": res.OrderID,
			"status":  res.Status,
		})
	}
}

// GET /order/paypal/cancel
func CancelPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Payment canceled"})
	}
}
