package routes

import (
	orderControllers "github.com/Sammyalade/Jumia-backend/controllers/order"
	paymentControllers "github.com/Sammyalade/Jumia-backend/controllers/payment"

	"github.com/Sammyalade/Jumia-backend/middleware"
	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/gin-gonic/gin"
)

func SetupOrderRoutes(api *gin.RouterGroup, d Deps) {
	orders := api.Group("/order")

	// provider callbacks are signed, not session-bound
	orders.POST("/paypal/webhook",
		middleware.WebhookAuth(d.Config.Payment.WebhookSecret),
		paymentControllers.WebhookHandler(d.Reconciler))

	buyer := orders.Group("")
	buyer.Use(middleware.ValidateToken(d.Config.JWTSecret), middleware.RequireBuyer(d.DB))
	{
		buyer.POST("/placeOrder",
			middleware.Idempotency(d.Cache, d.IdempotencyTTL),
			orderControllers.PlaceOrderHandler(d.Workflow))

		buyer.GET("/paypal/execute", paymentControllers.ExecutePaymentHandler(d.Reconciler))
		buyer.GET("/paypal/cancel", paymentControllers.CancelPaymentHandler())

		buyer.GET("/orders", orderControllers.GetOrders(d.Workflow))
		buyer.GET("/order/:id", orderControllers.GetOrder(d.Workflow))
		buyer.PUT("/order/:id/status",
			middleware.RequireRole(models.RoleSeller, models.RoleAdmin),
			orderControllers.UpdateOrderStatus(d.Workflow))
		buyer.PUT("/order/:id/cancel", orderControllers.CancelOrder(d.Workflow))
		buyer.POST("/order/:id/payment",
			middleware.Idempotency(d.Cache, d.IdempotencyTTL),
			orderControllers.RetryPaymentHandler(d.Workflow))

		// websocket endpoint for real-time order updates
		buyer.GET("/ws", orderControllers.OrderWebSocketHandler(d.Hub))
	}
}
