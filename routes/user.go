package routes

import (
	addressControllers "github.com/Sammyalade/Jumia-backend/controllers/address"
	cartControllers "github.com/Sammyalade/Jumia-backend/controllers/cart"
	itemControllers "github.com/Sammyalade/Jumia-backend/controllers/item"

	"github.com/Sammyalade/Jumia-backend/middleware"
	"github.com/gin-gonic/gin"
)

// SetupUserRoutes registers the buyer-scoped /cart, /item and /address endpoints.
func SetupUserRoutes(api *gin.RouterGroup, d Deps) {
	buyer := api.Group("")
	buyer.Use(middleware.ValidateToken(d.Config.JWTSecret), middleware.RequireBuyer(d.DB))

	// ──────────────── Shopping Cart ────────────────
	cartGroup := buyer.Group("/cart")
	{
		cartGroup.POST("", cartControllers.CreateCart(d.Carts))
		cartGroup.GET("", cartControllers.GetCart(d.Carts))
		cartGroup.POST("/add", cartControllers.AddToCart(d.Carts))
		cartGroup.DELETE("/remove", cartControllers.RemoveFromCart(d.Carts))
		cartGroup.DELETE("/clear", cartControllers.ClearCart(d.Carts))
	}

	// ──────────────── Line Items ────────────────
	itemGroup := buyer.Group("/item")
	{
		itemGroup.POST("/add", itemControllers.AddItemHandler(d.Ledger))
		itemGroup.GET("/items", itemControllers.ListItemsHandler(d.Ledger))
		itemGroup.DELETE("/remove", itemControllers.RemoveItemHandler(d.Ledger))
		itemGroup.PUT("/update", itemControllers.UpdateItemHandler(d.Ledger))
	}

	// ──────────────── Addresses ────────────────
	addressGroup := buyer.Group("/address")
	{
		addressGroup.POST("", addressControllers.CreateAddress(d.Addresses))
		addressGroup.GET("", addressControllers.ListAddresses(d.Addresses))
	}
}
