package cartControllers

import (
	"net/http"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/middleware"
	"github.com/gin-gonic/gin"
)

type CartItemInput struct {
	ProductID uint `json:"productId" binding:"required"`
	Quantity  int  `json:"quantity"`
}

type RemoveCartItemInput struct {
	ProductID uint `json:"productId" binding:"required"`
}

// POST /cart
func CreateCart(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cart, err := s.GetOrCreate(c.Request.Context(), middleware.BuyerID(c))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, cart)
	}
}

// GET /cart
func GetCart(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := s.View(c.Request.Context(), middleware.BuyerID(c))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		if view.Empty {
			c.JSON(http.StatusOK, gin.H{"message": "Cart is empty", "cart": view})
			return
		}
		c.JSON(http.StatusOK, gin.H{"cart": view})
	}
}

// POST /cart/add
func AddToCart(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input CartItemInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Invalid input: "+err.Error()))
			return
		}
		item, err := s.AddItem(c.Request.Context(), middleware.BuyerID(c), input.ProductID, input.Quantity)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Item added to cart", "item": item})
	}
}

// DELETE /cart/remove
func RemoveFromCart(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input RemoveCartItemInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Invalid input: "+err.Error()))
			return
		}
		if err := s.RemoveItem(c.Request.Context(), middleware.BuyerID(c), input.ProductID); err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
	}
}

// DELETE /cart/clear
func ClearCart(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Clear(c.Request.Context(), middleware.BuyerID(c)); err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
	}
}
