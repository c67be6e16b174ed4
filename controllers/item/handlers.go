package itemControllers

import (
	"net/http"
	"strconv"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/middleware"
	"github.com/gin-gonic/gin"
)

type ItemInput struct {
	ParentID   uint   `json:"parentId" binding:"required"`
	ParentType string `json:"parentType" binding:"required"`
	ProductID  uint   `json:"productId" binding:"required"`
	Quantity   int    `json:"quantity"`
}

type RemoveItemInput struct {
	ParentID   uint   `json:"parentId" binding:"required"`
	ParentType string `json:"parentType" binding:"required"`
	ProductID  uint   `json:"productId" binding:"required"`
}

// authorizeParent answers 404 for parents the caller does not own.
func authorizeParent(c *gin.Context, l *Ledger, parentID uint, parentType string) bool {
	buyerID := middleware.BuyerID(c)
	owns, err := l.Owns(c.Request.Context(), buyerID, parentID, parentType)
	if err != nil {
		apperr.Respond(c, err)
		return false
	}
	if !owns {
		apperr.Respond(c, apperr.NotFound(parentType+" not found"))
		return false
	}
	return true
}

// POST /item/add
func AddItemHandler(l *Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input ItemInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("invalid input: "+err.Error()))
			return
		}
		if !authorizeParent(c, l, input.ParentID, input.ParentType) {
			return
		}
		item, err := l.Add(c.Request.Context(), input.ParentID, input.ParentType, input.ProductID, input.Quantity)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Item added to " + input.ParentType, "item": item})
	}
}

// GET /item/items?parentId=&parentType=
func ListItemsHandler(l *Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		parentType := c.Query("parentType")
		parentID, err := strconv.ParseUint(c.Query("parentId"), 10, 64)
		if err != nil {
			apperr.Respond(c, apperr.Validation("parentId must be a positive integer"))
			return
		}
		if !authorizeParent(c, l, uint(parentID), parentType) {
			return
		}
		items, err := l.List(c.Request.Context(), uint(parentID), parentType)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

// DELETE /item/remove
func RemoveItemHandler(l *Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input RemoveItemInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("invalid input: "+err.Error()))
			return
		}
		if !authorizeParent(c, l, input.ParentID, input.ParentType) {
			return
		}
		if err := l.Remove(c.Request.Context(), input.ParentID, input.ParentType, input.ProductID); err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Item removed from " + input.ParentType})
	}
}

// PUT /item/update
func UpdateItemHandler(l *Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input ItemInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("invalid input: "+err.Error()))
			return
		}
		if !authorizeParent(c, l, input.ParentID, input.ParentType) {
			return
		}
		item, err := l.UpdateQuantity(c.Request.Context(), input.ParentID, input.ParentType, input.ProductID, input.Quantity)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Item quantity updated in " + input.ParentType, "item": item})
	}
}
