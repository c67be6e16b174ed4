package addressControllers

import (
	"net/http"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/middleware"
	"github.com/gin-gonic/gin"
)

// POST /address
func CreateAddress(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input AddressInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Invalid input: "+err.Error()))
			return
		}
		address, err := s.Create(c.Request.Context(), middleware.UserID(c), input)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, address)
	}
}

// GET /address
func ListAddresses(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		addresses, err := s.List(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, addresses)
	}
}
