package middleware

import (
	"crypto/subtle"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/gin-gonic/gin"
)

// ValidateAPIKey guards admin routes with the X-API-KEY header. An empty
// configured key rejects every request.
func ValidateAPIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-KEY")
		if key == "" || subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) != 1 {
			apperr.Respond(c, apperr.New(apperr.ErrUnauthorized, "Invalid or missing API key"))
			return
		}
		c.Next()
	}
}
