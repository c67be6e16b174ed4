package middleware

import (
	"errors"
	"strings"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/auth"
	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Context keys set by the auth chain.
const (
	ContextUserID  = "user_id"
	ContextRoles   = "roles"
	ContextBuyerID = "buyer_id"
)

// ValidateToken checks the Bearer session token and stores the user id and
// role set in the context.
func ValidateToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			apperr.Respond(c, apperr.New(apperr.ErrUnauthorized, "Authorization header is missing"))
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		claims, roles, err := auth.ParseToken(secret, tokenString)
		if err != nil {
			apperr.Respond(c, apperr.Wrap(apperr.ErrUnauthorized, "Invalid or expired token", err))
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRoles, roles)
		c.Next()
	}
}

// RequireRole lets the request through when the caller holds any of roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Roles(c).HasAny(roles...) {
			apperr.Respond(c, apperr.New(apperr.ErrForbidden, "insufficient role"))
			return
		}
		c.Next()
	}
}

// RequireBuyer resolves the Buyer of the authenticated user, creating it on
// the first buyer-scoped request.
func RequireBuyer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		ctx := c.Request.Context()

		var user models.User
		if err := db.WithContext(ctx).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apperr.Respond(c, apperr.New(apperr.ErrUnauthorized, "user not found"))
				return
			}
			apperr.Respond(c, err)
			return
		}

		buyer := models.Buyer{UserID: user.ID}
		err := db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
			Create(&buyer).Error
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		if err := db.WithContext(ctx).Where("user_id = ?", user.ID).First(&buyer).Error; err != nil {
			apperr.Respond(c, err)
			return
		}

		c.Set(ContextBuyerID, buyer.ID)
		c.Next()
	}
}

func UserID(c *gin.Context) uint {
	return c.GetUint(ContextUserID)
}

func BuyerID(c *gin.Context) uint {
	return c.GetUint(ContextBuyerID)
}

func Roles(c *gin.Context) models.Roles {
	if v, ok := c.Get(ContextRoles); ok {
		if roles, ok := v.(models.Roles); ok {
			return roles
		}
	}
	return models.Roles{}
}
