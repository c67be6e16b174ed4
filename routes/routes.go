package routes

import (
	"net/http"
	"time"

	addressControllers "github.com/Sammyalade/Jumia-backend/controllers/address"
	cartControllers "github.com/Sammyalade/Jumia-backend/controllers/cart"
	itemControllers "github.com/Sammyalade/Jumia-backend/controllers/item"
	orderControllers "github.com/Sammyalade/Jumia-backend/controllers/order"
	paymentControllers "github.com/Sammyalade/Jumia-backend/controllers/payment"

	"github.com/Sammyalade/Jumia-backend/cache"
	"github.com/Sammyalade/Jumia-backend/config"
	"github.com/Sammyalade/Jumia-backend/middleware"
	"github.com/Sammyalade/Jumia-backend/telemetry"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries everything the route groups hand to their controllers.
type Deps struct {
	Config     *config.Config
	DB         *gorm.DB
	Cache      cache.Cache // nil disables idempotency keys
	Metrics    *telemetry.Metrics
	Workflow   *orderControllers.Workflow
	Reconciler *paymentControllers.Reconciler
	Hub        *orderControllers.Hub
	Carts      *cartControllers.Service
	Ledger     *itemControllers.Ledger
	Addresses  *addressControllers.Service

	IdempotencyTTL time.Duration
}

// SetupRoutes is the single entry-point that wires every route group under /api/v1.
func SetupRoutes(r *gin.Engine, d Deps) {
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	r.GET("/healthz", healthz(d.DB))

	api := r.Group("/api/v1")

	// buyer routes (JWT-protected)
	SetupOrderRoutes(api, d)
	SetupUserRoutes(api, d)

	// admin routes (API-key-protected)
	SetupAdminRoutes(api, d)
}

func healthz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
