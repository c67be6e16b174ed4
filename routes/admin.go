package routes

import (
	adminController "github.com/Sammyalade/Jumia-backend/controllers/admin"

	"github.com/Sammyalade/Jumia-backend/middleware"
	"github.com/gin-gonic/gin"
)

// SetupAdminRoutes registers all "/admin/*" endpoints. Requires API-Key middleware.
func SetupAdminRoutes(api *gin.RouterGroup, d Deps) {
	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.ValidateAPIKey(d.Config.AdminAPIKey))
	{
		adminGroup.GET("/orders", adminController.ListOrders(d.DB))
		adminGroup.GET("/orders/export-excel", adminController.ExportOrdersToExcel(d.DB))
	}
}
