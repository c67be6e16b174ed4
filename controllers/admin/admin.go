package adminController

import (
	"net/http"
	"strconv"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const maxPageSize = 100

// ordersQuery applies the optional ?status filter shared by the list and export endpoints.
func ordersQuery(c *gin.Context, db *gorm.DB) (*gorm.DB, error) {
	q := db.WithContext(c.Request.Context()).Model(&models.Order{})
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseOrderStatus(raw)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		q = q.Where("status = ?", status)
	}
	return q, nil
}

func pageParams(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > maxPageSize {
		size = 20
	}
	return page, size
}

// GET /admin/orders?status=&page=&pageSize=
func ListOrders(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := ordersQuery(c, db)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		var total int64
		if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			apperr.Respond(c, err)
			return
		}

		page, size := pageParams(c)
		orders := []models.Order{}
		if err := q.Preload("Items").Preload("Payment").
			Order("created_at DESC, id DESC").
			Offset((page - 1) * size).Limit(size).
			Find(&orders).Error; err != nil {
			apperr.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"orders":   orders,
			"total":    total,
			"page":     page,
			"pageSize": size,
		})
	}
}
