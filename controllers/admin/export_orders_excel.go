package adminController

import (
	"net/http"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"
	"gorm.io/gorm"
)

var orderHeaders = []string{
	"ID", "Reference", "BuyerID", "AddressID", "TotalAmount", "Status",
	"Items", "PaymentTransactionID", "PaymentStatus", "CreatedAt", "UpdatedAt",
}

// buildOrdersSheet renders one row per order under orderHeaders.
func buildOrdersSheet(orders []models.Order) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return nil, err
	}

	headerRow := sheet.AddRow()
	for _, h := range orderHeaders {
		headerRow.AddCell().SetValue(h)
	}

	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetValue(o.ID)
		row.AddCell().SetValue(o.Reference)
		row.AddCell().SetValue(o.BuyerID)
		row.AddCell().SetValue(o.AddressID)
		row.AddCell().SetValue(o.TotalAmount.StringFixed(2))
		row.AddCell().SetValue(string(o.Status))

		units := 0
		for _, it := range o.Items {
			units += it.Quantity
		}
		row.AddCell().SetValue(units)

		txID, payStatus := "", ""
		if o.Payment != nil {
			txID, payStatus = o.Payment.TransactionID, string(o.Payment.Status)
		}
		row.AddCell().SetValue(txID)
		row.AddCell().SetValue(payStatus)

		row.AddCell().SetValue(o.CreatedAt.Format("2006-01-02 15:04:05"))
		row.AddCell().SetValue(o.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return file, nil
}

// GET /admin/orders/export-excel?status=
func ExportOrdersToExcel(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := ordersQuery(c, db)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		var orders []models.Order
		if err := q.Preload("Items").Preload("Payment").Order("id").Find(&orders).Error; err != nil {
			apperr.Respond(c, err)
			return
		}

		file, err := buildOrdersSheet(orders)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		c.Header("Content-Disposition", "attachment; filename=orders.xlsx")
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Transfer-Encoding", "binary")
		c.Header("Expires", "0")
		c.Status(http.StatusOK)

		if err := file.Write(c.Writer); err != nil {
			_ = c.Error(err)
		}
	}
}
