// Package databasetest opens throwaway sqlite databases for package tests.
package databasetest

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a migrated database backed by a file in t.TempDir(). A single
// connection serializes transactions the way row locks do on postgres.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// Fixture is a buyer with a user, one address and a handful of products.
type Fixture struct {
	User     models.User
	Buyer    models.Buyer
	Address  models.Address
	Products []models.Product
}

// Seed inserts a buyer-scoped fixture. Prices are given as decimal strings.
func Seed(t testing.TB, db *gorm.DB, email string, prices ...string) Fixture {
	t.Helper()

	f := Fixture{
		User: models.User{Email: email, Name: "Test Buyer", Roles: models.NewRoles(models.RoleBuyer)},
	}
	require.NoError(t, db.Create(&f.User).Error)

	f.Buyer = models.Buyer{UserID: f.User.ID}
	require.NoError(t, db.Create(&f.Buyer).Error)

	f.Address = models.Address{
		UserID:      f.User.ID,
		FullName:    "Ada Obi",
		PhoneNumber: "08012345678",
		Street:      "12 Allen Avenue",
		City:        "Ikeja",
		State:       "Lagos",
		PostalCode:  "100001",
		Country:     "Nigeria",
		IsDefault:   true,
	}
	require.NoError(t, db.Create(&f.Address).Error)

	for i, price := range prices {
		p := models.Product{
			Title: fmt.Sprintf("Product %d", i+1),
			Price: decimal.RequireFromString(price),
			Image: fmt.Sprintf("https://cdn.example.com/p/%d.jpg", i+1),
		}
		require.NoError(t, db.Create(&p).Error)
		f.Products = append(f.Products, p)
	}
	return f
}
