package addressControllers

import (
	"context"
	"regexp"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/models"
	"gorm.io/gorm"
)

var (
	phonePattern  = regexp.MustCompile(`^[0-9]{10,15}$`)
	postalPattern = regexp.MustCompile(`^[0-9]{4,10}$`)
)

type AddressInput struct {
	FullName    string `json:"fullName" binding:"required,min=3,max=100"`
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	Street      string `json:"street" binding:"required,min=3,max=100"`
	City        string `json:"city" binding:"required,min=2,max=50"`
	State       string `json:"state" binding:"required,min=2,max=50"`
	PostalCode  string `json:"postalCode" binding:"required"`
	Country     string `json:"country" binding:"required,min=2,max=50"`
	IsDefault   bool   `json:"isDefault"`
}

func (in AddressInput) validate() error {
	if !phonePattern.MatchString(in.PhoneNumber) {
		return apperr.Validation("phone number must be 10 to 15 digits")
	}
	if !postalPattern.MatchString(in.PostalCode) {
		return apperr.Validation("postal code must be 4 to 10 digits")
	}
	return nil
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Create stores a new address for the user. The first address, or one sent
// with isDefault, becomes the only default.
func (s *Service) Create(ctx context.Context, userID uint, in AddressInput) (*models.Address, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	address := models.Address{
		UserID:      userID,
		FullName:    in.FullName,
		PhoneNumber: in.PhoneNumber,
		Street:      in.Street,
		City:        in.City,
		State:       in.State,
		PostalCode:  in.PostalCode,
		Country:     in.Country,
		IsDefault:   in.IsDefault,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Address{}).Where("user_id = ?", userID).Count(&existing).Error; err != nil {
			return err
		}
		if existing == 0 {
			address.IsDefault = true
		}
		if address.IsDefault {
			if err := tx.Model(&models.Address{}).
				Where("user_id = ? AND is_default = ?", userID, true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&address).Error
	})
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// List returns the user's addresses with the default first.
func (s *Service) List(ctx context.Context, userID uint) ([]models.Address, error) {
	addresses := []models.Address{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, id").
		Find(&addresses).Error
	return addresses, err
}
