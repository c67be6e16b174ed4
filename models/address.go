package models

import "time"

type Address struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"userId"`
	FullName    string    `gorm:"size:100;not null" json:"fullName"`
	PhoneNumber string    `gorm:"size:15;not null" json:"phoneNumber"`
	Street      string    `gorm:"size:100;not null" json:"street"`
	City        string    `gorm:"size:50;not null" json:"city"`
	State       string    `gorm:"size:50;not null" json:"state"`
	PostalCode  string    `gorm:"size:10;not null" json:"postalCode"`
	Country     string    `gorm:"size:50;not null" json:"country"`
	IsDefault   bool      `gorm:"not null;default:false" json:"isDefault"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
