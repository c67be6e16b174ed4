package models

import "time"

type OutboxEvent struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	EventID   string     `gorm:"size:64;uniqueIndex;not null" json:"eventId"`
	Topic     string     `gorm:"size:128;not null" json:"topic"`
	Key       string     `gorm:"size:128" json:"key"`
	Payload   string     `gorm:"type:text;not null" json:"payload"`
	CreatedAt time.Time  `json:"createdAt"`
	SentAt    *time.Time `gorm:"index" json:"sentAt,omitempty"`
}

// All lists every model the service migrates.
func All() []any {
	return []any{
		&User{},
		&Buyer{},
		&Address{},
		&Product{},
		&Cart{},
		&Wishlist{},
		&Item{},
		&Order{},
		&Payment{},
		&PaymentIntent{},
		&OutboxEvent{},
		&WebhookEvent{},
	}
}
