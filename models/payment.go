package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment mirrors the provider-side payment of an order. TransactionID is
// the provider's payment id and the join key for callbacks.
type Payment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	OrderID       uint            `gorm:"uniqueIndex;not null" json:"orderId"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status        PaymentStatus   `gorm:"size:20;not null;default:'pending'" json:"status"`
	TransactionID string          `gorm:"size:128;uniqueIndex;not null" json:"transactionId"`
	Method        string          `gorm:"size:32;not null;default:'PayPal'" json:"paymentMethod"`
	ApprovalURL   string          `json:"approvalUrl,omitempty"`
	PayerID       string          `gorm:"size:64" json:"payerId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type IntentStatus string

const (
	IntentStatusStarted   IntentStatus = "started"
	IntentStatusCreated   IntentStatus = "created"
	IntentStatusFailed    IntentStatus = "failed"
	IntentStatusAbandoned IntentStatus = "abandoned"
)

// PaymentIntent is written in the checkout transaction before the provider is
// called. RequestID is sent to the provider as its idempotency key.
type PaymentIntent struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"uniqueIndex;not null" json:"orderId"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status    IntentStatus    `gorm:"size:20;not null;index" json:"status"`
	RequestID string          `gorm:"size:64;uniqueIndex;not null" json:"requestId"`
	Attempts  int             `gorm:"not null;default:0" json:"attempts"`
	LastError string          `json:"lastError,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// WebhookEvent records provider webhook ids already handled.
type WebhookEvent struct {
	EventID    string    `gorm:"primaryKey;size:128" json:"eventId"`
	EventType  string    `gorm:"size:64;not null" json:"eventType"`
	ResourceID string    `gorm:"size:128" json:"resourceId"`
	ReceivedAt time.Time `gorm:"autoCreateTime" json:"receivedAt"`
}
