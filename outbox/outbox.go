// Package outbox stores domain events in the same transaction as the state
// change that produced them and relays them to a broker afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TopicOrders   = "marketplace.orders"
	TopicPayments = "marketplace.payments"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderPaid          = "order.paid"
	EventPaymentCreated     = "payment.created"
	EventPaymentCaptured    = "payment.captured"
	EventPaymentFailed      = "payment.failed"
)

// Event is the envelope published to the broker.
type Event struct {
	EventID    string         `json:"event_id"`
	Type       string         `json:"type"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// Insert appends an event using tx, which should be the transaction that
// performs the matching state change.
func Insert(tx *gorm.DB, topic, key, eventType string, payload map[string]any) error {
	evt := Event{
		EventID:    uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("outbox: encode %s: %w", eventType, err)
	}
	rec := models.OutboxEvent{
		EventID: evt.EventID,
		Topic:   topic,
		Key:     key,
		Payload: string(data),
	}
	if err := tx.Create(&rec).Error; err != nil {
		return fmt.Errorf("outbox: insert %s: %w", eventType, err)
	}
	return nil
}

func FetchPending(ctx context.Context, db *gorm.DB, limit int) ([]models.OutboxEvent, error) {
	var out []models.OutboxEvent
	err := db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("id").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func MarkSent(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id = ? AND sent_at IS NULL", id).
		Update("sent_at", time.Now().UTC()).Error
}
