package paymentControllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/database"
	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Provider webhook event types acted upon; anything else is acknowledged.
const (
	EventSaleCompleted = "PAYMENT.SALE.COMPLETED"
	EventSaleDenied    = "PAYMENT.SALE.DENIED"
)

type WebhookEvent struct {
	ID        string `json:"id" binding:"required"`
	EventType string `json:"event_type" binding:"required"`
	Resource  struct {
		ID            string `json:"id"`
		ParentPayment string `json:"parent_payment"`
		State         string `json:"state"`
		ReasonCode    string `json:"reason_code"`
	} `json:"resource"`
}

// PaymentID is the payment the event is about. Sale events point at their
// payment through parent_payment.
func (e WebhookEvent) PaymentID() string {
	if e.Resource.ParentPayment != "" {
		return e.Resource.ParentPayment
	}
	return e.Resource.ID
}

// HandleWebhook applies a provider event once. It reports duplicate for an
// event id that was already handled.
func (r *Reconciler) HandleWebhook(ctx context.Context, evt WebhookEvent) (duplicate bool, err error) {
	var seen models.WebhookEvent
	err = r.db.WithContext(ctx).Where("event_id = ?", evt.ID).First(&seen).Error
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	switch evt.EventType {
	case EventSaleCompleted:
		_, err = r.Confirm(ctx, evt.PaymentID())
	case EventSaleDenied:
		reason := evt.Resource.ReasonCode
		if reason == "" {
			reason = "denied by provider"
		}
		err = r.FailPayment(ctx, evt.PaymentID(), reason)
	default:
		slog.DebugContext(ctx, "ignoring webhook event", "event_id", evt.ID, "event_type", evt.EventType)
	}
	// unknown payments and refused settlements are final for this event
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrPaymentExecution) {
		slog.WarnContext(ctx, "webhook event not applied", "event_id", evt.ID, "event_type", evt.EventType, "error", err)
		err = nil
	}
	if err != nil {
		return false, err
	}

	rec := models.WebhookEvent{EventID: evt.ID, EventType: evt.EventType, ResourceID: evt.PaymentID()}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil && !database.IsUniqueViolation(err) {
		return false, err
	}
	return false, nil
}

// POST /order/paypal/webhook
func WebhookHandler(r *Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var evt WebhookEvent
		if err := c.ShouldBindJSON(&evt); err != nil {
			apperr.Respond(c, apperr.Validation("invalid webhook payload: "+err.Error()))
			return
		}
		duplicate, err := r.HandleWebhook(c.Request.Context(), evt)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		if duplicate {
			c.JSON(http.StatusOK, gin.H{"message": "event already processed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "event processed"})
	}
}
