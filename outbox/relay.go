package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/Sammyalade/Jumia-backend/telemetry"
	"gorm.io/gorm"
)

// Publisher hands one encoded event to a broker.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}

// Relay drains pending outbox rows to a Publisher, oldest first. Delivery is
// at-least-once: a crash between Publish and MarkSent republishes the event.
type Relay struct {
	db        *gorm.DB
	publisher Publisher
	interval  time.Duration
	batchSize int
	metrics   *telemetry.Metrics
}

func NewRelay(db *gorm.DB, publisher Publisher, interval time.Duration, batchSize int, metrics *telemetry.Metrics) *Relay {
	return &Relay{db: db, publisher: publisher, interval: interval, batchSize: batchSize, metrics: metrics}
}

// Run flushes on every tick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "outbox relay started", "interval", r.interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				slog.WarnContext(ctx, "outbox flush failed", "error", err)
			}
		}
	}
}

// Flush publishes one batch and returns how many events were marked sent. It
// stops at the first publish failure so ordering per key is kept.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	pending, err := FetchPending(ctx, r.db, r.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range pending {
		err := r.publisher.Publish(ctx, rec.Topic, rec.Key, []byte(rec.Payload))
		r.metrics.ObserveOutbox(err)
		if err != nil {
			return sent, err
		}
		if err := MarkSent(ctx, r.db, rec.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// LogPublisher writes events to the log. It is used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	slog.InfoContext(ctx, "outbox event", "topic", topic, "key", key, "payload", string(payload))
	return nil
}

func (LogPublisher) Close() error { return nil }
