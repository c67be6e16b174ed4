package paymentControllers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sammyalade/Jumia-backend/apperr"
	paymentControllers "github.com/Sammyalade/Jumia-backend/controllers/payment"
	"github.com/Sammyalade/Jumia-backend/controllers/payment/mocks"
	"github.com/Sammyalade/Jumia-backend/database/databasetest"
	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/Sammyalade/Jumia-backend/outbox"
	"github.com/Sammyalade/Jumia-backend/telemetry"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type countingLocker struct {
	mu       sync.Mutex
	acquired int
}

func (l *countingLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquired++
	return func() {}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []models.Order
}

func (n *recordingNotifier) OrderChanged(order models.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order)
}

type env struct {
	db       *gorm.DB
	fixture  databasetest.Fixture
	provider *mocks.MockProvider
	locker   *countingLocker
	notifier *recordingNotifier
	rec      *paymentControllers.Reconciler
}

func newEnv(t *testing.T, timeout time.Duration) *env {
	t.Helper()
	ctrl := gomock.NewController(t)
	db := databasetest.Open(t)
	e := &env{
		db:       db,
		fixture:  databasetest.Seed(t, db, "pay@example.com", "19.99"),
		provider: mocks.NewMockProvider(ctrl),
		locker:   &countingLocker{},
		notifier: &recordingNotifier{},
	}
	e.rec = paymentControllers.NewReconciler(db, e.provider, paymentControllers.Options{
		Locker:     e.locker,
		Notifier:   e.notifier,
		Timeout:    timeout,
		RetryLimit: 3,
	})
	return e
}

// placeOrder inserts a pending order with its intent, as checkout leaves it.
func (e *env) placeOrder(t *testing.T, total string) (models.Order, models.PaymentIntent) {
	t.Helper()
	order := models.Order{
		Reference:   uuid.NewString(),
		BuyerID:     e.fixture.Buyer.ID,
		AddressID:   e.fixture.Address.ID,
		TotalAmount: decimal.RequireFromString(total),
		Status:      models.OrderStatusPending,
	}
	require.NoError(t, e.db.Create(&order).Error)
	intent, err := paymentControllers.CreateIntentTx(e.db, order.ID, order.TotalAmount)
	require.NoError(t, err)
	return order, *intent
}

func (e *env) withPayment(t *testing.T, order models.Order, txID string) models.Payment {
	t.Helper()
	payment := models.Payment{
		OrderID:       order.ID,
		Amount:        order.TotalAmount,
		Status:        models.PaymentStatusPending,
		TransactionID: txID,
		ApprovalURL:   "https://paypal.example/approve/" + txID,
	}
	require.NoError(t, e.db.Create(&payment).Error)
	return payment
}

func (e *env) outboxCount(t *testing.T, eventType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.OutboxEvent{}).Where("payload LIKE ?", `%"type":"`+eventType+`"%`).Count(&n).Error)
	return n
}

func TestCreatePaymentIsIdempotent(t *testing.T) {
	e := newEnv(t, time.Second)
	order, intent := e.placeOrder(t, "39.98")

	e.provider.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req paymentControllers.CreatePaymentRequest) (*paymentControllers.ProviderPayment, error) {
			assert.Equal(t, "39.98", req.Amount.StringFixed(2))
			assert.Equal(t, "USD", req.Currency)
			assert.Equal(t, intent.RequestID, req.RequestID)
			assert.Contains(t, req.Description, "Payment for Order #")
			return &paymentControllers.ProviderPayment{ID: "PAY-1", State: "created", ApprovalURL: "https://paypal.example/approve"}, nil
		}).Times(1)

	ctx := context.Background()
	res, err := e.rec.CreatePayment(ctx, order.ID, decimal.RequireFromString("39.98"))
	require.NoError(t, err)
	assert.Equal(t, "https://paypal.example/approve", res.ApprovalURL)
	assert.Equal(t, models.PaymentStatusPending, res.Payment.Status)

	again, err := e.rec.CreatePayment(ctx, order.ID, decimal.RequireFromString("39.98"))
	require.NoError(t, err)
	assert.Equal(t, res.Payment.ID, again.Payment.ID)

	var stored models.PaymentIntent
	require.NoError(t, e.db.First(&stored, intent.ID).Error)
	assert.Equal(t, models.IntentStatusCreated, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.EqualValues(t, 1, e.outboxCount(t, outbox.EventPaymentCreated))
}

func TestCreatePaymentRejectsWrongAmount(t *testing.T) {
	e := newEnv(t, time.Second)
	order, _ := e.placeOrder(t, "39.98")

	_, err := e.rec.CreatePayment(context.Background(), order.ID, decimal.RequireFromString("39.99"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.rec.CreatePayment(context.Background(), 999, decimal.RequireFromString("1"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreatePaymentTimeoutIsGatewayError(t *testing.T) {
	e := newEnv(t, 20*time.Millisecond)
	order, intent := e.placeOrder(t, "39.98")

	e.provider.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ paymentControllers.CreatePaymentRequest) (*paymentControllers.ProviderPayment, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	_, err := e.rec.CreatePayment(context.Background(), order.ID, order.TotalAmount)
	require.ErrorIs(t, err, apperr.ErrPaymentGateway)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var count int64
	e.db.Model(&models.Payment{}).Count(&count)
	assert.Zero(t, count)

	var stored models.PaymentIntent
	require.NoError(t, e.db.First(&stored, intent.ID).Error)
	assert.Equal(t, models.IntentStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.LastError)

	var reloaded models.Order
	require.NoError(t, e.db.First(&reloaded, order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, reloaded.Status)
}

func TestExecutePaymentReplayIsIdempotent(t *testing.T) {
	e := newEnv(t, time.Second)
	order, _ := e.placeOrder(t, "39.98")
	e.withPayment(t, order, "PAY-7")

	e.provider.EXPECT().ExecutePayment(gomock.Any(), "PAY-7", "PAYER-1").
		Return(&paymentControllers.ProviderPayment{ID: "PAY-7", State: paymentControllers.StateApproved}, nil).
		Times(1)

	ctx := context.Background()
	first, err := e.rec.ExecutePayment(ctx, "PAY-7", "PAYER-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, first.Payment.Status)
	assert.Equal(t, models.OrderStatusPaid, first.Status)
	assert.Equal(t, "PAYER-1", first.Payment.PayerID)

	second, err := e.rec.ExecutePayment(ctx, "PAY-7", "PAYER-1")
	require.NoError(t, err)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)
	assert.Equal(t, models.OrderStatusPaid, second.Status)

	assert.Equal(t, 1, e.locker.acquired)
	assert.EqualValues(t, 1, e.outboxCount(t, outbox.EventPaymentCaptured))
	assert.EqualValues(t, 1, e.outboxCount(t, outbox.EventOrderPaid))
	require.Len(t, e.notifier.orders, 1)
	assert.Equal(t, order.ID, e.notifier.orders[0].ID)
}

func TestConcurrentExecutePaymentSettlesOnce(t *testing.T) {
	e := newEnv(t, time.Second)
	order, _ := e.placeOrder(t, "39.98")
	e.withPayment(t, order, "PAY-C1")

	// countingLocker never blocks, so every caller may reach the provider.
	e.provider.EXPECT().ExecutePayment(gomock.Any(), "PAY-C1", "PAYER-1").
		Return(&paymentControllers.ProviderPayment{ID: "PAY-C1", State: paymentControllers.StateApproved}, nil).
		AnyTimes()

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*paymentControllers.ExecuteResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.rec.ExecutePayment(context.Background(), "PAY-C1", "PAYER-1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, models.PaymentStatusCompleted, results[i].Payment.Status)
		assert.Equal(t, models.OrderStatusPaid, results[i].Status)
		assert.Equal(t, order.ID, results[i].OrderID)
	}
	assert.EqualValues(t, 1, e.outboxCount(t, outbox.EventPaymentCaptured))
	assert.EqualValues(t, 1, e.outboxCount(t, outbox.EventOrderPaid))
	assert.Len(t, e.notifier.orders, 1)
}

func TestExecutePaymentUnknownTransaction(t *testing.T) {
	e := newEnv(t, time.Second)
	order, _ := e.placeOrder(t, "39.98")
	e.withPayment(t, order, "PAY-8")

	_, err := e.rec.ExecutePayment(context.Background(), "PAY-missing", "PAYER-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var payment models.Payment
	require.NoError(t, e.db.Where("transaction_id = ?", "PAY-8").First(&payment).Error)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Zero(t, e.locker.acquired)
}

func TestExecutePaymentFailures(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		e := newEnv(t, time.Second)
		order, _ := e.placeOrder(t, "10.00")
		e.withPayment(t, order, "PAY-D")

		e.provider.EXPECT().ExecutePayment(gomock.Any(), "PAY-D", "P").
			Return(nil, &paymentControllers.ProviderError{StatusCode: 400, Name: "INSTRUMENT_DECLINED"})

		_, err := e.rec.ExecutePayment(context.Background(), "PAY-D", "P")
		assert.ErrorIs(t, err, apperr.ErrPaymentExecution)

		var payment models.Payment
		require.NoError(t, e.db.Where("transaction_id = ?", "PAY-D").First(&payment).Error)
		assert.Equal(t, models.PaymentStatusPending, payment.Status)
	})

	t.Run("provider down", func(t *testing.T) {
		e := newEnv(t, time.Second)
		order, _ := e.placeOrder(t, "10.00")
		e.withPayment(t, order, "PAY-U")

		e.provider.EXPECT().ExecutePayment(gomock.Any(), "PAY-U", "P").
			Return(nil, errors.New("connection refused"))

		_, err := e.rec.ExecutePayment(context.Background(), "PAY-U", "P")
		assert.ErrorIs(t, err, apperr.ErrPaymentGateway)
	})

	t.Run("cancelled order", func(t *testing.T) {
		e := newEnv(t, time.Second)
		order, _ := e.placeOrder(t, "10.00")
		e.withPayment(t, order, "PAY-C")
		require.NoError(t, e.db.Model(&order).Update("status", models.OrderStatusCancelled).Error)

		_, err := e.rec.ExecutePayment(context.Background(), "PAY-C", "P")
		assert.ErrorIs(t, err, apperr.ErrPaymentExecution)
	})
}

func TestWebhookDeniedFailsPaymentOnce(t *testing.T) {
	e := newEnv(t, time.Second)
	order, _ := e.placeOrder(t, "10.00")
	e.withPayment(t, order, "PAY-W")

	var evt paymentControllers.WebhookEvent
	evt.ID = "WH-1"
	evt.EventType = paymentControllers.EventSaleDenied
	evt.Resource.ID = "SALE-1"
	evt.Resource.ParentPayment = "PAY-W"

	ctx := context.Background()
	dup, err := e.rec.HandleWebhook(ctx, evt)
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = e.rec.HandleWebhook(ctx, evt)
	require.NoError(t, err)
	assert.True(t, dup)

	var payment models.Payment
	require.NoError(t, e.db.Where("transaction_id = ?", "PAY-W").First(&payment).Error)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.EqualValues(t, 1, e.outboxCount(t, outbox.EventPaymentFailed))

	_, err = e.rec.ExecutePayment(ctx, "PAY-W", "P")
	assert.ErrorIs(t, err, apperr.ErrPaymentExecution)
}

func TestFailPaymentOnSettledPaymentIsNoop(t *testing.T) {
	e := newEnv(t, time.Second)
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	rec := paymentControllers.NewReconciler(e.db, e.provider, paymentControllers.Options{Metrics: metrics, Timeout: time.Second})

	order, _ := e.placeOrder(t, "10.00")
	payment := e.withPayment(t, order, "PAY-F1")
	require.NoError(t, e.db.Model(&payment).Update("status", models.PaymentStatusCompleted).Error)

	require.NoError(t, rec.FailPayment(context.Background(), "PAY-F1", "late denial"))

	var reloaded models.Payment
	require.NoError(t, e.db.First(&reloaded, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusCompleted, reloaded.Status)
	assert.EqualValues(t, 0, e.outboxCount(t, outbox.EventPaymentFailed))
	assert.Zero(t, testutil.ToFloat64(metrics.Payments.WithLabelValues("fail", "ok")))

	other, _ := e.placeOrder(t, "5.00")
	e.withPayment(t, other, "PAY-F2")
	require.NoError(t, rec.FailPayment(context.Background(), "PAY-F2", "denied"))
	assert.EqualValues(t, 1, testutil.ToFloat64(metrics.Payments.WithLabelValues("fail", "ok")))
}

func TestWebhookCompletedSettles(t *testing.T) {
	e := newEnv(t, time.Second)
	order, _ := e.placeOrder(t, "10.00")
	e.withPayment(t, order, "PAY-S")

	var evt paymentControllers.WebhookEvent
	evt.ID = "WH-2"
	evt.EventType = paymentControllers.EventSaleCompleted
	evt.Resource.ParentPayment = "PAY-S"

	_, err := e.rec.HandleWebhook(context.Background(), evt)
	require.NoError(t, err)

	var reloaded models.Order
	require.NoError(t, e.db.First(&reloaded, order.ID).Error)
	assert.Equal(t, models.OrderStatusPaid, reloaded.Status)

	evt.ID = "WH-3"
	evt.Resource.ParentPayment = "PAY-unknown"
	_, err = e.rec.HandleWebhook(context.Background(), evt)
	assert.NoError(t, err)
}

func TestResumePendingRedrivesOpenIntents(t *testing.T) {
	e := newEnv(t, time.Second)
	open, _ := e.placeOrder(t, "10.00")
	exhausted, exhaustedIntent := e.placeOrder(t, "11.00")
	require.NoError(t, e.db.Model(&exhaustedIntent).Update("attempts", 3).Error)
	paid, _ := e.placeOrder(t, "12.00")
	e.withPayment(t, paid, "PAY-EXISTING")

	e.provider.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req paymentControllers.CreatePaymentRequest) (*paymentControllers.ProviderPayment, error) {
			assert.Equal(t, open.ID, req.OrderID)
			return &paymentControllers.ProviderPayment{ID: "PAY-R", ApprovalURL: "https://paypal.example/r"}, nil
		}).Times(1)

	n, err := e.rec.ResumePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var count int64
	e.db.Model(&models.Payment{}).Where("order_id = ?", exhausted.ID).Count(&count)
	assert.Zero(t, count)
}

func TestRetryPayment(t *testing.T) {
	e := newEnv(t, time.Second)
	order, _ := e.placeOrder(t, "10.00")

	gomock.InOrder(
		e.provider.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).Return(nil, errors.New("503")),
		e.provider.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
			Return(&paymentControllers.ProviderPayment{ID: "PAY-2ND", ApprovalURL: "https://paypal.example/2"}, nil),
	)

	_, err := e.rec.RetryPayment(context.Background(), order.ID)
	require.ErrorIs(t, err, apperr.ErrPaymentGateway)

	res, err := e.rec.RetryPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAY-2ND", res.Payment.TransactionID)

	_, err = e.rec.RetryPayment(context.Background(), 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
