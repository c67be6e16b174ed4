package paymentControllers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/cache"
	"github.com/Sammyalade/Jumia-backend/database"
	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/Sammyalade/Jumia-backend/outbox"
	"github.com/Sammyalade/Jumia-backend/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("github.com/Sammyalade/Jumia-backend/controllers/payment")

// errSettled means another callback moved the payment out of pending first.
var errSettled = errors.New("payment already settled")

// Notifier is told about order status changes made by settlement.
type Notifier interface {
	OrderChanged(order models.Order)
}

type Options struct {
	Locker     cache.Locker
	Notifier   Notifier
	Metrics    *telemetry.Metrics
	Timeout    time.Duration
	RetryLimit int
	Currency   string
}

// Reconciler keeps local payments in step with the provider.
type Reconciler struct {
	db         *gorm.DB
	provider   Provider
	locker     cache.Locker
	notifier   Notifier
	metrics    *telemetry.Metrics
	timeout    time.Duration
	retryLimit int
	currency   string
}

func NewReconciler(db *gorm.DB, provider Provider, opts Options) *Reconciler {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryLimit <= 0 {
		opts.RetryLimit = 5
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	return &Reconciler{
		db:         db,
		provider:   provider,
		locker:     opts.Locker,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		timeout:    opts.Timeout,
		retryLimit: opts.RetryLimit,
		currency:   opts.Currency,
	}
}

type CreateResult struct {
	Payment     *models.Payment `json:"payment"`
	ApprovalURL string          `json:"approvalUrl"`
}

type ExecuteResult struct {
	Payment *models.Payment    `json:"payment"`
	OrderID uint               `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
}

func orderKey(orderID uint) string {
	return strconv.FormatUint(uint64(orderID), 10)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CreateIntentTx records that a provider payment is about to be requested for
// the order. It runs in the checkout transaction.
func CreateIntentTx(tx *gorm.DB, orderID uint, amount decimal.Decimal) (*models.PaymentIntent, error) {
	intent := models.PaymentIntent{
		OrderID:   orderID,
		Amount:    amount,
		Status:    models.IntentStatusStarted,
		RequestID: uuid.NewString(),
	}
	if err := tx.Create(&intent).Error; err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &intent, nil
}

// AbandonIntentTx closes any open intent of a cancelled order.
func AbandonIntentTx(tx *gorm.DB, orderID uint) error {
	return tx.Model(&models.PaymentIntent{}).
		Where("order_id = ? AND status IN ?", orderID, []models.IntentStatus{
			models.IntentStatusStarted, models.IntentStatusFailed, models.IntentStatusCreated,
		}).
		Update("status", models.IntentStatusAbandoned).Error
}

func (r *Reconciler) paymentForOrder(ctx context.Context, orderID uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ensureIntent returns the order's intent, creating one for orders placed
// before intents existed, and counts the attempt.
func (r *Reconciler) ensureIntent(ctx context.Context, order *models.Order) (*models.PaymentIntent, error) {
	db := r.db.WithContext(ctx)
	fresh := models.PaymentIntent{
		OrderID:   order.ID,
		Amount:    order.TotalAmount,
		Status:    models.IntentStatusStarted,
		RequestID: uuid.NewString(),
	}
	if err := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("ensure payment intent: %w", err)
	}

	var intent models.PaymentIntent
	if err := db.Where("order_id = ?", order.ID).First(&intent).Error; err != nil {
		return nil, fmt.Errorf("load payment intent: %w", err)
	}
	if err := db.Model(&intent).UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error; err != nil {
		return nil, fmt.Errorf("count payment attempt: %w", err)
	}
	intent.Attempts++
	return &intent, nil
}

func (r *Reconciler) recordIntentFailure(ctx context.Context, intentID uint, cause error) {
	err := r.db.WithContext(ctx).Model(&models.PaymentIntent{}).
		Where("id = ? AND status IN ?", intentID, []models.IntentStatus{models.IntentStatusStarted, models.IntentStatusFailed}).
		Updates(map[string]interface{}{"status": models.IntentStatusFailed, "last_error": cause.Error()}).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to record payment intent failure", "intent_id", intentID, "error", err)
	}
}

// CreatePayment opens a provider payment for a pending order. A second call
// for the same order returns the payment created by the first.
func (r *Reconciler) CreatePayment(ctx context.Context, orderID uint, amount decimal.Decimal) (res *CreateResult, err error) {
	ctx, span := tracer.Start(ctx, "payment.create", trace.WithAttributes(attribute.Int64("order.id", int64(orderID))))
	defer func() { endSpan(span, err) }()

	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, err
	}

	existing, err := r.paymentForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == models.PaymentStatusFailed {
			return nil, apperr.New(apperr.ErrPaymentExecution, "payment for this order has failed")
		}
		return &CreateResult{Payment: existing, ApprovalURL: existing.ApprovalURL}, nil
	}

	if order.Status != models.OrderStatusPending {
		return nil, apperr.New(apperr.ErrIllegalTransition, fmt.Sprintf("order is %s, only pending orders can be paid", order.Status))
	}
	if !amount.Equal(order.TotalAmount) {
		return nil, apperr.Validation("payment amount does not match the order total")
	}

	intent, err := r.ensureIntent(ctx, &order)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	pp, perr := r.provider.CreatePayment(pctx, CreatePaymentRequest{
		OrderID:     order.ID,
		Amount:      order.TotalAmount,
		Currency:    r.currency,
		Description: fmt.Sprintf("Payment for Order #%d", order.ID),
		RequestID:   intent.RequestID,
	})
	r.metrics.ObservePayment("create", perr)
	if perr != nil {
		r.recordIntentFailure(ctx, intent.ID, perr)
		slog.WarnContext(ctx, "payment provider create failed",
			"order_id", order.ID, "attempt", intent.Attempts, "error", perr)
		return nil, apperr.Wrap(apperr.ErrPaymentGateway, "payment provider unavailable", perr)
	}

	payment := models.Payment{
		OrderID:       order.ID,
		Amount:        order.TotalAmount,
		Status:        models.PaymentStatusPending,
		TransactionID: pp.ID,
		Method:        "PayPal",
		ApprovalURL:   pp.ApprovalURL,
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.PaymentIntent{}).Where("id = ?", intent.ID).
			Updates(map[string]interface{}{"status": models.IntentStatusCreated, "last_error": ""}).Error; err != nil {
			return err
		}
		return outbox.Insert(tx, outbox.TopicPayments, orderKey(order.ID), outbox.EventPaymentCreated, map[string]any{
			"order_id":       order.ID,
			"transaction_id": payment.TransactionID,
			"amount":         payment.Amount.StringFixed(2),
		})
	})
	if database.IsUniqueViolation(err) {
		if winner, lerr := r.paymentForOrder(ctx, orderID); lerr == nil && winner != nil {
			return &CreateResult{Payment: winner, ApprovalURL: winner.ApprovalURL}, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	slog.InfoContext(ctx, "payment created", "order_id", order.ID, "transaction_id", payment.TransactionID)
	return &CreateResult{Payment: &payment, ApprovalURL: payment.ApprovalURL}, nil
}

// Lookup returns a payment by provider transaction id together with its order.
func (r *Reconciler) Lookup(ctx context.Context, transactionID string) (*models.Payment, *models.Order, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperr.NotFound("payment not found")
	}
	if err != nil {
		return nil, nil, err
	}
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, payment.OrderID).Error; err != nil {
		return nil, nil, fmt.Errorf("load order of payment %s: %w", transactionID, err)
	}
	return &payment, &order, nil
}

// terminal answers for payments that no longer need the provider.
func terminal(payment *models.Payment, order *models.Order) (bool, *ExecuteResult, error) {
	switch payment.Status {
	case models.PaymentStatusCompleted:
		return true, &ExecuteResult{Payment: payment, OrderID: order.ID, Status: order.Status}, nil
	case models.PaymentStatusFailed:
		return true, nil, apperr.New(apperr.ErrPaymentExecution, "payment has failed")
	}
	if order.Status == models.OrderStatusCancelled {
		return true, nil, apperr.New(apperr.ErrPaymentExecution, "order was cancelled")
	}
	return false, nil, nil
}

func classifyExecuteError(err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Declined() {
		return apperr.Wrap(apperr.ErrPaymentExecution, "payment execution failed", err)
	}
	return apperr.Wrap(apperr.ErrPaymentGateway, "payment provider unavailable", err)
}

// ExecutePayment captures an approved payment and marks its order paid.
// Replays of a completed payment return the same result without calling the
// provider again.
func (r *Reconciler) ExecutePayment(ctx context.Context, transactionID, payerID string) (res *ExecuteResult, err error) {
	ctx, span := tracer.Start(ctx, "payment.execute", trace.WithAttributes(attribute.String("payment.transaction_id", transactionID)))
	defer func() { endSpan(span, err) }()

	payment, order, err := r.Lookup(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if done, res, err := terminal(payment, order); done {
		return res, err
	}

	if r.locker != nil {
		release, err := r.locker.Acquire(ctx, "payment:execute:"+transactionID, 2*r.timeout)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrPaymentGateway, "payment is being processed, retry later", err)
		}
		defer release()

		if payment, order, err = r.Lookup(ctx, transactionID); err != nil {
			return nil, err
		}
		if done, res, err := terminal(payment, order); done {
			return res, err
		}
	}

	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	pp, perr := r.provider.ExecutePayment(pctx, transactionID, payerID)
	r.metrics.ObservePayment("execute", perr)
	if perr != nil {
		slog.WarnContext(ctx, "payment provider execute failed", "transaction_id", transactionID, "error", perr)
		return nil, classifyExecuteError(perr)
	}
	if pp.State != StateApproved {
		return nil, apperr.New(apperr.ErrPaymentExecution, fmt.Sprintf("payment was not approved (state %q)", pp.State))
	}
	if pp.PayerID != "" {
		payerID = pp.PayerID
	}
	return r.settle(ctx, payment, payerID)
}

// Confirm settles a payment the provider reports as captured on its own.
func (r *Reconciler) Confirm(ctx context.Context, transactionID string) (*ExecuteResult, error) {
	payment, order, err := r.Lookup(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if done, res, err := terminal(payment, order); done {
		return res, err
	}
	return r.settle(ctx, payment, payment.PayerID)
}

// settle moves the payment pending -> completed and its order pending -> paid
// in one transaction. Both updates are conditional on the current status.
func (r *Reconciler) settle(ctx context.Context, payment *models.Payment, payerID string) (*ExecuteResult, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
			Updates(map[string]interface{}{"status": models.PaymentStatusCompleted, "payer_id": payerID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errSettled
		}

		res = tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", payment.OrderID, models.OrderStatusPending).
			Update("status", models.OrderStatusPaid)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.ErrPaymentExecution, "order is no longer pending")
		}

		key := orderKey(payment.OrderID)
		if err := outbox.Insert(tx, outbox.TopicPayments, key, outbox.EventPaymentCaptured, map[string]any{
			"order_id":       payment.OrderID,
			"transaction_id": payment.TransactionID,
			"amount":         payment.Amount.StringFixed(2),
			"payer_id":       payerID,
		}); err != nil {
			return err
		}
		return outbox.Insert(tx, outbox.TopicOrders, key, outbox.EventOrderPaid, map[string]any{
			"order_id": payment.OrderID,
			"from":     models.OrderStatusPending,
			"to":       models.OrderStatusPaid,
		})
	})

	switch {
	case errors.Is(err, errSettled):
		p, o, lerr := r.Lookup(ctx, payment.TransactionID)
		if lerr != nil {
			return nil, lerr
		}
		if p.Status == models.PaymentStatusCompleted {
			return &ExecuteResult{Payment: p, OrderID: o.ID, Status: o.Status}, nil
		}
		return nil, apperr.New(apperr.ErrPaymentExecution, fmt.Sprintf("payment is %s", p.Status))
	case errors.Is(err, apperr.ErrPaymentExecution):
		slog.ErrorContext(ctx, "provider captured a payment for an order that is not pending",
			"order_id", payment.OrderID, "transaction_id", payment.TransactionID)
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("settle payment: %w", err)
	}

	p, o, err := r.Lookup(ctx, payment.TransactionID)
	if err != nil {
		return nil, err
	}
	if r.notifier != nil {
		r.notifier.OrderChanged(*o)
	}
	slog.InfoContext(ctx, "payment completed", "order_id", o.ID, "transaction_id", p.TransactionID)
	return &ExecuteResult{Payment: p, OrderID: o.ID, Status: o.Status}, nil
}

// FailPayment marks a pending payment failed. Terminal payments are left alone.
func (r *Reconciler) FailPayment(ctx context.Context, transactionID, reason string) error {
	payment, _, err := r.Lookup(ctx, transactionID)
	if err != nil {
		return err
	}

	failed := false
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
			Update("status", models.PaymentStatusFailed)
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		if err := tx.Model(&models.PaymentIntent{}).Where("order_id = ?", payment.OrderID).
			Updates(map[string]interface{}{"status": models.IntentStatusFailed, "last_error": reason}).Error; err != nil {
			return err
		}
		if err := outbox.Insert(tx, outbox.TopicPayments, orderKey(payment.OrderID), outbox.EventPaymentFailed, map[string]any{
			"order_id":       payment.OrderID,
			"transaction_id": payment.TransactionID,
			"reason":         reason,
		}); err != nil {
			return err
		}
		failed = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("fail payment: %w", err)
	}
	if !failed {
		slog.DebugContext(ctx, "payment not pending, failure ignored", "transaction_id", transactionID, "status", payment.Status)
		return nil
	}
	r.metrics.ObservePayment("fail", nil)
	slog.InfoContext(ctx, "payment failed", "transaction_id", transactionID, "reason", reason)
	return nil
}

// RetryPayment re-requests a provider payment for a pending order whose
// earlier attempt failed. It returns the existing payment if there is one.
func (r *Reconciler) RetryPayment(ctx context.Context, orderID uint) (*CreateResult, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, err
	}
	return r.CreatePayment(ctx, order.ID, order.TotalAmount)
}

// ResumePending re-drives intents left open by a crash or a provider outage
// and returns how many now have a payment.
func (r *Reconciler) ResumePending(ctx context.Context) (int, error) {
	var intents []models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.IntentStatus{models.IntentStatusStarted, models.IntentStatusFailed}).
		Where("attempts < ?", r.retryLimit).
		Where("order_id IN (?)", r.db.Model(&models.Order{}).Select("id").Where("status = ?", models.OrderStatusPending)).
		Where("NOT EXISTS (SELECT 1 FROM payments WHERE payments.order_id = payment_intents.order_id)").
		Order("id").
		Find(&intents).Error
	if err != nil {
		return 0, fmt.Errorf("load open payment intents: %w", err)
	}

	resumed := 0
	for _, intent := range intents {
		if ctx.Err() != nil {
			break
		}
		if _, err := r.CreatePayment(ctx, intent.OrderID, intent.Amount); err != nil {
			slog.WarnContext(ctx, "resume payment failed", "order_id", intent.OrderID, "error", err)
			continue
		}
		resumed++
	}
	if len(intents) > 0 {
		slog.InfoContext(ctx, "resumed open payment intents", "found", len(intents), "resumed", resumed)
	}
	return resumed, nil
}
