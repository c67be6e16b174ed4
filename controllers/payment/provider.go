package paymentControllers

//go:generate mockgen -destination=mocks/provider.go -package=mocks . Provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// Provider is the external payment service.
type Provider interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*ProviderPayment, error)
	ExecutePayment(ctx context.Context, paymentID, payerID string) (*ProviderPayment, error)
}

type CreatePaymentRequest struct {
	OrderID     uint
	Amount      decimal.Decimal
	Currency    string
	Description string
	// RequestID lets the provider collapse retries of the same create call.
	RequestID string
}

// ProviderPayment is the provider's view of a payment.
type ProviderPayment struct {
	ID          string
	State       string
	ApprovalURL string
	PayerID     string
}

// StateApproved is the provider state of an executed sale.
const StateApproved = "approved"

// ProviderError is a non-2xx answer from the provider.
type ProviderError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d %s: %s", e.StatusCode, e.Name, e.Message)
}

// Declined reports whether the provider refused the request itself, as
// opposed to being unavailable.
func (e *ProviderError) Declined() bool {
	return e.StatusCode >= http.StatusBadRequest && e.StatusCode < http.StatusInternalServerError
}
