package paymentControllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Sammyalade/Jumia-backend/config"
	"golang.org/x/oauth2/clientcredentials"
)

// PayPalClient talks to the PayPal REST v1 payments API.
type PayPalClient struct {
	baseURL   string
	returnURL string
	cancelURL string
	http      *http.Client
}

// NewPayPalClient builds a client whose requests carry an OAuth2 token
// obtained with the client credentials grant.
func NewPayPalClient(ctx context.Context, cfg config.PaymentConfig) *PayPalClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/v1/oauth2/token",
	}
	return &PayPalClient{
		baseURL:   base,
		returnURL: cfg.ReturnURL,
		cancelURL: cfg.CancelURL,
		http:      creds.Client(ctx),
	}
}

type paypalLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type paypalPayment struct {
	ID    string       `json:"id"`
	State string       `json:"state"`
	Links []paypalLink `json:"links"`
	Payer struct {
		PayerInfo struct {
			PayerID string `json:"payer_id"`
		} `json:"payer_info"`
	} `json:"payer"`
}

type paypalError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (p *PayPalClient) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*ProviderPayment, error) {
	body := map[string]interface{}{
		"intent": "sale",
		"payer":  map[string]string{"payment_method": "paypal"},
		"redirect_urls": map[string]string{
			"return_url": p.returnURL,
			"cancel_url": p.cancelURL,
		},
		"transactions": []map[string]interface{}{{
			"amount": map[string]string{
				"total":    req.Amount.StringFixed(2),
				"currency": req.Currency,
			},
			"description": req.Description,
		}},
	}

	var out paypalPayment
	if err := p.do(ctx, "/v1/payments/payment", req.RequestID, body, &out); err != nil {
		return nil, err
	}

	payment := &ProviderPayment{ID: out.ID, State: out.State}
	for _, link := range out.Links {
		if link.Rel == "approval_url" {
			payment.ApprovalURL = link.Href
		}
	}
	if payment.ApprovalURL == "" {
		return nil, fmt.Errorf("paypal: payment %s has no approval_url link", out.ID)
	}
	return payment, nil
}

func (p *PayPalClient) ExecutePayment(ctx context.Context, paymentID, payerID string) (*ProviderPayment, error) {
	var out paypalPayment
	path := fmt.Sprintf("/v1/payments/payment/%s/execute", paymentID)
	if err := p.do(ctx, path, "", map[string]string{"payer_id": payerID}, &out); err != nil {
		return nil, err
	}
	return &ProviderPayment{ID: out.ID, State: out.State, PayerID: out.Payer.PayerInfo.PayerID}, nil
}

func (p *PayPalClient) do(ctx context.Context, path, requestID string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("paypal: %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("paypal: read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var pe paypalError
		_ = json.Unmarshal(data, &pe)
		if pe.Message == "" {
			pe.Message = strings.TrimSpace(string(data))
		}
		return &ProviderError{StatusCode: resp.StatusCode, Name: pe.Name, Message: pe.Message}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("paypal: decode %s: %w", path, err)
	}
	return nil
}
