// Package securionpay implements the payment.Gateway interface against the
// SecurionPay REST API.
package securionpay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sajjadh47/securionpay-checkout/internal/domain/payment"
)

// DefaultBaseURL is the production SecurionPay API endpoint.
const DefaultBaseURL = "https://api.securionpay.com"

const defaultTimeout = 30 * time.Second

// Config holds the client's connection settings.
type Config struct {
	// SecretKey authenticates every API call (HTTP basic auth username).
	SecretKey string
	// BaseURL overrides DefaultBaseURL, used to point the client at a stub
	// gateway in tests.
	BaseURL string
	// Timeout bounds each API call. Zero means 30s.
	Timeout time.Duration
}

var _ payment.Gateway = (*Client)(nil)

// Client is an HTTP client for the charge and refund endpoints. Outbound
// calls are traced via otelhttp.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

// NewClient creates a Client from cfg, applying defaults for empty fields.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   baseURL,
		secretKey: cfg.SecretKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Wire representations. Field names follow the SecurionPay charge object.

type cardJSON struct {
	CardholderName string `json:"cardholderName"`
	Number         string `json:"number"`
	CVC            string `json:"cvc"`
	ExpMonth       int    `json:"expMonth"`
	ExpYear        int    `json:"expYear"`
	AddressLine1   string `json:"addressLine1,omitempty"`
	AddressCity    string `json:"addressCity,omitempty"`
	AddressState   string `json:"addressState,omitempty"`
	AddressZip     string `json:"addressZip,omitempty"`
	AddressCountry string `json:"addressCountry,omitempty"`
}

type chargeJSON struct {
	Amount   int64    `json:"amount"`
	Currency string   `json:"currency"`
	Card     cardJSON `json:"card"`
}

type chargeResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Charge creates an authorization-and-capture attempt for the given card and
// amount. Gateway rejections come back as *payment.GatewayError.
func (c *Client) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	body := chargeJSON{
		Amount:   req.Amount,
		Currency: req.Currency,
		Card: cardJSON{
			CardholderName: req.Card.HolderName,
			Number:         req.Card.Number,
			CVC:            req.Card.CVC,
			ExpMonth:       req.Card.ExpMonth,
			ExpYear:        req.Card.ExpYear,
			AddressLine1:   req.Card.AddressLine1,
			AddressCity:    req.Card.AddressCity,
			AddressState:   req.Card.AddressState,
			AddressZip:     req.Card.AddressZip,
			AddressCountry: req.Card.AddressCountry,
		},
	}

	var resp chargeResponse
	if err := c.post(ctx, "/charges", body, &resp); err != nil {
		return nil, err
	}
	return &payment.ChargeResult{TransactionID: resp.ID}, nil
}

// Refund reverses a previously created charge in full. The response carries
// the refunded amount in minor units.
func (c *Client) Refund(ctx context.Context, chargeID string) (*payment.RefundResult, error) {
	var resp chargeResponse
	if err := c.post(ctx, "/charges/"+chargeID+"/refund", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &payment.RefundResult{
		TransactionID: resp.ID,
		Amount:        resp.Amount,
		Currency:      resp.Currency,
	}, nil
}

// post sends an authenticated JSON request and decodes either the success
// payload into out or the structured error object into a GatewayError.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.secretKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "call gateway")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		if err := json.Unmarshal(data, &e); err != nil || e.Error.Message == "" {
			return errors.Errorf("gateway returned status %d", resp.StatusCode)
		}
		return &payment.GatewayError{
			Type:    e.Error.Type,
			Code:    e.Error.Code,
			Message: e.Error.Message,
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
