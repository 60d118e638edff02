// Package payment implements the card payment lifecycle for store orders:
// checkout purchase, charge reconciliation, and refunds. It drives the order
// Store and the gateway Client but persists nothing on its own.
package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sajjadh47/securionpay-checkout/internal/domain/order"
)

// GatewayID identifies this integration on order records. Refunds are only
// attempted for orders charged through it.
const GatewayID = "securionpay"

// Card carries the card fields collected on the checkout page. Never
// persisted; it lives only for the duration of a single charge attempt.
type Card struct {
	HolderName     string
	Number         string
	CVC            string
	ExpMonth       int
	ExpYear        int
	AddressLine1   string
	AddressCity    string
	AddressState   string
	AddressZip     string
	AddressCountry string
}

// PurchaseRequest is the immutable input of one checkout submission.
type PurchaseRequest struct {
	Amount    decimal.Decimal
	Currency  string
	Email     string
	SessionID string
	Items     []order.LineItem
	Card      Card

	// Token is the one-time security token issued with the checkout page.
	Token string

	// PostData holds the raw submitted form fields, kept for audit logging.
	PostData map[string]string
}

// ChargeRequest is the value object sent to the gateway, built fresh per
// attempt from a PurchaseRequest.
type ChargeRequest struct {
	// Amount is expressed in the currency's minor units.
	Amount   int64
	Currency string
	Card     Card
}

// ChargeResult is a successful gateway charge.
type ChargeResult struct {
	// TransactionID is the gateway charge identifier, stored on the order as
	// order.MetaTransactionID.
	TransactionID string
}

// RefundResult is a successful gateway refund.
type RefundResult struct {
	TransactionID string
	// Amount is the refunded amount in minor units of Currency.
	Amount   int64
	Currency string
}

// Gateway is the remote payment API consumed by the charge and refund flows.
// Failed calls return a *GatewayError when the gateway rejected the request,
// or a plain error for transport problems. Either way the current attempt is
// terminal; neither flow retries.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, chargeID string) (*RefundResult, error)
}

// GatewayError is the structured error object returned by the gateway.
type GatewayError struct {
	Type    string
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error %s/%s: %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway error %s: %s", e.Type, e.Message)
}

// TokenValidator verifies the one-time security token submitted with a
// checkout. A non-nil error means the token is invalid, expired, or replayed.
type TokenValidator interface {
	Validate(token string) error
}
