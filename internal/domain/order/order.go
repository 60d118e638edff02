// Package order defines the store order record and the persistence contract
// the payment flows depend on. Orders are owned by the store's database; the
// payment code only ever touches them through the Store interface.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is the primitive order lifecycle state. A refund deliberately does
// not transition the status; it sets the MetaRefunded flag instead, matching
// how the store reconciles refunds after the fact.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Metadata keys written by the payment flows.
const (
	// MetaTransactionID holds the gateway charge identifier of a completed
	// purchase. Its presence is what makes an order refundable.
	MetaTransactionID = "transaction_id"

	// MetaRefunded marks an order whose charge has been refunded. Set at most
	// once per order.
	MetaRefunded = "refunded"
)

// Order is a snapshot of a store order as the payment flows see it.
type Order struct {
	ID        string
	Status    Status
	Email     string
	Amount    decimal.Decimal
	Currency  string
	Gateway   string
	Metadata  map[string]string
	Items     []LineItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineItem is a purchased product line.
type LineItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Note is one entry of an order's append-only audit log.
type Note struct {
	Text      string
	CreatedAt time.Time
}

// PendingOrder is the data needed to create an order at the start of a
// purchase flow.
type PendingOrder struct {
	Email    string
	Amount   decimal.Decimal
	Currency string
	Gateway  string
	Items    []LineItem
}

// Store is the persistence contract consumed by the charge and refund flows.
// Implementations own the order record; callers must treat every operation as
// fallible and branch on the returned error.
type Store interface {
	// CreatePending inserts a new order in pending status and returns its ID.
	CreatePending(ctx context.Context, p PendingOrder) (string, error)

	// Get loads an order snapshot, including its metadata.
	Get(ctx context.Context, orderID string) (*Order, error)

	// AddNote appends a line to the order's audit log.
	AddNote(ctx context.Context, orderID, text string) error

	// SetMetadata writes a single metadata key.
	SetMetadata(ctx context.Context, orderID, key, value string) error

	// GetMetadata reads a single metadata key. ok is false when the key is
	// absent.
	GetMetadata(ctx context.Context, orderID, key string) (value string, ok bool, err error)

	// SetStatus transitions the order's primitive status.
	SetStatus(ctx context.Context, orderID string, status Status) error

	// ClaimRefund atomically sets the MetaRefunded flag if it is not already
	// set. It returns false when another caller holds or completed the claim,
	// which guarantees at most one gateway refund per order even under
	// concurrent requests.
	ClaimRefund(ctx context.Context, orderID string) (bool, error)

	// ReleaseRefund clears the MetaRefunded flag after a failed gateway
	// refund, so the order can be retried.
	ReleaseRefund(ctx context.Context, orderID string) error

	// EmptyCart removes all cart lines for the given checkout session.
	EmptyCart(ctx context.Context, sessionID string) error
}
