package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sajjadh47/securionpay-checkout/internal/domain/order"
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL. Line items and
// metadata are serialized to JSONB columns; the refund flag lives inside the
// metadata document so ClaimRefund can test-and-set it in a single statement.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const createOrderSQL = `INSERT INTO orders (id, status, email, amount, currency, gateway, items)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// CreatePending inserts a new order in pending status and returns its ID.
func (s *OrderStore) CreatePending(ctx context.Context, p order.PendingOrder) (string, error) {
	itemsJSON, err := json.Marshal(p.Items)
	if err != nil {
		return "", fmt.Errorf("marshaling order items: %w", err)
	}

	id := uuid.New().String()
	_, err = s.pool.Exec(ctx, createOrderSQL,
		id, order.StatusPending, p.Email, p.Amount, p.Currency, p.Gateway, itemsJSON,
	)
	if err != nil {
		return "", fmt.Errorf("creating order: %w", err)
	}
	return id, nil
}

const getOrderSQL = `SELECT id, status, email, amount, currency, gateway, metadata, items, created_at, updated_at
	FROM orders WHERE id = $1`

// Get loads an order snapshot, including its metadata and line items.
func (s *OrderStore) Get(ctx context.Context, orderID string) (*order.Order, error) {
	var (
		o            order.Order
		metadataJSON []byte
		itemsJSON    []byte
	)
	err := s.pool.QueryRow(ctx, getOrderSQL, orderID).Scan(
		&o.ID, &o.Status, &o.Email, &o.Amount, &o.Currency, &o.Gateway,
		&metadataJSON, &itemsJSON, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("loading order %q: %w", orderID, err)
	}

	if err := json.Unmarshal(metadataJSON, &o.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling order metadata: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling order items: %w", err)
	}
	return &o, nil
}

const addNoteSQL = `INSERT INTO order_notes (order_id, note) VALUES ($1, $2)`

// AddNote appends a line to the order's audit log.
func (s *OrderStore) AddNote(ctx context.Context, orderID, text string) error {
	if _, err := s.pool.Exec(ctx, addNoteSQL, orderID, text); err != nil {
		return fmt.Errorf("adding note to order %q: %w", orderID, err)
	}
	return nil
}

const listNotesSQL = `SELECT note, created_at FROM order_notes WHERE order_id = $1 ORDER BY id`

// Notes returns the order's audit log in insertion order.
func (s *OrderStore) Notes(ctx context.Context, orderID string) ([]order.Note, error) {
	rows, err := s.pool.Query(ctx, listNotesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing notes for order %q: %w", orderID, err)
	}
	defer rows.Close()

	var notes []order.Note
	for rows.Next() {
		var n order.Note
		if err := rows.Scan(&n.Text, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

const setMetadataSQL = `UPDATE orders
	SET metadata = jsonb_set(metadata, ARRAY[$2], to_jsonb($3::text)), updated_at = now()
	WHERE id = $1`

// SetMetadata writes a single metadata key.
func (s *OrderStore) SetMetadata(ctx context.Context, orderID, key, value string) error {
	tag, err := s.pool.Exec(ctx, setMetadataSQL, orderID, key, value)
	if err != nil {
		return fmt.Errorf("setting metadata %q on order %q: %w", key, orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

const getMetadataSQL = `SELECT metadata->>$2 FROM orders WHERE id = $1`

// GetMetadata reads a single metadata key; ok is false when the key is absent.
func (s *OrderStore) GetMetadata(ctx context.Context, orderID, key string) (string, bool, error) {
	var value *string
	err := s.pool.QueryRow(ctx, getMetadataSQL, orderID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, order.ErrNotFound
		}
		return "", false, fmt.Errorf("reading metadata %q of order %q: %w", key, orderID, err)
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

const setStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

// SetStatus transitions the order's primitive status.
func (s *OrderStore) SetStatus(ctx context.Context, orderID string, status order.Status) error {
	tag, err := s.pool.Exec(ctx, setStatusSQL, orderID, status)
	if err != nil {
		return fmt.Errorf("setting status of order %q: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// The WHERE clause makes the claim a compare-and-set: only one concurrent
// caller observes rows_affected = 1.
const claimRefundSQL = `UPDATE orders
	SET metadata = jsonb_set(metadata, '{refunded}', '"true"'), updated_at = now()
	WHERE id = $1 AND COALESCE(metadata->>'refunded', '') <> 'true'`

// ClaimRefund atomically sets the refunded flag if it is not already set.
func (s *OrderStore) ClaimRefund(ctx context.Context, orderID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, claimRefundSQL, orderID)
	if err != nil {
		return false, fmt.Errorf("claiming refund of order %q: %w", orderID, err)
	}
	return tag.RowsAffected() == 1, nil
}

const releaseRefundSQL = `UPDATE orders
	SET metadata = metadata - 'refunded', updated_at = now()
	WHERE id = $1`

// ReleaseRefund clears the refunded flag after a failed gateway refund.
func (s *OrderStore) ReleaseRefund(ctx context.Context, orderID string) error {
	if _, err := s.pool.Exec(ctx, releaseRefundSQL, orderID); err != nil {
		return fmt.Errorf("releasing refund of order %q: %w", orderID, err)
	}
	return nil
}

const emptyCartSQL = `DELETE FROM cart_items WHERE session_id = $1`

// EmptyCart removes all cart lines for the given checkout session.
func (s *OrderStore) EmptyCart(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, emptyCartSQL, sessionID); err != nil {
		return fmt.Errorf("emptying cart %q: %w", sessionID, err)
	}
	return nil
}
