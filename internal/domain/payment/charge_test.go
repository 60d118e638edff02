package payment

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajjadh47/securionpay-checkout/internal/domain/order"
)

// --- Mock implementations ---

type mockStore struct {
	createErr error
	nextID    string
	created   *order.PendingOrder

	notes    []string
	metadata map[string]string
	statuses []order.Status
	emptied  []string

	metaErr  error
	claimErr error
	released bool
}

func newMockStore() *mockStore {
	return &mockStore{nextID: "ord-1", metadata: map[string]string{}}
}

func (m *mockStore) CreatePending(_ context.Context, p order.PendingOrder) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created = &p
	return m.nextID, nil
}

func (m *mockStore) Get(_ context.Context, orderID string) (*order.Order, error) {
	return &order.Order{ID: orderID, Metadata: m.metadata}, nil
}

func (m *mockStore) AddNote(_ context.Context, _, text string) error {
	m.notes = append(m.notes, text)
	return nil
}

func (m *mockStore) SetMetadata(_ context.Context, _, key, value string) error {
	if m.metaErr != nil {
		return m.metaErr
	}
	m.metadata[key] = value
	return nil
}

func (m *mockStore) GetMetadata(_ context.Context, _, key string) (string, bool, error) {
	if m.metaErr != nil {
		return "", false, m.metaErr
	}
	v, ok := m.metadata[key]
	return v, ok, nil
}

func (m *mockStore) SetStatus(_ context.Context, _ string, status order.Status) error {
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *mockStore) ClaimRefund(_ context.Context, _ string) (bool, error) {
	if m.claimErr != nil {
		return false, m.claimErr
	}
	if m.metadata[order.MetaRefunded] == "true" {
		return false, nil
	}
	m.metadata[order.MetaRefunded] = "true"
	return true, nil
}

func (m *mockStore) ReleaseRefund(_ context.Context, _ string) error {
	delete(m.metadata, order.MetaRefunded)
	m.released = true
	return nil
}

func (m *mockStore) EmptyCart(_ context.Context, sessionID string) error {
	m.emptied = append(m.emptied, sessionID)
	return nil
}

type mockGateway struct {
	chargeRes *ChargeResult
	chargeErr error
	refundRes *RefundResult
	refundErr error

	chargeCalls []ChargeRequest
	refundCalls []string
}

func (m *mockGateway) Charge(_ context.Context, req ChargeRequest) (*ChargeResult, error) {
	m.chargeCalls = append(m.chargeCalls, req)
	if m.chargeErr != nil {
		return nil, m.chargeErr
	}
	return m.chargeRes, nil
}

func (m *mockGateway) Refund(_ context.Context, chargeID string) (*RefundResult, error) {
	m.refundCalls = append(m.refundCalls, chargeID)
	if m.refundErr != nil {
		return nil, m.refundErr
	}
	return m.refundRes, nil
}

type mockTokens struct {
	err error
}

func (m *mockTokens) Validate(string) error { return m.err }

// --- Helpers ---

func testConfig() ChargeConfig {
	return ChargeConfig{
		SecretKey:   "sk_test_123",
		SuccessURL:  "https://shop.test/thanks",
		FailureURL:  "https://shop.test/failed",
		CheckoutURL: "https://shop.test/checkout",
	}
}

func testPurchase() PurchaseRequest {
	return PurchaseRequest{
		Amount:    decimal.RequireFromString("10.00"),
		Currency:  "EUR",
		Email:     "buyer@example.com",
		SessionID: "sess-42",
		Token:     "tok",
		Items: []order.LineItem{
			{Name: "Widget", Price: decimal.RequireFromString("10.00"), Quantity: 1},
		},
		Card: Card{
			HolderName: "Jane Buyer",
			Number:     "4242424242424242",
			CVC:        "123",
			ExpMonth:   12,
			ExpYear:    2030,
		},
	}
}

// --- Tests ---

func TestProcessPurchase_InvalidToken(t *testing.T) {
	store := newMockStore()
	gw := &mockGateway{}
	svc := NewChargeService(store, gw, &mockTokens{err: errors.New("bad mac")}, testConfig())

	_, err := svc.ProcessPurchase(context.Background(), testPurchase())

	require.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, store.created, "no order may be created on token failure")
	assert.Empty(t, gw.chargeCalls)
}

func TestProcessPurchase_OrderCreationFails(t *testing.T) {
	store := newMockStore()
	store.createErr = errors.New("db down")
	gw := &mockGateway{}
	svc := NewChargeService(store, gw, &mockTokens{}, testConfig())

	out, err := svc.ProcessPurchase(context.Background(), testPurchase())

	require.NoError(t, err)
	assert.Equal(t, ResultRetryCheckout, out.Result)
	assert.Equal(t, "https://shop.test/checkout", out.RedirectURL)
	assert.Empty(t, gw.chargeCalls, "no charge may be attempted without an order")
}

func TestProcessPurchase_MissingSecretKey(t *testing.T) {
	store := newMockStore()
	gw := &mockGateway{}
	cfg := testConfig()
	cfg.SecretKey = ""
	svc := NewChargeService(store, gw, &mockTokens{}, cfg)

	out, err := svc.ProcessPurchase(context.Background(), testPurchase())

	require.NoError(t, err)
	assert.Equal(t, ResultFailed, out.Result)
	assert.Equal(t, "https://shop.test/failed", out.RedirectURL)
	assert.Empty(t, gw.chargeCalls)
	assert.Equal(t, []order.Status{order.StatusFailed}, store.statuses)
	require.Len(t, store.notes, 1)
	assert.Contains(t, store.notes[0], "not configured")
}

func TestProcessPurchase_Success(t *testing.T) {
	store := newMockStore()
	gw := &mockGateway{chargeRes: &ChargeResult{TransactionID: "char_abc"}}
	svc := NewChargeService(store, gw, &mockTokens{}, testConfig())

	out, err := svc.ProcessPurchase(context.Background(), testPurchase())

	require.NoError(t, err)
	assert.Equal(t, ResultCompleted, out.Result)
	assert.Equal(t, "ord-1", out.OrderID)
	assert.Equal(t, "char_abc", out.TransactionID)
	assert.Equal(t, "https://shop.test/thanks", out.RedirectURL)

	require.NotNil(t, store.created)
	assert.Equal(t, GatewayID, store.created.Gateway)
	assert.Equal(t, "char_abc", store.metadata[order.MetaTransactionID])
	assert.Contains(t, store.notes, "Transaction ID : char_abc")
	assert.Equal(t, []string{"sess-42"}, store.emptied)
	assert.Equal(t, []order.Status{order.StatusCompleted}, store.statuses)
}

func TestProcessPurchase_AmountNormalization(t *testing.T) {
	store := newMockStore()
	gw := &mockGateway{chargeRes: &ChargeResult{TransactionID: "char_abc"}}
	svc := NewChargeService(store, gw, &mockTokens{}, testConfig())

	req := testPurchase()
	_, err := svc.ProcessPurchase(context.Background(), req)
	require.NoError(t, err)

	req.Currency = "JPY"
	_, err = svc.ProcessPurchase(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, gw.chargeCalls, 2)
	assert.EqualValues(t, 1000, gw.chargeCalls[0].Amount, "10.00 EUR is 1000 cents")
	assert.Equal(t, "EUR", gw.chargeCalls[0].Currency)
	assert.EqualValues(t, 10, gw.chargeCalls[1].Amount, "JPY has no minor unit")
	assert.Equal(t, req.Card, gw.chargeCalls[1].Card)
}

func TestProcessPurchase_GatewayDeclined(t *testing.T) {
	store := newMockStore()
	gw := &mockGateway{chargeErr: &GatewayError{
		Type:    "card_error",
		Code:    "insufficient_funds",
		Message: "The card has insufficient funds",
	}}
	svc := NewChargeService(store, gw, &mockTokens{}, testConfig())

	out, err := svc.ProcessPurchase(context.Background(), testPurchase())

	require.NoError(t, err)
	assert.Equal(t, ResultFailed, out.Result)
	assert.Equal(t, "https://shop.test/failed", out.RedirectURL)
	assert.NotContains(t, store.metadata, order.MetaTransactionID)
	assert.Equal(t, []order.Status{order.StatusFailed}, store.statuses)
	require.Len(t, store.notes, 1)
	assert.Contains(t, store.notes[0], "insufficient funds")
	assert.Empty(t, store.emptied, "cart must be kept on failure")
}

func TestProcessPurchase_GatewayTransportError(t *testing.T) {
	store := newMockStore()
	gw := &mockGateway{chargeErr: errors.New("connection reset")}
	svc := NewChargeService(store, gw, &mockTokens{}, testConfig())

	out, err := svc.ProcessPurchase(context.Background(), testPurchase())

	require.NoError(t, err)
	assert.Equal(t, ResultFailed, out.Result)
	assert.Equal(t, []order.Status{order.StatusFailed}, store.statuses)
	require.Len(t, store.notes, 1)
	assert.Contains(t, store.notes[0], "connection reset")
}
