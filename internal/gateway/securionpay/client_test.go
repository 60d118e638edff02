package securionpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajjadh47/securionpay-checkout/internal/domain/payment"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{SecretKey: "sk_test_123", BaseURL: srv.URL})
}

func TestCharge_Success(t *testing.T) {
	var got chargeJSON
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/charges", r.URL.Path)

		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "sk_test_123", user)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "char_abc",
			"amount":   got.Amount,
			"currency": got.Currency,
		})
	})

	res, err := client.Charge(context.Background(), payment.ChargeRequest{
		Amount:   1000,
		Currency: "EUR",
		Card: payment.Card{
			HolderName: "Jane Buyer",
			Number:     "4242424242424242",
			CVC:        "123",
			ExpMonth:   12,
			ExpYear:    2030,
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "char_abc", res.TransactionID)
	assert.EqualValues(t, 1000, got.Amount)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, "Jane Buyer", got.Card.CardholderName)
	assert.Equal(t, 12, got.Card.ExpMonth)
}

func TestCharge_GatewayError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"type":    "card_error",
				"code":    "card_declined",
				"message": "The card was declined",
			},
		})
	})

	_, err := client.Charge(context.Background(), payment.ChargeRequest{Amount: 1000, Currency: "EUR"})

	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "card_error", gwErr.Type)
	assert.Equal(t, "card_declined", gwErr.Code)
	assert.Equal(t, "The card was declined", gwErr.Message)
}

func TestCharge_UnstructuredFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	})

	_, err := client.Charge(context.Background(), payment.ChargeRequest{Amount: 1000, Currency: "EUR"})

	require.Error(t, err)
	var gwErr *payment.GatewayError
	assert.False(t, errors.As(err, &gwErr), "non-JSON failures are not gateway errors")
	assert.Contains(t, err.Error(), "502")
}

func TestRefund_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/charges/char_abc/refund", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "char_abc",
			"amount":   1000,
			"currency": "EUR",
		})
	})

	res, err := client.Refund(context.Background(), "char_abc")

	require.NoError(t, err)
	assert.Equal(t, "char_abc", res.TransactionID)
	assert.EqualValues(t, 1000, res.Amount)
	assert.Equal(t, "EUR", res.Currency)
}

func TestRefund_GatewayError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"type":    "invalid_request",
				"message": "Charge already refunded",
			},
		})
	})

	_, err := client.Refund(context.Background(), "char_abc")

	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "Charge already refunded", gwErr.Message)
}
