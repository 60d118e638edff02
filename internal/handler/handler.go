// Package handler exposes the checkout and admin flows over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/sajjadh47/securionpay-checkout/internal/domain/auth"
	"github.com/sajjadh47/securionpay-checkout/internal/domain/order"
	"github.com/sajjadh47/securionpay-checkout/internal/domain/payment"
)

// Store is the order persistence surface the HTTP layer needs: everything the
// payment flows use, plus reading the audit log for the admin order view.
type Store interface {
	order.Store
	Notes(ctx context.Context, orderID string) ([]order.Note, error)
}

// TokenIssuer mints one-time checkout tokens.
type TokenIssuer interface {
	Issue() string
}

// Handler routes checkout submissions and admin actions to the payment
// services.
type Handler struct {
	charges *payment.ChargeService
	refunds *payment.RefundService
	store   Store
	tokens  TokenIssuer
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(charges *payment.ChargeService, refunds *payment.RefundService, store Store, tokens TokenIssuer) *Handler {
	return &Handler{
		charges: charges,
		refunds: refunds,
		store:   store,
		tokens:  tokens,
	}
}

// Routes builds the router. Admin endpoints are wrapped with adminAuth.
func (h *Handler) Routes(adminAuth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/checkout/token", h.issueToken)
	r.Post("/checkout/purchase", h.processPurchase)

	r.Group(func(r chi.Router) {
		r.Use(adminAuth)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Post("/orders/{orderID}/refund", h.refundOrder)
	})

	return r
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"token": h.tokens.Issue()})
}

// orderResponse is the admin view of an order.
type orderResponse struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Email    string            `json:"email"`
	Amount   string            `json:"amount"`
	Currency string            `json:"currency"`
	Gateway  string            `json:"gateway"`
	Metadata map[string]string `json:"metadata"`
	Notes    []string          `json:"notes"`
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	ord, err := h.store.Get(ctx, orderID)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}
	notes, err := h.store.Notes(ctx, orderID)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	resp := orderResponse{
		ID:       ord.ID,
		Status:   string(ord.Status),
		Email:    ord.Email,
		Amount:   ord.Amount.StringFixed(2),
		Currency: ord.Currency,
		Gateway:  ord.Gateway,
		Metadata: ord.Metadata,
		Notes:    make([]string, 0, len(notes)),
	}
	for _, n := range notes {
		resp.Notes = append(resp.Notes, n.Text)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) refundOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	ord, err := h.store.Get(ctx, orderID)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	key := APIKeyFromContext(ctx)
	intent := payment.RefundIntent{
		Requested:     parseBool(r.FormValue("refund")),
		HasPermission: key.HasScope(auth.ScopeRefunds),
	}

	if err := h.refunds.MaybeRefund(ctx, ord, intent); err != nil {
		zctx.From(ctx).Error("refund flow failed", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Gated refunds are deliberately indistinguishable from processed ones.
	w.WriteHeader(http.StatusNoContent)
}

func writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, order.ErrNotFound) {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	zctx.From(r.Context()).Error("order lookup failed", zap.Error(err))
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseBool(v string) bool {
	switch v {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
