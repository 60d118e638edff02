package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sajjadh47/securionpay-checkout/internal/domain/order"
	"github.com/sajjadh47/securionpay-checkout/internal/domain/payment"
)

// processPurchase handles a checkout form submission. The browser is sent a
// 303 redirect to wherever the purchase flow decided: success page, failure
// page, or back to checkout. An invalid security token is the one hard error.
func (h *Handler) processPurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := parsePurchaseForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := h.charges.ProcessPurchase(ctx, *req)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidToken) {
			http.Error(w, "security token verification failed", http.StatusForbidden)
			return
		}
		zctx.From(ctx).Error("purchase flow failed", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, redirectTarget(out), http.StatusSeeOther)
}

// redirectTarget appends the order reference to the outcome's destination so
// the landing page can identify the purchase.
func redirectTarget(out *payment.Outcome) string {
	if out.OrderID == "" {
		return out.RedirectURL
	}
	u, err := url.Parse(out.RedirectURL)
	if err != nil {
		return out.RedirectURL
	}
	q := u.Query()
	q.Set("order_id", out.OrderID)
	u.RawQuery = q.Encode()
	return u.String()
}

// parsePurchaseForm maps the submitted checkout fields onto a PurchaseRequest.
// Line items arrive as a JSON array in the "items" field; everything else is
// flat form values.
func parsePurchaseForm(r *http.Request) (*payment.PurchaseRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errors.Wrap(err, "parse form")
	}

	amount, err := decimal.NewFromString(r.PostFormValue("amount"))
	if err != nil {
		return nil, errors.New("invalid amount")
	}
	if amount.IsNegative() {
		return nil, errors.New("invalid amount")
	}
	currency := r.PostFormValue("currency")
	if currency == "" {
		return nil, errors.New("currency is required")
	}

	var items []order.LineItem
	if raw := r.PostFormValue("items"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, errors.New("invalid items")
		}
	}

	expMonth, _ := strconv.Atoi(r.PostFormValue("card_exp_month"))
	expYear, _ := strconv.Atoi(r.PostFormValue("card_exp_year"))

	postData := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		postData[k] = r.PostFormValue(k)
	}

	return &payment.PurchaseRequest{
		Amount:    amount,
		Currency:  currency,
		Email:     r.PostFormValue("email"),
		SessionID: r.PostFormValue("session_id"),
		Items:     items,
		Token:     r.PostFormValue("token"),
		PostData:  postData,
		Card: payment.Card{
			HolderName:     r.PostFormValue("card_name"),
			Number:         r.PostFormValue("card_number"),
			CVC:            r.PostFormValue("card_cvc"),
			ExpMonth:       expMonth,
			ExpYear:        expYear,
			AddressLine1:   r.PostFormValue("card_address"),
			AddressCity:    r.PostFormValue("card_city"),
			AddressState:   r.PostFormValue("card_state"),
			AddressZip:     r.PostFormValue("card_zip"),
			AddressCountry: r.PostFormValue("card_country"),
		},
	}, nil
}
