//go:build integration

package integration

import (
	"net/http"
	"net/url"
	"testing"
)

func TestAdmin_OrderRequiresAPIKey(t *testing.T) {
	orderID := submitPurchase(t)

	resp := doGet(t, "/orders/"+orderID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAdmin_WrongAPIKeyRejected(t *testing.T) {
	orderID := submitPurchase(t)

	resp := doGetWithKey(t, "/orders/"+orderID, "not-the-key")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAdmin_UnknownOrderIs404(t *testing.T) {
	resp := doGetWithKey(t, "/orders/no-such-order", adminKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// Refunds are gated silently: without a gateway credential the request is
// accepted but nothing changes on the order.
func TestAdmin_RefundWithoutCredentialIsNoop(t *testing.T) {
	orderID := submitPurchase(t)

	resp := doPostForm(t, "/orders/"+orderID+"/refund", url.Values{"refund": {"true"}}, adminKey)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	after := doGetWithKey(t, "/orders/"+orderID, adminKey)
	defer after.Body.Close()
	ord := decodeJSON[orderResponse](t, after)

	if ord.Metadata["refunded"] != "" {
		t.Fatalf("refunded flag set to %q, want unset", ord.Metadata["refunded"])
	}
}

func TestAdmin_RefundRequiresAPIKey(t *testing.T) {
	orderID := submitPurchase(t)

	resp := doPostForm(t, "/orders/"+orderID+"/refund", url.Values{"refund": {"true"}}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
