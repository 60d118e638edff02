package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sajjadh47/securionpay-checkout/internal/domain/currency"
	"github.com/sajjadh47/securionpay-checkout/internal/domain/order"
)

var tracer = otel.Tracer("securionpay-checkout/payment")

// ErrInvalidToken is returned when the checkout security token fails
// verification. No order is created in that case.
var ErrInvalidToken = errors.New("security token verification failed")

// Result classifies the end state of a purchase flow.
type Result string

const (
	// ResultCompleted means the card was charged and the order completed.
	ResultCompleted Result = "completed"
	// ResultFailed means the charge was attempted or skipped and the order is
	// marked failed.
	ResultFailed Result = "failed"
	// ResultRetryCheckout means the order could not be created; the buyer
	// should resubmit the checkout.
	ResultRetryCheckout Result = "retry_checkout"
)

// Outcome is what a finished purchase flow reports back to the HTTP layer.
type Outcome struct {
	Result        Result
	OrderID       string
	TransactionID string
	// RedirectURL is where the buyer should be sent next.
	RedirectURL string
}

// ChargeConfig holds the injected configuration for the purchase flow.
type ChargeConfig struct {
	// SecretKey is the gateway API secret. An empty value is a valid state
	// that short-circuits charging.
	SecretKey string

	// Buyer-facing destinations for each flow outcome.
	SuccessURL  string
	FailureURL  string
	CheckoutURL string
}

// ChargeService drives the purchase flow: pending order, precondition gates,
// gateway charge, outcome reconciliation.
type ChargeService struct {
	store   order.Store
	gateway Gateway
	tokens  TokenValidator
	cfg     ChargeConfig
}

// NewChargeService constructs a ChargeService with its collaborators and
// configuration.
func NewChargeService(store order.Store, gateway Gateway, tokens TokenValidator, cfg ChargeConfig) *ChargeService {
	return &ChargeService{
		store:   store,
		gateway: gateway,
		tokens:  tokens,
		cfg:     cfg,
	}
}

// ProcessPurchase runs one checkout submission to completion. Every step is a
// hard gate: validation failure aborts before any side effect, order-creation
// failure sends the buyer back to checkout, and gateway failures are
// reconciled onto the order instead of propagating. The only error returned
// is ErrInvalidToken or a store failure while reading/writing the order.
func (s *ChargeService) ProcessPurchase(ctx context.Context, req PurchaseRequest) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "payment.ProcessPurchase")
	defer span.End()
	span.SetAttributes(attribute.String("currency", req.Currency))

	lg := zctx.From(ctx)

	if err := s.tokens.Validate(req.Token); err != nil {
		lg.Warn("checkout token rejected", zap.Error(err))
		return nil, ErrInvalidToken
	}

	orderID, err := s.store.CreatePending(ctx, order.PendingOrder{
		Email:    req.Email,
		Amount:   req.Amount,
		Currency: req.Currency,
		Gateway:  GatewayID,
		Items:    req.Items,
	})
	if err != nil {
		lg.Error("pending order creation failed", zap.Error(err))
		return &Outcome{
			Result:      ResultRetryCheckout,
			RedirectURL: s.cfg.CheckoutURL,
		}, nil
	}
	lg = lg.With(zap.String("order_id", orderID))

	if s.cfg.SecretKey == "" {
		// Without a credential the charge can never be attempted. Reconcile
		// the order as failed so it is not stranded in pending.
		lg.Error("gateway secret key not configured")
		s.noteAndFail(ctx, orderID, "Payment not attempted: gateway credentials are not configured")
		return &Outcome{
			Result:      ResultFailed,
			OrderID:     orderID,
			RedirectURL: s.cfg.FailureURL,
		}, nil
	}

	charge := ChargeRequest{
		Amount:   currency.MinorUnits(req.Amount, req.Currency),
		Currency: req.Currency,
		Card:     req.Card,
	}

	res, err := s.gateway.Charge(ctx, charge)
	if err != nil {
		msg := err.Error()
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			msg = gwErr.Message
			lg.Info("gateway declined charge",
				zap.String("error_type", gwErr.Type),
				zap.String("error_code", gwErr.Code),
				zap.String("error_message", gwErr.Message),
			)
		} else {
			lg.Error("gateway charge call failed", zap.Error(err))
		}
		s.noteAndFail(ctx, orderID, msg)
		return &Outcome{
			Result:      ResultFailed,
			OrderID:     orderID,
			RedirectURL: s.cfg.FailureURL,
		}, nil
	}

	// The charge went through; from here on store failures are logged but do
	// not alter the outcome, since the buyer has already been billed.
	if err := s.store.SetMetadata(ctx, orderID, order.MetaTransactionID, res.TransactionID); err != nil {
		lg.Error("storing transaction id failed", zap.Error(err))
	}
	if err := s.store.AddNote(ctx, orderID, "Transaction ID : "+res.TransactionID); err != nil {
		lg.Error("adding transaction note failed", zap.Error(err))
	}
	if err := s.store.EmptyCart(ctx, req.SessionID); err != nil {
		lg.Error("emptying cart failed", zap.Error(err))
	}
	if err := s.store.SetStatus(ctx, orderID, order.StatusCompleted); err != nil {
		lg.Error("completing order failed", zap.Error(err))
	}

	lg.Info("purchase completed", zap.String("transaction_id", res.TransactionID))
	return &Outcome{
		Result:        ResultCompleted,
		OrderID:       orderID,
		TransactionID: res.TransactionID,
		RedirectURL:   s.cfg.SuccessURL,
	}, nil
}

// noteAndFail records the failure reason and transitions the order to failed.
func (s *ChargeService) noteAndFail(ctx context.Context, orderID, note string) {
	lg := zctx.From(ctx)
	if err := s.store.AddNote(ctx, orderID, note); err != nil {
		lg.Error("adding failure note failed", zap.Error(err))
	}
	if err := s.store.SetStatus(ctx, orderID, order.StatusFailed); err != nil {
		lg.Error("failing order failed", zap.Error(err))
	}
}
