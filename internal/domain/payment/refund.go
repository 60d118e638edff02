package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/sajjadh47/securionpay-checkout/internal/domain/currency"
	"github.com/sajjadh47/securionpay-checkout/internal/domain/order"
)

// RefundIntent describes what the caller asked for and is allowed to do.
type RefundIntent struct {
	// Requested is true only when the caller explicitly asked for a gateway
	// refund, not merely a status change.
	Requested bool
	// HasPermission reflects the caller's refund permission.
	HasPermission bool
}

// Skip reasons for the refund guard chain. They are logged for auditability
// but never surfaced to the caller: a gated refund is a silent no-op so that
// unauthorized actors learn nothing about order state.
const (
	skipNoPermission    = "no_permission"
	skipNotRequested    = "not_requested"
	skipAlreadyRefunded = "already_refunded"
	skipOtherGateway    = "other_gateway"
	skipNoCredential    = "no_credential"
	skipNoTransactionID = "no_transaction_id"
	skipClaimLost       = "claim_lost"
)

// RefundObserver is notified after a refund has completed successfully.
type RefundObserver func(ctx context.Context, ord *order.Order, res *RefundResult)

// RefundService drives the refund flow: eligibility gating, gateway refund,
// reconciliation, and idempotence.
type RefundService struct {
	store     order.Store
	gateway   Gateway
	secretKey string
	observers []RefundObserver
}

// NewRefundService constructs a RefundService. The secret key is injected so
// the flow can short-circuit when the gateway is not configured.
func NewRefundService(store order.Store, gateway Gateway, secretKey string) *RefundService {
	return &RefundService{
		store:     store,
		gateway:   gateway,
		secretKey: secretKey,
	}
}

// OnRefund registers an observer invoked after each successful refund.
// Not safe for concurrent use with MaybeRefund; register during wiring.
func (s *RefundService) OnRefund(fn RefundObserver) {
	s.observers = append(s.observers, fn)
}

// MaybeRefund refunds the order's charge when every precondition holds, and
// silently does nothing otherwise. Preconditions are evaluated in order:
// caller permission, explicit request, not already refunded, this gateway,
// credential configured, stored transaction id. The final gate atomically
// claims the refunded flag so the gateway is called at most once per order
// even under concurrent requests.
//
// A non-nil error is only returned for store failures; gateway failures are
// reconciled onto the order as notes.
func (s *RefundService) MaybeRefund(ctx context.Context, ord *order.Order, intent RefundIntent) error {
	ctx, span := tracer.Start(ctx, "payment.MaybeRefund")
	defer span.End()

	lg := zctx.From(ctx).With(zap.String("order_id", ord.ID))

	if !intent.HasPermission {
		logSkip(lg, skipNoPermission)
		return nil
	}
	if !intent.Requested {
		logSkip(lg, skipNotRequested)
		return nil
	}

	refunded, ok, err := s.store.GetMetadata(ctx, ord.ID, order.MetaRefunded)
	if err != nil {
		return errors.Wrap(err, "read refunded flag")
	}
	if ok && refunded == "true" {
		logSkip(lg, skipAlreadyRefunded)
		return nil
	}

	if ord.Gateway != GatewayID {
		logSkip(lg, skipOtherGateway)
		return nil
	}
	if s.secretKey == "" {
		logSkip(lg, skipNoCredential)
		return nil
	}

	chargeID, ok, err := s.store.GetMetadata(ctx, ord.ID, order.MetaTransactionID)
	if err != nil {
		return errors.Wrap(err, "read transaction id")
	}
	if !ok || chargeID == "" {
		logSkip(lg, skipNoTransactionID)
		return nil
	}

	// Claim the flag before calling out. Losing the claim means a concurrent
	// request is already refunding this order.
	claimed, err := s.store.ClaimRefund(ctx, ord.ID)
	if err != nil {
		return errors.Wrap(err, "claim refund")
	}
	if !claimed {
		logSkip(lg, skipClaimLost)
		return nil
	}

	return s.refund(ctx, ord, chargeID)
}

// refund performs the gateway call and reconciles the result. The refunded
// flag is already claimed when this runs; a gateway failure releases it.
func (s *RefundService) refund(ctx context.Context, ord *order.Order, chargeID string) error {
	lg := zctx.From(ctx).With(zap.String("order_id", ord.ID))

	res, err := s.gateway.Refund(ctx, chargeID)
	if err != nil {
		msg := err.Error()
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			msg = gwErr.Message
			lg.Info("gateway rejected refund",
				zap.String("error_type", gwErr.Type),
				zap.String("error_code", gwErr.Code),
				zap.String("error_message", gwErr.Message),
			)
		} else {
			lg.Error("gateway refund call failed", zap.Error(err))
		}
		if relErr := s.store.ReleaseRefund(ctx, ord.ID); relErr != nil {
			lg.Error("releasing refund claim failed", zap.Error(relErr))
		}
		if noteErr := s.store.AddNote(ctx, ord.ID, "Securionpay refund failed : "+msg); noteErr != nil {
			lg.Error("adding refund failure note failed", zap.Error(noteErr))
		}
		return nil
	}

	amount := currency.FromMinorUnits(res.Amount, res.Currency)
	note := fmt.Sprintf("Securionpay successfully refunded %s %s", amount, res.Currency)
	if err := s.store.AddNote(ctx, ord.ID, note); err != nil {
		lg.Error("adding refund note failed", zap.Error(err))
	}

	lg.Info("refund completed",
		zap.String("transaction_id", res.TransactionID),
		zap.Int64("amount_minor", res.Amount),
		zap.String("currency", res.Currency),
	)
	for _, fn := range s.observers {
		fn(ctx, ord, res)
	}
	return nil
}

func logSkip(lg *zap.Logger, reason string) {
	lg.Info("refund skipped", zap.String("reason", reason))
}
