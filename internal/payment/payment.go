// Package payment submits charges to the payment gateway.
package payment

import (
	"context"

	"github.com/example/storefront/internal/apperr"
)

// ChargeRequest is one charge attempt. Amount is in minor currency units and
// Source is the one-time token produced by the client-side checkout.
type ChargeRequest struct {
	Amount         int64
	Currency       string
	Source         string
	Description    string
	IdempotencyKey string
}

// Gateway charges a funding source. Failures are *apperr.Error of kind
// PaymentDeclined or PaymentGatewayError.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (chargeID string, err error)
}

// Unconfigured rejects every charge; it stands in when no gateway key is set.
type Unconfigured struct{}

func (Unconfigured) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	return "", apperr.New(apperr.KindPaymentGatewayError, "payments are not configured")
}
