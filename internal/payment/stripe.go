package payment

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/example/storefront/internal/apperr"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// Stripe charges card tokens through the Stripe Charges API.
type Stripe struct {
	api *client.API
}

func NewStripe(secretKey string) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Stripe{api: api}
}

func (s *Stripe) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	if req.Amount <= 0 {
		return "", apperr.Validation("charge amount must be positive")
	}
	if req.Source == "" {
		return "", apperr.Validation("payment token is required")
	}
	params := &stripe.ChargeParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if err := params.SetSource(req.Source); err != nil {
		return "", apperr.Validation("invalid payment token")
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	ch, err := s.api.Charges.New(params)
	if err != nil {
		return "", classify(err)
	}
	if !ch.Paid || ch.Status == "failed" {
		return "", apperr.New(apperr.KindPaymentDeclined, "your payment was declined")
	}
	log.Printf("[stripe] charge %s succeeded amount=%d %s", ch.ID, req.Amount, req.Currency)
	return ch.ID, nil
}

// classify maps Stripe failures onto the payment error kinds. Card errors are
// declines; everything else (network, auth, rate limits, API errors) is a
// gateway error.
func classify(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		if se.Type == stripe.ErrorTypeCard {
			msg := se.Msg
			if msg == "" {
				msg = "your card was declined"
			}
			return apperr.Wrap(apperr.KindPaymentDeclined, msg, err)
		}
		return apperr.Wrap(apperr.KindPaymentGatewayError, "payment gateway error", fmt.Errorf("stripe %s: %w", se.Type, err))
	}
	return apperr.Wrap(apperr.KindPaymentGatewayError, "payment gateway unreachable", err)
}
