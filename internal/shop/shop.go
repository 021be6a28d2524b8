// Package shop is the resolver layer of the storefront: every named operation
// the transport exposes lives here. Operations read the caller from the
// context (see auth.WithPrincipal) and return *apperr.Error failures.
package shop

import (
	"context"
	"time"

	"github.com/example/storefront/internal/access"
	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/mail"
	"github.com/example/storefront/internal/payment"
	"github.com/example/storefront/internal/store"
)

// ResetTokenTTL is how long a password reset token stays redeemable.
const ResetTokenTTL = time.Hour

type Options struct {
	DB          store.DB
	Credentials *auth.Credentials
	Gateway     payment.Gateway
	Mailer      mail.Sender
	FrontendURL string
	Currency    string
	// Now defaults to time.Now
	Now func() time.Time
}

type Shop struct {
	db          store.DB
	creds       *auth.Credentials
	gateway     payment.Gateway
	mailer      mail.Sender
	frontendURL string
	currency    string
	now         func() time.Time
}

func New(opts Options) *Shop {
	s := &Shop{
		db:          opts.DB,
		creds:       opts.Credentials,
		gateway:     opts.Gateway,
		mailer:      opts.Mailer,
		frontendURL: opts.FrontendURL,
		currency:    opts.Currency,
		now:         opts.Now,
	}
	if s.gateway == nil {
		s.gateway = payment.Unconfigured{}
	}
	if s.mailer == nil {
		s.mailer = mail.LogSender{}
	}
	if s.currency == "" {
		s.currency = "usd"
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func principal(ctx context.Context) *access.Principal {
	return auth.PrincipalFrom(ctx)
}
