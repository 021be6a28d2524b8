// Package mail delivers the transactional emails the shop sends.
package mail

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/url"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender delivers a password reset link.
type Sender interface {
	SendResetEmail(ctx context.Context, to, resetLink string) error
}

// ResetLink builds the frontend URL a reset token is redeemed at.
func ResetLink(frontendURL, token string) string {
	return fmt.Sprintf("%s/reset?resetToken=%s", frontendURL, url.QueryEscape(token))
}

// SendGrid implements Sender on top of the SendGrid v3 API.
type SendGrid struct {
	apiKey   string
	from     string
	fromName string
}

func NewSendGrid(apiKey, from string) *SendGrid {
	return &SendGrid{apiKey: apiKey, from: from, fromName: "Storefront"}
}

func (c *SendGrid) SendResetEmail(ctx context.Context, to, resetLink string) error {
	if c.apiKey == "" {
		return fmt.Errorf("sendgrid api key is empty")
	}
	if to == "" {
		return fmt.Errorf("to address is empty")
	}

	subject := "Your Password Reset Token"
	plain := fmt.Sprintf("Your password reset link is here:\n\n%s\n\nIt expires in one hour.", resetLink)
	htmlBody := fmt.Sprintf(`<div style="font-family: sans-serif; line-height: 2; font-size: 20px;">
<h2>Hello there!</h2>
<p>Your password reset link is here:</p>
<p><a href="%s">Click here to reset</a></p>
<p>It expires in one hour.</p>
</div>`, html.EscapeString(resetLink))

	message := sgmail.NewSingleEmail(
		sgmail.NewEmail(c.fromName, c.from),
		subject,
		sgmail.NewEmail("", to),
		plain,
		htmlBody,
	)

	client := sendgrid.NewSendClient(c.apiKey)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}

	log.Printf("[sendgrid] reset mail sent: status=%d to=%s", response.StatusCode, to)
	return nil
}

// LogSender writes reset links to the log instead of sending them. It is
// used outside production when no SendGrid key is configured.
type LogSender struct{}

func (LogSender) SendResetEmail(ctx context.Context, to, resetLink string) error {
	log.Printf("[mail] reset link for %s: %s", to, resetLink)
	return nil
}
