package notify

import (
	"context"
	"errors"
	"fmt"

	"facewatch/internal/config"
	"facewatch/internal/models"

	"gopkg.in/gomail.v2"
)

// maxPendingSends caps the SMTP exchanges still running, including those whose
// delivery already timed out.
const maxPendingSends = 4

// ErrMailBusy is returned without sending while every send slot is taken by
// an SMTP exchange that has not finished.
var ErrMailBusy = errors.New("smtp sends pending")

// mailSender is satisfied by *gomail.Dialer.
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailTransport sends each alert as a plain-text mail over SMTP.
type EmailTransport struct {
	from   string
	to     string
	sender mailSender
	slots  chan struct{}
}

// NewEmailTransport dials host:port with the sender credentials for every
// alert. Port 465 uses implicit TLS.
func NewEmailTransport(cfg config.EmailConfig) *EmailTransport {
	return &EmailTransport{
		from:   cfg.Address,
		to:     cfg.To,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Address, cfg.Password),
		slots:  make(chan struct{}, maxPendingSends),
	}
}

func (t *EmailTransport) Name() string { return "email" }

func (t *EmailTransport) message(alert models.Alert) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", t.to)
	m.SetHeader("Subject", alert.Subject)
	m.SetDateHeader("Date", alert.CreatedAt)
	m.SetBody("text/plain", alert.Message)
	return m
}

// Deliver sends the mail. gomail has no context support, so a timed out
// delivery is reported while the SMTP exchange finishes in the background,
// holding its send slot until then. With no free slot Deliver fails at once.
func (t *EmailTransport) Deliver(ctx context.Context, alert models.Alert) error {
	select {
	case t.slots <- struct{}{}:
	default:
		return fmt.Errorf("failed to send email: %w", ErrMailBusy)
	}

	m := t.message(alert)

	done := make(chan error, 1)
	go func() {
		defer func() { <-t.slots }()
		done <- t.sender.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to send email: %w", ctx.Err())
	}
}

// Pending returns the number of SMTP exchanges still running.
func (t *EmailTransport) Pending() int {
	return len(t.slots)
}
