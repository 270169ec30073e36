package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/printmate/order-service/internal/artifact"
	"github.com/printmate/order-service/internal/config"
	"github.com/printmate/order-service/internal/models/order"
	"github.com/printmate/order-service/pkg/limiter"
	"github.com/printmate/order-service/pkg/logger"
	mail "github.com/wneessen/go-mail"
)

// Error is a dispatch failure. Retryable failures may be attempted
// again by the lifecycle; others abandon the order immediately.
type Error struct {
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("dispatch failed (retryable=%t): %s", e.Retryable, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Dispatcher forwards a paid order's artifact to the fulfillment
// channel. It trusts its precondition: the caller guarantees the order
// is Paid and that Dispatch is never called twice for the same order.
type Dispatcher interface {
	Dispatch(ctx context.Context, o *order.Order) error
}

// Email dispatches print jobs to the printer mailbox over SMTP.
type Email struct {
	client    *mail.Client
	artifacts *artifact.Store
	limiter   *limiter.Limiter
	logger    logger.Logger
	from      string
	to        string
}

func NewEmail(
	artifacts *artifact.Store, cfg *config.Config, logger logger.Logger,
) (*Email, error) {
	if artifacts == nil {
		return nil, errors.New("nil dependency: artifact store")
	}
	if cfg == nil {
		return nil, errors.New("nil dependency: config")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTP.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTP.From),
		mail.WithPassword(cfg.SMTP.Password),
		mail.WithTimeout(cfg.Dispatch.SendTimeout),
	}
	if cfg.SMTP.SSL {
		opts = append(opts, mail.WithSSL())
	}

	client, err := mail.NewClient(cfg.SMTP.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &Email{
		client:    client,
		artifacts: artifacts,
		limiter:   limiter.New(cfg.Dispatch.RateInterval, cfg.Dispatch.RateBurst),
		logger:    logger,
		from:      cfg.SMTP.From,
		to:        cfg.SMTP.PrinterTo,
	}, nil
}

var _ Dispatcher = (*Email)(nil)

// Dispatch emails the order's artifact as a PDF attachment.
func (e *Email) Dispatch(ctx context.Context, o *order.Order) error {
	// A missing or unreadable artifact will not heal on retry.
	f, err := e.artifacts.Open(o.ArtifactRef)
	if err != nil {
		return &Error{Err: err, Retryable: false}
	}
	defer f.Close()

	msg := mail.NewMsg()
	if err = msg.From(e.from); err != nil {
		return &Error{Err: fmt.Errorf("set from: %w", err), Retryable: false}
	}
	if err = msg.To(e.to); err != nil {
		return &Error{Err: fmt.Errorf("set to: %w", err), Retryable: false}
	}

	msg.Subject("Print Job")
	msg.SetBodyString(mail.TypeTextPlain,
		fmt.Sprintf("Print job for order %s: %d page(s).", o.ID, o.UnitCount))
	msg.AttachReader(o.Filename, f)

	if err = e.limiter.Wait(ctx); err != nil {
		return &Error{Err: fmt.Errorf("rate limiter: %w", err), Retryable: true}
	}

	if err = e.client.DialAndSendWithContext(ctx, msg); err != nil {
		// The channel being unreachable is worth another attempt.
		return &Error{Err: fmt.Errorf("send mail: %w", err), Retryable: true}
	}

	e.logger.Infof("dispatched order %s (%d pages) to %s", o.ID, o.UnitCount, e.to)

	return nil
}
