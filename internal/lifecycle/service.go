package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/printmate/order-service/internal/artifact"
	"github.com/printmate/order-service/internal/config"
	"github.com/printmate/order-service/internal/dispatch"
	"github.com/printmate/order-service/internal/extract"
	"github.com/printmate/order-service/internal/metrics"
	"github.com/printmate/order-service/internal/models/errs"
	"github.com/printmate/order-service/internal/models/order"
	"github.com/printmate/order-service/internal/pricing"
	"github.com/printmate/order-service/internal/store"
	"github.com/printmate/order-service/pkg/logger"
)

// PaymentGateway is the external payment collaborator.
type PaymentGateway interface {
	// RequestPayment issues a payment request and returns its handle.
	RequestPayment(ctx context.Context, requesterID string, amount int64,
		currency, description string) (handle string, err error)
}

// Notifier is the outbound side of the chat transport.
type Notifier interface {
	SendText(ctx context.Context, requesterID, text string) error
	SendInvoice(ctx context.Context, requesterID, title, description string,
		amount int64, currency, handle string) error
}

// Service is the order lifecycle state machine. It owns every status
// transition and guarantees dispatch happens at most once per order.
type Service struct {
	store      store.OrderStore
	artifacts  *artifact.Store
	extractor  extract.Extractor
	dispatcher dispatch.Dispatcher
	payments   PaymentGateway
	notifier   Notifier
	calc       *pricing.Calculator
	config     *config.Config
	logger     logger.Logger
	done       chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

func NewService(
	orderStore store.OrderStore,
	artifacts *artifact.Store,
	extractor extract.Extractor,
	dispatcher dispatch.Dispatcher,
	payments PaymentGateway,
	notifier Notifier,
	calc *pricing.Calculator,
	cfg *config.Config,
	logger logger.Logger,
) (*Service, error) {
	if orderStore == nil {
		return nil, errors.New("nil dependency: order store")
	}
	if artifacts == nil {
		return nil, errors.New("nil dependency: artifact store")
	}
	if extractor == nil {
		return nil, errors.New("nil dependency: extractor")
	}
	if dispatcher == nil {
		return nil, errors.New("nil dependency: dispatcher")
	}
	if payments == nil {
		return nil, errors.New("nil dependency: payment gateway")
	}
	if notifier == nil {
		return nil, errors.New("nil dependency: notifier")
	}
	if calc == nil {
		return nil, errors.New("nil dependency: pricing calculator")
	}
	if cfg == nil {
		return nil, errors.New("nil dependency: config")
	}

	return &Service{
		store:      orderStore,
		artifacts:  artifacts,
		extractor:  extractor,
		dispatcher: dispatcher,
		payments:   payments,
		notifier:   notifier,
		calc:       calc,
		config:     cfg,
		logger:     logger,
		done:       make(chan struct{}),
	}, nil
}

// OnUpload handles an artifact-upload event. It prices the artifact,
// stores a Pending order (replacing any outstanding one for the same
// requester), requests payment and advances the order to
// AwaitingPayment. No order is created for an unprocessable artifact.
func (s *Service) OnUpload(
	ctx context.Context, requesterID string, r io.Reader, filename string,
) (*order.Order, error) {
	metrics.UploadsTotal.Inc()

	if requesterID == "" {
		metrics.UploadsRejectedTotal.Inc()
		return nil, fmt.Errorf("%w: empty requester id", errs.ErrInvalidRequest)
	}

	ref, err := s.artifacts.Save(r, filename)
	if err != nil {
		metrics.UploadsRejectedTotal.Inc()
		return nil, fmt.Errorf("save artifact: %w", err)
	}

	unitCount, err := s.extractor.CountUnits(ctx, s.artifacts.Path(ref))
	if err != nil {
		s.releaseArtifact(ref)
		metrics.UploadsRejectedTotal.Inc()
		return nil, err
	}

	amount, err := s.calc.Price(unitCount)
	if err != nil {
		s.releaseArtifact(ref)
		metrics.UploadsRejectedTotal.Inc()
		return nil, err
	}

	o := order.New(requesterID, ref, filename, unitCount, amount, s.calc.Currency())

	// Last write wins: a new upload replaces any outstanding order.
	replaced, err := s.store.Put(ctx, o)
	if err != nil {
		s.releaseArtifact(ref)
		return nil, fmt.Errorf("store order: %w", err)
	}
	if replaced != nil && !replaced.Status.Terminal() {
		s.logger.Infof("order %s replaced by new upload from %s", replaced.ID, requesterID)
		s.releaseArtifact(replaced.ArtifactRef)
	}

	description := fmt.Sprintf("Printing %d page(s)", unitCount)

	handle, err := s.payments.RequestPayment(ctx, requesterID, amount,
		o.Currency, description)
	if err != nil {
		// The requester must never end up with an unpayable order.
		s.abandon(ctx, requesterID, ref)
		return nil, fmt.Errorf("request payment: %w", err)
	}

	o, err = s.store.AttachPayment(ctx, requesterID, o.ID, handle)
	if err != nil {
		// The order was replaced while the payment request was in
		// flight. The newer order owns the requester slot now.
		s.logger.Infof("attach payment for %s: %s", requesterID, err)
		return nil, fmt.Errorf("attach payment: %w", err)
	}

	if err = s.notifier.SendInvoice(ctx, requesterID, "Print Job", description,
		amount, o.Currency, handle); err != nil {
		s.logger.Errorf("send invoice to %s: %s", requesterID, err)
	}

	return o, nil
}

// OnPaymentConfirmed handles a verified payment-confirmation event.
// Duplicate confirmations are swallowed idempotently: exactly one
// dispatch happens per paid order.
func (s *Service) OnPaymentConfirmed(
	ctx context.Context, requesterID string, confirmedAmount int64,
) error {
	o, err := s.store.Get(ctx, requesterID)
	if err != nil {
		return fmt.Errorf("unknown order for %s: %w", requesterID, err)
	}

	// Never fulfill on a mismatched amount: the confirmation may be
	// tampered with or replayed against a replaced order.
	if confirmedAmount != o.AmountDue {
		metrics.PaymentsMismatchedTotal.Inc()
		s.logger.Errorf("ALERT: amount mismatch for order %s: confirmed %d, due %d",
			o.ID, confirmedAmount, o.AmountDue)
		return fmt.Errorf("%w: confirmed %d, due %d",
			errs.ErrAmountMismatch, confirmedAmount, o.AmountDue)
	}

	o, err = s.store.Transition(ctx, requesterID,
		[]order.Status{order.AWAITING}, order.PAID)
	if err != nil {
		if errors.Is(err, errs.ErrDataConflict) {
			metrics.PaymentsDuplicateTotal.Inc()
			s.logger.Infof("duplicate confirmation for %s ignored", requesterID)
			return errs.ErrAlreadyProcessed
		}
		return fmt.Errorf("mark order paid: %w", err)
	}

	metrics.PaymentsConfirmedTotal.Inc()

	// Dispatch happens outside any store lock: the Paid transition is
	// committed, so no concurrent confirmation can reach this point.
	s.fulfill(ctx, o)

	return nil
}

// OnPrecheckout answers the gateway's pre-checkout probe. Accept
// unless the handle matches no order still awaiting payment.
func (s *Service) OnPrecheckout(ctx context.Context, handle string) (bool, error) {
	o, err := s.store.GetByPaymentHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return o.Status == order.AWAITING, nil
}

// OnTimeout abandons a requester's non-terminal order and releases its
// artifact. A timeout for a requester with no such order is a no-op.
func (s *Service) OnTimeout(ctx context.Context, requesterID string) error {
	o, err := s.store.Transition(ctx, requesterID,
		[]order.Status{order.PENDING, order.AWAITING}, order.ABANDONED)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrDataConflict) {
			return nil
		}
		return fmt.Errorf("abandon order for %s: %w", requesterID, err)
	}

	metrics.OrdersAbandonedTotal.Inc()
	s.releaseArtifact(o.ArtifactRef)
	s.logger.Infof("order %s abandoned on timeout", o.ID)

	if err = s.notifier.SendText(ctx, requesterID,
		"Your print order expired without payment and was cancelled."); err != nil {
		s.logger.Errorf("send timeout notice to %s: %s", requesterID, err)
	}

	return nil
}

// fulfill dispatches a freshly paid order with bounded retries and
// records the terminal outcome.
func (s *Service) fulfill(ctx context.Context, o *order.Order) {
	err := s.dispatchWithRetry(ctx, o)
	if err != nil {
		s.logger.Errorf("ALERT: dispatch exhausted for paid order %s: %s", o.ID, err)

		if _, terr := s.store.Transition(ctx, o.RequesterID,
			[]order.Status{order.PAID}, order.ABANDONED); terr != nil {
			s.logger.Errorf("abandon order %s: %s", o.ID, terr)
		} else {
			metrics.OrdersAbandonedTotal.Inc()
		}
		s.releaseArtifact(o.ArtifactRef)

		if nerr := s.notifier.SendText(ctx, o.RequesterID,
			"Payment received, but fulfillment is delayed. Our operators are on it."); nerr != nil {
			s.logger.Errorf("send delay notice to %s: %s", o.RequesterID, nerr)
		}
		return
	}

	if _, err = s.store.Transition(ctx, o.RequesterID,
		[]order.Status{order.PAID}, order.FULFILLED); err != nil {
		s.logger.Errorf("mark order %s fulfilled: %s", o.ID, err)
		return
	}

	metrics.OrdersFulfilledTotal.Inc()
	s.releaseArtifact(o.ArtifactRef)
	s.logger.Infof("order %s fulfilled", o.ID)

	if err = s.notifier.SendText(ctx, o.RequesterID,
		"Payment received! Your file is printing now."); err != nil {
		s.logger.Errorf("send fulfillment notice to %s: %s", o.RequesterID, err)
	}
}

func (s *Service) dispatchWithRetry(ctx context.Context, o *order.Order) error {
	backoff := s.config.Dispatch.Backoff

	var lastErr error

	for attempt := 1; attempt <= s.config.Dispatch.MaxAttempts; attempt++ {
		metrics.DispatchAttemptsTotal.Inc()

		lastErr = s.dispatcher.Dispatch(ctx, o)
		if lastErr == nil {
			return nil
		}

		metrics.DispatchFailuresTotal.Inc()
		s.logger.Errorf("dispatch order %s attempt %d/%d: %s",
			o.ID, attempt, s.config.Dispatch.MaxAttempts, lastErr)

		var derr *dispatch.Error
		if errors.As(lastErr, &derr) && !derr.Retryable {
			return lastErr
		}

		if attempt == s.config.Dispatch.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return errors.New("service stopping")
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return lastErr
}

// abandon is the upload-path cleanup: the order never became payable.
func (s *Service) abandon(ctx context.Context, requesterID, ref string) {
	if _, err := s.store.Transition(ctx, requesterID,
		[]order.Status{order.PENDING, order.AWAITING}, order.ABANDONED); err != nil {
		s.logger.Errorf("abandon unpayable order for %s: %s", requesterID, err)
	} else {
		metrics.OrdersAbandonedTotal.Inc()
	}
	s.releaseArtifact(ref)
}

func (s *Service) releaseArtifact(ref string) {
	if err := s.artifacts.Release(ref); err != nil {
		s.logger.Errorf("release artifact %q: %s", ref, err)
	}
}

// Run starts the background sweeper that abandons orders past the
// payment timeout and evicts terminal orders past the retention window.
func (s *Service) Run() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweep()
	}()
}

// Stop terminates the sweeper and waits for it to finish, bounded by
// the shutdown timeout.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})

	ready := make(chan struct{})
	go func() {
		defer close(ready)
		s.wg.Wait()
	}()

	select {
	case <-time.After(s.config.HTTPServer.ShutdownTimeout):
		s.logger.Error("lifecycle service stop: shutdown timeout exceeded")
	case <-ready:
		return
	}
}

func (s *Service) sweep() {
	ticker := time.NewTicker(s.config.Orders.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweepOnce(context.Background())
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) {
	// Non-terminal orders past the payment timeout time out.
	stale, err := s.store.ListStale(ctx,
		[]order.Status{order.PENDING, order.AWAITING},
		time.Now().Add(-s.config.Orders.PaymentTimeout))
	if err != nil {
		s.logger.Errorf("list stale orders: %s", err)
		return
	}
	for _, o := range stale {
		if err = s.OnTimeout(ctx, o.RequesterID); err != nil {
			s.logger.Error(err)
		}
	}

	// A paid order whose dispatch outcome was never recorded (say a
	// crash between the Paid commit and the terminal transition) must
	// still terminate and give its artifact back.
	stuck, err := s.store.ListStale(ctx,
		[]order.Status{order.PAID},
		time.Now().Add(-s.config.Orders.FulfillTimeout))
	if err != nil {
		s.logger.Errorf("list stuck paid orders: %s", err)
		return
	}
	for _, o := range stuck {
		if _, err = s.store.Transition(ctx, o.RequesterID,
			[]order.Status{order.PAID}, order.ABANDONED); err != nil {
			s.logger.Errorf("abandon stuck paid order %s: %s", o.ID, err)
			continue
		}

		metrics.OrdersAbandonedTotal.Inc()
		s.releaseArtifact(o.ArtifactRef)
		s.logger.Errorf("ALERT: paid order %s stuck past fulfill timeout, abandoned", o.ID)

		if err = s.notifier.SendText(ctx, o.RequesterID,
			"Payment received, but fulfillment is delayed. Our operators are on it."); err != nil {
			s.logger.Errorf("send delay notice to %s: %s", o.RequesterID, err)
		}
	}

	// Terminal orders are retained for auditing, then evicted.
	expired, err := s.store.ListStale(ctx,
		[]order.Status{order.FULFILLED, order.ABANDONED},
		time.Now().Add(-s.config.Orders.Retention))
	if err != nil {
		s.logger.Errorf("list expired orders: %s", err)
		return
	}
	for _, o := range expired {
		if err = s.store.Remove(ctx, o.RequesterID); err != nil {
			s.logger.Errorf("evict order %s: %s", o.ID, err)
		}
	}
}
