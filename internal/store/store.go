package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/printmate/order-service/internal/models/order"
)

// OrderStore is a key-value store over requester ID -> Order.
// At most one order per requester exists at a time. Transition is a
// linearizable per-key compare-and-set and is the only operation the
// lifecycle relies on for exactly-once guarantees.
type OrderStore interface {
	// Put inserts or replaces the order for its requester and returns
	// the replaced order, if any. Releasing the replaced order's
	// artifact is the caller's duty.
	Put(ctx context.Context, o *order.Order) (replaced *order.Order, err error)

	// Get returns the order for the requester or errs.ErrNotFound.
	Get(ctx context.Context, requesterID string) (*order.Order, error)

	// GetByPaymentHandle returns the order holding the given payment
	// handle or errs.ErrNotFound.
	GetByPaymentHandle(ctx context.Context, handle string) (*order.Order, error)

	// Transition atomically moves the requester's order to the target
	// status if its current status is in from. Returns the updated
	// order, errs.ErrNotFound when absent, or errs.ErrDataConflict
	// when the current status fails the guard.
	Transition(ctx context.Context, requesterID string, from []order.Status, to order.Status) (*order.Order, error)

	// AttachPayment records the payment handle and moves the order
	// from Pending to AwaitingPayment atomically. The order ID guards
	// against binding a handle to an order that replaced the one it
	// was priced for: a mismatch fails with errs.ErrDataConflict.
	AttachPayment(ctx context.Context, requesterID string, orderID uuid.UUID, handle string) (*order.Order, error)

	// Remove evicts the requester's order. Removing an absent order
	// is a no-op.
	Remove(ctx context.Context, requesterID string) error

	// ListStale returns orders in one of the given statuses not
	// updated since the cutoff.
	ListStale(ctx context.Context, statuses []order.Status, cutoff time.Time) ([]*order.Order, error)

	// List returns all orders, newest first.
	List(ctx context.Context) ([]*order.Order, error)
}
