package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/printmate/order-service/internal/models/errs"
	"github.com/printmate/order-service/internal/models/order"
)

// Memory is the in-memory order store. A single mutex guards the map,
// which makes every Transition linearizable. All returned orders are
// copies so no caller can mutate stored state.
type Memory struct {
	items map[string]*order.Order
	mu    sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]*order.Order)}
}

var _ OrderStore = (*Memory)(nil)

func (m *Memory) Put(_ context.Context, o *order.Order) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var replaced *order.Order
	if prev, ok := m.items[o.RequesterID]; ok {
		replaced = copyOrder(prev)
	}

	m.items[o.RequesterID] = copyOrder(o)

	return replaced, nil
}

func (m *Memory) Get(_ context.Context, requesterID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.items[requesterID]
	if !ok {
		return nil, errs.ErrNotFound
	}

	return copyOrder(o), nil
}

func (m *Memory) GetByPaymentHandle(_ context.Context, handle string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.items {
		if o.PaymentHandle == handle {
			return copyOrder(o), nil
		}
	}

	return nil, errs.ErrNotFound
}

func (m *Memory) Transition(
	_ context.Context, requesterID string, from []order.Status, to order.Status,
) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.items[requesterID]
	if !ok {
		return nil, errs.ErrNotFound
	}

	if !statusIn(o.Status, from) {
		return nil, fmt.Errorf("%w: status %s", errs.ErrDataConflict, o.Status)
	}

	o.Status = to
	o.UpdatedAt = time.Now()

	return copyOrder(o), nil
}

func (m *Memory) AttachPayment(
	_ context.Context, requesterID string, orderID uuid.UUID, handle string,
) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.items[requesterID]
	if !ok {
		return nil, errs.ErrNotFound
	}

	// The requester slot may hold a newer order by now; a handle
	// priced for the old one must not bind to it.
	if o.ID != orderID {
		return nil, fmt.Errorf("%w: order replaced", errs.ErrDataConflict)
	}

	if o.Status != order.PENDING {
		return nil, fmt.Errorf("%w: status %s", errs.ErrDataConflict, o.Status)
	}

	o.PaymentHandle = handle
	o.Status = order.AWAITING
	o.UpdatedAt = time.Now()

	return copyOrder(o), nil
}

func (m *Memory) Remove(_ context.Context, requesterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, requesterID)

	return nil
}

func (m *Memory) ListStale(
	_ context.Context, statuses []order.Status, cutoff time.Time,
) ([]*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stale := make([]*order.Order, 0)
	for _, o := range m.items {
		if statusIn(o.Status, statuses) && o.UpdatedAt.Before(cutoff) {
			stale = append(stale, copyOrder(o))
		}
	}

	return stale, nil
}

func (m *Memory) List(_ context.Context) ([]*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders := make([]*order.Order, 0, len(m.items))
	for _, o := range m.items {
		orders = append(orders, copyOrder(o))
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	return orders, nil
}

func copyOrder(o *order.Order) *order.Order {
	c := *o
	return &c
}

func statusIn(s order.Status, set []order.Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
