package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/printmate/order-service/internal/models/errs"
	"github.com/printmate/order-service/internal/models/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPutReplaces(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first := order.New("alice", "ref-1", "a.pdf", 3, 300, "EUR")
	replaced, err := m.Put(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, replaced)

	second := order.New("alice", "ref-2", "b.pdf", 2, 200, "EUR")
	replaced, err = m.Put(ctx, second)
	require.NoError(t, err)
	require.NotNil(t, replaced)
	assert.Equal(t, "ref-1", replaced.ArtifactRef)

	got, err := m.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "ref-2", got.ArtifactRef)
	assert.Equal(t, int64(200), got.AmountDue)
}

func TestMemoryGetNotFound(t *testing.T) {
	m := NewMemory()

	_, err := m.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryTransition(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	o := order.New("bob", "ref", "b.pdf", 1, 100, "EUR")
	_, err := m.Put(ctx, o)
	require.NoError(t, err)

	_, err = m.AttachPayment(ctx, "bob", o.ID, "handle-1")
	require.NoError(t, err)

	got, err := m.Transition(ctx, "bob", []order.Status{order.AWAITING}, order.PAID)
	require.NoError(t, err)
	assert.Equal(t, order.PAID, got.Status)

	// Guard failure on repeated transition.
	_, err = m.Transition(ctx, "bob", []order.Status{order.AWAITING}, order.PAID)
	assert.ErrorIs(t, err, errs.ErrDataConflict)

	// Unknown requester.
	_, err = m.Transition(ctx, "nobody", []order.Status{order.AWAITING}, order.PAID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryTransitionLinearizable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	o := order.New("carol", "ref", "c.pdf", 1, 100, "EUR")
	_, err := m.Put(ctx, o)
	require.NoError(t, err)
	_, err = m.AttachPayment(ctx, "carol", o.ID, "handle-2")
	require.NoError(t, err)

	const writers = 16

	var wg sync.WaitGroup
	wins := make(chan struct{}, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Transition(ctx, "carol",
				[]order.Status{order.AWAITING}, order.PAID); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1, "exactly one writer must win the compare-and-set")
}

func TestMemoryAttachPaymentGuard(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	o := order.New("dave", "ref", "d.pdf", 1, 100, "EUR")
	_, err := m.Put(ctx, o)
	require.NoError(t, err)

	got, err := m.AttachPayment(ctx, "dave", o.ID, "handle-3")
	require.NoError(t, err)
	assert.Equal(t, order.AWAITING, got.Status)
	assert.Equal(t, "handle-3", got.PaymentHandle)

	_, err = m.AttachPayment(ctx, "dave", o.ID, "handle-4")
	assert.ErrorIs(t, err, errs.ErrDataConflict)
}

func TestMemoryAttachPaymentReplacedOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first := order.New("alice", "ref-1", "a.pdf", 3, 300, "EUR")
	_, err := m.Put(ctx, first)
	require.NoError(t, err)

	// A second upload takes over the requester slot before the handle
	// priced for the first order comes back from the gateway.
	second := order.New("alice", "ref-2", "b.pdf", 10, 1000, "EUR")
	_, err = m.Put(ctx, second)
	require.NoError(t, err)

	_, err = m.AttachPayment(ctx, "alice", first.ID, "handle-for-first")
	assert.ErrorIs(t, err, errs.ErrDataConflict)

	got, err := m.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, order.PENDING, got.Status)
	assert.Empty(t, got.PaymentHandle)

	got, err = m.AttachPayment(ctx, "alice", second.ID, "handle-for-second")
	require.NoError(t, err)
	assert.Equal(t, order.AWAITING, got.Status)
	assert.Equal(t, int64(1000), got.AmountDue)
}

func TestMemoryGetByPaymentHandle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	o := order.New("erin", "ref", "e.pdf", 1, 100, "EUR")
	_, err := m.Put(ctx, o)
	require.NoError(t, err)
	_, err = m.AttachPayment(ctx, "erin", o.ID, "handle-5")
	require.NoError(t, err)

	got, err := m.GetByPaymentHandle(ctx, "handle-5")
	require.NoError(t, err)
	assert.Equal(t, "erin", got.RequesterID)

	_, err = m.GetByPaymentHandle(ctx, "unknown")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryListStale(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	stale := order.New("old", "ref-old", "o.pdf", 1, 100, "EUR")
	stale.UpdatedAt = time.Now().Add(-time.Hour)
	_, err := m.Put(ctx, stale)
	require.NoError(t, err)

	fresh := order.New("new", "ref-new", "n.pdf", 1, 100, "EUR")
	_, err = m.Put(ctx, fresh)
	require.NoError(t, err)

	got, err := m.ListStale(ctx, []order.Status{order.PENDING}, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "old", got[0].RequesterID)
}

func TestMemoryRemove(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	o := order.New("frank", "ref", "f.pdf", 1, 100, "EUR")
	_, err := m.Put(ctx, o)
	require.NoError(t, err)

	require.NoError(t, m.Remove(ctx, "frank"))
	_, err = m.Get(ctx, "frank")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	// Removing an absent order is a no-op.
	require.NoError(t, m.Remove(ctx, "frank"))
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	o := order.New("grace", "ref", "g.pdf", 1, 100, "EUR")
	_, err := m.Put(ctx, o)
	require.NoError(t, err)

	got, err := m.Get(ctx, "grace")
	require.NoError(t, err)
	got.AmountDue = 999999

	again, err := m.Get(ctx, "grace")
	require.NoError(t, err)
	assert.Equal(t, int64(100), again.AmountDue)
}
