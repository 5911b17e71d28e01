package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elevtiles/internal/tile"
)

func TestQueueFIFO(t *testing.T) {
	q := New[int]()
	a := NewRequest[int](tile.Coord{X: 1})
	b := NewRequest[int](tile.Coord{X: 2})
	q.Add(a)
	q.Add(b)

	assert.Equal(t, 2, q.Size())
	assert.Same(t, a, q.Get())
	assert.Same(t, b, q.Get())
	assert.Nil(t, q.Get())
	assert.Equal(t, 0, q.Size())
	assert.Equal(t, 2, q.InFlight())
}

func TestQueueFindWaitingAndInFlight(t *testing.T) {
	q := New[int]()
	a := NewRequest[int](tile.Coord{X: 1, Y: 1, Z: 1})
	b := NewRequest[int](tile.Coord{X: 2, Y: 2, Z: 2})
	q.Add(a)
	q.Add(b)
	require.Same(t, a, q.Get())

	assert.Same(t, a, q.Find(tile.Coord{X: 1, Y: 1, Z: 1}), "in flight")
	assert.Same(t, b, q.Find(tile.Coord{X: 2, Y: 2, Z: 2}), "waiting")
	assert.Nil(t, q.Find(tile.Coord{X: 3}))
}

func TestQueueRemoveIsIdempotent(t *testing.T) {
	q := New[int]()
	a := NewRequest[int](tile.Coord{X: 1})
	q.Add(a)
	q.Get()

	q.Remove(a)
	q.Remove(a)
	assert.Equal(t, 0, q.InFlight())
	assert.Nil(t, q.Find(a.Coord))
}

func TestWaiterResolveOnce(t *testing.T) {
	w := NewWaiter[string](tile.NewOwner())

	assert.True(t, w.Pending())
	assert.True(t, w.Resolve("done"))
	assert.False(t, w.Pending())
	assert.False(t, w.Resolve("again"))
	assert.False(t, w.Detach())
	assert.Equal(t, "done", <-w.Done)
}

func TestWaiterDetachBeforeResolve(t *testing.T) {
	w := NewWaiter[string](tile.NewOwner())

	assert.True(t, w.Detach())
	assert.False(t, w.Resolve("late"))
	assert.Empty(t, w.Done)
}

func TestRequestCollectsWaiters(t *testing.T) {
	r := NewRequest[int](tile.Coord{})
	r.AddWaiter(NewWaiter[int](tile.NewOwner()))
	r.AddWaiter(NewWaiter[int](tile.NewOwner()))
	assert.Len(t, r.Waiters, 2)
}
