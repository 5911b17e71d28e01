package queue

import "elevtiles/internal/tile"

// Waiter is one caller suspended on a Request. Done receives exactly one
// value unless the waiter detaches first.
type Waiter[R any] struct {
	Owner    tile.Owner
	Done     chan R
	detached bool
}

func NewWaiter[R any](owner tile.Owner) *Waiter[R] {
	return &Waiter[R]{
		Owner: owner,
		Done:  make(chan R, 1),
	}
}

// Detach marks the waiter as gone. It returns false if the waiter was already
// resolved or detached.
func (w *Waiter[R]) Detach() bool {
	if w.detached {
		return false
	}
	w.detached = true
	return true
}

// Pending reports whether the waiter is neither resolved nor detached.
func (w *Waiter[R]) Pending() bool {
	return !w.detached
}

// Resolve delivers r unless the waiter detached. Resolve and Detach must be
// called under the same lock.
func (w *Waiter[R]) Resolve(r R) bool {
	if w.detached {
		return false
	}
	w.detached = true
	w.Done <- r
	return true
}

// Request is a pending load of one coordinate plus everyone coalesced onto it.
type Request[R any] struct {
	Coord   tile.Coord
	Waiters []*Waiter[R]
}

func NewRequest[R any](coord tile.Coord) *Request[R] {
	return &Request[R]{Coord: coord}
}

func (r *Request[R]) AddWaiter(w *Waiter[R]) {
	r.Waiters = append(r.Waiters, w)
}
