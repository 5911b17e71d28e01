package queue

import "elevtiles/internal/tile"

// RequestQueue is a FIFO of waiting requests plus the set of requests in
// flight. It is not safe for concurrent use; the owner serializes access.
type RequestQueue[R any] struct {
	waiting  []*Request[R]
	inFlight map[*Request[R]]struct{}
}

func New[R any]() *RequestQueue[R] {
	return &RequestQueue[R]{
		inFlight: make(map[*Request[R]]struct{}),
	}
}

// Add appends req to the tail. Callers check Find first so a coordinate never
// has two requests.
func (q *RequestQueue[R]) Add(req *Request[R]) {
	q.waiting = append(q.waiting, req)
}

// Get pops the head and moves it in flight. It returns nil when nothing waits.
func (q *RequestQueue[R]) Get() *Request[R] {
	if len(q.waiting) == 0 {
		return nil
	}
	req := q.waiting[0]
	q.waiting[0] = nil
	q.waiting = q.waiting[1:]
	q.inFlight[req] = struct{}{}
	return req
}

func (q *RequestQueue[R]) Remove(req *Request[R]) {
	delete(q.inFlight, req)
}

// Find looks for a request on coord, waiting ones first.
func (q *RequestQueue[R]) Find(coord tile.Coord) *Request[R] {
	for _, req := range q.waiting {
		if req.Coord == coord {
			return req
		}
	}
	for req := range q.inFlight {
		if req.Coord == coord {
			return req
		}
	}
	return nil
}

// Size is the number of requests not yet admitted.
func (q *RequestQueue[R]) Size() int {
	return len(q.waiting)
}

func (q *RequestQueue[R]) InFlight() int {
	return len(q.inFlight)
}
