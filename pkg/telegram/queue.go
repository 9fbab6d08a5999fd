package telegram

import (
	"context"
	"sync"
)

// eventQueue is an unbounded FIFO so the update handler never waits for
// the mirror to finish processing.
type eventQueue struct {
	lock   sync.Mutex
	items  []any
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

func (q *eventQueue) push(item any) {
	q.lock.Lock()
	q.items = append(q.items, item)
	q.lock.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pop(ctx context.Context) (any, bool) {
	for {
		q.lock.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.lock.Unlock()
			return item, true
		}
		q.lock.Unlock()
		select {
		case <-ctx.Done():
			return nil, false
		case <-q.signal:
		}
	}
}

func (q *eventQueue) len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.items)
}

type subscriber[T any] struct {
	pred func(T) bool
	ch   chan T
}

// hub fans one event stream out to unbuffered subscriber channels.
type hub[T any] struct {
	lock   sync.Mutex
	subs   []subscriber[T]
	closed bool
}

func (h *hub[T]) subscribe(pred func(T) bool) <-chan T {
	h.lock.Lock()
	defer h.lock.Unlock()
	ch := make(chan T)
	if h.closed {
		close(ch)
		return ch
	}
	h.subs = append(h.subs, subscriber[T]{pred: pred, ch: ch})
	return ch
}

func (h *hub[T]) hasSubscribers() bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.subs) > 0
}

// deliver hands evt to every matching subscriber in subscription order.
// It returns false if ctx was canceled first.
func (h *hub[T]) deliver(ctx context.Context, evt T) bool {
	h.lock.Lock()
	subs := h.subs
	h.lock.Unlock()
	for _, sub := range subs {
		if sub.pred != nil && !sub.pred(evt) {
			continue
		}
		select {
		case sub.ch <- evt:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (h *hub[T]) close() {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, sub := range h.subs {
		close(sub.ch)
	}
	h.subs = nil
}
