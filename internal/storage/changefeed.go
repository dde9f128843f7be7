package storage

import (
	"context"
	"log/slog"
	"sync"
)

// EntityKind names a persisted collection for change notification.
type EntityKind string

const (
	BudgetEntity   EntityKind = "budget"
	CategoryEntity EntityKind = "category"
	ExpenseEntity  EntityKind = "expense"
)

// Changefeed is the in-process change-notification hub. Writers publish
// (userID, kind) after every committed write; subscribers get a coalescing
// signal channel. A slow subscriber never blocks a writer: signals collapse
// into one pending wakeup and the subscriber re-reads the latest state.
type Changefeed struct {
	mu     sync.Mutex
	closed bool
	nextID int64
	subs   map[int64]*feedSub
}

type feedSub struct {
	userID int64
	kind   EntityKind
	signal chan struct{}
}

func NewChangefeed() *Changefeed {
	return &Changefeed{
		subs: make(map[int64]*feedSub),
	}
}

// Publish wakes every subscriber registered for (userID, kind).
func (f *Changefeed) Publish(userID int64, kind EntityKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for _, sub := range f.subs {
		if sub.userID == userID && sub.kind == kind {
			select {
			case sub.signal <- struct{}{}:
			default:
				// a wakeup is already pending, coalesce
			}
		}
	}
}

// Subscribe registers a listener for (userID, kind). The returned cancel
// func releases the registration; it is safe to call more than once.
func (f *Changefeed) Subscribe(userID int64, kind EntityKind) (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub := &feedSub{
		userID: userID,
		kind:   kind,
		signal: make(chan struct{}, 1),
	}
	id := f.nextID
	f.nextID++

	if f.closed {
		close(sub.signal)
		return sub.signal, func() {}
	}
	f.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(sub.signal)
			}
		})
	}
	return sub.signal, cancel
}

// Close tears down every subscription.
func (f *Changefeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, sub := range f.subs {
		delete(f.subs, id)
		close(sub.signal)
	}
}

// stream turns a feed registration into a value stream: the current query
// result is delivered immediately, then again after every matching write.
// Query failures keep the last-known value (nothing is emitted) so
// consumers never observe a transient store error as cleared state.
func stream[T any](ctx context.Context, feed *Changefeed, userID int64, kind EntityKind, query func(context.Context) (T, error)) <-chan T {
	out := make(chan T, 1)
	signal, cancel := feed.Subscribe(userID, kind)

	go func() {
		defer close(out)
		defer cancel()

		emit := func() {
			v, err := query(ctx)
			if err != nil {
				slog.WarnContext(ctx, "Stream query failed, keeping last-known value",
					"kind", string(kind),
					"user_id", userID,
					"error", err)
				return
			}
			select {
			case out <- v:
			case <-ctx.Done():
			}
		}

		emit()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signal:
				if !ok {
					return
				}
				emit()
			}
		}
	}()

	return out
}
