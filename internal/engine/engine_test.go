package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"moneytrees/internal/core"
)

// fakeSources drives the engine by hand: each Emit pushes one value into
// the matching subscription channel.
type fakeSources struct {
	mu        sync.Mutex
	budgetCh  chan *core.Budget
	totalCh   chan core.Money
	breakCh   chan map[string]core.Money
	inserted  []core.Budget
	insertErr error
	nextID    int64
}

func newFakeSources() *fakeSources {
	return &fakeSources{
		budgetCh: make(chan *core.Budget, 8),
		totalCh:  make(chan core.Money, 8),
		breakCh:  make(chan map[string]core.Money, 8),
	}
}

func (f *fakeSources) Insert(ctx context.Context, b core.Budget) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.nextID++
	b.ID = f.nextID
	f.inserted = append(f.inserted, b)
	return b.ID, nil
}

func (f *fakeSources) SubscribeLatest(ctx context.Context, userID int64) <-chan *core.Budget {
	return f.budgetCh
}

func (f *fakeSources) SubscribeTotal(ctx context.Context, userID int64) <-chan core.Money {
	return f.totalCh
}

func (f *fakeSources) SubscribeBreakdown(ctx context.Context, userID int64) <-chan map[string]core.Money {
	return f.breakCh
}

type recordingSink struct {
	mu     sync.Mutex
	events []core.Money // spent values, in publish order
	err    error
}

func (s *recordingSink) PublishOverBudget(ctx context.Context, userID, budgetID int64, spent, amount core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, spent)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func waitView(t *testing.T, eng *Engine) core.BudgetView {
	t.Helper()
	select {
	case v := <-eng.Updates():
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a view update")
		return core.BudgetView{}
	}
}

func TestNew_RejectsNonPositiveUser(t *testing.T) {
	src := newFakeSources()
	for _, id := range []int64{0, -1} {
		if _, err := New(id, src, src); !errors.Is(err, core.ErrInvalidSession) {
			t.Errorf("New(%d) error = %v, want ErrInvalidSession", id, err)
		}
	}
}

func TestEngine_RecombinesRegardlessOfArrivalOrder(t *testing.T) {
	budget := &core.Budget{ID: 1, UserID: 1, Type: core.Monthly, Amount: core.Money{Cents: 100000}}
	total := core.Money{Cents: 70000}
	breakdown := map[string]core.Money{"Food": {Cents: 30000}, "Transport": {Cents: 40000}}

	orders := []struct {
		name string
		emit func(f *fakeSources)
	}{
		{"budget first", func(f *fakeSources) { f.budgetCh <- budget; f.totalCh <- total; f.breakCh <- breakdown }},
		{"total first", func(f *fakeSources) { f.totalCh <- total; f.breakCh <- breakdown; f.budgetCh <- budget }},
		{"breakdown first", func(f *fakeSources) { f.breakCh <- breakdown; f.budgetCh <- budget; f.totalCh <- total }},
	}

	for _, order := range orders {
		t.Run(order.name, func(t *testing.T) {
			src := newFakeSources()
			eng, err := New(1, src, src)
			if err != nil {
				t.Fatal(err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go eng.Run(ctx)

			order.emit(src)

			// Drain until the engine has seen all three sources.
			deadline := time.After(2 * time.Second)
			for eng.State() != Ready {
				select {
				case <-eng.Updates():
				case <-deadline:
					t.Fatal("engine never became ready")
				}
			}

			view := eng.Snapshot()
			if view.Progress != 70 {
				t.Errorf("Progress = %d, want 70", view.Progress)
			}
			if view.TotalSpent.Cents != 70000 {
				t.Errorf("TotalSpent = %d, want 70000", view.TotalSpent.Cents)
			}
			if view.Remaining.Cents != 30000 {
				t.Errorf("Remaining = %d, want 30000", view.Remaining.Cents)
			}
		})
	}
}

func TestEngine_StateProgression(t *testing.T) {
	src := newFakeSources()
	eng, err := New(1, src, src)
	if err != nil {
		t.Fatal(err)
	}
	if eng.State() != Uninitialized {
		t.Fatalf("State before Run = %v, want Uninitialized", eng.State())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	src.totalCh <- core.Money{Cents: 500}
	waitView(t, eng)
	if got := eng.State(); got != Partial {
		t.Errorf("State after one source = %v, want Partial", got)
	}

	src.budgetCh <- &core.Budget{ID: 1, Amount: core.Money{Cents: 1000}}
	waitView(t, eng)
	src.breakCh <- map[string]core.Money{}
	waitView(t, eng)
	if got := eng.State(); got != Ready {
		t.Errorf("State after all sources = %v, want Ready", got)
	}
}

func TestEngine_MissingBudgetFallback(t *testing.T) {
	src := newFakeSources()
	eng, err := New(1, src, src)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	// No budget row yet: the budget stream emits nil.
	src.budgetCh <- nil
	src.totalCh <- core.Money{Cents: 75000}

	var view core.BudgetView
	deadline := time.After(2 * time.Second)
	for view.TotalSpent.Cents != 75000 {
		select {
		case view = <-eng.Updates():
		case <-deadline:
			t.Fatal("never observed the spend total")
		}
	}

	if view.HasBudget {
		t.Error("expected HasBudget false")
	}
	if view.Progress != 0 {
		t.Errorf("Progress = %d, want 0", view.Progress)
	}
}

func TestEngine_LatestWinsUpdates(t *testing.T) {
	src := newFakeSources()
	eng, err := New(1, src, src)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	// Nobody reads Updates while several totals arrive; the channel must
	// end up holding the newest view, not the first.
	src.budgetCh <- &core.Budget{ID: 1, Amount: core.Money{Cents: 100000}}
	for _, cents := range []int64{10000, 20000, 30000} {
		src.totalCh <- core.Money{Cents: cents}
	}

	// The buffered channel may only ever hold one undelivered view, so a
	// late reader still ends up at the newest total.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case view := <-eng.Updates():
			if view.TotalSpent.Cents == 30000 {
				return
			}
		case <-deadline:
			t.Fatal("never delivered the newest total")
		}
	}
}

func TestEngine_RecordBudgetForcesSessionUser(t *testing.T) {
	src := newFakeSources()
	eng, err := New(7, src, src)
	if err != nil {
		t.Fatal(err)
	}

	b := core.Budget{UserID: 999, Type: core.Monthly, Amount: core.Money{Cents: 5000}}
	if _, err := eng.RecordBudget(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.inserted) != 1 {
		t.Fatalf("inserted %d budgets, want 1", len(src.inserted))
	}
	if src.inserted[0].UserID != 7 {
		t.Errorf("inserted UserID = %d, want session user 7", src.inserted[0].UserID)
	}
}

func TestEngine_OverBudgetAlertFiresOnce(t *testing.T) {
	src := newFakeSources()
	sink := &recordingSink{}
	eng, err := New(1, src, src, WithAlertSink(sink))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	src.budgetCh <- &core.Budget{ID: 1, Amount: core.Money{Cents: 100000}}
	waitView(t, eng)

	// Cross the budget, then keep spending: one alert only.
	src.totalCh <- core.Money{Cents: 110000}
	waitView(t, eng)
	src.totalCh <- core.Money{Cents: 120000}
	waitView(t, eng)

	if got := sink.count(); got != 1 {
		t.Fatalf("alert count = %d, want 1", got)
	}

	// Back under, then over again: the edge re-arms.
	src.totalCh <- core.Money{Cents: 50000}
	waitView(t, eng)
	src.totalCh <- core.Money{Cents: 130000}
	waitView(t, eng)

	if got := sink.count(); got != 2 {
		t.Fatalf("alert count after re-crossing = %d, want 2", got)
	}
}

func TestEngine_SinkFailureDoesNotBreakRecompute(t *testing.T) {
	src := newFakeSources()
	sink := &recordingSink{err: errors.New("broker down")}
	eng, err := New(1, src, src, WithAlertSink(sink))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	src.budgetCh <- &core.Budget{ID: 1, Amount: core.Money{Cents: 1000}}
	waitView(t, eng)
	src.totalCh <- core.Money{Cents: 2000}
	view := waitView(t, eng)

	if view.TotalSpent.Cents != 2000 {
		t.Errorf("TotalSpent = %d, want 2000 despite sink failure", view.TotalSpent.Cents)
	}
}

func TestEngine_CancellationStopsRun(t *testing.T) {
	src := newFakeSources()
	eng, err := New(1, src, src)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go eng.Run(ctx)

	src.totalCh <- core.Money{Cents: 100}
	waitView(t, eng)

	cancel()
	select {
	case <-eng.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestEngine_CancelledRecomputeIsDiscarded(t *testing.T) {
	src := newFakeSources()
	eng, err := New(1, src, src)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	eng.lastTotal = core.Money{Cents: 5000}
	cancel()
	eng.recompute(ctx)

	if got := eng.Snapshot().TotalSpent.Cents; got != 0 {
		t.Fatalf("snapshot committed after cancellation: TotalSpent = %d, want 0", got)
	}
	select {
	case v := <-eng.Updates():
		t.Fatalf("view delivered after cancellation: %+v", v)
	default:
	}
}
