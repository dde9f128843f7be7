package engine

import (
	"context"
	"log/slog"
	"sync"

	"moneytrees/internal/core"
)

// BudgetSource feeds the engine the user's current budget and accepts the
// recordBudget command.
type BudgetSource interface {
	Insert(ctx context.Context, b core.Budget) (int64, error)
	SubscribeLatest(ctx context.Context, userID int64) <-chan *core.Budget
}

// ExpenseSource feeds the engine the running spend total and the
// per-category breakdown.
type ExpenseSource interface {
	SubscribeTotal(ctx context.Context, userID int64) <-chan core.Money
	SubscribeBreakdown(ctx context.Context, userID int64) <-chan map[string]core.Money
}

// AlertSink receives an event when the user first crosses their budget.
// Publishing is fire-and-forget: a sink failure never fails a recompute.
type AlertSink interface {
	PublishOverBudget(ctx context.Context, userID, budgetID int64, spent, amount core.Money) error
}

// State tracks which sources the engine has heard from.
type State int

const (
	Uninitialized State = iota
	Loading             // running, no source has emitted
	Partial             // some but not all sources have emitted
	Ready               // every source has emitted at least once
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Partial:
		return "partial"
	case Ready:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Engine combines the budget stream, the spend-total stream and the
// breakdown stream for one user session into a single consistent
// BudgetView. Every emission from any source triggers a full recompute
// over the most recently observed value of every other source; the engine
// never waits for sources to line up.
type Engine struct {
	userID   int64
	budgets  BudgetSource
	expenses ExpenseSource
	alerts   AlertSink

	mu       sync.RWMutex
	view     core.BudgetView
	state    State
	seen     [3]bool // budget, total, breakdown
	overSent bool

	// last-known source values, touched only by the Run goroutine
	lastBudget    *core.Budget
	lastTotal     core.Money
	lastBreakdown map[string]core.Money

	updates chan core.BudgetView
	done    chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithAlertSink wires an over-budget event sink.
func WithAlertSink(sink AlertSink) Option {
	return func(e *Engine) { e.alerts = sink }
}

// New builds an engine bound to one user. A non-positive user id is a
// session error: the engine refuses to exist rather than run unscoped.
func New(userID int64, budgets BudgetSource, expenses ExpenseSource, opts ...Option) (*Engine, error) {
	if userID <= 0 {
		return nil, core.ErrInvalidSession
	}
	e := &Engine{
		userID:   userID,
		budgets:  budgets,
		expenses: expenses,
		view:     computeView(nil, core.Money{}, nil),
		updates:  make(chan core.BudgetView, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run subscribes to the sources and recomputes until ctx is cancelled.
// Cancellation tears the session's subscriptions down as a unit; a
// recompute in flight at cancellation is discarded, never delivered.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)

	budgetCh := e.budgets.SubscribeLatest(ctx, e.userID)
	totalCh := e.expenses.SubscribeTotal(ctx, e.userID)
	breakdownCh := e.expenses.SubscribeBreakdown(ctx, e.userID)

	e.setState(Loading)
	slog.InfoContext(ctx, "Aggregation engine started", "user_id", e.userID)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Aggregation engine stopped", "user_id", e.userID, "reason", ctx.Err())
			return
		case b, ok := <-budgetCh:
			if !ok {
				return
			}
			e.lastBudget = b
			e.markSeen(0)
		case t, ok := <-totalCh:
			if !ok {
				return
			}
			e.lastTotal = t
			e.markSeen(1)
		case m, ok := <-breakdownCh:
			if !ok {
				return
			}
			e.lastBreakdown = m
			e.markSeen(2)
		}
		e.recompute(ctx)
	}
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// RecordBudget appends a budget for the session's user; the resulting
// stream emission drives the recompute.
func (e *Engine) RecordBudget(ctx context.Context, b core.Budget) (int64, error) {
	b.UserID = e.userID
	return e.budgets.Insert(ctx, b)
}

// Snapshot returns a copy of the current derived view. Safe from any
// goroutine.
func (e *Engine) Snapshot() core.BudgetView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.view
}

// State reports which sources have been observed so far.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Updates delivers recomputed views. The channel is latest-wins: a slow
// consumer only ever misses intermediate views, never the newest one.
func (e *Engine) Updates() <-chan core.BudgetView {
	return e.updates
}

// UserID returns the user this engine is scoped to.
func (e *Engine) UserID() int64 {
	return e.userID
}

func (e *Engine) markSeen(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen[i] = true
	if e.seen[0] && e.seen[1] && e.seen[2] {
		e.state = Ready
	} else {
		e.state = Partial
	}
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) recompute(ctx context.Context) {
	if ctx.Err() != nil {
		// cancelled mid-recompute: the view is discarded before it can
		// reach the snapshot or any subscriber
		return
	}

	view := computeView(e.lastBudget, e.lastTotal, e.lastBreakdown)

	e.mu.Lock()
	e.view = view
	e.mu.Unlock()

	e.publish(view)
	e.maybeAlert(ctx, view)
}

// publish replaces any undelivered view with the newest one.
func (e *Engine) publish(view core.BudgetView) {
	for {
		select {
		case e.updates <- view:
			return
		default:
			select {
			case <-e.updates:
			default:
			}
		}
	}
}

func (e *Engine) maybeAlert(ctx context.Context, view core.BudgetView) {
	if e.alerts == nil || !view.HasBudget {
		return
	}
	over := view.Remaining.Cents < 0
	if !over {
		e.overSent = false
		return
	}
	if e.overSent {
		return
	}
	e.overSent = true
	slog.InfoContext(ctx, "Budget exceeded",
		"user_id", e.userID,
		"spent_rand", view.TotalSpent.Rand(),
		"budget_rand", view.CurrentBudget.Amount.Rand())
	if err := e.alerts.PublishOverBudget(ctx, e.userID, view.CurrentBudget.ID, view.TotalSpent, view.CurrentBudget.Amount); err != nil {
		slog.WarnContext(ctx, "Over-budget alert publish failed",
			"user_id", e.userID,
			"error", err)
	}
}
