package engine

import (
	"context"
	"sync"

	"moneytrees/internal/core"
	"moneytrees/internal/session"
	"moneytrees/internal/storage"
)

// Factory builds engines bound to a session's user, so no call site can
// construct one against the wrong user's data.
type Factory struct {
	store  *storage.Store
	alerts AlertSink
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithAlerts wires every built engine to an over-budget alert sink.
func WithAlerts(sink AlertSink) FactoryOption {
	return func(f *Factory) { f.alerts = sink }
}

func NewFactory(store *storage.Store, opts ...FactoryOption) *Factory {
	f := &Factory{store: store}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ForSession builds an engine for the session's user. An absent or invalid
// session fails fast with core.ErrInvalidSession.
func (f *Factory) ForSession(sess *session.Context) (*Engine, error) {
	if sess == nil || !sess.Valid() {
		return nil, core.ErrInvalidSession
	}
	var opts []Option
	if f.alerts != nil {
		opts = append(opts, WithAlertSink(f.alerts))
	}
	return New(sess.UserID(), f.store.Budgets(), f.store.Expenses(), opts...)
}

// Registry tracks at most one running engine per user and tears each down
// as a unit when its session ends.
type Registry struct {
	factory *Factory

	mu      sync.Mutex
	running map[int64]*runningEngine
}

type runningEngine struct {
	engine *Engine
	cancel context.CancelFunc
}

func NewRegistry(factory *Factory) *Registry {
	return &Registry{
		factory: factory,
		running: make(map[int64]*runningEngine),
	}
}

// Acquire returns the running engine for the session's user, starting one
// when none exists. The engine's subscriptions live until Release or Close.
func (r *Registry) Acquire(base context.Context, sess *session.Context) (*Engine, error) {
	if sess == nil || !sess.Valid() {
		return nil, core.ErrInvalidSession
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if re, ok := r.running[sess.UserID()]; ok {
		return re.engine, nil
	}

	eng, err := r.factory.ForSession(sess)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(base)
	go eng.Run(ctx)
	r.running[sess.UserID()] = &runningEngine{engine: eng, cancel: cancel}
	return eng, nil
}

// Release cancels the user's engine and its subscriptions, waiting for the
// run loop to exit.
func (r *Registry) Release(userID int64) {
	r.mu.Lock()
	re, ok := r.running[userID]
	delete(r.running, userID)
	r.mu.Unlock()

	if ok {
		re.cancel()
		<-re.engine.Done()
	}
}

// Close releases every running engine.
func (r *Registry) Close() {
	r.mu.Lock()
	engines := make([]*runningEngine, 0, len(r.running))
	for id, re := range r.running {
		engines = append(engines, re)
		delete(r.running, id)
	}
	r.mu.Unlock()

	for _, re := range engines {
		re.cancel()
		<-re.engine.Done()
	}
}
