package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"finsight/internal/core"
	"finsight/internal/log"
)

// ErrEmptyInsight is recorded when the generator answers with no text.
var ErrEmptyInsight = errors.New("empty insight")

// Generator turns one insight payload into narrative text.
type Generator interface {
	Generate(ctx context.Context, req core.InsightRequest) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req core.InsightRequest) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req core.InsightRequest) (string, error) {
	return f(ctx, req)
}

type Option func(*Orchestrator)

// WithPublisher registers a hook receiving a fresh Snapshot after every
// transition. Hooks run serially and must not call Reset or Dispatch.
func WithPublisher(fn func(Snapshot)) Option {
	return func(o *Orchestrator) { o.publishers = append(o.publishers, fn) }
}

// WithTransitionHook registers a hook receiving each key transition.
func WithTransitionHook(fn func(Transition)) Option {
	return func(o *Orchestrator) { o.transitionHooks = append(o.transitionHooks, fn) }
}

func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger.WithComponent(log.ComponentInsight)
		}
	}
}

// WithTimeout bounds each Generate call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithBaseContext sets the parent context of every dispatch. Cancelling it
// fails in-flight requests.
func WithBaseContext(ctx context.Context) Option {
	return func(o *Orchestrator) { o.baseCtx = ctx }
}

type entry struct {
	state  State
	ticket uint64
	title  string
}

// Orchestrator owns the keyed insight table for one view. Each dispatch
// issues exactly one Generate call; its result is applied only if the
// dispatch is still the key's latest one in the current epoch.
type Orchestrator struct {
	gen     Generator
	timeout time.Duration
	baseCtx context.Context
	logger  *log.Logger

	publishers      []func(Snapshot)
	transitionHooks []func(Transition)

	// pubMu keeps hook delivery in transition order.
	pubMu sync.Mutex
	mu    sync.Mutex
	epoch uint64
	seq   uint64
	table map[string]*entry

	wg sync.WaitGroup
}

func New(gen Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:     gen,
		baseCtx: context.Background(),
		logger:  log.Discard().WithComponent(log.ComponentInsight),
		table:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Reset drops every section and starts a new epoch. Results of dispatches
// from earlier epochs are discarded when they arrive.
func (o *Orchestrator) Reset() uint64 {
	o.pubMu.Lock()
	defer o.pubMu.Unlock()

	o.mu.Lock()
	o.epoch++
	o.table = make(map[string]*entry)
	epoch := o.epoch
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.logger.Debug("Insight table reset", log.FieldEpoch, epoch)
	o.publish(snap, nil)
	return epoch
}

// Epoch returns the current epoch.
func (o *Orchestrator) Epoch() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.epoch
}

// Dispatch requests an insight for key under the current epoch.
func (o *Orchestrator) Dispatch(key string, req core.InsightRequest) {
	o.DispatchAt(o.Epoch(), key, req)
}

// DispatchAt requests an insight for key if epoch is still current and
// reports whether it did. The key enters loading immediately.
func (o *Orchestrator) DispatchAt(epoch uint64, key string, req core.InsightRequest) bool {
	o.pubMu.Lock()

	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		o.pubMu.Unlock()
		o.logger.Debug("Dispatch for old epoch refused", log.FieldSectionKey, key, log.FieldEpoch, epoch)
		return false
	}
	o.seq++
	e := &entry{
		ticket: o.seq,
		title:  req.Title(),
		state:  State{Status: StatusLoading, Epoch: epoch, UpdatedAt: time.Now()},
	}
	o.table[key] = e
	snap := o.snapshotLocked()
	o.wg.Add(1)
	o.mu.Unlock()

	o.publish(snap, &Transition{Key: key, State: e.state, Title: e.title})
	o.pubMu.Unlock()

	o.logger.Debug("Insight dispatched",
		log.NewFields().WithOperation(log.OpDispatch).WithSection(key).ToSlice()...)

	go o.run(epoch, e.ticket, key, req)
	return true
}

func (o *Orchestrator) run(epoch, ticket uint64, key string, req core.InsightRequest) {
	defer o.wg.Done()

	ctx := o.baseCtx
	var cancel context.CancelFunc
	if o.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	text, err := o.generate(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyInsight
	}

	st := State{Epoch: epoch, UpdatedAt: time.Now()}
	if err != nil {
		st.Status = StatusFailed
		st.Err = err.Error()
	} else {
		st.Status = StatusReady
		st.Text = text
	}
	o.complete(ticket, key, st, err)
}

func (o *Orchestrator) generate(ctx context.Context, req core.InsightRequest) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("insight generator panicked: %v", r)
		}
	}()
	return o.gen.Generate(ctx, req)
}

func (o *Orchestrator) complete(ticket uint64, key string, st State, genErr error) {
	o.pubMu.Lock()
	defer o.pubMu.Unlock()

	o.mu.Lock()
	e, ok := o.table[key]
	if !ok || e.ticket != ticket || st.Epoch != o.epoch {
		current := o.epoch
		o.mu.Unlock()
		o.logger.Debug("Stale insight result discarded",
			log.FieldSectionKey, key, log.FieldEpoch, st.Epoch, "current_epoch", current)
		return
	}
	e.state = st
	snap := o.snapshotLocked()
	o.mu.Unlock()

	fields := log.NewFields().WithOperation(log.OpDispatch).WithSection(key)
	if genErr != nil {
		o.logger.Warn("Insight generation failed", fields.WithError(genErr).ToSlice()...)
	} else {
		o.logger.Debug("Insight ready", fields.ToSlice()...)
	}

	o.publish(snap, &Transition{Key: key, State: st, Title: e.title})
}

// State returns the entry for key; unknown keys are idle.
func (o *Orchestrator) State(key string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.table[key]; ok {
		return e.state
	}
	return State{Status: StatusIdle, Epoch: o.epoch}
}

// Snapshot returns a copy of the whole table.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Wait blocks until every dispatched request has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	states := make(map[string]State, len(o.table))
	for k, e := range o.table {
		states[k] = e.state
	}
	return Snapshot{Epoch: o.epoch, States: states}
}

// publish must be called with pubMu held.
func (o *Orchestrator) publish(snap Snapshot, t *Transition) {
	for _, fn := range o.publishers {
		fn(snap)
	}
	if t == nil {
		return
	}
	for _, fn := range o.transitionHooks {
		fn(*t)
	}
}
