package view

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"finsight/internal/core"
	"finsight/internal/insight"
	"finsight/internal/log"
)

// ErrStaleSelection is returned by Select when a newer selection started
// while this one was loading. Its data has been dropped.
var ErrStaleSelection = errors.New("selection superseded")

// ChartUnavailable is the neutral message shown when chart data could not
// be fetched.
const ChartUnavailable = "chart data unavailable"

// Load is what a loader hands back: reshaped chart data plus the insight
// payloads keyed by section.
type Load[T any] struct {
	Chart    T
	Insights map[string]core.InsightRequest
}

// Loader fetches and reshapes the data for one selection.
type Loader[T any] func(ctx context.Context, sel core.Selection) (Load[T], error)

// FrameHeader is the part of a frame that does not depend on the chart type.
type FrameHeader struct {
	Panel      string                   `json:"panel"`
	Selection  core.Selection           `json:"selection"`
	Loading    bool                     `json:"loading"`
	ChartError string                   `json:"chart_error,omitempty"`
	Epoch      uint64                   `json:"epoch"`
	Version    uint64                   `json:"version"`
	Insights   map[string]insight.State `json:"insights"`
	UpdatedAt  time.Time                `json:"updated_at"`
}

// Frame is everything a presentation layer needs to draw one panel.
type Frame[T any] struct {
	FrameHeader
	Chart T `json:"chart"`
}

// AnyFrame is a Frame with its chart type erased.
type AnyFrame struct {
	FrameHeader
	Chart any `json:"chart"`
}

type options struct {
	logger      *log.Logger
	insightOpts []insight.Option
	chartsOnly  bool
}

type Option func(*options)

func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithChartsOnly stops the model from dispatching insight requests; the
// insight table stays empty.
func WithChartsOnly() Option {
	return func(o *options) { o.chartsOnly = true }
}

// WithInsightOptions forwards options to the panel's orchestrator.
func WithInsightOptions(opts ...insight.Option) Option {
	return func(o *options) { o.insightOpts = append(o.insightOpts, opts...) }
}

// Model drives one panel: each Select resets the insight table, loads and
// publishes the chart, then dispatches the insight requests that came
// with it.
type Model[T any] struct {
	name       string
	loader     Loader[T]
	orch       *insight.Orchestrator
	logger     *log.Logger
	chartsOnly bool

	// selectMu orders selections and epochs together, so the newest
	// selection always owns the newest epoch.
	selectMu sync.Mutex

	mu      sync.Mutex
	frame   Frame[T]
	seq     uint64
	subs    map[int]chan Frame[T]
	nextSub int
}

func NewModel[T any](name string, loader Loader[T], gen insight.Generator, opts ...Option) *Model[T] {
	o := options{logger: log.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Model[T]{
		name:       name,
		loader:     loader,
		logger:     o.logger.WithComponent(log.ComponentView).With(log.FieldPanel, name),
		chartsOnly: o.chartsOnly,
		subs:       make(map[int]chan Frame[T]),
	}
	m.frame.Panel = name
	m.frame.Insights = map[string]insight.State{}

	insightOpts := append([]insight.Option{
		insight.WithLogger(o.logger.With(log.FieldPanel, name)),
		insight.WithPublisher(m.onSnapshot),
	}, o.insightOpts...)
	m.orch = insight.New(gen, insightOpts...)
	return m
}

func (m *Model[T]) Name() string { return m.name }

// Selection returns the most recently requested selection.
func (m *Model[T]) Selection() core.Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame.Selection
}

// Select switches the panel to sel. Chart data is published before any
// insight is dispatched. A failed fetch keeps the previous chart and flags
// the frame; the error is returned for logging only.
func (m *Model[T]) Select(ctx context.Context, sel core.Selection) error {
	m.selectMu.Lock()
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.frame.Selection = sel
	m.frame.Loading = true
	m.mu.Unlock()
	epoch := m.orch.Reset()
	m.selectMu.Unlock()
	fields := log.NewFields().WithOperation(log.OpSelect).WithView(m.name, sel.String(), epoch)
	m.logger.DebugContext(ctx, "Selection changed", fields.ToSlice()...)

	load, err := m.loader(ctx, sel)

	m.mu.Lock()
	if seq != m.seq {
		m.mu.Unlock()
		m.logger.DebugContext(ctx, "Loader result dropped", fields.WithError(ErrStaleSelection).ToSlice()...)
		return ErrStaleSelection
	}
	m.frame.Loading = false
	m.frame.UpdatedAt = time.Now()
	if err != nil {
		m.frame.ChartError = ChartUnavailable
		m.publishLocked()
		m.mu.Unlock()
		m.logger.WarnContext(ctx, "Chart data fetch failed", fields.WithOperation(log.OpFetch).WithError(err).ToSlice()...)
		return err
	}
	m.frame.Chart = load.Chart
	m.frame.ChartError = ""
	m.publishLocked()
	m.mu.Unlock()

	if m.chartsOnly {
		return nil
	}
	keys := make([]string, 0, len(load.Insights))
	for k, req := range load.Insights {
		if !req.IsEmpty() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.orch.DispatchAt(epoch, k, load.Insights[k])
	}
	return nil
}

// Frame returns a copy of the latest frame.
func (m *Model[T]) Frame() Frame[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyLocked()
}

// Latest returns the latest frame with its chart type erased.
func (m *Model[T]) Latest() AnyFrame {
	f := m.Frame()
	return AnyFrame{FrameHeader: f.FrameHeader, Chart: f.Chart}
}

// Subscribe returns a channel receiving the frame after every chart or
// insight transition. Slow readers only see the newest frame. The channel
// is closed when ctx is done.
func (m *Model[T]) Subscribe(ctx context.Context) <-chan Frame[T] {
	ch := make(chan Frame[T], 1)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.copyLocked()
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, id)
		close(ch)
		m.mu.Unlock()
	}()
	return ch
}

// Watch is Subscribe with the chart type erased.
func (m *Model[T]) Watch(ctx context.Context) <-chan AnyFrame {
	in := m.Subscribe(ctx)
	out := make(chan AnyFrame, 1)
	go func() {
		defer close(out)
		for f := range in {
			select {
			case out <- AnyFrame{FrameHeader: f.FrameHeader, Chart: f.Chart}:
			case <-ctx.Done():
			}
		}
	}()
	return out
}

// Insight returns the state of one insight section.
func (m *Model[T]) Insight(key string) insight.State {
	return m.orch.State(key)
}

// Wait blocks until in-flight insight requests have returned.
func (m *Model[T]) Wait() {
	m.orch.Wait()
}

func (m *Model[T]) onSnapshot(s insight.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Epoch < m.frame.Epoch {
		return
	}
	m.frame.Epoch = s.Epoch
	m.frame.Insights = s.States
	m.publishLocked()
}

func (m *Model[T]) publishLocked() {
	m.frame.Version++
	f := m.copyLocked()
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- f
	}
}

func (m *Model[T]) copyLocked() Frame[T] {
	f := m.frame
	f.Insights = make(map[string]insight.State, len(m.frame.Insights))
	for k, v := range m.frame.Insights {
		f.Insights[k] = v
	}
	return f
}
