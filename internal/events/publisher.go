package events

import (
	"context"
	"errors"

	"finsight/internal/insight"
	"finsight/internal/log"
)

// ErrQueueFull is returned when the publisher's buffer cannot take another
// event. The event is dropped.
var ErrQueueFull = errors.New("insight event queue full")

type eventPublisher interface {
	Publish(ctx context.Context, event *InsightEvent) error
}

// Publisher buffers insight transitions and publishes them from its own
// goroutine, so a slow broker never holds up insight state changes.
type Publisher struct {
	target eventPublisher
	queue  chan *InsightEvent
	logger *log.Logger
}

func NewPublisher(target eventPublisher, size int, logger *log.Logger) *Publisher {
	if size < 1 {
		size = 64
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Publisher{
		target: target,
		queue:  make(chan *InsightEvent, size),
		logger: logger.WithComponent(log.ComponentEvents),
	}
}

// PublishInsight enqueues the event for t without blocking.
func (p *Publisher) PublishInsight(_ context.Context, panel string, t insight.Transition) error {
	select {
	case p.queue <- NewInsightEvent(panel, t):
		return nil
	default:
		return ErrQueueFull
	}
}

// Run publishes queued events until ctx is done, then drains what is left
// on a best-effort basis.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case e := <-p.queue:
			p.publish(ctx, e)
		case <-ctx.Done():
			p.drain()
			return nil
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	for {
		select {
		case e := <-p.queue:
			p.publish(ctx, e)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, e *InsightEvent) {
	if err := p.target.Publish(ctx, e); err != nil {
		p.logger.WarnContext(ctx, "Insight event dropped",
			log.NewFields().WithOperation(log.OpPublish).WithSection(e.Section).WithError(err).ToSlice()...)
	}
}
