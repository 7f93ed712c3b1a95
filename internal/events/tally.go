package events

import (
	"sort"
	"sync"

	"finsight/internal/log"
)

// Tally logs consumed insight events and counts them per panel and status.
type Tally struct {
	logger *log.Logger

	mu     sync.Mutex
	counts map[string]map[string]int
}

func NewTally(logger *log.Logger) *Tally {
	if logger == nil {
		logger = log.Discard()
	}
	return &Tally{
		logger: logger.WithComponent(log.ComponentEvents),
		counts: make(map[string]map[string]int),
	}
}

// Handle is a Consume handler. It never fails, so messages are always acked.
func (t *Tally) Handle(e *InsightEvent) error {
	t.mu.Lock()
	byStatus, ok := t.counts[e.Panel]
	if !ok {
		byStatus = make(map[string]int)
		t.counts[e.Panel] = byStatus
	}
	byStatus[e.Status]++
	t.mu.Unlock()

	args := []any{
		log.FieldPanel, e.Panel,
		log.FieldSectionKey, e.Section,
		log.FieldStatus, e.Status,
		log.FieldEpoch, e.Epoch,
	}
	if e.ChartTitle != "" {
		args = append(args, log.FieldTitle, e.ChartTitle)
	}
	switch e.Status {
	case "failed":
		t.logger.Warn("Insight failed", append(args, log.FieldError, e.Error)...)
	case "ready":
		t.logger.Info("Insight ready", append(args, "text_length", e.TextLength)...)
	default:
		t.logger.Debug("Insight transition", args...)
	}
	return nil
}

// Count returns how many events with status were seen for panel.
func (t *Tally) Count(panel, status string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[panel][status]
}

// LogSummary writes one line per panel with its counts.
func (t *Tally) LogSummary() {
	t.mu.Lock()
	defer t.mu.Unlock()

	panels := make([]string, 0, len(t.counts))
	for p := range t.counts {
		panels = append(panels, p)
	}
	sort.Strings(panels)
	for _, p := range panels {
		c := t.counts[p]
		t.logger.Info("Insight event summary", log.FieldPanel, p,
			"loading", c["loading"], "ready", c["ready"], "failed", c["failed"])
	}
}
