package events

import (
	"encoding/json"
	"errors"
	"time"

	"finsight/internal/insight"
)

// InsightEvent records one insight section changing state. The generated
// text itself is not carried, only its length.
type InsightEvent struct {
	Panel      string    `json:"panel"`
	Section    string    `json:"section"`
	Status     string    `json:"status"`
	Epoch      uint64    `json:"epoch"`
	ChartTitle string    `json:"chart_title,omitempty"`
	Error      string    `json:"error,omitempty"`
	TextLength int       `json:"text_length,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

var errIncompleteEvent = errors.New("insight event needs panel, section and status")

// NewInsightEvent builds the event for one transition.
func NewInsightEvent(panel string, t insight.Transition) *InsightEvent {
	ts := t.State.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &InsightEvent{
		Panel:      panel,
		Section:    t.Key,
		Status:     t.State.Status.String(),
		Epoch:      t.State.Epoch,
		ChartTitle: t.Title,
		Error:      t.State.Err,
		TextLength: len(t.State.Text),
		Timestamp:  ts,
	}
}

// ToJSON converts the message to JSON bytes
func (e *InsightEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// InsightEventFromJSON decodes and checks an event.
func InsightEventFromJSON(data []byte) (*InsightEvent, error) {
	var e InsightEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Panel == "" || e.Section == "" || e.Status == "" {
		return nil, errIncompleteEvent
	}
	return &e, nil
}
