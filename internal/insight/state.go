package insight

import (
	"fmt"
	"time"
)

// Status is the lifecycle position of one insight section.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StatusIdle
	case "loading":
		*s = StatusLoading
	case "ready":
		*s = StatusReady
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown insight status %q", string(text))
	}
	return nil
}

// State is the current entry for one section key. Text is set only when
// Status is ready, Err only when it is failed.
type State struct {
	Status    Status    `json:"status"`
	Text      string    `json:"text,omitempty"`
	Err       string    `json:"error,omitempty"`
	Epoch     uint64    `json:"epoch"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the section has finished, successfully or not.
func (s State) Terminal() bool {
	return s.Status == StatusReady || s.Status == StatusFailed
}

// Snapshot is a copy of the whole keyed table at one instant.
type Snapshot struct {
	Epoch  uint64           `json:"epoch"`
	States map[string]State `json:"states"`
}

// Pending returns the number of sections still loading.
func (s Snapshot) Pending() int {
	n := 0
	for _, st := range s.States {
		if st.Status == StatusLoading {
			n++
		}
	}
	return n
}

// Transition describes one key moving to a new state.
type Transition struct {
	Key   string
	State State
	Title string
}
