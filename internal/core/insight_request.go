package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// InsightRequest is the opaque payload the analytics API hands back for
// narrative generation. It is forwarded to the insight endpoint verbatim.
type InsightRequest json.RawMessage

func (r InsightRequest) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return []byte(r), nil
}

func (r *InsightRequest) UnmarshalJSON(data []byte) error {
	if r == nil {
		return fmt.Errorf("%w: nil insight request", ErrMalformedPayload)
	}
	*r = append((*r)[0:0], data...)
	return nil
}

// IsEmpty reports whether the payload is missing or JSON null.
func (r InsightRequest) IsEmpty() bool {
	trimmed := bytes.TrimSpace(r)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Title returns the chart_title field when the payload carries one.
// Only used for logging; the payload shape belongs to the backend.
func (r InsightRequest) Title() string {
	var probe struct {
		ChartTitle string `json:"chart_title"`
	}
	if err := json.Unmarshal(r, &probe); err != nil {
		return ""
	}
	return probe.ChartTitle
}

// Fingerprint returns a stable digest of the payload. Insignificant
// whitespace does not change the fingerprint.
func (r InsightRequest) Fingerprint() string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, r); err != nil {
		buf.Reset()
		buf.Write(r)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
