package core

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// OptionalAmount is a chart value that may be absent. Absent values encode
// as JSON null so a renderer can tell "no value here" apart from zero.
type OptionalAmount struct {
	Value float64
	Valid bool
}

// Some returns a present amount.
func Some(v float64) OptionalAmount {
	return OptionalAmount{Value: v, Valid: true}
}

// None returns an absent amount.
func None() OptionalAmount {
	return OptionalAmount{}
}

// Get returns the value and whether it is present.
func (a OptionalAmount) Get() (float64, bool) {
	return a.Value, a.Valid
}

func (a OptionalAmount) String() string {
	if !a.Valid {
		return "-"
	}
	return strconv.FormatFloat(a.Value, 'f', 2, 64)
}

func (a OptionalAmount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.Value)
}

func (a *OptionalAmount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = OptionalAmount{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = Some(v)
	return nil
}
