package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Week  Period = "week"
	Month Period = "month"
)

const dateLayout = "2006-01-02"

type (
	// Period is the reporting window requested from the analytics API.
	Period string

	Date struct {
		time.Time
	}

	// Selection identifies what a view is currently showing: a reporting
	// period for the period panels, a goal id for the goal panel.
	Selection struct {
		Period Period `json:"period,omitempty"`
		GoalID string `json:"goal_id,omitempty"`
	}

	Anomaly struct {
		Income  bool `json:"income"`
		Expense bool `json:"expense"`
	}

	PeriodPoint struct {
		Date       Date     `json:"date"`
		Income     float64  `json:"income"`
		Expense    float64  `json:"expense"`
		IsForecast bool     `json:"isForecast"`
		Anomaly    *Anomaly `json:"anomaly,omitempty"`
	}

	CategoryAggregate struct {
		Category string  `json:"category"`
		Value    float64 `json:"value"`
	}

	DayTotal struct {
		Day   string  `json:"day"`
		Value float64 `json:"value"`
	}

	DescriptionTotal struct {
		Description string  `json:"description"`
		Total       float64 `json:"total"`
	}

	Goal struct {
		ID            string  `json:"id"`
		Name          string  `json:"name"`
		TargetAmount  float64 `json:"target_amount"`
		CurrentAmount float64 `json:"current_amount"`
		TargetDate    string  `json:"target_date"`
	}

	// GoalPoint is one month of a goal projection. Actual is absent for
	// future months, Forecast and Ideal are absent for past months.
	GoalPoint struct {
		Date     string         `json:"date"`
		Actual   OptionalAmount `json:"actual"`
		Forecast OptionalAmount `json:"forecast"`
		Ideal    OptionalAmount `json:"ideal"`
	}
)

var (
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrEmptyGoal        = errors.New("empty goal id")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrInvalidDate      = errors.New("invalid date")
)

// ParsePeriod accepts "week" or "month" in any case. An empty string
// selects Month, matching the dashboard default.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Month, nil
	case Week, Month:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}

func (p Period) Validate() error {
	if p != Week && p != Month {
		return fmt.Errorf("%w: %q", ErrInvalidPeriod, string(p))
	}
	return nil
}

func (p Period) String() string {
	return string(p)
}

// PeriodSelection returns a Selection for a period panel.
func PeriodSelection(p Period) Selection {
	return Selection{Period: p}
}

// GoalSelection returns a Selection for the goal panel.
func GoalSelection(id string) Selection {
	return Selection{GoalID: strings.TrimSpace(id)}
}

func (s Selection) IsZero() bool {
	return s.Period == "" && s.GoalID == ""
}

// String renders the selection as a stable key, used in logs and events.
func (s Selection) String() string {
	switch {
	case s.GoalID != "":
		return "goal:" + s.GoalID
	case s.Period != "":
		return "period:" + string(s.Period)
	default:
		return "none"
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts YYYY-MM-DD and, for robustness against the
// backend's serializer, full RFC 3339 timestamps.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(data))
	}
	if parsed, err := ParseDate(s); err == nil {
		*d = parsed
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	*d = NewDate(t.Year(), int(t.Month()), t.Day())
	return nil
}
