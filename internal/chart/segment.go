// Package chart reshapes analytics responses into render-ready structures.
package chart

import (
	"errors"
	"fmt"

	"finsight/internal/core"
)

// LabelLayout formats the x-axis label of a series row ("Jan 2").
const LabelLayout = "Jan 2"

var (
	// ErrInterleavedSeries is returned when history and forecast points
	// alternate more than once. Only a single history→forecast boundary
	// can be bridged.
	ErrInterleavedSeries = errors.New("series has more than one history/forecast boundary")
	ErrUnorderedSeries   = errors.New("series dates are not ascending")
)

// SeriesRow is one x-axis position of the income/expense line chart.
// History channels are absent on forecast rows and vice versa, except on
// the last history row, whose forecast channels repeat its own values so
// the dashed forecast line starts where the solid line ends.
type SeriesRow struct {
	Date       core.Date     `json:"date"`
	Label      string        `json:"name"`
	Income     float64       `json:"income"`
	Expense    float64       `json:"expense"`
	IsForecast bool          `json:"isForecast"`
	Anomaly    *core.Anomaly `json:"anomaly,omitempty"`

	IncomeHistory   core.OptionalAmount `json:"incomeHistory"`
	IncomeForecast  core.OptionalAmount `json:"incomeForecast"`
	ExpenseHistory  core.OptionalAmount `json:"expenseHistory"`
	ExpenseForecast core.OptionalAmount `json:"expenseForecast"`
}

// Segment splits points into parallel history/forecast channels and
// bridges the history→forecast boundary. An empty input yields an empty,
// non-nil result.
func Segment(points []core.PeriodPoint) ([]SeriesRow, error) {
	if err := validateSeries(points); err != nil {
		return nil, err
	}

	rows := make([]SeriesRow, len(points))
	for i, p := range points {
		row := SeriesRow{
			Date:       p.Date,
			Label:      p.Date.Format(LabelLayout),
			Income:     p.Income,
			Expense:    p.Expense,
			IsForecast: p.IsForecast,
			Anomaly:    p.Anomaly,
		}
		if p.IsForecast {
			row.IncomeForecast = core.Some(p.Income)
			row.ExpenseForecast = core.Some(p.Expense)
		} else {
			row.IncomeHistory = core.Some(p.Income)
			row.ExpenseHistory = core.Some(p.Expense)
		}
		rows[i] = row
	}

	for i := 0; i+1 < len(rows); i++ {
		if !rows[i].IsForecast && rows[i+1].IsForecast {
			rows[i].IncomeForecast = rows[i].IncomeHistory
			rows[i].ExpenseForecast = rows[i].ExpenseHistory
		}
	}

	return rows, nil
}

// validateSeries enforces ascending dates and a history-then-forecast shape.
func validateSeries(points []core.PeriodPoint) error {
	seenForecast := false
	for i, p := range points {
		if i > 0 && p.Date.Before(points[i-1].Date.Time) {
			return fmt.Errorf("%w: %s after %s (index %d)", ErrUnorderedSeries, p.Date, points[i-1].Date, i)
		}
		if p.IsForecast {
			seenForecast = true
			continue
		}
		if seenForecast {
			return fmt.Errorf("%w: history point %s follows a forecast (index %d)", ErrInterleavedSeries, p.Date, i)
		}
	}
	return nil
}

// Boundary returns the index of the last history point before the
// forecast begins, or -1 when the series is not bridged.
func Boundary(rows []SeriesRow) int {
	for i := 0; i+1 < len(rows); i++ {
		if !rows[i].IsForecast && rows[i+1].IsForecast {
			return i
		}
	}
	return -1
}
