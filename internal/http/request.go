package http

import (
	"fmt"
	"net/url"
	"strings"

	"finsight/internal/core"
	"finsight/internal/view"
)

// parseSelection reads the selection for panel from the query. Missing
// parameters keep the panel's current selection; a period panel that has
// none yet defaults to the month period.
func parseSelection(panel string, query url.Values, current core.Selection) (core.Selection, error) {
	switch panel {
	case view.PanelGoalForecast:
		id := strings.TrimSpace(query.Get("goal_id"))
		if id == "" {
			if current.GoalID == "" {
				return core.Selection{}, fmt.Errorf("%w: goal_id is required", core.ErrEmptyGoal)
			}
			return current, nil
		}
		return core.GoalSelection(sanitizeInput(id)), nil
	default:
		raw := strings.TrimSpace(query.Get("period"))
		if raw == "" && current.Period != "" {
			return current, nil
		}
		p, err := core.ParsePeriod(raw)
		if err != nil {
			return core.Selection{}, err
		}
		return core.PeriodSelection(p), nil
	}
}

// wantsRefresh reports whether the caller asked to reload an unchanged
// selection.
func wantsRefresh(query url.Values) bool {
	switch strings.ToLower(strings.TrimSpace(query.Get("refresh"))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// sanitizeInput drops control characters and surrounding whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
