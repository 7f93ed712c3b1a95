package analytics

import "finsight/internal/core"

// IncomeVsExpenses is the payload of /api/analytics/income-vs-expenses.
type IncomeVsExpenses struct {
	Data         []core.PeriodPoint  `json:"data"`
	InsightInput core.InsightRequest `json:"insight_input,omitempty"`
}

// ExpenseSummary is the payload of /api/analytics/expense-summary.
type ExpenseSummary struct {
	ByCategory      []core.CategoryAggregate       `json:"by_category"`
	ByDay           []core.DayTotal                `json:"by_day"`
	TopDescriptions []core.DescriptionTotal        `json:"top_descriptions"`
	InsightInputs   map[string]core.InsightRequest `json:"insight_inputs,omitempty"`
}

// GoalForecast is the payload of /api/analytics/goal-forecast.
type GoalForecast struct {
	Data         []core.GoalPoint    `json:"data"`
	Goal         *core.Goal          `json:"goal,omitempty"`
	InsightInput core.InsightRequest `json:"insight_input,omitempty"`
}

type insightResponse struct {
	Insight *string `json:"insight"`
	Error   string  `json:"error"`
}

type errorBody struct {
	Error string `json:"error"`
}
