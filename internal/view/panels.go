package view

import (
	"context"
	"fmt"

	"finsight/internal/analytics"
	"finsight/internal/chart"
	"finsight/internal/core"
)

// Panel names, also used as URL segments.
const (
	PanelIncomeExpense  = "income-expense"
	PanelExpenseSummary = "expense-summary"
	PanelGoalForecast   = "goal-forecast"
)

// Insight section keys.
const (
	KeyIncomeVsExpenses = "income_vs_expenses"
	KeyByCategory       = "by_category"
	KeyByDay            = "by_day"
	KeyTopDescriptions  = "top_descriptions"
	KeyGoalForecast     = "goal_forecast"
)

// Source is the subset of the analytics API the panels read from.
type Source interface {
	IncomeVsExpenses(ctx context.Context, period core.Period) (analytics.IncomeVsExpenses, error)
	ExpenseSummary(ctx context.Context, period core.Period) (analytics.ExpenseSummary, error)
	GoalForecast(ctx context.Context, goalID string) (analytics.GoalForecast, error)
	Goals(ctx context.Context) ([]core.Goal, error)
}

type IncomeExpenseChart struct {
	Rows []chart.SeriesRow `json:"rows"`
	// Boundary is the index of the last historical row before the
	// forecast begins, or -1.
	Boundary int `json:"boundary"`
}

type ExpenseSummaryChart struct {
	ByCategory      []core.CategoryAggregate `json:"by_category"`
	CategoryTotal   float64                  `json:"category_total"`
	ByDay           []core.DayTotal          `json:"by_day"`
	TopDescriptions []core.DescriptionTotal  `json:"top_descriptions"`
}

type GoalForecastChart struct {
	Goal   *core.Goal       `json:"goal,omitempty"`
	Points []core.GoalPoint `json:"points"`
}

// IncomeExpenseLoader fetches the daily series and segments it into
// history and forecast channels.
func IncomeExpenseLoader(src Source) Loader[IncomeExpenseChart] {
	return func(ctx context.Context, sel core.Selection) (Load[IncomeExpenseChart], error) {
		resp, err := src.IncomeVsExpenses(ctx, sel.Period)
		if err != nil {
			return Load[IncomeExpenseChart]{}, err
		}
		rows, err := chart.Segment(resp.Data)
		if err != nil {
			return Load[IncomeExpenseChart]{}, fmt.Errorf("%w: %w", core.ErrMalformedPayload, err)
		}
		return Load[IncomeExpenseChart]{
			Chart:    IncomeExpenseChart{Rows: rows, Boundary: chart.Boundary(rows)},
			Insights: single(KeyIncomeVsExpenses, resp.InsightInput),
		}, nil
	}
}

// ExpenseSummaryLoader fetches the expense breakdowns and folds the
// category tail into "others".
func ExpenseSummaryLoader(src Source, categoryLimit int) Loader[ExpenseSummaryChart] {
	return func(ctx context.Context, sel core.Selection) (Load[ExpenseSummaryChart], error) {
		resp, err := src.ExpenseSummary(ctx, sel.Period)
		if err != nil {
			return Load[ExpenseSummaryChart]{}, err
		}
		condensed := chart.Condense(resp.ByCategory, categoryLimit)
		out := ExpenseSummaryChart{
			ByCategory:      condensed,
			CategoryTotal:   chart.Total(condensed),
			ByDay:           nonNil(resp.ByDay),
			TopDescriptions: nonNil(resp.TopDescriptions),
		}
		return Load[ExpenseSummaryChart]{Chart: out, Insights: resp.InsightInputs}, nil
	}
}

// GoalForecastLoader fetches the projection for the selected goal.
func GoalForecastLoader(src Source) Loader[GoalForecastChart] {
	return func(ctx context.Context, sel core.Selection) (Load[GoalForecastChart], error) {
		resp, err := src.GoalForecast(ctx, sel.GoalID)
		if err != nil {
			return Load[GoalForecastChart]{}, err
		}
		return Load[GoalForecastChart]{
			Chart:    GoalForecastChart{Goal: resp.Goal, Points: resp.Data},
			Insights: single(KeyGoalForecast, resp.InsightInput),
		}, nil
	}
}

func single(key string, req core.InsightRequest) map[string]core.InsightRequest {
	if req.IsEmpty() {
		return nil
	}
	return map[string]core.InsightRequest{key: req}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
