package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"finsight/internal/analytics"
	"finsight/internal/core"
)

func analyticsStub(t *testing.T, goals string) *httptest.Server {
	return countingAnalyticsStub(t, goals, new(atomic.Int32))
}

// countingAnalyticsStub counts insight generation calls in insightCalls.
func countingAnalyticsStub(t *testing.T, goals string, insightCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/analytics/income-vs-expenses":
			if r.URL.Query().Get("period") == "week" {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			io.WriteString(w, `{"data":[{"date":"2024-03-01","income":100,"expense":50,"isForecast":false}]}`)
		case "/api/analytics/expense-summary":
			io.WriteString(w, `{"by_category":[{"category":"rent","value":900},{"category":"food","value":100}],
				"by_day":[{"day":"Mon","value":40}],"top_descriptions":[{"description":"landlord","total":900}],
				"insight_inputs":{"by_category":{"chart_title":"Expense by category"}}}`)
		case "/api/analytics/goal-forecast":
			io.WriteString(w, `{"data":[{"date":"2024-03","actual":600,"forecast":null,"ideal":null}],
				"goal":{"id":"`+r.URL.Query().Get("goal_id")+`","name":"Car","target_amount":5000,"current_amount":600,"target_date":"2025-01-01"}}`)
		case "/api/goals":
			io.WriteString(w, goals)
		case "/api/insights":
			insightCalls.Add(1)
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			io.WriteString(w, `{"insight":"Noted: `+body["chart_title"].(string)+`"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"FINSIGHT_CONFIG", "ANALYTICS_BASE_URL", "LOG_LEVEL", "AMQP_URL"} {
		t.Setenv(key, "")
	}
	color.NoColor = true
	pterm.DisableColor()

	var out, errOut bytes.Buffer
	app := NewApp("test")
	app.SetOutput(&out, &errOut)
	app.SetArgs(append(args, "--quiet"))
	err := app.Execute(context.Background())
	return out.String(), err
}

func TestShowExpenses(t *testing.T) {
	srv := analyticsStub(t, `[]`)

	out, err := run(t, "show", "expenses", "--period", "week", "--analytics-url", srv.URL)
	if err != nil {
		t.Fatalf("show expenses error = %v", err)
	}
	for _, want := range []string{"expense-summary (period:week)", "rent", "90.0%", "landlord", "by_category ready", "Noted: Expense by category"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestShowWithoutInsights(t *testing.T) {
	var insightCalls atomic.Int32
	srv := countingAnalyticsStub(t, `[]`, &insightCalls)

	out, err := run(t, "show", "expenses", "--no-insights", "-u", srv.URL)
	if err != nil {
		t.Fatalf("show expenses error = %v", err)
	}
	if strings.Contains(out, "by_category") {
		t.Errorf("insights should be omitted:\n%s", out)
	}
	if !strings.Contains(out, "period:month") {
		t.Errorf("period should default to month:\n%s", out)
	}
	if n := insightCalls.Load(); n != 0 {
		t.Errorf("insight endpoint called %d times, want 0", n)
	}
}

func TestShowIncomeFetchFailure(t *testing.T) {
	srv := analyticsStub(t, `[]`)

	out, err := run(t, "show", "income", "-p", "week", "-u", srv.URL)
	if !errors.Is(err, analytics.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if !strings.Contains(out, "chart data unavailable") {
		t.Errorf("flagged frame should still be rendered:\n%s", out)
	}
}

func TestShowIncomeRejectsUnknownPeriod(t *testing.T) {
	srv := analyticsStub(t, `[]`)

	_, err := run(t, "show", "income", "-p", "year", "-u", srv.URL)
	if !errors.Is(err, core.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestShowGoal(t *testing.T) {
	srv := analyticsStub(t, `[{"id":"7","name":"Car","target_amount":5000,"current_amount":600,"target_date":"2025-01-01"}]`)

	t.Run("first goal", func(t *testing.T) {
		out, err := run(t, "show", "goal", "-u", srv.URL)
		if err != nil {
			t.Fatalf("show goal error = %v", err)
		}
		if !strings.Contains(out, "goal:7") || !strings.Contains(out, "Car: 600.00 of 5000.00") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("explicit id", func(t *testing.T) {
		out, err := run(t, "show", "goal", "42", "-u", srv.URL)
		if err != nil {
			t.Fatalf("show goal error = %v", err)
		}
		if !strings.Contains(out, "goal:42") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})
}

func TestShowGoalWithoutGoals(t *testing.T) {
	srv := analyticsStub(t, `[]`)

	if _, err := run(t, "show", "goal", "-u", srv.URL); !errors.Is(err, ErrNoGoals) {
		t.Fatalf("expected ErrNoGoals, got %v", err)
	}
}

func TestGoalsCommand(t *testing.T) {
	srv := analyticsStub(t, `[{"id":"7","name":"Car","target_amount":5000,"current_amount":600,"target_date":"2025-01-01"}]`)

	out, err := run(t, "goals", "-u", srv.URL)
	if err != nil {
		t.Fatalf("goals error = %v", err)
	}
	for _, want := range []string{"7", "Car", "5000.00", "2025-01-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInvalidAnalyticsURL(t *testing.T) {
	if _, err := run(t, "goals", "-u", "ftp://example.com"); err == nil || !strings.Contains(err.Error(), "scheme") {
		t.Fatalf("expected validation error, got %v", err)
	}
}
