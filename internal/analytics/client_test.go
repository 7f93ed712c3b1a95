package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finsight/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, nil)
}

func TestIncomeVsExpenses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analytics/income-vs-expenses" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("period"); got != "week" {
			t.Errorf("period = %q, want week", got)
		}
		io.WriteString(w, `{
			"data": [
				{"date":"2024-03-01","income":100,"expense":40,"isForecast":false},
				{"date":"2024-03-02","income":120,"expense":55,"isForecast":false,"anomaly":{"income":true,"expense":false}},
				{"date":"2024-03-03","income":130,"expense":60,"isForecast":true}
			],
			"insight_input": {"chart_title":"Income vs expenses","query_output":[]}
		}`)
	})

	got, err := c.IncomeVsExpenses(context.Background(), core.Week)
	if err != nil {
		t.Fatalf("IncomeVsExpenses() error = %v", err)
	}
	if len(got.Data) != 3 {
		t.Fatalf("got %d points, want 3", len(got.Data))
	}
	if got.Data[1].Anomaly == nil || !got.Data[1].Anomaly.Income {
		t.Errorf("anomaly not decoded: %+v", got.Data[1])
	}
	if !got.Data[2].IsForecast {
		t.Error("forecast flag lost")
	}
	if got.InsightInput.Title() != "Income vs expenses" {
		t.Errorf("insight title = %q", got.InsightInput.Title())
	}
}

func TestIncomeVsExpenses_InvalidPeriod(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an invalid period")
	})
	if _, err := c.IncomeVsExpenses(context.Background(), core.Period("year")); !errors.Is(err, core.ErrInvalidPeriod) {
		t.Errorf("error = %v, want ErrInvalidPeriod", err)
	}
}

func TestExpenseSummary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"by_category": [{"category":"rent","value":900},{"category":"food","value":300}],
			"by_day": [{"day":"Sun","value":10},{"day":"Mon","value":0}],
			"top_descriptions": [{"description":"Landlord","total":900}],
			"insight_inputs": {
				"by_category": {"chart_title":"Expense by category"},
				"by_day": {"chart_title":"Expense by day of the week"},
				"top_descriptions": {"chart_title":"Top 3 Expenses"}
			}
		}`)
	})

	got, err := c.ExpenseSummary(context.Background(), core.Month)
	if err != nil {
		t.Fatalf("ExpenseSummary() error = %v", err)
	}
	if len(got.ByCategory) != 2 || got.ByCategory[0].Category != "rent" {
		t.Errorf("by_category = %+v", got.ByCategory)
	}
	if len(got.ByDay) != 2 || got.TopDescriptions[0].Total != 900 {
		t.Errorf("breakdowns = %+v %+v", got.ByDay, got.TopDescriptions)
	}
	if len(got.InsightInputs) != 3 || got.InsightInputs["by_day"].Title() != "Expense by day of the week" {
		t.Errorf("insight inputs = %v", got.InsightInputs)
	}
}

func TestGoalForecast(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("goal_id"); got != "7" {
			t.Errorf("goal_id = %q, want 7", got)
		}
		io.WriteString(w, `{
			"data": [
				{"date":"2024-02","actual":500,"forecast":null,"ideal":null},
				{"date":"2024-03","actual":600,"forecast":600,"ideal":600},
				{"date":"2024-04","actual":null,"forecast":700,"ideal":750}
			],
			"goal": {"id":"7","name":"Car","target_amount":5000,"current_amount":600,"target_date":"2025-01-01"},
			"insight_input": {"chart_title":"Goal Forecast: Car"}
		}`)
	})

	got, err := c.GoalForecast(context.Background(), " 7 ")
	if err != nil {
		t.Fatalf("GoalForecast() error = %v", err)
	}
	if got.Goal == nil || got.Goal.Name != "Car" {
		t.Fatalf("goal = %+v", got.Goal)
	}
	if got.Data[0].Forecast.Valid || !got.Data[0].Actual.Valid {
		t.Errorf("first point = %+v", got.Data[0])
	}
	if got.Data[2].Actual.Valid || got.Data[2].Ideal.Value != 750 {
		t.Errorf("last point = %+v", got.Data[2])
	}
}

func TestGoalForecast_EmptyID(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second, nil)
	if _, err := c.GoalForecast(context.Background(), "  "); !errors.Is(err, core.ErrEmptyGoal) {
		t.Errorf("error = %v, want ErrEmptyGoal", err)
	}
}

func TestGoals(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":"1","name":"Trip","target_amount":2000,"current_amount":150,"target_date":"2024-12-01"}]`)
	})
	goals, err := c.Goals(context.Background())
	if err != nil {
		t.Fatalf("Goals() error = %v", err)
	}
	if len(goals) != 1 || goals[0].ID != "1" || goals[0].TargetAmount != 2000 {
		t.Errorf("goals = %+v", goals)
	}
}

func TestFetchFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"error":"db locked"}`, ErrFetch},
		{"not found", http.StatusNotFound, `{"error":"No goals found"}`, ErrFetch},
		{"not json", http.StatusOK, `<html>`, ErrFetch},
		{"error body with 200", http.StatusOK, `{"error":"boom"}`, core.ErrMalformedPayload},
		{"missing data", http.StatusOK, `{"insight_input":{}}`, core.ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := c.IncomeVsExpenses(context.Background(), core.Month)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, nil)
	if _, err := c.Goals(context.Background()); !errors.Is(err, ErrFetch) {
		t.Errorf("error = %v, want ErrFetch", err)
	}
}

func TestGenerate(t *testing.T) {
	var received map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/insights" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&received)
		io.WriteString(w, `{"insight":"Spending rose 12% this week."}`)
	})

	text, err := c.Generate(context.Background(), core.InsightRequest(`{"chart_title":"Weekly","query_output":[1,2]}`))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(text, "12%") {
		t.Errorf("text = %q", text)
	}
	if received["chart_title"] != "Weekly" {
		t.Errorf("payload not forwarded verbatim: %v", received)
	}
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"backend error", http.StatusInternalServerError, `{"error":"quota"}`, ErrFetch},
		{"no insight field", http.StatusOK, `{}`, core.ErrMalformedPayload},
		{"error field", http.StatusOK, `{"error":"bad input"}`, core.ErrMalformedPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			if _, err := c.Generate(context.Background(), core.InsightRequest(`{"a":1}`)); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	c := NewClient("http://127.0.0.1:1", time.Second, nil)
	if _, err := c.Generate(context.Background(), core.InsightRequest("null")); !errors.Is(err, core.ErrMalformedPayload) {
		t.Errorf("null payload error = %v", err)
	}
}
