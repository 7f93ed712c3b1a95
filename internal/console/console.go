// Package console renders panel frames for a terminal.
package console

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"finsight/internal/core"
	"finsight/internal/insight"
	"finsight/internal/view"
)

// InsightUnavailable replaces the text of a failed insight.
const InsightUnavailable = "insight unavailable"

const barWidth = 30

var (
	BrightCyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	BrightGreen  = color.New(color.FgGreen, color.Bold).SprintFunc()
	BrightYellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	BrightRed    = color.New(color.FgRed, color.Bold).SprintFunc()
)

// Console writes rendered frames to out.
type Console struct {
	out io.Writer
}

func New(out io.Writer) *Console {
	return &Console{out: out}
}

// Frame renders f and writes it.
func (c *Console) Frame(f view.AnyFrame) error {
	_, err := fmt.Fprintln(c.out, Render(f))
	return err
}

// Goals writes the goal list as a table.
func (c *Console) Goals(goals []core.Goal) error {
	data := pterm.TableData{{"ID", "Name", "Current", "Target", "Target date"}}
	for _, g := range goals {
		data = append(data, []string{g.ID, g.Name, money(g.CurrentAmount), money(g.TargetAmount), g.TargetDate})
	}
	_, err := fmt.Fprintln(c.out, table(data))
	return err
}

// Status is a spinner shown while insights are generating.
type Status struct {
	spinner *pterm.SpinnerPrinter
}

// Status starts a spinner with message.
func (c *Console) Status(message string) *Status {
	spinner, _ := pterm.DefaultSpinner.WithWriter(c.out).Start(message)
	return &Status{spinner: spinner}
}

func (s *Status) Update(message string) {
	if s.spinner != nil {
		s.spinner.UpdateText(message)
	}
}

func (s *Status) Stop() {
	if s.spinner != nil {
		_ = s.spinner.Stop()
	}
}

// Render draws a frame: a heading, the chart as tables, then the insight
// sections in key order.
func Render(f view.AnyFrame) string {
	var b strings.Builder

	title := f.Panel
	if !f.Selection.IsZero() {
		title += " (" + f.Selection.String() + ")"
	}
	b.WriteString(BrightCyan(title))
	b.WriteString("\n")

	switch {
	case f.ChartError != "":
		b.WriteString(BrightRed(f.ChartError))
		b.WriteString("\n")
	case f.Loading:
		b.WriteString(BrightYellow("loading chart data"))
		b.WriteString("\n")
	}

	switch ch := f.Chart.(type) {
	case view.IncomeExpenseChart:
		b.WriteString(incomeExpense(ch))
	case view.ExpenseSummaryChart:
		b.WriteString(expenseSummary(ch))
	case view.GoalForecastChart:
		b.WriteString(goalForecast(ch))
	}

	if len(f.Insights) > 0 {
		b.WriteString("\n")
		b.WriteString(Insights(f.Insights))
	}
	return b.String()
}

// Insights renders one block per section key.
func Insights(states map[string]insight.State) string {
	keys := make([]string, 0, len(states))
	for k := range states {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		st := states[k]
		b.WriteString(BrightCyan(k))
		b.WriteString(" ")
		switch st.Status {
		case insight.StatusReady:
			b.WriteString(BrightGreen(st.Status.String()))
			b.WriteString("\n")
			b.WriteString(strings.TrimSpace(st.Text))
		case insight.StatusFailed:
			b.WriteString(BrightRed(st.Status.String()))
			b.WriteString("\n")
			b.WriteString(InsightUnavailable)
		default:
			b.WriteString(BrightYellow(st.Status.String()))
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func incomeExpense(ch view.IncomeExpenseChart) string {
	if len(ch.Rows) == 0 {
		return "no data for this period\n"
	}
	maxExpense := 0.0
	for _, r := range ch.Rows {
		maxExpense = math.Max(maxExpense, r.Expense)
	}

	data := pterm.TableData{{"Day", "Income", "Expense", "", "Kind"}}
	for i, r := range ch.Rows {
		kind := "history"
		if r.IsForecast {
			kind = pterm.FgYellow.Sprint("forecast")
		} else if i == ch.Boundary {
			kind = "history *"
		}
		income := money(r.Income)
		expense := money(r.Expense)
		if r.Anomaly != nil && r.Anomaly.Income {
			income = pterm.FgRed.Sprint(income + " !")
		}
		if r.Anomaly != nil && r.Anomaly.Expense {
			expense = pterm.FgRed.Sprint(expense + " !")
		}
		data = append(data, []string{r.Label, income, expense, bar(r.Expense, maxExpense), kind})
	}
	return table(data)
}

func expenseSummary(ch view.ExpenseSummaryChart) string {
	var b strings.Builder

	cats := pterm.TableData{{"Category", "Amount", "Share"}}
	for _, c := range ch.ByCategory {
		share := 0.0
		if ch.CategoryTotal > 0 {
			share = c.Value / ch.CategoryTotal * 100
		}
		cats = append(cats, []string{c.Category, money(c.Value), fmt.Sprintf("%.1f%%", share)})
	}
	b.WriteString(table(cats))

	if len(ch.ByDay) > 0 {
		maxDay := 0.0
		for _, d := range ch.ByDay {
			maxDay = math.Max(maxDay, d.Value)
		}
		days := pterm.TableData{{"Day", "Amount", ""}}
		for _, d := range ch.ByDay {
			days = append(days, []string{d.Day, money(d.Value), bar(d.Value, maxDay)})
		}
		b.WriteString(table(days))
	}

	if len(ch.TopDescriptions) > 0 {
		top := pterm.TableData{{"Description", "Total"}}
		for _, d := range ch.TopDescriptions {
			top = append(top, []string{d.Description, money(d.Total)})
		}
		b.WriteString(table(top))
	}
	return b.String()
}

func goalForecast(ch view.GoalForecastChart) string {
	var b strings.Builder
	if g := ch.Goal; g != nil {
		fmt.Fprintf(&b, "%s: %s of %s by %s\n", BrightCyan(g.Name), money(g.CurrentAmount), money(g.TargetAmount), g.TargetDate)
	}
	data := pterm.TableData{{"Month", "Actual", "Forecast", "Ideal"}}
	for _, p := range ch.Points {
		data = append(data, []string{p.Date, p.Actual.String(), p.Forecast.String(), p.Ideal.String()})
	}
	b.WriteString(table(data))
	return b.String()
}

func table(data pterm.TableData) string {
	rendered, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(data).
		Srender()
	if err != nil {
		return err.Error() + "\n"
	}
	return rendered + "\n"
}

func bar(v, peak float64) string {
	if peak <= 0 || v <= 0 {
		return ""
	}
	return pterm.FgBlue.Sprint(strings.Repeat("█", int(v/peak*barWidth)))
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
