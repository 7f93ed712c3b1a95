package view

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"finsight/internal/core"
	"finsight/internal/insight"
	"finsight/internal/log"
)

// Panel is a Model with its chart type erased, for transports that serve
// every panel the same way.
type Panel interface {
	Name() string
	Selection() core.Selection
	Select(ctx context.Context, sel core.Selection) error
	Latest() AnyFrame
	Watch(ctx context.Context) <-chan AnyFrame
	Wait()
}

// InsightSink receives insight transitions from every panel.
type InsightSink interface {
	PublishInsight(ctx context.Context, panel string, t insight.Transition) error
}

type DashboardConfig struct {
	CategoryLimit  int
	InsightTimeout time.Duration
	// BaseContext parents every insight request; cancel it on shutdown.
	BaseContext context.Context
	Logger      *log.Logger
	Sink        InsightSink
	// ChartsOnly loads charts without requesting any insight.
	ChartsOnly bool
}

// Dashboard bundles the three analytics panels.
type Dashboard struct {
	Income   *Model[IncomeExpenseChart]
	Expenses *Model[ExpenseSummaryChart]
	Goals    *Model[GoalForecastChart]

	source Source
	logger *log.Logger
	panels map[string]Panel
}

func NewDashboard(src Source, gen insight.Generator, cfg DashboardConfig) *Dashboard {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	base := cfg.BaseContext
	if base == nil {
		base = context.Background()
	}

	opts := func(panel string) []Option {
		insightOpts := []insight.Option{
			insight.WithTimeout(cfg.InsightTimeout),
			insight.WithBaseContext(base),
		}
		if cfg.Sink != nil {
			sink := cfg.Sink
			insightOpts = append(insightOpts, insight.WithTransitionHook(func(t insight.Transition) {
				if err := sink.PublishInsight(base, panel, t); err != nil {
					logger.WithComponent(log.ComponentEvents).Warn("Insight event not published",
						log.FieldPanel, panel, log.FieldSectionKey, t.Key, log.FieldError, err.Error())
				}
			}))
		}
		modelOpts := []Option{WithLogger(logger), WithInsightOptions(insightOpts...)}
		if cfg.ChartsOnly {
			modelOpts = append(modelOpts, WithChartsOnly())
		}
		return modelOpts
	}

	d := &Dashboard{
		Income:   NewModel(PanelIncomeExpense, IncomeExpenseLoader(src), gen, opts(PanelIncomeExpense)...),
		Expenses: NewModel(PanelExpenseSummary, ExpenseSummaryLoader(src, cfg.CategoryLimit), gen, opts(PanelExpenseSummary)...),
		Goals:    NewModel(PanelGoalForecast, GoalForecastLoader(src), gen, opts(PanelGoalForecast)...),
		source:   src,
		logger:   logger.WithComponent(log.ComponentView),
	}
	d.panels = map[string]Panel{
		PanelIncomeExpense:  d.Income,
		PanelExpenseSummary: d.Expenses,
		PanelGoalForecast:   d.Goals,
	}
	return d
}

// Panel looks a panel up by name.
func (d *Dashboard) Panel(name string) (Panel, bool) {
	p, ok := d.panels[name]
	return p, ok
}

// Panels returns the panel names in display order.
func (d *Dashboard) Panels() []string {
	return []string{PanelIncomeExpense, PanelExpenseSummary, PanelGoalForecast}
}

// Start makes the initial selections: the month period on both period
// panels and the first goal on the goal panel. Failures are logged by the
// panels and returned joined; the dashboard stays usable either way.
func (d *Dashboard) Start(ctx context.Context) error {
	var g errgroup.Group
	errs := make([]error, 3)

	g.Go(func() error {
		errs[0] = d.Income.Select(ctx, core.PeriodSelection(core.Month))
		return nil
	})
	g.Go(func() error {
		errs[1] = d.Expenses.Select(ctx, core.PeriodSelection(core.Month))
		return nil
	})
	g.Go(func() error {
		goals, err := d.source.Goals(ctx)
		if err != nil {
			errs[2] = fmt.Errorf("list goals: %w", err)
			return nil
		}
		if len(goals) == 0 {
			d.logger.InfoContext(ctx, "No goals defined, goal panel left empty")
			return nil
		}
		errs[2] = d.Goals.Select(ctx, core.GoalSelection(goals[0].ID))
		return nil
	})
	g.Wait()

	for i, err := range errs {
		if errors.Is(err, ErrStaleSelection) {
			errs[i] = nil
		}
	}
	return errors.Join(errs...)
}

// ListGoals passes the goal list through for selectors.
func (d *Dashboard) ListGoals(ctx context.Context) ([]core.Goal, error) {
	return d.source.Goals(ctx)
}

// Wait blocks until every panel's in-flight insight requests have returned.
func (d *Dashboard) Wait() {
	for _, name := range d.Panels() {
		d.panels[name].Wait()
	}
}
