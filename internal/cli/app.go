package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"finsight/internal/analytics"
	"finsight/internal/config"
	"finsight/internal/console"
	"finsight/internal/core"
	"finsight/internal/insight"
	"finsight/internal/log"
	"finsight/internal/view"
)

// ErrNoGoals is returned by "show goal" without an id when the analytics
// API has no goals.
var ErrNoGoals = errors.New("no goals defined")

// App is the finsightctl command tree. Each show command runs one panel
// view model in process and renders its frame once the insights settle.
type App struct {
	rootCmd *cobra.Command

	configFile   string
	analyticsURL string
	quiet        bool
	noInsights   bool

	cfg    *config.Config
	logger *log.Logger
}

func NewApp(version string) *App {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:               "finsightctl",
		Short:             "Terminal view of the finsight analytics panels",
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: app.setup,
	}
	rootCmd.SetVersionTemplate(`{{printf "finsightctl version: %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVarP(&app.configFile, "config-file", "C", "", "Path to a TOML, YAML, or JSON configuration file")
	rootCmd.PersistentFlags().StringVarP(&app.analyticsURL, "analytics-url", "u", "", "Analytics API base URL (overrides ANALYTICS_BASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&app.quiet, "quiet", "q", false, "Do not show progress while insights generate")
	rootCmd.PersistentFlags().BoolVar(&app.noInsights, "no-insights", false, "Render the chart only")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Render one analytics panel",
	}
	showCmd.AddCommand(
		app.periodCommand("income", "Daily income and expenses with forecast", view.PanelIncomeExpense),
		app.periodCommand("expenses", "Expense breakdown by category, day and description", view.PanelExpenseSummary),
		&cobra.Command{
			Use:   "goal [goal-id]",
			Short: "Goal progress forecast (first goal when no id is given)",
			Args:  cobra.MaximumNArgs(1),
			RunE:  app.runGoal,
		},
	)

	rootCmd.AddCommand(showCmd, &cobra.Command{
		Use:   "goals",
		Short: "List savings goals",
		Args:  cobra.NoArgs,
		RunE:  app.runGoals,
	})

	app.rootCmd = rootCmd
	return app
}

// Execute runs the command tree with ctx.
func (app *App) Execute(ctx context.Context) error {
	return app.rootCmd.ExecuteContext(ctx)
}

// SetArgs replaces os.Args[1:], for tests.
func (app *App) SetArgs(args []string) {
	app.rootCmd.SetArgs(args)
}

// SetOutput redirects rendered output and diagnostics.
func (app *App) SetOutput(out, errOut io.Writer) {
	app.rootCmd.SetOut(out)
	app.rootCmd.SetErr(errOut)
}

func (app *App) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFile(app.configFile)
	if err != nil {
		return err
	}
	if app.analyticsURL != "" {
		cfg.AnalyticsBaseURL = app.analyticsURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	app.cfg = cfg
	app.logger = SetupLogger(cfg.LogLevel, cmd.ErrOrStderr()).WithComponent(log.ComponentCLI)
	return nil
}

func (app *App) periodCommand(use, short, panel string) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := core.ParsePeriod(period)
			if err != nil {
				return err
			}
			return app.show(cmd, panel, core.PeriodSelection(p))
		},
	}
	cmd.Flags().StringVarP(&period, "period", "p", string(core.Month), "Reporting period: week or month")
	return cmd
}

func (app *App) runGoal(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return app.show(cmd, view.PanelGoalForecast, core.GoalSelection(args[0]))
	}
	goals, err := app.client().Goals(cmd.Context())
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}
	if len(goals) == 0 {
		return ErrNoGoals
	}
	return app.show(cmd, view.PanelGoalForecast, core.GoalSelection(goals[0].ID))
}

func (app *App) runGoals(cmd *cobra.Command, args []string) error {
	goals, err := app.client().Goals(cmd.Context())
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}
	return console.New(cmd.OutOrStdout()).Goals(goals)
}

func (app *App) client() *analytics.Client {
	return analytics.NewClient(app.cfg.AnalyticsBaseURL, app.cfg.RequestTimeout, app.logger)
}

// show selects sel on the named panel, waits for its insights unless told
// not to, and renders the frame. A failed fetch still renders the flagged
// frame before the error is returned.
func (app *App) show(cmd *cobra.Command, panelName string, sel core.Selection) error {
	ctx := cmd.Context()
	baseCtx, cancel := context.WithCancel(ctx)

	client := app.client()
	d := view.NewDashboard(client, client, view.DashboardConfig{
		CategoryLimit:  app.cfg.CategoryLimit,
		InsightTimeout: app.cfg.InsightTimeout,
		BaseContext:    baseCtx,
		Logger:         app.logger,
		ChartsOnly:     app.noInsights,
	})
	defer func() {
		cancel()
		d.Wait()
	}()

	panel, _ := d.Panel(panelName)
	selectErr := panel.Select(ctx, sel)
	if selectErr == nil && !app.noInsights {
		app.waitForInsights(ctx, cmd.ErrOrStderr(), panel)
	}

	if err := console.New(cmd.OutOrStdout()).Frame(panel.Latest()); err != nil {
		return err
	}
	if selectErr != nil {
		return fmt.Errorf("load %s: %w", panelName, selectErr)
	}
	return nil
}

func (app *App) waitForInsights(ctx context.Context, errOut io.Writer, panel view.Panel) {
	done := make(chan struct{})
	go func() {
		panel.Wait()
		close(done)
	}()

	var status *console.Status
	if !app.quiet {
		status = console.New(errOut).Status("Generating insights")
		defer status.Stop()
	}

	watchCtx, stop := context.WithCancel(ctx)
	defer stop()
	frames := panel.Watch(watchCtx)
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			if status != nil {
				status.Update(fmt.Sprintf("Generating insights (%d pending)", insight.Snapshot{States: f.Insights}.Pending()))
			}
		}
	}
}
