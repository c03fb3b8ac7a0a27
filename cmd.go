package main

import (
	"context"
	"errors"
	"fmt"
	clts "garminai/clients"
	"garminai/clients/assistantapi"
	"garminai/clients/updates"
	"garminai/config"
	"garminai/internal/app"
	"garminai/internal/ui"
	"io"
	"net/http"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// CLI holds the state shared by all subcommands.
type CLI struct {
	ctx     context.Context
	cfg     *config.Config
	logger  *zap.Logger
	clients *clts.Clients
	runner  *app.Runner
	out     io.Writer
}

// interactiveAnnotation marks commands that own the terminal; they log to a file.
const interactiveAnnotation = "interactive"

// newRootCommand returns the root command and a cleanup func that releases
// whatever the executed subcommand set up.
func newRootCommand(ctx context.Context) (*cobra.Command, func()) {
	cli := &CLI{ctx: ctx}

	root := &cobra.Command{
		Use:   "garminai",
		Short: "Terminal client for the Garmin AI assistant service",
		Long: fmt.Sprintf(`%s

Pick a sport or an activity and ask the assistant service for an analysis.

%s
  garminai sports                      # interactive sport client
  garminai activities                  # interactive activity client
  garminai analyze --sport running     # one-shot city analysis
  garminai insight --activity a1       # one-shot activity insight`,
			bold("garminai"),
			bold("EXAMPLES:")),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cli.out = cmd.OutOrStdout()
			_, interactive := cmd.Annotations[interactiveAnnotation]
			return cli.initialize(interactive)
		},
	}

	root.AddCommand(
		newSportsCommand(cli),
		newActivitiesCommand(cli),
		newHealthCommand(cli),
		newAnalyzeCommand(cli),
		newListCommand(cli),
		newInsightCommand(cli),
		newPrefsCommand(cli),
		newHotspotsCommand(cli),
		newWatchCommand(cli),
		newPingCommand(cli),
		newUserCommand(cli),
		newExportCommand(cli),
		newConfigCommand(cli),
	)
	return root, cli.shutdown
}

func (c *CLI) initialize(interactive bool) error {
	c.cfg = config.Load()
	if err := c.cfg.Check(); err != nil {
		return err
	}

	logger, err := newLogger(c.cfg, interactive)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	c.logger = logger

	c.logger.Info("starting garminai",
		zap.String("api", c.cfg.API.BaseURL),
		zap.String("updates", c.cfg.UpdatesURL()),
		zap.String("commit", app.BuildCommit),
	)

	if b, err := c.cfg.ToJSON(); err == nil {
		c.logger.Debug("effective config", zap.ByteString("config", b))
	}

	c.clients = clts.NewClients(logger, c.cfg)
	c.runner = app.NewRunner(c.clients, c.cfg)
	return nil
}

func (c *CLI) shutdown() {
	if c.runner != nil {
		c.runner.Shutdown()
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// newLogger builds the zap logger. Interactive commands write to the log
// file so the terminal UI stays intact.
func newLogger(cfg *config.Config, toFile bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if toFile && cfg.Log.File != "" {
		zc.OutputPaths = []string{cfg.Log.File}
		zc.ErrorOutputPaths = []string{cfg.Log.File}
	}
	return zc.Build()
}

func (c *CLI) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *CLI) printNotice(n app.Notice) {
	if n.Seq == 0 {
		return
	}
	switch n.Level {
	case app.NoticeError:
		c.printf("%s\n", red(n.Text))
	case app.NoticeWarning:
		c.printf("%s\n", yellow(n.Text))
	default:
		c.printf("%s\n", green(n.Text))
	}
}

// ---- Interactive clients ----

func newSportsCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:         "sports",
		Short:       "Interactive sport client",
		Annotations: map[string]string{interactiveAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The model runs the connectivity check itself.
			if err := cli.runner.Start(cli.ctx, app.StartOptions{}); err != nil {
				return err
			}

			p := tea.NewProgram(
				ui.NewSportsModel(cli.ctx, cli.runner.Sports()),
				tea.WithAltScreen(),
				tea.WithContext(cli.ctx),
			)
			_, err := p.Run()
			return ignoreInterrupt(err)
		},
	}
}

func newActivitiesCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:         "activities",
		Short:       "Interactive activity client",
		Annotations: map[string]string{interactiveAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := tea.NewProgram(
				ui.NewActivitiesModel(cli.ctx, cli.runner.Board(), cli.cfg.Analysis.InsightType),
				tea.WithAltScreen(),
				tea.WithContext(cli.ctx),
			)

			cli.runner.OnUpdate(func(u updates.Update) {
				p.Send(ui.PushMsg{Update: u})
			})
			if err := cli.runner.Start(cli.ctx, app.StartOptions{ConnectUpdates: true}); err != nil {
				// The client keeps working without push updates.
				cli.logger.Warn("push channel unavailable", zap.Error(err))
			}

			_, err := p.Run()
			return ignoreInterrupt(err)
		},
	}
}

func ignoreInterrupt(err error) error {
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ---- Headless commands ----

func newHealthCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to the assistant service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status := cli.runner.Sports().Probe(cli.ctx)
			if status != app.StatusConnected {
				cli.printf("%s %s\n", red("●"), status)
				return fmt.Errorf("assistant service unreachable at %s", cli.cfg.API.BaseURL)
			}
			cli.printf("%s %s %s\n", green("●"), status, gray(cli.cfg.API.BaseURL))
			return nil
		},
	}
}

func newAnalyzeCommand(cli *CLI) *cobra.Command {
	var sport string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a city analysis for a sport",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session := cli.runner.Sports()
			if sport != "" {
				if err := session.Select(sport); err != nil {
					return fmt.Errorf("%w %q (valid: %s)", err, sport, sportIDs())
				}
			}

			raw, err := session.Analyze(cli.ctx)
			cli.printNotice(session.Snapshot().Notice)
			if err != nil {
				return err
			}
			cli.printf("%s\n", app.PrettyJSON(raw))
			return nil
		},
	}

	cmd.Flags().StringVarP(&sport, "sport", "s", "", "sport id ("+sportIDs()+")")
	return cmd
}

func sportIDs() string {
	ids := make([]string, 0, 10)
	for _, s := range app.Sports() {
		ids = append(ids, s.ID)
	}
	return strings.Join(ids, ", ")
}

func newListCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List activities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			board := cli.runner.Board()
			if err := board.Refresh(cli.ctx); err != nil {
				cli.printNotice(board.Snapshot().Notice)
				return err
			}

			activities := board.Activities()
			if len(activities) == 0 {
				cli.printf("%s\n", gray("no activities"))
				return nil
			}
			for _, a := range activities {
				cli.printf("%s  %s  %s  %s\n",
					cyan(app.SanitizeText(a.ID)),
					app.SanitizeText(a.Date),
					app.SanitizeText(a.Title),
					gray(app.SanitizeText(a.Type)),
				)
			}
			return nil
		},
	}
}

func newInsightCommand(cli *CLI) *cobra.Command {
	var activityID, insightType string

	cmd := &cobra.Command{
		Use:   "insight",
		Short: "Request an insight for an activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			board := cli.runner.Board()
			if activityID != "" {
				if err := board.Refresh(cli.ctx); err != nil {
					return err
				}
				if err := board.Select(activityID); err != nil {
					return fmt.Errorf("%w %q", err, activityID)
				}
			}

			pane, err := board.RequestInsight(cli.ctx, insightType)
			cli.printNotice(board.Snapshot().Notice)
			if err != nil {
				return err
			}

			if text := pane.Render(); text != "" {
				cli.printf("%s\n", text)
			}
			if len(pane.Suggestions) > 0 {
				cli.printf("\n%s\n", bold("Suggestions:"))
				for _, s := range pane.Suggestions {
					cli.printf("  • %s\n", s)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&activityID, "activity", "a", "", "activity id")
	cmd.Flags().StringVarP(&insightType, "type", "t", "", "insight type (default from INSIGHT_TYPE)")
	return cmd
}

func newPrefsCommand(cli *CLI) *cobra.Command {
	var theme, language string
	var show bool

	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Save or show user preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if show {
				prefs, err := cli.clients.Assistant.GetPreferences(cli.ctx)
				if err != nil {
					return err
				}
				cli.printf("theme: %s\nlanguage: %s\n",
					app.SanitizeText(prefs.Theme), app.SanitizeText(prefs.Language))
				return nil
			}

			notice, ok := cli.runner.Board().SavePreferences(cli.ctx, assistantapi.Preferences{
				Theme:    theme,
				Language: language,
			})
			if !ok {
				return fmt.Errorf("preferences could not be sent to %s", cli.cfg.API.BaseURL)
			}
			cli.printNotice(notice)
			return nil
		},
	}

	cmd.Flags().StringVar(&theme, "theme", "light", "display theme")
	cmd.Flags().StringVar(&language, "language", "zh-TW", "display language")
	cmd.Flags().BoolVar(&show, "show", false, "print the stored preferences instead of saving")
	return cmd
}

func newHotspotsCommand(cli *CLI) *cobra.Command {
	var location string

	cmd := &cobra.Command{
		Use:   "hotspots",
		Short: "Show sport hotspots for a city",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if location == "" {
				location = cli.cfg.Analysis.Location
			}
			hotspots, err := cli.clients.Assistant.CityHotspots(cli.ctx, location)
			if err != nil {
				return err
			}
			cli.printf("%s\n\n%s\n", bold(app.SanitizeText(hotspots.Location)), app.SanitizeText(hotspots.Hotspots))
			return nil
		},
	}

	cmd.Flags().StringVarP(&location, "location", "l", "", "city (default from ANALYSIS_LOCATION)")
	return cmd
}

func newWatchCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print push channel updates until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			board := cli.runner.Board()

			cli.runner.OnUpdate(func(u updates.Update) {
				switch u.Type {
				case updates.TypeActivityUpdate:
					cli.printf("%s activities refreshed (%d)\n", cyan("↻"), len(board.Activities()))
				case updates.TypeAnalysisUpdate:
					pane := board.Pane()
					cli.printf("%s %s\n", cyan("●"), pane.Render())
					for _, s := range pane.Suggestions {
						cli.printf("  • %s\n", s)
					}
				default:
					cli.printf("%s %s\n", gray("?"), app.SanitizeText(u.Type))
				}
			})

			if err := cli.runner.Start(cli.ctx, app.StartOptions{LoadActivities: true, ConnectUpdates: true}); err != nil {
				return err
			}
			cli.printf("%s %s\n", green("listening on"), cli.cfg.UpdatesURL())

			select {
			case <-cli.ctx.Done():
				return nil
			case <-cli.runner.PushLost():
				return errors.New("push channel disconnected")
			}
		},
	}
}

func newPingCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Ping the assistant service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg, err := cli.clients.Assistant.Ping(cli.ctx)
			if err != nil {
				return err
			}
			cli.printf("%s %s\n", green("●"), app.SanitizeText(msg))
			return nil
		},
	}
}

func newUserCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "user",
		Short: "Show the current account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := cli.clients.Assistant.GetUser(cli.ctx)
			if err != nil {
				if assistantapi.IsStatus(err, http.StatusUnauthorized) {
					return fmt.Errorf("the service requires a login for this route: %w", err)
				}
				return err
			}
			cli.printf("%s  %s\n", cyan(app.SanitizeText(user.ID)), app.SanitizeText(user.Name))
			return nil
		},
	}
}

func newExportCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the data export as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := cli.clients.Assistant.Export(cli.ctx)
			if err != nil {
				return err
			}
			cli.printf("%s\n", app.PrettyJSON(raw))
			return nil
		},
	}
}

func newConfigCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration (tokens omitted)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := cli.cfg.ToJSON()
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			cli.printf("%s\n", b)
			return nil
		},
	}
}
