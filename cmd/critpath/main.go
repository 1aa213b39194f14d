// Command critpath schedules activity networks with the critical path method and plans
// one-unit crash steps from a TUI, the command line, or an HTTP/MCP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/evanschultz/critpath/internal/adapters/server"
	"github.com/evanschultz/critpath/internal/adapters/storage/sqlite"
	"github.com/evanschultz/critpath/internal/app"
	"github.com/evanschultz/critpath/internal/config"
	"github.com/evanschultz/critpath/internal/platform"
	"github.com/evanschultz/critpath/internal/tui"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// version is stamped at build time; "dev" turns on dev-mode paths by default.
var version = "dev"

// program is the part of tea.Program the TUI command needs.
type program interface {
	Run() (tea.Model, error)
}

// programFactory is swapped in tests to avoid a real terminal.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg server.Config, deps server.Dependencies) error {
	return server.Run(ctx, cfg, deps)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(ctx, newRootCommand(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// run executes the command tree against explicit args and writers.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SilenceErrors = true
	return root.ExecuteContext(ctx)
}

// rootOptions carries the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{
		appName: platform.DefaultAppName,
		devMode: version == "dev",
	}
	if envDev, ok := parseBoolEnv("CRITPATH_DEV_MODE"); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("CRITPATH_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}

	var projectRef string
	root := &cobra.Command{
		Use:   "critpath",
		Short: "Critical path scheduling and crash planning",
		Long: `critpath computes early/late start and finish times for an activity network,
highlights the critical path, and shortens the project one cheapest unit at a time.

Run without a subcommand to open the interactive schedule view.`,
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "tui", func(ctx context.Context, s *session) error {
				return runTUI(ctx, s, projectRef)
			})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to config TOML")
	pf.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	pf.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	pf.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")
	root.Flags().StringVar(&projectRef, "project", "", "project id, slug or name to open first")

	root.AddCommand(
		newPathsCommand(opts),
		newProjectCommand(opts),
		newImportCommand(opts),
		newExportCommand(opts),
		newSampleCommand(opts),
		newScheduleCommand(opts),
		newCrashCommand(opts),
		newResetCommand(opts),
		newReportCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// session is the opened runtime one command works against.
type session struct {
	appName    string
	configPath string
	paths      platform.Paths
	cfg        config.Config
	logger     *runtimeLogger
	repo       *sqlite.Repository
	svc        *app.Service
}

// resolvePaths returns platform paths for the selected app name and mode.
func (o *rootOptions) resolvePaths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
}

// openSession loads config, configures logging and opens storage.
func openSession(opts *rootOptions, stderr io.Writer, command string) (*session, error) {
	paths, err := opts.resolvePaths()
	if err != nil {
		return nil, err
	}

	configPath := strings.TrimSpace(opts.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("CRITPATH_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("CRITPATH_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		// Runtime logs stay in the dev-file sink while the TUI owns the terminal.
		logger.SetConsoleEnabled(false)
	}

	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	logger.Debug("sqlite repository ready", "db_path", cfg.Database.Path)

	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		CriticalEpsilon:  cfg.Schedule.CriticalEpsilon,
		PassLimitFactor:  cfg.Schedule.PassLimitFactor,
		MaxCrashSteps:    cfg.Schedule.MaxCrashSteps,
		DefaultStartDate: cfg.StartDate(),
	}, app.WithLogger(logger))

	return &session{
		appName:    opts.appName,
		configPath: configPath,
		paths:      paths,
		cfg:        cfg,
		logger:     logger,
		repo:       repo,
		svc:        svc,
	}, nil
}

// Close releases storage and the dev log file.
func (s *session) Close(stderr io.Writer) {
	if s == nil {
		return
	}
	if err := s.repo.Close(); err != nil {
		s.logger.Warn("sqlite close failed", "db_path", s.cfg.Database.Path, "err", err)
	}
	if err := s.logger.Close(); err != nil && s.logger.ConsoleEnabled() {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// withSession opens a session, runs fn inside start/complete log events and closes it.
func withSession(cmd *cobra.Command, opts *rootOptions, name string, fn func(context.Context, *session) error) error {
	stderr := cmd.ErrOrStderr()
	s, err := openSession(opts, stderr, name)
	if err != nil {
		return err
	}
	defer s.Close(stderr)

	s.logger.Info("command flow start", "command", name)
	if err := fn(cmd.Context(), s); err != nil {
		s.logger.Error("command flow failed", "command", name, "err", err)
		return fmt.Errorf("run %s command: %w", name, err)
	}
	s.logger.Info("command flow complete", "command", name)
	return nil
}

// runTUI starts the interactive schedule view.
func runTUI(ctx context.Context, s *session, projectRef string) error {
	var projectID string
	if strings.TrimSpace(projectRef) != "" {
		id, err := resolveProjectID(ctx, s.svc, projectRef)
		if err != nil {
			return err
		}
		projectID = id
	}
	m := tui.NewModel(
		s.svc,
		tui.WithConfirmReset(s.cfg.UI.ConfirmReset),
		tui.WithShowTimeline(s.cfg.UI.ShowTimeline),
		tui.WithKeyConfig(toTUIKeyConfig(s.cfg.UI.Keys)),
		tui.WithProject(projectID),
	)
	s.logger.Info("starting tui program loop")
	if _, err := programFactory(m).Run(); err != nil {
		return fmt.Errorf("run tui program: %w", err)
	}
	return nil
}

// toTUIKeyConfig maps persisted key overrides into model options.
func toTUIKeyConfig(keys config.UIKeysConfig) tui.KeyConfig {
	return tui.KeyConfig{
		Crash:     keys.Crash,
		Reset:     keys.Reset,
		Recompute: keys.Recompute,
		Report:    keys.Report,
		Copy:      keys.Copy,
		RunLog:    keys.RunLog,
	}
}

// resolveProjectID accepts an id, slug or name. A blank ref selects the only active
// project when exactly one exists.
func resolveProjectID(ctx context.Context, svc *app.Service, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref != "" {
		project, err := svc.GetProject(ctx, ref)
		switch {
		case err == nil:
			return project.ID, nil
		case !errors.Is(err, app.ErrNotFound):
			return "", err
		}
	}

	projects, err := svc.ListProjects(ctx, ref != "")
	if err != nil {
		return "", err
	}
	if ref == "" {
		switch len(projects) {
		case 0:
			return "", errors.New("no projects yet; run `critpath sample` or `critpath project create`")
		case 1:
			return projects[0].ID, nil
		default:
			return "", errors.New("--project is required when more than one project exists")
		}
	}
	for _, p := range projects {
		if strings.EqualFold(p.Slug, ref) || strings.EqualFold(p.Name, ref) {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("project %q: %w", ref, app.ErrNotFound)
}

// parseBoolEnv parses a boolean env var; ok is false when unset or malformed.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
