package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/critpath/internal/adapters/server"
	"github.com/evanschultz/critpath/internal/adapters/server/common"
	"github.com/evanschultz/critpath/internal/app"
	"github.com/evanschultz/critpath/internal/domain"
	"github.com/spf13/cobra"
)

// formatSnapshot selects the whole-database snapshot encoding for import and export.
const formatSnapshot = "snapshot"

func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data and database paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "reports: %s\n", paths.ReportsDir)
			return nil
		},
	}
}

func newProjectCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	var includeArchived bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "project list", func(ctx context.Context, s *session) error {
				projects, err := s.svc.ListProjects(ctx, includeArchived)
				if err != nil {
					return err
				}
				writeProjectTable(cmd.OutOrStdout(), projects)
				return nil
			})
		},
	}
	list.Flags().BoolVar(&includeArchived, "all", false, "include archived projects")

	var name, description, start string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an empty project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startDate, err := domain.ParseStartDate(start)
			if err != nil {
				return fmt.Errorf("parse --start: %w", err)
			}
			return withSession(cmd, opts, "project create", func(ctx context.Context, s *session) error {
				project, err := s.svc.CreateProject(ctx, app.CreateProjectInput{
					Name:        name,
					Description: description,
					StartDate:   startDate,
				})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created project %s (%s)\n", project.Name, project.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "project name")
	create.Flags().StringVar(&description, "description", "", "project description")
	create.Flags().StringVar(&start, "start", "", "project start date (YYYY-MM-DD)")
	_ = create.MarkFlagRequired("name")

	var showRef string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show one project and its activity table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "project show", func(ctx context.Context, s *session) error {
				projectID, err := resolveProjectID(ctx, s.svc, showRef)
				if err != nil {
					return err
				}
				project, err := s.svc.GetProject(ctx, projectID)
				if err != nil {
					return err
				}
				rows, err := s.svc.ListActivities(ctx, projectID)
				if err != nil {
					return err
				}
				writeProjectDetail(cmd.OutOrStdout(), project, rows)
				return nil
			})
		},
	}
	show.Flags().StringVar(&showRef, "project", "", "project id, slug or name")

	var archiveRef string
	archive := &cobra.Command{
		Use:   "archive",
		Short: "Archive a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "project archive", func(ctx context.Context, s *session) error {
				projectID, err := resolveProjectID(ctx, s.svc, archiveRef)
				if err != nil {
					return err
				}
				project, err := s.svc.ArchiveProject(ctx, projectID)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "archived project %s (%s)\n", project.Name, project.ID)
				return nil
			})
		},
	}
	archive.Flags().StringVar(&archiveRef, "project", "", "project id, slug or name")
	_ = archive.MarkFlagRequired("project")

	cmd.AddCommand(list, create, show, archive)
	return cmd
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	var inPath, format, projectRef, name string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import an activity table (json or csv) or a full snapshot",
		Long: `Import replaces the activity table of --project. Without --project a new project is
created, named by --name or the file name. --format snapshot restores every project
from a critpath export.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			content, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			return withSession(cmd, opts, "import", func(ctx context.Context, s *session) error {
				if strings.EqualFold(strings.TrimSpace(format), formatSnapshot) {
					var snap app.Snapshot
					if err := json.Unmarshal(content, &snap); err != nil {
						return fmt.Errorf("decode snapshot json: %w", err)
					}
					if err := s.svc.ImportSnapshot(ctx, snap); err != nil {
						return fmt.Errorf("import snapshot: %w", err)
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported snapshot with %d projects\n", len(snap.Projects))
					return nil
				}

				transfer, err := app.ParseTransferFormat(format)
				if err != nil {
					return err
				}
				var project domain.Project
				if strings.TrimSpace(projectRef) == "" {
					project, err = s.svc.CreateProject(ctx, app.CreateProjectInput{Name: importProjectName(name, inPath)})
				} else {
					var projectID string
					projectID, err = resolveProjectID(ctx, s.svc, projectRef)
					if err == nil {
						project, err = s.svc.GetProject(ctx, projectID)
					}
				}
				if err != nil {
					return err
				}
				n, err := s.svc.ImportActivities(ctx, project.ID, bytes.NewReader(content), transfer)
				if err != nil {
					return fmt.Errorf("import activities: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d activities into %s (%s)\n", n, project.Name, project.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "file", "", "input file")
	cmd.Flags().StringVar(&format, "format", "json", "input format: json, csv or snapshot")
	cmd.Flags().StringVar(&projectRef, "project", "", "target project id, slug or name")
	cmd.Flags().StringVar(&name, "name", "", "name for the project created when --project is omitted")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// importProjectName picks a name for a project created by import.
func importProjectName(name, inPath string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	base := filepath.Base(inPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var outPath, format, projectRef string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an activity table (json or csv) or a full snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "export", func(ctx context.Context, s *session) error {
				var buf bytes.Buffer
				if strings.EqualFold(strings.TrimSpace(format), formatSnapshot) {
					snap, err := s.svc.ExportSnapshot(ctx, true)
					if err != nil {
						return fmt.Errorf("export snapshot: %w", err)
					}
					encoded, err := json.MarshalIndent(snap, "", "  ")
					if err != nil {
						return fmt.Errorf("encode snapshot json: %w", err)
					}
					buf.Write(encoded)
					buf.WriteByte('\n')
				} else {
					transfer, err := app.ParseTransferFormat(format)
					if err != nil {
						return err
					}
					projectID, err := resolveProjectID(ctx, s.svc, projectRef)
					if err != nil {
						return err
					}
					if err := s.svc.ExportActivities(ctx, projectID, &buf, transfer); err != nil {
						return fmt.Errorf("export activities: %w", err)
					}
				}
				return writeOutput(cmd.OutOrStdout(), outPath, buf.Bytes())
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json, csv or snapshot")
	cmd.Flags().StringVar(&projectRef, "project", "", "project id, slug or name")
	return cmd
}

func newSampleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Create the sample product launch project and print its schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "sample", func(ctx context.Context, s *session) error {
				project, err := s.svc.CreateSampleProject(ctx)
				if err != nil {
					return err
				}
				view, err := s.svc.Schedule(ctx, project.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "created project %s (%s)\n\n", project.Name, project.ID)
				writeSchedule(out, view)
				return nil
			})
		},
	}
}

func newScheduleCommand(opts *rootOptions) *cobra.Command {
	var projectRef string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Compute and print the schedule of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "schedule", func(ctx context.Context, s *session) error {
				projectID, err := resolveProjectID(ctx, s.svc, projectRef)
				if err != nil {
					return err
				}
				view, err := s.svc.ComputeSchedule(ctx, projectID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), view)
				}
				writeSchedule(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectRef, "project", "", "project id, slug or name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the schedule as JSON")
	return cmd
}

func newCrashCommand(opts *rootOptions) *cobra.Command {
	var projectRef string
	var steps int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "crash",
		Short: "Crash the cheapest critical activity one unit at a time",
		Long: `Crash starts from normal durations and applies up to --steps one-unit crash steps,
stopping early when no critical activity can be shortened.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "crash", func(ctx context.Context, s *session) error {
				projectID, err := resolveProjectID(ctx, s.svc, projectRef)
				if err != nil {
					return err
				}
				batch, err := s.svc.CrashSteps(ctx, projectID, steps)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), batch)
				}
				writeCrashBatch(cmd.OutOrStdout(), batch)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectRef, "project", "", "project id, slug or name")
	cmd.Flags().IntVar(&steps, "steps", 1, "number of one-unit crash steps")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print steps and the final schedule as JSON")
	return cmd
}

func newResetCommand(opts *rootOptions) *cobra.Command {
	var projectRef string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset every activity to its normal duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "reset", func(ctx context.Context, s *session) error {
				projectID, err := resolveProjectID(ctx, s.svc, projectRef)
				if err != nil {
					return err
				}
				view, err := s.svc.ResetSchedule(ctx, projectID)
				if err != nil {
					return err
				}
				writeSchedule(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectRef, "project", "", "project id, slug or name")
	return cmd
}

func newReportCommand(opts *rootOptions) *cobra.Command {
	var projectRef, outPath string
	var steps int
	var save bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the markdown crash report of a project",
		Long: `Report computes the schedule, optionally applies --steps crash steps, and renders the
run as markdown. --save writes it under the reports directory shown by 'critpath paths'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "report", func(ctx context.Context, s *session) error {
				projectID, err := resolveProjectID(ctx, s.svc, projectRef)
				if err != nil {
					return err
				}
				if steps > 0 {
					if _, err := s.svc.CrashSteps(ctx, projectID, steps); err != nil {
						return err
					}
				}
				markdown, err := s.svc.Report(ctx, projectID)
				if err != nil {
					return err
				}
				target := outPath
				if save && (target == "" || target == "-") {
					project, err := s.svc.GetProject(ctx, projectID)
					if err != nil {
						return err
					}
					target = reportFilePath(s.paths.ReportsDir, project, time.Now())
				}
				if err := writeOutput(cmd.OutOrStdout(), target, []byte(markdown)); err != nil {
					return err
				}
				if target != "" && target != "-" {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote report to %s\n", target)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectRef, "project", "", "project id, slug or name")
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	cmd.Flags().IntVar(&steps, "steps", 0, "crash steps to apply before rendering")
	cmd.Flags().BoolVar(&save, "save", false, "write the report into the reports directory")
	return cmd
}

// reportFilePath names a saved report by project slug and day.
func reportFilePath(dir string, project domain.Project, now time.Time) string {
	stem := project.Slug
	if stem == "" {
		stem = project.ID
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.md", stem, now.UTC().Format("20060102-150405")))
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var bind, apiEndpoint, mcpEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, MCP tools and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "serve", func(ctx context.Context, s *session) error {
				cfg := server.Config{
					HTTPBind:      firstNonEmpty(bind, s.cfg.Server.HTTPBind),
					APIEndpoint:   firstNonEmpty(apiEndpoint, s.cfg.Server.APIEndpoint),
					MCPEndpoint:   firstNonEmpty(mcpEndpoint, s.cfg.Server.MCPEndpoint),
					ServerName:    s.appName,
					ServerVersion: version,
				}
				s.logger.Info("serve endpoints", "http", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
				return serveCommandRunner(ctx, cfg, server.Dependencies{
					Schedules: common.NewAppServiceAdapter(s.svc),
					Ready:     s.repo.Ping,
				})
			})
		},
	}
	cmd.Flags().StringVar(&bind, "http", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "REST API base path (default from config)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP endpoint path (default from config)")
	return cmd
}

// writeOutput writes data to stdout for "" or "-", otherwise to path.
func writeOutput(stdout io.Writer, path string, data []byte) error {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		if _, err := stdout.Write(data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
