// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/evanschultz/critpath/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the schedule tools.
func NewHandler(cfg Config, schedules common.ScheduleService) (*Handler, error) {
	if schedules == nil {
		return nil, fmt.Errorf("schedule service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerProjectTools(mcpSrv, schedules)
	registerScheduleTools(mcpSrv, schedules)
	registerRunLogTools(mcpSrv, schedules)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "critpath"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerProjectTools registers the `critpath.list_projects` tool.
func registerProjectTools(srv *mcpserver.MCPServer, schedules common.ScheduleService) {
	srv.AddTool(
		mcp.NewTool(
			"critpath.list_projects",
			mcp.WithDescription("List scheduling projects."),
			mcp.WithBoolean("include_archived", mcp.Description("Include archived projects")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projects, err := schedules.ListProjects(ctx, req.GetBool("include_archived", false))
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"projects": projects,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_projects result: %w", err)
			}
			return result, nil
		},
	)
}

// registerScheduleTools registers schedule read, recompute, crash, reset and report tools.
func registerScheduleTools(srv *mcpserver.MCPServer, schedules common.ScheduleService) {
	srv.AddTool(
		mcp.NewTool(
			"critpath.get_schedule",
			mcp.WithDescription("Return the live CPM schedule of one project, computing it on first use."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		),
		scheduleStateTool("get_schedule", schedules.GetSchedule),
	)

	srv.AddTool(
		mcp.NewTool(
			"critpath.recompute_schedule",
			mcp.WithDescription("Start a fresh run from normal durations and return its schedule."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		),
		scheduleStateTool("recompute_schedule", schedules.Recompute),
	)

	srv.AddTool(
		mcp.NewTool(
			"critpath.crash_step",
			mcp.WithDescription("Shorten the cheapest eligible critical activity by one unit, repeated up to steps times."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
			mcp.WithNumber("steps", mcp.Description("Maximum crash steps to run (default 1)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projectID, err := req.RequireString("project_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			crash, err := schedules.Crash(ctx, common.CrashRequest{
				ProjectID: projectID,
				Steps:     req.GetInt("steps", 1),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(crash)
			if err != nil {
				return nil, fmt.Errorf("encode crash_step result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"critpath.reset_schedule",
			mcp.WithDescription("Restore every activity of the live run to its normal duration."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		),
		scheduleStateTool("reset_schedule", schedules.Reset),
	)

	srv.AddTool(
		mcp.NewTool(
			"critpath.get_report",
			mcp.WithDescription("Render the live run of one project as a markdown report."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projectID, err := req.RequireString("project_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			report, err := schedules.Report(ctx, projectID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return mcp.NewToolResultText(report), nil
		},
	)
}

// registerRunLogTools registers the `critpath.list_run_events` tool.
func registerRunLogTools(srv *mcpserver.MCPServer, schedules common.ScheduleService) {
	srv.AddTool(
		mcp.NewTool(
			"critpath.list_run_events",
			mcp.WithDescription("List run log entries of one project, oldest first."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
			mcp.WithString("run_id", mcp.Description("Only return entries of this run")),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projectID, err := req.RequireString("project_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			events, err := schedules.ListRunEvents(ctx, common.ListRunEventsRequest{
				ProjectID: projectID,
				RunID:     req.GetString("run_id", ""),
				Limit:     req.GetInt("limit", 0),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"events": events,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_run_events result: %w", err)
			}
			return result, nil
		},
	)
}

// scheduleStateTool adapts one project-scoped schedule call into a tool handler.
func scheduleStateTool(name string, call func(context.Context, string) (common.ScheduleState, error)) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := req.RequireString("project_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		state, err := call(ctx, projectID)
		if err != nil {
			return toolResultFromError(err), nil
		}
		result, err := mcp.NewToolResultJSON(state)
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", name, err)
		}
		return result, nil
	}
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrInvalidGraph):
		return mcp.NewToolResultError("invalid_graph: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
