// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the plot store and edit feed over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/document"
	"github.com/starford/arbor/internal/editfeed"
	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/plotservice"
)

const plotFormatURI = "arbor://plot-format"

// EditFeed is the part of the edit-feed loader the server drives.
type EditFeed interface {
	LoadMore(ctx context.Context) (*editfeed.Page, error)
}

// EditEntries is the read side of the edit cache.
type EditEntries interface {
	Entries() []*models.EditEntry
}

// Server wraps the MCP server with plot tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *plotservice.Service
	feed  EditFeed
	cache EditEntries
}

// Option configures a Server.
type Option func(*Server)

// WithEditFeed enables the recent_edits tool.
func WithEditFeed(feed EditFeed, cache EditEntries) Option {
	return func(s *Server) {
		s.feed = feed
		s.cache = cache
	}
}

// New creates a new MCP server with all plot tools registered.
func New(svc *plotservice.Service, opts ...Option) *Server {
	s := &Server{svc: svc}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		"Arbor",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_plots",
		mcp.WithDescription("Search stored plots by title, species, address and pending field keys."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPlots)

	s.mcp.AddTool(mcp.NewTool("read_plot",
		mcp.WithDescription("Read a plot: typed fields, permissions, pending keys and most recent photo."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the plot file (e.g. ward1/12.json)")),
	), s.readPlot)

	s.mcp.AddTool(mcp.NewTool("list_plots",
		mcp.WithDescription("List indexed plots, newest first."),
		mcp.WithBoolean("has_tree", mcp.Description("Only plots with (true) or without (false) a tree")),
		mcp.WithBoolean("pending", mcp.Description("Only plots with (true) or without (false) pending edits")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of plots (default 50)")),
	), s.listPlots)

	s.mcp.AddTool(mcp.NewTool("create_plot",
		mcp.WithDescription("Create a plot document at the specified path. "+
			"The document MUST follow the plot contract. Read it first via "+
			"the get_plot_contract tool or the "+plotFormatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new plot (.json, .yaml or .yml)")),
		mcp.WithString("document", mcp.Required(), mcp.Description("Plot document as a JSON object")),
	), s.createPlot)

	s.mcp.AddTool(mcp.NewTool("get_pending_edit",
		mcp.WithDescription("Show the moderation-queued edits for one field of a plot."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the plot file")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Dotted field key, e.g. tree.diameter")),
	), s.getPendingEdit)

	s.mcp.AddTool(mcp.NewTool("add_tree_photo",
		mcp.WithDescription("Attach a tree photo to a plot. Accepts a base64 data URI or an http(s) URL "+
			"pointing at a jpeg, png or gif image. The plot must have a tree."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the plot file")),
		mcp.WithString("url", mcp.Required(), mcp.Description("data:image/...;base64,... or http(s) URL")),
	), s.addTreePhoto)

	s.mcp.AddTool(mcp.NewTool("recent_edits",
		mcp.WithDescription("List the signed-in user's recent edits. Set load_more to fetch the next page first."),
		mcp.WithBoolean("load_more", mcp.Description("Fetch and merge the next page before listing")),
	), s.recentEdits)

	s.mcp.AddTool(mcp.NewTool("get_plot_contract",
		mcp.WithDescription("Returns the plot document contract. "+
			"Call this before creating plots to ensure correct structure."),
	), s.getPlotContract)

	s.mcp.AddResource(
		mcp.NewResource(plotFormatURI, "Plot Document Contract",
			mcp.WithResourceDescription("Plot document shape and field rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPlotFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func errorResult(path string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError(fmt.Sprintf("plot already exists: %s", path))
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) searchPlots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no plots found"), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readPlot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.GetPlot(ctx, path)
	if err != nil {
		return errorResult(path, err), nil
	}
	return jsonResult(detail), nil
}

func (s *Server) listPlots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	f := index.ListFilter{Limit: req.GetInt("limit", 0)}
	if _, ok := args["has_tree"]; ok {
		v := req.GetBool("has_tree", false)
		f.HasTree = &v
	}
	if _, ok := args["pending"]; ok {
		v := req.GetBool("pending", false)
		f.Pending = &v
	}

	rows, total, err := s.svc.ListPlots(ctx, f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if rows == nil {
		rows = []index.PlotRow{}
	}
	return jsonResult(map[string]any{"plots": rows, "total": total}), nil
}

func (s *Server) createPlot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := document.Parse([]byte(raw))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("document is not a JSON object: %v", err)), nil
	}

	if _, err := s.svc.CreatePlot(ctx, path, doc); err != nil {
		return errorResult(path, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", path)), nil
}

func (s *Server) getPendingEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	desc, err := s.svc.PendingEdit(ctx, path, key)
	if err != nil {
		return errorResult(path+" "+key, err), nil
	}
	return jsonResult(map[string]any{
		"key":          desc.Key(),
		"latest_value": desc.LatestValue(),
		"edits":        desc.Edits(),
	}), nil
}

func (s *Server) recentEdits(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.feed == nil || s.cache == nil {
		return mcp.NewToolResultError("edit feed is not configured"), nil
	}
	if req.GetBool("load_more", false) {
		if _, err := s.feed.LoadMore(ctx); err != nil {
			var fe *editfeed.FetchError
			if errors.As(err, &fe) {
				return mcp.NewToolResultError(fe.Message()), nil
			}
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	type item struct {
		ID          int    `json:"id"`
		DisplayName string `json:"display_name"`
		Value       int    `json:"value"`
	}
	entries := s.cache.Entries()
	out := make([]item, 0, len(entries))
	for _, e := range entries {
		id, err := e.ID()
		if err != nil {
			continue
		}
		value, _ := e.Value()
		out = append(out, item{ID: id, DisplayName: e.DisplayName(), Value: value})
	}
	return jsonResult(out), nil
}

func (s *Server) getPlotContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PlotFormatContract), nil
}

func (s *Server) readPlotFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      plotFormatURI,
			MIMEType: "text/markdown",
			Text:     PlotFormatContract,
		},
	}, nil
}
