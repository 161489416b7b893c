// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the event catalogue to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/agenda/internal/apperr"
	"github.com/starford/agenda/internal/daterange"
	"github.com/starford/agenda/internal/eventfilter"
	"github.com/starford/agenda/internal/eventservice"
	"github.com/starford/agenda/internal/parser"
)

const (
	formatURI   = "agenda://event-format"
	searchLimit = 20
)

// Server wraps the MCP server with the catalogue tools.
type Server struct {
	mcp *server.MCPServer
	svc *eventservice.Service
}

// New creates an MCP server with every tool registered.
func New(svc *eventservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Agenda",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_events",
		mcp.WithDescription("Search events by text, category and date range. "+
			"An empty query lists the whole catalogue."),
		mcp.WithString("query", mcp.Description("Text matched against name, description and city")),
		mcp.WithString("categories", mcp.Description("Comma-separated categories (e.g. music,art)")),
		mcp.WithString("start", mcp.Description("Range start, YYYY-MM-DD")),
		mcp.WithString("end", mcp.Description("Range end, YYYY-MM-DD")),
	), s.searchEvents)

	s.mcp.AddTool(mcp.NewTool("get_event",
		mcp.WithDescription("Read one event with its star rating and saved flag."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Event ID")),
	), s.getEvent)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List the distinct event categories."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("mark_range",
		mcp.WithDescription("Apply a calendar tap to a selection and return the new "+
			"selection with its per-day marks."),
		mcp.WithString("day", mcp.Required(), mcp.Description("Tapped day, YYYY-MM-DD")),
		mcp.WithString("start", mcp.Description("Current selection start")),
		mcp.WithString("end", mcp.Description("Current selection end")),
	), s.markRange)

	s.mcp.AddTool(mcp.NewTool("booking_link",
		mcp.WithDescription("Accommodation search link for an event. A closed "+
			"start/end range overrides the event dates."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Event ID")),
		mcp.WithString("start", mcp.Description("Check-in, YYYY-MM-DD")),
		mcp.WithString("end", mcp.Description("Check-out, YYYY-MM-DD")),
	), s.bookingLink)

	s.mcp.AddTool(mcp.NewTool("create_event",
		mcp.WithDescription("Publish a new event. The document MUST follow the event "+
			"format; read it first via get_event_format or the "+formatURI+" resource."),
		mcp.WithString("document", mcp.Required(), mcp.Description("YAML event document")),
	), s.createEvent)

	s.mcp.AddTool(mcp.NewTool("get_event_format",
		mcp.WithDescription("Returns the YAML event document format. "+
			"Call this before creating events."),
	), s.getEventFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Event Document Format",
			mcp.WithResourceDescription("YAML format of an event document."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEventFormatResource,
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

func optString(req mcp.CallToolRequest, key string) string {
	if v, err := req.RequireString(key); err == nil {
		return strings.TrimSpace(v)
	}
	return ""
}

func optInterval(req mcp.CallToolRequest) (daterange.Interval, error) {
	var iv daterange.Interval
	for key, dst := range map[string]*daterange.Day{"start": &iv.Start, "end": &iv.End} {
		raw := optString(req, key)
		if raw == "" {
			continue
		}
		d, err := daterange.ParseDay(raw)
		if err != nil {
			return daterange.Interval{}, fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return iv, iv.Validate()
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errResult(err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found"), nil
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) searchEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	iv, err := optInterval(req)
	if err != nil {
		return errResult(err)
	}
	var cats eventfilter.Categories
	if raw := optString(req, "categories"); raw != "" {
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cats = eventfilter.NewCategories(parts...)
	}
	events, err := s.svc.Search(ctx, optString(req, "query"), cats, iv, searchLimit)
	if err != nil {
		return errResult(err)
	}
	return jsonResult(events)
}

func (s *Server) getEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ev, err := s.svc.GetEvent(ctx, id)
	if err != nil {
		return errResult(err)
	}
	return jsonResult(ev)
}

func (s *Server) listCategories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := s.svc.Categories(ctx)
	if err != nil {
		return errResult(err)
	}
	if len(cats) == 0 {
		return mcp.NewToolResultText("no categories"), nil
	}
	return mcp.NewToolResultText(strings.Join(cats, "\n")), nil
}

func (s *Server) markRange(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("day")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	day, err := daterange.ParseDay(raw)
	if err != nil {
		return errResult(err)
	}
	current, err := optInterval(req)
	if err != nil {
		return errResult(err)
	}
	sel, err := s.svc.Select(day, current)
	if err != nil {
		return errResult(err)
	}
	return jsonResult(sel)
}

func (s *Server) bookingLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	iv, err := optInterval(req)
	if err != nil {
		return errResult(err)
	}
	u, err := s.svc.BookingURL(ctx, id, iv)
	if err != nil {
		return errResult(err)
	}
	return mcp.NewToolResultText(u), nil
}

func (s *Server) createEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ev, err := parser.Parse([]byte(doc))
	if err != nil {
		return errResult(err)
	}
	if _, err := s.svc.GetEvent(ctx, ev.ID); err == nil {
		return mcp.NewToolResultError(fmt.Sprintf("event already exists: %s", ev.ID)), nil
	}
	created, err := s.svc.CreateEvent(ctx, *ev)
	if err != nil {
		return errResult(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", created.ID)), nil
}

func (s *Server) getEventFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EventFormatContract), nil
}

func (s *Server) readEventFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     EventFormatContract,
		},
	}, nil
}
