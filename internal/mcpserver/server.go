// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes diary tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/inkday/internal/diary"
	"github.com/starford/inkday/internal/diaryservice"
)

// DiaryFormatURI is the resource URI of the diary format contract.
const DiaryFormatURI = "inkday://diary-format"

// Server wraps the MCP server with diary tools.
type Server struct {
	mcp *server.MCPServer
	svc *diaryservice.Service
}

// New creates a new MCP server with all diary tools registered.
func New(svc *diaryservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"inkday",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("read_day",
		mcp.WithDescription("Read the events of one day as JSON."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Day as YYYY-MM-DD, M/D/YYYY or a DateKey like 2_14_2024")),
	), s.readDay)

	s.mcp.AddTool(mcp.NewTool("add_event",
		mcp.WithDescription("Append an event to a day. The diary document is rewritten with a fresh timestamp."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Day as YYYY-MM-DD, M/D/YYYY or a DateKey")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Event text on a single line")),
		mcp.WithString("tags", mcp.Description("Space or comma separated tags, without #")),
		mcp.WithBoolean("completed", mcp.Description("Mark the event as done")),
	), s.addEvent)

	s.mcp.AddTool(mcp.NewTool("search_events",
		mcp.WithDescription("Search event text and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchEvents)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List tags with the number of events carrying each."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("export_diary",
		mcp.WithDescription("Return the whole diary as a Markdown document."),
	), s.exportDiary)

	s.mcp.AddTool(mcp.NewTool("get_diary_format",
		mcp.WithDescription("Returns the Markdown diary format contract. "+
			"Read it before writing diary text by hand."),
	), s.getDiaryFormat)

	s.mcp.AddResource(
		mcp.NewResource(DiaryFormatURI, "Diary Format Contract",
			mcp.WithResourceDescription("Markdown diary format used for import and export."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDiaryFormatResource,
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

// dateKeyArg accepts a DateKey, an ISO date or a diary date line.
func dateKeyArg(raw string) (diary.DateKey, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return diary.DateKeyFromTime(t), nil
	}
	if key, ok := diary.ParseDateLine(raw); ok {
		return key, nil
	}
	key := diary.DateKey(raw)
	if _, _, _, ok := key.Parts(); ok {
		return key, nil
	}
	return "", fmt.Errorf("unrecognised date %q: use YYYY-MM-DD, M/D/YYYY or a DateKey", raw)
}

func splitTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimPrefix(f, "#"); f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := dateKeyArg(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	events, err := s.svc.GetDay(ctx, key)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"dateKey": key, "events": events})
}

func (s *Server) addEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text must not be blank"), nil
	}
	key, err := dateKeyArg(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tags := []string{}
	if v, tErr := req.RequireString("tags"); tErr == nil {
		tags = splitTags(v)
	}
	events, err := s.svc.AddEvent(ctx, key, diary.Event{
		// The diary keeps one event per line.
		Text:      strings.Join(strings.Fields(text), " "),
		Completed: req.GetBool("completed", false),
		Tags:      tags,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"dateKey": key, "events": events})
}

func (s *Server) searchEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no events found"), nil
	}
	return jsonResult(results)
}

func (s *Server) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.svc.Tags(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(tags) == 0 {
		return mcp.NewToolResultText("no tags found"), nil
	}
	lines := make([]string, len(tags))
	for i, t := range tags {
		lines[i] = fmt.Sprintf("#%s %d", t.Tag, t.Count)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) exportDiary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := s.svc.Export(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) getDiaryFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DiaryFormatContract), nil
}

func (s *Server) readDiaryFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      DiaryFormatURI,
			MIMEType: "text/markdown",
			Text:     DiaryFormatContract,
		},
	}, nil
}
