package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/agenda/internal/eventservice"
	"github.com/starford/agenda/internal/source"
	"github.com/starford/agenda/internal/storage"
	"github.com/starford/agenda/internal/testutil"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()

	_, store := testutil.TestSeedDir(t)
	db := testutil.TestDB(t)
	testutil.SeedEvents(t, db, testutil.Catalogue()...)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := eventservice.New(db,
		eventservice.WithWriter(source.NewDirectory(store, logger)),
		eventservice.WithLogger(logger),
	)
	return New(svc, "test"), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper; dispatch to the handlers.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"search_events":    srv.searchEvents,
		"get_event":        srv.getEvent,
		"list_categories":  srv.listCategories,
		"mark_range":       srv.markRange,
		"booking_link":     srv.bookingLink,
		"create_event":     srv.createEvent,
		"get_event_format": srv.getEventFormat,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func eventIDs(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	var events []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &events); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return strings.Join(ids, ",")
}

func TestSearchEvents(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "search_events", map[string]any{
		"categories": "music",
		"start":      "2024-07-10",
		"end":        "2024-07-31",
	})
	if r.IsError {
		t.Fatalf("search: %s", resultText(r))
	}
	if got := eventIDs(t, r); got != "3" {
		t.Errorf("ids = %s, want 3", got)
	}

	r = callTool(t, srv, "search_events", map[string]any{"query": "jazz"})
	if got := eventIDs(t, r); got != "1" {
		t.Errorf("text search ids = %s, want 1", got)
	}
}

func TestSearchEvents_InvertedRange(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "search_events", map[string]any{"start": "2024-07-31", "end": "2024-07-01"})
	if !r.IsError {
		t.Error("expected error for inverted range")
	}
}

func TestGetEvent(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_event", map[string]any{"id": "1"})
	if !strings.Contains(resultText(r), `"name": "Jazz en la plaza"`) {
		t.Errorf("get = %s", resultText(r))
	}

	r = callTool(t, srv, "get_event", map[string]any{"id": "nope"})
	if !r.IsError || resultText(r) != "not found" {
		t.Errorf("missing event = %+v", r)
	}
}

func TestListCategories(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_categories", map[string]any{})
	if got := resultText(r); got != "art\nbooks\nmusic" {
		t.Errorf("categories = %q", got)
	}
}

func TestMarkRange(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "mark_range", map[string]any{"day": "2024-07-08", "start": "2024-07-10"})
	if r.IsError {
		t.Fatalf("mark_range: %s", resultText(r))
	}
	var sel eventservice.Selection
	if err := json.Unmarshal([]byte(resultText(r)), &sel); err != nil {
		t.Fatal(err)
	}
	if sel.Interval.String() != "2024-07-08..2024-07-10" || len(sel.Marks) != 3 {
		t.Errorf("selection = %+v", sel)
	}
	if sel.Label != "Del 8 de julio al 10 de julio" {
		t.Errorf("label = %q", sel.Label)
	}

	r = callTool(t, srv, "mark_range", map[string]any{"day": "tomorrow"})
	if !r.IsError {
		t.Error("expected error for bad day")
	}

	r = callTool(t, srv, "mark_range", map[string]any{"day": "9999-12-31", "start": "0001-01-01"})
	if !r.IsError || !strings.Contains(resultText(r), "at most") {
		t.Errorf("whole calendar = %s", resultText(r))
	}
}

func TestBookingLink(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "booking_link", map[string]any{"id": "1"})
	u := resultText(r)
	if r.IsError || !strings.Contains(u, "checkin=2024-07-01") || !strings.Contains(u, "checkout=2024-07-05") {
		t.Errorf("booking = %s", u)
	}
}

func TestCreateEvent(t *testing.T) {
	srv, store := testServer(t)

	doc := "id: cine-verano\nname: Cine de verano\nevent_type: film\nstart_date: 2024-08-15\n"
	r := callTool(t, srv, "create_event", map[string]any{"document": doc})
	if got := resultText(r); got != "created: cine-verano" {
		t.Fatalf("create = %q", got)
	}
	if _, err := store.Read("cine-verano.yaml"); err != nil {
		t.Errorf("document not written: %v", err)
	}

	r = callTool(t, srv, "get_event", map[string]any{"id": "cine-verano"})
	if !strings.Contains(resultText(r), `"end_date": "2024-08-15"`) {
		t.Errorf("created event = %s", resultText(r))
	}

	r = callTool(t, srv, "create_event", map[string]any{"document": doc})
	if !r.IsError || !strings.Contains(resultText(r), "already exists") {
		t.Errorf("duplicate create = %s", resultText(r))
	}
}

func TestCreateEvent_Invalid(t *testing.T) {
	srv, _ := testServer(t)
	for _, doc := range []string{
		"",
		"name: No id\nstart_date: 2024-08-15\n",
		"id: x\nname: X\nstart_date: 2024-08-15\nend_date: 2024-08-01\n",
		"id: x\nname: X\nstart_date: 2024-08-15\nvenue: unknown key\n",
	} {
		r := callTool(t, srv, "create_event", map[string]any{"document": doc})
		if !r.IsError {
			t.Errorf("document %q accepted", doc)
		}
	}
}

func TestGetEventFormat(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_event_format", map[string]any{})
	if resultText(r) != EventFormatContract {
		t.Error("format text mismatch")
	}

	contents, err := srv.readEventFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != formatURI {
		t.Errorf("resource contents = %+v", contents[0])
	}
}
