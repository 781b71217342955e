package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/playbooksync/internal/assist"
	"github.com/starford/playbooksync/internal/history"
	"github.com/starford/playbooksync/internal/models"
	"github.com/starford/playbooksync/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db := testutil.TestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 9, 6, 0, 0, 0, time.UTC)
	run := models.SyncRun{
		ID:                "run-1",
		StartedAt:         start,
		WindowStart:       start.Add(-7 * 24 * time.Hour),
		Status:            models.RunRunning,
		DocumentsEnriched: []string{},
		DocumentsCreated:  []string{},
		Errors:            []string{},
	}
	if err := db.CreateRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	for _, rec := range []models.MatchRecord{
		{EntryID: "e1", RunID: "run-1", Action: models.ActionOrphaned, Rationale: "no home", CreatedAt: start},
		{EntryID: "e2", RunID: "run-1", Action: models.ActionEnrich, DocumentPath: "docs/a.md", Similarity: 0.8, Rationale: "fits", CreatedAt: start},
	} {
		if _, err := db.InsertMatch(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	return New(history.NewService(db, db, nil), "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var (
		result *mcp.CallToolResult
		err    error
	)
	switch name {
	case "list_sync_runs":
		result, err = srv.listSyncRuns(ctx, req)
	case "get_sync_run":
		result, err = srv.getSyncRun(ctx, req)
	case "list_match_records":
		result, err = srv.listMatchRecords(ctx, req)
	case "list_documents":
		result, err = srv.listDocuments(ctx, req)
	case "get_document_contract":
		result, err = srv.getDocumentContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}
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

func TestListSyncRuns(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "list_sync_runs", map[string]any{"limit": 5})
	var resp struct {
		Runs  []history.RunListItem `json:"runs"`
		Total int                   `json:"total"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &resp); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, resultText(r))
	}
	if resp.Total != 1 || resp.Runs[0].ID != "run-1" || resp.Runs[0].Status != models.RunRunning {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGetSyncRun(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_sync_run", map[string]any{"id": "run-1"})
	if r.IsError || !strings.Contains(resultText(r), `"id": "run-1"`) {
		t.Errorf("result = %q", resultText(r))
	}

	r = callTool(t, srv, "get_sync_run", map[string]any{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing run")
	}
	r = callTool(t, srv, "get_sync_run", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing id")
	}
}

func TestListMatchRecords(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "list_match_records", map[string]any{"run_id": "run-1", "action": "enrich"})
	var recs []models.MatchRecord
	if err := json.Unmarshal([]byte(resultText(r)), &recs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(recs) != 1 || recs[0].EntryID != "e2" {
		t.Errorf("records = %+v", recs)
	}

	r = callTool(t, srv, "list_match_records", map[string]any{"run_id": "run-1", "action": "archive"})
	if !r.IsError {
		t.Error("expected error for unknown action")
	}
}

func TestListDocuments_NoCache(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "list_documents", map[string]any{})
	if got := strings.TrimSpace(resultText(r)); got != "[]" {
		t.Errorf("documents = %q", got)
	}
}

func TestDocumentContract(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_document_contract", nil)
	if resultText(r) != assist.DocumentContract {
		t.Error("tool does not return the contract")
	}
	contents, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != ContractURI || tc.Text != assist.DocumentContract {
		t.Errorf("resource = %+v", contents[0])
	}
}
