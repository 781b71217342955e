// Package mcpserver exposes sync run history and the document format
// contract to LLM clients over the Model Context Protocol (stdio transport).
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/playbooksync/internal/apperr"
	"github.com/starford/playbooksync/internal/assist"
	"github.com/starford/playbooksync/internal/history"
)

// ContractURI is the resource URI of the document format contract.
const ContractURI = "playbooksync://document-format"

// Server wraps the MCP server with the run history tools.
type Server struct {
	mcp *server.MCPServer
	svc *history.Service
}

// New creates an MCP server with every tool registered.
func New(svc *history.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Playbook Sync",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_sync_runs",
		mcp.WithDescription("List sync runs newest first with status, counts and commit reference."),
		mcp.WithNumber("limit", mcp.Description("Page size (default 20)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.listSyncRuns)

	s.mcp.AddTool(mcp.NewTool("get_sync_run",
		mcp.WithDescription("Get one sync run including touched documents and recorded errors."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Run id")),
	), s.getSyncRun)

	s.mcp.AddTool(mcp.NewTool("list_match_records",
		mcp.WithDescription("List the per-entry decisions a run recorded: matched document, similarity, action and rationale."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run id")),
		mcp.WithString("action", mcp.Description("Optional filter"),
			mcp.Enum("enrich", "redundant", "tangential", "orphaned", "new_doc")),
	), s.listMatchRecords)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the playbook documents known to the embedding cache."),
		mcp.WithString("module", mcp.Description("Optional module filter")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the playbook document format that drafted documents follow."),
	), s.getDocumentContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Document Format Contract",
			mcp.WithResourceDescription("Canonical Markdown format of playbook documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) listSyncRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, total, err := s.svc.ListRuns(ctx, req.GetInt("limit", 0), req.GetInt("offset", 0))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"runs": runs, "total": total})
}

func (s *Server) getSyncRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	run, err := s.svc.GetRun(ctx, id)
	if err != nil {
		return errorResult(fmt.Errorf("run %s: %w", id, err)), nil
	}
	return jsonResult(run)
}

func (s *Server) listMatchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	recs, err := s.svc.ListMatches(ctx, runID, req.GetString("action", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(recs)
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.ListDocuments(ctx, req.GetString("module", "")))
}

func (s *Server) getDocumentContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(assist.DocumentContract), nil
}

func (s *Server) readContractResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     assist.DocumentContract,
		},
	}, nil
}
