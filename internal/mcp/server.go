package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/balmohsen/backend/internal/workflow"
	"github.com/balmohsen/backend/pkg/models"
)

// Server exposes read-only approval queries as MCP tools for agent
// integrations. Mutating operations stay behind the authenticated HTTP API.
type Server struct {
	mcpServer *server.MCPServer
	engine    *workflow.Engine
}

func NewServer(engine *workflow.Engine) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Approval Service",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		engine: engine,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_form",
			mcp.WithDescription("Fetch a form record with its full audit trail"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The form id")),
		),
		s.handleGetForm,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_pending_forms",
			mcp.WithDescription("List non-terminal forms waiting on an approver role"),
			mcp.WithString("role", mcp.Required(), mcp.Description("Approver role token, e.g. finance, manager, vp, administrator")),
		),
		s.handleListPendingForms,
	)
}

func (s *Server) handleGetForm(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	form, err := s.engine.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch form: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(form)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleListPendingForms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	role, ok := args["role"].(string)
	if !ok || role == "" {
		return mcp.NewToolResultError("Missing required parameter: role"), nil
	}

	forms, err := s.engine.ListPendingForRole(ctx, models.Role(role))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list forms: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(forms)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
