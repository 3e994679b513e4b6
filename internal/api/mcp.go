package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/askbridge/askbridge/internal/agent"
)

// NewMCPServer creates an MCP server exposing the orchestrator as an `ask`
// tool, so agent frontends can use the service over stdio.
func NewMCPServer(orch Asker, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"askbridge",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("askbridge answers questions from vehicle sales data and indexed product documentation."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask a question about vehicle sales figures or product documentation. Returns an answer with citations where documentation was used."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Session identifier from a previous call, for follow-up questions")),
		),
		mcpAsk(orch),
	)

	return s
}

func mcpAsk(orch Asker) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		sessionID := req.GetString("session_id", "")

		res, err := orch.Ask(ctx, agent.Request{
			Question:  question,
			SessionID: sessionID,
			CallerID:  "mcp",
		})
		if err != nil {
			var quota *agent.QuotaError
			switch {
			case errors.Is(err, agent.ErrEmptyQuestion):
				return mcpError("question is required"), nil
			case errors.As(err, &quota):
				return mcpError(quota.Error()), nil
			default:
				return mcpError("unable to answer the question"), nil
			}
		}

		type mcpAnswer struct {
			Answer    string           `json:"answer"`
			Route     string           `json:"route"`
			Citations []agent.Citation `json:"citations,omitempty"`
			SessionID string           `json:"session_id"`
		}
		b, err := json.Marshal(mcpAnswer{
			Answer:    res.Answer,
			Route:     string(res.Route),
			Citations: res.Citations,
			SessionID: res.SessionID,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
