package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

var (
	forgetToolName    = "memory_forget"
	forgetDescription = "Delete the stored memory that best matches a free-text reference. The reference is matched semantically; when nothing matches closely enough no memory is deleted, which is a normal result. Use this when the user asks to forget something."
)

// ForgetInput represents the input arguments for the memory_forget tool.
type ForgetInput struct {
	UserID    string `json:"user_id" jsonschema:"the identity whose memory set to forget from"`
	Reference string `json:"reference" jsonschema:"the phrase describing the memory to forget (e.g. 'my favorite pizza')"`
}

// ForgetOutput represents the structured output of a forget request.
type ForgetOutput struct {
	// Deleted is the removed memory, or null when nothing matched.
	Deleted *Recalled `json:"deleted"`
}

// handleForget processes a forget request via MCP.
func (s *Server) handleForget(ctx context.Context, _ *mcp.CallToolRequest, input ForgetInput) (*mcp.CallToolResult, ForgetOutput, error) {
	if input.UserID == "" {
		return toolError("user_id is required"), ForgetOutput{}, nil
	}
	if input.Reference == "" {
		return toolError("reference is required"), ForgetOutput{}, nil
	}

	deleted, err := s.config.Agent.Forget(ctx, input.UserID, input.Reference)
	if err != nil {
		s.config.Logger.Error("mcp forget failed",
			zap.String("user_id", input.UserID),
			zap.Error(err))
		return toolError(fmt.Sprintf("Forget request failed: %v", err)), ForgetOutput{}, nil
	}

	output := ForgetOutput{}
	if deleted != nil {
		r := toRecalled(deleted)
		output.Deleted = &r
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), ForgetOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
