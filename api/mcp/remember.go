package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

var (
	rememberToolName    = "memory_remember"
	rememberDescription = "Process a conversational message for memory effects. Statements worth keeping are stored as durable memories (or merged into semantically-equivalent ones), and forget requests in the message delete matching memories. Use this to give the memory layer anything the user says that may be worth remembering."
)

// RememberInput represents the input arguments for the memory_remember tool.
type RememberInput struct {
	UserID string `json:"user_id" jsonschema:"the identity whose memory set the message applies to"`
	Text   string `json:"text" jsonschema:"the conversational message text to process"`
}

// RememberOutput summarizes what the message did to the user's memories.
type RememberOutput struct {
	Stored  []StoredMemory `json:"stored"`
	Deleted []Recalled     `json:"deleted"`
	Pruned  []Recalled     `json:"pruned"`
	Ignored int            `json:"ignored"`
}

// StoredMemory pairs a stored memory with how the write resolved.
type StoredMemory struct {
	Memory  Recalled `json:"memory"`
	Outcome string   `json:"outcome"`
}

// handleRemember processes a remember request via MCP.
func (s *Server) handleRemember(ctx context.Context, _ *mcp.CallToolRequest, input RememberInput) (*mcp.CallToolResult, RememberOutput, error) {
	if input.UserID == "" {
		return toolError("user_id is required"), RememberOutput{}, nil
	}
	if input.Text == "" {
		return toolError("text is required"), RememberOutput{}, nil
	}

	result, err := s.config.Agent.ProcessMessage(ctx, input.UserID, input.Text)
	if err != nil {
		s.config.Logger.Error("mcp remember failed",
			zap.String("user_id", input.UserID),
			zap.Error(err))
		return toolError(fmt.Sprintf("Processing message failed: %v", err)), RememberOutput{}, nil
	}

	output := RememberOutput{
		Stored:  make([]StoredMemory, 0, len(result.Stored)),
		Deleted: make([]Recalled, 0, len(result.Deleted)),
		Pruned:  make([]Recalled, 0, len(result.Pruned)),
		Ignored: result.Ignored,
	}
	for _, sm := range result.Stored {
		output.Stored = append(output.Stored, StoredMemory{
			Memory:  toRecalled(sm.Memory),
			Outcome: string(sm.Outcome),
		})
	}
	for _, m := range result.Deleted {
		output.Deleted = append(output.Deleted, toRecalled(m))
	}
	for _, m := range result.Pruned {
		output.Pruned = append(output.Pruned, toRecalled(m))
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), RememberOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

// toolError wraps a message in an MCP error result.
func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
