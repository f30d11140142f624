package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/memory"
)

var (
	recallToolName    = "memory_recall"
	recallDescription = "Recall stored memories relevant to a query. Returns up to top_k memories for the user ranked by a blend of semantic similarity, importance, and recency. Use this to retrieve persistent knowledge about the user before answering."
)

// defaultRecallTopK is used when a recall request omits top_k.
const defaultRecallTopK = 5

// RecallInput represents the input arguments for the memory_recall tool.
type RecallInput struct {
	UserID string `json:"user_id" jsonschema:"the identity whose memories to search"`
	Query  string `json:"query" jsonschema:"the query text to find relevant memories for"`
	TopK   int    `json:"top_k,omitempty" jsonschema:"number of memories to return (default: 5)"`
}

// Recalled is a stored memory as surfaced over MCP; the embedding stays
// server-side.
type Recalled struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	Importance     float64   `json:"importance"`
	Category       string    `json:"category,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    int       `json:"access_count"`
}

// RecallOutput represents the structured output of a memory recall.
type RecallOutput struct {
	Query    string     `json:"query"`
	Memories []Recalled `json:"memories"`
	Count    int        `json:"count"`
}

// handleRecall processes a recall request via MCP.
func (s *Server) handleRecall(ctx context.Context, _ *mcp.CallToolRequest, input RecallInput) (*mcp.CallToolResult, RecallOutput, error) {
	if input.UserID == "" {
		return toolError("user_id is required"), RecallOutput{}, nil
	}
	if input.Query == "" {
		return toolError("query is required"), RecallOutput{}, nil
	}

	topK := input.TopK
	if topK <= 0 {
		topK = defaultRecallTopK
	}

	s.config.Logger.Debug("MCP recall request",
		zap.String("user_id", input.UserID),
		zap.String("query", input.Query),
		zap.Int("topK", topK),
	)

	memories, err := s.config.Agent.RetrieveContext(ctx, input.UserID, input.Query, topK)
	if err != nil {
		s.config.Logger.Error("mcp recall failed",
			zap.String("user_id", input.UserID),
			zap.Error(err))
		return toolError(fmt.Sprintf("Memory recall failed: %v", err)), RecallOutput{}, nil
	}

	output := RecallOutput{
		Query:    input.Query,
		Memories: make([]Recalled, 0, len(memories)),
		Count:    len(memories),
	}
	for _, m := range memories {
		output.Memories = append(output.Memories, toRecalled(m))
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), RecallOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

// toRecalled converts a stored memory to its MCP representation.
func toRecalled(m *memory.Memory) Recalled {
	return Recalled{
		ID:             m.ID,
		Text:           m.Text,
		Importance:     m.Importance,
		Category:       m.Category,
		CreatedAt:      m.CreatedAt,
		LastAccessedAt: m.LastAccessedAt,
		AccessCount:    m.AccessCount,
	}
}
