package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/agent"
	"github.com/engramdev/engram/pkg/memory"
	"github.com/engramdev/engram/pkg/storage"
)

// defaultRetrievalLimit is the number of memories returned when a request
// omits the limit.
const defaultRetrievalLimit = 5

// ErrorResponse is the JSON body of every error status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageRequest asks the engine to process a conversational message for
// memory effects.
type MessageRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// RetrieveRequest asks for memories relevant to a query.
type RetrieveRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
}

// RetrieveResponse carries the recalled memories, most relevant first.
type RetrieveResponse struct {
	Memories []*memory.Memory `json:"memories"`
	Count    int              `json:"count"`
}

// ReplyRequest asks for a memory-aware LLM reply to a message.
type ReplyRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
	Limit  int    `json:"limit,omitempty"`
}

// ReplyResponse carries the generated reply.
type ReplyResponse struct {
	Reply string `json:"reply"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleMessage processes a message for memory effects and reports what it
// did to the user's memories.
func (s *Server) handleMessage(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id is required"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text is required"})
	}

	result, err := s.agent.ProcessMessage(c.Context(), req.UserID, req.Text)
	if err != nil {
		s.logger.Error("failed to process message",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to process message"})
	}

	return c.JSON(result)
}

// handleRetrieve returns memories relevant to a query, most relevant first.
func (s *Server) handleRetrieve(c *fiber.Ctx) error {
	var req RetrieveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id is required"})
	}
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query is required"})
	}
	if req.Limit <= 0 {
		req.Limit = defaultRetrievalLimit
	}

	memories, err := s.agent.RetrieveContext(c.Context(), req.UserID, req.Query, req.Limit)
	if err != nil {
		s.logger.Error("failed to retrieve context",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to retrieve memories"})
	}

	return c.JSON(RetrieveResponse{
		Memories: memories,
		Count:    len(memories),
	})
}

// handleReply generates a memory-aware LLM reply to a message.
func (s *Server) handleReply(c *fiber.Ctx) error {
	var req ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id is required"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text is required"})
	}
	if req.Limit <= 0 {
		req.Limit = defaultRetrievalLimit
	}

	reply, err := s.agent.GenerateReply(c.Context(), req.UserID, req.Text, req.Limit)
	if err != nil {
		if errors.Is(err, agent.ErrNoCompleter) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "no llm provider configured"})
		}
		s.logger.Error("failed to generate reply",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to generate reply"})
	}

	return c.JSON(ReplyResponse{Reply: reply})
}

// handleListMemories returns all memories owned by a user.
func (s *Server) handleListMemories(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id parameter required"})
	}

	memories, err := s.agent.List(c.Context(), userID)
	if err != nil {
		s.logger.Error("failed to list memories",
			zap.String("user_id", userID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list memories"})
	}

	return c.JSON(RetrieveResponse{
		Memories: memories,
		Count:    len(memories),
	})
}

// handleDeleteMemory removes one memory by id.
func (s *Server) handleDeleteMemory(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	id := c.Params("id")
	if userID == "" || id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id and id parameters required"})
	}

	if err := s.agent.Delete(c.Context(), userID, id); err != nil {
		var notFound storage.ErrNotFound
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "memory not found"})
		}
		s.logger.Error("failed to delete memory",
			zap.String("user_id", userID),
			zap.String("memory_id", id),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to delete memory"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleStats returns summary statistics for a user's memory set.
func (s *Server) handleStats(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id parameter required"})
	}

	stats, err := s.agent.StatsFor(c.Context(), userID)
	if err != nil {
		s.logger.Error("failed to compute stats",
			zap.String("user_id", userID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to compute stats"})
	}

	return c.JSON(stats)
}
