// Package agent wires the text analyzer, embedder, store, ranker and
// lifecycle manager into the memory engine's upward interface. All
// mutations for one user run inside that user's exclusive section;
// different users proceed in parallel.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/embeddings"
	"github.com/engramdev/engram/pkg/eventstream"
	"github.com/engramdev/engram/pkg/llm"
	"github.com/engramdev/engram/pkg/memory"
	"github.com/engramdev/engram/pkg/storage"
)

// ErrNoCompleter is returned by GenerateReply when no LLM provider is
// configured.
var ErrNoCompleter = errors.New("no llm completer configured")

// replyPreamble introduces recalled memories in the system prompt.
const replyPreamble = "Based on our previous conversations, I recall the following information about you:"

// Config aggregates the policy knobs of the engine's components.
type Config struct {
	Analyzer  memory.AnalyzerConfig
	Store     StoreConfig
	Ranker    RankerConfig
	Lifecycle LifecycleConfig
}

// Agent is the memory engine. It processes conversational text into stored
// memories, retrieves relevant context for queries, and generates
// memory-aware replies.
type Agent struct {
	analyzer  *memory.Analyzer
	embedder  embeddings.Embedder
	store     *Store
	ranker    *Ranker
	lifecycle *Lifecycle
	completer llm.Completer
	events    eventstream.Publisher
	locks     *userLocks
	logger    *zap.Logger

	// now is the clock; swapped in tests.
	now func() time.Time
}

// Option configures an Agent.
type Option func(*Agent)

// WithCompleter attaches an LLM provider for GenerateReply.
func WithCompleter(c llm.Completer) Option {
	return func(a *Agent) { a.completer = c }
}

// WithPublisher attaches a lifecycle event publisher.
func WithPublisher(p eventstream.Publisher) Option {
	return func(a *Agent) { a.events = p }
}

// WithClock overrides the agent's time source.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// New creates the memory engine over a storage driver and an embedder.
func New(driver storage.Driver, embedder embeddings.Embedder, cfg Config, logger *zap.Logger, opts ...Option) *Agent {
	store := NewStore(driver, cfg.Store, logger)

	a := &Agent{
		analyzer:  memory.NewAnalyzer(cfg.Analyzer),
		embedder:  embedder,
		store:     store,
		ranker:    NewRanker(cfg.Ranker),
		lifecycle: NewLifecycle(store, cfg.Lifecycle, logger),
		locks:     newUserLocks(),
		logger:    logger,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// StoredMemory pairs a persisted memory with how the write resolved.
type StoredMemory struct {
	Memory  *memory.Memory `json:"memory"`
	Outcome memory.Outcome `json:"outcome"`
}

// ProcessResult reports what a message did to the user's memories.
type ProcessResult struct {
	// Stored holds memories inserted or merged from the message.
	Stored []StoredMemory `json:"stored"`

	// Deleted holds memories removed by forget requests in the message.
	Deleted []*memory.Memory `json:"deleted"`

	// Pruned holds memories evicted by capacity enforcement triggered by
	// this message's inserts.
	Pruned []*memory.Memory `json:"pruned"`

	// Ignored counts extracted units that stored nothing: conversational
	// text, units below the importance floor, failed embeddings, and forget
	// requests that matched nothing.
	Ignored int `json:"ignored"`
}

// ProcessMessage extracts memory candidates from a message and applies them:
// store intents insert or merge, delete intents resolve against stored
// memories, everything else is ignored. Embedding failures skip the affected
// candidate and never fail the message.
func (a *Agent) ProcessMessage(ctx context.Context, userID, text string) (*ProcessResult, error) {
	result := &ProcessResult{}

	candidates := a.analyzer.Extract(userID, text)
	if len(candidates) == 0 {
		return result, nil
	}

	for i := range candidates {
		cand := &candidates[i]

		switch cand.Intent {
		case memory.IntentStore:
			if err := a.applyStore(ctx, cand, result); err != nil {
				return result, err
			}
		case memory.IntentDelete:
			if err := a.applyDelete(ctx, cand, result); err != nil {
				return result, err
			}
		default:
			result.Ignored++
		}
	}

	return result, nil
}

func (a *Agent) applyStore(ctx context.Context, cand *memory.Candidate, result *ProcessResult) error {
	embedding, err := a.embedder.Embed(ctx, cand.Text)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.logger.Warn("skipping candidate, embedding failed",
			zap.String("user_id", cand.UserID),
			zap.Error(err))
		result.Ignored++
		return nil
	}
	cand.Embedding = embedding

	unlock := a.locks.acquire(cand.UserID)
	defer unlock()

	now := a.now()

	m, outcome, err := a.store.InsertOrMerge(ctx, cand, now)
	if err != nil {
		return fmt.Errorf("storing memory: %w", err)
	}
	result.Stored = append(result.Stored, StoredMemory{Memory: m, Outcome: outcome})
	a.emit(ctx, outcome, m, cand.Text)

	if outcome == memory.OutcomeInserted {
		pruned, err := a.lifecycle.EnforceCapacity(ctx, cand.UserID, now)
		if err != nil {
			return fmt.Errorf("enforcing capacity: %w", err)
		}
		for _, p := range pruned {
			result.Pruned = append(result.Pruned, p)
			a.emit(ctx, memory.OutcomePruned, p, "")
		}
	}

	return nil
}

func (a *Agent) applyDelete(ctx context.Context, cand *memory.Candidate, result *ProcessResult) error {
	embedding, err := a.embedder.Embed(ctx, cand.Reference)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.logger.Warn("skipping forget request, embedding failed",
			zap.String("user_id", cand.UserID),
			zap.Error(err))
		result.Ignored++
		return nil
	}

	unlock := a.locks.acquire(cand.UserID)
	defer unlock()

	deleted, err := a.lifecycle.ProcessDeletion(ctx, cand.UserID, embedding)
	if err != nil {
		return fmt.Errorf("processing forget request: %w", err)
	}
	if deleted == nil {
		result.Ignored++
		return nil
	}

	result.Deleted = append(result.Deleted, deleted)
	a.emit(ctx, memory.OutcomeDeleted, deleted, "")
	return nil
}

// RetrieveContext returns up to k memories relevant to the query, most
// relevant first. Returned memories get their access count incremented and
// last-accessed refreshed.
func (a *Agent) RetrieveContext(ctx context.Context, userID, query string, k int) ([]*memory.Memory, error) {
	embedding, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	unlock := a.locks.acquire(userID)
	defer unlock()

	all, err := a.store.GetAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}

	now := a.now()
	ranked := a.ranker.Rank(embedding, all, now, k)

	memories := make([]*memory.Memory, 0, len(ranked))
	for _, s := range ranked {
		s.Memory.AccessCount++
		s.Memory.LastAccessedAt = now
		if err := a.store.Update(ctx, s.Memory); err != nil {
			return nil, fmt.Errorf("recording access of memory %s: %w", s.Memory.ID, err)
		}
		memories = append(memories, s.Memory)
	}

	return memories, nil
}

// GenerateReply processes the message for memory effects, retrieves
// relevant context, and asks the LLM for a memory-aware reply.
func (a *Agent) GenerateReply(ctx context.Context, userID, text string, k int) (string, error) {
	if a.completer == nil {
		return "", ErrNoCompleter
	}

	if _, err := a.ProcessMessage(ctx, userID, text); err != nil {
		return "", err
	}

	recalled, err := a.RetrieveContext(ctx, userID, text, k)
	if err != nil {
		return "", err
	}

	messages := make([]llm.Message, 0, 2)
	if len(recalled) > 0 {
		var b strings.Builder
		b.WriteString(replyPreamble)
		for _, m := range recalled {
			b.WriteString("\n- ")
			b.WriteString(m.Text)
		}
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: b.String()})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})

	reply, err := a.completer.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generating reply: %w", err)
	}
	return reply, nil
}

// Forget resolves a free-text reference against the user's memories and
// deletes the best match. No match returns (nil, nil), so repeating a forget
// is harmless.
func (a *Agent) Forget(ctx context.Context, userID, reference string) (*memory.Memory, error) {
	embedding, err := a.embedder.Embed(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("embedding reference: %w", err)
	}

	unlock := a.locks.acquire(userID)
	defer unlock()

	deleted, err := a.lifecycle.ProcessDeletion(ctx, userID, embedding)
	if err != nil {
		return nil, fmt.Errorf("processing forget request: %w", err)
	}
	if deleted == nil {
		return nil, nil
	}

	a.emit(ctx, memory.OutcomeDeleted, deleted, "")
	return deleted, nil
}

// List returns all memories owned by the user.
func (a *Agent) List(ctx context.Context, userID string) ([]*memory.Memory, error) {
	return a.store.GetAll(ctx, userID)
}

// Delete removes one memory by id.
func (a *Agent) Delete(ctx context.Context, userID, id string) error {
	unlock := a.locks.acquire(userID)
	defer unlock()

	m, err := a.store.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := a.store.Delete(ctx, userID, id); err != nil {
		return err
	}
	a.emit(ctx, memory.OutcomeDeleted, m, "")
	return nil
}

// Stats summarizes a user's memory set.
type Stats struct {
	Total             int            `json:"total"`
	AverageImportance float64        `json:"average_importance"`
	OldestCreatedAt   *time.Time     `json:"oldest_created_at,omitempty"`
	NewestCreatedAt   *time.Time     `json:"newest_created_at,omitempty"`
	MostAccessed      string         `json:"most_accessed,omitempty"`
	Categories        map[string]int `json:"categories,omitempty"`
}

// StatsFor computes summary statistics over the user's memories.
func (a *Agent) StatsFor(ctx context.Context, userID string) (*Stats, error) {
	all, err := a.store.GetAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}

	stats := &Stats{Total: len(all)}
	if len(all) == 0 {
		return stats, nil
	}

	stats.Categories = make(map[string]int)
	var sum float64
	var oldest, newest time.Time
	var mostAccessed *memory.Memory

	for _, m := range all {
		sum += m.Importance
		if m.Category != "" {
			stats.Categories[m.Category]++
		}
		if oldest.IsZero() || m.CreatedAt.Before(oldest) {
			oldest = m.CreatedAt
		}
		if newest.IsZero() || m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
		if mostAccessed == nil || m.AccessCount > mostAccessed.AccessCount {
			mostAccessed = m
		}
	}

	stats.AverageImportance = sum / float64(len(all))
	stats.OldestCreatedAt = &oldest
	stats.NewestCreatedAt = &newest
	stats.MostAccessed = mostAccessed.Text
	return stats, nil
}

// emit publishes a lifecycle event. Publishing is best-effort: failures are
// logged, never propagated into the mutation's result.
func (a *Agent) emit(ctx context.Context, outcome memory.Outcome, m *memory.Memory, mergedFrom string) {
	if a.events == nil {
		return
	}

	event := &eventstream.MemoryEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeFor(outcome),
		EventID:       uuid.NewString(),
		EmittedAt:     a.now().UTC(),
		UserID:        m.UserID,
		MemoryID:      m.ID,
		Text:          m.Text,
		Importance:    m.Importance,
		Category:      m.Category,
	}
	if outcome == memory.OutcomeMerged {
		event.MergedFromText = mergedFrom
	}

	if err := a.events.PublishMemoryEvent(ctx, event); err != nil {
		a.logger.Warn("failed to publish memory event",
			zap.String("event_type", event.EventType),
			zap.String("memory_id", m.ID),
			zap.Error(err))
	}
}
