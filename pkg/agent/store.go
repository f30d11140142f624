package agent

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/embeddings"
	"github.com/engramdev/engram/pkg/memory"
	"github.com/engramdev/engram/pkg/storage"
)

// StoreConfig holds the dedup policy for the memory store.
type StoreConfig struct {
	// MergeThreshold is the cosine similarity at or above which a candidate
	// is considered the same fact as an existing memory.
	MergeThreshold float64
}

// Store is the dedup-aware write path over a storage driver. It does not
// lock; callers serialize per-user mutations.
type Store struct {
	driver storage.Driver
	cfg    StoreConfig
	logger *zap.Logger
}

// NewStore creates a memory store over the given driver.
func NewStore(driver storage.Driver, cfg StoreConfig, logger *zap.Logger) *Store {
	return &Store{
		driver: driver,
		cfg:    cfg,
		logger: logger,
	}
}

// InsertOrMerge persists a candidate, merging it into an existing memory
// when one is semantically equivalent (max cosine >= MergeThreshold).
//
// On merge the existing record survives: its text and embedding are kept,
// importance becomes the max of the two, and last-accessed refreshes. The
// candidate is discarded. On insert a new record is created with a fresh ID.
func (s *Store) InsertOrMerge(ctx context.Context, cand *memory.Candidate, now time.Time) (*memory.Memory, memory.Outcome, error) {
	matches, err := s.MostSimilar(ctx, cand.UserID, cand.Embedding, 1)
	if err != nil {
		return nil, "", fmt.Errorf("finding merge candidate: %w", err)
	}

	if len(matches) > 0 && matches[0].Score >= s.cfg.MergeThreshold {
		existing := matches[0].Memory
		if cand.Importance > existing.Importance {
			existing.Importance = cand.Importance
		}
		existing.LastAccessedAt = now

		if err := s.driver.Update(ctx, existing); err != nil {
			return nil, "", fmt.Errorf("merging into memory %s: %w", existing.ID, err)
		}

		s.logger.Debug("merged candidate into existing memory",
			zap.String("user_id", cand.UserID),
			zap.String("memory_id", existing.ID),
			zap.Float64("similarity", matches[0].Score))

		return existing, memory.OutcomeMerged, nil
	}

	m := &memory.Memory{
		ID:             uuid.NewString(),
		UserID:         cand.UserID,
		Text:           cand.Text,
		Embedding:      cand.Embedding,
		Importance:     memory.ClampImportance(cand.Importance),
		Category:       cand.Category,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	if err := s.driver.Put(ctx, m); err != nil {
		return nil, "", fmt.Errorf("inserting memory: %w", err)
	}

	s.logger.Debug("inserted new memory",
		zap.String("user_id", cand.UserID),
		zap.String("memory_id", m.ID))

	return m, memory.OutcomeInserted, nil
}

// MostSimilar returns up to k matches for the user by cosine similarity,
// most similar first. Drivers with native nearest-neighbor search serve it
// directly; everything else gets an exact linear scan.
func (s *Store) MostSimilar(ctx context.Context, userID string, embedding []float32, k int) ([]storage.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	if searcher, ok := s.driver.(storage.Searcher); ok {
		return searcher.MostSimilar(ctx, userID, embedding, k)
	}

	all, err := s.driver.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	matches := make([]storage.Match, 0, len(all))
	for _, m := range all {
		matches = append(matches, storage.Match{
			Memory: m,
			Score:  embeddings.Cosine(embedding, m.Embedding),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Get retrieves one memory by owner and id.
func (s *Store) Get(ctx context.Context, userID, id string) (*memory.Memory, error) {
	return s.driver.Get(ctx, userID, id)
}

// GetAll returns every memory owned by the user.
func (s *Store) GetAll(ctx context.Context, userID string) ([]*memory.Memory, error) {
	return s.driver.List(ctx, userID)
}

// Update replaces a stored record.
func (s *Store) Update(ctx context.Context, m *memory.Memory) error {
	return s.driver.Update(ctx, m)
}

// Delete removes one memory by owner and id.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	return s.driver.Delete(ctx, userID, id)
}

// Count returns the number of memories owned by the user.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	return s.driver.Count(ctx, userID)
}
