package agent

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/memory"
)

// LifecycleConfig holds the retention and deletion policy.
type LifecycleConfig struct {
	// MaxCapacity is the per-user memory ceiling. Zero disables pruning.
	MaxCapacity int

	// DecayRate is the per-day exponential decay used in retention scoring.
	DecayRate float64

	// DeletionMatchThreshold is the minimum cosine similarity for a "forget"
	// request to match a stored memory.
	DeletionMatchThreshold float64
}

// Lifecycle enforces per-user capacity and handles explicit forget requests.
// It does not lock; callers serialize per-user mutations.
type Lifecycle struct {
	store  *Store
	cfg    LifecycleConfig
	logger *zap.Logger
}

// NewLifecycle creates a lifecycle manager over the store.
func NewLifecycle(store *Store, cfg LifecycleConfig, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// EnforceCapacity evicts the lowest-value memories until the user is at or
// under MaxCapacity, returning the pruned records. Value is importance
// discounted by recency decay, so a stale low-importance memory goes before
// a fresh one of equal importance.
func (l *Lifecycle) EnforceCapacity(ctx context.Context, userID string, now time.Time) ([]*memory.Memory, error) {
	if l.cfg.MaxCapacity <= 0 {
		return nil, nil
	}

	count, err := l.store.Count(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("counting memories: %w", err)
	}
	if count <= l.cfg.MaxCapacity {
		return nil, nil
	}

	all, err := l.store.GetAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}

	// Lowest retention value first; ties evict the older record.
	sort.Slice(all, func(i, j int) bool {
		vi, vj := l.retention(all[i], now), l.retention(all[j], now)
		if vi != vj {
			return vi < vj
		}
		return all[i].LastAccessedAt.Before(all[j].LastAccessedAt)
	})

	excess := len(all) - l.cfg.MaxCapacity
	pruned := make([]*memory.Memory, 0, excess)
	for _, m := range all[:excess] {
		if err := l.store.Delete(ctx, m.UserID, m.ID); err != nil {
			return pruned, fmt.Errorf("pruning memory %s: %w", m.ID, err)
		}
		pruned = append(pruned, m)

		l.logger.Info("pruned memory over capacity",
			zap.String("user_id", m.UserID),
			zap.String("memory_id", m.ID),
			zap.Float64("importance", m.Importance))
	}

	return pruned, nil
}

// ProcessDeletion resolves a forget request against stored memories. The
// reference embedding's best match at or above DeletionMatchThreshold is
// deleted and returned; no match returns (nil, nil) — a normal result, not
// an error, so repeating a forget request is harmless.
func (l *Lifecycle) ProcessDeletion(ctx context.Context, userID string, embedding []float32) (*memory.Memory, error) {
	matches, err := l.store.MostSimilar(ctx, userID, embedding, 1)
	if err != nil {
		return nil, fmt.Errorf("finding deletion target: %w", err)
	}

	if len(matches) == 0 || matches[0].Score < l.cfg.DeletionMatchThreshold {
		return nil, nil
	}

	target := matches[0].Memory
	if err := l.store.Delete(ctx, userID, target.ID); err != nil {
		return nil, fmt.Errorf("deleting memory %s: %w", target.ID, err)
	}

	l.logger.Info("deleted memory on user request",
		zap.String("user_id", userID),
		zap.String("memory_id", target.ID),
		zap.Float64("similarity", matches[0].Score))

	return target, nil
}

func (l *Lifecycle) retention(m *memory.Memory, now time.Time) float64 {
	return m.Importance * math.Exp(-l.cfg.DecayRate*memory.AgeDays(m.LastAccessedAt, now))
}
