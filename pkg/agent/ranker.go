package agent

import (
	"math"
	"sort"
	"time"

	"github.com/engramdev/engram/pkg/embeddings"
	"github.com/engramdev/engram/pkg/memory"
)

// RankerConfig holds the composite relevance scoring policy.
type RankerConfig struct {
	// SimilarityWeight scales the cosine similarity term.
	SimilarityWeight float64

	// ImportanceWeight scales the stored importance term.
	ImportanceWeight float64

	// RecencyWeight scales the exponential recency term.
	RecencyWeight float64

	// DecayRate is the per-day exponential decay applied to recency.
	DecayRate float64

	// MinRelevance drops results whose composite score falls below it.
	MinRelevance float64
}

// Scored pairs a memory with its composite relevance against a query.
type Scored struct {
	Memory     *memory.Memory
	Similarity float64
	Score      float64
}

// Ranker orders memories by composite relevance:
//
//	score = w_sim*cosine + w_imp*importance + w_rec*exp(-decay*ageDays)
//
// where age is measured from last access. Pure; no storage or clock access.
type Ranker struct {
	cfg RankerConfig
}

// NewRanker creates a ranker with the given scoring policy.
func NewRanker(cfg RankerConfig) *Ranker {
	return &Ranker{cfg: cfg}
}

// Rank scores the given memories against the query embedding and returns up
// to k results, most relevant first. Results below MinRelevance are dropped.
// Ties resolve to the more recently accessed memory, then the lexically
// lower id, so ordering is deterministic.
func (r *Ranker) Rank(query []float32, mems []*memory.Memory, now time.Time, k int) []Scored {
	if k <= 0 || len(mems) == 0 {
		return nil
	}

	scored := make([]Scored, 0, len(mems))
	for _, m := range mems {
		sim := embeddings.Cosine(query, m.Embedding)
		score := r.cfg.SimilarityWeight*sim +
			r.cfg.ImportanceWeight*m.Importance +
			r.cfg.RecencyWeight*math.Exp(-r.cfg.DecayRate*memory.AgeDays(m.LastAccessedAt, now))

		if score < r.cfg.MinRelevance {
			continue
		}

		scored = append(scored, Scored{
			Memory:     m,
			Similarity: sim,
			Score:      score,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].Memory.LastAccessedAt.Equal(scored[j].Memory.LastAccessedAt) {
			return scored[i].Memory.LastAccessedAt.After(scored[j].Memory.LastAccessedAt)
		}
		return scored[i].Memory.ID < scored[j].Memory.ID
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
