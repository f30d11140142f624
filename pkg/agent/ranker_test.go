package agent_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/engramdev/engram/pkg/agent"
	"github.com/engramdev/engram/pkg/memory"
)

var _ = Describe("Ranker", func() {
	var (
		ranker *agent.Ranker
		now    time.Time
	)

	BeforeEach(func() {
		ranker = agent.NewRanker(agent.RankerConfig{
			SimilarityWeight: 0.6,
			ImportanceWeight: 0.25,
			RecencyWeight:    0.15,
			DecayRate:        0.05,
			MinRelevance:     0.2,
		})
		now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	})

	fresh := func(id string, importance float64, embedding []float32) *memory.Memory {
		return &memory.Memory{
			ID:             id,
			UserID:         "user-1",
			Text:           id,
			Importance:     importance,
			Embedding:      embedding,
			CreatedAt:      now,
			LastAccessedAt: now,
		}
	}

	It("orders by composite relevance, most relevant first", func() {
		// Fresh memories: recency term is the full weight for both, so the
		// ordering comes down to similarity and importance.
		a := fresh("a", 0.5, []float32{1, 0, 0}) // 0.6*1.0 + 0.25*0.5 + 0.15 = 0.875
		b := fresh("b", 1.0, []float32{0, 1, 0}) // 0.6*0.0 + 0.25*1.0 + 0.15 = 0.400

		ranked := ranker.Rank([]float32{1, 0, 0}, []*memory.Memory{b, a}, now, 10)
		Expect(ranked).To(HaveLen(2))
		Expect(ranked[0].Memory.ID).To(Equal("a"))
		Expect(ranked[0].Similarity).To(BeNumerically("~", 1.0, 1e-6))
		Expect(ranked[0].Score).To(BeNumerically("~", 0.875, 1e-6))
		Expect(ranked[1].Memory.ID).To(Equal("b"))
		Expect(ranked[1].Score).To(BeNumerically("~", 0.400, 1e-6))
	})

	It("drops results below the relevance floor", func() {
		// Orthogonal to the query with zero importance: only the recency term
		// remains (0.15), below the 0.2 floor.
		weak := fresh("weak", 0.0, []float32{0, 1, 0})

		ranked := ranker.Rank([]float32{1, 0, 0}, []*memory.Memory{weak}, now, 10)
		Expect(ranked).To(BeEmpty())
	})

	It("ranks recently-accessed memories over stale ones of equal importance", func() {
		recent := fresh("recent", 0.5, []float32{1, 0, 0})
		stale := fresh("stale", 0.5, []float32{1, 0, 0})
		stale.LastAccessedAt = now.Add(-30 * 24 * time.Hour)

		ranked := ranker.Rank([]float32{1, 0, 0}, []*memory.Memory{stale, recent}, now, 10)
		Expect(ranked).To(HaveLen(2))
		Expect(ranked[0].Memory.ID).To(Equal("recent"))
		Expect(ranked[1].Memory.ID).To(Equal("stale"))
	})

	It("breaks score ties by the more recently accessed memory", func() {
		// With the recency weight zeroed, last-accessed no longer affects the
		// score and only matters for the tie-break.
		flat := agent.NewRanker(agent.RankerConfig{
			SimilarityWeight: 0.6,
			ImportanceWeight: 0.25,
		})

		older := fresh("older", 0.5, []float32{1, 0, 0})
		older.LastAccessedAt = now.Add(-time.Hour)
		newer := fresh("newer", 0.5, []float32{1, 0, 0})

		ranked := flat.Rank([]float32{1, 0, 0}, []*memory.Memory{older, newer}, now, 10)
		Expect(ranked).To(HaveLen(2))
		Expect(ranked[0].Memory.ID).To(Equal("newer"))
		Expect(ranked[1].Memory.ID).To(Equal("older"))
	})

	It("breaks full ties by the lexically lower id", func() {
		m1 := fresh("id-b", 0.5, []float32{1, 0, 0})
		m2 := fresh("id-a", 0.5, []float32{1, 0, 0})

		ranked := ranker.Rank([]float32{1, 0, 0}, []*memory.Memory{m1, m2}, now, 10)
		Expect(ranked).To(HaveLen(2))
		Expect(ranked[0].Memory.ID).To(Equal("id-a"))
		Expect(ranked[1].Memory.ID).To(Equal("id-b"))
	})

	It("truncates to k results", func() {
		mems := []*memory.Memory{
			fresh("a", 0.9, []float32{1, 0, 0}),
			fresh("b", 0.8, []float32{1, 0, 0}),
			fresh("c", 0.7, []float32{1, 0, 0}),
		}

		ranked := ranker.Rank([]float32{1, 0, 0}, mems, now, 2)
		Expect(ranked).To(HaveLen(2))
		Expect(ranked[0].Memory.ID).To(Equal("a"))
		Expect(ranked[1].Memory.ID).To(Equal("b"))
	})

	It("returns nothing for k <= 0 or no memories", func() {
		Expect(ranker.Rank([]float32{1, 0, 0}, []*memory.Memory{fresh("a", 0.9, []float32{1, 0, 0})}, now, 0)).To(BeNil())
		Expect(ranker.Rank([]float32{1, 0, 0}, nil, now, 5)).To(BeNil())
	})
})
