package agent_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/agent"
	"github.com/engramdev/engram/pkg/memory"
	"github.com/engramdev/engram/pkg/storage/inmemory"
)

var _ = Describe("Lifecycle", func() {
	var (
		ctx       context.Context
		driver    *inmemory.Driver
		store     *agent.Store
		lifecycle *agent.Lifecycle
		now       time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		store = agent.NewStore(driver, agent.StoreConfig{MergeThreshold: 0.85}, zap.NewNop())
		lifecycle = agent.NewLifecycle(store, agent.LifecycleConfig{
			MaxCapacity:            2,
			DecayRate:              0.05,
			DeletionMatchThreshold: 0.8,
		}, zap.NewNop())
		now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	})

	put := func(id string, importance float64, embedding []float32, lastAccessed time.Time) {
		Expect(driver.Put(ctx, &memory.Memory{
			ID:             id,
			UserID:         "user-1",
			Text:           id,
			Importance:     importance,
			Embedding:      embedding,
			CreatedAt:      lastAccessed,
			LastAccessedAt: lastAccessed,
		})).To(Succeed())
	}

	Describe("EnforceCapacity", func() {
		It("evicts the lowest-importance memories over capacity", func() {
			put("high", 0.9, []float32{1, 0, 0}, now)
			put("mid", 0.4, []float32{0, 1, 0}, now)
			put("low", 0.2, []float32{0, 0, 1}, now)

			pruned, err := lifecycle.EnforceCapacity(ctx, "user-1", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(pruned).To(HaveLen(1))
			Expect(pruned[0].ID).To(Equal("low"))

			count, err := store.Count(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))

			remaining, err := store.GetAll(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			ids := []string{remaining[0].ID, remaining[1].ID}
			Expect(ids).To(ConsistOf("high", "mid"))
		})

		It("evicts the stale memory before a fresh one of equal importance", func() {
			put("fresh", 0.5, []float32{1, 0, 0}, now)
			put("stale", 0.5, []float32{0, 1, 0}, now.Add(-60*24*time.Hour))
			put("top", 0.9, []float32{0, 0, 1}, now)

			pruned, err := lifecycle.EnforceCapacity(ctx, "user-1", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(pruned).To(HaveLen(1))
			Expect(pruned[0].ID).To(Equal("stale"))
		})

		It("does nothing at or under capacity", func() {
			put("a", 0.5, []float32{1, 0, 0}, now)
			put("b", 0.5, []float32{0, 1, 0}, now)

			pruned, err := lifecycle.EnforceCapacity(ctx, "user-1", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(pruned).To(BeEmpty())

			count, err := store.Count(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})

		It("is disabled when max capacity is zero", func() {
			unbounded := agent.NewLifecycle(store, agent.LifecycleConfig{DecayRate: 0.05}, zap.NewNop())

			put("a", 0.5, []float32{1, 0, 0}, now)
			put("b", 0.5, []float32{0, 1, 0}, now)
			put("c", 0.5, []float32{0, 0, 1}, now)

			pruned, err := unbounded.EnforceCapacity(ctx, "user-1", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(pruned).To(BeEmpty())
		})
	})

	Describe("ProcessDeletion", func() {
		It("deletes the best match above the threshold", func() {
			put("pizza", 0.65, []float32{0, 1, 0}, now)
			put("name", 0.8, []float32{1, 0, 0}, now)

			deleted, err := lifecycle.ProcessDeletion(ctx, "user-1", []float32{0, 1, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).NotTo(BeNil())
			Expect(deleted.ID).To(Equal("pizza"))

			count, err := store.Count(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("returns no match when nothing clears the threshold", func() {
			put("name", 0.8, []float32{1, 0, 0}, now)

			deleted, err := lifecycle.ProcessDeletion(ctx, "user-1", []float32{0, 1, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeNil())

			count, err := store.Count(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("is harmless to repeat", func() {
			put("pizza", 0.65, []float32{0, 1, 0}, now)

			deleted, err := lifecycle.ProcessDeletion(ctx, "user-1", []float32{0, 1, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).NotTo(BeNil())

			deleted, err = lifecycle.ProcessDeletion(ctx, "user-1", []float32{0, 1, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeNil())
		})
	})
})
