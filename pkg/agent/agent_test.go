package agent_test

import (
	"context"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/agent"
	"github.com/engramdev/engram/pkg/eventstream"
	"github.com/engramdev/engram/pkg/llm"
	"github.com/engramdev/engram/pkg/memory"
	"github.com/engramdev/engram/pkg/storage/inmemory"
	testutils "github.com/engramdev/engram/pkg/utils/test"
)

var _ = Describe("Agent", func() {
	var (
		ctx       context.Context
		driver    *inmemory.Driver
		embedder  *testutils.MockEmbedder
		publisher *testutils.MockPublisher
		now       time.Time
		eng       *agent.Agent
	)

	newAgent := func(maxCapacity int, opts ...agent.Option) *agent.Agent {
		cfg := agent.Config{
			Analyzer: memory.DefaultAnalyzerConfig(),
			Store:    agent.StoreConfig{MergeThreshold: 0.85},
			Ranker: agent.RankerConfig{
				SimilarityWeight: 0.6,
				ImportanceWeight: 0.25,
				RecencyWeight:    0.15,
				DecayRate:        0.05,
				MinRelevance:     0.2,
			},
			Lifecycle: agent.LifecycleConfig{
				MaxCapacity:            maxCapacity,
				DecayRate:              0.05,
				DeletionMatchThreshold: 0.8,
			},
		}

		opts = append(opts,
			agent.WithPublisher(publisher),
			agent.WithClock(func() time.Time { return now }),
		)
		return agent.New(driver, embedder, cfg, zap.NewNop(), opts...)
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		embedder = testutils.NewMockEmbedder()
		publisher = testutils.NewMockPublisher()
		now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

		// The analyzer normalizes text to lowercase before embedding.
		embedder.Embeddings["my name is john smith."] = []float32{1, 0, 0}
		embedder.Embeddings["i love pizza."] = []float32{0, 1, 0}
		embedder.Embeddings["pizza"] = []float32{0, 1, 0}
		embedder.Embeddings["the weather seems quite nice today."] = []float32{0, 0, 1}

		eng = newAgent(1000)
	})

	Describe("ProcessMessage", func() {
		It("stores a personal statement as a new memory", func() {
			result, err := eng.ProcessMessage(ctx, "user-1", "My name is John Smith.")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Stored).To(HaveLen(1))
			Expect(result.Stored[0].Outcome).To(Equal(memory.OutcomeInserted))
			Expect(result.Deleted).To(BeEmpty())
			Expect(result.Pruned).To(BeEmpty())

			m := result.Stored[0].Memory
			Expect(m.Text).To(Equal("my name is john smith."))
			Expect(m.Category).To(Equal("identity"))
			Expect(m.Importance).To(BeNumerically("~", 0.8, 1e-9))
			Expect(m.CreatedAt).To(Equal(now))

			all, err := eng.List(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("does nothing for plain conversational text", func() {
			result, err := eng.ProcessMessage(ctx, "user-1", "Ok, thanks!")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Stored).To(BeEmpty())
			Expect(result.Deleted).To(BeEmpty())
			Expect(result.Ignored).To(BeZero())

			all, err := eng.List(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})

		It("merges a repeated statement instead of duplicating it", func() {
			_, err := eng.ProcessMessage(ctx, "user-1", "My name is John Smith.")
			Expect(err).NotTo(HaveOccurred())

			result, err := eng.ProcessMessage(ctx, "user-1", "My name is John Smith.")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Stored).To(HaveLen(1))
			Expect(result.Stored[0].Outcome).To(Equal(memory.OutcomeMerged))

			all, err := eng.List(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Importance).To(BeNumerically("~", 0.8, 1e-9))
		})

		It("skips candidates whose embedding fails without failing the message", func() {
			embedder.FailOn = "my name is john smith."

			result, err := eng.ProcessMessage(ctx, "user-1", "My name is John Smith. I love pizza.")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Ignored).To(Equal(1))
			Expect(result.Stored).To(HaveLen(1))
			Expect(result.Stored[0].Memory.Text).To(Equal("i love pizza."))
		})

		It("prunes the lowest-value memory when an insert exceeds capacity", func() {
			eng = newAgent(2)

			_, err := eng.ProcessMessage(ctx, "user-1", "My name is John Smith.")
			Expect(err).NotTo(HaveOccurred())
			_, err = eng.ProcessMessage(ctx, "user-1", "I love pizza.")
			Expect(err).NotTo(HaveOccurred())

			result, err := eng.ProcessMessage(ctx, "user-1", "The weather seems quite nice today.")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Stored).To(HaveLen(1))
			Expect(result.Pruned).To(HaveLen(1))
			Expect(result.Pruned[0].Text).To(Equal("the weather seems quite nice today."))

			all, err := eng.List(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
		})

		It("keeps user memory sets isolated", func() {
			_, err := eng.ProcessMessage(ctx, "user-1", "My name is John Smith.")
			Expect(err).NotTo(HaveOccurred())
			_, err = eng.ProcessMessage(ctx, "user-2", "I love pizza.")
			Expect(err).NotTo(HaveOccurred())

			one, err := eng.List(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(one).To(HaveLen(1))
			Expect(one[0].Text).To(Equal("my name is john smith."))

			two, err := eng.List(ctx, "user-2")
			Expect(err).NotTo(HaveOccurred())
			Expect(two).To(HaveLen(1))
			Expect(two[0].Text).To(Equal("i love pizza."))
		})

		It("serializes concurrent mutations for the same user", func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					_, err := eng.ProcessMessage(ctx, "user-1", "My name is John Smith.")
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			// One insert, seven merges.
			all, err := eng.List(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		Context("forget requests", func() {
			BeforeEach(func() {
				_, err := eng.ProcessMessage(ctx, "user-1", "I love pizza.")
				Expect(err).NotTo(HaveOccurred())
			})

			It("deletes the matching memory", func() {
				result, err := eng.ProcessMessage(ctx, "user-1", "Forget about pizza.")
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Deleted).To(HaveLen(1))
				Expect(result.Deleted[0].Text).To(Equal("i love pizza."))

				all, err := eng.List(ctx, "user-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(BeEmpty())
			})

			It("ignores a repeated forget request once the memory is gone", func() {
				_, err := eng.ProcessMessage(ctx, "user-1", "Forget about pizza.")
				Expect(err).NotTo(HaveOccurred())

				result, err := eng.ProcessMessage(ctx, "user-1", "Forget about pizza.")
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Deleted).To(BeEmpty())
				Expect(result.Ignored).To(Equal(1))
			})

			It("ignores a forget request that matches nothing", func() {
				embedder.Embeddings["my car"] = []float32{1, 0, 0}

				result, err := eng.ProcessMessage(ctx, "user-1", "Forget about my car.")
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Deleted).To(BeEmpty())
				Expect(result.Ignored).To(Equal(1))

				all, err := eng.List(ctx, "user-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(HaveLen(1))
			})
		})
	})

	Describe("RetrieveContext", func() {
		BeforeEach(func() {
			_, err := eng.ProcessMessage(ctx, "user-1", "My name is John Smith.")
			Expect(err).NotTo(HaveOccurred())
			_, err = eng.ProcessMessage(ctx, "user-1", "I love pizza.")
			Expect(err).NotTo(HaveOccurred())

			embedder.Embeddings["what food do I like?"] = []float32{0, 1, 0}
		})

		It("returns the most relevant memories first", func() {
			recalled, err := eng.RetrieveContext(ctx, "user-1", "what food do I like?", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(recalled).To(HaveLen(2))
			Expect(recalled[0].Text).To(Equal("i love pizza."))
		})

		It("truncates to k results", func() {
			recalled, err := eng.RetrieveContext(ctx, "user-1", "what food do I like?", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(recalled).To(HaveLen(1))
			Expect(recalled[0].Text).To(Equal("i love pizza."))
		})

		It("records the access on returned memories", func() {
			later := now.Add(2 * time.Hour)
			now = later

			recalled, err := eng.RetrieveContext(ctx, "user-1", "what food do I like?", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(recalled).To(HaveLen(1))
			Expect(recalled[0].AccessCount).To(Equal(1))
			Expect(recalled[0].LastAccessedAt).To(Equal(later))

			// The access sticks in storage.
			all, err := eng.List(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			for _, m := range all {
				if m.Text == "i love pizza." {
					Expect(m.AccessCount).To(Equal(1))
					Expect(m.LastAccessedAt).To(Equal(later))
				} else {
					Expect(m.AccessCount).To(BeZero())
				}
			}
		})

		It("returns nothing for a user with no memories", func() {
			recalled, err := eng.RetrieveContext(ctx, "nobody", "what food do I like?", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(recalled).To(BeEmpty())
		})
	})

	Describe("GenerateReply", func() {
		It("returns an error when no completer is configured", func() {
			_, err := eng.GenerateReply(ctx, "user-1", "Hello there, how are you?", 5)
			Expect(err).To(MatchError(agent.ErrNoCompleter))
		})

		It("feeds recalled memories to the completer as a system message", func() {
			completer := testutils.NewMockCompleter("Nice to meet you, John!")
			eng = newAgent(1000, agent.WithCompleter(completer))

			embedder.Embeddings["My name is John Smith."] = []float32{1, 0, 0}

			reply, err := eng.GenerateReply(ctx, "user-1", "My name is John Smith.", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("Nice to meet you, John!"))

			Expect(completer.Conversations).To(HaveLen(1))
			messages := completer.Conversations[0]
			Expect(messages).To(HaveLen(2))

			Expect(messages[0].Role).To(Equal(llm.RoleSystem))
			Expect(messages[0].Content).To(HavePrefix("Based on our previous conversations"))
			Expect(messages[0].Content).To(ContainSubstring("\n- my name is john smith."))

			Expect(messages[1].Role).To(Equal(llm.RoleUser))
			Expect(messages[1].Content).To(Equal("My name is John Smith."))
		})

		It("omits the system message when nothing is recalled", func() {
			completer := testutils.NewMockCompleter("Hello!")
			eng = newAgent(1000, agent.WithCompleter(completer))

			reply, err := eng.GenerateReply(ctx, "user-1", "Ok, thanks!", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("Hello!"))

			Expect(completer.Conversations).To(HaveLen(1))
			messages := completer.Conversations[0]
			Expect(messages).To(HaveLen(1))
			Expect(messages[0].Role).To(Equal(llm.RoleUser))
		})
	})

	Describe("Forget", func() {
		BeforeEach(func() {
			_, err := eng.ProcessMessage(ctx, "user-1", "I love pizza.")
			Expect(err).NotTo(HaveOccurred())
		})

		It("deletes the best match for a reference", func() {
			deleted, err := eng.Forget(ctx, "user-1", "pizza")
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).NotTo(BeNil())
			Expect(deleted.Text).To(Equal("i love pizza."))

			all, err := eng.List(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})

		It("returns no match for an unrelated reference", func() {
			embedder.Embeddings["my car"] = []float32{1, 0, 0}

			deleted, err := eng.Forget(ctx, "user-1", "my car")
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeNil())
		})
	})

	Describe("Delete", func() {
		It("removes one memory by id", func() {
			result, err := eng.ProcessMessage(ctx, "user-1", "My name is John Smith.")
			Expect(err).NotTo(HaveOccurred())
			id := result.Stored[0].Memory.ID

			Expect(eng.Delete(ctx, "user-1", id)).To(Succeed())

			all, err := eng.List(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})

		It("returns an error for an unknown id", func() {
			err := eng.Delete(ctx, "user-1", "no-such-id")
			Expect(err).To(HaveOccurred())
			Expect(strings.Contains(err.Error(), "not found")).To(BeTrue())
		})
	})

	Describe("StatsFor", func() {
		It("returns zeroes for a user with no memories", func() {
			stats, err := eng.StatsFor(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Total).To(BeZero())
			Expect(stats.Categories).To(BeEmpty())
		})

		It("summarizes the user's memory set", func() {
			_, err := eng.ProcessMessage(ctx, "user-1", "My name is John Smith.")
			Expect(err).NotTo(HaveOccurred())
			_, err = eng.ProcessMessage(ctx, "user-1", "I love pizza.")
			Expect(err).NotTo(HaveOccurred())

			embedder.Embeddings["what food do I like?"] = []float32{0, 1, 0}
			_, err = eng.RetrieveContext(ctx, "user-1", "what food do I like?", 1)
			Expect(err).NotTo(HaveOccurred())

			stats, err := eng.StatsFor(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Total).To(Equal(2))
			Expect(stats.AverageImportance).To(BeNumerically("~", 0.725, 1e-9))
			Expect(stats.Categories).To(Equal(map[string]int{"identity": 1, "preference": 1}))
			Expect(stats.MostAccessed).To(Equal("i love pizza."))
			Expect(stats.OldestCreatedAt).NotTo(BeNil())
			Expect(stats.NewestCreatedAt).NotTo(BeNil())
		})
	})

	Describe("event publishing", func() {
		It("emits a stored event on insert", func() {
			_, err := eng.ProcessMessage(ctx, "user-1", "My name is John Smith.")
			Expect(err).NotTo(HaveOccurred())

			events := publisher.EventsOfType(eventstream.EventTypeMemoryStored)
			Expect(events).To(HaveLen(1))
			Expect(events[0].UserID).To(Equal("user-1"))
			Expect(events[0].Text).To(Equal("my name is john smith."))
			Expect(events[0].Category).To(Equal("identity"))
			Expect(events[0].SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
			Expect(events[0].EventID).NotTo(BeEmpty())
		})

		It("emits a merged event carrying the absorbed text", func() {
			_, err := eng.ProcessMessage(ctx, "user-1", "My name is John Smith.")
			Expect(err).NotTo(HaveOccurred())
			_, err = eng.ProcessMessage(ctx, "user-1", "My name is John Smith.")
			Expect(err).NotTo(HaveOccurred())

			events := publisher.EventsOfType(eventstream.EventTypeMemoryMerged)
			Expect(events).To(HaveLen(1))
			Expect(events[0].MergedFromText).To(Equal("my name is john smith."))
		})

		It("emits pruned events for capacity evictions", func() {
			eng = newAgent(2)

			_, err := eng.ProcessMessage(ctx, "user-1", "My name is John Smith.")
			Expect(err).NotTo(HaveOccurred())
			_, err = eng.ProcessMessage(ctx, "user-1", "I love pizza.")
			Expect(err).NotTo(HaveOccurred())
			_, err = eng.ProcessMessage(ctx, "user-1", "The weather seems quite nice today.")
			Expect(err).NotTo(HaveOccurred())

			events := publisher.EventsOfType(eventstream.EventTypeMemoryPruned)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Text).To(Equal("the weather seems quite nice today."))
		})

		It("emits a deleted event on forget", func() {
			_, err := eng.ProcessMessage(ctx, "user-1", "I love pizza.")
			Expect(err).NotTo(HaveOccurred())
			_, err = eng.ProcessMessage(ctx, "user-1", "Forget about pizza.")
			Expect(err).NotTo(HaveOccurred())

			events := publisher.EventsOfType(eventstream.EventTypeMemoryDeleted)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Text).To(Equal("i love pizza."))
		})

		It("never fails the operation when publishing fails", func() {
			publisher.FailPublish = context.DeadlineExceeded

			result, err := eng.ProcessMessage(ctx, "user-1", "My name is John Smith.")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Stored).To(HaveLen(1))
		})
	})
})
