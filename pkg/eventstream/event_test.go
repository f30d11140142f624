package eventstream_test

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/engramdev/engram/pkg/eventstream"
	"github.com/engramdev/engram/pkg/memory"
)

func TestEventstream(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Eventstream Suite")
}

var _ = Describe("Event", func() {
	It("marshals MemoryEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.MemoryEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeMemoryStored,
			EventID:       "evt_123",
			EmittedAt:     now,
			UserID:        "user-1",
			MemoryID:      "mem-1",
			Text:          "My name is John.",
			Importance:    0.9,
			Category:      "identity",
		}

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("user_id"))
		Expect(got).To(HaveKey("memory_id"))
		Expect(got).NotTo(HaveKey("merged_from_text"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeMemoryStored).To(Equal("engram.memory.stored"))
		Expect(eventstream.EventTypeMemoryMerged).To(Equal("engram.memory.merged"))
		Expect(eventstream.EventTypeMemoryPruned).To(Equal("engram.memory.pruned"))
		Expect(eventstream.EventTypeMemoryDeleted).To(Equal("engram.memory.deleted"))
	})

	It("maps every lifecycle outcome to an event type", func() {
		Expect(eventstream.EventTypeFor(memory.OutcomeInserted)).To(Equal(eventstream.EventTypeMemoryStored))
		Expect(eventstream.EventTypeFor(memory.OutcomeMerged)).To(Equal(eventstream.EventTypeMemoryMerged))
		Expect(eventstream.EventTypeFor(memory.OutcomePruned)).To(Equal(eventstream.EventTypeMemoryPruned))
		Expect(eventstream.EventTypeFor(memory.OutcomeDeleted)).To(Equal(eventstream.EventTypeMemoryDeleted))
	})

	It("provides ErrNilMemoryEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilMemoryEvent).NotTo(BeNil())
		Expect(eventstream.ErrNilMemoryEvent).To(MatchError("nil memory event"))
	})
})
