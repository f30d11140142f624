package memory_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/engramdev/engram/pkg/memory"
)

var _ = Describe("ClampImportance", func() {
	It("bounds scores to the unit interval", func() {
		Expect(memory.ClampImportance(-0.5)).To(Equal(0.0))
		Expect(memory.ClampImportance(0.0)).To(Equal(0.0))
		Expect(memory.ClampImportance(0.42)).To(Equal(0.42))
		Expect(memory.ClampImportance(1.0)).To(Equal(1.0))
		Expect(memory.ClampImportance(1.5)).To(Equal(1.0))
	})
})

var _ = Describe("AgeDays", func() {
	It("returns fractional days between two timestamps", func() {
		now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

		Expect(memory.AgeDays(now.Add(-24*time.Hour), now)).To(BeNumerically("~", 1.0, 1e-9))
		Expect(memory.AgeDays(now.Add(-36*time.Hour), now)).To(BeNumerically("~", 1.5, 1e-9))
	})

	It("returns zero for timestamps at or after now", func() {
		now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

		Expect(memory.AgeDays(now, now)).To(Equal(0.0))
		Expect(memory.AgeDays(now.Add(time.Hour), now)).To(Equal(0.0))
	})
})
