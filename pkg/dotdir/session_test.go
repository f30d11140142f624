package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/engramdev/engram/pkg/dotdir"
)

var _ = Describe("dotdir.Manager session", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadSessionState", func() {
		It("returns nil when no session file exists", func() {
			state, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("loads a valid session state", func() {
			data := `{"user_id":"alice","messages":[{"role":"user","content":"hello"},{"role":"assistant","content":"hi there"}]}`
			err := os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			state, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).NotTo(BeNil())
			Expect(state.UserID).To(Equal("alice"))
			Expect(state.Messages).To(HaveLen(2))
			Expect(state.Messages[0].Role).To(Equal("user"))
			Expect(state.Messages[0].Content).To(Equal("hello"))
			Expect(state.Messages[1].Role).To(Equal("assistant"))
			Expect(state.Messages[1].Content).To(Equal("hi there"))
		})

		It("returns error for invalid JSON", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte("not json"), 0o600)
			Expect(err).NotTo(HaveOccurred())

			state, err := m.LoadSessionState(tmpDir)
			Expect(err).To(HaveOccurred())
			Expect(state).To(BeNil())
		})
	})

	Describe("SaveSession", func() {
		It("persists session state to disk", func() {
			state := &dotdir.SessionState{
				UserID: "alice",
				Messages: []dotdir.SessionMessage{
					{Role: "user", Content: "My name is John."},
					{Role: "assistant", Content: "Nice to meet you, John."},
				},
			}

			err := m.SaveSession(state, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = os.Stat(filepath.Join(tmpDir, "session.json"))
			Expect(err).NotTo(HaveOccurred())

			loaded, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.UserID).To(Equal("alice"))
			Expect(loaded.Messages).To(HaveLen(2))
		})

		It("returns error for nil state", func() {
			err := m.SaveSession(nil, tmpDir)
			Expect(err).To(HaveOccurred())
		})

		It("overwrites existing session state", func() {
			first := &dotdir.SessionState{
				UserID:   "first",
				Messages: []dotdir.SessionMessage{{Role: "user", Content: "first message"}},
			}
			second := &dotdir.SessionState{
				UserID:   "second",
				Messages: []dotdir.SessionMessage{{Role: "user", Content: "second message"}},
			}

			err := m.SaveSession(first, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = m.SaveSession(second, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.UserID).To(Equal("second"))
		})
	})

	Describe("ClearSession", func() {
		It("removes the session file", func() {
			state := &dotdir.SessionState{UserID: "to-clear", Messages: []dotdir.SessionMessage{}}
			err := m.SaveSession(state, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = m.ClearSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeNil())
		})

		It("succeeds when no session file exists", func() {
			err := m.ClearSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("round-trip", func() {
		It("saves and loads session state correctly", func() {
			state := &dotdir.SessionState{
				UserID: "alice",
				Messages: []dotdir.SessionMessage{
					{Role: "system", Content: "You are a helpful assistant."},
					{Role: "user", Content: "Hello!"},
					{Role: "assistant", Content: "Hi! How can I help?"},
					{Role: "user", Content: "I love hiking in the mountains."},
					{Role: "assistant", Content: "Noted, I'll remember that."},
				},
			}

			err := m.SaveSession(state, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(state))
		})
	})
})
