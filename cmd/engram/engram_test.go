package engramcmder_test

import (
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	engramcmder "github.com/engramdev/engram/cmd/engram"
)

func TestEngramCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Engram Command Suite")
}

var _ = Describe("NewEngramCmd", func() {
	It("creates the root command", func() {
		cmd := engramcmder.NewEngramCmd()
		Expect(cmd.Use).To(Equal("engram"))
	})

	It("registers all subcommands", func() {
		cmd := engramcmder.NewEngramCmd()
		cmds := cmd.Commands()
		names := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements(
			"serve", "chat", "remember", "recall", "forget",
			"stats", "status", "init", "config", "version",
		))
	})

	It("has the global debug and config-dir flags", func() {
		cmd := engramcmder.NewEngramCmd()

		debug := cmd.PersistentFlags().Lookup("debug")
		Expect(debug).NotTo(BeNil())
		Expect(debug.Shorthand).To(Equal("d"))

		configDir := cmd.PersistentFlags().Lookup("config-dir")
		Expect(configDir).NotTo(BeNil())
	})

	It("runs status against an isolated config dir", func() {
		tmpDir, err := os.MkdirTemp("", "engram-status-test-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(tmpDir)

		cmd := engramcmder.NewEngramCmd()
		cmd.SetArgs([]string{"status", "--config-dir", tmpDir})
		Expect(cmd.Execute()).To(Succeed())
	})

	It("runs version", func() {
		cmd := engramcmder.NewEngramCmd()
		cmd.SetArgs([]string{"version"})
		Expect(cmd.Execute()).To(Succeed())
	})
})
