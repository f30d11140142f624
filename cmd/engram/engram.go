// Package engramcmder
package engramcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/engramdev/engram/cmd/engram/chat"
	configcmder "github.com/engramdev/engram/cmd/engram/config"
	forgetcmder "github.com/engramdev/engram/cmd/engram/forget"
	initcmder "github.com/engramdev/engram/cmd/engram/init"
	recallcmder "github.com/engramdev/engram/cmd/engram/recall"
	remembercmder "github.com/engramdev/engram/cmd/engram/remember"
	servecmder "github.com/engramdev/engram/cmd/engram/serve"
	statscmder "github.com/engramdev/engram/cmd/engram/stats"
	statuscmder "github.com/engramdev/engram/cmd/engram/status"
	versioncmder "github.com/engramdev/engram/cmd/version"
)

const engramLongDesc string = `Engram is a memory lifecycle and retrieval engine for conversational agents.

Run the server using:
  engram serve         Run the API and MCP server

Work with memories directly:
  engram remember      Process a message for memory effects
  engram recall        Retrieve memories relevant to a query
  engram forget        Delete the memory matching a reference
  engram chat          Interactive memory-aware chat
  engram stats         Summarize a user's memory set`

const engramShortDesc string = "Engram - Agent Memory"

func NewEngramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engram",
		Short: engramShortDesc,
		Long:  engramLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .engram/ directory location")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(remembercmder.NewRememberCmd())
	cmd.AddCommand(recallcmder.NewRecallCmd())
	cmd.AddCommand(forgetcmder.NewForgetCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
