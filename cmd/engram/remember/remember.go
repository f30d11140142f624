// Package remembercmder provides the remember command for processing a
// message's memory effects from the CLI.
package remembercmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/cliui"
	"github.com/engramdev/engram/pkg/config"
	"github.com/engramdev/engram/pkg/logger"
	"github.com/engramdev/engram/pkg/memory"
	"github.com/engramdev/engram/pkg/runtime"
)

type rememberCommander struct {
	userID string

	storageProvider   string
	sqlitePath        string
	postgresURL       string
	qdrantTarget      string
	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint

	debug     bool
	configDir string
	cmd       *cobra.Command
	logger    *zap.Logger
}

var rememberFlagKeys = []string{
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgresURL,
	config.FlagQdrantTarget,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

const rememberLongDesc string = `Process a message for memory effects.

Statements worth keeping are stored as durable memories (or merged into
semantically-equivalent ones), forget requests delete matching memories,
and conversational filler is ignored.

Examples:
  engram remember "My name is Ada and I love climbing."
  engram remember --user alice "I'm allergic to peanuts."`

const rememberShortDesc string = "Process a message for memory effects"

func NewRememberCmd() *cobra.Command {
	cmder := &rememberCommander{}

	cmd := &cobra.Command{
		Use:   "remember <text>",
		Short: rememberShortDesc,
		Long:  rememberLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.cmd = cmd
			return cmder.run(args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.userID, "user", "u", "default", "User identity the memories belong to")

	fs := config.DefaultFlagSet()
	config.AddStringFlag(cmd, fs, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagPostgresURL, &cmder.postgresURL)
	config.AddStringFlag(cmd, fs, config.FlagQdrantTarget, &cmder.qdrantTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, fs, config.FlagEmbeddingDims, &cmder.embeddingDims)

	return cmd
}

func (c *rememberCommander) run(text string) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, c.cmd, config.DefaultFlagSet(), rememberFlagKeys)
	cfg := config.FromViper(v)

	ctx := context.Background()
	rt, err := runtime.New(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.Agent.ProcessMessage(ctx, c.userID, text)
	if err != nil {
		return err
	}

	fmt.Println()
	for _, sm := range result.Stored {
		verb := "Stored"
		if sm.Outcome == memory.OutcomeMerged {
			verb = "Merged"
		}
		fmt.Printf("  %s %s %s %s\n",
			cliui.SuccessMark,
			verb,
			cliui.RoleStyle.Render("["+sm.Memory.Category+"]"),
			cliui.PreviewStyle.Render(sm.Memory.Text),
		)
	}
	for _, m := range result.Deleted {
		fmt.Printf("  %s Forgot %s\n", cliui.SuccessMark, cliui.PreviewStyle.Render(m.Text))
	}
	for _, m := range result.Pruned {
		fmt.Printf("  %s Pruned %s\n", cliui.DimStyle.Render("●"), cliui.DimStyle.Render(m.Text))
	}
	if len(result.Stored) == 0 && len(result.Deleted) == 0 {
		fmt.Printf("  %s\n", cliui.DimStyle.Render("Nothing worth remembering in that message."))
	}
	fmt.Println()

	return nil
}
