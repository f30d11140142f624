// Package forgetcmder provides the forget command for deleting the memory
// that best matches a reference.
package forgetcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/cliui"
	"github.com/engramdev/engram/pkg/config"
	"github.com/engramdev/engram/pkg/logger"
	"github.com/engramdev/engram/pkg/runtime"
)

type forgetCommander struct {
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

var forgetFlagKeys = []string{
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgresURL,
	config.FlagQdrantTarget,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

const forgetLongDesc string = `Delete the stored memory that best matches a reference.

The reference is matched semantically against the user's memories. When
nothing matches closely enough no memory is deleted, which is a normal
result; repeating a forget is harmless.

Examples:
  engram forget "my favorite pizza"
  engram forget --user alice "the peanut allergy"`

const forgetShortDesc string = "Delete the memory matching a reference"

func NewForgetCmd() *cobra.Command {
	cmder := &forgetCommander{}

	cmd := &cobra.Command{
		Use:   "forget <reference>",
		Short: forgetShortDesc,
		Long:  forgetLongDesc,
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

func (c *forgetCommander) run(reference string) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, c.cmd, config.DefaultFlagSet(), forgetFlagKeys)
	cfg := config.FromViper(v)

	ctx := context.Background()
	rt, err := runtime.New(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	deleted, err := rt.Agent.Forget(ctx, c.userID, reference)
	if err != nil {
		return err
	}

	fmt.Println()
	if deleted == nil {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("No memory matched that reference."))
		return nil
	}

	fmt.Printf("  %s Forgot %s\n\n", cliui.SuccessMark, cliui.PreviewStyle.Render(deleted.Text))
	return nil
}
