// Package recallcmder provides the recall command for retrieving relevant
// memories from the CLI.
package recallcmder

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

type recallCommander struct {
	userID string
	topK   int

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

var recallFlagKeys = []string{
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgresURL,
	config.FlagQdrantTarget,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

const recallLongDesc string = `Retrieve memories relevant to a query.

Memories are ranked by a blend of semantic similarity, importance, and
recency; recalled memories get their access count bumped, which makes them
more resistant to pruning.

Examples:
  engram recall "what food do I like?"
  engram recall --user alice --top-k 3 "allergies"`

const recallShortDesc string = "Retrieve memories relevant to a query"

func NewRecallCmd() *cobra.Command {
	cmder := &recallCommander{}

	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: recallShortDesc,
		Long:  recallLongDesc,
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
	cmd.Flags().IntVarP(&cmder.topK, "top-k", "k", 5, "Number of memories to return")

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

func (c *recallCommander) run(query string) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, c.cmd, config.DefaultFlagSet(), recallFlagKeys)
	cfg := config.FromViper(v)

	ctx := context.Background()
	rt, err := runtime.New(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	memories, err := rt.Agent.RetrieveContext(ctx, c.userID, query, c.topK)
	if err != nil {
		return err
	}

	fmt.Println()
	if len(memories) == 0 {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("No relevant memories."))
		return nil
	}

	for i, m := range memories {
		fmt.Printf("  %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%d.", i+1)),
			cliui.PreviewStyle.Render(m.Text),
		)
		fmt.Printf("     %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%s · importance %.2f · accessed %d times",
				m.Category, m.Importance, m.AccessCount)),
		)
	}
	fmt.Println()

	return nil
}
