// Package statscmder provides the stats command for summarizing a user's
// memory set.
package statscmder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/cliui"
	"github.com/engramdev/engram/pkg/config"
	"github.com/engramdev/engram/pkg/logger"
	"github.com/engramdev/engram/pkg/runtime"
	"github.com/engramdev/engram/pkg/utils"
)

type statsCommander struct {
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

var statsFlagKeys = []string{
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgresURL,
	config.FlagQdrantTarget,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

const statsLongDesc string = `Summarize a user's memory set.

Shows the memory count, average importance, age range, category breakdown,
and the most-accessed memory.

Examples:
  engram stats
  engram stats --user alice`

const statsShortDesc string = "Summarize a user's memory set"

func NewStatsCmd() *cobra.Command {
	cmder := &statsCommander{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.cmd = cmd
			return cmder.run()
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

func (c *statsCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, c.cmd, config.DefaultFlagSet(), statsFlagKeys)
	cfg := config.FromViper(v)

	ctx := context.Background()
	rt, err := runtime.New(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	stats, err := rt.Agent.StatsFor(ctx, c.userID)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  %s %s\n\n", cliui.KeyStyle.Render("User:"), cliui.NameStyle.Render(c.userID))

	if stats.Total == 0 {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("No memories stored."))
		return nil
	}

	fmt.Printf("  %s  %d\n", cliui.KeyStyle.Render("Memories:          "), stats.Total)
	fmt.Printf("  %s  %.2f\n", cliui.KeyStyle.Render("Average importance:"), stats.AverageImportance)
	if stats.OldestCreatedAt != nil {
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Oldest:            "),
			cliui.ValueStyle.Render(stats.OldestCreatedAt.Format(time.RFC3339)))
	}
	if stats.NewestCreatedAt != nil {
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Newest:            "),
			cliui.ValueStyle.Render(stats.NewestCreatedAt.Format(time.RFC3339)))
	}
	if stats.MostAccessed != "" {
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Most accessed:     "),
			cliui.PreviewStyle.Render(utils.Truncate(stats.MostAccessed, 72)))
	}

	if len(stats.Categories) > 0 {
		fmt.Printf("\n  %s\n", cliui.KeyStyle.Render("Categories:"))

		categories := make([]string, 0, len(stats.Categories))
		for cat := range stats.Categories {
			categories = append(categories, cat)
		}
		sort.Strings(categories)

		for _, cat := range categories {
			fmt.Printf("    %s %s %d\n",
				cliui.RoleStyle.Render("["+cat+"]"),
				cliui.DimStyle.Render("×"),
				stats.Categories[cat],
			)
		}
	}

	fmt.Println()
	return nil
}
