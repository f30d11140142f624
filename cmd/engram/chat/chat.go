// Package chatcmder provides the chat command for interactive memory-aware
// conversation with the configured LLM.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/agent"
	"github.com/engramdev/engram/pkg/cliui"
	"github.com/engramdev/engram/pkg/config"
	"github.com/engramdev/engram/pkg/dotdir"
	"github.com/engramdev/engram/pkg/logger"
	"github.com/engramdev/engram/pkg/runtime"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
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
	llmProvider       string
	llmTarget         string
	llmModel          string

	debug     bool
	configDir string
	cmd       *cobra.Command
	logger    *zap.Logger
}

var chatFlagKeys = []string{
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgresURL,
	config.FlagQdrantTarget,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagLLMProv,
	config.FlagLLMTgt,
	config.FlagLLMModel,
}

const chatLongDesc string = `Start an interactive memory-aware chat session.

Each message is processed for memory effects (statements worth keeping are
stored, forget requests delete), relevant memories are recalled, and the
configured LLM generates a reply grounded in them.

The conversation is persisted to .engram/session.json and resumes on the
next invocation. Pass --user to switch identities; memories are always
scoped per user.

Examples:
  engram chat
  engram chat --user alice --llm-model llama3.2`

const chatShortDesc string = "Interactive memory-aware chat"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
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
	cmd.Flags().IntVarP(&cmder.topK, "top-k", "k", 5, "Number of memories to recall per message")

	fs := config.DefaultFlagSet()
	config.AddStringFlag(cmd, fs, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagPostgresURL, &cmder.postgresURL)
	config.AddStringFlag(cmd, fs, config.FlagQdrantTarget, &cmder.qdrantTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, fs, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, fs, config.FlagLLMProv, &cmder.llmProvider)
	config.AddStringFlag(cmd, fs, config.FlagLLMTgt, &cmder.llmTarget)
	config.AddStringFlag(cmd, fs, config.FlagLLMModel, &cmder.llmModel)

	return cmd
}

func (c *chatCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, c.cmd, config.DefaultFlagSet(), chatFlagKeys)
	cfg := config.FromViper(v)

	ctx := context.Background()
	rt, err := runtime.New(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Load persisted session
	ddm := dotdir.NewManager()
	session, err := ddm.LoadSessionState(c.configDir)
	if err != nil {
		return fmt.Errorf("loading session state: %w", err)
	}

	fmt.Println()
	if session != nil && session.UserID == c.userID {
		fmt.Printf("  %s Resuming session %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(session.Messages))),
		)
	} else {
		if session != nil {
			// Switching identities abandons the stored conversation.
			if err := ddm.ClearSession(c.configDir); err != nil {
				return fmt.Errorf("clearing session state: %w", err)
			}
		}
		session = &dotdir.SessionState{UserID: c.userID}
		fmt.Printf("  %s New conversation\n", cliui.DimStyle.Render("●"))
	}

	fmt.Printf("  %s %s\n",
		cliui.KeyStyle.Render("User:"),
		cliui.NameStyle.Render(c.userID),
	)
	fmt.Printf("  %s %s\n\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.NameStyle.Render(cfg.LLM.Model),
	)
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		reply, err := rt.Agent.GenerateReply(ctx, c.userID, input, c.topK)
		if err != nil {
			if errors.Is(err, agent.ErrNoCompleter) {
				return fmt.Errorf("no LLM provider configured; set llm.provider or pass --llm-provider")
			}
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			continue
		}

		fmt.Print(assistantPrompt)
		rendered, err := cliui.RenderMarkdown(reply)
		if err != nil {
			fmt.Println(reply)
		} else {
			fmt.Print(rendered)
		}

		session.Messages = append(session.Messages,
			dotdir.SessionMessage{Role: "user", Content: input},
			dotdir.SessionMessage{Role: "assistant", Content: reply},
		)
		if err := ddm.SaveSession(session, c.configDir); err != nil {
			c.logger.Warn("could not persist session", zap.Error(err))
		}

		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}
