// Package servecmder provides the serve command that runs the engram API
// and MCP server over the configured memory engine.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/engramdev/engram/api"
	apimcp "github.com/engramdev/engram/api/mcp"
	"github.com/engramdev/engram/pkg/config"
	"github.com/engramdev/engram/pkg/dotdir"
	"github.com/engramdev/engram/pkg/logger"
	"github.com/engramdev/engram/pkg/runtime"
	"github.com/engramdev/engram/pkg/start"
)

type ServeCommander struct {
	listen            string
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
	eventsProvider    string
	eventsTopic       string

	debug     bool
	configDir string
	cmd       *cobra.Command
	logger    *zap.Logger
}

// serveFlagKeys lists the registry keys serve binds into the viper chain.
var serveFlagKeys = []string{
	config.FlagAPIListen,
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
	config.FlagEventsProvider,
	config.FlagEventsTopic,
}

const serveLongDesc string = `Run the engram memory server.

Starts the HTTP API server with the MCP endpoint mounted at /mcp. Settings
resolve with the usual precedence: CLI flags, then ENGRAM_* environment
variables, then config.toml in the .engram/ directory, then defaults.

The server watches config.toml and restarts its runtime when the file
changes, so configuration edits apply without bouncing the process.

Examples:
  engram serve
  engram serve --listen :9090 --storage-provider sqlite --sqlite memories.db
  engram serve --events-provider kafka --events-topic engram.memory`

const serveShortDesc string = "Run the engram memory server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.cmd = cmd
			return cmder.run()
		},
	}

	fs := config.DefaultFlagSet()
	config.AddStringFlag(cmd, fs, config.FlagAPIListen, &cmder.listen)
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
	config.AddStringFlag(cmd, fs, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, fs, config.FlagEventsTopic, &cmder.eventsTopic)

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	for {
		restart, err := c.runOnce()
		if err != nil {
			return err
		}
		if !restart {
			return nil
		}
		c.logger.Info("configuration changed, restarting runtime")
	}
}

// runOnce builds the runtime and servers from the current configuration and
// blocks until an error, a shutdown signal, or a config change. It reports
// whether serve should rebuild and go again.
func (c *ServeCommander) runOnce() (bool, error) {
	v, err := config.InitViper(c.configDir)
	if err != nil {
		return false, err
	}
	config.BindRegisteredFlags(v, c.cmd, config.DefaultFlagSet(), serveFlagKeys)
	cfg := config.FromViper(v)

	rt, err := runtime.New(context.Background(), cfg, c.logger)
	if err != nil {
		return false, err
	}
	defer rt.Close()

	mcpServer, err := apimcp.NewServer(apimcp.Config{
		Agent:  rt.Agent,
		Logger: c.logger,
	})
	if err != nil {
		return false, fmt.Errorf("creating MCP server: %w", err)
	}

	apiServer := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
	}, rt.Agent, mcpServer.Handler(), c.logger)

	c.logger.Info("starting engram server",
		zap.String("listen", cfg.API.Listen),
		zap.String("storage", cfg.Storage.Provider),
		zap.String("embedding", cfg.Embedding.Provider),
		zap.String("events", cfg.Events.Provider),
	)

	c.recordRunState(cfg)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	reloadChan, stopWatch, err := c.watchConfig()
	if err != nil {
		c.logger.Warn("config watch unavailable", zap.Error(err))
	}
	if stopWatch != nil {
		defer stopWatch()
	}

	// Wait for interrupt signal, error, or config change
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		c.clearRunState()
		return false, err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		c.clearRunState()
		return false, apiServer.Shutdown()
	case <-reloadChan:
		if err := apiServer.Shutdown(); err != nil {
			c.clearRunState()
			return false, err
		}
		return true, nil
	}
}

// recordRunState persists the serve process info so "engram status" can
// report it. Best-effort: failures are logged, never fatal.
func (c *ServeCommander) recordRunState(cfg *config.Config) {
	manager, err := start.NewManager(c.configDir)
	if err != nil {
		c.logger.Warn("could not record run state", zap.Error(err))
		return
	}

	err = manager.SaveState(&start.State{
		PID:             os.Getpid(),
		APIURL:          cfg.API.Listen,
		StorageProvider: cfg.Storage.Provider,
		StartedAt:       time.Now(),
	})
	if err != nil {
		c.logger.Warn("could not record run state", zap.Error(err))
	}
}

func (c *ServeCommander) clearRunState() {
	manager, err := start.NewManager(c.configDir)
	if err != nil {
		return
	}
	_ = manager.ClearState()
}

// watchConfig watches the resolved .engram/ directory for changes to
// config.toml. The watcher fires at most one pending reload at a time.
func (c *ServeCommander) watchConfig() (<-chan struct{}, func(), error) {
	dir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return nil, nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, nil, err
	}

	reload := make(chan struct{}, 1)

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != "config.toml" {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}
				select {
				case reload <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Warn("config watcher error", zap.Error(err))
			}
		}
	}()

	return reload, func() { _ = watcher.Close() }, nil
}
