// Package runtime assembles a memory engine from a resolved configuration.
// It is the single place that maps config sections onto concrete providers,
// shared by the serve command and the one-shot CLI commands.
package runtime

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/agent"
	"github.com/engramdev/engram/pkg/config"
	embeddingutils "github.com/engramdev/engram/pkg/embeddings/utils"
	"github.com/engramdev/engram/pkg/eventstream"
	"github.com/engramdev/engram/pkg/eventstream/kafka"
	"github.com/engramdev/engram/pkg/eventstream/nop"
	llmutils "github.com/engramdev/engram/pkg/llm/utils"
	"github.com/engramdev/engram/pkg/memory"
	"github.com/engramdev/engram/pkg/storage"
	storageutils "github.com/engramdev/engram/pkg/storage/utils"
)

// apiKeyEnv is consulted for providers that need an API key (e.g. openai).
const apiKeyEnv = "OPENAI_API_KEY"

// Runtime bundles the engine with the resources it owns.
type Runtime struct {
	Agent *agent.Agent

	driver    storage.Driver
	publisher eventstream.Publisher
}

// New builds a runtime from the resolved config: storage driver, embedder,
// optional completer, event publisher, and the agent over all of them.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	driver, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{
		ProviderType: cfg.Storage.Provider,
		SQLitePath:   cfg.Storage.SQLitePath,
		PostgresURL:  cfg.Storage.PostgresURL,
		QdrantTarget: cfg.Storage.QdrantTarget,
		Dimensions:   cfg.Embedding.Dimensions,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating storage driver: %w", err)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       os.Getenv(apiKeyEnv),
	})
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	opts := []agent.Option{agent.WithPublisher(publisher)}

	// The completer is optional: "none" disables reply generation, and the
	// rest of the engine keeps working without it.
	if cfg.LLM.Provider != "" && cfg.LLM.Provider != "none" {
		completer, err := llmutils.NewCompleter(&llmutils.NewCompleterOpts{
			ProviderType: cfg.LLM.Provider,
			TargetURL:    cfg.LLM.Target,
			Model:        cfg.LLM.Model,
			APIKey:       os.Getenv(apiKeyEnv),
		})
		if err != nil {
			publisher.Close()
			driver.Close()
			return nil, fmt.Errorf("creating completer: %w", err)
		}
		opts = append(opts, agent.WithCompleter(completer))
	}

	eng := agent.New(driver, embedder, AgentConfig(cfg), logger, opts...)

	return &Runtime{
		Agent:     eng,
		driver:    driver,
		publisher: publisher,
	}, nil
}

// AgentConfig maps the memory policy section onto the agent's component configs.
func AgentConfig(cfg *config.Config) agent.Config {
	return agent.Config{
		Analyzer: memory.AnalyzerConfig{
			MinImportance: cfg.Memory.MinImportance,
		},
		Store: agent.StoreConfig{
			MergeThreshold: cfg.Memory.MergeThreshold,
		},
		Ranker: agent.RankerConfig{
			SimilarityWeight: cfg.Memory.SimilarityWeight,
			ImportanceWeight: cfg.Memory.ImportanceWeight,
			RecencyWeight:    cfg.Memory.RecencyWeight,
			DecayRate:        cfg.Memory.DecayRate,
			MinRelevance:     cfg.Memory.MinRelevance,
		},
		Lifecycle: agent.LifecycleConfig{
			MaxCapacity:            cfg.Memory.MaxCapacity,
			DecayRate:              cfg.Memory.DecayRate,
			DeletionMatchThreshold: cfg.Memory.DeletionMatchThreshold,
		},
	}
}

func newPublisher(cfg *config.Config) (eventstream.Publisher, error) {
	switch cfg.Events.Provider {
	case "", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
		})
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", cfg.Events.Provider)
	}
}

// Close releases the runtime's resources.
func (r *Runtime) Close() error {
	if err := r.publisher.Close(); err != nil {
		_ = r.driver.Close()
		return err
	}
	return r.driver.Close()
}
