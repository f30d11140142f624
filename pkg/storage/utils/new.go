// Package storageutils is the storage utility package
package storageutils

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/storage"
	"github.com/engramdev/engram/pkg/storage/inmemory"
	"github.com/engramdev/engram/pkg/storage/postgres"
	"github.com/engramdev/engram/pkg/storage/qdrant"
	"github.com/engramdev/engram/pkg/storage/sqlite"
)

const defaultQdrantCollection = "engram_memories"

type NewDriverOpts struct {
	ProviderType string

	// SQLitePath is the database file path for the sqlite provider.
	SQLitePath string

	// PostgresURL is the connection string for the postgres provider.
	PostgresURL string

	// QdrantTarget is the "host:port" of the Qdrant gRPC endpoint.
	QdrantTarget string

	// Dimensions is the embedding vector size, required by providers that
	// declare vector columns or collections up front.
	Dimensions uint
}

// NewDriver constructs the configured storage driver.
func NewDriver(ctx context.Context, o *NewDriverOpts, logger *zap.Logger) (storage.Driver, error) {
	switch o.ProviderType {
	case "inmemory":
		return inmemory.NewDriver(), nil

	case "sqlite":
		return sqlite.NewDriver(sqlite.Config{
			DBPath:     o.SQLitePath,
			Dimensions: o.Dimensions,
		}, logger)

	case "postgres":
		return postgres.NewDriver(ctx, o.PostgresURL, logger)

	case "qdrant":
		host, port, err := splitQdrantTarget(o.QdrantTarget)
		if err != nil {
			return nil, err
		}
		return qdrant.NewDriver(ctx, qdrant.Config{
			Host:       host,
			Port:       port,
			Collection: defaultQdrantCollection,
			Dimensions: int(o.Dimensions),
		}, logger)

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", o.ProviderType)
	}
}

func splitQdrantTarget(target string) (string, int, error) {
	if target == "" {
		return "", 0, fmt.Errorf("qdrant target is required")
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant target %q (want host:port): %w", target, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}

	return host, port, nil
}
