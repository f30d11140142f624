// Package qdrant provides a storage driver backed by a Qdrant vector
// database. Memories are points in a single collection; the record fields
// travel in the point payload and the embedding is the point vector, so
// nearest-neighbor retrieval runs server-side.
package qdrant

import (
	"context"
	"fmt"
	"time"

	qd "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/memory"
	"github.com/engramdev/engram/pkg/storage"
)

// Config holds connection settings for the Qdrant driver.
type Config struct {
	Host       string
	Port       int
	Collection string
	Dimensions int
}

// Driver implements storage.Driver and storage.Searcher against Qdrant.
type Driver struct {
	client     *qd.Client
	collection string
	logger     *zap.Logger
}

// NewDriver connects to Qdrant and ensures the memory collection exists.
func NewDriver(ctx context.Context, c Config, logger *zap.Logger) (*Driver, error) {
	client, err := qd.NewClient(&qd.Config{
		Host: c.Host,
		Port: c.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	exists, err := client.CollectionExists(ctx, c.Collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		err = client.CreateCollection(ctx, &qd.CreateCollection{
			CollectionName: c.Collection,
			VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qd.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to create collection: %w", err)
		}
	}

	logger.Info("qdrant storage driver initialized",
		zap.String("collection", c.Collection))

	return &Driver{
		client:     client,
		collection: c.Collection,
		logger:     logger,
	}, nil
}

// Put persists a new memory record.
func (d *Driver) Put(ctx context.Context, m *memory.Memory) error {
	return d.upsert(ctx, m)
}

// Update replaces the stored record with the same ID.
func (d *Driver) Update(ctx context.Context, m *memory.Memory) error {
	// Qdrant upserts unconditionally, so verify existence to keep the
	// driver contract.
	if _, err := d.Get(ctx, m.UserID, m.ID); err != nil {
		return err
	}
	return d.upsert(ctx, m)
}

func (d *Driver) upsert(ctx context.Context, m *memory.Memory) error {
	_, err := d.client.Upsert(ctx, &qd.UpsertPoints{
		CollectionName: d.collection,
		Points: []*qd.PointStruct{
			{
				Id:      qd.NewIDUUID(m.ID),
				Vectors: qd.NewVectors(m.Embedding...),
				Payload: qd.NewValueMap(map[string]any{
					"user_id":          m.UserID,
					"text":             m.Text,
					"importance":       m.Importance,
					"category":         m.Category,
					"created_at":       m.CreatedAt.UTC().Format(time.RFC3339Nano),
					"last_accessed_at": m.LastAccessedAt.UTC().Format(time.RFC3339Nano),
					"access_count":     int64(m.AccessCount),
				}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upserting memory %s: %w", m.ID, err)
	}
	return nil
}

// Get retrieves one memory by owner and id.
func (d *Driver) Get(ctx context.Context, userID, id string) (*memory.Memory, error) {
	points, err := d.client.Get(ctx, &qd.GetPoints{
		CollectionName: d.collection,
		Ids:            []*qd.PointId{qd.NewIDUUID(id)},
		WithPayload:    qd.NewWithPayload(true),
		WithVectors:    qd.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving memory %s: %w", id, err)
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound{UserID: userID, ID: id}
	}

	m := pointToMemory(points[0].Id, points[0].Payload, points[0].Vectors)
	if m.UserID != userID {
		return nil, storage.ErrNotFound{UserID: userID, ID: id}
	}
	return m, nil
}

// List returns all memories owned by a user.
func (d *Driver) List(ctx context.Context, userID string) ([]*memory.Memory, error) {
	var memories []*memory.Memory
	var offset *qd.PointId

	for {
		resp, err := d.client.Scroll(ctx, &qd.ScrollPoints{
			CollectionName: d.collection,
			Filter:         userFilter(userID),
			Limit:          qd.PtrOf(uint32(256)),
			Offset:         offset,
			WithPayload:    qd.NewWithPayload(true),
			WithVectors:    qd.NewWithVectors(true),
		})
		if err != nil {
			return nil, fmt.Errorf("listing memories: %w", err)
		}
		for _, p := range resp {
			memories = append(memories, pointToMemory(p.Id, p.Payload, p.Vectors))
		}
		if len(resp) < 256 {
			break
		}
		offset = resp[len(resp)-1].Id
	}

	return memories, nil
}

// Delete removes one memory by owner and id.
func (d *Driver) Delete(ctx context.Context, userID, id string) error {
	if _, err := d.Get(ctx, userID, id); err != nil {
		return err
	}

	_, err := d.client.Delete(ctx, &qd.DeletePoints{
		CollectionName: d.collection,
		Points:         qd.NewPointsSelector(qd.NewIDUUID(id)),
	})
	if err != nil {
		return fmt.Errorf("deleting memory %s: %w", id, err)
	}
	return nil
}

// Count returns the number of memories owned by a user.
func (d *Driver) Count(ctx context.Context, userID string) (int, error) {
	count, err := d.client.Count(ctx, &qd.CountPoints{
		CollectionName: d.collection,
		Filter:         userFilter(userID),
	})
	if err != nil {
		return 0, fmt.Errorf("counting memories: %w", err)
	}
	return int(count), nil
}

// MostSimilar runs a server-side nearest-neighbor query scoped to the user.
func (d *Driver) MostSimilar(ctx context.Context, userID string, embedding []float32, k int) ([]storage.Match, error) {
	points, err := d.client.Query(ctx, &qd.QueryPoints{
		CollectionName: d.collection,
		Query:          qd.NewQuery(embedding...),
		Filter:         userFilter(userID),
		Limit:          qd.PtrOf(uint64(k)),
		WithPayload:    qd.NewWithPayload(true),
		WithVectors:    qd.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying similar memories: %w", err)
	}

	matches := make([]storage.Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, storage.Match{
			Memory: pointToMemory(p.Id, p.Payload, p.Vectors),
			Score:  float64(p.Score),
		})
	}
	return matches, nil
}

// Close shuts down the client connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

func userFilter(userID string) *qd.Filter {
	return &qd.Filter{
		Must: []*qd.Condition{
			qd.NewMatch("user_id", userID),
		},
	}
}

func pointToMemory(id *qd.PointId, payload map[string]*qd.Value, vectors *qd.VectorsOutput) *memory.Memory {
	m := &memory.Memory{
		ID:          id.GetUuid(),
		UserID:      payload["user_id"].GetStringValue(),
		Text:        payload["text"].GetStringValue(),
		Importance:  payload["importance"].GetDoubleValue(),
		Category:    payload["category"].GetStringValue(),
		AccessCount: int(payload["access_count"].GetIntegerValue()),
	}
	if t, err := time.Parse(time.RFC3339Nano, payload["created_at"].GetStringValue()); err == nil {
		m.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, payload["last_accessed_at"].GetStringValue()); err == nil {
		m.LastAccessedAt = t
	}
	if v := vectors.GetVector(); v != nil {
		m.Embedding = v.GetData()
	}
	return m
}

var (
	_ storage.Driver   = (*Driver)(nil)
	_ storage.Searcher = (*Driver)(nil)
)
