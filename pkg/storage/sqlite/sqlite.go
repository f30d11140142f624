// Package sqlite provides a SQLite-backed storage driver using sqlite-vec
// for native nearest-neighbor search.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/memory"
	"github.com/engramdev/engram/pkg/storage"
)

// Driver implements storage.Driver (and storage.Searcher) using SQLite
// with the sqlite-vec extension.
type Driver struct {
	db     *sql.DB
	logger *zap.Logger
}

// Config holds configuration for the SQLite driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the embedding vector size. Must match the configured
	// embedding model.
	Dimensions uint
}

// NewDriver creates a SQLite storage driver backed by sqlite-vec.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	// enable connections to have the sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// The memories table carries the record fields. vec0 virtual tables use
	// integer rowids, so the embedding lives in a sibling vec0 table keyed
	// by the same rowid.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS memories (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			mem_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			text TEXT NOT NULL,
			importance REAL NOT NULL DEFAULT 0.5,
			category TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			last_accessed_at TIMESTAMP NOT NULL,
			access_count INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating memories table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_memories_user_id ON memories(user_id)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating user index: %w", err)
	}

	// distance_metric=cosine keeps vec0 on the same metric the engine's
	// linear-scan fallback uses.
	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS mem_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite storage driver initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Driver{db: db, logger: logger}, nil
}

// serializeFloat32 converts a float32 slice to the little-endian BLOB
// format sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Put persists a new memory record and its embedding.
func (d *Driver) Put(ctx context.Context, m *memory.Memory) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO memories (mem_id, user_id, text, importance, category, created_at, last_accessed_at, access_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.Text, m.Importance, m.Category, m.CreatedAt, m.LastAccessedAt, m.AccessCount)
	if err != nil {
		return fmt.Errorf("inserting memory %s: %w", m.ID, err)
	}

	rowID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting rowid for memory %s: %w", m.ID, err)
	}

	if len(m.Embedding) > 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mem_embeddings(rowid, embedding) VALUES (?, ?)`,
			rowID, serializeFloat32(m.Embedding),
		); err != nil {
			return fmt.Errorf("inserting embedding for memory %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Get retrieves one memory by owner and id.
func (d *Driver) Get(ctx context.Context, userID, id string) (*memory.Memory, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT rowid, mem_id, user_id, text, importance, category, created_at, last_accessed_at, access_count
		FROM memories WHERE user_id = ? AND mem_id = ?
	`, userID, id)

	m, rowID, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{UserID: userID, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("querying memory: %w", err)
	}

	if err := d.loadEmbedding(ctx, rowID, m); err != nil {
		return nil, err
	}

	return m, nil
}

// List returns all memories owned by a user, embeddings included.
func (d *Driver) List(ctx context.Context, userID string) ([]*memory.Memory, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT rowid, mem_id, user_id, text, importance, category, created_at, last_accessed_at, access_count
		FROM memories WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	defer rows.Close()

	// Collect rows first so the cursor is closed before issuing the
	// embedding lookups (SQLite uses a single connection).
	var memories []*memory.Memory
	var rowIDs []int64
	for rows.Next() {
		m, rowID, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		memories = append(memories, m)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memories: %w", err)
	}
	rows.Close()

	for i, m := range memories {
		if err := d.loadEmbedding(ctx, rowIDs[i], m); err != nil {
			return nil, err
		}
	}

	return memories, nil
}

// Update atomically replaces the record with the same ID. The embedding is
// rewritten only when the update carries one (vec0 requires DELETE+INSERT).
func (d *Driver) Update(ctx context.Context, m *memory.Memory) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx,
		`SELECT rowid FROM memories WHERE user_id = ? AND mem_id = ?`, m.UserID, m.ID,
	).Scan(&rowID)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound{UserID: m.UserID, ID: m.ID}
	}
	if err != nil {
		return fmt.Errorf("looking up memory %s: %w", m.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE memories
		SET text = ?, importance = ?, category = ?, last_accessed_at = ?, access_count = ?
		WHERE rowid = ?
	`, m.Text, m.Importance, m.Category, m.LastAccessedAt, m.AccessCount, rowID); err != nil {
		return fmt.Errorf("updating memory %s: %w", m.ID, err)
	}

	if len(m.Embedding) > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM mem_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("deleting old embedding for memory %s: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mem_embeddings(rowid, embedding) VALUES (?, ?)`,
			rowID, serializeFloat32(m.Embedding),
		); err != nil {
			return fmt.Errorf("re-inserting embedding for memory %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Delete removes one memory and its embedding.
func (d *Driver) Delete(ctx context.Context, userID, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx,
		`SELECT rowid FROM memories WHERE user_id = ? AND mem_id = ?`, userID, id,
	).Scan(&rowID)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound{UserID: userID, ID: id}
	}
	if err != nil {
		return fmt.Errorf("looking up memory %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM mem_embeddings WHERE rowid = ?`, rowID); err != nil {
		return fmt.Errorf("deleting embedding for memory %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE rowid = ?`, rowID); err != nil {
		return fmt.Errorf("deleting memory %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Count returns the number of memories owned by a user.
func (d *Driver) Count(ctx context.Context, userID string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE user_id = ?`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting memories: %w", err)
	}
	return count, nil
}

// MostSimilar implements storage.Searcher with a vec0 KNN query.
// vec0 MATCH cannot pre-filter by user, so the query over-fetches and
// filters the join result; very small k against a large multi-user table
// may return fewer matches than exist for the user.
func (d *Driver) MostSimilar(ctx context.Context, userID string, embedding []float32, k int) ([]storage.Match, error) {
	if k <= 0 {
		k = 10
	}

	// Over-fetch to survive the post-MATCH user filter.
	fetch := k * 8
	if fetch < 64 {
		fetch = 64
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT
			m.rowid,
			m.mem_id, m.user_id, m.text, m.importance, m.category,
			m.created_at, m.last_accessed_at, m.access_count,
			me.distance
		FROM mem_embeddings me
		INNER JOIN memories m ON m.rowid = me.rowid
		WHERE me.embedding MATCH ?
			AND me.k = ?
			AND m.user_id = ?
		ORDER BY me.distance
	`, serializeFloat32(embedding), fetch, userID)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var matches []storage.Match
	for rows.Next() {
		var m memory.Memory
		var rowID int64
		var distance float64
		if err := rows.Scan(
			&rowID, &m.ID, &m.UserID, &m.Text, &m.Importance, &m.Category,
			&m.CreatedAt, &m.LastAccessedAt, &m.AccessCount, &distance,
		); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}

		matches = append(matches, storage.Match{
			Memory: &m,
			// vec0 distance is cosine distance; similarity = 1 - distance.
			Score: 1.0 - distance,
		})
		if len(matches) == k {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}

	d.logger.Debug("sqlite-vec similarity query",
		zap.String("user_id", userID),
		zap.Int("results", len(matches)),
	)

	return matches, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

func (d *Driver) loadEmbedding(ctx context.Context, rowID int64, m *memory.Memory) error {
	var blob []byte
	err := d.db.QueryRowContext(ctx,
		`SELECT embedding FROM mem_embeddings WHERE rowid = ?`, rowID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading embedding for memory %s: %w", m.ID, err)
	}

	emb, err := deserializeFloat32(blob)
	if err != nil {
		return fmt.Errorf("decoding embedding for memory %s: %w", m.ID, err)
	}
	m.Embedding = emb
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(s scanner) (*memory.Memory, int64, error) {
	var m memory.Memory
	var rowID int64
	err := s.Scan(
		&rowID, &m.ID, &m.UserID, &m.Text, &m.Importance, &m.Category,
		&m.CreatedAt, &m.LastAccessedAt, &m.AccessCount,
	)
	return &m, rowID, err
}

var _ storage.Driver = (*Driver)(nil)
var _ storage.Searcher = (*Driver)(nil)
