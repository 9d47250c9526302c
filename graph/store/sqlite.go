package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dshills/agentgraph-go/graph"
	_ "modernc.org/sqlite"
)

// SQLite is a single-file graph.CheckpointStore backend. Designed for
// development, local tooling, and single-process deployments that want
// checkpoints to survive a process restart without standing up a server.
//
// Schema:
//   - checkpoints: one row per Checkpoint, container fields stored as
//     JSON TEXT columns so StateMap/Context/Pending round-trip their full
//     shape rather than collapsing to a string.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens (creating if absent) a SQLite-backed store at path.
// Use ":memory:" for an ephemeral database useful in tests that still
// want to exercise the real SQL path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite supports one writer at a time

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store/sqlite: %s: %w", pragma, err)
		}
	}

	s := &SQLite{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) createTables(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS checkpoints (
			checkpoint_id   TEXT PRIMARY KEY,
			run_id          TEXT NOT NULL,
			graph_id        TEXT NOT NULL,
			current_node_id TEXT NOT NULL,
			state_map       TEXT NOT NULL,
			context         TEXT NOT NULL,
			visit_count     TEXT NOT NULL,
			status          TEXT NOT NULL,
			pending         TEXT,
			metadata        TEXT,
			schema_version  INTEGER NOT NULL,
			created_at      TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("store/sqlite: create table: %w", err)
	}
	for _, idx := range []string{
		"CREATE INDEX IF NOT EXISTS idx_checkpoints_run_id ON checkpoints(run_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_checkpoints_graph_id ON checkpoints(graph_id, created_at)",
	} {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("store/sqlite: create index: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Save(cp graph.Checkpoint) error {
	r, err := encodeCheckpoint(cp)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	const q = `
		INSERT INTO checkpoints (checkpoint_id, run_id, graph_id, current_node_id, state_map, context, visit_count, status, pending, metadata, schema_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(checkpoint_id) DO UPDATE SET
			current_node_id = excluded.current_node_id,
			state_map       = excluded.state_map,
			context         = excluded.context,
			visit_count     = excluded.visit_count,
			status          = excluded.status,
			pending         = excluded.pending,
			metadata        = excluded.metadata,
			schema_version  = excluded.schema_version
	`
	_, err = s.db.ExecContext(context.Background(), q,
		r.CheckpointID, r.RunID, r.GraphID, r.CurrentNodeID, string(r.StateMap), string(r.Context),
		string(r.VisitCount), r.Status, nullableText(r.Pending), string(r.Metadata), r.SchemaVersion, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("store/sqlite: save: %w", err)
	}
	return nil
}

func (s *SQLite) Load(checkpointID string) (graph.Checkpoint, error) {
	const q = `
		SELECT checkpoint_id, run_id, graph_id, current_node_id, state_map, context, visit_count, status, pending, metadata, schema_version, created_at
		FROM checkpoints WHERE checkpoint_id = ?
	`
	return s.scanOne(q, checkpointID)
}

func (s *SQLite) ListByRun(runID string) ([]graph.Checkpoint, error) {
	const q = `
		SELECT checkpoint_id, run_id, graph_id, current_node_id, state_map, context, visit_count, status, pending, metadata, schema_version, created_at
		FROM checkpoints WHERE run_id = ? ORDER BY created_at ASC
	`
	return s.scanMany(q, runID)
}

func (s *SQLite) ListByGraph(graphID string) ([]graph.Checkpoint, error) {
	const q = `
		SELECT checkpoint_id, run_id, graph_id, current_node_id, state_map, context, visit_count, status, pending, metadata, schema_version, created_at
		FROM checkpoints WHERE graph_id = ? ORDER BY created_at DESC
	`
	return s.scanMany(q, graphID)
}

func (s *SQLite) Delete(checkpointID string) error {
	_, err := s.db.ExecContext(context.Background(), "DELETE FROM checkpoints WHERE checkpoint_id = ?", checkpointID)
	if err != nil {
		return fmt.Errorf("store/sqlite: delete: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteByRun(runID string) error {
	_, err := s.db.ExecContext(context.Background(), "DELETE FROM checkpoints WHERE run_id = ?", runID)
	if err != nil {
		return fmt.Errorf("store/sqlite: delete by run: %w", err)
	}
	return nil
}

func (s *SQLite) scanOne(query string, arg any) (graph.Checkpoint, error) {
	var r row
	var pending sql.NullString
	err := s.db.QueryRowContext(context.Background(), query, arg).Scan(
		&r.CheckpointID, &r.RunID, &r.GraphID, &r.CurrentNodeID, scanText(&r.StateMap), scanText(&r.Context),
		scanText(&r.VisitCount), &r.Status, &pending, scanText(&r.Metadata), &r.SchemaVersion, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return graph.Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return graph.Checkpoint{}, fmt.Errorf("store/sqlite: load: %w", err)
	}
	if pending.Valid {
		r.Pending = []byte(pending.String)
	}
	return decodeCheckpoint(r)
}

func (s *SQLite) scanMany(query string, arg any) ([]graph.Checkpoint, error) {
	rows, err := s.db.QueryContext(context.Background(), query, arg)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []graph.Checkpoint
	for rows.Next() {
		var r row
		var pending sql.NullString
		if err := rows.Scan(&r.CheckpointID, &r.RunID, &r.GraphID, &r.CurrentNodeID, scanText(&r.StateMap), scanText(&r.Context),
			scanText(&r.VisitCount), &r.Status, &pending, scanText(&r.Metadata), &r.SchemaVersion, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store/sqlite: scan: %w", err)
		}
		if pending.Valid {
			r.Pending = []byte(pending.String)
		}
		cp, err := decodeCheckpoint(r)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// scanText adapts a []byte destination to sql.Scan via a string
// intermediate, since the driver returns TEXT columns as strings.
func scanText(dst *[]byte) *textScanner { return &textScanner{dst: dst} }

type textScanner struct{ dst *[]byte }

func (t *textScanner) Scan(src any) error {
	switch v := src.(type) {
	case string:
		*t.dst = []byte(v)
	case []byte:
		*t.dst = append([]byte(nil), v...)
	case nil:
		*t.dst = nil
	default:
		return fmt.Errorf("store/sqlite: unexpected column type %T", src)
	}
	return nil
}

func nullableText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
