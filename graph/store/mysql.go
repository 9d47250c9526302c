package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dshills/agentgraph-go/graph"
	_ "github.com/go-sql-driver/mysql"
)

// MySQL is a relational graph.CheckpointStore backend for production
// deployments that need checkpoints to survive process restarts and to be
// visible to multiple operator tools (a MySQL DSN talks to MariaDB too).
//
// The DSN format is the go-sql-driver/mysql convention, e.g.
// "user:pass@tcp(127.0.0.1:3306)/dbname?parseTime=true".
type MySQL struct {
	db *sql.DB
}

// NewMySQL opens a connection pool against dsn and creates the
// checkpoints table if it doesn't already exist.
func NewMySQL(dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store/mysql: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store/mysql: ping: %w", err)
	}

	m := &MySQL{db: db}
	if err := m.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func (m *MySQL) createTables(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS checkpoints (
			checkpoint_id   VARCHAR(191) PRIMARY KEY,
			run_id          VARCHAR(191) NOT NULL,
			graph_id        VARCHAR(191) NOT NULL,
			current_node_id VARCHAR(191) NOT NULL,
			state_map       LONGTEXT NOT NULL,
			context         LONGTEXT NOT NULL,
			visit_count     LONGTEXT NOT NULL,
			status          VARCHAR(32) NOT NULL,
			pending         LONGTEXT NULL,
			metadata        LONGTEXT NULL,
			schema_version  INT NOT NULL,
			created_at      DATETIME(6) NOT NULL,
			INDEX idx_checkpoints_run_id (run_id, created_at),
			INDEX idx_checkpoints_graph_id (graph_id, created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("store/mysql: create table: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (m *MySQL) Close() error { return m.db.Close() }

func (m *MySQL) Save(cp graph.Checkpoint) error {
	r, err := encodeCheckpoint(cp)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO checkpoints (checkpoint_id, run_id, graph_id, current_node_id, state_map, context, visit_count, status, pending, metadata, schema_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			current_node_id = VALUES(current_node_id),
			state_map       = VALUES(state_map),
			context         = VALUES(context),
			visit_count     = VALUES(visit_count),
			status          = VALUES(status),
			pending         = VALUES(pending),
			metadata        = VALUES(metadata),
			schema_version  = VALUES(schema_version)
	`
	_, err = m.db.ExecContext(context.Background(), q,
		r.CheckpointID, r.RunID, r.GraphID, r.CurrentNodeID, string(r.StateMap), string(r.Context),
		string(r.VisitCount), r.Status, nullableText(r.Pending), string(r.Metadata), r.SchemaVersion, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("store/mysql: save: %w", err)
	}
	return nil
}

func (m *MySQL) Load(checkpointID string) (graph.Checkpoint, error) {
	const q = `
		SELECT checkpoint_id, run_id, graph_id, current_node_id, state_map, context, visit_count, status, pending, metadata, schema_version, created_at
		FROM checkpoints WHERE checkpoint_id = ?
	`
	return m.scanOne(q, checkpointID)
}

func (m *MySQL) ListByRun(runID string) ([]graph.Checkpoint, error) {
	const q = `
		SELECT checkpoint_id, run_id, graph_id, current_node_id, state_map, context, visit_count, status, pending, metadata, schema_version, created_at
		FROM checkpoints WHERE run_id = ? ORDER BY created_at ASC
	`
	return m.scanMany(q, runID)
}

func (m *MySQL) ListByGraph(graphID string) ([]graph.Checkpoint, error) {
	const q = `
		SELECT checkpoint_id, run_id, graph_id, current_node_id, state_map, context, visit_count, status, pending, metadata, schema_version, created_at
		FROM checkpoints WHERE graph_id = ? ORDER BY created_at DESC
	`
	return m.scanMany(q, graphID)
}

func (m *MySQL) Delete(checkpointID string) error {
	_, err := m.db.ExecContext(context.Background(), "DELETE FROM checkpoints WHERE checkpoint_id = ?", checkpointID)
	if err != nil {
		return fmt.Errorf("store/mysql: delete: %w", err)
	}
	return nil
}

func (m *MySQL) DeleteByRun(runID string) error {
	_, err := m.db.ExecContext(context.Background(), "DELETE FROM checkpoints WHERE run_id = ?", runID)
	if err != nil {
		return fmt.Errorf("store/mysql: delete by run: %w", err)
	}
	return nil
}

func (m *MySQL) scanOne(query string, arg any) (graph.Checkpoint, error) {
	var r row
	var pending sql.NullString
	err := m.db.QueryRowContext(context.Background(), query, arg).Scan(
		&r.CheckpointID, &r.RunID, &r.GraphID, &r.CurrentNodeID, scanText(&r.StateMap), scanText(&r.Context),
		scanText(&r.VisitCount), &r.Status, &pending, scanText(&r.Metadata), &r.SchemaVersion, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return graph.Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return graph.Checkpoint{}, fmt.Errorf("store/mysql: load: %w", err)
	}
	if pending.Valid {
		r.Pending = []byte(pending.String)
	}
	return decodeCheckpoint(r)
}

func (m *MySQL) scanMany(query string, arg any) ([]graph.Checkpoint, error) {
	rows, err := m.db.QueryContext(context.Background(), query, arg)
	if err != nil {
		return nil, fmt.Errorf("store/mysql: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []graph.Checkpoint
	for rows.Next() {
		var r row
		var pending sql.NullString
		if err := rows.Scan(&r.CheckpointID, &r.RunID, &r.GraphID, &r.CurrentNodeID, scanText(&r.StateMap), scanText(&r.Context),
			scanText(&r.VisitCount), &r.Status, &pending, scanText(&r.Metadata), &r.SchemaVersion, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store/mysql: scan: %w", err)
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
