package main

import (
	"fmt"

	"github.com/dshills/agentgraph-go/graph"
	"github.com/dshills/agentgraph-go/graph/store"
)

func storeMemory() graph.CheckpointStore {
	return store.NewMemory()
}

func storeSQLite(path string) (graph.CheckpointStore, func() error, error) {
	if path == "" {
		path = "graphrun.db"
	}
	s, err := store.NewSQLite(path)
	if err != nil {
		return nil, nil, fmt.Errorf("graphrun: open sqlite store: %w", err)
	}
	return s, s.Close, nil
}

func storeMySQL(dsn string) (graph.CheckpointStore, func() error, error) {
	if dsn == "" {
		return nil, nil, fmt.Errorf("graphrun: mysql backend requires store.dsn")
	}
	s, err := store.NewMySQL(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("graphrun: open mysql store: %w", err)
	}
	return s, s.Close, nil
}
