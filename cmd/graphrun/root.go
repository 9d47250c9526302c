package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/agentgraph-go/config"
	"github.com/dshills/agentgraph-go/graph"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "graphrun",
		Short:         "Run, resume, and inspect agentgraph-go workflow checkpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a TOML config file")

	root.AddCommand(newRunCmd(), newResumeCmd(), newInspectCmd())
	return root
}

// openStore builds the graph.CheckpointStore named by cfg.Store.Backend.
func openStore(cfg config.Config) (graph.CheckpointStore, func() error, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return storeMemory(), func() error { return nil }, nil
	case "sqlite":
		return storeSQLite(cfg.Store.Path)
	case "mysql":
		return storeMySQL(cfg.Store.DSN)
	default:
		return nil, nil, fmt.Errorf("graphrun: unknown store backend %q", cfg.Store.Backend)
	}
}
