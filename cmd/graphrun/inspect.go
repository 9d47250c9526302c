package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/agentgraph-go/config"
	"github.com/dshills/agentgraph-go/graph"
)

func newInspectCmd() *cobra.Command {
	var checkpointID string

	cmd := &cobra.Command{
		Use:   "inspect-pending",
		Short: "Print the pending human interaction recorded at a checkpoint, if any",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkpointID == "" {
				return errRequired("--checkpoint")
			}

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			pending, err := graph.GetPendingInteractions(checkpointID, store)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pending)
		},
	}
	cmd.Flags().StringVar(&checkpointID, "checkpoint", "", "Checkpoint ID to inspect")
	return cmd
}

func errRequired(flag string) error {
	return fmt.Errorf("graphrun: %s is required", flag)
}

func errNoPending(checkpointID string) error {
	return fmt.Errorf("graphrun: checkpoint %s has no pending human interaction", checkpointID)
}
