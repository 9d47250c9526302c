package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/dshills/agentgraph-go/config"
	"github.com/dshills/agentgraph-go/graph"
)

func newRunCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bundled demo graph from its entry node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			g, err := buildDemoGraph()
			if err != nil {
				return err
			}

			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			opts := append([]graph.Option{graph.WithCheckpointConfig(cfg.GraphCheckpointConfig())}, engineOptions(cfg)...)
			engine := graph.NewEngine(g, opts...)

			initial := graph.StateMap{}
			if input != "" {
				if err := json.Unmarshal([]byte(input), &initial); err != nil {
					return err
				}
			}

			report := engine.RunWithCheckpoint(context.Background(), initial, store, cfg.GraphCheckpointConfig())
			return printReport(cmd, report)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "JSON object seeding the run's initial state map")
	return cmd
}

func printReport(cmd *cobra.Command, report graph.RunReport) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"runId":        report.RunID,
		"graphId":      report.GraphID,
		"status":       report.Status,
		"result":       report.Result,
		"checkpointId": report.CheckpointID,
		"error":        errString(report.Error),
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
