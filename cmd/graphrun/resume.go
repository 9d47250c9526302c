package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dshills/agentgraph-go/config"
	"github.com/dshills/agentgraph-go/graph"
)

func newResumeCmd() *cobra.Command {
	var checkpointID string
	var canonical string

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused run, optionally answering a pending human interaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkpointID == "" {
				return errRequired("--checkpoint")
			}

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

			var report graph.RunReport
			if canonical != "" {
				pending, err := graph.GetPendingInteractions(checkpointID, store)
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					return errNoPending(checkpointID)
				}
				resp := graph.HumanResponse{
					NodeID:     pending[0].NodeID,
					ToolCallID: pending[0].ToolCallID,
					Kind:       pending[0].Kind,
					RawText:    canonical,
					Canonical:  canonical,
				}
				report = engine.ResumeWithHumanResponse(context.Background(), checkpointID, resp, store)
			} else {
				report = engine.Resume(context.Background(), checkpointID, store)
			}

			return printReport(cmd, report)
		},
	}
	cmd.Flags().StringVar(&checkpointID, "checkpoint", "", "Checkpoint ID to resume from")
	cmd.Flags().StringVar(&canonical, "response", "", "Canonical response value, if resuming past a human node")
	return cmd
}
