package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/telos-systems/telos-core/internal/graphindex"
	"github.com/telos-systems/telos-core/internal/transducer"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Graph indexer commands",
	}
	cmd.AddCommand(newIndexBuildCmd())
	return cmd
}

func newIndexBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Force one graph indexing cycle",
		Long: `build extracts the concept graph, detects communities, summarizes
each via the LLM transducer, and stores the resulting embeddings in L2 —
one pass of what "core serve" otherwise runs on DefaultIndexIntervalSeconds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			f, err := a.openFabric(ctx)
			if err != nil {
				return err
			}
			defer f.Close()

			repo, err := a.openConceptRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			var t transducer.Transducer = transducer.Disabled{}
			if a.cfg.Transducer.Enabled {
				client, err := transducer.DialGRPC(a.cfg.Transducer.Endpoint, 0, 0)
				if err != nil {
					return dependencyErr(fmt.Errorf("dial transducer: %w", err))
				}
				defer client.Close()
				t = client
			}

			indexCfg := graphindex.DefaultConfig()
			indexCfg.MaxLevels = a.cfg.GraphIndex.MaxLevels
			indexCfg.Resolution = a.cfg.GraphIndex.Resolution
			indexCfg.BatchSize = a.cfg.GraphIndex.SummaryBatchSize
			indexCfg.Logger = a.logger
			indexCfg.DecisionLogger = a.decisionLogger
			indexer := graphindex.New(repo, f, t, indexCfg)

			if err := indexer.Run(ctx); err != nil {
				return dependencyErr(fmt.Errorf("graph index run: %w", err))
			}

			if a.jsonOut {
				return encodeJSON(os.Stdout, map[string]any{"status": "indexed"})
			}
			fmt.Fprintln(os.Stdout, "Graph indexing cycle completed.")
			return nil
		},
	}
}
