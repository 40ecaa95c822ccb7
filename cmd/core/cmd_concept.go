package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConceptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "concept",
		Short: "Concept repository probes",
	}
	cmd.AddCommand(newConceptGetCmd())
	cmd.AddCommand(newConceptListCmd())
	return cmd
}

func newConceptGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get OID",
		Short: "Load a single concept by OID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			repo, err := a.openConceptRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			c, err := repo.Load(cmd.Context(), args[0])
			if err != nil {
				return dependencyErr(fmt.Errorf("load concept %s: %w", args[0], err))
			}
			if c == nil {
				return usageErr(fmt.Errorf("concept %s not found", args[0]))
			}

			if a.jsonOut {
				return encodeJSON(os.Stdout, c)
			}
			fmt.Fprintf(os.Stdout, "OID:          %s\n", c.OID)
			fmt.Fprintf(os.Stdout, "Label:        %s\n", c.Label)
			fmt.Fprintf(os.Stdout, "Confidence:   %.4f\n", c.Confidence)
			fmt.Fprintf(os.Stdout, "Usage count:  %d\n", c.UsageCount)
			fmt.Fprintf(os.Stdout, "Relations:    %d\n", len(c.Relations))
			fmt.Fprintf(os.Stdout, "Causal edges: %d\n", len(c.Causal))
			fmt.Fprintf(os.Stdout, "Last modified: %s\n", c.LastModified.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}
}

func newConceptListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted concepts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")

			repo, err := a.openConceptRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx := cmd.Context()
			concepts, err := repo.List(ctx, limit, offset)
			if err != nil {
				return dependencyErr(fmt.Errorf("list concepts: %w", err))
			}
			total, err := repo.Count(ctx)
			if err != nil {
				return dependencyErr(fmt.Errorf("count concepts: %w", err))
			}

			if a.jsonOut {
				return encodeJSON(os.Stdout, map[string]any{
					"total":    total,
					"concepts": concepts,
				})
			}

			for _, c := range concepts {
				fmt.Fprintf(os.Stdout, "%-36s %-30s confidence=%.2f usage=%d\n", c.OID, c.Label, c.Confidence, c.UsageCount)
			}
			fmt.Fprintf(os.Stdout, "(%d of %d total)\n", len(concepts), total)
			return nil
		},
	}
	cmd.Flags().Int("limit", 50, "Maximum number of concepts to list")
	cmd.Flags().Int("offset", 0, "Number of concepts to skip")
	return cmd
}
