package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/telos-systems/telos-core/internal/chaos"
)

func newChaosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chaos",
		Short: "Chaos engineering commands",
	}
	cmd.AddCommand(newChaosRunCmd())
	return cmd
}

func newChaosRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one chaos experiment or the full validation gauntlet",
		Long: `run executes a single registered chaos experiment (--experiment ID) or,
if no experiment is named, the full validation gauntlet of every registered
experiment in sequence.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			experimentID, _ := cmd.Flags().GetString("experiment")

			conductor := a.buildChaosConductor()
			ctx := cmd.Context()

			if experimentID != "" {
				result, err := conductor.StartExperiment(ctx, experimentID)
				if err != nil {
					return usageErr(fmt.Errorf("run experiment %s: %w", experimentID, err))
				}
				return a.printChaosResult(result)
			}

			report := conductor.RunValidationGauntlet(ctx)
			return a.printGauntletReport(report)
		},
	}

	cmd.Flags().String("experiment", "", "Run only this experiment ID instead of the full gauntlet")
	return cmd
}

func (a *app) printChaosResult(result chaos.Result) error {
	if a.jsonOut {
		return encodeJSON(os.Stdout, result)
	}
	fmt.Fprintf(os.Stdout, "Experiment: %s\n", result.ExperimentID)
	fmt.Fprintf(os.Stdout, "Status:     %s\n", result.Status)
	if result.Breach != nil {
		fmt.Fprintf(os.Stdout, "Breach:     %s (baseline=%.4f current=%.4f)\n",
			result.Breach.Type, result.Breach.Baseline, result.Breach.Current)
	}
	if result.Err != nil {
		fmt.Fprintf(os.Stdout, "Error:      %s\n", result.Err)
	}
	return nil
}

func (a *app) printGauntletReport(report chaos.GauntletReport) error {
	if a.jsonOut {
		return encodeJSON(os.Stdout, report)
	}
	fmt.Fprintf(os.Stdout, "Validation gauntlet: %d/%d passed (%.1f%%)\n",
		report.Passed, report.Total, report.SuccessRate*100)
	for _, r := range report.PerExperiment {
		fmt.Fprintf(os.Stdout, "  %-28s %s\n", r.ExperimentID, r.Status)
	}
	return nil
}
