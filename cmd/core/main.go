// Command core is the TELOS core's CLI: launching background tasks,
// running chaos experiments, forcing an indexing cycle, and probing the
// memory fabric and concept repository.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "core",
		Short: "TELOS core - federated memory, hierarchical control, and active inference",
		Long: `core runs the TELOS cognitive substrate: a federated tiered memory
fabric, a hierarchical reactive controller, an active-inference planner, a
graph indexer, and a chaos conductor for continuous resilience validation.`,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for tooling consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project data root directory")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newChaosCmd(),
		newIndexCmd(),
		newMemoryCmd(),
		newConceptCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("core version %s\n", version)
		},
	}
}

// exitCode is a CLI error annotated with a process exit code: 0 success,
// 2 invariant violation, 3 external dependency failure, 4 invalid argument.
type exitCode struct {
	code int
	err  error
}

func (e *exitCode) Error() string { return e.err.Error() }
func (e *exitCode) Unwrap() error { return e.err }

func invariantErr(err error) error  { return &exitCode{code: 2, err: err} }
func dependencyErr(err error) error { return &exitCode{code: 3, err: err} }
func usageErr(err error) error      { return &exitCode{code: 4, err: err} }

func exitCodeFor(err error) int {
	var ec *exitCode
	if errors.As(err, &ec) {
		return ec.code
	}
	return 1
}
