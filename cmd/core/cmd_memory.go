package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Memory fabric introspection commands",
	}
	cmd.AddCommand(newMemoryStatCmd())
	cmd.AddCommand(newMemoryOutboxCmd())
	return cmd
}

func newMemoryStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "Dump L1/L2 cache sizes, hit ratios, and outbox depth",
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

			stat := f.Stat()
			if a.jsonOut {
				return encodeJSON(os.Stdout, stat)
			}

			fmt.Fprintf(os.Stdout, "L1: %d/%d entries, hit ratio %.4f\n", stat.L1Size, stat.L1MaxSize, stat.L1HitRatio)
			fmt.Fprintf(os.Stdout, "L2: %d/%d entries, hit ratio %.4f\n", stat.L2Size, stat.L2MaxSize, stat.L2HitRatio)
			fmt.Fprintf(os.Stdout, "Outbox: %d pending, %d dead-lettered\n", stat.OutboxPending, stat.DeadLetter)
			return nil
		},
	}
}

func newMemoryOutboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "List dead-lettered outbox events",
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

			events := f.DeadLetters()
			if a.jsonOut {
				return encodeJSON(os.Stdout, events)
			}

			if len(events) == 0 {
				fmt.Fprintln(os.Stdout, "No dead-lettered events.")
				return nil
			}
			for _, e := range events {
				fmt.Fprintf(os.Stdout, "%-36s %-10s %-20s retries=%d\n", e.ID, e.Operation, e.Key, e.RetryCount)
			}
			return nil
		},
	}
}
