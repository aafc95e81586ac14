package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datajunction/djqs/internal/server"
)

var workersFlag int

// djqs worker
var workerCmd = &cobra.Command{
	Use:     "worker",
	Aliases: []string{"queue:work"},
	Short:   "Process asynchronous queries from the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "Queue worker started (%d workers). Press Ctrl+C to stop.\n", workersFlag)
		if err := server.Work(workersFlag); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Queue worker stopped.")
		return nil
	},
}

func init() {
	workerCmd.Flags().IntVarP(&workersFlag, "workers", "w", 0, "Number of concurrent workers (default QUEUE_WORKERS)")
}
