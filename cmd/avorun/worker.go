package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pkt.systems/avorun/internal/msgio"
	"pkt.systems/avorun/internal/worker"
	"pkt.systems/avorun/schema"
)

// newWorkerCmd is the hidden process entry the spawner invokes: runnable JSON
// on stdin, message JSONL on stdout. It exits zero whatever the test outcome;
// the terminal message carries the verdict.
func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Execute one runnable in-process (stdin JSON, stdout JSONL)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			writer := msgio.NewWriter(cmd.OutOrStdout())

			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				emitWorkerFault(writer, fmt.Errorf("read runnable: %w", err))
				return nil
			}
			var r schema.Runnable
			if err := json.Unmarshal(data, &r); err != nil {
				emitWorkerFault(writer, fmt.Errorf("decode runnable: %w", err))
				return nil
			}

			worker.Run(cmd.Context(), r, writer)
			return writer.Err()
		},
	}
}

// emitWorkerFault keeps the terminal-message guarantee when the runnable
// never reaches the worker body.
func emitWorkerFault(writer *msgio.Writer, err error) {
	writer.Put(schema.StderrMessage(err.Error()))
	writer.Put(schema.FinishedErrorMessage(err.Error(), "RunnableDecode", ""))
}
