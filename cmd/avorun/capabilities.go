package main

import (
	"encoding/json"
	"sort"

	"github.com/spf13/cobra"

	"pkt.systems/avorun/schema"
	"pkt.systems/avorun/unit"
)

type capabilities struct {
	RunnableKinds []string `json:"runnable-kinds"`
	Commands      []string `json:"commands"`
	Classes       []string `json:"classes"`
}

// newCapabilitiesCmd reports what this runner can execute, for schedulers
// probing the binary.
func newCapabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Print runnable kinds, commands and registered classes as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caps := capabilities{
				RunnableKinds: []string{schema.KindInstrumented},
				Commands:      visibleCommands(cmd.Root()),
				Classes:       unit.Classes(),
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(caps)
		},
	}
}

func visibleCommands(root *cobra.Command) []string {
	names := []string{}
	for _, c := range root.Commands() {
		if c.Hidden || c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		names = append(names, c.Name())
	}
	sort.Strings(names)
	return names
}
