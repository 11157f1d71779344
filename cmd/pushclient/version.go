package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/pushchannel/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "pushclient "+version.String())
			return nil
		},
	}
}
