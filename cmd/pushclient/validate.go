package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/pushchannel/internal/config"
)

func newValidateCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration valid")
			fmt.Fprint(out, renderTable(
				[]string{"Setting", "Value"},
				[][]string{
					{"instance.id", cfg.Instance.ID},
					{"server.uri", cfg.Server.URI},
					{"server.channel_id", cfg.Server.ChannelID},
					{"server.keep_alive", cfg.Server.KeepAlive.String()},
					{"queue.backend", cfg.Queue.Backend},
					{"wake.lock_dir", cfg.Wake.LockDir},
					{"status.enabled", fmt.Sprintf("%t", cfg.Status.Enabled)},
				},
				nil,
			))
			fmt.Fprintln(out)
			return nil
		},
	}
}
