package main

import (
	"github.com/spf13/cobra"

	"github.com/rickgao/pushchannel/internal/config"
)

const defaultConfigPath = "configs/pushclient.yaml"

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "pushclient",
		Short:         "Persistent-connection push notification client",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Configuration file path")

	load := func() (*config.Config, error) {
		return config.LoadAndValidate(configPath)
	}

	rootCmd.AddCommand(newRunCommand(load))
	rootCmd.AddCommand(newValidateCommand(load))
	rootCmd.AddCommand(newQueueCommand(load))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
