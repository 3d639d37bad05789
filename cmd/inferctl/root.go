package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "inferctl",
		Short:         "Client for infer-rpc servers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	flags.StringVar(&ctx.hostFlag, "host", "", "Server host")
	flags.IntVar(&ctx.portFlag, "port", 0, "Server port")
	flags.DurationVar(&ctx.timeoutFlag, "timeout", 0, "Per-call timeout")
	flags.StringVar(&ctx.codecFlag, "codec", "", "Payload codec: binary or json")

	rootCmd.AddCommand(newPingCommand(ctx))
	rootCmd.AddCommand(newCallCommand(ctx))
	rootCmd.AddCommand(newKillCommand(ctx))
	rootCmd.AddCommand(newDriveCommand(ctx))

	return rootCmd
}
