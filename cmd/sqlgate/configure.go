package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sqlgate/sqlgate/internal/configure"
)

func newConfigureCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Run the interactive configuration wizard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner(os.Stderr, isTTY(os.Stderr.Fd()))
			return configure.Run(flags.path())
		},
	}
}
