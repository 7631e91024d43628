package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqlgate/sqlgate/internal/config"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
}

func (g *globalFlags) path() string {
	return config.Path(g.configPath, os.Getenv)
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "sqlgate",
		Short:         "Guarded SQL execution gateway",
		Long:          `sqlgate executes SQL against a relational database behind a denylist screen and exposes the result over a REST API and an MCP endpoint.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		fmt.Sprintf("path to the config file (default $%s or %s)", config.EnvConfigPath, config.DefaultFile))

	root.AddCommand(
		newServeCmd(flags),
		newConfigureCmd(flags),
		newDoctorCmd(flags),
		newDBInfoCmd(flags),
		newCredentialsCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sqlgate version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sqlgate %s\n", Version)
		},
	}
}
