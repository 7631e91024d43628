package main

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sqlgate/sqlgate"
	"github.com/sqlgate/sqlgate/internal/credentials"
	"github.com/sqlgate/sqlgate/internal/mask"
)

func newDBInfoCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dbinfo",
		Short: "Show the database connection string with credentials masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig(flags.path(), os.Getenv)
			if err != nil {
				return err
			}
			driver, masked, source, err := maskedDSN(cfg, newResolver(cfg, false, zerolog.Nop()))
			if err != nil {
				return err
			}

			pterm.DefaultBox.
				WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Database Connection")).
				WithPadding(1).
				Println(masked)
			pterm.Println()
			pterm.Printf("Driver: %s\n", driver)
			pterm.Printf("Password source: %s\n", source)
			if source == credentials.SourceNone && driver != sqlgate.DriverSQLite && cfg.Connection.DSN == "" {
				pterm.Warning.Println("No password found. Run: sqlgate credentials set")
			}
			return nil
		},
	}
}

// maskedDSN resolves the connection string without prompting and hides its
// credentials.
func maskedDSN(cfg *sqlgate.ServerConfig, r credentials.Resolver) (sqlgate.Driver, string, credentials.Source, error) {
	r.Prompt = nil
	driver, dsn, source, err := resolveDSN(cfg, r)
	if err != nil {
		return "", "", source, err
	}
	return driver, mask.String(dsn), source, nil
}
