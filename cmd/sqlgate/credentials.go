package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sqlgate/sqlgate/internal/credentials"
)

func newCredentialsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the database password in the OS keyring",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Store the password for the configured user and host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, host, err := credentialTarget(flags)
			if err != nil {
				return err
			}
			ring, err := credentials.Open()
			if err != nil {
				return err
			}
			password, err := credentials.TerminalPrompt(fmt.Sprintf("Password for %s@%s: ", user, host))
			if err != nil {
				return err
			}
			if password == "" {
				return errors.New("empty password not stored")
			}
			if err := ring.SetPassword(user, host, password); err != nil {
				return err
			}
			pterm.Success.Printf("Stored password for %s@%s\n", user, host)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored password for the configured user and host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, host, err := credentialTarget(flags)
			if err != nil {
				return err
			}
			ring, err := credentials.Open()
			if err != nil {
				return err
			}
			err = ring.Clear(user, host)
			if errors.Is(err, credentials.ErrNotFound) {
				pterm.Info.Printf("No password stored for %s@%s\n", user, host)
				return nil
			}
			if err != nil {
				return err
			}
			pterm.Success.Printf("Removed password for %s@%s\n", user, host)
			return nil
		},
	})
	return cmd
}

func credentialTarget(flags *globalFlags) (user, host string, err error) {
	cfg, err := loadServerConfig(flags.path(), os.Getenv)
	if err != nil {
		return "", "", err
	}
	if cfg.Connection.User == "" || cfg.Connection.Host == "" {
		return "", "", errors.New("connection.user and connection.host must be set")
	}
	return cfg.Connection.User, cfg.Connection.Host, nil
}
