package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/criteo/install-registry/internal/auth"
	"github.com/criteo/install-registry/internal/cli/prompts"
)

// newAuthCommand creates the auth command and its hash-password subcommand
func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication utilities",
		Long:  `Utilities for managing the credentials of the registry server.`,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hash-password",
		Short: "Generate bcrypt hash for a password",
		Long:  `Generate a bcrypt hash for a password to use in users.yaml file.`,
		Args:  cobra.NoArgs,
		RunE:  runHashPassword,
	})
	return cmd
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	password, err := prompts.PromptPassword(out, "Enter password")
	if err != nil {
		return err
	}
	if len(password) == 0 {
		return fmt.Errorf("password cannot be empty")
	}
	confirm, err := prompts.PromptPassword(out, "Confirm password")
	if err != nil {
		return err
	}
	if confirm != password {
		return fmt.Errorf("passwords do not match")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	fmt.Fprintln(out, "\nBcrypt hash (use this in users.yaml):")
	fmt.Fprintln(out, hash)

	return nil
}
