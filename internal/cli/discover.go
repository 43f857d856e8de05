package cli

import (
	"github.com/spf13/cobra"

	"github.com/criteo/install-registry/internal/cli/output"
)

// newDiscoverCommand creates the discover command
func newDiscoverCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Find newer versions on update sites",
		Long: `Ask the update sites of the active products and of dangling components for
newer versions, and list what could be installed together with the outcome of
the eligibility check against the current installation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd, opts)
		},
	}
}

func runDiscover(cmd *cobra.Command, opts *rootOptions) error {
	env, err := opts.openEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	list, err := env.session.Discover(cmd.Context())
	if err != nil {
		return err
	}

	return output.Write(cmd.OutOrStdout(), env.format, list, func(tw *output.TableWriter) {
		tw.WriteHeader("KIND", "KEY", "RESULT", "SOURCE")
		for _, item := range list.Items {
			tw.WriteRow(string(item.Ref.Kind), item.Ref.Key.String(), item.Result.String(), item.Source)
		}
	})
}
