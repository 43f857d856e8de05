package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/criteo/install-registry/internal/cli/output"
)

// newActivationCommand creates the activation command group
func newActivationCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activation",
		Short: "Inspect the activation record",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show what is active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActivationShow(cmd, opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set-application <application-id>",
		Short: "Record the application of the running product",
		Long: `Record the application id of the running product. The product providing it
cannot be uninstalled. An empty id clears it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActivationSetApplication(cmd, opts, args[0])
		},
	})
	return cmd
}

func runActivationShow(cmd *cobra.Command, opts *rootOptions) error {
	env, err := opts.openEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	state := env.session.Activation()
	return output.Write(cmd.OutOrStdout(), env.format, state, func(tw *output.TableWriter) {
		tw.WriteHeader("KIND", "ACTIVE")
		tw.WriteRow("products", strings.Join(state.Products, " "))
		tw.WriteRow("components", strings.Join(state.Components, " "))
		tw.WriteRow("plugins", strings.Join(state.Plugins, " "))
		tw.WriteRow("fragments", strings.Join(state.Fragments, " "))
		tw.WriteRow("dangling", strings.Join(state.Dangling, " "))
		if state.Application != "" {
			tw.WriteRow("application", state.Application)
		}
	})
}

func runActivationSetApplication(cmd *cobra.Command, opts *rootOptions, app string) error {
	env, err := opts.openEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.session.SetDominantApplication(cmd.Context(), app); err != nil {
		return err
	}
	if env.format == output.FormatTable {
		output.PrintSuccess(cmd.OutOrStdout(), "Application set to "+app)
		return nil
	}
	return output.Write(cmd.OutOrStdout(), env.format, env.session.Activation(), nil)
}
