package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/criteo/install-registry/internal/cli/exitcodes"
	"github.com/criteo/install-registry/internal/cli/output"
)

type installOptions struct {
	*rootOptions
	source     string
	products   []string
	components []string
}

// newInstallCommand creates the install command
func newInstallCommand(root *rootOptions) *cobra.Command {
	opts := &installOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install products and components",
		Long: `Install the given products and components, read from --source or from the
installation tree itself. Candidates conflicting with the installation are
reported and left inactive; everything else is activated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.source, "source", "", "Update site URL to install from")
	cmd.Flags().StringSliceVar(&opts.products, "product", nil, "Product id_version (repeatable)")
	cmd.Flags().StringSliceVar(&opts.components, "component", nil, "Component id_version (repeatable)")
	return cmd
}

func runInstall(cmd *cobra.Command, opts *installOptions) error {
	if len(opts.products) == 0 && len(opts.components) == 0 {
		return exitcodes.WithCode(exitcodes.ExitInvalidArguments,
			fmt.Errorf("at least one --product or --component is required"))
	}

	env, err := opts.openEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	messages, err := env.session.Install(cmd.Context(), opts.source, opts.products, opts.components)
	if err != nil {
		return err
	}
	return reportMessages(cmd, env.format, "Install", messages)
}

// reportMessages prints the outcome of an install or uninstall. Any message
// means part of the request was not applied.
func reportMessages(cmd *cobra.Command, format output.Format, operation string, messages []string) error {
	out := cmd.OutOrStdout()
	if format == output.FormatTable {
		for _, m := range messages {
			output.PrintWarning(out, m)
		}
		if len(messages) == 0 {
			output.PrintSuccess(out, operation+" completed")
		}
	} else {
		if messages == nil {
			messages = []string{}
		}
		data := map[string][]string{"messages": messages}
		if err := output.Write(out, format, data, nil); err != nil {
			return err
		}
	}

	if len(messages) > 0 {
		return exitcodes.WithCode(exitcodes.ExitConflict,
			fmt.Errorf("%s: %d request(s) not applied", operation, len(messages)))
	}
	return nil
}
