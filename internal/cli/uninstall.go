package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/criteo/install-registry/internal/cli/exitcodes"
	"github.com/criteo/install-registry/internal/cli/prompts"
	"github.com/criteo/install-registry/internal/manifest"
)

type uninstallOptions struct {
	*rootOptions
	products   []string
	components []string
	file       string
	yes        bool
}

// newUninstallCommand creates the uninstall command
func newUninstallCommand(root *rootOptions) *cobra.Command {
	opts := &uninstallOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Uninstall products and components",
		Long: `Remove products and components from the installation. A product takes along
the components no other product contains. --file reads a properties file with
configurations= and components= lists of id_version tokens.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUninstall(cmd, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.products, "product", nil, "Product id_version (repeatable)")
	cmd.Flags().StringSliceVar(&opts.components, "component", nil, "Component id_version (repeatable)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Properties file listing what to remove")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Skip confirmation prompt")
	return cmd
}

func runUninstall(cmd *cobra.Command, opts *uninstallOptions) error {
	products := append([]string{}, opts.products...)
	components := append([]string{}, opts.components...)
	if opts.file != "" {
		f, err := os.Open(opts.file)
		if err != nil {
			return exitcodes.WithCode(exitcodes.ExitInvalidArguments, fmt.Errorf("failed to open uninstall file: %w", err))
		}
		req, err := manifest.ReadUninstallRequest(f)
		f.Close()
		if err != nil {
			return exitcodes.WithCode(exitcodes.ExitInvalidArguments, err)
		}
		products = append(products, req.Products...)
		components = append(components, req.Components...)
	}
	if len(products) == 0 && len(components) == 0 {
		return exitcodes.WithCode(exitcodes.ExitInvalidArguments,
			fmt.Errorf("nothing to uninstall: use --product, --component or --file"))
	}

	if !opts.yes {
		question := fmt.Sprintf("This will uninstall %s", strings.Join(append(append([]string{}, products...), components...), ", "))
		if !prompts.Confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), question+". Are you sure?") {
			fmt.Fprintln(cmd.ErrOrStderr(), "Uninstall cancelled")
			return nil
		}
	}

	env, err := opts.openEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	messages, err := env.session.Uninstall(cmd.Context(), products, components)
	if err != nil {
		return err
	}
	return reportMessages(cmd, env.format, "Uninstall", messages)
}
