package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/criteo/install-registry/internal/cli/exitcodes"
	"github.com/criteo/install-registry/internal/cli/output"
	"github.com/criteo/install-registry/internal/installer"
	"github.com/criteo/install-registry/internal/models"
)

type listOptions struct {
	*rootOptions
	view  string
	match string
}

// newListCommand creates the list command
func newListCommand(root *rootOptions) *cobra.Command {
	opts := &listOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "list [products|components|dangling]",
		Short: "List installed products and components",
		Long: `List the products or components of the installation tree. The current view
holds what is active; the local view everything present in the tree.
--match filters ids with a glob where '.' separates segments, so org.acme.*
matches org.acme.core but not org.acme.core.nl (use ** for that).`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"products", "components", "dangling"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.view, "view", installer.ViewCurrent, "View to list: current or local")
	cmd.Flags().StringVar(&opts.match, "match", "", "Only list ids matching this glob")
	return cmd
}

func runList(cmd *cobra.Command, opts *listOptions, args []string) error {
	what := "products"
	if len(args) == 1 {
		what = args[0]
	}

	match, err := compileMatch(opts.match)
	if err != nil {
		return exitcodes.WithCode(exitcodes.ExitInvalidArguments, err)
	}

	env, err := opts.openEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch what {
	case "products":
		products, err := env.session.Products(ctx, opts.view)
		if err != nil {
			return err
		}
		products = filterByID(products, match)
		return output.Write(out, env.format, products, func(tw *output.TableWriter) {
			tw.WriteHeader("ID", "VERSION", "LABEL", "COMPONENTS", "UPGRADE")
			for _, p := range products {
				tw.WriteRow(p.ID, p.Version.String(), p.Label, strconv.Itoa(len(p.Entries)), strconv.FormatBool(p.AllowUpgrade))
			}
		})

	case "components", "dangling":
		var components []*models.Component
		if what == "dangling" {
			components, err = env.session.Dangling(ctx)
		} else {
			components, err = env.session.Components(ctx, opts.view)
		}
		if err != nil {
			return err
		}
		components = filterByID(components, match)
		return output.Write(out, env.format, components, func(tw *output.TableWriter) {
			tw.WriteHeader("ID", "VERSION", "LABEL", "PLUGINS", "FRAGMENTS")
			for _, c := range components {
				tw.WriteRow(c.ID, c.Version.String(), c.Label, strconv.Itoa(len(c.Plugins)), strconv.Itoa(len(c.Fragments)))
			}
		})

	default:
		return exitcodes.WithCode(exitcodes.ExitInvalidArguments,
			fmt.Errorf("unknown listing %q (products, components or dangling)", what))
	}
}

func compileMatch(pattern string) (glob.Glob, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	g, err := glob.Compile(pattern, '.')
	if err != nil {
		return nil, fmt.Errorf("invalid --match pattern %q: %w", pattern, err)
	}
	return g, nil
}

func filterByID[T models.Identified](items []T, match glob.Glob) []T {
	if match == nil {
		return items
	}
	var out []T
	for _, item := range items {
		if match.Match(item.UniqueID()) {
			out = append(out, item)
		}
	}
	return out
}
