package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/criteo/install-registry/internal/cli/exitcodes"
	"github.com/criteo/install-registry/internal/cli/output"
	"github.com/criteo/install-registry/internal/models"
)

// newCheckCommand creates the check command
func newCheckCommand(opts *rootOptions) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "check <product|component> <id_version>",
		Short: "Check whether a product or component can be installed",
		Long: `Evaluate installing a product or component from --source (the installation
tree itself when omitted) over the current installation, and report whether it
could later be upgraded or removed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, source, args)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Update site URL to read the candidate from")
	return cmd
}

func runCheck(cmd *cobra.Command, opts *rootOptions, source string, args []string) error {
	kind := models.Kind(args[0])
	if kind != models.KindProduct && kind != models.KindComponent {
		return exitcodes.WithCode(exitcodes.ExitInvalidArguments,
			fmt.Errorf("kind must be product or component, got %q", args[0]))
	}

	env, err := opts.openEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	check, err := env.session.Check(cmd.Context(), source, kind, args[1])
	if err != nil {
		return err
	}

	return output.Write(cmd.OutOrStdout(), env.format, check, func(tw *output.TableWriter) {
		conflicting := make([]string, len(check.Conflicting))
		for i, ref := range check.Conflicting {
			conflicting[i] = ref.String()
		}
		tw.WriteHeader("CANDIDATE", "RESULT", "CONFLICTS WITH", "UPDATEABLE", "REMOVABLE")
		tw.WriteRow(check.Ref.String(), check.Result.String(), strings.Join(conflicting, ","),
			strconv.FormatBool(check.Updateable), strconv.FormatBool(check.Removable))
	})
}
