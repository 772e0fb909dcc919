package commands

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/TimurManjosov/goflipt/evaluation"
	"github.com/TimurManjosov/goflipt/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newFlagsCmd(opts *globalOptions) *cobra.Command {
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:   "flags [namespace...]",
		Short: "List the flags of one or more namespaces",
		Long: `List flags from the namespace snapshot. With several namespaces the
snapshots are fetched concurrently and every row is tagged with its namespace.

Examples:
  flipt flags
  flipt flags default payments --format json
  flipt flags --namespace payments --enabled-only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, profile, err := opts.client()
			if err != nil {
				return err
			}

			namespaces := args
			if len(namespaces) == 0 {
				namespaces = []string{profile.Namespace}
			}

			groups := make([]cli.NamespaceFlags, len(namespaces))
			g, ctx := errgroup.WithContext(cmd.Context())
			for i, ns := range namespaces {
				g.Go(func() error {
					flags, err := c.Evaluation.ListFlags(ctx, &evaluation.EvaluationNamespaceSnapshotRequest{
						Key:       ns,
						Reference: opts.reference,
					})
					if err != nil {
						return fmt.Errorf("failed to list flags in namespace '%s': %w", ns, err)
					}
					groups[i] = cli.NamespaceFlags{Namespace: ns, Flags: flags}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			total := 0
			for i := range groups {
				groups[i].Flags = filterFlags(groups[i].Flags, enabledOnly)
				total += len(groups[i].Flags)
			}

			if opts.quiet {
				return nil
			}
			if total == 0 && opts.outputFormat == cli.FormatTable {
				fmt.Fprintln(cmd.OutOrStdout(), "No flags found")
				return nil
			}
			return opts.print(cmd, func(w io.Writer, format cli.OutputFormat) error {
				return cli.PrintFlags(w, groups, format)
			})
		},
	}

	cmd.Flags().BoolVar(&enabledOnly, "enabled-only", false, "Show only enabled flags")

	return cmd
}

// filterFlags drops disabled flags when requested and sorts by key.
func filterFlags(flags []evaluation.Flag, enabledOnly bool) []evaluation.Flag {
	out := make([]evaluation.Flag, 0, len(flags))
	for _, f := range flags {
		if enabledOnly && !f.Enabled {
			continue
		}
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b evaluation.Flag) int {
		return strings.Compare(a.Key, b.Key)
	})
	return out
}
