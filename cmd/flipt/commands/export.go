package commands

import (
	"fmt"
	"os"

	"github.com/TimurManjosov/goflipt/evaluation"
	"github.com/TimurManjosov/goflipt/internal/cli"
	"github.com/spf13/cobra"
)

func newExportCmd(opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a namespace snapshot to a file",
		Long: `Export the raw snapshot of a namespace to a YAML or JSON file.

The table format is not meaningful for a snapshot; it falls back to YAML.

Examples:
  flipt export --namespace default --output snapshot.yaml
  flipt export --namespace default --output snapshot.json --format json
  flipt export --reference main > snapshot.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, profile, err := opts.client()
			if err != nil {
				return err
			}

			snapshot, err := c.Evaluation.Snapshot(cmd.Context(), &evaluation.EvaluationNamespaceSnapshotRequest{
				Key:       profile.Namespace,
				Reference: opts.reference,
			})
			if err != nil {
				return fmt.Errorf("failed to export namespace '%s': %w", profile.Namespace, err)
			}

			if output == "" || output == "-" {
				if err := cli.Encode(cmd.OutOrStdout(), snapshot, opts.outputFormat); err != nil {
					return fmt.Errorf("failed to encode snapshot: %w", err)
				}
				return nil
			}

			if err := writeSnapshot(output, snapshot, opts.outputFormat); err != nil {
				return err
			}

			if !opts.quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d flags from namespace '%s' to %s\n",
					len(snapshot.Flags), profile.Namespace, output)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

// writeSnapshot encodes the snapshot into path. A failed close is reported:
// buffered data may not have reached the disk.
func writeSnapshot(path string, snapshot *evaluation.EvaluationNamespaceSnapshot, format cli.OutputFormat) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := cli.Encode(f, snapshot, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
