package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/TimurManjosov/goflipt/evaluation"
	"github.com/TimurManjosov/goflipt/internal/cli"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// evalOptions holds the flags shared by the single-flag commands
type evalOptions struct {
	entityID  string
	context   map[string]string
	requestID string
}

func (e *evalOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&e.entityID, "entity", "", "Entity ID to evaluate for (required)")
	cmd.Flags().StringToStringVar(&e.context, "context", nil, "Evaluation context as key=value pairs")
	cmd.Flags().StringVar(&e.requestID, "request-id", "", "Request ID (default: random UUID)")
	_ = cmd.MarkFlagRequired("entity")
}

func (e *evalOptions) request(namespace, flagKey, reference string) *evaluation.EvaluationRequest {
	requestID := e.requestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return &evaluation.EvaluationRequest{
		RequestID:    requestID,
		NamespaceKey: namespace,
		FlagKey:      flagKey,
		EntityID:     e.entityID,
		Context:      e.context,
		Reference:    reference,
	}
}

func newBooleanCmd(opts *globalOptions) *cobra.Command {
	var eval evalOptions

	cmd := &cobra.Command{
		Use:   "boolean <flag>",
		Short: "Evaluate a boolean flag",
		Long: `Evaluate a boolean flag for an entity.

Examples:
  flipt boolean flag_boolean --entity user-1
  flipt boolean flag_boolean --entity user-1 --context fizz=buzz --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, profile, err := opts.client()
			if err != nil {
				return err
			}

			req := eval.request(profile.Namespace, args[0], opts.reference)
			resp, err := c.Evaluation.Boolean(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to evaluate flag '%s': %w", args[0], err)
			}

			return opts.print(cmd, func(w io.Writer, format cli.OutputFormat) error {
				return cli.PrintBoolean(w, resp, format)
			})
		},
	}
	eval.bind(cmd)

	return cmd
}

func newVariantCmd(opts *globalOptions) *cobra.Command {
	var eval evalOptions

	cmd := &cobra.Command{
		Use:   "variant <flag>",
		Short: "Evaluate a variant flag",
		Long: `Evaluate a variant flag for an entity.

Examples:
  flipt variant flag1 --entity user-1
  flipt variant flag1 --entity user-1 --context plan=pro --reference main`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, profile, err := opts.client()
			if err != nil {
				return err
			}

			req := eval.request(profile.Namespace, args[0], opts.reference)
			resp, err := c.Evaluation.Variant(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to evaluate flag '%s': %w", args[0], err)
			}

			return opts.print(cmd, func(w io.Writer, format cli.OutputFormat) error {
				return cli.PrintVariant(w, resp, format)
			})
		},
	}
	eval.bind(cmd)

	return cmd
}

func newBatchCmd(opts *globalOptions) *cobra.Command {
	var (
		entityID  string
		requestID string
	)

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Evaluate several flags in one call",
		Long: `Evaluate a list of requests read from a YAML or JSON file ("-" reads stdin).

Requests without a namespace use the active namespace; requests without an
entity use --entity. Results are printed in request order.

YAML file format:
  - flag_key: flag1
    entity_id: user-1
    context:
      fizz: buzz
  - flag_key: flag_boolean
    namespace_key: payments

JSON files use the wire field names (flagKey, entityId, namespaceKey, context).

Examples:
  flipt batch requests.yaml
  flipt batch requests.json --entity user-1 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requests, err := loadBatchFile(args[0])
			if err != nil {
				return err
			}
			if len(requests) == 0 {
				return fmt.Errorf("no requests found in %s", args[0])
			}

			c, profile, err := opts.client()
			if err != nil {
				return err
			}

			for i := range requests {
				if requests[i].NamespaceKey == "" {
					requests[i].NamespaceKey = profile.Namespace
				}
				if requests[i].EntityID == "" {
					requests[i].EntityID = entityID
				}
				if requests[i].EntityID == "" {
					return fmt.Errorf("request %d (%s): entity is required, set entity_id or --entity", i+1, requests[i].FlagKey)
				}
			}

			if requestID == "" {
				requestID = uuid.NewString()
			}

			resp, err := c.Evaluation.Batch(cmd.Context(), &evaluation.BatchEvaluationRequest{
				RequestID: requestID,
				Requests:  requests,
				Reference: opts.reference,
			})
			if err != nil {
				return fmt.Errorf("failed to evaluate batch: %w", err)
			}

			return opts.print(cmd, func(w io.Writer, format cli.OutputFormat) error {
				return cli.PrintBatch(w, resp, format)
			})
		},
	}

	cmd.Flags().StringVar(&entityID, "entity", "", "Default entity ID for requests that omit one")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Request ID (default: random UUID)")

	return cmd
}

// loadBatchFile reads a list of requests. JSON files use the wire field
// names; anything else is parsed as YAML.
func loadBatchFile(path string) ([]evaluation.EvaluationRequest, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var requests []evaluation.EvaluationRequest
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &requests); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &requests); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	for i, r := range requests {
		if r.FlagKey == "" {
			return nil, fmt.Errorf("request %d: flag key is required", i+1)
		}
	}

	return requests, nil
}
