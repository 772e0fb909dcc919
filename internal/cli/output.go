package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/TimurManjosov/goflipt/evaluation"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// ParseFormat validates a --format value
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (use table, json or yaml)", s)
	}
}

// NamespaceFlags groups the flags listed for one namespace
type NamespaceFlags struct {
	Namespace string            `json:"namespace" yaml:"namespace"`
	Flags     []evaluation.Flag `json:"flags" yaml:"flags"`
}

// PrintFlags outputs flags in the specified format
func PrintFlags(w io.Writer, groups []NamespaceFlags, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, map[string][]NamespaceFlags{"namespaces": groups})
	case FormatYAML:
		return printYAML(w, map[string][]NamespaceFlags{"namespaces": groups})
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Namespace", "Key", "Name", "Type", "Enabled", "Description")
		for _, g := range groups {
			for _, flag := range g.Flags {
				if err := table.Append(
					g.Namespace,
					flag.Key,
					flag.Name,
					flag.Type.String(),
					strconv.FormatBool(flag.Enabled),
					truncate(flag.Description, 40),
				); err != nil {
					return err
				}
			}
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintBoolean outputs a boolean evaluation result
func PrintBoolean(w io.Writer, resp *evaluation.BooleanEvaluationResponse, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, resp)
	case FormatYAML:
		return printYAML(w, resp)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Flag", "Enabled", "Reason", "Duration (ms)")
		if err := table.Append(
			resp.FlagKey,
			strconv.FormatBool(resp.Enabled),
			resp.Reason.String(),
			formatMillis(resp.RequestDurationMillis),
		); err != nil {
			return err
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintVariant outputs a variant evaluation result
func PrintVariant(w io.Writer, resp *evaluation.VariantEvaluationResponse, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, resp)
	case FormatYAML:
		return printYAML(w, resp)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Flag", "Match", "Variant", "Reason", "Segments", "Attachment")
		if err := table.Append(
			resp.FlagKey,
			strconv.FormatBool(resp.Match),
			resp.VariantKey,
			resp.Reason.String(),
			strings.Join(resp.SegmentKeys, ","),
			truncate(resp.VariantAttachment, 40),
		); err != nil {
			return err
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintBatch outputs batch results, one row per item in response order
func PrintBatch(w io.Writer, resp *evaluation.BatchEvaluationResponse, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, resp)
	case FormatYAML:
		return printYAML(w, resp)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("#", "Type", "Flag", "Result", "Reason")
		for i, item := range resp.Responses {
			if err := table.Append(batchRow(i, item)...); err != nil {
				return err
			}
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// Encode writes data as a JSON or YAML document; table falls back to YAML
func Encode(w io.Writer, data interface{}, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, data)
	case FormatYAML, FormatTable:
		return printYAML(w, data)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func batchRow(i int, item evaluation.EvaluationResponse) []any {
	row := []any{strconv.Itoa(i + 1), item.Type().String(), item.FlagKey(), "", ""}
	switch p := item.Payload().(type) {
	case *evaluation.BooleanEvaluationResponse:
		row[3] = "enabled=" + strconv.FormatBool(p.Enabled)
		row[4] = p.Reason.String()
	case *evaluation.VariantEvaluationResponse:
		if p.Match {
			row[3] = "variant=" + p.VariantKey
		} else {
			row[3] = "no match"
		}
		row[4] = p.Reason.String()
	case *evaluation.ErrorEvaluationResponse:
		row[3] = "error"
		row[4] = p.Reason.String()
	}
	return row
}

func printJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// printYAML renders data with the same field names as the JSON output.
func printYAML(w io.Writer, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}

	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(generic)
}

// truncate shortens s to at most n runes, never splitting a character.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n-3]) + "..."
	}
	return s
}

func formatMillis(ms float64) string {
	return strconv.FormatFloat(ms, 'f', 2, 64)
}
