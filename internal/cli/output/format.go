package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Format selects how command results are printed
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates an --output value
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("invalid output format %q (table, json or yaml)", s)
	}
}

// JSONResponse is the standard JSON output format
type JSONResponse struct {
	Success bool   `json:"success" yaml:"success"`
	Data    any    `json:"data" yaml:"data"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Write prints data in format. table renders the table form and is only
// called for FormatTable.
func Write(w io.Writer, format Format, data any, table func(*TableWriter)) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(JSONResponse{Success: true, Data: data}); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(JSONResponse{Success: true, Data: data}); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return encoder.Close()
	default:
		tw := NewTableWriter(w)
		table(tw)
		return tw.Flush()
	}
}
