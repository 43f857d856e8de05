package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type row struct {
	ID      string `json:"id" yaml:"id"`
	Version string `json:"version" yaml:"version"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatTable},
		{in: "table", want: FormatTable},
		{in: "json", want: FormatJSON},
		{in: "yaml", want: FormatYAML},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWrite(t *testing.T) {
	data := []row{{ID: "org.acme.core", Version: "1.0.0"}, {ID: "B", Version: "2.1.0"}}
	table := func(tw *TableWriter) {
		tw.WriteHeader("ID", "VERSION")
		for _, r := range data {
			tw.WriteRow(r.ID, r.Version)
		}
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatTable, data, table))
		assert.Equal(t, "ID             VERSION\norg.acme.core  1.0.0\nB              2.1.0\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatJSON, data, table))
		var resp struct {
			Success bool  `json:"success"`
			Data    []row `json:"data"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, data, resp.Data)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatYAML, data, table))
		var resp struct {
			Success bool  `yaml:"success"`
			Data    []row `yaml:"data"`
		}
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, data, resp.Data)
	})
}

func TestPrintHelpers(t *testing.T) {
	var buf bytes.Buffer
	PrintSuccess(&buf, "installed")
	PrintWarning(&buf, "conflict")
	PrintError(&buf, "failed")
	assert.Equal(t, "✓ installed\n⚠ conflict\n✗ failed\n", buf.String())
}
