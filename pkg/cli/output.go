package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-datasources/pkg/models"
)

// Output formats accepted by -o.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// encode writes v as indented JSON or as YAML. Values go through their JSON
// encoding first so both formats share the wire field names and order.
func encode(w io.Writer, format string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	switch format {
	case FormatYAML:
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return fmt.Errorf("failed to convert output to yaml: %w", err)
		}
		blockStyle(&node)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return fmt.Errorf("failed to write yaml: %w", err)
		}
		return enc.Close()
	default:
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return fmt.Errorf("failed to indent output: %w", err)
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(w)
		return err
	}
}

// blockStyle drops the flow and quoting styles the JSON source imposes so the
// encoder emits block YAML, quoting only where a scalar needs it.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// readDatasource loads a datasource definition from a JSON or YAML file.
func readDatasource(path string) (models.Datasource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("failed to convert %s: %w", path, err)
		}
	}

	ds, err := models.DecodeDatasource(data)
	if err != nil {
		return nil, fmt.Errorf("invalid datasource in %s: %w", path, err)
	}
	return ds, nil
}
