package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Encoder renders a record as pretty-printed text.
type Encoder interface {
	Ext() string
	Encode(v any) ([]byte, error)
}

func NewEncoder(format string) (Encoder, error) {
	switch format {
	case "json", "":
		return jsonEncoder{}, nil
	case "yaml", "yml":
		return yamlEncoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

type jsonEncoder struct{}

func (jsonEncoder) Ext() string { return "json" }

func (jsonEncoder) Encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

type yamlEncoder struct{}

func (yamlEncoder) Ext() string { return "yaml" }

func (yamlEncoder) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
