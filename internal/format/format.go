package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output format names accepted by New.
const (
	Text = "text"
	JSON = "json"
	YAML = "yaml"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes JSON output.
type JSONFormatter struct{}

// Write writes JSON payload to a writer.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(payload)
}

// YAMLFormatter writes YAML documents.
type YAMLFormatter struct{}

// Write writes a YAML document to a writer.
func (f YAMLFormatter) Write(w io.Writer, payload any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(payload); err != nil {
		return err
	}
	return enc.Close()
}

// New returns the structured formatter for name. Text has no structured
// formatter, so New returns nil for it and callers print plain lines.
func New(name string) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Text:
		return nil, nil
	case JSON:
		return JSONFormatter{}, nil
	case YAML:
		return YAMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected text, json or yaml)", name)
	}
}
