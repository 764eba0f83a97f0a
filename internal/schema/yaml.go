package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk registry document.
type File struct {
	MaxDepth int      `yaml:"max_depth"`
	Entities []Entity `yaml:"entities"`
}

// LoadYAML builds a registry from a YAML document on disk. Deployments that
// expose a different catalog surface than the built-in one supply their own
// file via SCHEMA_FILE.
func LoadYAML(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema file: %w", err)
	}
	defer f.Close()
	return ReadYAML(f)
}

// ReadYAML builds a registry from a YAML stream.
func ReadYAML(r io.Reader) (*Registry, error) {
	var doc File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode schema file: %w", err)
	}

	var opts []Option
	if doc.MaxDepth > 0 {
		opts = append(opts, WithMaxDepth(doc.MaxDepth))
	}
	reg, err := New(doc.Entities, opts...)
	if err != nil {
		return nil, fmt.Errorf("schema file: %w", err)
	}
	return reg, nil
}
