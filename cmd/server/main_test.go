package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bendichter/dandi-sql/internal/config"
)

func TestBuildRegistryDefault(t *testing.T) {
	cfg := &config.Config{Limits: config.LimitsConfig{MaxJoinDepth: 3}}
	reg, err := buildRegistry(cfg)
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}
	if reg.MaxDepth() != 3 {
		t.Errorf("max depth = %d, want 3", reg.MaxDepth())
	}
	if len(reg.Entities()) == 0 {
		t.Error("built-in registry has no entities")
	}
}

func TestBuildRegistryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	doc := `max_depth: 2
entities:
  - name: dataset
    table: catalog_dataset
    primary_key: id
    columns:
      - {name: id, type: integer}
      - {name: name, type: text}
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("write schema: %v", err)
	}

	cfg := &config.Config{SchemaFile: path}
	reg, err := buildRegistry(cfg)
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}
	if len(reg.Entities()) != 1 || reg.Entities()[0].Name != "dataset" {
		t.Errorf("unexpected entities: %+v", reg.Entities())
	}
}
