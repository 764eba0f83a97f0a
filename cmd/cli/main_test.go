package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommandAdmits(t *testing.T) {
	out, err := runCLI(t, "validate", "SELECT id FROM dandisets_dandiset")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	var res struct {
		Valid      bool   `json:"valid"`
		SecuredSQL string `json:"secured_sql"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("parse output: %v\n%s", err, out)
	}
	if !res.Valid || res.SecuredSQL != "SELECT id FROM dandisets_dandiset LIMIT 1000" {
		t.Errorf("unexpected verdict: %+v", res)
	}
}

func TestValidateCommandRejects(t *testing.T) {
	out, err := runCLI(t, "validate", "DROP TABLE dandisets_dandiset")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, `"valid": false`) || !strings.Contains(out, "NotReadOnly") {
		t.Errorf("expected a NotReadOnly rejection, got:\n%s", out)
	}
}

func TestValidateCommandFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.sql")
	if err := os.WriteFile(path, []byte("SELECT name FROM dandisets_speciestype LIMIT 5"), 0644); err != nil {
		t.Fatalf("write query: %v", err)
	}

	out, err := runCLI(t, "validate", "-f", path)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, `"valid": true`) {
		t.Errorf("expected admission, got:\n%s", out)
	}
}

func TestCompileCommand(t *testing.T) {
	out, err := runCLI(t, "compile",
		`{"model": "dandiset", "fields": ["id", "name"], "filters": {"is_latest": true}}`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	var res struct {
		Valid bool   `json:"valid"`
		SQL   string `json:"sql"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("parse output: %v\n%s", err, out)
	}
	if !res.Valid || !strings.Contains(res.SQL, "FROM dandisets_dandiset AS t0") {
		t.Errorf("unexpected plan: %+v", res)
	}
}

func TestCompileCommandRejectsUnknownModel(t *testing.T) {
	out, err := runCLI(t, "compile", `{"model": "secrets"}`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, "UnknownModel") {
		t.Errorf("expected UnknownModel, got:\n%s", out)
	}
}

func TestSchemaCommand(t *testing.T) {
	out, err := runCLI(t, "schema")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	for _, want := range []string{`"dandiset"`, `"dandisets_assetdandiset"`, `"icontains"`, `"array_agg"`} {
		if !strings.Contains(out, want) {
			t.Errorf("schema output missing %s", want)
		}
	}
}
