package mcfconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mcf-go/mcf/mcfconfig"
)

func TestProcessConfigValidateRejectsBadLogLevel(t *testing.T) {
	c := &mcfconfig.ProcessConfig{LogLevel: "verbose", LogFormat: "json"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestProcessConfigValidateRejectsBadLogFormat(t *testing.T) {
	c := &mcfconfig.ProcessConfig{LogLevel: "info", LogFormat: "xml"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for invalid log format")
	}
}

func TestProcessConfigValidateRejectsNegativeQueue(t *testing.T) {
	c := &mcfconfig.ProcessConfig{LogLevel: "info", LogFormat: "json", RecorderMaxQueue: -1}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for negative recorder queue")
	}
}

func TestProcessConfigValidateAccepts(t *testing.T) {
	c := &mcfconfig.ProcessConfig{LogLevel: "debug", LogFormat: "pretty", RecorderMaxQueue: 100}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func writeJSON(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestMergeJSONLeavesOverrideRoots(t *testing.T) {
	root := t.TempDir()
	leaf := t.TempDir()
	writeJSON(t, root, "app.json", `{"logLevel":"info","nested":{"a":1,"b":2}}`)
	writeJSON(t, leaf, "app.json", `{"logLevel":"debug","nested":{"b":3}}`)

	merged, err := mcfconfig.MergeJSON("app.json", []string{root, leaf})
	if err != nil {
		t.Fatalf("MergeJSON: %v", err)
	}
	if merged["logLevel"] != "debug" {
		t.Fatalf("expected leaf to override logLevel, got %v", merged["logLevel"])
	}
	nested := merged["nested"].(map[string]any)
	if nested["a"].(float64) != 1 {
		t.Fatalf("expected root's nested.a to survive merge, got %v", nested["a"])
	}
	if nested["b"].(float64) != 3 {
		t.Fatalf("expected leaf's nested.b to override, got %v", nested["b"])
	}
}

func TestMergeJSONMissingFilesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	merged, err := mcfconfig.MergeJSON("missing.json", []string{dir, "/nonexistent/dir"})
	if err != nil {
		t.Fatalf("MergeJSON: %v", err)
	}
	if len(merged) != 0 {
		t.Fatalf("expected empty merged document, got %v", merged)
	}
}

func TestMergeJSONInvalidJSONErrors(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "bad.json", `{not valid json`)
	if _, err := mcfconfig.MergeJSON("bad.json", []string{dir}); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
