package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"name=ada", "count=3", "tags=[\"a\",\"b\"]", "ok=true", "raw=3x"})
	if err != nil {
		t.Fatalf("parse params: %v", err)
	}
	if params["name"] != "ada" || params["count"] != float64(3) || params["ok"] != true || params["raw"] != "3x" {
		t.Fatalf("unexpected params %#v", params)
	}
	if tags, ok := params["tags"].([]any); !ok || len(tags) != 2 {
		t.Fatalf("expected decoded tags, got %#v", params["tags"])
	}
	if _, err := parseParams([]string{"missing"}); err == nil {
		t.Fatalf("expected malformed pair error")
	}
}

func TestRunCommand_DispatchesDemoServices(t *testing.T) {
	dsn := testDSN(t)

	out, err := executeDemo(t, "--dsn", dsn, "--log-level", "error", "run", "demo.echo", "greeting=hi")
	if err != nil {
		t.Fatalf("run demo.echo: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("decode result: %v (%s)", err, out)
	}
	echo, _ := result["echo"].(map[string]any)
	if result["status"] != "success" || echo["greeting"] != "hi" {
		t.Fatalf("unexpected result %#v", result)
	}

	out, err = executeDemo(t, "--dsn", dsn, "--log-level", "error", "run", "note.create", "title=groceries")
	if err != nil {
		t.Fatalf("run note.create: %v", err)
	}
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("decode note result: %v", err)
	}
	if result["id"] == "" || result["id"] == nil {
		t.Fatalf("expected created note id, got %#v", result)
	}

	out, err = executeDemo(t, "--dsn", dsn, "--log-level", "error", "calls", "note.create")
	if err != nil {
		t.Fatalf("calls: %v", err)
	}
	var calls []map[string]any
	if err := json.Unmarshal(out, &calls); err != nil {
		t.Fatalf("decode calls: %v", err)
	}
	if len(calls) == 0 {
		t.Fatalf("expected the note.create call to be logged")
	}
}

func TestRunCommand_UnknownServiceFails(t *testing.T) {
	out, err := executeDemo(t, "--dsn", testDSN(t), "--log-level", "error", "run", "missing.service")
	if err == nil {
		t.Fatalf("expected unknown service to fail")
	}
	var result map[string]any
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result["error_code"] != "SERVICE_NOT_FOUND" {
		t.Fatalf("unexpected failure %#v", result)
	}
}

func TestRegisterAndCatalogCommands(t *testing.T) {
	dsn := testDSN(t)
	if _, err := executeDemo(t, "--dsn", dsn, "--log-level", "error",
		"register", "demo.echo.alias", "--location", "demo", "--invoke", "echo",
	); err != nil {
		t.Fatalf("register: %v", err)
	}

	dir := t.TempDir()
	catalog := "services:\n  - name: demo.clock\n    engine: standard\n    location: demo\n    invoke: now\n"
	if err := os.WriteFile(filepath.Join(dir, "clock.yaml"), []byte(catalog), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	out, err := executeDemo(t, "--dsn", dsn, "--catalog", dir, "--log-level", "error", "services", "--engine", "standard")
	if err != nil {
		t.Fatalf("services: %v", err)
	}
	var services []map[string]any
	if err := json.Unmarshal(out, &services); err != nil {
		t.Fatalf("decode services: %v", err)
	}
	names := map[string]bool{}
	for _, desc := range services {
		name, _ := desc["name"].(string)
		names[name] = true
	}
	for _, expected := range []string{"demo.echo", "demo.echo.alias", "demo.clock"} {
		if !names[expected] {
			t.Fatalf("expected %s in %#v", expected, names)
		}
	}
}

func executeDemo(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	root := newRootCommand("test", "test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.Bytes(), err
}

// testDSN points at a file so state survives across command invocations.
func testDSN(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(t.TempDir(), "demo.db"))
}
