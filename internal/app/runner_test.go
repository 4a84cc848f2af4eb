package app

import (
	"bytes"
	"encoding/json"
	"testing"
)

// isolate points every on-disk path and key source at a temp dir so runs
// never touch the developer's real state.
func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_STATE_HOME", dir)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("BRIDGE_LLM_API_KEY", "")
	t.Setenv("BRIDGE_KEY_SOURCE", "ephemeral")
	t.Setenv("BRIDGE_PHASE_DELAY", "0s")
	t.Setenv("BRIDGE_KAFKA_BROKERS", "")
}

func run(t *testing.T, args ...string) (int, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := NewRunnerWithWriters(&stdout, &stderr).Run(args)
	return code, &stdout, &stderr
}

func TestTrimRootPath(t *testing.T) {
	if got := trimRootPath("bridge chains list"); got != "chains list" {
		t.Fatalf("unexpected trim result: %s", got)
	}
	if got := trimRootPath("bridge"); got != "bridge" {
		t.Fatalf("unexpected trim result for root: %s", got)
	}
}

func TestRunnerChainsList(t *testing.T) {
	isolate(t)
	code, stdout, stderr := run(t, "chains", "list", "--results-only")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var chains []map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &chains); err != nil {
		t.Fatalf("failed to parse output json: %v output=%s", err, stdout.String())
	}
	if len(chains) != 8 {
		t.Fatalf("expected 8 chains, got %d", len(chains))
	}
}

func TestRunnerTokensRequiresChain(t *testing.T) {
	isolate(t)
	code, _, stderr := run(t, "tokens", "list")
	if code != 2 {
		t.Fatalf("expected usage exit 2, got %d stderr=%s", code, stderr.String())
	}
}

func TestRunnerErrorEnvelopeIgnoresResultsOnly(t *testing.T) {
	isolate(t)
	code, _, stderr := run(t, "chains", "list", "--enable-commands", "history", "--results-only")
	if code != 16 {
		t.Fatalf("expected exit 16, got %d stderr=%s", code, stderr.String())
	}
	var env map[string]any
	if err := json.Unmarshal(stderr.Bytes(), &env); err != nil {
		t.Fatalf("failed to parse error envelope: %v output=%s", err, stderr.String())
	}
	if env["success"] != false {
		t.Fatalf("expected success=false, got %v", env["success"])
	}
	errBody, _ := env["error"].(map[string]any)
	if errBody["type"] != "command_blocked" {
		t.Fatalf("unexpected error body: %+v", errBody)
	}
}

func TestRunnerVersion(t *testing.T) {
	isolate(t)
	code, stdout, _ := run(t, "version")
	if code != 0 || stdout.Len() == 0 {
		t.Fatalf("expected version output, got code=%d out=%q", code, stdout.String())
	}
}

func TestRunnerSchemaSubtree(t *testing.T) {
	isolate(t)
	code, stdout, stderr := run(t, "schema", "run", "--results-only")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var doc struct {
		Command struct {
			Path  string `json:"path"`
			Flags []struct {
				Name string `json:"name"`
			} `json:"flags"`
		} `json:"command"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if doc.Command.Path != "bridge run" {
		t.Fatalf("unexpected path: %s", doc.Command.Path)
	}
	names := map[string]bool{}
	for _, f := range doc.Command.Flags {
		names[f.Name] = true
	}
	if !names["yes"] || !names["chain"] {
		t.Fatalf("expected run flags, got %+v", doc.Command.Flags)
	}
}
