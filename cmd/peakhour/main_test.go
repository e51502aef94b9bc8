package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func execute(args ...string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestUsageErrors(t *testing.T) {
	cases := [][]string{
		{"run", "only-input"},
		{"run", "a", "b", "c"},
		{"run", "--no-such-flag", "a", "b"},
		{"--log-level", "loud", "run", "a", "b"},
		{"run", "--tie-break", "coin", "a", "b"},
		{"flow"},
		{"flow", "-c", "does-not-exist.json", "--mode", "turbo"},
	}
	for _, args := range cases {
		err := execute(args...)
		var ue usageError
		if !errors.As(err, &ue) {
			t.Fatalf("%v: expected usage error, got %v", args, err)
		}
	}
}

func TestRunRefusesFinishedOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(in, []byte("t1,u1,Books,p1,1,1.0,2024-01-01 09:00:00\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(out, "_SUCCESS"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	err := execute("run", "--port", "0", in, out)
	if err == nil {
		t.Fatal("expected failure on existing output")
	}
	var ue usageError
	if errors.As(err, &ue) {
		t.Fatalf("existing output is a job failure, not a usage error: %v", err)
	}
}

func TestFlowCheck(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(`{
  "version": "v1",
  "source": {"type": "file", "files": ["in/*.csv"]},
  "transform": {"reducers": 2, "workers": 2, "tie_break": "smallest"},
  "sink": {"type": "kafka", "kafka": {"brokers": ["localhost:9092"], "topic": "peaks"}}
}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := execute("flow", "-c", good, "--check"); err != nil {
		t.Fatal(err)
	}

	unknown := filepath.Join(dir, "unknown.json")
	if err := os.WriteFile(unknown, []byte(`{"version": "v1", "sorce": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := execute("flow", "-c", unknown, "--check"); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}
