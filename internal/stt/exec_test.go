package stt

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "engine.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecEngine_StreamsResults(t *testing.T) {
	script := writeScript(t, `cat > /dev/null
echo '{"text":"hel","idx":0,"finished":false}'
echo '{"text":"hello","idx":0,"finished":true}'
`)

	engine, err := NewExecEngine(script, ExecOptions{Provider: "cpu", Threads: 1}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewExecEngine failed: %v", err)
	}

	s, err := engine.NewStream(context.Background(), 16000)
	if err != nil {
		t.Fatalf("NewStream failed: %v", err)
	}
	if err := s.Write(context.Background(), make([]byte, 3200)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	s.Close()

	results := readAll(t, s)
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[1].Text != "hello" || !results[1].Finished {
		t.Errorf("Unexpected final result %+v", results[1])
	}
}

func TestExecEngine_Args(t *testing.T) {
	e := &ExecEngine{
		argv: []string{"asr-engine", "--verbose"},
		opts: ExecOptions{Provider: "cuda", Threads: 4, Model: "sensevoice", Language: "zh", ModelsRoot: "/models"},
	}

	got := e.args(8000)
	want := []string{"asr-engine", "--verbose", "--sample-rate", "8000", "--provider", "cuda",
		"--threads", "4", "--model", "sensevoice", "--lang", "zh", "--models-root", "/models"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestNewExecEngine_MissingCommand(t *testing.T) {
	if _, err := NewExecEngine("voiceapi-missing-asr-binary", ExecOptions{}, zerolog.Nop()); err == nil {
		t.Error("Expected error for a command that cannot be resolved")
	}
}
