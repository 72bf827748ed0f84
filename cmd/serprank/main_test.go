package main

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/FranksOps/serprank/internal/serp"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "serprank v"+version) {
		t.Errorf("unexpected version output: %q", out.String())
	}
}

func TestRunCommand_RequiresQueries(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--output-path", t.TempDir() + "/out.jsonl"})

	err := root.Execute()
	var cfgErr *serp.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "queries" {
		t.Fatalf("expected queries ConfigError, got %v", err)
	}
}

func TestRunCommand_RequiresAPIKey(t *testing.T) {
	t.Setenv("SERPER_API_KEY", "")
	t.Setenv("SERPRANK_PROVIDER_API_KEY", "")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "-q", "coffee", "--output-path", t.TempDir() + "/out.jsonl"})

	err := root.Execute()
	var cfgErr *serp.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "provider.api_key" {
		t.Fatalf("expected api key ConfigError, got %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
