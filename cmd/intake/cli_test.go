package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"intake/internal/queue"
)

func runCLI(t *testing.T, args []string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, output)
	}
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	// A second init must refuse to clobber the file.
	if _, err := runCLI(t, []string{"config", "init", "--path", target}); err == nil {
		t.Fatal("expected error when the target already exists")
	}
}

func TestConfigShowDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")

	out, err := runCLI(t, []string{"config", "show", "--config", missing})
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "defaults (no config file found)")
	requireContains(t, out, "[traversal]")
	requireContains(t, out, "global_timeout_seconds = 15")
}

func TestStatusLabel(t *testing.T) {
	cases := map[queue.Status]string{
		queue.StatusReady:            "Ready",
		queue.StatusDuplicateExact:   "Duplicate Exact",
		queue.StatusDuplicateVariant: "Duplicate Variant",
	}
	for status, want := range cases {
		if got := statusLabel(status); got != want {
			t.Fatalf("statusLabel(%s): got %q want %q", status, got, want)
		}
	}
}

func TestShortFingerprint(t *testing.T) {
	long := strings.Repeat("a", 64) + "_4096"
	short := "abc_12"

	if got := shortFingerprint(short); got != short {
		t.Fatalf("short input must pass through, got %q", got)
	}
	got := shortFingerprint(long)
	if len(got) >= len(long) {
		t.Fatalf("expected truncation, got %q", got)
	}
	if !strings.HasPrefix(got, "aaaaaaaaaaaa") {
		t.Fatalf("expected leading digest bytes, got %q", got)
	}
}
