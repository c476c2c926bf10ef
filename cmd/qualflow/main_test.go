package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const program = `classes:
  - name: Node
    fields:
      - name: next
        type: "@Nullable Node"
      - name: label
        type: String
        init: '"node"'
    methods:
      - name: <init>
        body: []
      - name: unsafe
        returns: String
        body:
          - return next.label
      - name: redundant
        params: [Node other]
        returns: boolean
        body:
          - return other != null
`

const safeProgram = `classes:
  - name: Node
    fields:
      - name: label
        type: String
        init: '"node"'
    methods:
      - name: <init>
        body: []
      - name: get
        returns: String
        body:
          - return label
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// run executes the CLI with args and returns stdout, stderr and the exit
// code main would use.
func run(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	c := newCLI()
	var out, errOut bytes.Buffer
	c.root.SetOut(&out)
	c.root.SetErr(&errOut)
	c.root.SetArgs(append([]string{"--color", "off"}, args...))
	err := c.execute()
	var exit *exitError
	switch {
	case err == nil:
	case errors.As(err, &exit):
		code = exit.code
	default:
		errOut.WriteString(err.Error())
		code = 1
	}
	return out.String(), errOut.String(), code
}

func TestCheckExitCodes(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", program)
	good := writeFile(t, dir, "good.yaml", safeProgram)

	out, _, code := run(t, "check", "--format", "short", bad)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out, "ERROR QF5001") || strings.Contains(out, "QF5005") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, stderr, code := run(t, "check", good)
	if code != 0 || out != "" {
		t.Errorf("clean program: code %d, output %q", code, out)
	}
	if !strings.Contains(stderr, "0 errors, 0 warnings") {
		t.Errorf("summary = %q", stderr)
	}
	_, stderr, _ = run(t, "--quiet", "check", good)
	if stderr != "" {
		t.Errorf("quiet run printed %q", stderr)
	}
}

func TestCheckFormats(t *testing.T) {
	bad := writeFile(t, t.TempDir(), "bad.yaml", program)

	out, _, _ := run(t, "check", "--format", "json", "--lint", "redundant-null-comparison", bad)
	var payload struct {
		Count       int
		Diagnostics []struct{ Code string }
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if payload.Count != 2 {
		t.Errorf("count = %d, want 2: %+v", payload.Count, payload.Diagnostics)
	}

	out, _, _ = run(t, "check", "--format", "pretty", bad)
	if !strings.Contains(out, "return next.label") || !strings.Contains(out, "^~~~") {
		t.Errorf("pretty output lacks snippet:\n%s", out)
	}

	_, stderr, code := run(t, "check", "--format", "xml", bad)
	if code != 1 || !strings.Contains(stderr, "unknown format") {
		t.Errorf("bad format: code %d, stderr %q", code, stderr)
	}
}

func TestWarningFlags(t *testing.T) {
	good := writeFile(t, t.TempDir(), "redundant.yaml", `classes:
  - name: A
    methods:
      - name: <init>
        body: []
      - name: r
        params: [A other]
        returns: boolean
        body:
          - return other != null
`)
	lint := []string{"check", "--format", "short", "--lint", "all"}
	if out, _, code := run(t, append(lint, good)...); code != 0 || !strings.Contains(out, "WARNING QF5005") {
		t.Errorf("lint run: code %d\n%s", code, out)
	}
	if _, _, code := run(t, append(lint, "--fail-on", "warning", good)...); code != 1 {
		t.Errorf("--fail-on warning: code %d", code)
	}
	if out, _, code := run(t, append(lint, "--warnings-as-errors", good)...); code != 1 || !strings.Contains(out, "ERROR QF5005") {
		t.Errorf("--warnings-as-errors: code %d\n%s", code, out)
	}
	if out, _, _ := run(t, append(lint, "--no-warnings", good)...); out != "" {
		t.Errorf("--no-warnings kept %q", out)
	}
	if _, stderr, code := run(t, append(lint, "--no-warnings", "--warnings-as-errors", good)...); code != 1 || !strings.Contains(stderr, "cannot be used together") {
		t.Errorf("conflicting flags: code %d, %q", code, stderr)
	}
}

func TestManifestSettings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "qualflow.toml", "[check]\nlint = [\"all\"]\n")
	bad := writeFile(t, dir, "bad.yaml", program)

	out, _, _ := run(t, "check", "--format", "short", bad)
	if !strings.Contains(out, "QF5005") {
		t.Errorf("manifest lint ignored:\n%s", out)
	}
	out, _, _ = run(t, "check", "--format", "short", "--lint", "none", bad)
	if strings.Contains(out, "QF5005") {
		t.Errorf("flag did not override manifest:\n%s", out)
	}
}

func TestCustomCheckerFromManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "qualflow.toml", `
[[hierarchy]]
name = "tainting"
description = "tainted strings"
defaults = { other = "Untainted" }

[[qualifier]]
hierarchy = "tainting"
name = "Untainted"
supers = ["Tainted"]

[[qualifier]]
hierarchy = "tainting"
name = "Tainted"
`)
	out, _, code := run(t, "hierarchy", "--dir", dir)
	if code != 0 || !strings.Contains(out, "nullness") || !strings.Contains(out, "tainting  tainted strings") {
		t.Errorf("checker list:\n%s", out)
	}
	out, _, _ = run(t, "hierarchy", "--dir", dir, "tainting")
	if !strings.Contains(out, "@Untainted <: @Tainted") {
		t.Errorf("hierarchy dump:\n%s", out)
	}

	good := writeFile(t, dir, "good.yaml", safeProgram)
	if _, stderr, code := run(t, "check", "--checker", "tainting", good); code != 0 {
		t.Errorf("custom checker run failed: %s", stderr)
	}
}

func TestNullnessHierarchy(t *testing.T) {
	out, _, _ := run(t, "hierarchy", "nullness", "--dir", t.TempDir())
	for _, want := range []string{"checker nullness", "lints: redundant-null-comparison", "@MonotonicNonNull <: @Nullable", "poly @PolyNull"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestDumpCommands(t *testing.T) {
	bad := writeFile(t, t.TempDir(), "bad.yaml", program)

	out, _, code := run(t, "cfg", "--method", "Node.unsafe", bad)
	if code != 1 {
		t.Errorf("cfg exit code = %d, want 1", code)
	}
	if !strings.HasPrefix(out, "graph Node.unsafe") || strings.Contains(out, "Node.redundant") {
		t.Errorf("cfg output:\n%s", out)
	}

	out, _, _ = run(t, "types", "--flow", "--method", "Node.unsafe", bad)
	for _, want := range []string{"Node.next: @Nullable @Initialized Node", "Node.unsafe:", "this.next: {@Nullable, @Initialized}"} {
		if !strings.Contains(out, want) {
			t.Errorf("types output lacks %q:\n%s", want, out)
		}
	}

	_, stderr, _ := run(t, "cfg", "--method", "Node.missing", bad)
	if !strings.Contains(stderr, "no method body Node.missing") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestExportDB(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", program)
	db := filepath.Join(dir, "out.db")
	_, stderr, _ := run(t, "check", "--export-db", db, bad)
	if !strings.Contains(stderr, "exported 3 methods") {
		t.Errorf("stderr = %q", stderr)
	}
	if _, err := os.Stat(db); err != nil {
		t.Errorf("database not written: %v", err)
	}
}

func TestVersionJSON(t *testing.T) {
	out, _, code := run(t, "version", "--format", "json")
	var payload versionPayload
	if code != 0 || json.Unmarshal([]byte(out), &payload) != nil || payload.Tool != "qualflow" {
		t.Errorf("version output %q (code %d)", out, code)
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "ON": uiModeOn, " off ": uiModeOff} {
		if got, err := readUIMode(in); err != nil || got != want {
			t.Errorf("readUIMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Error("expected an error")
	}
}
