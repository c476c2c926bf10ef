package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"qualflow/internal/atype"
	"qualflow/internal/checker"
	"qualflow/internal/config"
)

const tainting = `
[check]
checker = "tainting"
jobs = 2
lint = ["all"]
classpath = ["lib/Box.class"]

[cache]
enabled = false

[[hierarchy]]
name = "tainting"
description = "tainted strings"
defaults = { other = "Untainted", local = "Tainted" }

[[qualifier]]
hierarchy = "tainting"
name = "Untainted"
supers = ["Tainted"]
aliases = ["Clean"]

[[qualifier]]
hierarchy = "tainting"
name = "Tainted"

[[qualifier]]
hierarchy = "tainting"
name = "PolyTainted"
poly = "Tainted"
`

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, config.ManifestName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, tainting)
	nested := filepath.Join(root, "src", "pkg")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	input := filepath.Join(nested, "prog.yaml")
	if err := os.WriteFile(input, []byte("classes: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	m, ok, err := config.Discover(input)
	if err != nil || !ok {
		t.Fatalf("Discover: ok=%v err=%v", ok, err)
	}
	if m.Check.Checker != "tainting" || m.Check.Jobs != 2 || m.Cache.Enabled {
		t.Fatalf("manifest = %+v", m)
	}
	if !m.Defined("check.jobs") || m.Defined("check.max_block_visits") {
		t.Fatal("Defined does not track written keys")
	}
	want := filepath.Join(m.Root, "lib", "Box.class")
	if got := m.ClasspathFiles(); len(got) != 1 || got[0] != want {
		t.Fatalf("classpath = %v, want %s", got, want)
	}
}

func TestCacheEnabledByDefault(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "[check]\nchecker = \"nullness\"\n")
	m, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Cache.Enabled {
		t.Fatal("cache should default to enabled")
	}
}

func TestRegisterDeclaredChecker(t *testing.T) {
	m, err := config.Load(writeManifest(t, t.TempDir(), tainting))
	if err != nil {
		t.Fatal(err)
	}
	r := checker.NewRegistry()
	if err := m.Register(r); err != nil {
		t.Fatal(err)
	}
	if r.Description("tainting") != "tainted strings" {
		t.Fatalf("description = %q", r.Description("tainting"))
	}
	c, err := r.New("tainting")
	if err != nil {
		t.Fatal(err)
	}
	h := c.Hierarchy()
	tainted, ok1 := h.Lookup("Tainted")
	untainted, ok2 := h.Lookup("Untainted")
	clean, ok3 := h.Lookup("Clean")
	poly, ok4 := h.Lookup("PolyTainted")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		t.Fatal("qualifier lookup failed")
	}
	if clean != untainted || !h.IsSubtype(untainted, tainted) || h.IsSubtype(tainted, untainted) {
		t.Fatal("hierarchy order is wrong")
	}
	if !h.IsPoly(poly) {
		t.Fatal("PolyTainted is not polymorphic")
	}
	if got := c.Defaults().For(atype.LocLocal, tainted); got != tainted {
		t.Fatalf("local default = %s", h.Name(got))
	}
	if got := c.Defaults().For(atype.LocOther, tainted); got != untainted {
		t.Fatalf("other default = %s", h.Name(got))
	}
	if got := c.Defaults().For(atype.LocReceiver, tainted); got != untainted {
		t.Fatalf("receiver default falls back to other, got %s", h.Name(got))
	}
	if err := m.Register(r); err == nil {
		t.Fatal("registering twice should fail")
	}
}

func TestManifestErrors(t *testing.T) {
	tests := []struct {
		name, content, want string
	}{
		{"syntax", "[check\n", "failed to parse TOML"},
		{"unknown key", "[check]\ncheckr = \"x\"\n", "unknown keys: check.checkr"},
		{"negative jobs", "[check]\njobs = -1\n", "check.jobs must not be negative"},
		{"duplicate hierarchy", "[[hierarchy]]\nname = \"a\"\n[[hierarchy]]\nname = \"a\"\n", `hierarchy "a" declared twice`},
		{"orphan qualifier", "[[qualifier]]\nhierarchy = \"b\"\nname = \"Q\"\n", `unknown hierarchy "b"`},
		{"poly with supers", "[[hierarchy]]\nname = \"a\"\n[[qualifier]]\nhierarchy = \"a\"\nname = \"P\"\npoly = \"T\"\nsupers = [\"T\"]\n", "polymorphic qualifier has no supertypes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeManifest(t, t.TempDir(), tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestCheckerErrors(t *testing.T) {
	tests := []struct {
		name, quals, defaults, want string
	}{
		{"cycle", `
[[qualifier]]
hierarchy = "h"
name = "A"
supers = ["B"]
[[qualifier]]
hierarchy = "h"
name = "B"
supers = ["A"]
`, "", "unknown or cyclic supertypes: [A B]"},
		{"unknown poly top", `
[[qualifier]]
hierarchy = "h"
name = "Top"
[[qualifier]]
hierarchy = "h"
name = "Poly"
poly = "Missing"
`, "", `unknown top "Missing"`},
		{"bad location", `
[[qualifier]]
hierarchy = "h"
name = "Top"
`, `defaults = { field = "Top" }`, `unknown default location "field"`},
		{"bad default", `
[[qualifier]]
hierarchy = "h"
name = "Top"
`, `defaults = { local = "Bottom" }`, `unknown qualifier "Bottom"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "[[hierarchy]]\nname = \"h\"\n" + tt.defaults + "\n" + tt.quals
			m, err := config.Load(writeManifest(t, t.TempDir(), content))
			if err != nil {
				t.Fatal(err)
			}
			_, err = m.Checker("h")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}
}
