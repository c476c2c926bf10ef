// Package config reads qualflow.toml project manifests: analysis settings
// and checkers declared as qualifier hierarchies.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// ManifestName is the file Find looks for.
const ManifestName = "qualflow.toml"

// Manifest is a parsed qualflow.toml.
type Manifest struct {
	// Path is the manifest file, Root its directory.
	Path string `toml:"-"`
	Root string `toml:"-"`

	Check       CheckSection    `toml:"check"`
	Cache       CacheSection    `toml:"cache"`
	Hierarchies []HierarchySpec `toml:"hierarchy"`
	Qualifiers  []QualifierSpec `toml:"qualifier"`

	defined map[string]bool
}

type CheckSection struct {
	Checker        string   `toml:"checker"`
	Jobs           int      `toml:"jobs"`
	MaxBlockVisits int      `toml:"max_block_visits"`
	Lint           []string `toml:"lint"`
	// Classpath lists class files loaded as annotated library stubs,
	// relative to the manifest directory.
	Classpath []string `toml:"classpath"`
}

type CacheSection struct {
	Enabled bool `toml:"enabled"`
}

// HierarchySpec declares a checker made of qualifiers only. Defaults maps
// location names (other, local, upper_bound, lower_bound, receiver) to
// qualifier names.
type HierarchySpec struct {
	Name        string            `toml:"name"`
	Description string            `toml:"description"`
	Defaults    map[string]string `toml:"defaults"`
}

// QualifierSpec declares one qualifier of the checker named Hierarchy. A
// qualifier without Supers tops a hierarchy; Poly names the top a
// polymorphic qualifier ranges over.
type QualifierSpec struct {
	Hierarchy string   `toml:"hierarchy"`
	Name      string   `toml:"name"`
	Supers    []string `toml:"supers"`
	Aliases   []string `toml:"aliases"`
	Poly      string   `toml:"poly"`
}

// Find walks up from startDir to locate qualflow.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover finds and loads the manifest governing input, a file or
// directory. ok is false when there is none.
func Discover(input string) (m *Manifest, ok bool, err error) {
	start := input
	if info, statErr := os.Stat(input); statErr == nil && !info.IsDir() {
		start = filepath.Dir(input)
	}
	path, ok, err := Find(start)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err = Load(path)
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}

// Load parses and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	m := &Manifest{Cache: CacheSection{Enabled: true}}
	meta, err := toml.DecodeFile(path, m)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	m.defined = make(map[string]bool)
	for _, k := range meta.Keys() {
		m.defined[k.String()] = true
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	m.Path, m.Root = path, filepath.Dir(path)
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Defined reports whether key, in dotted form such as "check.jobs", was
// written in the manifest.
func (m *Manifest) Defined(key string) bool {
	return m != nil && m.defined[key]
}

// ClasspathFiles resolves Check.Classpath against the manifest directory.
func (m *Manifest) ClasspathFiles() []string {
	out := make([]string, len(m.Check.Classpath))
	for i, p := range m.Check.Classpath {
		if filepath.IsAbs(p) {
			out[i] = p
			continue
		}
		out[i] = filepath.Join(m.Root, filepath.FromSlash(p))
	}
	return out
}

func (m *Manifest) validate() error {
	var errs []error
	if m.Check.Jobs < 0 {
		errs = append(errs, fmt.Errorf("check.jobs must not be negative"))
	}
	if m.Check.MaxBlockVisits < 0 {
		errs = append(errs, fmt.Errorf("check.max_block_visits must not be negative"))
	}
	seen := make(map[string]bool, len(m.Hierarchies))
	for _, h := range m.Hierarchies {
		switch {
		case strings.TrimSpace(h.Name) == "":
			errs = append(errs, fmt.Errorf("hierarchy without a name"))
		case seen[h.Name]:
			errs = append(errs, fmt.Errorf("hierarchy %q declared twice", h.Name))
		}
		seen[h.Name] = true
	}
	for _, q := range m.Qualifiers {
		if strings.TrimSpace(q.Name) == "" {
			errs = append(errs, fmt.Errorf("qualifier without a name in hierarchy %q", q.Hierarchy))
		}
		if !seen[q.Hierarchy] {
			errs = append(errs, fmt.Errorf("qualifier %s: unknown hierarchy %q", q.Name, q.Hierarchy))
		}
		if q.Poly != "" && len(q.Supers) > 0 {
			errs = append(errs, fmt.Errorf("qualifier %s: a polymorphic qualifier has no supertypes", q.Name))
		}
	}
	return errors.Join(errs...)
}

// HierarchyNames lists the checkers the manifest declares, in order.
func (m *Manifest) HierarchyNames() []string {
	out := make([]string, len(m.Hierarchies))
	for i, h := range m.Hierarchies {
		out[i] = h.Name
	}
	return out
}

func (m *Manifest) qualifiersOf(name string) []QualifierSpec {
	var out []QualifierSpec
	for _, q := range m.Qualifiers {
		if q.Hierarchy == name {
			out = append(out, q)
		}
	}
	return out
}

func (m *Manifest) hierarchy(name string) (HierarchySpec, bool) {
	i := slices.IndexFunc(m.Hierarchies, func(h HierarchySpec) bool { return h.Name == name })
	if i < 0 {
		return HierarchySpec{}, false
	}
	return m.Hierarchies[i], true
}
