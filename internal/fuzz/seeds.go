package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

const (
	maxSeedBytes = 64 << 10
	maxFuzzInput = 16 << 10
)

// seedDirs hold the YAML programs used as the fuzz corpus.
var seedDirs = []string{
	filepath.Join("..", "frontend", "testdata"),
	filepath.Join("..", "driver", "testdata"),
}

func addProgramSeeds(f *testing.F) {
	for _, root := range seedDirs {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil || d.IsDir() || filepath.Ext(path) != ".yaml" {
				return nil
			}
			// #nosec G304 -- path comes from repository testdata walk
			src, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			f.Add(clampSeed(src))
			return nil
		})
	}
	for _, s := range programSeeds {
		f.Add([]byte(s))
	}
}

var programSeeds = []string{
	"",
	"classes: []",
	"classes:\n  - name: A\n",
	"classes:\n  - name: A\n    methods:\n      - name: m\n        body: [return]\n",
	"classes:\n  - name: A\n    fields:\n      - {name: f, type: \"@Nullable A\"}\n    methods:\n      - name: m\n        body:\n          - while: f != null\n            do: [f = f.f]\n",
	"classes:\n  - name: A\n    type_params: [\"T extends @Nullable Object\"]\n",
	"classes: [",
}

// statementSeeds are single statements placed in a method body.
var statementSeeds = []string{
	"return",
	"return f",
	"f = null",
	"A a = this",
	"if (f != null) f.m()",
	"x = f == null ? this : f",
	"break",
	"return (A) f",
	"return f instanceof A && f.f != null",
	"int[] xs = new int[3]",
	"xs[0] = xs[1] + 2 * -xs[2]",
	"((((((((f))))))))",
	"f.m(f, null, this, \"s\")",
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return src
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}

func clampInput(input []byte) []byte {
	if len(input) > maxFuzzInput {
		input = input[:maxFuzzInput]
	}
	return append([]byte(nil), input...)
}
