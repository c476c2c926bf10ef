package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestInfo(t *testing.T) {
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	defer func() { Version, GitCommit, BuildDate = origVersion, origCommit, origDate }()

	Version, GitCommit, BuildDate = "1.2.3", "", ""
	if got := Info(false); got != "qualflow 1.2.3" {
		t.Fatalf("Info = %q", got)
	}
	GitCommit, BuildDate = "abc123", "2024-01-15T10:30:00Z"
	if got := Info(false); got != "qualflow 1.2.3 (abc123) built 2024-01-15T10:30:00Z" {
		t.Fatalf("Info = %q", got)
	}
}

func TestColored(t *testing.T) {
	origVersion, origNoColor := Version, color.NoColor
	defer func() { Version, color.NoColor = origVersion, origNoColor }()

	color.NoColor = true
	for _, v := range []string{"0.1.0-dev", "2.0.1", "nightly"} {
		Version = v
		if got := Colored(); got != v {
			t.Errorf("Colored() with colors off = %q, want %q", got, v)
		}
	}
	color.NoColor = false
	Version = "1.2.3"
	if got := Colored(); got == "1.2.3" {
		t.Error("Colored() did not add color codes")
	}
}
