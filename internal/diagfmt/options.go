// Package diagfmt renders diagnostics for terminals and tools.
package diagfmt

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto chooses relative or absolute path automatically.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses absolute paths.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color     bool
	Context   int8
	PathMode  PathMode
	Width     uint8 // maximum source line width, 0 - unlimited
	ShowNotes bool
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	IncludePositions bool // add line/col
	PathMode         PathMode
	Max              int // truncates output, not the Bag
	IncludeNotes     bool
}

func formatPath(mode PathMode, baseDir string, path func(mode, baseDir string) string) string {
	switch mode {
	case PathModeAbsolute:
		return path("absolute", "")
	case PathModeRelative:
		return path("relative", baseDir)
	case PathModeBasename:
		return path("basename", "")
	default:
		return path("auto", "")
	}
}
