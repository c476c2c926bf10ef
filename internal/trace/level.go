package trace

import (
	"fmt"
	"slices"
	"strings"
)

// Level controls tracing verbosity. Each level above LevelError admits one
// more scope.
type Level uint8

const (
	LevelOff    Level = iota
	LevelError        // ring only, dumped when the process panics
	LevelPhase        // driver and pass boundaries
	LevelDetail       // method analyses
	LevelDebug        // node-level points
)

var levelNames = []string{"off", "error", "phase", "detail", "debug"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel accepts a level name in any case.
func ParseLevel(s string) (Level, error) {
	i := slices.Index(levelNames, strings.ToLower(strings.TrimSpace(s)))
	if i < 0 {
		return LevelOff, fmt.Errorf("invalid trace level %q (expected %s)", s, strings.Join(levelNames, "|"))
	}
	return Level(i), nil
}

// ShouldEmit reports whether events of scope pass at this level.
// LevelPhase admits ScopePass and everything coarser.
func (l Level) ShouldEmit(scope Scope) bool {
	if l < LevelPhase || l > LevelDebug {
		return false
	}
	return int(scope) <= int(l-LevelPhase)+int(ScopePass)
}
