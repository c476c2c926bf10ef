package observ

import (
	"strings"
	"sync"
	"testing"
)

func TestTimerPhasesAndCounters(t *testing.T) {
	tm := NewTimer()
	idx := tm.Begin("load")
	tm.End(idx, "2 files")
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tm.Add("methods", 1)
		}()
	}
	wg.Wait()
	if tm.Counter("methods") != 4 {
		t.Fatalf("counter = %d", tm.Counter("methods"))
	}
	rep := tm.Report()
	if len(rep.Phases) != 1 || rep.Phases[0].Note != "2 files" {
		t.Fatalf("report = %+v", rep)
	}
	sum := tm.Summary()
	if !strings.Contains(sum, "load") || !strings.Contains(sum, "methods") {
		t.Fatalf("summary = %q", sum)
	}
	var nilTimer *Timer
	nilTimer.End(nilTimer.Begin("x"), "")
}
