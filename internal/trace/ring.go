package trace

import (
	"io"
	"slices"
	"sync"
)

// RingTracer keeps the most recent events in memory for crash dumps.
type RingTracer struct {
	mu    sync.Mutex
	buf   []Event
	next  int // slot the next event overwrites
	count int
	level Level
}

// NewRingTracer creates a ring of the given capacity, 4096 when capacity is
// not positive.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{buf: make([]Event, capacity), level: level}
}

// Emit stores a copy of ev. At LevelError the ring still records method
// spans so a crash dump shows which analysis failed.
func (t *RingTracer) Emit(ev *Event) {
	if !t.accepts(ev) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf[t.next] = *ev
	t.buf[t.next].Seq = NextSeq()
	t.next = (t.next + 1) % len(t.buf)
	t.count = min(t.count+1, len(t.buf))
}

func (t *RingTracer) accepts(ev *Event) bool {
	switch {
	case ev.Kind == KindHeartbeat:
		return true
	case t.level == LevelError:
		return ev.Scope <= ScopeMethod
	}
	return t.level.ShouldEmit(ev.Scope)
}

// Snapshot returns the stored events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count < len(t.buf) {
		return slices.Clone(t.buf[:t.count])
	}
	return slices.Concat(t.buf[t.next:], t.buf[:t.next])
}

// Dump writes the snapshot to w.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	for _, ev := range t.Snapshot() {
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
func (t *RingTracer) Ring() *RingTracer {
	return t
}
