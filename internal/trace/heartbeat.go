package trace

import (
	"fmt"
	"sync"
	"time"
)

// Heartbeat periodically emits heartbeat events naming the method analyses
// in progress.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	stopCh   chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// StartHeartbeat starts the heartbeat goroutine; it returns nil when tracing
// is disabled or interval is not positive.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   tracer,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
	h.wg.Add(1)
	go h.run()
	return h
}

func (h *Heartbeat) run() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	var seq uint64
	for {
		select {
		case <-ticker.C:
			seq++
			h.tracer.Emit(heartbeatEvent(seq, OpenMethods()))
		case <-h.stopCh:
			return
		}
	}
}

// heartbeatEvent reports the open method spans: their count in Detail and
// the oldest with its age in Extra.
func heartbeatEvent(seq uint64, methods []OpenSpan) *Event {
	ev := &Event{
		Time:   time.Now(),
		Kind:   KindHeartbeat,
		Scope:  ScopeDriver,
		GID:    goroutineID(),
		Name:   "heartbeat",
		Detail: fmt.Sprintf("#%d, %d methods open", seq, len(methods)),
	}
	if len(methods) > 0 {
		oldest := methods[0]
		ev.Extra = map[string]string{
			"oldest":     oldest.Name,
			"oldest_age": oldest.Age.Round(time.Millisecond).String(),
		}
	}
	return ev
}

// Stop stops the heartbeat goroutine and waits for it to exit.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stopCh) })
	h.wg.Wait()
}
