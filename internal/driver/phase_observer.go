package driver

import "time"

// PhaseStatus reports whether a phase started or finished.
type PhaseStatus int

const (
	// PhaseStart indicates that a pipeline phase has begun.
	PhaseStart PhaseStatus = iota
	PhaseEnd
)

// PhaseEvent describes a timing phase boundary.
type PhaseEvent struct {
	Name    string
	Status  PhaseStatus
	Elapsed time.Duration
}

// PhaseObserver receives phase events emitted during Check.
type PhaseObserver func(PhaseEvent)

// MethodEvent reports one finished method analysis. Total is the number of
// method bodies in the run; events arrive in completion order.
type MethodEvent struct {
	Name        string
	Done, Total int
	Elapsed     time.Duration
	Diagnostics int
	Failed      bool
}

// MethodObserver is called concurrently from analysis workers.
type MethodObserver func(MethodEvent)
