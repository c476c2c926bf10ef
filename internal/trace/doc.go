// Package trace is the structured logging layer of qualflow.
//
// Events are emitted by the driver (one span per run), by passes (load,
// apply, flow, check) and by the dataflow engine (one span per analysed
// method, point events for precision notes at node scope). A Tracer travels
// in the context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeMethod, "flow:Box.get", parent)
//	defer span.End("")
//
// Implementations: Nop (disabled), StreamTracer (text or NDJSON to a writer),
// RingTracer (last N events, dumped when an analysis crashes) and MultiTracer.
//
// Levels gate scopes: phase shows driver and pass events, detail adds
// methods, debug adds node-level events.
package trace
