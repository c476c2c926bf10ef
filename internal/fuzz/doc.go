// Package fuzztests houses Go fuzz harnesses for the front end and the
// checking pipeline. They feed arbitrary program files and statement
// strings through loading, CFG construction and dataflow analysis to guard
// against panics and hangs.
package fuzztests
