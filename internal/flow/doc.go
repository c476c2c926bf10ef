// Package flow refines declared qualifiers along a method's control flow
// graph. A Store maps flow expressions to per-hierarchy qualifier values;
// transfer functions, selected by node kind, move stores across nodes and
// may split them on conditions; Analyze iterates blocks to a fixpoint and
// returns a Result with the refined value of every node.
package flow
