package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// front end
	FrontInfo          Code = 1000
	FrontSyntax        Code = 1001
	FrontUnknownType   Code = 1002
	FrontUnknownName   Code = 1003
	FrontUnknownMember Code = 1004
	FrontBadExpression Code = 1005
	FrontBadStatement  Code = 1006
	FrontDuplicateDecl Code = 1007
	FrontBadAnnotation Code = 1008
	FrontArityMismatch Code = 1009
	FrontLoadFile      Code = 1010
	FrontBadClassfile  Code = 1011
	FrontTypeMismatch  Code = 1012
	FrontBreakOutside  Code = 1013

	// annotation application
	ApplyInfo                 Code = 2000
	ApplyUnsupportedQualifier Code = 2001
	ApplyInternal             Code = 2002
	ApplyMisplaced            Code = 2003

	// type validity
	TypeInfo               Code = 3000
	TypeInvalidConflicting Code = 3001
	TypeInvalidMissing     Code = 3002

	// dataflow
	FlowInfo           Code = 4000
	FlowNonTermination Code = 4001
	FlowInternal       Code = 4002

	// plugin checks
	CheckInfo                    Code = 5000
	CheckDereferenceNullable     Code = 5001
	CheckAssignmentIncompatible  Code = 5002
	CheckArgumentIncompatible    Code = 5003
	CheckReturnIncompatible      Code = 5004
	CheckRedundantNullComparison Code = 5005
	CheckUninitializedField      Code = 5006

	// observability
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

type codeInfo struct {
	key   string
	title string
}

var codeDescription = map[Code]codeInfo{
	UnknownCode:                  {"unknown", "Unknown error"},
	FrontInfo:                    {"front.info", "Front end information"},
	FrontSyntax:                  {"front.syntax", "Malformed program file"},
	FrontUnknownType:             {"front.unknown.type", "Unknown type"},
	FrontUnknownName:             {"front.unknown.name", "Unknown name"},
	FrontUnknownMember:           {"front.unknown.member", "Unknown field or method"},
	FrontBadExpression:           {"front.bad.expression", "Malformed expression"},
	FrontBadStatement:            {"front.bad.statement", "Malformed statement"},
	FrontDuplicateDecl:           {"front.duplicate.declaration", "Duplicate declaration"},
	FrontBadAnnotation:           {"front.bad.annotation", "Malformed annotation position"},
	FrontArityMismatch:           {"front.arity", "Wrong number of arguments"},
	FrontLoadFile:                {"front.load", "Cannot load input"},
	FrontBadClassfile:            {"front.classfile", "Malformed class file attribute"},
	FrontTypeMismatch:            {"front.type.mismatch", "Incompatible types"},
	FrontBreakOutside:            {"front.break.outside.loop", "break or continue outside of a loop"},
	ApplyInfo:                    {"apply.info", "Annotation application information"},
	ApplyUnsupportedQualifier:    {"annotation.unsupported", "Annotation is not a supported qualifier"},
	ApplyInternal:                {"apply.internal", "Internal failure while applying annotations"},
	ApplyMisplaced:               {"annotation.misplaced", "Annotation targets a position that does not exist"},
	TypeInfo:                     {"type.info", "Type validity information"},
	TypeInvalidConflicting:       {"type.invalid.conflicting.annos", "Conflicting qualifiers at one type position"},
	TypeInvalidMissing:           {"type.invalid.missing.annos", "Type position lacks a qualifier"},
	FlowInfo:                     {"flow.info", "Dataflow information"},
	FlowNonTermination:           {"flow.nontermination", "Dataflow fixpoint did not stabilise"},
	FlowInternal:                 {"flow.internal", "Internal failure during dataflow analysis"},
	CheckInfo:                    {"check.info", "Checker information"},
	CheckDereferenceNullable:     {"dereference.of.nullable", "Dereference of possibly-null reference"},
	CheckAssignmentIncompatible:  {"assignment.type.incompatible", "Incompatible types in assignment"},
	CheckArgumentIncompatible:    {"argument.type.incompatible", "Incompatible argument type"},
	CheckReturnIncompatible:      {"return.type.incompatible", "Incompatible return type"},
	CheckRedundantNullComparison: {"nulltest.redundant", "Redundant null comparison"},
	CheckUninitializedField:      {"initialization.field.uninitialized", "Field is never initialized"},
	ObsInfo:                      {"obs.info", "Observability information"},
	ObsTimings:                   {"obs.timings", "Pipeline timings"},
}

// ID renders the stable identifier, e.g. QF3001.
func (c Code) ID() string {
	if c == UnknownCode {
		return "QF0000"
	}
	return fmt.Sprintf("QF%04d", int(c))
}

// Key returns the dotted message key plugin authors match on, e.g.
// "type.invalid.conflicting.annos".
func (c Code) Key() string {
	info, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode].key
	}
	return info.key
}

func (c Code) Title() string {
	info, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode].title
	}
	return info.title
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}

// CodeByKey resolves a dotted key back to its code.
func CodeByKey(key string) (Code, bool) {
	for c, info := range codeDescription {
		if info.key == key {
			return c, true
		}
	}
	return UnknownCode, false
}
