// Package bug models internal consistency failures.
//
// A consistency failure is never caused by user input: it means the core or a
// plugin's configuration broke an invariant (lub across hierarchies, a bound
// index pointing outside an intersection, a fixpoint that does not stabilise).
// Such failures abort the current analysis run and carry the positional
// context needed to debug them.
//
// Operations that already return an error return *Error directly. Operations
// that return plain values (lattice math) call Throw, and analysis boundaries
// convert the panic back into an error with Guard or Catch.
package bug

import (
	"errors"
	"fmt"
	"strings"
)

// KV is one piece of diagnostic context attached to an Error.
type KV struct {
	Key   string
	Value string
}

// Error is an internal consistency failure.
type Error struct {
	Msg     string
	Context []KV
}

// New builds an Error. kv is a flat list of key/value pairs; values are
// rendered with %v.
func New(msg string, kv ...any) *Error {
	e := &Error{Msg: msg}
	for i := 0; i+1 < len(kv); i += 2 {
		e.Context = append(e.Context, KV{Key: fmt.Sprint(kv[i]), Value: fmt.Sprint(kv[i+1])})
	}
	if len(kv)%2 == 1 {
		e.Context = append(e.Context, KV{Key: "extra", Value: fmt.Sprint(kv[len(kv)-1])})
	}
	return e
}

// Error renders the message followed by "key ( value )" context, matching the
// layout plugin authors expect in crash reports.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("internal error: ")
	b.WriteString(e.Msg)
	for _, kv := range e.Context {
		fmt.Fprintf(&b, " %s ( %s )", kv.Key, kv.Value)
	}
	return b.String()
}

// Get returns the context value stored under key.
func (e *Error) Get(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, kv := range e.Context {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// With returns a copy of e with more context appended.
func (e *Error) With(kv ...any) *Error {
	if e == nil {
		return nil
	}
	out := &Error{Msg: e.Msg, Context: append([]KV(nil), e.Context...)}
	out.Context = append(out.Context, New("", kv...).Context...)
	return out
}

// Throw panics with an Error.
func Throw(msg string, kv ...any) {
	panic(New(msg, kv...))
}

// Guard recovers an *Error panic into *errp. Other panics are re-raised.
//
//	func run() (err error) {
//		defer bug.Guard(&err)
//		...
//	}
func Guard(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	be, ok := r.(*Error)
	if !ok {
		panic(r)
	}
	if errp != nil {
		*errp = be
	}
}

// Catch runs fn and returns the *Error it threw, if any.
func Catch(fn func()) (err *Error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		be, ok := r.(*Error)
		if !ok {
			panic(r)
		}
		err = be
	}()
	fn()
	return nil
}

// As reports whether err wraps an internal consistency failure.
func As(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
