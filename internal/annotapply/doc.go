// Package annotapply places annotations written on declarations onto the
// annotated types of those declarations.
//
// Raw annotations arrive with a position (ast.Position): the kind of element
// they target, an element index, a bound index and a type path. The applier
// keeps the ones naming a qualifier of its hierarchy, follows the position to
// the type component it addresses and adds the qualifier there. Type
// parameters get special treatment: qualifiers never land on the declaration
// itself but on its lower bound or (a member of) its upper bound.
//
// Malformed positions are internal consistency failures and are returned as
// *bug.Error values.
package annotapply
