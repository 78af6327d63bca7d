// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package shape implements the descriptor algebra that keeps the three
// representations of a query projection synchronised: the mixed value
// supplied by the caller, the canonical expression tree, and the fully
// packed form in which every leaf is a wrapped expression.
//
// A Shape is a stateless, immutable capability. Descriptors are resolved
// once, ahead of any query execution, and can be shared freely across
// goroutines without synchronisation.
package shape

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/canonical/sqlshape/internal/ast"
	"github.com/canonical/sqlshape/internal/decode"
)

// ErrNotAddressable is returned by EncodeRef on a shape whose mixed and
// packed forms differ. Only values already in canonical wrapped form can be
// referenced as sub-expressions; hitting this error is a usage bug, not a
// data error.
var ErrNotAddressable = errors.New("shape is not addressable")

// Shape describes the structure of a projection value. The mixed form is
// what callers supply, a blend of wrapped leaf expressions and plain
// containers. The unpacked form is the fully plain runtime value, and the
// packed form is the canonical representation where every leaf is wrapped.
//
// All operations are pure: they allocate and return fresh values and never
// mutate their inputs or the shape itself.
type Shape interface {
	// MixedType is the type tag of values accepted by Pack, EncodeRef and
	// ToNode.
	MixedType() reflect.Type
	// UnpackedType is the type tag of values produced by Decode.
	UnpackedType() reflect.Type
	// PackedType is the type tag of values produced by Pack.
	PackedType() reflect.Type

	// Pack converts a mixed value into the fully wrapped canonical form,
	// wrapping bare leaves and recursing through containers. Packing an
	// already packed value is the identity.
	Pack(mixed any) (any, error)
	// PackedShape returns the descriptor operating on the packed
	// representation. It is the fixed point of Pack: packing with the
	// packed shape changes nothing.
	PackedShape() Shape
	// EncodeRef rebinds every leaf inside mixed to a fresh reference
	// addressed relative to path, preserving the outer structure. Child i
	// of a composite is addressed via Select(path, i), 1-based. It fails
	// with ErrNotAddressable unless the mixed and packed forms coincide.
	EncodeRef(mixed any, path ast.Node) (any, error)
	// ToNode builds the canonical expression tree for mixed.
	ToNode(mixed any) (ast.Node, error)

	// Columns is the number of scalar columns the shape spans.
	Columns() int
	// Decode reconstructs an unpacked value from the next Columns scalars
	// of the cursor, consuming them in depth-first left-to-right order.
	Decode(cur *decode.Cursor) (any, error)
}

// Expr is a wrapped leaf: a placeholder expression standing for a single
// scalar column. It carries the node describing where its value comes from
// and the Go type the column decodes to.
type Expr struct {
	node ast.Node
	typ  reflect.Type
}

// NewExpr returns a wrapped leaf over the given node producing values of
// the given type.
func NewExpr(node ast.Node, typ reflect.Type) *Expr {
	if node == nil {
		panic("internal error: expression with nil node")
	}
	return &Expr{node: node, typ: typ}
}

// Node returns the expression tree of the leaf.
func (e *Expr) Node() ast.Node {
	return e.node
}

// Type returns the Go type the leaf's column decodes to.
func (e *Expr) Type() reflect.Type {
	return e.typ
}

func (e *Expr) String() string {
	return fmt.Sprintf("Expr[%s](%s)", e.typ, e.node)
}

// DecodeError reports that a mapped shape's backward conversion failed for
// a decoded row. It names the domain type to make the failing mapping easy
// to find.
type DecodeError struct {
	// Type is the domain type the mapping was meant to produce.
	Type reflect.Type
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode value of type %s: %s", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var exprType = reflect.TypeOf(&Expr{})

// checkMixed validates that a value matches the shape's mixed type tag.
func checkMixed(s Shape, mixed any) error {
	if mixed == nil {
		return fmt.Errorf("need %s, got nil", s.MixedType())
	}
	if t := reflect.TypeOf(mixed); t != s.MixedType() && !t.AssignableTo(s.MixedType()) {
		return fmt.Errorf("need %s, got %s", s.MixedType(), t)
	}
	return nil
}

// identical reports whether a and b are the same value, for types where
// that can be decided cheaply. It is used to avoid reallocating wrappers
// when an operation turns out to be the identity.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
