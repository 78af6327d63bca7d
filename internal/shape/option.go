// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package shape

import (
	"fmt"
	"reflect"

	"github.com/canonical/sqlshape/internal/ast"
	"github.com/canonical/sqlshape/internal/decode"
)

// optionShape derives the optional variant of a leaf shape. Absence is the
// nil pointer; presence and absence both travel through the ordinary
// wrapped-leaf representation (a present value packs to a literal of the
// value, an absent one to a literal nil), so no extra runtime machinery is
// needed beyond adjusting the type tags.
type optionShape struct {
	inner Shape
}

// Option returns the shape of *T values given the shape of T. Only
// single-column shapes can be made optional: a NULL column is the only
// representation of absence a row can carry.
func Option(inner Shape) (Shape, error) {
	if inner.Columns() != 1 {
		return nil, fmt.Errorf("cannot make optional shape: %d column shape, need exactly 1", inner.Columns())
	}
	return optionShape{inner: inner}, nil
}

// addressable reports whether the inner leaf is already in wrapped form.
func (s optionShape) addressable() bool {
	return s.inner.MixedType() == exprType
}

func (s optionShape) MixedType() reflect.Type {
	// An already wrapped leaf stays a wrapped leaf; optionality only
	// changes what it decodes to.
	if s.addressable() {
		return exprType
	}
	return reflect.PointerTo(s.inner.MixedType())
}

func (s optionShape) UnpackedType() reflect.Type {
	return reflect.PointerTo(s.inner.UnpackedType())
}

func (s optionShape) PackedType() reflect.Type {
	return exprType
}

func (s optionShape) Pack(mixed any) (any, error) {
	if s.addressable() {
		return s.inner.Pack(mixed)
	}
	if err := checkMixed(s, mixed); err != nil {
		return nil, err
	}
	v := reflect.ValueOf(mixed)
	if v.IsNil() {
		return NewExpr(ast.NewLiteral(nil), s.UnpackedType()), nil
	}
	packed, err := s.inner.Pack(v.Elem().Interface())
	if err != nil {
		return nil, err
	}
	// Rewrap so the leaf decodes to the pointer type.
	return NewExpr(packed.(*Expr).Node(), s.UnpackedType()), nil
}

func (s optionShape) PackedShape() Shape {
	return optionShape{inner: s.inner.PackedShape()}
}

func (s optionShape) EncodeRef(mixed any, path ast.Node) (any, error) {
	if !s.addressable() {
		return nil, fmt.Errorf("%w: bare optional %s values have no reference form, pack the value first", ErrNotAddressable, s.inner.MixedType())
	}
	e, ok := mixed.(*Expr)
	if !ok {
		return nil, fmt.Errorf("need wrapped expression, got %T", mixed)
	}
	if e.node.Equal(path) {
		return e, nil
	}
	return NewExpr(path, s.UnpackedType()), nil
}

func (s optionShape) ToNode(mixed any) (ast.Node, error) {
	if s.addressable() {
		return s.inner.ToNode(mixed)
	}
	packed, err := s.Pack(mixed)
	if err != nil {
		return nil, err
	}
	return packed.(*Expr).Node(), nil
}

func (s optionShape) Columns() int {
	return 1
}

// Decode reads one scalar. NULL is the row representation of absence; a
// present value decodes through the inner shape, so mapped inners still run
// their converter.
func (s optionShape) Decode(cur *decode.Cursor) (any, error) {
	src, err := cur.Next()
	if err != nil {
		return nil, err
	}
	if src == nil {
		return reflect.Zero(s.UnpackedType()).Interface(), nil
	}
	v, err := s.inner.Decode(decode.NewCursor([]any{src}))
	if err != nil {
		return nil, err
	}
	p := reflect.New(s.inner.UnpackedType())
	p.Elem().Set(reflect.ValueOf(v))
	return p.Interface(), nil
}
