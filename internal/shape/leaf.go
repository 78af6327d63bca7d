// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package shape

import (
	"fmt"
	"reflect"

	"github.com/canonical/sqlshape/internal/ast"
	"github.com/canonical/sqlshape/internal/decode"
)

// exprShape describes an addressable leaf: a value that is already a
// wrapped expression. Its mixed and packed forms coincide, so it is the
// only leaf on which EncodeRef is legal.
type exprShape struct {
	typ reflect.Type
}

// ExprOf returns the shape of wrapped leaf expressions producing values of
// the given scalar type.
func ExprOf(typ reflect.Type) Shape {
	return exprShape{typ: typ}
}

func (s exprShape) MixedType() reflect.Type    { return exprType }
func (s exprShape) UnpackedType() reflect.Type { return s.typ }
func (s exprShape) PackedType() reflect.Type   { return exprType }

// Pack is the identity: the leaf is already wrapped.
func (s exprShape) Pack(mixed any) (any, error) {
	if _, err := s.expr(mixed); err != nil {
		return nil, err
	}
	return mixed, nil
}

func (s exprShape) PackedShape() Shape {
	return s
}

// EncodeRef rebinds the leaf to reference path itself.
func (s exprShape) EncodeRef(mixed any, path ast.Node) (any, error) {
	e, err := s.expr(mixed)
	if err != nil {
		return nil, err
	}
	if e.node.Equal(path) {
		return e, nil
	}
	return NewExpr(path, s.typ), nil
}

func (s exprShape) ToNode(mixed any) (ast.Node, error) {
	e, err := s.expr(mixed)
	if err != nil {
		return nil, err
	}
	return e.Node(), nil
}

func (s exprShape) Columns() int {
	return 1
}

func (s exprShape) Decode(cur *decode.Cursor) (any, error) {
	return cur.Scan(s.typ)
}

func (s exprShape) expr(mixed any) (*Expr, error) {
	e, ok := mixed.(*Expr)
	if !ok {
		return nil, fmt.Errorf("need wrapped expression, got %T", mixed)
	}
	return e, nil
}

// rawShape describes an unaddressable leaf: a bare Go scalar that packing
// wraps into a literal expression. Its mixed and packed forms differ, so
// EncodeRef always fails.
type rawShape struct {
	typ reflect.Type
}

// RawOf returns the shape of bare scalar values of the given type.
func RawOf(typ reflect.Type) Shape {
	return rawShape{typ: typ}
}

func (s rawShape) MixedType() reflect.Type    { return s.typ }
func (s rawShape) UnpackedType() reflect.Type { return s.typ }
func (s rawShape) PackedType() reflect.Type   { return exprType }

// Pack wraps the bare value into a literal-backed expression.
func (s rawShape) Pack(mixed any) (any, error) {
	if err := checkMixed(s, mixed); err != nil {
		return nil, err
	}
	return NewExpr(ast.NewLiteral(mixed), s.typ), nil
}

func (s rawShape) PackedShape() Shape {
	return exprShape{typ: s.typ}
}

func (s rawShape) EncodeRef(mixed any, path ast.Node) (any, error) {
	return nil, fmt.Errorf("%w: bare %s values have no reference form, pack the value first", ErrNotAddressable, s.typ)
}

func (s rawShape) ToNode(mixed any) (ast.Node, error) {
	packed, err := s.Pack(mixed)
	if err != nil {
		return nil, err
	}
	return packed.(*Expr).Node(), nil
}

func (s rawShape) Columns() int {
	return 1
}

func (s rawShape) Decode(cur *decode.Cursor) (any, error) {
	return cur.Scan(s.typ)
}

// unitShape describes the nullary record struct{}{}. It spans no columns,
// packs to itself and renders as an empty product.
type unitShape struct{}

// Unit is the shape of the empty value struct{}{}.
var Unit Shape = unitShape{}

var unitType = reflect.TypeOf(struct{}{})

func (unitShape) MixedType() reflect.Type    { return unitType }
func (unitShape) UnpackedType() reflect.Type { return unitType }
func (unitShape) PackedType() reflect.Type   { return unitType }

func (s unitShape) Pack(mixed any) (any, error) {
	if err := checkMixed(s, mixed); err != nil {
		return nil, err
	}
	return mixed, nil
}

func (s unitShape) PackedShape() Shape {
	return s
}

func (s unitShape) EncodeRef(mixed any, path ast.Node) (any, error) {
	if err := checkMixed(s, mixed); err != nil {
		return nil, err
	}
	return mixed, nil
}

func (s unitShape) ToNode(mixed any) (ast.Node, error) {
	if err := checkMixed(s, mixed); err != nil {
		return nil, err
	}
	return ast.NewProduct(), nil
}

func (unitShape) Columns() int {
	return 0
}

func (unitShape) Decode(cur *decode.Cursor) (any, error) {
	return struct{}{}, nil
}
