// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package shape

import (
	"fmt"
	"reflect"

	"github.com/canonical/sqlshape/internal/ast"
	"github.com/canonical/sqlshape/internal/decode"
)

// ShapedValue couples a concrete mixed value with the shape that knows how
// to interpret it. The shape is shared and immutable; the pair itself is
// cheap to copy and never mutated.
type ShapedValue struct {
	value any
	shape Shape
}

// NewShapedValue pairs a value with its shape, checking that the value
// matches the shape's mixed type tag.
func NewShapedValue(value any, s Shape) (*ShapedValue, error) {
	if err := checkMixed(s, value); err != nil {
		return nil, err
	}
	return &ShapedValue{value: value, shape: s}, nil
}

// Value returns the held value.
func (sv *ShapedValue) Value() any {
	return sv.value
}

// Shape returns the descriptor interpreting the value.
func (sv *ShapedValue) Shape() Shape {
	return sv.shape
}

// EncodeRef rebinds every leaf of the value relative to path. The receiver
// is returned unchanged when rebinding turns out to be the identity.
func (sv *ShapedValue) EncodeRef(path ast.Node) (*ShapedValue, error) {
	rebound, err := sv.shape.EncodeRef(sv.value, path)
	if err != nil {
		return nil, err
	}
	if identical(rebound, sv.value) {
		return sv, nil
	}
	return &ShapedValue{value: rebound, shape: sv.shape}, nil
}

// Pack returns the pair over the fully packed value and the packed shape.
func (sv *ShapedValue) Pack() (*ShapedValue, error) {
	packed, err := sv.shape.Pack(sv.value)
	if err != nil {
		return nil, err
	}
	return &ShapedValue{value: packed, shape: sv.shape.PackedShape()}, nil
}

// ToNode builds the canonical expression tree for the value.
func (sv *ShapedValue) ToNode() (ast.Node, error) {
	return sv.shape.ToNode(sv.value)
}

// Zip combines two pairs into one over a 2-ary composite, preserving each
// side's position.
func (sv *ShapedValue) Zip(other *ShapedValue) *ShapedValue {
	return &ShapedValue{
		value: []any{sv.value, other.value},
		shape: Tuple(sv.shape, other.shape),
	}
}

// Bimap attaches a leaf-level conversion to a user result type. forward
// maps a domain value to the current unpacked representation and is used on
// the packing path; backward reconstructs the domain value from a decoded
// row. backward reporting !ok at decode time is a data integrity failure
// surfaced as a decode error, never a silent default.
func (sv *ShapedValue) Bimap(resultType reflect.Type, forward func(any) (any, error), backward func(any) (any, bool)) *ShapedValue {
	mapper := ast.Mapper{
		ToBase: forward,
		ToMapped: func(base any) (any, error) {
			mapped, ok := backward(base)
			if !ok {
				return nil, fmt.Errorf("backward conversion yielded no value for %v", base)
			}
			return mapped, nil
		},
	}
	return &ShapedValue{
		value: sv.value,
		shape: bimapShape{base: sv.shape, mapper: mapper, typ: resultType},
	}
}

// bimapShape is the shape behind Bimap: like a mapped shape, but the mixed
// value stays in the base representation. Only the decoded result and the
// expression tree change.
type bimapShape struct {
	base   Shape
	mapper ast.Mapper
	typ    reflect.Type
}

func (s bimapShape) MixedType() reflect.Type    { return s.base.MixedType() }
func (s bimapShape) UnpackedType() reflect.Type { return s.typ }
func (s bimapShape) PackedType() reflect.Type   { return s.base.PackedType() }

func (s bimapShape) Pack(mixed any) (any, error) {
	return s.base.Pack(mixed)
}

func (s bimapShape) PackedShape() Shape {
	return bimapShape{base: s.base.PackedShape(), mapper: s.mapper, typ: s.typ}
}

func (s bimapShape) EncodeRef(mixed any, path ast.Node) (any, error) {
	return s.base.EncodeRef(mixed, path)
}

func (s bimapShape) ToNode(mixed any) (ast.Node, error) {
	child, err := s.base.ToNode(mixed)
	if err != nil {
		return nil, err
	}
	return ast.NewTypeMapping(child, s.mapper, s.typ), nil
}

func (s bimapShape) Columns() int {
	return s.base.Columns()
}

func (s bimapShape) Decode(cur *decode.Cursor) (any, error) {
	base, err := s.base.Decode(cur)
	if err != nil {
		return nil, err
	}
	mapped, err := s.mapper.ToMapped(base)
	if err != nil {
		return nil, &DecodeError{Type: s.typ, Err: err}
	}
	return mapped, nil
}

// Erased is the read-only view of a shaped value with the unpacked type
// hidden. It exposes just enough for heterogeneous storage at call
// boundaries: the value, its shape, and the packed expression tree.
type Erased interface {
	Value() any
	Shape() Shape
	// ToNode packs the value and returns its canonical expression tree.
	ToNode() (ast.Node, error)
}

// Erase hides the unpacked type of a shaped value.
func Erase(sv *ShapedValue) Erased {
	return erased{sv: sv}
}

type erased struct {
	sv *ShapedValue
}

func (e erased) Value() any {
	return e.sv.Value()
}

func (e erased) Shape() Shape {
	return e.sv.Shape()
}

func (e erased) ToNode() (ast.Node, error) {
	packed, err := e.sv.Pack()
	if err != nil {
		return nil, err
	}
	return packed.ToNode()
}
