// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package shape

import (
	"fmt"
	"reflect"

	"github.com/canonical/sqlshape/internal/ast"
	"github.com/canonical/sqlshape/internal/decode"
)

var tupleType = reflect.TypeOf([]any{})

// tupleShape is the composite descriptor: an ordered, fixed-arity aggregate
// of child shapes over an []any container. Child order is fixed at
// construction and defines both the product node child order and the
// decoding order.
type tupleShape struct {
	shapes []Shape
}

// Tuple returns the composite shape over the given child shapes. The same
// fold drives Pack, EncodeRef and the child gathering step of ToNode; it is
// the only structural recursion in the package.
func Tuple(shapes ...Shape) Shape {
	ss := make([]Shape, len(shapes))
	copy(ss, shapes)
	return tupleShape{shapes: ss}
}

func (s tupleShape) MixedType() reflect.Type    { return tupleType }
func (s tupleShape) UnpackedType() reflect.Type { return tupleType }
func (s tupleShape) PackedType() reflect.Type   { return tupleType }

// elements checks the arity of a mixed value against the shape.
func (s tupleShape) elements(mixed any) ([]any, error) {
	elems, ok := mixed.([]any)
	if !ok {
		return nil, fmt.Errorf("need []any with %d elements, got %T", len(s.shapes), mixed)
	}
	if len(elems) != len(s.shapes) {
		return nil, fmt.Errorf("need %d elements, got %d", len(s.shapes), len(elems))
	}
	return elems, nil
}

// fold zips the child shapes against the per-position elements of mixed,
// applies op to each pair and reassembles the results.
func (s tupleShape) fold(mixed any, op func(child Shape, elem any) (any, error)) ([]any, error) {
	elems, err := s.elements(mixed)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(elems))
	for i, child := range s.shapes {
		v, err := op(child, elems[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s tupleShape) Pack(mixed any) (any, error) {
	return s.fold(mixed, func(child Shape, elem any) (any, error) {
		return child.Pack(elem)
	})
}

func (s tupleShape) PackedShape() Shape {
	packed := make([]Shape, len(s.shapes))
	for i, child := range s.shapes {
		packed[i] = child.PackedShape()
	}
	return tupleShape{shapes: packed}
}

// EncodeRef rebinds child i to Select(path, i), 1-based. Addressability is
// decided by the children: a bare leaf child surfaces ErrNotAddressable.
func (s tupleShape) EncodeRef(mixed any, path ast.Node) (any, error) {
	i := 0
	return s.fold(mixed, func(child Shape, elem any) (any, error) {
		i++
		return child.EncodeRef(elem, ast.NewSelect(path, i))
	})
}

func (s tupleShape) ToNode(mixed any) (ast.Node, error) {
	children, err := s.fold(mixed, func(child Shape, elem any) (any, error) {
		return child.ToNode(elem)
	})
	if err != nil {
		return nil, err
	}
	nodes := make([]ast.Node, len(children))
	for i, c := range children {
		nodes[i] = c.(ast.Node)
	}
	return ast.NewProduct(nodes...), nil
}

func (s tupleShape) Columns() int {
	n := 0
	for _, child := range s.shapes {
		n += child.Columns()
	}
	return n
}

func (s tupleShape) Decode(cur *decode.Cursor) (any, error) {
	out := make([]any, len(s.shapes))
	for i, child := range s.shapes {
		v, err := child.Decode(cur)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
