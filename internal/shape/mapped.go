// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package shape

import (
	"fmt"
	"reflect"

	"github.com/canonical/sqlshape/internal/ast"
	"github.com/canonical/sqlshape/internal/decode"
)

// mappedShape attaches a bidirectional converter pair to a base shape,
// letting a user domain type stand in for the base representation. The
// mapper must satisfy the round-trip law: ToMapped(ToBase(x)) == x for
// every valid domain value x. Violations are a caller bug.
//
// A mapped shape exists in two variants. The domain variant accepts domain
// values as mixed input and converts through ToBase before delegating. The
// packed variant, reached through PackedShape, accepts the base's packed
// container directly; the mapping is retained so ToNode still records the
// conversion and Decode still assembles domain values.
type mappedShape struct {
	base   Shape
	mapper ast.Mapper
	typ    reflect.Type
	packed bool
}

// Mapped returns the shape of domain values of the given type represented
// on base through the mapper.
func Mapped(base Shape, mapper ast.Mapper, typ reflect.Type) Shape {
	if mapper.ToBase == nil || mapper.ToMapped == nil {
		panic("internal error: mapped shape needs both converter directions")
	}
	return mappedShape{base: base, mapper: mapper, typ: typ}
}

func (s mappedShape) MixedType() reflect.Type {
	if s.packed {
		return s.base.MixedType()
	}
	return s.typ
}

func (s mappedShape) UnpackedType() reflect.Type { return s.typ }
func (s mappedShape) PackedType() reflect.Type   { return s.base.PackedType() }

// toBase converts a mixed value to the base representation. The packed
// variant is already in base form.
func (s mappedShape) toBase(mixed any) (any, error) {
	if s.packed {
		return mixed, nil
	}
	if err := checkMixed(s, mixed); err != nil {
		return nil, err
	}
	base, err := s.mapper.ToBase(mixed)
	if err != nil {
		return nil, fmt.Errorf("cannot unmap value of type %s: %s", s.typ, err)
	}
	return base, nil
}

func (s mappedShape) Pack(mixed any) (any, error) {
	base, err := s.toBase(mixed)
	if err != nil {
		return nil, err
	}
	return s.base.Pack(base)
}

func (s mappedShape) PackedShape() Shape {
	return mappedShape{base: s.base.PackedShape(), mapper: s.mapper, typ: s.typ, packed: true}
}

// EncodeRef is only legal on the packed variant, where the mixed form is
// the base's packed container. A domain value is not addressable.
func (s mappedShape) EncodeRef(mixed any, path ast.Node) (any, error) {
	if !s.packed {
		return nil, fmt.Errorf("%w: %s values have no reference form, pack the value first", ErrNotAddressable, s.typ)
	}
	return s.base.EncodeRef(mixed, path)
}

func (s mappedShape) ToNode(mixed any) (ast.Node, error) {
	base, err := s.toBase(mixed)
	if err != nil {
		return nil, err
	}
	child, err := s.base.ToNode(base)
	if err != nil {
		return nil, err
	}
	return ast.NewTypeMapping(child, s.mapper, s.typ), nil
}

func (s mappedShape) Columns() int {
	return s.base.Columns()
}

// Decode decodes the base representation and assembles the domain value
// through ToMapped. A failed conversion is a data integrity error, never a
// silent default.
func (s mappedShape) Decode(cur *decode.Cursor) (any, error) {
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

// Struct returns the shape of a record struct type: a mapped composite over
// the tuple of its field shapes, with a reflection-backed mapper that takes
// the struct apart and reassembles it in field declaration order.
//
// fieldIndexes names the struct fields covered by fieldShapes, in order.
// Declaration order is semantic here: it fixes decode order, so it is never
// sorted or otherwise normalised.
func Struct(typ reflect.Type, fieldIndexes []int, fieldShapes []Shape) (Shape, error) {
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("need struct type, got %s", typ.Kind())
	}
	if len(fieldIndexes) != len(fieldShapes) {
		return nil, fmt.Errorf("internal error: %d field indexes for %d shapes", len(fieldIndexes), len(fieldShapes))
	}
	indexes := make([]int, len(fieldIndexes))
	copy(indexes, fieldIndexes)

	mapper := ast.Mapper{
		ToBase: func(mapped any) (any, error) {
			v := reflect.ValueOf(mapped)
			if v.Type() != typ {
				return nil, fmt.Errorf("need %s, got %T", typ, mapped)
			}
			elems := make([]any, len(indexes))
			for i, fi := range indexes {
				elems[i] = v.Field(fi).Interface()
			}
			return elems, nil
		},
		ToMapped: func(base any) (any, error) {
			elems, ok := base.([]any)
			if !ok || len(elems) != len(indexes) {
				return nil, fmt.Errorf("need %d field values, got %T", len(indexes), base)
			}
			v := reflect.New(typ).Elem()
			for i, fi := range indexes {
				fv := v.Field(fi)
				if elems[i] == nil {
					continue
				}
				ev := reflect.ValueOf(elems[i])
				if !ev.Type().AssignableTo(fv.Type()) {
					return nil, fmt.Errorf("cannot assign %s to field %s of %s", ev.Type(), typ.Field(fi).Name, typ)
				}
				fv.Set(ev)
			}
			return v.Interface(), nil
		},
	}
	return Mapped(Tuple(fieldShapes...), mapper, typ), nil
}
