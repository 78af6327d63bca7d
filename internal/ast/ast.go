// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package ast defines the expression tree vocabulary produced by shape
// descriptors and consumed by the query building and row decoding layers.
// Nodes are immutable once constructed and are compared structurally.
package ast

import (
	"fmt"
	"reflect"
	"strings"
)

// Node is an element of the expression tree describing the structure of a
// projection. Nodes are never mutated after construction.
type Node interface {
	// Equal reports whether the node is structurally equal to other.
	Equal(other Node) bool
	// String returns a rendering of the node for error messages and tests.
	String() string

	node()
}

// Literal is a leaf node holding a plain Go value.
type Literal struct {
	Value any
}

// NewLiteral returns a literal node wrapping value.
func NewLiteral(value any) Literal {
	return Literal{Value: value}
}

func (l Literal) node() {}

// Equal reports whether other is a literal holding an equal value.
func (l Literal) Equal(other Node) bool {
	o, ok := other.(Literal)
	if !ok {
		return false
	}
	return reflect.DeepEqual(l.Value, o.Value)
}

func (l Literal) String() string {
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("Literal(%q)", s)
	}
	return fmt.Sprintf("Literal(%v)", l.Value)
}

// Ref is a leaf node referencing a named expression, for example a
// correlation variable of an enclosing query.
type Ref struct {
	Name string
}

// NewRef returns a reference node for the given name.
func NewRef(name string) Ref {
	return Ref{Name: name}
}

func (r Ref) node() {}

// Equal reports whether other references the same name.
func (r Ref) Equal(other Node) bool {
	o, ok := other.(Ref)
	return ok && r.Name == o.Name
}

func (r Ref) String() string {
	return fmt.Sprintf("Ref(%s)", r.Name)
}

// Select addresses a single element of a parent expression. Indices are
// 1-based: the first element of a product is Select(parent, 1).
type Select struct {
	Parent Node
	Index  int
}

// NewSelect returns a node selecting the index-th element of parent. It
// panics if index is less than 1, which is a bug in the caller rather than
// a data error.
func NewSelect(parent Node, index int) Select {
	if index < 1 {
		panic(fmt.Sprintf("internal error: select index must be 1-based, got %d", index))
	}
	return Select{Parent: parent, Index: index}
}

func (s Select) node() {}

// Equal reports whether other selects the same element of an equal parent.
func (s Select) Equal(other Node) bool {
	o, ok := other.(Select)
	return ok && s.Index == o.Index && s.Parent.Equal(o.Parent)
}

func (s Select) String() string {
	return fmt.Sprintf("Select(%s, %d)", s.Parent, s.Index)
}

// Product is an ordered aggregate of child expressions. Child order is
// significant: it defines both the rendering order of a projection and the
// order scalars are pulled off a decoded row.
type Product struct {
	Children []Node
}

// NewProduct returns a product node over the given children. The children
// slice is copied so later changes to the argument cannot leak into the node.
func NewProduct(children ...Node) Product {
	cs := make([]Node, len(children))
	copy(cs, children)
	return Product{Children: cs}
}

func (p Product) node() {}

// Equal reports whether other is a product with pairwise equal children.
func (p Product) Equal(other Node) bool {
	o, ok := other.(Product)
	if !ok || len(p.Children) != len(o.Children) {
		return false
	}
	for i, c := range p.Children {
		if !c.Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

func (p Product) String() string {
	var parts []string
	for _, c := range p.Children {
		parts = append(parts, c.String())
	}
	return "Product(" + strings.Join(parts, ", ") + ")"
}

// Mapper is a bidirectional converter pair between a base representation
// (an ordered field sequence or a single unpacked value) and a user domain
// value. ToMapped returning an error at decode time is a data integrity
// failure surfaced to the caller.
type Mapper struct {
	// ToBase converts a domain value to its base representation.
	ToBase func(mapped any) (any, error)
	// ToMapped converts a base representation back to the domain value.
	ToMapped func(base any) (any, error)
}

// TypeMapping wraps a child expression with the converter pair needed to
// assemble a domain value from the child's decoded scalars. The decoding
// layer must invert it by calling Mapper.ToMapped rather than exposing the
// base representation directly.
type TypeMapping struct {
	Child  Node
	Mapper Mapper
	// Type identifies the domain type the mapper produces. It is carried
	// for error reporting and for structural comparison, since the mapper
	// functions themselves are not comparable.
	Type reflect.Type
}

// NewTypeMapping returns a type mapping node around child.
func NewTypeMapping(child Node, mapper Mapper, typ reflect.Type) TypeMapping {
	return TypeMapping{Child: child, Mapper: mapper, Type: typ}
}

func (t TypeMapping) node() {}

// Equal reports whether other maps an equal child to the same domain type.
// The mapper functions are ignored: Go functions are not comparable, and two
// mappings over the same child and type tag are interchangeable by the
// round-trip law.
func (t TypeMapping) Equal(other Node) bool {
	o, ok := other.(TypeMapping)
	return ok && t.Type == o.Type && t.Child.Equal(o.Child)
}

func (t TypeMapping) String() string {
	return fmt.Sprintf("TypeMapping(%s, %s)", t.Child, t.Type)
}

// Walk calls f for n and then for each of its descendants in depth-first,
// left-to-right order. If f returns false the walk does not descend into
// the node's children.
func Walk(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch n := n.(type) {
	case Select:
		Walk(n.Parent, f)
	case Product:
		for _, c := range n.Children {
			Walk(c, f)
		}
	case TypeMapping:
		Walk(n.Child, f)
	}
}
