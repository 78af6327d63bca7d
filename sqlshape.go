// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlshape

import (
	"database/sql"
	"fmt"
	"reflect"

	"github.com/canonical/sqlshape/internal/ast"
	"github.com/canonical/sqlshape/internal/resolve"
	"github.com/canonical/sqlshape/internal/shape"
)

// Expr is a wrapped leaf expression standing for a single scalar column.
type Expr = shape.Expr

// Mapper is a bidirectional converter pair between a base representation
// and a user domain type. ToMapped(ToBase(x)) must equal x for every valid
// domain value x.
type Mapper = ast.Mapper

// Node is an immutable element of the canonical expression tree.
type Node = ast.Node

// DecodeError reports a failed backward conversion of a mapped type at
// decode time.
type DecodeError = shape.DecodeError

// ErrNoRows is returned when a projection expected results but the query
// returned none.
var ErrNoRows = sql.ErrNoRows

// ErrNotAddressable is returned by EncodeRef on a value that is not in
// canonical wrapped form.
var ErrNotAddressable = shape.ErrNotAddressable

// Lit returns a wrapped leaf holding a literal value.
func Lit(value any) *Expr {
	return shape.NewExpr(ast.NewLiteral(value), reflect.TypeOf(value))
}

// Column returns a wrapped leaf referencing the named column. The sample
// fixes the Go type the column decodes to.
func Column(name string, sample any) *Expr {
	return shape.NewExpr(ast.NewRef(name), reflect.TypeOf(sample))
}

// RegisterMapped installs a mapped descriptor for the type of sample. The
// base sample fixes the underlying representation (for example []any{0, 0}
// for a type stored as two integer columns); the mapper converts between
// the two. Registering a type twice is an ambiguity error.
func RegisterMapped(sample any, baseSample any, mapper Mapper) error {
	baseShape, err := resolve.Resolve(baseSample)
	if err != nil {
		return fmt.Errorf("cannot register mapped shape: %s", err)
	}
	return resolve.Register(sample, shape.Mapped(baseShape, mapper, reflect.TypeOf(sample)))
}

// ColumnNames returns the column names declared by the "db" tags of a
// struct type, in field declaration order. The order matches the scalar
// order of the struct's shape, so the result can be used verbatim as a
// select list for a projection of that struct.
func ColumnNames(sample any) ([]string, error) {
	return resolve.Columns(sample)
}

// Projection is a value paired with its resolved shape, ready to yield the
// canonical expression tree, the packed form, and decoded result values.
// Projections are immutable; every operation returns a fresh one.
type Projection struct {
	sv *shape.ShapedValue
}

// Project resolves a shape for each value and combines them into a single
// projection. Shapes are resolved statically from the values' types; an
// unsupported or ambiguous type fails here, before any query runs.
func Project(values ...any) (*Projection, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("cannot project zero values")
	}
	var sv *shape.ShapedValue
	for i, value := range values {
		s, err := resolve.Resolve(value)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve shape of argument %d: %s", i, err)
		}
		next, err := shape.NewShapedValue(value, s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %s", i, err)
		}
		if sv == nil {
			sv = next
		} else {
			sv = sv.Zip(next)
		}
	}
	return &Projection{sv: sv}, nil
}

// MustProject is the same as [Project] except that it panics on error.
func MustProject(values ...any) *Projection {
	p, err := Project(values...)
	if err != nil {
		panic(err)
	}
	return p
}

// Value returns the projected value.
func (p *Projection) Value() any {
	return p.sv.Value()
}

// Node builds the canonical expression tree for the projection.
func (p *Projection) Node() (Node, error) {
	return p.sv.ToNode()
}

// Pack returns the projection over the fully wrapped form of the value.
// Packing is idempotent: packing an already packed projection returns an
// equal projection.
func (p *Projection) Pack() (*Projection, error) {
	packed, err := p.sv.Pack()
	if err != nil {
		return nil, err
	}
	return &Projection{sv: packed}, nil
}

// EncodeRef rebinds every leaf of the projection to reference the named
// expression, for example a correlation variable of an enclosing query.
// The projection must be in packed form; otherwise [ErrNotAddressable] is
// returned.
func (p *Projection) EncodeRef(name string) (*Projection, error) {
	rebound, err := p.sv.EncodeRef(ast.NewRef(name))
	if err != nil {
		return nil, err
	}
	if rebound == p.sv {
		return p, nil
	}
	return &Projection{sv: rebound}, nil
}

// Bimap attaches a conversion to a user result type. forward maps a domain
// value to the projection's decoded representation; backward reconstructs
// the domain value from a decoded row, reporting ok=false when the row does
// not correspond to any domain value. A failed backward conversion at
// decode time is a [DecodeError], never a silent default.
func (p *Projection) Bimap(resultSample any, forward func(any) (any, error), backward func(any) (any, bool)) *Projection {
	return &Projection{sv: p.sv.Bimap(reflect.TypeOf(resultSample), forward, backward)}
}

// Columns returns the number of scalar columns the projection spans.
func (p *Projection) Columns() int {
	return p.sv.Shape().Columns()
}
