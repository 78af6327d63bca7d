// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package resolve

import (
	"reflect"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/canonical/sqlshape/internal/ast"
	"github.com/canonical/sqlshape/internal/decode"
	"github.com/canonical/sqlshape/internal/shape"
)

func TestResolveScalars(t *testing.T) {
	for _, sample := range []any{0, int64(0), "", false, 0.0, uint8(0), []byte(nil)} {
		s, err := Resolve(sample)
		assert.Nil(t, err, "sample %T", sample)
		assert.Equal(t, reflect.TypeOf(sample), s.MixedType(), "sample %T", sample)
		assert.Equal(t, 1, s.Columns(), "sample %T", sample)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	a, err := Resolve(0)
	assert.Nil(t, err)
	b, err := Resolve(0)
	assert.Nil(t, err)
	assert.Equal(t, a, b)
}

func TestResolveConcurrent(t *testing.T) {
	type concurrentStruct struct {
		ID int `db:"id"`
	}
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			_, _ = Resolve(concurrentStruct{})
			wg.Done()
		}()
	}
	s, err := Resolve(concurrentStruct{})
	assert.Nil(t, err)
	assert.Equal(t, 1, s.Columns())
	wg.Wait()
}

func TestResolveExprByValue(t *testing.T) {
	e := shape.NewExpr(ast.NewRef("name"), reflect.TypeOf(""))
	s, err := Resolve(e)
	assert.Nil(t, err)
	assert.Equal(t, reflect.TypeOf(""), s.UnpackedType())

	// The scalar type comes from the value, not the *Expr type.
	e2 := shape.NewExpr(ast.NewRef("id"), reflect.TypeOf(0))
	s2, err := Resolve(e2)
	assert.Nil(t, err)
	assert.Equal(t, reflect.TypeOf(0), s2.UnpackedType())
}

func TestResolveTupleElementWise(t *testing.T) {
	s, err := Resolve([]any{0, "", []any{false}})
	assert.Nil(t, err)
	assert.Equal(t, 3, s.Columns())

	n, err := s.ToNode([]any{1, "x", []any{true}})
	assert.Nil(t, err)
	want := ast.NewProduct(
		ast.NewLiteral(1),
		ast.NewLiteral("x"),
		ast.NewProduct(ast.NewLiteral(true)),
	)
	assert.True(t, n.Equal(want), "got %s", n)
}

func TestResolveStructDeclarationOrder(t *testing.T) {
	type employee struct {
		Name    string `db:"name"`
		Ignored string
		ID      int  `db:"id"`
		Boss    *int `db:"boss_id"`
	}

	s, err := Resolve(employee{})
	assert.Nil(t, err)
	assert.Equal(t, 3, s.Columns())

	boss := 7
	n, err := s.ToNode(employee{Name: "Fred", ID: 10, Boss: &boss})
	assert.Nil(t, err)
	tm, ok := n.(ast.TypeMapping)
	assert.True(t, ok)
	assert.Equal(t, reflect.TypeOf(employee{}), tm.Type)
	// Children appear in field declaration order, never sorted by tag.
	assert.True(t, tm.Child.Equal(ast.NewProduct(
		ast.NewLiteral("Fred"),
		ast.NewLiteral(10),
		ast.NewLiteral(7),
	)), "got %s", tm.Child)

	v, err := s.Decode(decode.NewCursor([]any{"Fred", int64(10), nil}))
	assert.Nil(t, err)
	assert.Equal(t, employee{Name: "Fred", ID: 10}, v)
}

func TestResolveStructWithScannerField(t *testing.T) {
	type account struct {
		ID   uuid.UUID `db:"id"`
		Name string    `db:"name"`
	}
	s, err := Resolve(account{})
	assert.Nil(t, err)

	id := uuid.New()
	v, err := s.Decode(decode.NewCursor([]any{id.String(), "savings"}))
	assert.Nil(t, err)
	assert.Equal(t, account{ID: id, Name: "savings"}, v)
}

func TestResolveEmptyStructIsUnit(t *testing.T) {
	s, err := Resolve(struct{}{})
	assert.Nil(t, err)
	assert.Equal(t, 0, s.Columns())
	n, err := s.ToNode(struct{}{})
	assert.Nil(t, err)
	assert.True(t, n.Equal(ast.NewProduct()))
}

func TestResolveFailures(t *testing.T) {
	_, err := Resolve(nil)
	assert.EqualError(t, err, "cannot resolve shape of nil value")

	_, err = Resolve(make(chan int))
	assert.EqualError(t, err, "need supported type, got chan")

	_, err = Resolve(map[string]any{})
	assert.EqualError(t, err, "need supported type, got map")

	_, err = Resolve([]int{1, 2})
	assert.EqualError(t, err, "need supported type, got slice of int")

	type untagged struct {
		Name string
	}
	_, err = Resolve(untagged{})
	assert.EqualError(t, err, `no "db" tags found in struct "untagged"`)

	type badTag struct {
		Name string `db:"name,omitempty"`
	}
	_, err = Resolve(badTag{})
	assert.EqualError(t, err, `cannot parse tag for field badTag.Name: unsupported flag "omitempty" in tag "name,omitempty"`)

	type unexported struct {
		name string `db:"name"`
	}
	_, err = Resolve(unexported{})
	assert.EqualError(t, err, `field "name" of struct unexported not exported`)
}

func TestRegisterDuplicateIsAmbiguous(t *testing.T) {
	type registered struct{ X int }
	err := Register(registered{}, shape.RawOf(reflect.TypeOf(0)))
	assert.Nil(t, err)
	err = Register(registered{}, shape.RawOf(reflect.TypeOf(0)))
	assert.EqualError(t, err, `ambiguous shape: type "resolve.registered" already has a registered shape`)
}

func TestRegisteredShapeWinsOverDerivation(t *testing.T) {
	type wrapped struct{ V int }
	wrappedType := reflect.TypeOf(wrapped{})
	mapper := ast.Mapper{
		ToBase:   func(v any) (any, error) { return v.(wrapped).V, nil },
		ToMapped: func(v any) (any, error) { return wrapped{V: v.(int)}, nil },
	}
	err := Register(wrapped{}, shape.Mapped(shape.RawOf(reflect.TypeOf(0)), mapper, wrappedType))
	assert.Nil(t, err)

	s, err := Resolve(wrapped{})
	assert.Nil(t, err)
	assert.Equal(t, wrappedType, s.UnpackedType())
	v, err := s.Decode(decode.NewCursor([]any{int64(3)}))
	assert.Nil(t, err)
	assert.Equal(t, wrapped{V: 3}, v)
}

func TestRegisteredShapeAppliesToStructFields(t *testing.T) {
	type label struct{ Text string }
	labelType := reflect.TypeOf(label{})
	mapper := ast.Mapper{
		ToBase:   func(v any) (any, error) { return v.(label).Text, nil },
		ToMapped: func(v any) (any, error) { return label{Text: v.(string)}, nil },
	}
	err := Register(label{}, shape.Mapped(shape.RawOf(reflect.TypeOf("")), mapper, labelType))
	assert.Nil(t, err)

	// The registered shape applies wherever the type appears, not only at
	// the top level.
	type ticket struct {
		ID    int    `db:"id"`
		Label label  `db:"label"`
		Note  *label `db:"note"`
	}
	s, err := Resolve(ticket{})
	assert.Nil(t, err)
	assert.Equal(t, 3, s.Columns())

	v, err := s.Decode(decode.NewCursor([]any{int64(4), "urgent", nil}))
	assert.Nil(t, err)
	assert.Equal(t, ticket{ID: 4, Label: label{Text: "urgent"}}, v)

	note := label{Text: "call back"}
	v, err = s.Decode(decode.NewCursor([]any{int64(5), "routine", "call back"}))
	assert.Nil(t, err)
	assert.Equal(t, ticket{ID: 5, Label: label{Text: "routine"}, Note: &note}, v)
}

func TestColumns(t *testing.T) {
	type person struct {
		Name    string `db:"name"`
		Ignored string
		ID      int `db:"id"`
	}
	cols, err := Columns(person{})
	assert.Nil(t, err)
	assert.Equal(t, []string{"name", "id"}, cols)

	_, err = Columns(0)
	assert.EqualError(t, err, "need struct, got int")
}
