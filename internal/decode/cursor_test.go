// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package decode

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCursorNext(t *testing.T) {
	cur := NewCursor([]any{int64(1), "two"})
	assert.Equal(t, 2, cur.Remaining())

	v, err := cur.Next()
	assert.Nil(t, err)
	assert.Equal(t, int64(1), v)

	v, err = cur.Next()
	assert.Nil(t, err)
	assert.Equal(t, "two", v)
	assert.Equal(t, 0, cur.Remaining())

	_, err = cur.Next()
	assert.EqualError(t, err, "internal error: read past end of row (position 2, row has 2 columns)")
}

func TestCoerceNumericWidenings(t *testing.T) {
	// Drivers return int64 and float64 regardless of the column's declared
	// width.
	v, err := Coerce(int64(42), reflect.TypeOf(0))
	assert.Nil(t, err)
	assert.Equal(t, 42, v)

	v, err = Coerce(int64(42), reflect.TypeOf(uint16(0)))
	assert.Nil(t, err)
	assert.Equal(t, uint16(42), v)

	v, err = Coerce(float64(1.5), reflect.TypeOf(float32(0)))
	assert.Nil(t, err)
	assert.Equal(t, float32(1.5), v)
}

func TestCoerceOutOfRange(t *testing.T) {
	// Narrowing that would truncate or flip sign fails loudly, matching
	// the database/sql value out of range behaviour.
	_, err := Coerce(int64(300), reflect.TypeOf(uint8(0)))
	assert.EqualError(t, err, "cannot decode 300 (int64) into uint8: value out of range")

	_, err = Coerce(int64(-1), reflect.TypeOf(uint(0)))
	assert.EqualError(t, err, "cannot decode -1 (int64) into uint: value out of range")

	_, err = Coerce(int64(1<<20), reflect.TypeOf(int16(0)))
	assert.EqualError(t, err, "cannot decode 1048576 (int64) into int16: value out of range")

	_, err = Coerce(float64(1.5), reflect.TypeOf(0))
	assert.EqualError(t, err, "cannot decode 1.5 (float64) into int: value out of range")

	// Boundary values still convert.
	v, err := Coerce(int64(255), reflect.TypeOf(uint8(0)))
	assert.Nil(t, err)
	assert.Equal(t, uint8(255), v)

	// Scan names the offending column.
	cur := NewCursor([]any{int64(70000)})
	_, err = cur.Scan(reflect.TypeOf(int16(0)))
	assert.EqualError(t, err, "column 0: cannot decode 70000 (int64) into int16: value out of range")
}

func TestCoerceBool(t *testing.T) {
	v, err := Coerce(int64(1), reflect.TypeOf(false))
	assert.Nil(t, err)
	assert.Equal(t, true, v)

	v, err = Coerce(int64(0), reflect.TypeOf(false))
	assert.Nil(t, err)
	assert.Equal(t, false, v)
}

func TestCoerceBytesAndStrings(t *testing.T) {
	v, err := Coerce([]byte("hi"), reflect.TypeOf(""))
	assert.Nil(t, err)
	assert.Equal(t, "hi", v)

	v, err = Coerce("hi", reflect.TypeOf([]byte(nil)))
	assert.Nil(t, err)
	assert.Equal(t, []byte("hi"), v)
}

func TestCoerceNull(t *testing.T) {
	// NULL into a pointer is the nil pointer.
	v, err := Coerce(nil, reflect.TypeOf((*int)(nil)))
	assert.Nil(t, err)
	assert.Equal(t, (*int)(nil), v)

	// NULL into a plain destination zeroes it.
	v, err = Coerce(nil, reflect.TypeOf(0))
	assert.Nil(t, err)
	assert.Equal(t, 0, v)
}

func TestCoercePointer(t *testing.T) {
	v, err := Coerce(int64(7), reflect.TypeOf((*int)(nil)))
	assert.Nil(t, err)
	assert.Equal(t, 7, *v.(*int))
}

func TestCoerceScanner(t *testing.T) {
	id := uuid.New()
	v, err := Coerce(id.String(), reflect.TypeOf(uuid.UUID{}))
	assert.Nil(t, err)
	assert.Equal(t, id, v)

	_, err = Coerce("not a uuid", reflect.TypeOf(uuid.UUID{}))
	assert.ErrorContains(t, err, "cannot scan string into uuid.UUID")
}

func TestCoerceUnsupported(t *testing.T) {
	_, err := Coerce("nope", reflect.TypeOf(0))
	assert.EqualError(t, err, "cannot decode string into int")
}

func TestScanPositionInErrors(t *testing.T) {
	cur := NewCursor([]any{int64(1), "nope"})
	_, err := cur.Scan(reflect.TypeOf(0))
	assert.Nil(t, err)
	_, err = cur.Scan(reflect.TypeOf(0))
	assert.EqualError(t, err, "column 1: cannot decode string into int")
}
