// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package decode provides a positioned cursor over one flat row of decoded
// driver scalars. Shapes consume the cursor sequentially, in the depth-first
// left-to-right order defined by their child lists.
package decode

import (
	"database/sql"
	"fmt"
	"math"
	"reflect"
)

var scannerInterface = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// Cursor is a read-once positional view over a single row. It is not safe
// for concurrent use; a fresh cursor is made for every row.
type Cursor struct {
	row []any
	pos int
}

// NewCursor returns a cursor over the given row of driver scalars.
func NewCursor(row []any) *Cursor {
	return &Cursor{row: row}
}

// Next returns the next scalar in the row and advances the cursor. Reading
// past the end of the row indicates a shape/column arity mismatch that should
// have been caught before decoding started.
func (c *Cursor) Next() (any, error) {
	if c.pos >= len(c.row) {
		return nil, fmt.Errorf("internal error: read past end of row (position %d, row has %d columns)", c.pos, len(c.row))
	}
	v := c.row[c.pos]
	c.pos++
	return v, nil
}

// Remaining returns the number of scalars not yet consumed.
func (c *Cursor) Remaining() int {
	return len(c.row) - c.pos
}

// Scan consumes the next scalar and coerces it to the given Go type.
func (c *Cursor) Scan(t reflect.Type) (any, error) {
	src, err := c.Next()
	if err != nil {
		return nil, err
	}
	v, err := Coerce(src, t)
	if err != nil {
		return nil, fmt.Errorf("column %d: %s", c.pos-1, err)
	}
	return v, nil
}

// Coerce converts a driver scalar to the given Go type. Drivers return a
// restricted set of types (int64, float64, bool, []byte, string, time.Time,
// nil), so the conversions here mirror what database/sql does when scanning
// into a typed destination: numeric widenings, []byte to string, and
// sql.Scanner support for opaque types.
func Coerce(src any, t reflect.Type) (any, error) {
	if t.Kind() == reflect.Pointer {
		if src == nil {
			return reflect.Zero(t).Interface(), nil
		}
		elem, err := Coerce(src, t.Elem())
		if err != nil {
			return nil, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(reflect.ValueOf(elem))
		return p.Interface(), nil
	}

	// A NULL scanned into a non-pointer destination is zeroed, matching the
	// scan proxy behaviour of database/sql for nilable destinations.
	if src == nil {
		return reflect.Zero(t).Interface(), nil
	}

	if reflect.PointerTo(t).Implements(scannerInterface) {
		p := reflect.New(t)
		if err := p.Interface().(sql.Scanner).Scan(src); err != nil {
			return nil, fmt.Errorf("cannot scan %T into %s: %s", src, t, err)
		}
		return p.Elem().Interface(), nil
	}

	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(t) {
		return src, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		if i, ok := src.(int64); ok {
			return i != 0, nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if isNumeric(sv.Kind()) {
			if !fitsIn(sv, t) {
				return nil, fmt.Errorf("cannot decode %v (%T) into %s: value out of range", src, src, t)
			}
			return sv.Convert(t).Interface(), nil
		}
	case reflect.String:
		if b, ok := src.([]byte); ok {
			return string(b), nil
		}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			if s, ok := src.(string); ok {
				return []byte(s), nil
			}
			if b, ok := src.([]byte); ok {
				return append([]byte(nil), b...), nil
			}
		}
	}
	return nil, fmt.Errorf("cannot decode %T into %s", src, t)
}

// fitsIn reports whether a numeric value converts to t without truncation
// or sign change. database/sql refuses such conversions with a value out of
// range error rather than wrapping silently.
func fitsIn(sv reflect.Value, t reflect.Type) bool {
	dst := reflect.New(t).Elem()
	switch sv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := sv.Int()
		switch dst.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return !dst.OverflowInt(i)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return i >= 0 && !dst.OverflowUint(uint64(i))
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := sv.Uint()
		switch dst.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return u <= math.MaxInt64 && !dst.OverflowInt(int64(u))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return !dst.OverflowUint(u)
		}
	case reflect.Float32, reflect.Float64:
		f := sv.Float()
		switch dst.Kind() {
		case reflect.Float32, reflect.Float64:
			return !dst.OverflowFloat(f)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return f == math.Trunc(f) && f >= -(1<<63) && f < (1<<63) && !dst.OverflowInt(int64(f))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return f == math.Trunc(f) && f >= 0 && f < (1<<64) && !dst.OverflowUint(uint64(f))
		}
	}
	return true
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
