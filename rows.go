// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlshape

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/canonical/sqlshape/internal/decode"
)

// ErrNoResultSet is returned when decoding is attempted against a
// statement that produced no result set, for example a write statement.
var ErrNoResultSet = errors.New("statement produced no result set to decode")

// Iterator decodes the rows of a query result into projection values, one
// row per [Iterator.Next]. [Iterator.Close] must be run once iteration is
// finished.
type Iterator struct {
	proj    *Projection
	rows    *sql.Rows
	err     error
	started bool
}

// Iter returns an [Iterator] over the result rows. The rows must come from
// a query whose column order matches the projection's scalar order. Passing
// nil rows, for example the result of a write statement, fails immediately
// with [ErrNoResultSet].
func (p *Projection) Iter(rows *sql.Rows) *Iterator {
	if rows == nil {
		return &Iterator{proj: p, err: ErrNoResultSet}
	}
	cols, err := rows.Columns()
	if err == nil && len(cols) != p.Columns() {
		err = fmt.Errorf("query returned %d columns but projection spans %d", len(cols), p.Columns())
	}
	if err != nil {
		return &Iterator{proj: p, err: err}
	}
	return &Iterator{proj: p, rows: rows}
}

// Next prepares the next row for [Iterator.Get]. If an error occurs during
// iteration it will be returned by [Iterator.Close].
func (iter *Iterator) Next() bool {
	iter.started = true
	if iter.err != nil || iter.rows == nil {
		return false
	}
	return iter.rows.Next()
}

// Get decodes the result from the previous [Iterator.Next] call into a
// projection value.
func (iter *Iterator) Get() (v any, err error) {
	if iter.err != nil {
		return nil, iter.err
	}
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot get result: %s", err)
		}
	}()
	if !iter.started {
		return nil, fmt.Errorf("cannot call Get before Next")
	}
	if iter.rows == nil {
		return nil, fmt.Errorf("iteration ended")
	}

	row := make([]any, iter.proj.Columns())
	ptrs := make([]any, len(row))
	for i := range row {
		ptrs[i] = &row[i]
	}
	if err := iter.rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	cur := decode.NewCursor(row)
	v, err = iter.proj.sv.Shape().Decode(cur)
	if err != nil {
		return nil, err
	}
	if cur.Remaining() != 0 {
		return nil, fmt.Errorf("internal error: %d columns left undecoded", cur.Remaining())
	}
	return v, nil
}

// Close finishes the iteration and returns any errors encountered. Close
// can be called multiple times and returns the same error each time.
func (iter *Iterator) Close() error {
	iter.started = true
	if iter.rows == nil {
		return iter.err
	}
	err := iter.rows.Close()
	iter.rows = nil
	if iter.err != nil {
		return iter.err
	}
	iter.err = err
	return err
}

// One decodes the first result row into a projection value and closes the
// rows. It returns [ErrNoRows] if the query returned no rows.
func (p *Projection) One(rows *sql.Rows) (any, error) {
	iter := p.Iter(rows)
	if !iter.Next() {
		err := iter.Close()
		if err == nil {
			err = ErrNoRows
		}
		return nil, err
	}
	v, err := iter.Get()
	if cerr := iter.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// All decodes every result row into a projection value and closes the
// rows. It returns [ErrNoRows] if the query returned no rows.
func (p *Projection) All(rows *sql.Rows) ([]any, error) {
	iter := p.Iter(rows)
	var vs []any
	for iter.Next() {
		v, err := iter.Get()
		if err != nil {
			iter.Close()
			return nil, err
		}
		vs = append(vs, v)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		return nil, ErrNoRows
	}
	return vs, nil
}

// DecodeRow reconstructs a projection value from one flat, positionally
// ordered row of decoded scalars. The scalars must appear in the
// projection's depth-first, left-to-right column order.
func (p *Projection) DecodeRow(row []any) (any, error) {
	if len(row) != p.Columns() {
		return nil, fmt.Errorf("row has %d columns but projection spans %d", len(row), p.Columns())
	}
	cur := decode.NewCursor(row)
	v, err := p.sv.Shape().Decode(cur)
	if err != nil {
		return nil, err
	}
	if cur.Remaining() != 0 {
		return nil, fmt.Errorf("internal error: %d columns left undecoded", cur.Remaining())
	}
	return v, nil
}
