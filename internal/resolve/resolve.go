// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package resolve maps sample values to shape descriptors. Resolution is
// deterministic: a given type resolves to exactly one shape, derived from
// the type alone and cached for the lifetime of the process. Ambiguity and
// unsupported types fail here, before any value flows through the shape
// algebra.
package resolve

import (
	"database/sql"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/canonical/sqlshape/internal/shape"
)

var scannerInterface = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
var timeType = reflect.TypeOf(time.Time{})
var exprSampleType = reflect.TypeOf(&shape.Expr{})

// shapeCache caches derived descriptors across resolutions. Registered
// shapes live in the same map; registration wins over derivation and a
// second registration for a type is an ambiguity error.
var cacheMutex sync.RWMutex
var shapeCache = make(map[reflect.Type]shape.Shape)
var registered = make(map[reflect.Type]bool)

// Register installs an explicit descriptor for the type of sample,
// overriding derivation. Registering a second descriptor for the same type
// is an ambiguity error: resolution must never have to guess.
func Register(sample any, s shape.Shape) error {
	if sample == nil {
		return fmt.Errorf("cannot register shape for nil value")
	}
	t := reflect.TypeOf(sample)
	cacheMutex.Lock()
	defer cacheMutex.Unlock()
	if registered[t] {
		return fmt.Errorf("ambiguous shape: type %q already has a registered shape", t)
	}
	registered[t] = true
	shapeCache[t] = s
	return nil
}

// Resolve returns the descriptor for the shape of sample. Wrapped leaf
// expressions resolve from the value (each carries its own scalar type);
// everything else resolves from the type and is cached.
func Resolve(sample any) (shape.Shape, error) {
	if sample == nil {
		return nil, fmt.Errorf("cannot resolve shape of nil value")
	}

	// A wrapped leaf knows its own scalar type; the *Expr type alone does
	// not determine the shape, so these never enter the type cache.
	if e, ok := sample.(*shape.Expr); ok {
		return shape.ExprOf(e.Type()), nil
	}

	// Tuples resolve element-wise from the sample values.
	if elems, ok := sample.([]any); ok {
		children := make([]shape.Shape, len(elems))
		for i, elem := range elems {
			child, err := Resolve(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %s", i, err)
			}
			children[i] = child
		}
		return shape.Tuple(children...), nil
	}

	return resolveType(reflect.TypeOf(sample))
}

// resolveType returns the cached or derived descriptor for a type. All
// nested derivation funnels through here, so a registered shape applies
// wherever its type appears: at the top level, as a struct field, or under
// an option pointer.
func resolveType(t reflect.Type) (shape.Shape, error) {
	cacheMutex.RLock()
	s, found := shapeCache[t]
	cacheMutex.RUnlock()
	if found {
		return s, nil
	}

	s, err := derive(t)
	if err != nil {
		return nil, err
	}

	cacheMutex.Lock()
	// A shape registered while we derived wins; derivation is
	// deterministic so overwriting a concurrent derivation is harmless.
	if registered[t] {
		s = shapeCache[t]
	} else {
		shapeCache[t] = s
	}
	cacheMutex.Unlock()

	return s, nil
}

// derive produces the descriptor for a type. Exactly one rule matches any
// supported type; the rules are ordered so opaque scanner types are caught
// before their underlying kind is inspected.
func derive(t reflect.Type) (shape.Shape, error) {
	switch {
	case t == exprSampleType:
		return nil, fmt.Errorf("internal error: wrapped expressions resolve by value, not type")
	case reflect.PointerTo(t).Implements(scannerInterface):
		return shape.RawOf(t), nil
	case t == timeType:
		return shape.RawOf(t), nil
	}

	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return shape.RawOf(t), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return shape.RawOf(t), nil
		}
		return nil, fmt.Errorf("need supported type, got slice of %s", t.Elem().Kind())
	case reflect.Pointer:
		inner, err := resolveType(t.Elem())
		if err != nil {
			return nil, err
		}
		opt, err := shape.Option(inner)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve %s: %s", t, err)
		}
		return opt, nil
	case reflect.Struct:
		return deriveStruct(t)
	default:
		return nil, fmt.Errorf("need supported type, got %s", t.Kind())
	}
}

// deriveStruct builds the composite descriptor for a record struct from its
// "db" tagged fields, in declaration order. Declaration order fixes decode
// order, so tags are never sorted.
func deriveStruct(t reflect.Type) (shape.Shape, error) {
	if t.NumField() == 0 {
		return shape.Unit, nil
	}

	var indexes []int
	var shapes []shape.Shape
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		// Fields without a "db" tag are outside the projection.
		tag := f.Tag.Get("db")
		if tag == "" {
			continue
		}
		if !f.IsExported() {
			return nil, fmt.Errorf("field %q of struct %s not exported", f.Name, t.Name())
		}
		if _, err := parseTag(tag); err != nil {
			return nil, fmt.Errorf("cannot parse tag for field %s.%s: %s", t.Name(), f.Name, err)
		}
		child, err := resolveType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %s", t.Name(), f.Name, err)
		}
		indexes = append(indexes, i)
		shapes = append(shapes, child)
	}
	if len(indexes) == 0 {
		return nil, fmt.Errorf(`no "db" tags found in struct %q`, t.Name())
	}
	return shape.Struct(t, indexes, shapes)
}

// Columns returns the column names declared by the "db" tags of a struct
// type, in field declaration order, matching the scalar order of its shape.
func Columns(sample any) ([]string, error) {
	if sample == nil {
		return nil, fmt.Errorf("cannot get columns of nil value")
	}
	t := reflect.TypeOf(sample)
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("need struct, got %s", t.Kind())
	}
	var cols []string
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("db")
		if tag == "" {
			continue
		}
		name, err := parseTag(tag)
		if err != nil {
			return nil, fmt.Errorf("cannot parse tag for field %s.%s: %s", t.Name(), t.Field(i).Name, err)
		}
		cols = append(cols, name)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf(`no "db" tags found in struct %q`, t.Name())
	}
	return cols, nil
}

// This expression should be aligned with the column names accepted by the
// query building layer.
var validColNameRx = regexp.MustCompile(`^([a-zA-Z_])+([a-zA-Z_0-9])*$`)

// parseTag parses a "db" tag and returns the column name it declares.
func parseTag(tag string) (string, error) {
	options := strings.Split(tag, ",")
	if len(options) > 1 {
		return "", fmt.Errorf("unsupported flag %q in tag %q", options[1], tag)
	}
	name := options[0]
	if len(name) == 0 {
		return "", fmt.Errorf("empty db tag")
	}
	if !validColNameRx.MatchString(name) {
		return "", fmt.Errorf("invalid column name in 'db' tag: %q", name)
	}
	return name, nil
}
