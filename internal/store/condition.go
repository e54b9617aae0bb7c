package store

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

type conditionKind int

const (
	kindNone conditionKind = iota
	kindEquals
	kindAnd
	kindOr
)

// Condition is an equality predicate tree. The zero value matches every row.
//
// Trees are built with Equals, And, Or, Match, and AnyOf. A tree that was
// built from invalid input carries its construction error and is rejected
// before any statement is synthesized.
type Condition struct {
	kind     conditionKind
	column   string
	value    any
	children []Condition
	err      error
}

// Equals matches rows whose column equals value. Only scalar values are
// accepted: strings, booleans, numbers, byte slices, and time.Time.
func Equals(column string, value any) Condition {
	column = strings.TrimSpace(column)
	if column == "" {
		return Condition{err: errors.New("condition column is empty")}
	}
	if !isScalar(value) {
		return Condition{err: fmt.Errorf("condition value for %q must be scalar, got %T", column, value)}
	}
	return Condition{kind: kindEquals, column: column, value: value}
}

// And matches rows satisfying every child.
func And(children ...Condition) Condition {
	return group(kindAnd, "and", children)
}

// Or matches rows satisfying at least one child.
func Or(children ...Condition) Condition {
	return group(kindOr, "or", children)
}

// Match builds the conjunction of equality tests over a mapping. Keys are
// ordered so the rendered statement is stable.
func Match(fields map[string]any) Condition {
	if len(fields) == 0 {
		return Condition{err: errors.New("match requires at least one field")}
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	children := make([]Condition, 0, len(keys))
	for _, key := range keys {
		children = append(children, Equals(key, fields[key]))
	}
	return And(children...)
}

// AnyOf builds a disjunction of conjunctions, one per mapping.
func AnyOf(fields ...map[string]any) Condition {
	children := make([]Condition, 0, len(fields))
	for _, f := range fields {
		children = append(children, Match(f))
	}
	return Or(children...)
}

func group(kind conditionKind, label string, children []Condition) Condition {
	if len(children) == 0 {
		return Condition{err: fmt.Errorf("%s requires at least one condition", label)}
	}
	for _, child := range children {
		if child.err != nil {
			return Condition{err: child.err}
		}
		if child.kind == kindNone {
			return Condition{err: fmt.Errorf("%s contains an empty condition", label)}
		}
	}
	return Condition{kind: kind, children: append([]Condition(nil), children...)}
}

// Err reports the construction error carried by the tree, if any.
func (c Condition) Err() error {
	return c.err
}

// IsZero reports whether the condition matches every row.
func (c Condition) IsZero() bool {
	return c.kind == kindNone && c.err == nil
}

// Columns lists every column referenced by the tree in render order.
func (c Condition) Columns() []string {
	var out []string
	c.walk(func(leaf Condition) {
		out = append(out, leaf.column)
	})
	return out
}

func (c Condition) walk(fn func(Condition)) {
	switch c.kind {
	case kindEquals:
		fn(c)
	case kindAnd, kindOr:
		for _, child := range c.children {
			child.walk(fn)
		}
	}
}

// Render produces the predicate text and bound arguments. Identifiers are
// checked for shape only; the Store additionally checks them against the live
// table.
func (c Condition) Render() (string, []any, error) {
	return c.render(func(_ string, v any) (any, error) { return v, nil })
}

func (c Condition) render(bind func(column string, value any) (any, error)) (string, []any, error) {
	if c.err != nil {
		return "", nil, c.err
	}
	switch c.kind {
	case kindNone:
		return "", nil, nil
	case kindEquals:
		if err := checkIdentifier(c.column); err != nil {
			return "", nil, err
		}
		bound, err := bind(c.column, c.value)
		if err != nil {
			return "", nil, err
		}
		return quoteIdent(c.column) + " = ?", []any{bound}, nil
	}

	parts := make([]string, 0, len(c.children))
	var args []any
	for _, child := range c.children {
		text, childArgs, err := child.render(bind)
		if err != nil {
			return "", nil, err
		}
		if needsParens(c.kind, child, len(c.children)) {
			text = "(" + text + ")"
		}
		parts = append(parts, text)
		args = append(args, childArgs...)
	}
	joiner := " AND "
	if c.kind == kindOr {
		joiner = " OR "
	}
	return strings.Join(parts, joiner), args, nil
}

// needsParens reports whether child must be wrapped when rendered inside a
// group of kind parent. Leaves never are; each group wraps its own operands
// exactly once.
func needsParens(parent conditionKind, child Condition, siblings int) bool {
	switch parent {
	case kindOr:
		return child.kind != kindEquals
	case kindAnd:
		return child.kind == kindOr && siblings > 1
	}
	return false
}

func isScalar(value any) bool {
	switch value.(type) {
	case nil:
		return false
	case string, bool, []byte, time.Time:
		return true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
