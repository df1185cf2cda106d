// Package table implements immutable, schema-typed record sets and the
// relational stages the pipeline composes: filter, projection, rename,
// derived columns, grouped aggregation and left join.
//
// Ownership contract:
//   - Tables are never mutated after construction.
//   - Every stage returns a new *Table; inputs remain valid and unchanged.
//   - Accessors that expose rows return copies.
package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the storage class of a column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Numeric reports whether values of this kind can be read as float64.
func (k Kind) Numeric() bool { return k == KindInt || k == KindFloat }

// ParseKind maps config type names onto a Kind.
//
// Accepted spellings mirror the SQL-ish names used in pipeline configs
// ("text", "bigint", "double", ...).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "text", "varchar", "category", "categorical":
		return KindString, nil
	case "int", "integer", "bigint", "int8", "int4":
		return KindInt, nil
	case "float", "double", "real", "numeric", "float8":
		return KindFloat, nil
	default:
		return KindString, fmt.Errorf("unknown column type %q", s)
	}
}

// Value is a single cell. The zero Value is a missing string.
//
// Missing is a distinct state, not a zero payload: a missing float is never
// read back as 0 and a missing string is never read back as "".
type Value struct {
	kind  Kind
	valid bool
	s     string
	i     int64
	f     float64
}

// String returns a present string value.
func String(s string) Value { return Value{kind: KindString, valid: true, s: s} }

// Int returns a present int value.
func Int(i int64) Value { return Value{kind: KindInt, valid: true, i: i} }

// Float returns a present float value. NaN is stored as missing.
func Float(f float64) Value {
	if math.IsNaN(f) {
		return Missing(KindFloat)
	}
	return Value{kind: KindFloat, valid: true, f: f}
}

// Missing returns a missing value of kind k.
func Missing(k Kind) Value { return Value{kind: k} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsMissing() bool { return !v.valid }

// Float64 returns the numeric payload. ok is false for missing values and
// for strings.
func (v Value) Float64() (f float64, ok bool) {
	if !v.valid {
		return 0, false
	}
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// Int64 returns the int payload. ok is false unless v is a present int.
func (v Value) Int64() (int64, bool) {
	if !v.valid || v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// Text returns the canonical text form of a present value and "" for a
// missing one. Two values with equal Text are the same key for grouping and
// joining regardless of kind.
func (v Value) Text() string {
	if !v.valid {
		return ""
	}
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return v.s
	}
}

// Any converts v into a driver-friendly Go value (nil when missing).
func (v Value) Any() any {
	if !v.valid {
		return nil
	}
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	default:
		return v.s
	}
}

func (v Value) String() string {
	if !v.valid {
		return "NA"
	}
	return v.Text()
}

// Equal reports kind, presence and payload equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.valid != o.valid {
		return false
	}
	if !v.valid {
		return true
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	default:
		return v.s == o.s
	}
}

// Parse converts raw text into a value of kind k. Empty input is missing.
func Parse(k Kind, raw string) (Value, error) {
	if raw == "" {
		return Missing(k), nil
	}
	switch k {
	case KindInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Missing(k), fmt.Errorf("parse int %q: %w", raw, err)
		}
		return Int(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Missing(k), fmt.Errorf("parse float %q: %w", raw, err)
		}
		return Float(f), nil
	default:
		return String(raw), nil
	}
}
