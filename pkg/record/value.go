// Package record provides the dynamic value and record types that flow
// between extraction and transformation.
package record

import (
	"fmt"
	"time"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindString
	KindList
	KindRecord
	KindNumber
	KindBool
	KindTime
)

var kindNames = [...]string{
	KindAbsent: "absent",
	KindString: "string",
	KindList:   "list",
	KindRecord: "record",
	KindNumber: "number",
	KindBool:   "bool",
	KindTime:   "time",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Value is a tagged union over the shapes a field can take.
// The zero Value is absent.
type Value struct {
	kind  Kind
	str   string
	num   float64
	flag  bool
	when  time.Time
	items []Value
	rec   *Record
}

// Absent returns the value used for fields that matched nothing.
func Absent() Value { return Value{} }

// String wraps s.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps f.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool wraps b.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Time wraps t.
func Time(t time.Time) Value { return Value{kind: KindTime, when: t} }

// List wraps an ordered sequence of values.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, items: cp}
}

// Strings is shorthand for a List of String values.
func Strings(ss ...string) Value {
	items := make([]Value, len(ss))
	for i, s := range ss {
		items[i] = String(s)
	}
	return Value{kind: KindList, items: items}
}

// Nested wraps a record. A nil record is treated as absent.
func Nested(r *Record) Value {
	if r == nil {
		return Absent()
	}
	return Value{kind: KindRecord, rec: r}
}

// Of converts a plain Go value into a Value. It accepts the types produced
// by Interface as well as the common numeric types and decoded JSON/YAML
// shapes.
func Of(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Absent(), nil
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case time.Time:
		return Time(x), nil
	case []string:
		return Strings(x...), nil
	case []any:
		items := make([]Value, 0, len(x))
		for i, item := range x {
			iv, err := Of(item)
			if err != nil {
				return Value{}, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, iv)
		}
		return Value{kind: KindList, items: items}, nil
	case map[string]any:
		r, err := FromMap(x)
		if err != nil {
			return Value{}, err
		}
		return Nested(r), nil
	case *Record:
		return Nested(x), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether v is the absent value.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Float returns the numeric payload and whether v is a number.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// Bool returns the boolean payload and whether v is a bool.
func (v Value) Bool() (bool, bool) { return v.flag, v.kind == KindBool }

// Time returns the time payload and whether v is a time.
func (v Value) Time() (time.Time, bool) { return v.when, v.kind == KindTime }

// Items returns the list payload. The returned slice must not be modified.
func (v Value) Items() ([]Value, bool) { return v.items, v.kind == KindList }

// Record returns the nested record payload.
func (v Value) Record() (*Record, bool) { return v.rec, v.kind == KindRecord }

// Interface returns v as a plain Go value: nil, string, float64, bool,
// time.Time, []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.flag
	case KindTime:
		return v.when
	case KindList:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case KindRecord:
		return v.rec.Map()
	default:
		return nil
	}
}

// Equal reports whether v and o hold the same variant and payload.
// Nested records compare without regard to key order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindAbsent:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.flag == o.flag
	case KindTime:
		return v.when.Equal(o.when)
	case KindList:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		return v.rec.Equal(o.rec)
	}
	return false
}

// GoString renders v for test failure messages.
func (v Value) GoString() string {
	switch v.kind {
	case KindAbsent:
		return "<absent>"
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindRecord:
		return v.rec.String()
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if s, ok := v.Str(); ok {
		return s
	}
	return v.GoString()
}
