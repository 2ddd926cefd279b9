package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Record is an insertion-ordered mapping from field name to Value.
// A Record is not safe for concurrent mutation.
type Record struct {
	keys   []string
	values map[string]Value
}

// New returns an empty record.
func New() *Record {
	return &Record{values: make(map[string]Value)}
}

// FromMap builds a record from a plain map. Keys are inserted in sorted
// order since Go maps carry none.
func FromMap(m map[string]any) (*Record, error) {
	r := New()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := Of(m[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		r.Set(k, v)
	}
	return r, nil
}

// Set stores v under key, keeping the key's original position if present.
func (r *Record) Set(key string, v Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value stored under key. Missing keys yield the absent
// value and false.
func (r *Record) Get(key string) (Value, bool) {
	if r == nil {
		return Absent(), false
	}
	v, ok := r.values[key]
	return v, ok
}

// Delete removes key.
func (r *Record) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Clone returns a shallow copy. Nested records and lists are shared.
func (r *Record) Clone() *Record {
	c := &Record{
		keys:   make([]string, 0, r.Len()),
		values: make(map[string]Value, r.Len()),
	}
	if r == nil {
		return c
	}
	c.keys = append(c.keys, r.keys...)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Map converts the record into a plain map of Go values.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, r.Len())
	if r == nil {
		return out
	}
	for _, k := range r.keys {
		out[k] = r.values[k].Interface()
	}
	return out
}

// Equal reports whether both records hold the same values, ignoring key
// order. A key holding an absent value equals a missing key, matching how
// records marshal.
func (r *Record) Equal(o *Record) bool {
	return r.within(o) && o.within(r)
}

// within reports whether every present value of r is equal in o.
func (r *Record) within(o *Record) bool {
	for _, k := range r.Keys() {
		v, _ := r.Get(k)
		if v.IsAbsent() {
			continue
		}
		if ov, _ := o.Get(k); !v.Equal(ov) {
			return false
		}
	}
	return true
}

// String renders the record as {key: value, ...} in key order.
func (r *Record) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range r.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		v, _ := r.Get(k)
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(v.GoString())
	}
	sb.WriteString("}")
	return sb.String()
}

// MarshalJSON encodes the record as a JSON object in key order.
// Absent fields are omitted.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, k := range r.Keys() {
		v := r.values[k]
		if v.IsAbsent() {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false

		kb, err := marshalJSON(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := marshalJSON(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML encodes the record as a YAML mapping in key order.
// Absent fields are omitted.
func (r *Record) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range r.Keys() {
		v := r.values[k]
		if v.IsAbsent() {
			continue
		}
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		valNode := &yaml.Node{}
		if err := valNode.Encode(v); err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

// MarshalJSON encodes the value's payload. Absent encodes as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindRecord:
		return v.rec.MarshalJSON()
	case KindList:
		return marshalJSON(v.items)
	default:
		return marshalJSON(v.Interface())
	}
}

// MarshalYAML encodes the value's payload, preserving nested record order.
func (v Value) MarshalYAML() (any, error) {
	switch v.kind {
	case KindRecord:
		return v.rec.MarshalYAML()
	case KindList:
		return v.items, nil
	default:
		return v.Interface(), nil
	}
}

// marshalJSON is json.Marshal without HTML escaping, so extracted URLs
// keep their ampersands.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
