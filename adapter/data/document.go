// Package data contains the default [domain.Document] implementation and the
// conversion of Go values into the document value model.
package data

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// TagName is the struct tag read when converting structs to documents.
const TagName = "albedo"

// E is a single document field.
type E struct {
	Key   string
	Value any
}

// D implements [domain.Document] keeping fields in insertion order. Setting an
// existing key keeps its position.
type D struct {
	keys   []string
	values map[string]any
}

// NewD returns an empty document with room for n fields.
func NewD(n int) *D {
	return &D{
		keys:   make([]string, 0, n),
		values: make(map[string]any, n),
	}
}

// Ordered builds a document from the given fields, in order. Values are not
// normalized, use [NewDocument] for values coming from callers.
func Ordered(fields ...E) *D {
	d := NewD(len(fields))
	for _, f := range fields {
		d.Set(f.Key, f.Value)
	}
	return d
}

// ID implements [domain.Document].
func (d *D) ID() domain.ObjectID {
	if id, ok := d.Get("_id").(domain.ObjectID); ok {
		return id
	}
	return domain.NilObjectID
}

// Get implements [domain.Document].
func (d *D) Get(key string) any {
	if d.values == nil {
		return nil
	}
	return d.values[key]
}

// Set implements [domain.Document].
func (d *D) Set(key string, value any) {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Unset implements [domain.Document].
func (d *D) Unset(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	if i := slices.Index(d.keys, key); i >= 0 {
		d.keys = slices.Delete(d.keys, i, i+1)
	}
}

// Has implements [domain.Document].
func (d *D) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Len implements [domain.Document].
func (d *D) Len() int {
	return len(d.keys)
}

// Iter implements [domain.Document].
func (d *D) Iter() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, k := range d.keys {
			if !yield(k, d.values[k]) {
				return
			}
		}
	}
}

// Keys implements [domain.Document].
func (d *D) Keys() iter.Seq[string] {
	return slices.Values(d.keys)
}

// Clone implements [domain.Document].
func (d *D) Clone() domain.Document {
	res := NewD(len(d.keys))
	for _, k := range d.keys {
		res.Set(k, CloneValue(d.values[k]))
	}
	return res
}

// String formats the document as JSON.
func (d *D) String() string {
	b, err := MarshalJSON(d)
	if err != nil {
		return fmt.Sprintf("%%!(%s)", err)
	}
	return string(b)
}

// MarshalJSON implements [json.Marshaler].
func (d *D) MarshalJSON() ([]byte, error) {
	return MarshalJSON(d)
}

// UnmarshalJSON implements [json.Unmarshaler].
func (d *D) UnmarshalJSON(input []byte) error {
	doc, err := DocumentFromJSON(input)
	if err != nil {
		return err
	}
	obj, ok := doc.(*D)
	if !ok {
		return fmt.Errorf("expected document, received %T", doc)
	}
	*d = *obj
	return nil
}

// CloneValue deep-copies a value of the document value model.
func CloneValue(v any) any {
	switch t := v.(type) {
	case domain.Document:
		return t.Clone()
	case []any:
		res := make([]any, len(t))
		for i, item := range t {
			res[i] = CloneValue(item)
		}
		return res
	case []byte:
		return slices.Clone(t)
	default:
		return v
	}
}

// Equal reports whether two values of the document value model are deeply
// equal. Documents must have the same fields in the same order.
func Equal(a, b any) bool {
	switch x := a.(type) {
	case domain.Document:
		y, ok := b.(domain.Document)
		if !ok || x.Len() != y.Len() {
			return false
		}
		next, stop := iter.Pull2(y.Iter())
		defer stop()
		for k, v := range x.Iter() {
			k2, v2, ok := next()
			if !ok || k != k2 || !Equal(v, v2) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case []byte:
		y, ok := b.([]byte)
		return ok && string(x) == string(y)
	default:
		return a == b
	}
}

// CheckFieldName reports whether name can be stored as a field.
func CheckFieldName(name string) error {
	if name == "" {
		return domain.ErrFieldName{Field: name, Reason: "empty field name"}
	}
	if strings.HasPrefix(name, "$") {
		return domain.ErrFieldName{Field: name, Reason: "field names cannot start with $"}
	}
	if strings.Contains(name, ".") {
		return domain.ErrFieldName{Field: name, Reason: "field names cannot contain a ."}
	}
	return nil
}
