// Package fieldnavigator contains the default [domain.FieldNavigator]
// implementation, resolving dotted paths such as "address.city" or "tags.0".
package fieldnavigator

import (
	"strconv"
	"strings"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/data"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// FieldNavigator implements [domain.FieldNavigator].
type FieldNavigator struct{}

// NewFieldNavigator returns a new implementation of [domain.FieldNavigator].
func NewFieldNavigator() domain.FieldNavigator {
	return &FieldNavigator{}
}

// GetAddress implements [domain.FieldNavigator].
func (fn *FieldNavigator) GetAddress(field string) ([]string, error) {
	if field == "" {
		return nil, domain.ErrFieldName{Field: field, Reason: "empty field name"}
	}
	parts := strings.Split(field, ".")
	for _, part := range parts {
		if part == "" {
			return nil, domain.ErrFieldName{Field: field, Reason: "empty path segment"}
		}
	}
	return parts, nil
}

// GetField implements [domain.FieldNavigator]. Numeric segments index into
// arrays. Any segment that cannot be followed makes the value undefined.
func (fn *FieldNavigator) GetField(doc domain.Document, addr ...string) (any, bool) {
	var cur any = doc
	for _, part := range addr {
		switch t := cur.(type) {
		case domain.Document:
			if !t.Has(part) {
				return nil, false
			}
			cur = t.Get(part)
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(t) {
				return nil, false
			}
			cur = t[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// SetField implements [domain.FieldNavigator]. Missing intermediate documents
// are created. Traversing a non-document value fails.
func (fn *FieldNavigator) SetField(doc domain.Document, value any, addr ...string) error {
	if len(addr) == 0 {
		return domain.ErrFieldName{Reason: "empty address"}
	}
	cur := doc
	for n, part := range addr[:len(addr)-1] {
		next := cur.Get(part)
		switch t := next.(type) {
		case domain.Document:
			cur = t
		case nil:
			if cur.Has(part) {
				return domain.ErrFieldName{
					Field:  strings.Join(addr[:n+1], "."),
					Reason: "cannot set a field inside null",
				}
			}
			child := data.NewD(0)
			cur.Set(part, child)
			cur = child
		default:
			return domain.ErrFieldName{
				Field:  strings.Join(addr[:n+1], "."),
				Reason: "cannot set a field inside a non-document value",
			}
		}
	}
	cur.Set(addr[len(addr)-1], value)
	return nil
}

// Lookup resolves a dotted field in doc, returning [domain.Undefined] when it
// is missing.
func Lookup(fn domain.FieldNavigator, doc domain.Document, field string) (any, error) {
	addr, err := fn.GetAddress(field)
	if err != nil {
		return nil, err
	}
	v, ok := fn.GetField(doc, addr...)
	if !ok {
		return domain.Undefined{}, nil
	}
	return v, nil
}
