package data

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"time"

	goreflect "github.com/goccy/go-reflect"

	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

var (
	timeTyp     = goreflect.TypeOf(time.Time{})
	objectIDTyp = goreflect.TypeOf(domain.ObjectID{})
)

// NewDocument converts maps, structs and documents into a new [domain.Document]
// holding only values of the document value model. Integers become int64,
// floats become float64, slices become []any and nested maps or structs
// become documents. Map keys are sorted, struct fields keep their declaration
// order. The result shares no memory with in.
func NewDocument(in any) (domain.Document, error) {
	if in == nil {
		return NewD(0), nil
	}
	v, err := Normalize(in)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case domain.Document:
		return t, nil
	case nil:
		return NewD(0), nil
	default:
		return nil, fmt.Errorf("expected map or struct, got %T", in)
	}
}

// Normalize converts v into the document value model. Values outside the model
// fail with [domain.ErrDocumentType].
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool, string, int64, float64, domain.ObjectID:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float32:
		return float64(t), nil
	case []byte:
		return slices.Clone(t), nil
	case *domain.ObjectID:
		if t == nil {
			return nil, nil
		}
		return *t, nil
	case domain.Document:
		return normalizeDocument(t)
	case []any:
		return normalizeList(t)
	case map[string]any:
		return normalizeMap(t)
	}
	return normalizeReflect(goreflect.ValueNoEscapeOf(v), v)
}

func normalizeDocument(doc domain.Document) (domain.Document, error) {
	res := NewD(doc.Len())
	for k, v := range doc.Iter() {
		n, err := Normalize(v)
		if err != nil {
			return nil, fieldError(k, err)
		}
		res.Set(k, n)
	}
	return res, nil
}

func normalizeList(l []any) ([]any, error) {
	res := make([]any, len(l))
	for i, item := range l {
		n, err := Normalize(item)
		if err != nil {
			return nil, err
		}
		res[i] = n
	}
	return res, nil
}

func normalizeMap(m map[string]any) (domain.Document, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	res := NewD(len(keys))
	for _, k := range keys {
		n, err := Normalize(m[k])
		if err != nil {
			return nil, fieldError(k, err)
		}
		res.Set(k, n)
	}
	return res, nil
}

func normalizeReflect(r goreflect.Value, orig any) (any, error) {
	for r.Kind() == reflect.Pointer || r.Kind() == goreflect.Interface {
		if r.IsNil() {
			return nil, nil
		}
		r = r.Elem()
	}
	switch r.Kind() {
	case goreflect.Invalid:
		return nil, nil
	case goreflect.Bool:
		return r.Bool(), nil
	case goreflect.String:
		return r.String(), nil
	case goreflect.Int, goreflect.Int8, goreflect.Int16, goreflect.Int32, goreflect.Int64:
		return r.Int(), nil
	case goreflect.Uint, goreflect.Uint8, goreflect.Uint16, goreflect.Uint32, goreflect.Uint64, goreflect.Uintptr:
		u := r.Uint()
		if u > math.MaxInt64 {
			return nil, domain.ErrDocumentType{Value: orig}
		}
		return int64(u), nil
	case goreflect.Float32, goreflect.Float64:
		return r.Float(), nil
	case goreflect.Slice:
		if r.IsNil() {
			return nil, nil
		}
		if r.Type().Elem().Kind() == goreflect.Uint8 {
			return slices.Clone(r.Bytes()), nil
		}
		return normalizeReflectList(r)
	case goreflect.Array:
		if r.Type() == objectIDTyp {
			return r.Interface().(domain.ObjectID), nil
		}
		return normalizeReflectList(r)
	case goreflect.Map:
		if r.IsNil() {
			return nil, nil
		}
		if r.Type().Key().Kind() != goreflect.String {
			return nil, domain.ErrDocumentType{Value: orig}
		}
		return normalizeReflectMap(r)
	case goreflect.Struct:
		if r.Type() == timeTyp {
			return nil, domain.ErrDocumentType{Value: orig}
		}
		return normalizeStruct(r)
	case goreflect.Chan, goreflect.Func:
		if r.IsNil() {
			return nil, nil
		}
		return nil, domain.ErrDocumentType{Value: orig}
	default:
		return nil, domain.ErrDocumentType{Value: orig}
	}
}

func normalizeReflectList(r goreflect.Value) ([]any, error) {
	res := make([]any, r.Len())
	for i := range res {
		n, err := Normalize(r.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		res[i] = n
	}
	return res, nil
}

func normalizeReflectMap(r goreflect.Value) (domain.Document, error) {
	keys := r.MapKeys()
	slices.SortFunc(keys, func(a, b goreflect.Value) int {
		return strings.Compare(a.String(), b.String())
	})
	res := NewD(len(keys))
	for _, k := range keys {
		n, err := Normalize(r.MapIndex(k).Interface())
		if err != nil {
			return nil, fieldError(k.String(), err)
		}
		res.Set(k.String(), n)
	}
	return res, nil
}

func normalizeStruct(r goreflect.Value) (domain.Document, error) {
	typ := r.Type()
	res := NewD(r.NumField())
	for n := range r.NumField() {
		field := typ.Field(n)
		if field.PkgPath != "" {
			continue
		}
		fieldValue := r.Field(n)

		name := field.Name
		var opts []string
		if tag, ok := field.Tag.Lookup(TagName); ok {
			if tag == "-" {
				continue
			}
			segments := strings.Split(tag, ",")
			if segments[0] != "" {
				name = segments[0]
			}
			opts = segments[1:]
		}
		if slices.Contains(opts, "omitempty") && isNullable(field.Type) && fieldValue.IsNil() {
			continue
		}
		if slices.Contains(opts, "omitzero") && fieldValue.IsZero() {
			continue
		}

		v, err := Normalize(fieldValue.Interface())
		if err != nil {
			return nil, fieldError(name, err)
		}
		res.Set(name, v)
	}
	return res, nil
}

func isNullable(t goreflect.Type) bool {
	k := t.Kind()
	return k == reflect.Pointer ||
		k == reflect.Slice ||
		k == reflect.Map ||
		k == reflect.Interface
}

func fieldError(field string, err error) error {
	if e, ok := err.(domain.ErrDocumentType); ok {
		if e.Field == "" {
			e.Field = field
		} else {
			e.Field = field + "." + e.Field
		}
		return e
	}
	return err
}

// ValidateFieldNames checks every field name of doc and its nested documents
// with [CheckFieldName].
func ValidateFieldNames(doc domain.Document) error {
	for k, v := range doc.Iter() {
		if err := CheckFieldName(k); err != nil {
			return err
		}
		if err := validateValue(v); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(v any) error {
	switch t := v.(type) {
	case domain.Document:
		return ValidateFieldNames(t)
	case []any:
		for _, item := range t {
			if err := validateValue(item); err != nil {
				return err
			}
		}
	}
	return nil
}
