// Package decoder contains the default [domain.Decoder] implementation.
package decoder

import (
	"fmt"
	stdreflect "reflect"

	"github.com/goccy/go-reflect"
	"github.com/mitchellh/mapstructure"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/data"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

var (
	docReflectType = reflect.TypeOf((*domain.Document)(nil)).Elem()
	objectIDType   = stdreflect.TypeOf(domain.ObjectID{})
)

// Decoder implements domain.Decoder.
type Decoder struct{}

// NewDecoder returns a new implementation of domain.Decoder.
func NewDecoder() domain.Decoder {
	return &Decoder{}
}

// Decode implements domain.Decoder. Struct fields are matched using the
// "albedo" tag. ObjectIDs decode into strings as their hexadecimal form.
func (d *Decoder) Decode(source any, target any) error {
	if target == nil {
		return domain.ErrTargetNil
	}

	value := reflect.ValueNoEscapeOf(target)
	if value.Kind() != reflect.Ptr {
		return domain.ErrNonPointer
	}

	if !value.Type().Elem().Implements(docReflectType) {
		source = d.adjustDoc(source)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    data.TagName,
		Result:     target,
		DecodeHook: objectIDHook,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(source); err != nil {
		errDec := domain.ErrDecode{Source: source, Target: target}
		return fmt.Errorf("%w: %w", errDec, err)
	}
	return nil
}

func objectIDHook(from stdreflect.Type, to stdreflect.Type, v any) (any, error) {
	switch {
	case from == objectIDType && to.Kind() == stdreflect.String:
		return v.(domain.ObjectID).String(), nil
	case from.Kind() == stdreflect.String && to == objectIDType:
		return domain.ParseObjectID(v.(string))
	}
	return v, nil
}

func (d *Decoder) adjustDoc(value any) any {
	switch t := value.(type) {
	case domain.Document:
		doc := make(map[string]any, t.Len())
		for k, v := range t.Iter() {
			doc[k] = d.adjustDoc(v)
		}
		return doc
	case []any:
		lst := make([]any, len(t))
		for n, v := range t {
			lst[n] = d.adjustDoc(v)
		}
		return lst
	default:
		return value
	}
}
