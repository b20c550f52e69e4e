// Package serializer contains the default [domain.Serializer] implementation,
// which writes documents as msgpack maps.
package serializer

import (
	"bytes"
	"context"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// Serializer implements [domain.Serializer].
type Serializer struct{}

// NewSerializer returns a new instance of domain.Serializer.
func NewSerializer() domain.Serializer {
	return &Serializer{}
}

// Serialize implements [domain.Serializer].
func (s *Serializer) Serialize(ctx context.Context, doc domain.Document) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return Marshal(doc)
}

// Marshal encodes a value of the document value model. The output is
// deterministic: equal values always produce the same bytes.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(&buf)
	if err := EncodeValue(enc, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeValue writes v to enc. Documents are written as maps in field order,
// int64 with the smallest integer format, float64 as a double, []byte as
// binary and [domain.ObjectID] as an extension of type
// [domain.ObjectIDExtType].
func EncodeValue(enc *msgpack.Encoder, v any) error {
	switch t := v.(type) {
	case nil:
		return enc.EncodeNil()
	case bool:
		return enc.EncodeBool(t)
	case int64:
		return enc.EncodeInt(t)
	case float64:
		return enc.EncodeFloat64(t)
	case string:
		return enc.EncodeString(t)
	case []byte:
		if t == nil {
			t = []byte{}
		}
		return enc.EncodeBytes(t)
	case domain.ObjectID:
		if err := enc.EncodeExtHeader(domain.ObjectIDExtType, domain.ObjectIDLen); err != nil {
			return err
		}
		_, err := enc.Writer().Write(t[:])
		return err
	case []any:
		if err := enc.EncodeArrayLen(len(t)); err != nil {
			return err
		}
		for _, item := range t {
			if err := EncodeValue(enc, item); err != nil {
				return err
			}
		}
		return nil
	case domain.Document:
		return EncodeDocument(enc, t)
	default:
		return domain.ErrDocumentType{Value: v}
	}
}

// EncodeDocument writes doc to enc as a map in field order.
func EncodeDocument(enc *msgpack.Encoder, doc domain.Document) error {
	if err := enc.EncodeMapLen(doc.Len()); err != nil {
		return err
	}
	for k, v := range doc.Iter() {
		if err := enc.EncodeString(k); err != nil {
			return err
		}
		if err := EncodeValue(enc, v); err != nil {
			return err
		}
	}
	return nil
}
