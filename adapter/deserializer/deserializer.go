// Package deserializer contains the default [domain.Deserializer]
// implementation, which reads documents written by the serializer package.
package deserializer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/data"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

const maxDepth = 256

var (
	// ErrTrailingBytes is returned when bytes remain after the document.
	ErrTrailingBytes = errors.New("trailing bytes after document")
	// ErrNotDocument is returned when the encoded value is not a map.
	ErrNotDocument = errors.New("encoded value is not a document")
	// ErrTooDeep is returned when values nest deeper than supported.
	ErrTooDeep = errors.New("document nesting too deep")
	// ErrDuplicateField is returned when a map repeats a key.
	ErrDuplicateField = errors.New("duplicate field")
	// ErrIntOverflow is returned for unsigned integers above math.MaxInt64.
	ErrIntOverflow = errors.New("integer overflows int64")
)

// ErrUnexpectedCode is returned for msgpack values outside the document value
// model.
type ErrUnexpectedCode struct {
	Code byte
}

func (e ErrUnexpectedCode) Error() string {
	return fmt.Sprintf("unexpected msgpack code 0x%02x", e.Code)
}

// NewDeserializer returns a new instance of domain.Deserializer.
func NewDeserializer() domain.Deserializer {
	return &Deserializer{}
}

// Deserializer implements [domain.Deserializer].
type Deserializer struct{}

// Deserialize implements [domain.Deserializer].
func (d *Deserializer) Deserialize(ctx context.Context, b []byte) (domain.Document, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return Unmarshal(b)
}

// Unmarshal decodes a single document occupying all of b.
func Unmarshal(b []byte) (domain.Document, error) {
	r := bytes.NewReader(b)
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(r)

	doc, err := DecodeDocument(dec)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, ErrTrailingBytes
	}
	return doc, nil
}

// DecodeDocument reads a map from dec.
func DecodeDocument(dec *msgpack.Decoder) (domain.Document, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}
	if !isMap(c) {
		return nil, ErrNotDocument
	}
	return decodeDocument(dec, 0)
}

// DecodeValue reads one value of the document value model from dec.
func DecodeValue(dec *msgpack.Decoder) (any, error) {
	return decodeValue(dec, 0)
}

func decodeValue(dec *msgpack.Decoder, depth int) (any, error) {
	if depth > maxDepth {
		return nil, ErrTooDeep
	}
	c, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}
	switch {
	case c == msgpcode.Nil:
		return nil, dec.DecodeNil()
	case c == msgpcode.False || c == msgpcode.True:
		return dec.DecodeBool()
	case c == msgpcode.Uint64:
		return decodeUint64(dec)
	case isInt(c):
		return dec.DecodeInt64()
	case c == msgpcode.Float || c == msgpcode.Double:
		return dec.DecodeFloat64()
	case msgpcode.IsString(c):
		return dec.DecodeString()
	case msgpcode.IsBin(c):
		return dec.DecodeBytes()
	case isArray(c):
		return decodeList(dec, depth)
	case isMap(c):
		return decodeDocument(dec, depth)
	case msgpcode.IsFixedExt(c) || msgpcode.IsExt(c):
		return decodeObjectID(dec)
	default:
		return nil, ErrUnexpectedCode{Code: c}
	}
}

func decodeUint64(dec *msgpack.Decoder) (int64, error) {
	u, err := dec.DecodeUint64()
	if err != nil {
		return 0, err
	}
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d", ErrIntOverflow, u)
	}
	return int64(u), nil
}

func decodeList(dec *msgpack.Decoder, depth int) ([]any, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	res := make([]any, 0, min(n, 1024))
	for range n {
		v, err := decodeValue(dec, depth+1)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, nil
}

func decodeDocument(dec *msgpack.Decoder, depth int) (domain.Document, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	doc := data.NewD(min(n, 64))
	for range n {
		k, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		if doc.Has(k) {
			return nil, fmt.Errorf("%w %q", ErrDuplicateField, k)
		}
		v, err := decodeValue(dec, depth+1)
		if err != nil {
			return nil, err
		}
		doc.Set(k, v)
	}
	return doc, nil
}

func decodeObjectID(dec *msgpack.Decoder) (domain.ObjectID, error) {
	var id domain.ObjectID
	extID, extLen, err := dec.DecodeExtHeader()
	if err != nil {
		return id, err
	}
	if extID != domain.ObjectIDExtType || extLen != domain.ObjectIDLen {
		return id, fmt.Errorf("unexpected extension %d with %d bytes", extID, extLen)
	}
	if err := dec.ReadFull(id[:]); err != nil {
		return id, err
	}
	return id, nil
}

func isInt(c byte) bool {
	if msgpcode.IsFixedNum(c) {
		return true
	}
	switch c {
	case msgpcode.Uint8, msgpcode.Uint16, msgpcode.Uint32, msgpcode.Uint64,
		msgpcode.Int8, msgpcode.Int16, msgpcode.Int32, msgpcode.Int64:
		return true
	}
	return false
}

func isArray(c byte) bool {
	return msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32
}

func isMap(c byte) bool {
	return msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32
}
