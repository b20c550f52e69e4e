package data

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// MarshalJSON writes a value of the document value model as JSON, keeping
// field order. It is the inverse of [ParseJSON]: float64 values always carry a
// fraction or exponent so they are read back as floats.
func MarshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case int64:
		buf.WriteString(strconv.FormatInt(t, 10))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("cannot write %v as JSON", t)
		}
		s := strconv.FormatFloat(t, 'g', -1, 64)
		if !bytes.ContainsAny([]byte(s), ".eE") {
			s += ".0"
		}
		buf.WriteString(s)
	case string:
		writeString(buf, t)
	case []byte:
		buf.WriteString(`{"$binary":`)
		writeString(buf, base64.StdEncoding.EncodeToString(t))
		buf.WriteByte('}')
	case domain.ObjectID:
		buf.WriteString(`{"$oid":"`)
		buf.WriteString(t.String())
		buf.WriteString(`"}`)
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case domain.Document:
		buf.WriteByte('{')
		first := true
		for k, item := range t.Iter() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			writeString(buf, k)
			buf.WriteByte(':')
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return domain.ErrDocumentType{Value: v}
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	// json.Marshal never fails for strings
	b, _ := json.Marshal(s)
	buf.Write(b)
}
