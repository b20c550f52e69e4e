package domain

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// ObjectIDLen is the number of bytes in an [ObjectID].
const ObjectIDLen = 12

// ObjectID is the 12-byte identifier of a stored document. The first four
// bytes hold the creation time in seconds since the Unix epoch (big-endian),
// followed by five bytes of per-process entropy and a three-byte big-endian
// counter.
type ObjectID [ObjectIDLen]byte

// NilObjectID is the zero value of [ObjectID]. It is never generated.
var NilObjectID ObjectID

// MaxObjectID is the greatest possible [ObjectID].
var MaxObjectID = ObjectID{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// ParseObjectID reads the 24-char hexadecimal form of an [ObjectID].
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != ObjectIDLen*2 {
		return id, fmt.Errorf("%w: %q has length %d", ErrInvalidID, s, len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("%w: %w", ErrInvalidID, err)
	}
	return id, nil
}

// ObjectIDFromBytes copies b into a new [ObjectID]. b must have exactly
// [ObjectIDLen] bytes.
func ObjectIDFromBytes(b []byte) (ObjectID, error) {
	var id ObjectID
	if len(b) != ObjectIDLen {
		return id, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidID, ObjectIDLen, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String returns the lowercase hexadecimal form of the id.
func (o ObjectID) String() string {
	return hex.EncodeToString(o[:])
}

// Bytes returns a copy of the id bytes.
func (o ObjectID) Bytes() []byte {
	return o[:]
}

// IsZero reports whether o equals [NilObjectID].
func (o ObjectID) IsZero() bool {
	return o == NilObjectID
}

// Compare orders ids by their bytes.
func (o ObjectID) Compare(other ObjectID) int {
	return bytes.Compare(o[:], other[:])
}

// Timestamp returns the creation time embedded in the id.
func (o ObjectID) Timestamp() time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(o[:4])), 0)
}

// MarshalText implements [encoding.TextMarshaler].
func (o ObjectID) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (o *ObjectID) UnmarshalText(b []byte) error {
	id, err := ParseObjectID(string(b))
	if err != nil {
		return err
	}
	*o = id
	return nil
}
