package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConstraintViolated is returned when a mutation would store two
	// documents with the same key in a unique index. The bucket is left
	// unchanged.
	ErrConstraintViolated = errors.New("unique constraint violated")
	// ErrNotFound is returned when an operation requires an existing
	// document that is absent.
	ErrNotFound = errors.New("document not found")
	// ErrStorageCorruption is returned by Open when the persisted state
	// cannot be read back.
	ErrStorageCorruption = errors.New("storage corruption")
	// ErrReplicationDecode is returned when a replication batch is
	// malformed.
	ErrReplicationDecode = errors.New("replication batch decode failed")
	// ErrCursorClosed is returned by operations on a closed cursor.
	ErrCursorClosed = errors.New("cursor is closed")
	// ErrNoDocument is returned when a decision is applied but no document
	// is in flight.
	ErrNoDocument = errors.New("no document in flight")
	// ErrScanBeforeNext is returned when Scan is called before Next.
	ErrScanBeforeNext = errors.New("scan called before next")
	// ErrBucketClosed is returned by operations on a closed bucket.
	ErrBucketClosed = errors.New("bucket is closed")
	// ErrPrimaryIndex is returned when the _id index is dropped.
	ErrPrimaryIndex = errors.New("cannot drop the _id index")
	// ErrCannotModifyID is returned when a replacement document carries an
	// _id different from the document it replaces.
	ErrCannotModifyID = errors.New("cannot modify document _id")
	// ErrInvalidID is returned when an _id is neither an ObjectID nor its
	// hexadecimal form.
	ErrInvalidID = errors.New("invalid object id")
	// ErrNoFieldName is returned when an index is created without a field.
	ErrNoFieldName = errors.New("field name is required")
	// ErrMixedOperators is returned when a filter operand mixes operators
	// with plain fields.
	ErrMixedOperators = errors.New("cannot mix operators and normal fields")
	// ErrTargetNil is returned when a decode target is nil.
	ErrTargetNil = errors.New("target interface is nil")
	// ErrNonPointer is returned when a decode target is not a pointer.
	ErrNonPointer = errors.New("target is not a pointer")
)

// ErrDocumentType is returned when a value outside the document value model
// is stored.
type ErrDocumentType struct {
	Field string
	Value any
}

func (e ErrDocumentType) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("unsupported document type %T", e.Value)
	}
	return fmt.Sprintf("field %q: unsupported value type %T", e.Field, e.Value)
}

// ErrFieldName is returned for field names that cannot be stored or
// navigated.
type ErrFieldName struct {
	Field  string
	Reason string
}

func (e ErrFieldName) Error() string {
	return fmt.Sprintf("invalid field name %q: %s", e.Field, e.Reason)
}

// ErrUnknownOperator is returned when a filter uses an operator name that is
// not supported.
type ErrUnknownOperator struct {
	Operator string
}

func (e ErrUnknownOperator) Error() string {
	return fmt.Sprintf("unknown operator %q", e.Operator)
}

// ErrOperand is returned when an operator receives an operand of the wrong
// shape.
type ErrOperand struct {
	Operator string
	Operand  any
	Reason   string
}

func (e ErrOperand) Error() string {
	return fmt.Sprintf("operator %s: invalid operand %v: %s", e.Operator, e.Operand, e.Reason)
}

// ErrCompArgType is returned when values of an unsupported type are
// compared.
type ErrCompArgType struct {
	Value any
}

func (e ErrCompArgType) Error() string {
	return fmt.Sprintf("cannot compare value of type %T", e.Value)
}

// ErrDecode wraps failures to decode stored values into user types.
type ErrDecode struct {
	Source any
	Target any
	Err    error
}

func (e ErrDecode) Error() string {
	return fmt.Sprintf("cannot decode %T into %T: %s", e.Source, e.Target, e.Err)
}

func (e ErrDecode) Unwrap() error { return e.Err }

// StorageCorruptionError describes which part of the persisted state could
// not be read. It matches [ErrStorageCorruption] with [errors.Is].
type StorageCorruptionError struct {
	Path string
	Key  string
	Err  error
}

func (e *StorageCorruptionError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s: record %s: %s", ErrStorageCorruption, e.Path, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", ErrStorageCorruption, e.Path, e.Err)
}

func (e *StorageCorruptionError) Unwrap() []error {
	return []error{ErrStorageCorruption, e.Err}
}

// ReplicationDecodeError describes why a batch was rejected. It matches
// [ErrReplicationDecode] with [errors.Is].
type ReplicationDecodeError struct {
	Record int
	Err    error
}

func (e *ReplicationDecodeError) Error() string {
	if e.Record >= 0 {
		return fmt.Sprintf("%s: record %d: %s", ErrReplicationDecode, e.Record, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrReplicationDecode, e.Err)
}

func (e *ReplicationDecodeError) Unwrap() []error {
	return []error{ErrReplicationDecode, e.Err}
}
