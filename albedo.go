// Package albedo provides an embedded document bucket for golang.
//
// A bucket stores schema-less documents under generated identifiers, keeps
// secondary indexes over them, answers filter/sort/paginate queries through
// read-only and read-modify-delete cursors, and records every committed change
// in a replication log that other buckets can apply.
//
// The basic usage starts with opening a [Bucket], which can be done by calling
// [Open].
package albedo

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/bucket"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/data"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/deserializer"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/idgenerator"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/persistence"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/replication"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/serializer"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
	"github.com/vinicius-lino-figueiredo/albedo/metrics"
)

// InMemory can be passed to [Open] instead of a path to get a bucket without a
// data file.
const InMemory = persistence.InMemory

var (
	// ErrConstraintViolated is returned when a change would break a unique
	// index. Nothing is changed.
	ErrConstraintViolated = domain.ErrConstraintViolated
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = domain.ErrNotFound
	// ErrStorageCorruption is returned by [Open] when the data file cannot
	// be read.
	ErrStorageCorruption = domain.ErrStorageCorruption
	// ErrReplicationDecode is returned by [Bucket.ApplyBatch] for malformed
	// batches.
	ErrReplicationDecode = domain.ErrReplicationDecode
	// ErrCursorClosed is returned when using a closed [Cursor].
	ErrCursorClosed = domain.ErrCursorClosed
	// ErrNoDocument is returned by [TransformCursor.Advance] when no
	// document is in flight.
	ErrNoDocument = domain.ErrNoDocument
	// ErrScanBeforeNext is returned when calling [Cursor.Scan] before
	// calling [Cursor.Next].
	ErrScanBeforeNext = domain.ErrScanBeforeNext
	// ErrBucketClosed is returned by every operation of a closed bucket.
	ErrBucketClosed = domain.ErrBucketClosed
	// ErrPrimaryIndex is returned when dropping the _id index.
	ErrPrimaryIndex = domain.ErrPrimaryIndex
	// ErrCannotModifyID is returned when a replacement changes the _id of
	// the document it replaces.
	ErrCannotModifyID = domain.ErrCannotModifyID
	// ErrInvalidID is returned for _id values that are not object ids.
	ErrInvalidID = domain.ErrInvalidID
	// ErrNoFieldName is returned if no field name is provided for an index.
	ErrNoFieldName = domain.ErrNoFieldName
	// ErrMixedOperators is returned by filters mixing operators and plain
	// fields in the same operand.
	ErrMixedOperators = domain.ErrMixedOperators
	// ErrTargetNil is returned when scanning into a nil target.
	ErrTargetNil = domain.ErrTargetNil
)

// ErrFieldName represents an invalid field name, usually for when a document is
// created with a reserved prefix or forbidden character.
type ErrFieldName = domain.ErrFieldName

// ErrDocumentType is returned when an user passes a value that is invalid or
// contains an invalid sub value for creating a document.
type ErrDocumentType = domain.ErrDocumentType

// ErrUnknownOperator is returned by filters using an unsupported operator.
type ErrUnknownOperator = domain.ErrUnknownOperator

// StorageCorruptionError carries the file and record that could not be read.
type StorageCorruptionError = domain.StorageCorruptionError

// ReplicationDecodeError carries the position of a malformed batch record.
type ReplicationDecodeError = domain.ReplicationDecodeError

// Bucket is a named container of documents. Every method is safe for
// concurrent use.
type Bucket = domain.Bucket

// Document is an ordered mapping of field names to values.
type Document = domain.Document

// ObjectID is the 12-byte identifier of a stored document.
type ObjectID = domain.ObjectID

// Cursor iterates over a snapshot of the documents matching a query.
type Cursor = domain.Cursor

// TransformCursor iterates documents while letting the caller keep, replace
// or delete each of them.
type TransformCursor = domain.TransformCursor

// Subscription is a stream of encoded replication batches.
type Subscription = domain.Subscription

// Decision is the verdict given to a [TransformCursor] for its current
// document.
type Decision = domain.Decision

// IndexInfo describes an index.
type IndexInfo = domain.IndexInfo

// IndexOptions are the flags accepted by [Bucket.EnsureIndex].
type IndexOptions = domain.IndexOptions

// Query is a filter together with its ordering, paging and projection.
type Query = domain.Query

// Plan describes how a query is executed.
type Plan = domain.Plan

// Batch is a decoded replication batch.
type Batch = domain.Batch

// Record is one change of a [Batch].
type Record = domain.Record

// E is a single field of a [Document] built with [Doc].
type E = data.E

// Option configures [Open].
type Option = bucket.Option

// QueryOption configures a query through the functional options pattern.
type QueryOption = domain.QueryOption

// Open opens the bucket stored at path, creating it if needed. An empty path
// or [InMemory] opens a bucket that is never written to disk. The following
// options are accepted:
//
// - [WithName]: sets the name reported in logs and metrics.
//
// - [WithInMemoryOnly]: disables the data file even if path is set.
//
// - [WithFileMode], [WithDirMode]: permissions of created files.
//
// - [WithTimeout]: how long to wait for the data file lock.
//
// - [WithNoSync]: skips fsync after each commit.
//
// - [WithLogger]: sets the structured logger.
//
// - [WithMetrics]: sets the prometheus collectors, nil disables them.
//
// - [WithComparer], [WithIDGenerator], [WithTimeGetter], [WithRandomReader]:
// replace default implementations.
func Open(ctx context.Context, path string, opts ...Option) (Bucket, error) {
	b, err := bucket.Open(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// WithName sets the name a bucket reports in logs and metrics.
func WithName(n string) Option { return bucket.WithName(n) }

// WithInMemoryOnly disables the data file.
func WithInMemoryOnly(i bool) Option { return bucket.WithInMemoryOnly(i) }

// WithFileMode sets the permissions of the data file.
func WithFileMode(m os.FileMode) Option { return bucket.WithFileMode(m) }

// WithDirMode sets the permissions of directories created for the data file.
func WithDirMode(m os.FileMode) Option { return bucket.WithDirMode(m) }

// WithTimeout sets how long to wait for the lock of the data file.
func WithTimeout(t time.Duration) Option { return bucket.WithTimeout(t) }

// WithNoSync skips fsync after commits.
func WithNoSync(n bool) Option { return bucket.WithNoSync(n) }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return bucket.WithLogger(l) }

// WithMetrics sets the collectors the bucket reports to.
func WithMetrics(m *metrics.Metrics) Option { return bucket.WithMetrics(m) }

// WithComparer sets the comparer that orders document values.
func WithComparer(c domain.Comparer) Option { return bucket.WithComparer(c) }

// WithIDGenerator sets the generator of new document ids.
func WithIDGenerator(g domain.IDGenerator) Option { return bucket.WithIDGenerator(g) }

// WithTimeGetter sets the clock used for new ids.
func WithTimeGetter(t domain.TimeGetter) Option { return bucket.WithTimeGetter(t) }

// WithRandomReader sets the entropy source of the default id generator.
func WithRandomReader(r io.Reader) Option { return bucket.WithRandomReader(r) }

// WithQuery replaces the whole query.
func WithQuery(q Query) QueryOption { return domain.WithQuery(q) }

// WithFilter sets the filter document.
func WithFilter(f Document) QueryOption { return domain.WithFilter(f) }

// Where adds a field to the filter. Fields are evaluated in the order they
// were added. operand is either a value, compared for equality, or an
// operator document such as [Gt].
func Where(field string, operand any) QueryOption {
	return func(q *Query) {
		if q.Filter == nil {
			q.Filter = data.NewD(1)
		} else {
			q.Filter = q.Filter.Clone()
		}
		q.Filter.Set(field, operand)
	}
}

// WithSort orders results by field.
func WithSort(field string, descending bool) QueryOption {
	return domain.WithSort(field, descending)
}

// WithSector restricts results to an offset/limit window. A zero limit means
// no limit.
func WithSector(offset, limit int64) QueryOption { return domain.WithSector(offset, limit) }

// WithProjection keeps only the given fields, plus _id.
func WithProjection(fields ...string) QueryOption { return domain.WithProjection(fields...) }

// WithOmit removes the given fields from results.
func WithOmit(fields ...string) QueryOption { return domain.WithOmit(fields...) }

// Doc builds a document with the fields in the given order.
func Doc(fields ...E) Document { return data.Ordered(fields...) }

// NewDocument converts a map or struct into a [Document].
func NewDocument(v any) (Document, error) { return data.NewDocument(v) }

func operator(op domain.Operator, v any) Document {
	return data.Ordered(E{Key: string(op), Value: v})
}

// Eq matches values equal to v.
func Eq(v any) Document { return operator(domain.OpEq, v) }

// Ne matches values different from v, including missing ones.
func Ne(v any) Document { return operator(domain.OpNe, v) }

// Lt matches values lower than v.
func Lt(v any) Document { return operator(domain.OpLt, v) }

// Lte matches values lower than or equal to v.
func Lte(v any) Document { return operator(domain.OpLte, v) }

// Gt matches values greater than v.
func Gt(v any) Document { return operator(domain.OpGt, v) }

// Gte matches values greater than or equal to v.
func Gte(v any) Document { return operator(domain.OpGte, v) }

// In matches values equal to any of values.
func In(values ...any) Document { return operator(domain.OpIn, values) }

// Between matches values in the closed range [lo, hi].
func Between(lo, hi any) Document { return operator(domain.OpBetween, []any{lo, hi}) }

// StartsWith matches strings with the given prefix.
func StartsWith(prefix string) Document { return operator(domain.OpStartsWith, prefix) }

// EndsWith matches strings with the given suffix.
func EndsWith(suffix string) Document { return operator(domain.OpEndsWith, suffix) }

// Exists matches documents where the field is set, even to nil.
func Exists() Document { return operator(domain.OpExists, true) }

// NotExists matches documents where the field is not set.
func NotExists() Document { return operator(domain.OpNotExists, true) }

// Keep leaves the current document of a [TransformCursor] untouched.
func Keep() Decision { return domain.Keep() }

// Replace stores doc in place of the current document of a
// [TransformCursor].
func Replace(doc Document) Decision { return domain.Replace(doc) }

// Delete removes the current document of a [TransformCursor].
func Delete() Decision { return domain.Delete() }

// ParseObjectID reads the hexadecimal form of an [ObjectID].
func ParseObjectID(s string) (ObjectID, error) { return domain.ParseObjectID(s) }

var defaultGenerator = sync.OnceValues(func() (domain.IDGenerator, error) {
	return idgenerator.NewIDGenerator()
})

// NewObjectID returns a new process-unique [ObjectID]. It panics if the
// system entropy source cannot be read.
func NewObjectID() ObjectID {
	g, err := defaultGenerator()
	if err != nil {
		panic(err)
	}
	return g.GenerateID()
}

// Marshal encodes a document, or any value of the document value model, in
// the binary form used by the data file and replication batches.
func Marshal(v any) ([]byte, error) {
	if d, ok := v.(Document); ok {
		return serializer.Marshal(d)
	}
	n, err := data.Normalize(v)
	if err != nil {
		return nil, err
	}
	return serializer.Marshal(n)
}

// Unmarshal decodes a document written by [Marshal].
func Unmarshal(b []byte) (Document, error) { return deserializer.Unmarshal(b) }

// DecodeBatch decodes a replication batch produced by a [Subscription] or
// [Bucket.Snapshot].
func DecodeBatch(b []byte) (Batch, error) { return replication.DecodeBatch(b) }
