// Package domain contains domain-specific interfaces and option types for
// albedo.
//
// This package defines the core interfaces that must be implemented by
// adapters, as well as the value types shared by them, like identifiers,
// queries, index definitions and replication batches.
package domain

import (
	"context"
	"iter"
	"os"
	"time"
)

// Serializer converts documents to bytes for storage and replication.
type Serializer interface {
	// Serialize converts a document to bytes.
	Serialize(context.Context, Document) ([]byte, error)
}

// Deserializer converts bytes back to documents.
type Deserializer interface {
	// Deserialize converts bytes back to a document.
	Deserialize(context.Context, []byte) (Document, error)
}

// Storage provides the file system operations used around the data file.
type Storage interface {
	// Exists checks if a file exists.
	Exists(string) (bool, error)
	// EnsureParentDirectoryExists creates parent directories if needed.
	EnsureParentDirectoryExists(string, os.FileMode) error
	// Remove deletes a file.
	Remove(string) error
}

// Decoder copies a document into a user-defined value.
type Decoder interface {
	// Decode decodes the first argument into the target pointer.
	Decode(any, any) error
}

// Comparer provides the total order of document values.
type Comparer interface {
	// Compare returns -1, 0, or 1 based on the comparison of two values.
	Compare(any, any) (int, error)
	// Comparable reports whether relational operators apply to both
	// values.
	Comparable(any, any) bool
}

// TimeGetter provides current time for timestamping operations.
type TimeGetter interface {
	// GetTime returns the current time.
	GetTime() time.Time
}

// IDGenerator produces new document identifiers.
type IDGenerator interface {
	// GenerateID returns an id never returned before by this generator.
	GenerateID() ObjectID
}

// FieldNavigator resolves dotted field paths.
type FieldNavigator interface {
	// GetAddress splits a dotted path into its parts.
	GetAddress(field string) ([]string, error)
	// GetField returns the value found at the address and whether it is
	// defined.
	GetField(doc Document, addr ...string) (any, bool)
	// SetField stores value at the address, creating intermediate
	// documents.
	SetField(doc Document, value any, addr ...string) error
}

// Hasher fingerprints document contents.
type Hasher interface {
	// Hash returns a content hash that is equal for equal documents.
	Hash(Document) (uint64, error)
}

// Document is an ordered mapping of field names to values. Stored documents
// are never modified in place, so they can be shared by concurrent readers.
type Document interface {
	// ID returns the _id of the document, or [NilObjectID].
	ID() ObjectID
	// Get returns the value under the given key, or nil if unset.
	Get(string) any
	// Set sets the value under the given key. New keys are appended.
	Set(string, any)
	// Unset removes the given key.
	Unset(string)
	// Has reports whether a value is set under the given key.
	Has(string) bool
	// Len returns the number of set fields in the document.
	Len() int
	// Iter returns the key-value pairs in field order.
	Iter() iter.Seq2[string, any]
	// Keys returns the keys in field order.
	Keys() iter.Seq[string]
	// Clone returns a deep copy of the document.
	Clone() Document
}

// Matcher compiles filter documents.
type Matcher interface {
	// Compile validates filter and returns its compiled form.
	Compile(filter Document) (Filter, error)
}

// Filter is a compiled filter document.
type Filter interface {
	// Match reports whether doc satisfies the filter.
	Match(doc Document) bool
	// Terms returns the filter terms in declaration order.
	Terms() []FieldTerm
}

// FieldTerm is one field of a compiled filter.
type FieldTerm struct {
	Field      string
	Conditions []Condition
}

// Condition is one operator of a [FieldTerm].
type Condition struct {
	Operator Operator
	Operand  any
}

// Projector restricts the fields of produced documents.
type Projector interface {
	// Project returns a copy of doc with the projection applied.
	Project(doc Document, p Projection) (Document, error)
}

// Persistence stores the contents of a bucket.
type Persistence interface {
	// Load reads back every persisted document, index and meta entry.
	Load(ctx context.Context) (State, error)
	// Commit writes all changes atomically.
	Commit(ctx context.Context, c Commit) error
	// Drop permanently deletes all persisted data.
	Drop(ctx context.Context) error
	// Close releases the underlying file.
	Close() error
}

// Index keeps the identifiers of documents ordered by the value of one field.
type Index interface {
	// Info returns the index definition.
	Info() IndexInfo
	// Insert adds documents. On error, none of them is added.
	Insert(docs ...Document) error
	// Remove removes documents.
	Remove(docs ...Document) error
	// Update replaces old by new. On error, old is kept.
	Update(old, new Document) error
	// Reset clears the index and inserts the given documents.
	Reset(docs iter.Seq[Document]) error
	// RangeScan returns the ids whose key satisfies op and operand, in
	// index order.
	RangeScan(op Operator, operand any) ([]ObjectID, error)
	// All returns every indexed id in index order.
	All() []ObjectID
	// Has reports whether the document with the given id is indexed.
	Has(id ObjectID) bool
	// Len returns the number of indexed documents.
	Len() int
}

// Cursor iterates over the documents of a query.
type Cursor interface {
	// Next advances the cursor, returning true if a document is available.
	Next() bool
	// Document returns a copy of the current document.
	Document() Document
	// Scan decodes the current document into target.
	Scan(ctx context.Context, target any) error
	// All iterates the remaining documents, closing the cursor at the end.
	All() iter.Seq2[Document, error]
	// Err returns any error that occurred during iteration.
	Err() error
	// Close releases cursor resources. It is safe to call more than once.
	Close() error
}

// TransformCursor iterates documents while letting the caller keep, replace
// or delete each one before the next is produced.
type TransformCursor interface {
	// Next produces the next document. A document still in flight is
	// kept.
	Next(ctx context.Context) bool
	// Current returns the document in flight, or nil.
	Current() Document
	// Advance applies the decision to the document in flight.
	Advance(ctx context.Context, d Decision) error
	// Err returns any error that closed the cursor.
	Err() error
	// Close discards the document in flight and releases resources.
	Close() error
}

// Subscription is a stream of encoded replication batches.
type Subscription interface {
	// C returns the batches in commit order. The channel is closed when
	// the bucket or the subscription closes.
	C() <-chan []byte
	// Close stops delivery, dropping pending batches.
	Close()
}

// Bucket is a named container of documents.
type Bucket interface {
	// Name returns the name the bucket reports in logs and metrics.
	Name() string
	// Source returns the replication identity of the bucket.
	Source() string
	// Seq returns the last sequence number assigned by the bucket.
	Seq() uint64
	// Insert stores documents, generating missing ids. Either all
	// documents are stored or none is.
	Insert(ctx context.Context, docs ...any) ([]ObjectID, error)
	// Get returns the document with the given id.
	Get(ctx context.Context, id ObjectID) (Document, bool, error)
	// Delete removes every matching document and returns their count.
	Delete(ctx context.Context, opts ...QueryOption) (int64, error)
	// Count returns the number of matching documents.
	Count(ctx context.Context, opts ...QueryOption) (int64, error)
	// List returns a snapshot cursor over matching documents.
	List(ctx context.Context, opts ...QueryOption) (Cursor, error)
	// Transform returns a cursor that can modify matching documents.
	Transform(ctx context.Context, opts ...QueryOption) (TransformCursor, error)
	// TransformFunc applies fn to every matching document.
	TransformFunc(ctx context.Context, fn func(Document) (Decision, error), opts ...QueryOption) error
	// Explain returns the plan used for a query.
	Explain(ctx context.Context, opts ...QueryOption) (Plan, error)
	// EnsureIndex creates or redefines the index over field.
	EnsureIndex(ctx context.Context, field string, opts IndexOptions) (IndexInfo, error)
	// DropIndex removes the index over field, if any.
	DropIndex(ctx context.Context, field string) error
	// ListIndexes returns every index definition by name.
	ListIndexes(ctx context.Context) (map[string]IndexInfo, error)
	// Subscribe starts a stream of replication batches.
	Subscribe() Subscription
	// Applied returns the last sequence number applied from source.
	Applied(ctx context.Context, source string) (uint64, error)
	// ApplyBatch applies an encoded replication batch atomically.
	ApplyBatch(ctx context.Context, data []byte) error
	// Snapshot encodes the whole bucket as a replication batch.
	Snapshot(ctx context.Context) ([]byte, error)
	// Close releases every resource held by the bucket.
	Close(ctx context.Context) error
	// Drop deletes the contents and the data file of the bucket, then
	// closes it.
	Drop(ctx context.Context) error
}
