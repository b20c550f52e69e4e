package domain

import "context"

// PrimaryIndex is the name of the index every bucket keeps over _id.
const PrimaryIndex = "_id"

// Undefined represents the absence of a value, as opposed to an explicit
// nil. It sorts before every other value.
type Undefined struct{}

// IndexInfo describes a persisted index definition.
type IndexInfo struct {
	Name    string `msgpack:"name" json:"name"`
	Unique  bool   `msgpack:"unique" json:"unique"`
	Sparse  bool   `msgpack:"sparse" json:"sparse"`
	Reverse bool   `msgpack:"reverse" json:"reverse"`
}

// IndexOptions are the flags accepted when an index is ensured.
type IndexOptions struct {
	// Unique rejects two documents sharing the same key.
	Unique bool
	// Sparse omits documents missing the field from the index.
	Sparse bool
	// Reverse makes the natural iteration order of the index descending.
	Reverse bool
}

// Operator is a filter operator name.
type Operator string

// Supported filter operators.
const (
	OpEq         Operator = "$eq"
	OpNe         Operator = "$ne"
	OpLt         Operator = "$lt"
	OpLte        Operator = "$lte"
	OpGt         Operator = "$gt"
	OpGte        Operator = "$gte"
	OpIn         Operator = "$in"
	OpBetween    Operator = "$between"
	OpStartsWith Operator = "$startsWith"
	OpEndsWith   Operator = "$endsWith"
	OpExists     Operator = "$exists"
	OpNotExists  Operator = "$notExists"
)

// IndexCompatible reports whether an index over the operand's field can
// produce a superset of the documents matched by op.
func (o Operator) IndexCompatible() bool {
	switch o {
	case OpEq, OpLt, OpLte, OpGt, OpGte, OpIn, OpBetween, OpStartsWith, OpEndsWith:
		return true
	}
	return false
}

// Query is a filter together with its ordering, paging and projection.
type Query struct {
	// Filter maps field paths to operands or operator documents. Fields
	// are evaluated in declaration order.
	Filter Document
	// Sort is nil when the result order is left to the plan.
	Sort *SortField
	// Sector restricts the sorted result set.
	Sector Sector
	// Projection restricts the fields of the produced documents.
	Projection Projection
}

// SortField names the field results are ordered by.
type SortField struct {
	Field      string
	Descending bool
}

// Sector is an offset/limit window. A zero Limit means no limit.
type Sector struct {
	Offset int64
	Limit  int64
}

// Projection lists fields to keep or, if Omit is set, to remove.
type Projection struct {
	Fields []string
	Omit   bool
}

// Plan describes how a query is executed.
type Plan struct {
	// DriveField is the indexed field candidates are read from, or empty
	// for a full scan.
	DriveField string
	// DriveOperator is the operator evaluated against DriveField.
	DriveOperator Operator
	// IndexOrder is set when candidates already come in the requested
	// sort order.
	IndexOrder bool
	// FullScan is set when every document is a candidate.
	FullScan bool
}

// DecisionKind selects what happens to the document a transform cursor
// yielded.
type DecisionKind uint8

// Decision kinds.
const (
	DecisionKeep DecisionKind = iota
	DecisionReplace
	DecisionDelete
)

// Decision is the caller's verdict on a yielded document.
type Decision struct {
	Kind     DecisionKind
	Document Document
}

// Keep leaves the current document untouched.
func Keep() Decision { return Decision{Kind: DecisionKeep} }

// Replace stores doc in place of the current document.
func Replace(doc Document) Decision { return Decision{Kind: DecisionReplace, Document: doc} }

// Delete removes the current document.
func Delete() Decision { return Decision{Kind: DecisionDelete} }

// Opcode is the kind of change a replication record carries.
type Opcode uint8

// Replication opcodes.
const (
	OpInsert Opcode = iota + 1
	OpUpdate
	OpDelete
)

func (o Opcode) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Record is one change of a replication batch. Seq is zero for records of a
// snapshot batch.
type Record struct {
	Op  Opcode
	Seq uint64
	ID  ObjectID
	Doc Document
}

// Batch is the unit of replication produced by one committed mutation.
type Batch struct {
	// Source identifies the bucket that produced the batch.
	Source string
	// Snapshot marks a batch holding the full contents of Source.
	Snapshot bool
	// HighWater is the last sequence number covered by the batch.
	HighWater uint64
	Records   []Record
}

// State is what a [Persistence] reads back on open.
type State struct {
	Documents []Document
	Indexes   []IndexInfo
	Meta      map[string][]byte
}

// Commit is a set of changes written atomically by a [Persistence].
type Commit struct {
	Puts           []Document
	Deletes        []ObjectID
	Indexes        []IndexInfo
	DroppedIndexes []string
	Meta           map[string][]byte
}

// Empty reports whether c carries no change.
func (c Commit) Empty() bool {
	return len(c.Puts) == 0 && len(c.Deletes) == 0 && len(c.Indexes) == 0 &&
		len(c.DroppedIndexes) == 0 && len(c.Meta) == 0
}

// DocumentFactory builds a [Document] from any supported Go value. If nil is
// provided, returns an empty document.
type DocumentFactory = func(any) (Document, error)

// CursorFactory builds a [Cursor] over a resolved result set.
type CursorFactory = func(context.Context, []Document, ...CursorOption) (Cursor, error)

// ObjectIDExtType is the msgpack extension type used for [ObjectID] values.
const ObjectIDExtType int8 = 7
