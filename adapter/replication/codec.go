package replication

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/deserializer"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/serializer"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// Version is the wire format version written by [EncodeBatch].
const Version = 1

const (
	batchFields  = 5
	recordFields = 4
)

var (
	errVersion    = errors.New("unsupported batch version")
	errShape      = errors.New("unexpected batch shape")
	errSource     = errors.New("batch source is empty")
	errOpcode     = errors.New("unknown opcode")
	errSequence   = errors.New("sequence numbers must strictly increase")
	errHighWater  = errors.New("sequence number above batch high water mark")
	errSnapshot   = errors.New("snapshot records must be unsequenced inserts")
	errMissingDoc = errors.New("insert and update records need a document")
	errDeleteDoc  = errors.New("delete records cannot carry a document")
	errIDMismatch = errors.New("document _id differs from record id")
	errTrailing   = errors.New("trailing bytes after batch")
)

// EncodeBatch writes b in the wire form
//
//	[version, source, snapshot, highWater, [[op, seq, id, doc|nil]...]]
func EncodeBatch(b domain.Batch) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(&buf)

	if err := enc.EncodeArrayLen(batchFields); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint(Version); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(b.Source); err != nil {
		return nil, err
	}
	if err := enc.EncodeBool(b.Snapshot); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint(b.HighWater); err != nil {
		return nil, err
	}
	if err := enc.EncodeArrayLen(len(b.Records)); err != nil {
		return nil, err
	}
	for _, r := range b.Records {
		if err := encodeRecord(enc, r); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeRecord(enc *msgpack.Encoder, r domain.Record) error {
	if err := enc.EncodeArrayLen(recordFields); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(r.Op)); err != nil {
		return err
	}
	if err := enc.EncodeUint(r.Seq); err != nil {
		return err
	}
	if err := serializer.EncodeValue(enc, r.ID); err != nil {
		return err
	}
	if r.Doc == nil {
		return enc.EncodeNil()
	}
	return serializer.EncodeDocument(enc, r.Doc)
}

// DecodeBatch reads and validates a batch written by [EncodeBatch]. Every
// error is a [*domain.ReplicationDecodeError].
func DecodeBatch(data []byte) (domain.Batch, error) {
	r := bytes.NewReader(data)
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(r)

	b, err := decodeBatch(dec)
	if err != nil {
		return domain.Batch{}, err
	}
	if r.Len() != 0 {
		return domain.Batch{}, decodeErr(-1, errTrailing)
	}
	return b, nil
}

func decodeErr(record int, err error) error {
	return &domain.ReplicationDecodeError{Record: record, Err: err}
}

func decodeBatch(dec *msgpack.Decoder) (domain.Batch, error) {
	var b domain.Batch
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return b, decodeErr(-1, err)
	}
	if n != batchFields {
		return b, decodeErr(-1, fmt.Errorf("%w: batch has %d fields", errShape, n))
	}
	version, err := dec.DecodeUint64()
	if err != nil {
		return b, decodeErr(-1, err)
	}
	if version != Version {
		return b, decodeErr(-1, fmt.Errorf("%w: %d", errVersion, version))
	}
	if b.Source, err = dec.DecodeString(); err != nil {
		return b, decodeErr(-1, err)
	}
	if b.Source == "" {
		return b, decodeErr(-1, errSource)
	}
	if b.Snapshot, err = dec.DecodeBool(); err != nil {
		return b, decodeErr(-1, err)
	}
	if b.HighWater, err = dec.DecodeUint64(); err != nil {
		return b, decodeErr(-1, err)
	}
	count, err := dec.DecodeArrayLen()
	if err != nil {
		return b, decodeErr(-1, err)
	}
	if count < 0 {
		return b, decodeErr(-1, fmt.Errorf("%w: records are nil", errShape))
	}

	b.Records = make([]domain.Record, 0, min(count, 1024))
	var last uint64
	for i := range count {
		rec, err := decodeRecord(dec)
		if err != nil {
			return b, decodeErr(i, err)
		}
		if err := validateRecord(b, rec, last); err != nil {
			return b, decodeErr(i, err)
		}
		last = rec.Seq
		b.Records = append(b.Records, rec)
	}
	return b, nil
}

func decodeRecord(dec *msgpack.Decoder) (domain.Record, error) {
	var rec domain.Record
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return rec, err
	}
	if n != recordFields {
		return rec, fmt.Errorf("%w: record has %d fields", errShape, n)
	}
	op, err := dec.DecodeUint64()
	if err != nil {
		return rec, err
	}
	if op < uint64(domain.OpInsert) || op > uint64(domain.OpDelete) {
		return rec, fmt.Errorf("%w: %d", errOpcode, op)
	}
	rec.Op = domain.Opcode(op)
	if rec.Seq, err = dec.DecodeUint64(); err != nil {
		return rec, err
	}
	id, err := deserializer.DecodeValue(dec)
	if err != nil {
		return rec, err
	}
	oid, ok := id.(domain.ObjectID)
	if !ok {
		return rec, fmt.Errorf("%w: record id is %T", domain.ErrInvalidID, id)
	}
	rec.ID = oid

	c, err := dec.PeekCode()
	if err != nil {
		return rec, err
	}
	if c == msgpcode.Nil {
		return rec, dec.DecodeNil()
	}
	rec.Doc, err = deserializer.DecodeDocument(dec)
	return rec, err
}

func validateRecord(b domain.Batch, rec domain.Record, last uint64) error {
	if b.Snapshot {
		if rec.Seq != 0 || rec.Op != domain.OpInsert {
			return errSnapshot
		}
	} else {
		if rec.Seq <= last {
			return fmt.Errorf("%w: %d after %d", errSequence, rec.Seq, last)
		}
		if rec.Seq > b.HighWater {
			return fmt.Errorf("%w: %d > %d", errHighWater, rec.Seq, b.HighWater)
		}
	}
	switch rec.Op {
	case domain.OpInsert, domain.OpUpdate:
		if rec.Doc == nil {
			return errMissingDoc
		}
		if rec.Doc.ID() != rec.ID {
			return errIDMismatch
		}
	case domain.OpDelete:
		if rec.Doc != nil {
			return errDeleteDoc
		}
	}
	return nil
}
