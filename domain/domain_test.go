package domain_test

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

type DomainTestSuite struct {
	suite.Suite
}

func (s *DomainTestSuite) TestQueryOptions() {
	q := domain.NewQuery(
		domain.WithSort("a", true),
		domain.WithSector(2, 3),
		domain.WithProjection("b"),
	)
	s.Equal(&domain.SortField{Field: "a", Descending: true}, q.Sort)
	s.Equal(domain.Sector{Offset: 2, Limit: 3}, q.Sector)
	s.Equal(domain.Projection{Fields: []string{"b"}}, q.Projection)

	q = domain.NewQuery(domain.WithProjection("b"), domain.WithOmit("c"))
	s.Equal(domain.Projection{Fields: []string{"c"}, Omit: true}, q.Projection)

	q = domain.NewQuery(domain.WithSort("a", false), domain.WithQuery(domain.Query{}))
	s.Nil(q.Sort)
}

func (s *DomainTestSuite) TestObjectID() {
	id := domain.ObjectID{0x65, 0x00, 0x00, 0x01, 1, 2, 3, 4, 5, 0, 0, 9}
	s.Equal("650000010102030405000009", id.String())
	s.Equal(time.Unix(0x65000001, 0), id.Timestamp())
	s.False(id.IsZero())
	s.True(domain.NilObjectID.IsZero())

	parsed, err := domain.ParseObjectID(id.String())
	s.NoError(err)
	s.Equal(id, parsed)

	_, err = domain.ParseObjectID("65000001")
	s.ErrorIs(err, domain.ErrInvalidID)
	_, err = domain.ParseObjectID("zz0000010102030405000009")
	s.ErrorIs(err, domain.ErrInvalidID)

	_, err = domain.ObjectIDFromBytes([]byte{1, 2})
	s.ErrorIs(err, domain.ErrInvalidID)
	fromBytes, err := domain.ObjectIDFromBytes(id.Bytes())
	s.NoError(err)
	s.Equal(id, fromBytes)

	s.Equal(-1, domain.NilObjectID.Compare(id))
	s.Equal(1, domain.MaxObjectID.Compare(id))
	s.Equal(0, id.Compare(parsed))
}

func (s *DomainTestSuite) TestObjectIDText() {
	id := domain.ObjectID{0xab, 11: 0xcd}
	b, err := json.Marshal(map[string]domain.ObjectID{"id": id})
	s.NoError(err)
	s.JSONEq(`{"id":"ab00000000000000000000cd"}`, string(b))

	var out map[string]domain.ObjectID
	s.NoError(json.Unmarshal(b, &out))
	s.Equal(id, out["id"])

	var bad domain.ObjectID
	s.ErrorIs(bad.UnmarshalText([]byte("nope")), domain.ErrInvalidID)
	s.True(bad.IsZero())
}

func (s *DomainTestSuite) TestOperators() {
	s.True(domain.OpEq.IndexCompatible())
	s.True(domain.OpStartsWith.IndexCompatible())
	s.False(domain.OpNe.IndexCompatible())
	s.False(domain.OpExists.IndexCompatible())
	s.False(domain.OpNotExists.IndexCompatible())
}

func (s *DomainTestSuite) TestOpcode() {
	s.Equal("insert", domain.OpInsert.String())
	s.Equal("update", domain.OpUpdate.String())
	s.Equal("delete", domain.OpDelete.String())
	s.Equal("unknown", domain.Opcode(0).String())
}

func (s *DomainTestSuite) TestDecisions() {
	s.Equal(domain.DecisionKeep, domain.Keep().Kind)
	s.Equal(domain.DecisionDelete, domain.Delete().Kind)
	s.Equal(domain.DecisionReplace, domain.Replace(nil).Kind)
}

func (s *DomainTestSuite) TestCommitEmpty() {
	s.True(domain.Commit{}.Empty())
	s.True(domain.Commit{Meta: map[string][]byte{}}.Empty())
	s.False(domain.Commit{Deletes: []domain.ObjectID{{}}}.Empty())
	s.False(domain.Commit{DroppedIndexes: []string{"a"}}.Empty())
}

func (s *DomainTestSuite) TestErrors() {
	corrupt := &domain.StorageCorruptionError{Path: "x.db", Key: "k", Err: io.ErrUnexpectedEOF}
	s.ErrorIs(corrupt, domain.ErrStorageCorruption)
	s.ErrorIs(corrupt, io.ErrUnexpectedEOF)
	s.Contains(corrupt.Error(), "record k")

	var target *domain.StorageCorruptionError
	s.True(errors.As(errors.Join(errors.New("other"), corrupt), &target))
	s.Equal("x.db", target.Path)

	decode := &domain.ReplicationDecodeError{Record: -1, Err: io.EOF}
	s.ErrorIs(decode, domain.ErrReplicationDecode)
	s.NotContains(decode.Error(), "record")
	decode.Record = 2
	s.Contains(decode.Error(), "record 2")

	s.Equal(`field "a": unsupported value type chan int`,
		domain.ErrDocumentType{Field: "a", Value: make(chan int)}.Error())
	s.Equal("unsupported document type int", domain.ErrDocumentType{Value: 1}.Error())
	s.Equal(`unknown operator "$regex"`, domain.ErrUnknownOperator{Operator: "$regex"}.Error())

	wrapped := domain.ErrDecode{Source: 1, Target: "", Err: io.EOF}
	s.ErrorIs(wrapped, io.EOF)
}

func TestDomainTestSuite(t *testing.T) {
	suite.Run(t, new(DomainTestSuite))
}
