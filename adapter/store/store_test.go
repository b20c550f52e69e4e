package store

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/data"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

func oid(n byte) domain.ObjectID {
	return domain.ObjectID{11: n}
}

func doc(n byte, fields ...data.E) domain.Document {
	return data.Ordered(append([]data.E{{Key: "_id", Value: oid(n)}}, fields...)...)
}

type StoreTestSuite struct {
	suite.Suite
	s *Store
}

func (s *StoreTestSuite) SetupTest() {
	var err error
	s.s, err = NewStore()
	s.Require().NoError(err)
}

func (s *StoreTestSuite) ids() []domain.ObjectID {
	var res []domain.ObjectID
	for d := range s.s.Scan() {
		res = append(res, d.ID())
	}
	return res
}

func (s *StoreTestSuite) TestInsertScanGet() {
	t := s.s.Begin()
	s.NoError(t.Insert(doc(2)))
	s.NoError(t.Insert(doc(1)))
	s.Equal([]domain.ObjectID{oid(1), oid(2)}, s.ids())
	s.Equal(2, s.s.Len())

	d, ok := s.s.Get(oid(2))
	s.True(ok)
	s.Equal(oid(2), d.ID())

	s.ErrorIs(t.Insert(doc(1)), domain.ErrConstraintViolated)
	s.Len(t.Records(), 2)
	s.Equal(domain.OpInsert, t.Records()[0].Op)
}

func (s *StoreTestSuite) TestRollback() {
	t := s.s.Begin()
	s.Require().NoError(t.Insert(doc(1, data.E{Key: "v", Value: int64(1)})))
	s.Require().NoError(t.Insert(doc(2)))
	s.Require().NoError(t.EnsureIndex(domain.IndexInfo{Name: "v"}))

	t2 := s.s.Begin()
	s.NoError(t2.Update(doc(1, data.E{Key: "v", Value: int64(5)})))
	ok, err := t2.Delete(oid(2))
	s.NoError(err)
	s.True(ok)
	s.NoError(t2.Insert(doc(3)))
	dropped, err := t2.DropIndex("v")
	s.NoError(err)
	s.True(dropped)

	s.NoError(t2.Rollback())

	s.Equal([]domain.ObjectID{oid(1), oid(2)}, s.ids())
	d, _ := s.s.Get(oid(1))
	s.Equal(int64(1), d.Get("v"))

	idx, ok := s.s.Indexes().Index("v")
	s.Require().True(ok)
	got, err := idx.RangeScan(domain.OpEq, int64(1))
	s.NoError(err)
	s.Equal([]domain.ObjectID{oid(1)}, got)
}

func (s *StoreTestSuite) TestUniqueIndexBlocksInsert() {
	t := s.s.Begin()
	s.Require().NoError(t.EnsureIndex(domain.IndexInfo{Name: "u", Unique: true}))
	s.Require().NoError(t.Insert(doc(1, data.E{Key: "u", Value: "x"})))

	err := t.Insert(doc(2, data.E{Key: "u", Value: "x"}))
	s.ErrorIs(err, domain.ErrConstraintViolated)
	_, ok := s.s.Get(oid(2))
	s.False(ok)
	s.False(s.s.Indexes().Primary().Has(oid(2)))
}

func (s *StoreTestSuite) TestUpdateMissing() {
	t := s.s.Begin()
	s.ErrorIs(t.Update(doc(1)), domain.ErrNotFound)
	ok, err := t.Delete(oid(1))
	s.NoError(err)
	s.False(ok)
	s.NoError(t.Upsert(doc(1)))
	s.NoError(t.Upsert(doc(1, data.E{Key: "a", Value: true})))
	d, _ := s.s.Get(oid(1))
	s.Equal(true, d.Get("a"))
}

func (s *StoreTestSuite) TestChanges() {
	t := s.s.Begin()
	s.Require().NoError(t.Insert(doc(1)))
	s.Require().NoError(t.Insert(doc(2)))
	s.Require().NoError(t.Update(doc(1, data.E{Key: "a", Value: int64(1)})))
	_, err := t.Delete(oid(2))
	s.Require().NoError(err)
	s.Require().NoError(t.EnsureIndex(domain.IndexInfo{Name: "a"}))
	t.SetMeta("seq", []byte{1})

	c := t.Changes()
	s.Len(c.Puts, 1)
	s.Equal(int64(1), c.Puts[0].Get("a"))
	s.Equal([]domain.ObjectID{oid(2)}, c.Deletes)
	s.Equal([]domain.IndexInfo{{Name: "a"}}, c.Indexes)
	s.Equal(map[string][]byte{"seq": {1}}, c.Meta)

	t2 := s.s.Begin()
	_, err = t2.DropIndex("a")
	s.Require().NoError(err)
	s.Equal([]string{"a"}, t2.Changes().DroppedIndexes)
	s.True(s.s.Begin().Changes().Empty())
}

func (s *StoreTestSuite) TestLoad() {
	err := s.s.Load(domain.State{
		Documents: []domain.Document{doc(2, data.E{Key: "a", Value: int64(1)}), doc(1)},
		Indexes:   []domain.IndexInfo{{Name: "_id", Unique: true}, {Name: "a", Sparse: true}},
	})
	s.NoError(err)
	s.Equal([]domain.ObjectID{oid(1), oid(2)}, s.ids())
	idx, ok := s.s.Indexes().Index("a")
	s.True(ok)
	s.Equal(1, idx.Len())

	fresh, err := NewStore()
	s.Require().NoError(err)
	err = fresh.Load(domain.State{
		Documents: []domain.Document{doc(1, data.E{Key: "u", Value: int64(1)}), doc(2, data.E{Key: "u", Value: int64(1)})},
		Indexes:   []domain.IndexInfo{{Name: "u", Unique: true}},
	})
	s.ErrorIs(err, domain.ErrConstraintViolated)
}

func (s *StoreTestSuite) TestResolveSkipsMissing() {
	t := s.s.Begin()
	s.Require().NoError(t.Insert(doc(1)))
	got := slices.Collect(s.s.Resolve([]domain.ObjectID{oid(9), oid(1)}))
	s.Len(got, 1)
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
