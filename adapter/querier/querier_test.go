package querier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/data"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/store"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

func oid(n byte) domain.ObjectID {
	return domain.ObjectID{11: n}
}

type QuerierTestSuite struct {
	suite.Suite
	st *store.Store
	q  *Querier
}

func (s *QuerierTestSuite) SetupTest() {
	var err error
	s.st, err = store.NewStore()
	s.Require().NoError(err)
	s.q = NewQuerier()

	t := s.st.Begin()
	people := []struct {
		n    byte
		name string
		age  any
	}{
		{1, "ada", int64(36)},
		{2, "bob", int64(25)},
		{3, "cy", nil},
		{4, "dee", int64(25)},
		{5, "eve", 41.5},
	}
	for _, p := range people {
		d := data.Ordered(data.E{Key: "_id", Value: oid(p.n)}, data.E{Key: "name", Value: p.name})
		if p.age != nil {
			d.Set("age", p.age)
		}
		s.Require().NoError(t.Insert(d))
	}
}

func (s *QuerierTestSuite) ensure(info domain.IndexInfo) {
	s.Require().NoError(s.st.Begin().EnsureIndex(info))
}

func (s *QuerierTestSuite) find(q domain.Query) ([]domain.ObjectID, domain.Plan) {
	docs, plan, err := s.q.Find(context.Background(), s.st, q)
	s.Require().NoError(err)
	ids := make([]domain.ObjectID, len(docs))
	for n, d := range docs {
		ids[n] = d.ID()
	}
	return ids, plan
}

func ids(ns ...byte) []domain.ObjectID {
	res := make([]domain.ObjectID, len(ns))
	for i, n := range ns {
		res[i] = oid(n)
	}
	return res
}

func (s *QuerierTestSuite) TestFullScan() {
	got, plan := s.find(domain.Query{Filter: data.Ordered(data.E{Key: "age", Value: data.Ordered(data.E{Key: "$gte", Value: int64(30)})})})
	s.Equal(ids(1, 5), got)
	s.Equal(domain.Plan{FullScan: true}, plan)
}

func (s *QuerierTestSuite) TestDriveIndex() {
	s.ensure(domain.IndexInfo{Name: "age"})
	filter := data.Ordered(
		data.E{Key: "name", Value: data.Ordered(data.E{Key: "$ne", Value: "bob"})},
		data.E{Key: "age", Value: data.Ordered(data.E{Key: "$lte", Value: int64(36)})},
	)
	got, plan := s.find(domain.Query{Filter: filter})
	s.Equal(ids(4, 1), got)
	s.Equal(domain.Plan{DriveField: "age", DriveOperator: domain.OpLte}, plan)
}

func (s *QuerierTestSuite) TestFirstDeclaredDriveWins() {
	s.ensure(domain.IndexInfo{Name: "age"})
	s.ensure(domain.IndexInfo{Name: "name"})
	filter := data.Ordered(
		data.E{Key: "name", Value: data.Ordered(data.E{Key: "$startsWith", Value: "d"})},
		data.E{Key: "age", Value: int64(25)},
	)
	got, plan := s.find(domain.Query{Filter: filter})
	s.Equal(ids(4), got)
	s.Equal("name", plan.DriveField)
	s.Equal(domain.OpStartsWith, plan.DriveOperator)
}

func (s *QuerierTestSuite) TestNonCompatibleOperatorIsNotDrive() {
	s.ensure(domain.IndexInfo{Name: "age"})
	filter := data.Ordered(data.E{Key: "age", Value: data.Ordered(data.E{Key: "$exists", Value: false})})
	got, plan := s.find(domain.Query{Filter: filter})
	s.Equal(ids(3), got)
	s.True(plan.FullScan)
}

func (s *QuerierTestSuite) TestSortInMemory() {
	got, plan := s.find(domain.Query{Sort: &domain.SortField{Field: "age"}})
	s.Equal(ids(3, 2, 4, 1, 5), got)
	s.False(plan.IndexOrder)

	got, _ = s.find(domain.Query{Sort: &domain.SortField{Field: "age", Descending: true}})
	s.Equal(ids(5, 1, 4, 2, 3), got)
}

func (s *QuerierTestSuite) TestSortByIndex() {
	s.ensure(domain.IndexInfo{Name: "age"})
	got, plan := s.find(domain.Query{
		Sort:   &domain.SortField{Field: "age", Descending: true},
		Sector: domain.Sector{Offset: 1, Limit: 2},
	})
	s.Equal(ids(1, 4), got)
	s.Equal(domain.Plan{DriveField: "age", IndexOrder: true, FullScan: true}, plan)
}

func (s *QuerierTestSuite) TestSortBySparseIndexFallsBack() {
	s.ensure(domain.IndexInfo{Name: "age", Sparse: true})
	got, plan := s.find(domain.Query{Sort: &domain.SortField{Field: "age"}})
	s.Equal(ids(3, 2, 4, 1, 5), got)
	s.Equal(domain.Plan{FullScan: true}, plan)
}

func (s *QuerierTestSuite) TestReverseIndexDrive() {
	s.ensure(domain.IndexInfo{Name: "age", Reverse: true})
	filter := data.Ordered(data.E{Key: "age", Value: data.Ordered(data.E{Key: "$gt", Value: int64(20)})})

	got, plan := s.find(domain.Query{Filter: filter})
	s.Equal(ids(5, 1, 4, 2), got)
	s.False(plan.IndexOrder)

	got, plan = s.find(domain.Query{Filter: filter, Sort: &domain.SortField{Field: "age"}})
	s.Equal(ids(2, 4, 1, 5), got)
	s.True(plan.IndexOrder)
}

func (s *QuerierTestSuite) TestSector() {
	got, _ := s.find(domain.Query{Sector: domain.Sector{Offset: 3}})
	s.Equal(ids(4, 5), got)
	got, _ = s.find(domain.Query{Sector: domain.Sector{Offset: 1, Limit: 1}})
	s.Equal(ids(2), got)
	got, _ = s.find(domain.Query{Sector: domain.Sector{Offset: 10, Limit: 1}})
	s.Empty(got)

	_, err := s.q.Plan(s.st, domain.Query{Sector: domain.Sector{Limit: -1}})
	s.ErrorIs(err, ErrInvalidQuery)
}

func (s *QuerierTestSuite) TestIDDrive() {
	filter := data.Ordered(data.E{Key: "_id", Value: oid(4)})
	got, plan := s.find(domain.Query{Filter: filter})
	s.Equal(ids(4), got)
	s.Equal("_id", plan.DriveField)
}

func (s *QuerierTestSuite) TestInvalidFilter() {
	filter := data.Ordered(data.E{Key: "age", Value: data.Ordered(data.E{Key: "$nope", Value: 1})})
	_, _, err := s.q.Find(context.Background(), s.st, domain.Query{Filter: filter})
	s.ErrorAs(err, new(domain.ErrUnknownOperator))
}

func (s *QuerierTestSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	t := s.st.Begin()
	for n := range 300 {
		s.Require().NoError(t.Insert(data.Ordered(data.E{Key: "_id", Value: domain.ObjectID{0: 1, 10: byte(n >> 8), 11: byte(n)}})))
	}
	_, _, err := s.q.Find(ctx, s.st, domain.Query{})
	s.ErrorIs(err, context.Canceled)
}

func TestQuerierTestSuite(t *testing.T) {
	suite.Run(t, new(QuerierTestSuite))
}

type ParseQueryTestSuite struct {
	suite.Suite
}

func (s *ParseQueryTestSuite) TestFull() {
	doc, err := data.DocumentFromJSON([]byte(`{
		"query": {"age": {"$gt": 3}},
		"sort": {"desc": "age"},
		"sector": {"offset": 1, "limit": 5},
		"projection": {"omit": ["secret"]}
	}`))
	s.Require().NoError(err)

	q, err := ParseQuery(doc)
	s.NoError(err)
	s.Equal(1, q.Filter.Len())
	s.Equal(&domain.SortField{Field: "age", Descending: true}, q.Sort)
	s.Equal(domain.Sector{Offset: 1, Limit: 5}, q.Sector)
	s.Equal(domain.Projection{Fields: []string{"secret"}, Omit: true}, q.Projection)
}

func (s *ParseQueryTestSuite) TestEmpty() {
	q, err := ParseQuery(nil)
	s.NoError(err)
	s.Equal(domain.Query{}, q)
}

func (s *ParseQueryTestSuite) TestInvalid() {
	for _, in := range []string{
		`{"nope": 1}`,
		`{"query": 1}`,
		`{"sort": {"up": "a"}}`,
		`{"sort": {"asc": "a", "desc": "b"}}`,
		`{"sector": {"limit": -1}}`,
		`{"sector": {"page": 1}}`,
		`{"projection": {"include": "a"}}`,
		`{"projection": {"keep": ["a"]}}`,
	} {
		doc, err := data.DocumentFromJSON([]byte(in))
		s.Require().NoError(err)
		_, err = ParseQuery(doc)
		s.ErrorIs(err, ErrInvalidQuery, in)
	}
}

func TestParseQueryTestSuite(t *testing.T) {
	suite.Run(t, new(ParseQueryTestSuite))
}
