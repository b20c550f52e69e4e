package bucket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/data"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/replication"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/serializer"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
	"github.com/vinicius-lino-figueiredo/albedo/metrics"
)

var ctx = context.Background()

type M = map[string]any

func where(field string, operand any) domain.QueryOption {
	return domain.WithFilter(data.Ordered(data.E{Key: field, Value: operand}))
}

func op(o domain.Operator, v any) domain.Document {
	return data.Ordered(data.E{Key: string(o), Value: v})
}

type BucketTestSuite struct {
	suite.Suite
	entropy byte
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	b       *Bucket
}

func (s *BucketTestSuite) SetupTest() {
	s.entropy = 0
	s.reg = prometheus.NewRegistry()
	s.metrics = metrics.New(s.reg)
	s.b = s.open("", WithName("main"))
}

func (s *BucketTestSuite) TearDownTest() {
	if !s.b.closed.Load() {
		s.NoError(s.b.Close(ctx))
	}
}

// open returns a bucket whose ids are generated in insertion order and never
// collide with the ids of other buckets opened by the same test.
func (s *BucketTestSuite) open(filename string, opts ...Option) *Bucket {
	s.entropy++
	base := []Option{
		WithRandomReader(bytes.NewReader([]byte{s.entropy, 0, 0, 0, 0, 0, 0, 0})),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithNoSync(true),
		WithName(fmt.Sprintf("%s-%d", filepath.Base(filename), s.entropy)),
	}
	b, err := Open(ctx, filename, append(base, opts...)...)
	s.Require().NoError(err)
	return b
}

func (s *BucketTestSuite) list(b *Bucket, opts ...domain.QueryOption) []domain.Document {
	cur, err := b.List(ctx, opts...)
	s.Require().NoError(err)
	var res []domain.Document
	for d, err := range cur.All() {
		s.Require().NoError(err)
		res = append(res, d)
	}
	return res
}

func (s *BucketTestSuite) field(docs []domain.Document, name string) []any {
	res := make([]any, len(docs))
	for n, d := range docs {
		res[n] = d.Get(name)
	}
	return res
}

func (s *BucketTestSuite) receive(sub domain.Subscription) []byte {
	select {
	case b, ok := <-sub.C():
		s.Require().True(ok, "subscription closed")
		return b
	case <-time.After(time.Second):
		s.FailNow("timed out waiting for batch")
	}
	return nil
}

func (s *BucketTestSuite) drain(sub domain.Subscription, n int) [][]byte {
	res := make([][]byte, n)
	for i := range n {
		res[i] = s.receive(sub)
	}
	return res
}

func (s *BucketTestSuite) insert(b *Bucket, docs ...any) []domain.ObjectID {
	ids, err := b.Insert(ctx, docs...)
	s.Require().NoError(err)
	return ids
}

func (s *BucketTestSuite) TestScenario() {
	ids := s.insert(s.b, M{"name": "Alice", "age": 30}, M{"name": "Bob", "age": 25})

	docs := s.list(s.b)
	s.Require().Len(docs, 2)
	s.Equal(ids[0], docs[0].ID())
	s.Equal(ids[1], docs[1].ID())
	s.Equal([]any{"Alice", "Bob"}, s.field(docs, "name"))

	info, err := s.b.EnsureIndex(ctx, "name", domain.IndexOptions{})
	s.Require().NoError(err)
	idx, err := s.b.ListIndexes(ctx)
	s.Require().NoError(err)
	s.Equal(info, idx["name"])
	s.Equal(domain.IndexInfo{Name: "name"}, idx["name"])
	s.Require().NoError(s.b.DropIndex(ctx, "name"))
	idx, err = s.b.ListIndexes(ctx)
	s.Require().NoError(err)
	s.NotContains(idx, "name")
	s.Contains(idx, domain.PrimaryIndex)

	err = s.b.TransformFunc(ctx, func(d domain.Document) (domain.Decision, error) {
		if d.Get("name") != "Bob" {
			return domain.Keep(), nil
		}
		d.Set("age", int64(26))
		return domain.Replace(d), nil
	})
	s.Require().NoError(err)
	docs = s.list(s.b)
	s.Equal([]any{"Alice", "Bob"}, s.field(docs, "name"))
	s.Equal([]any{int64(30), int64(26)}, s.field(docs, "age"))

	n, err := s.b.Delete(ctx, where("name", "Alice"))
	s.Require().NoError(err)
	s.Equal(int64(1), n)
	s.Equal([]any{"Bob"}, s.field(s.list(s.b), "name"))

	a, b := s.open(""), s.open("")
	defer a.Close(ctx)
	defer b.Close(ctx)
	sub := a.Subscribe()
	defer sub.Close()
	s.insert(a, M{"name": "Replicated", "value": 1})
	s.Require().NoError(b.ApplyBatch(ctx, s.receive(sub)))

	replicated := s.list(b)
	s.Require().Len(replicated, 1)
	s.Equal("Replicated", replicated[0].Get("name"))
	s.Equal(int64(1), replicated[0].Get("value"))
	s.Equal(s.list(a)[0].ID(), replicated[0].ID())
}

func (s *BucketTestSuite) TestInsertAssignsID() {
	given := domain.ObjectID{1, 2, 3}
	ids := s.insert(s.b,
		M{"a": 1},
		data.Ordered(data.E{Key: "_id", Value: given.String()}, data.E{Key: "b", Value: 2}),
	)
	s.False(ids[0].IsZero())
	s.Equal(given, ids[1])

	d, ok, err := s.b.Get(ctx, ids[0])
	s.Require().NoError(err)
	s.True(ok)
	s.Equal([]string{"a", "_id"}, keysOf(d))

	d, ok, err = s.b.Get(ctx, given)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(given, d.Get("_id"))

	_, ok, err = s.b.Get(ctx, domain.ObjectID{9})
	s.NoError(err)
	s.False(ok)
}

func keysOf(d domain.Document) []string {
	var res []string
	for k := range d.Keys() {
		res = append(res, k)
	}
	return res
}

func (s *BucketTestSuite) TestInsertEncoded() {
	raw, err := serializer.Marshal(data.Ordered(data.E{Key: "x", Value: int64(7)}))
	s.Require().NoError(err)
	ids := s.insert(s.b, raw)
	d, _, err := s.b.Get(ctx, ids[0])
	s.Require().NoError(err)
	s.Equal(int64(7), d.Get("x"))
}

func (s *BucketTestSuite) TestInsertInvalid() {
	_, err := s.b.Insert(ctx, M{"_id": 12})
	s.ErrorIs(err, domain.ErrInvalidID)
	_, err = s.b.Insert(ctx, M{"_id": "zz"})
	s.ErrorIs(err, domain.ErrInvalidID)
	_, err = s.b.Insert(ctx, M{"$set": 1})
	s.ErrorAs(err, new(domain.ErrFieldName))
	_, err = s.b.Insert(ctx, M{"ch": make(chan int)})
	s.ErrorAs(err, new(domain.ErrDocumentType))
	s.Empty(s.list(s.b))
}

func (s *BucketTestSuite) TestInsertIsAtomic() {
	_, err := s.b.EnsureIndex(ctx, "email", domain.IndexOptions{Unique: true})
	s.Require().NoError(err)
	s.insert(s.b, M{"email": "a@x"})

	_, err = s.b.Insert(ctx, M{"email": "b@x"}, M{"email": "a@x"})
	s.ErrorIs(err, domain.ErrConstraintViolated)
	n, err := s.b.Count(ctx)
	s.NoError(err)
	s.Equal(int64(1), n)

	n, err = s.b.Count(ctx, where("email", "b@x"))
	s.NoError(err)
	s.Zero(n)

	s.insert(s.b, M{"email": "b@x"})
}

func (s *BucketTestSuite) TestUniqueIndexOverDuplicates() {
	s.insert(s.b, M{"v": 1}, M{"v": 1})
	_, err := s.b.EnsureIndex(ctx, "v", domain.IndexOptions{Unique: true})
	s.ErrorIs(err, domain.ErrConstraintViolated)
	idx, err := s.b.ListIndexes(ctx)
	s.NoError(err)
	s.NotContains(idx, "v")
}

func (s *BucketTestSuite) TestEnsureIndex() {
	info, err := s.b.EnsureIndex(ctx, domain.PrimaryIndex, domain.IndexOptions{Sparse: true})
	s.NoError(err)
	s.Equal(domain.IndexInfo{Name: domain.PrimaryIndex, Unique: true}, info)

	_, err = s.b.EnsureIndex(ctx, "", domain.IndexOptions{})
	s.ErrorIs(err, domain.ErrNoFieldName)

	_, err = s.b.EnsureIndex(ctx, "v", domain.IndexOptions{})
	s.NoError(err)
	info, err = s.b.EnsureIndex(ctx, "v", domain.IndexOptions{Reverse: true})
	s.NoError(err)
	s.True(info.Reverse)
	idx, err := s.b.ListIndexes(ctx)
	s.NoError(err)
	s.True(idx["v"].Reverse)

	s.ErrorIs(s.b.DropIndex(ctx, domain.PrimaryIndex), domain.ErrPrimaryIndex)
	s.NoError(s.b.DropIndex(ctx, "missing"))
}

func (s *BucketTestSuite) TestSparseIndex() {
	s.insert(s.b, M{"tag": "a"}, M{"other": 1}, M{"tag": "b"})
	_, err := s.b.EnsureIndex(ctx, "tag", domain.IndexOptions{Sparse: true})
	s.Require().NoError(err)

	idx, ok := s.b.store.Index("tag")
	s.Require().True(ok)
	s.Equal(2, idx.Len())
	n, err := s.b.Count(ctx)
	s.NoError(err)
	s.Equal(int64(3), n)

	docs := s.list(s.b, domain.WithSort("tag", false))
	s.Len(docs, 3)
	s.Nil(docs[0].Get("tag"))
}

func (s *BucketTestSuite) TestDelete() {
	s.insert(s.b, M{"n": 1}, M{"n": 2}, M{"n": 3}, M{"n": 4})
	before := s.list(s.b)
	sub := s.b.Subscribe()
	defer sub.Close()

	n, err := s.b.Delete(ctx, domain.WithFilter(data.Ordered(data.E{Key: "n", Value: op(domain.OpGte, 3)})))
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	after := s.list(s.b)
	s.Equal(before[:2], after)

	batch, err := replication.DecodeBatch(s.receive(sub))
	s.Require().NoError(err)
	s.Len(batch.Records, 2)
	s.Equal(domain.OpDelete, batch.Records[0].Op)

	n, err = s.b.Delete(ctx, where("n", 99))
	s.NoError(err)
	s.Zero(n)
}

func (s *BucketTestSuite) TestTransform() {
	s.insert(s.b, M{"n": 1}, M{"n": 2}, M{"n": 3})
	_, err := s.b.EnsureIndex(ctx, "n", domain.IndexOptions{Unique: true})
	s.Require().NoError(err)
	before := s.list(s.b)

	cur, err := s.b.Transform(ctx)
	s.Require().NoError(err)
	s.Require().True(cur.Next(ctx))
	s.Require().NoError(cur.Advance(ctx, domain.Replace(cur.Current())))

	s.Require().True(cur.Next(ctx))
	s.Require().NoError(cur.Advance(ctx, domain.Delete()))

	s.Require().True(cur.Next(ctx))
	d := cur.Current()
	d.Set("n", int64(10))
	s.Require().NoError(cur.Advance(ctx, domain.Replace(d)))
	s.False(cur.Next(ctx))
	s.NoError(cur.Err())

	after := s.list(s.b)
	s.Require().Len(after, 2)
	s.Equal(before[0], after[0])
	s.Equal(int64(10), after[1].Get("n"))

	n, err := s.b.Count(ctx, where("n", 10))
	s.NoError(err)
	s.Equal(int64(1), n)
	n, err = s.b.Count(ctx, where("n", 2))
	s.NoError(err)
	s.Zero(n)
}

func (s *BucketTestSuite) TestTransformConstraint() {
	s.insert(s.b, M{"n": 1}, M{"n": 2})
	_, err := s.b.EnsureIndex(ctx, "n", domain.IndexOptions{Unique: true})
	s.Require().NoError(err)

	err = s.b.TransformFunc(ctx, func(d domain.Document) (domain.Decision, error) {
		d.Set("n", int64(2))
		return domain.Replace(d), nil
	}, where("n", 1))
	s.ErrorIs(err, domain.ErrConstraintViolated)
	s.Equal([]any{int64(1), int64(2)}, s.field(s.list(s.b), "n"))
}

func (s *BucketTestSuite) TestTransformCannotModifyID() {
	ids := s.insert(s.b, M{"n": 1})
	err := s.b.TransformFunc(ctx, func(d domain.Document) (domain.Decision, error) {
		d.Set("_id", domain.ObjectID{7})
		return domain.Replace(d), nil
	})
	s.ErrorIs(err, domain.ErrCannotModifyID)

	err = s.b.TransformFunc(ctx, func(d domain.Document) (domain.Decision, error) {
		return domain.Replace(data.Ordered(data.E{Key: "m", Value: 2})), nil
	})
	s.NoError(err)
	d, _, err := s.b.Get(ctx, ids[0])
	s.NoError(err)
	s.Equal(int64(2), d.Get("m"))
	s.False(d.Has("n"))
}

func (s *BucketTestSuite) TestTransformSeesConcurrentChanges() {
	ids := s.insert(s.b, M{"n": 1}, M{"n": 2}, M{"n": 3})
	cur, err := s.b.Transform(ctx, domain.WithFilter(data.Ordered(data.E{Key: "n", Value: op(domain.OpLt, 3)})))
	s.Require().NoError(err)
	defer cur.Close()

	s.Require().True(cur.Next(ctx))
	s.Equal(ids[0], cur.Current().ID())

	_, err = s.b.Delete(ctx, where("n", 2))
	s.Require().NoError(err)
	s.insert(s.b, M{"n": 0})

	s.False(cur.Next(ctx))
	s.NoError(cur.Err())
}

func (s *BucketTestSuite) TestTransformCloseDiscards() {
	s.insert(s.b, M{"n": 1})
	cur, err := s.b.Transform(ctx)
	s.Require().NoError(err)
	s.Require().True(cur.Next(ctx))
	cur.Current().Set("n", int64(5))
	s.NoError(cur.Close())
	s.ErrorIs(cur.Advance(ctx, domain.Delete()), domain.ErrCursorClosed)
	s.Equal([]any{int64(1)}, s.field(s.list(s.b), "n"))
}

func (s *BucketTestSuite) TestListSnapshot() {
	s.insert(s.b, M{"n": 1}, M{"n": 2})
	cur, err := s.b.List(ctx)
	s.Require().NoError(err)
	defer cur.Close()

	_, err = s.b.Delete(ctx)
	s.Require().NoError(err)

	count := 0
	for cur.Next() {
		count++
	}
	s.NoError(cur.Err())
	s.Equal(2, count)
	s.Empty(s.list(s.b))
}

func (s *BucketTestSuite) TestConcurrentCursors() {
	for n := range 50 {
		s.insert(s.b, M{"n": n})
	}
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			cur, err := s.b.List(ctx, domain.WithSort("n", true))
			if err != nil {
				return err
			}
			count := 0
			for _, err := range cur.All() {
				if err != nil {
					return err
				}
				count++
			}
			if count != 50 && count != 51 {
				return fmt.Errorf("unexpected count %d", count)
			}
			return nil
		})
	}
	g.Go(func() error {
		_, err := s.b.Insert(ctx, M{"n": 99})
		return err
	})
	s.NoError(g.Wait())
}

func (s *BucketTestSuite) TestPagination() {
	for n := range 10 {
		s.insert(s.b, M{"n": 9 - n})
	}
	full := s.field(s.list(s.b, domain.WithSort("n", false)), "n")
	s.Len(full, 10)

	page := s.field(s.list(s.b, domain.WithSort("n", false), domain.WithSector(3, 4)), "n")
	s.Equal(full[3:7], page)
	s.Empty(s.list(s.b, domain.WithSort("n", false), domain.WithSector(20, 4)))

	_, err := s.b.EnsureIndex(ctx, "n", domain.IndexOptions{})
	s.Require().NoError(err)
	page = s.field(s.list(s.b, domain.WithSort("n", true), domain.WithSector(1, 2)), "n")
	s.Equal([]any{int64(8), int64(7)}, page)
}

func (s *BucketTestSuite) TestProjection() {
	s.insert(s.b, M{"a": 1, "b": 2, "c": 3})
	docs := s.list(s.b, domain.WithProjection("c", "a"))
	s.Equal([]string{"_id", "c", "a"}, keysOf(docs[0]))
	docs = s.list(s.b, domain.WithOmit("b"))
	s.Equal([]string{"a", "c", "_id"}, keysOf(docs[0]))
}

func (s *BucketTestSuite) TestExplain() {
	_, err := s.b.EnsureIndex(ctx, "b", domain.IndexOptions{})
	s.Require().NoError(err)
	_, err = s.b.EnsureIndex(ctx, "c", domain.IndexOptions{})
	s.Require().NoError(err)

	filter := data.Ordered(
		data.E{Key: "a", Value: 1},
		data.E{Key: "c", Value: op(domain.OpGt, 1)},
		data.E{Key: "b", Value: 2},
	)
	plan, err := s.b.Explain(ctx, domain.WithFilter(filter))
	s.NoError(err)
	s.Equal("c", plan.DriveField)
	s.Equal(domain.OpGt, plan.DriveOperator)
	s.False(plan.FullScan)

	plan, err = s.b.Explain(ctx, where("a", 1))
	s.NoError(err)
	s.True(plan.FullScan)

	_, err = s.b.Explain(ctx, where("a", op("$regex", "x")))
	s.ErrorAs(err, new(domain.ErrUnknownOperator))
}

func (s *BucketTestSuite) TestReplication() {
	a := s.open("")
	defer a.Close(ctx)
	sub := a.Subscribe()
	defer sub.Close()

	ids := s.insert(a, M{"n": 1}, M{"n": 2})
	s.insert(a, M{"n": 3})
	_, err := a.Delete(ctx, where("n", 2))
	s.Require().NoError(err)
	s.Require().NoError(a.TransformFunc(ctx, func(d domain.Document) (domain.Decision, error) {
		d.Set("seen", true)
		return domain.Replace(d), nil
	}, where("n", 1)))
	batches := s.drain(sub, 4)

	b := s.open("")
	defer b.Close(ctx)
	for _, batch := range batches {
		s.Require().NoError(b.ApplyBatch(ctx, batch))
	}
	s.Equal(s.list(a), s.list(b))
	applied, err := b.Applied(ctx, a.Source())
	s.NoError(err)
	s.Equal(a.Seq(), applied)

	seq := b.Seq()
	for _, batch := range batches {
		s.Require().NoError(b.ApplyBatch(ctx, batch))
	}
	s.Equal(s.list(a), s.list(b))
	s.Equal(seq, b.Seq())

	d, _, err := b.Get(ctx, ids[0])
	s.NoError(err)
	s.Equal(true, d.Get("seen"))
}

func (s *BucketTestSuite) TestReplicationSequence() {
	sub := s.b.Subscribe()
	defer sub.Close()

	s.insert(s.b, M{"n": 1}, M{"n": 2})
	s.insert(s.b, M{"n": 3})
	var last uint64
	for _, raw := range s.drain(sub, 2) {
		batch, err := replication.DecodeBatch(raw)
		s.Require().NoError(err)
		s.Equal(s.b.Source(), batch.Source)
		for _, r := range batch.Records {
			s.Greater(r.Seq, last)
			last = r.Seq
		}
	}
	s.Equal(uint64(3), last)
}

func (s *BucketTestSuite) TestReplicationChain() {
	a, b, c := s.open(""), s.open(""), s.open("")
	defer a.Close(ctx)
	defer b.Close(ctx)
	defer c.Close(ctx)
	subA, subB := a.Subscribe(), b.Subscribe()
	defer subA.Close()
	defer subB.Close()

	s.insert(a, M{"n": 1})
	s.Require().NoError(b.ApplyBatch(ctx, s.receive(subA)))
	s.Require().NoError(c.ApplyBatch(ctx, s.receive(subB)))
	s.Equal(s.list(a), s.list(c))

	// applying a bucket's own changes back to it is a no-op
	s.insert(a, M{"n": 2})
	raw := s.receive(subA)
	s.Require().NoError(a.ApplyBatch(ctx, raw))
	n, err := a.Count(ctx)
	s.NoError(err)
	s.Equal(int64(2), n)
}

func (s *BucketTestSuite) TestApplyBatchRejection() {
	s.insert(s.b, M{"n": 1})
	before := s.list(s.b)
	seq := s.b.Seq()

	err := s.b.ApplyBatch(ctx, []byte{0x93, 0x01})
	s.ErrorIs(err, domain.ErrReplicationDecode)
	var decodeErr *domain.ReplicationDecodeError
	s.ErrorAs(err, &decodeErr)

	_, err = s.b.EnsureIndex(ctx, "n", domain.IndexOptions{Unique: true})
	s.Require().NoError(err)
	raw, err := replication.EncodeBatch(domain.Batch{
		Source:    "other",
		HighWater: 2,
		Records: []domain.Record{
			{Op: domain.OpInsert, Seq: 1, ID: domain.ObjectID{1}, Doc: data.Ordered(
				data.E{Key: "_id", Value: domain.ObjectID{1}}, data.E{Key: "n", Value: int64(5)},
			)},
			{Op: domain.OpInsert, Seq: 2, ID: domain.ObjectID{2}, Doc: data.Ordered(
				data.E{Key: "_id", Value: domain.ObjectID{2}}, data.E{Key: "n", Value: int64(1)},
			)},
		},
	})
	s.Require().NoError(err)
	s.ErrorIs(s.b.ApplyBatch(ctx, raw), domain.ErrConstraintViolated)

	s.Equal(before, s.list(s.b))
	s.Equal(seq, s.b.Seq())
	applied, err := s.b.Applied(ctx, "other")
	s.NoError(err)
	s.Zero(applied)

	expected := `
# HELP albedo_replication_batches_total Replication batches by outcome.
# TYPE albedo_replication_batches_total counter
albedo_replication_batches_total{bucket="main",outcome="published"} 1
albedo_replication_batches_total{bucket="main",outcome="rejected"} 1
`
	s.NoError(testutil.GatherAndCompare(s.reg, bytes.NewBufferString(expected), metrics.Namespace+"_replication_batches_total"))
}

func (s *BucketTestSuite) TestSnapshotSeed() {
	a := s.open("")
	defer a.Close(ctx)
	s.insert(a, M{"n": 1}, M{"n": 2})
	sub := a.Subscribe()
	defer sub.Close()

	snap, err := a.Snapshot(ctx)
	s.Require().NoError(err)
	b := s.open("")
	defer b.Close(ctx)
	s.Require().NoError(b.ApplyBatch(ctx, snap))
	s.Equal(s.list(a), s.list(b))

	applied, err := b.Applied(ctx, a.Source())
	s.NoError(err)
	s.Equal(a.Seq(), applied)

	s.insert(a, M{"n": 3})
	s.Require().NoError(b.ApplyBatch(ctx, s.receive(sub)))
	s.Equal(s.list(a), s.list(b))
}

func (s *BucketTestSuite) TestReopen() {
	filename := filepath.Join(s.T().TempDir(), "data", "bucket.db")
	a := s.open(filename)
	ids := s.insert(a, M{"n": 1}, M{"n": 2})
	_, err := a.EnsureIndex(ctx, "n", domain.IndexOptions{Unique: true})
	s.Require().NoError(err)
	source, seq := a.Source(), a.Seq()
	s.Require().NoError(a.Close(ctx))

	b := s.open(filename)
	defer b.Close(ctx)
	s.Equal(source, b.Source())
	s.Equal(seq, b.Seq())
	docs := s.list(b)
	s.Require().Len(docs, 2)
	s.Equal(ids[0], docs[0].ID())
	idx, err := b.ListIndexes(ctx)
	s.NoError(err)
	s.True(idx["n"].Unique)
	_, err = b.Insert(ctx, M{"n": 1})
	s.ErrorIs(err, domain.ErrConstraintViolated)
}

func (s *BucketTestSuite) TestCorruptFile() {
	filename := filepath.Join(s.T().TempDir(), "bucket.db")
	s.Require().NoError(os.WriteFile(filename, bytes.Repeat([]byte{0xab}, 1<<16), 0o600))
	_, err := Open(ctx, filename, WithMetrics(nil), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.ErrorIs(err, domain.ErrStorageCorruption)
}

func (s *BucketTestSuite) TestClose() {
	sub := s.b.Subscribe()
	s.insert(s.b, M{"n": 1})
	cur, err := s.b.Transform(ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.b.Close(ctx))

	s.NotNil(s.receive(sub))
	select {
	case _, ok := <-sub.C():
		s.False(ok)
	case <-time.After(time.Second):
		s.Fail("subscription not closed")
	}

	_, err = s.b.Insert(ctx, M{"n": 2})
	s.ErrorIs(err, domain.ErrBucketClosed)
	_, err = s.b.List(ctx)
	s.ErrorIs(err, domain.ErrBucketClosed)
	_, err = s.b.Count(ctx)
	s.ErrorIs(err, domain.ErrBucketClosed)
	s.ErrorIs(s.b.ApplyBatch(ctx, nil), domain.ErrReplicationDecode)
	_, err = s.b.Snapshot(ctx)
	s.ErrorIs(err, domain.ErrBucketClosed)
	s.ErrorIs(s.b.Close(ctx), domain.ErrBucketClosed)

	s.False(cur.Next(ctx))
	s.ErrorIs(cur.Err(), domain.ErrBucketClosed)

	_, ok := <-s.b.Subscribe().C()
	s.False(ok)
}

func (s *BucketTestSuite) TestOpenReportsCreation() {
	filename := filepath.Join(s.T().TempDir(), "bucket.db")
	var out bytes.Buffer
	logger := WithLogger(slog.New(slog.NewTextHandler(&out, nil)))

	a := s.open(filename, logger)
	s.Contains(out.String(), `msg="bucket created"`)
	s.Require().NoError(a.Close(ctx))

	out.Reset()
	b := s.open(filename, logger)
	defer b.Close(ctx)
	s.Contains(out.String(), `msg="bucket opened"`)
	s.NotContains(out.String(), "bucket created")
}

type brokenStorage struct {
	domain.Storage
	err error
}

func (b brokenStorage) Exists(string) (bool, error) {
	return false, b.err
}

func (s *BucketTestSuite) TestOpenStorageError() {
	boom := errors.New("stat failed")
	filename := filepath.Join(s.T().TempDir(), "bucket.db")
	_, err := Open(ctx, filename,
		WithStorage(brokenStorage{err: boom}),
		WithMetrics(nil),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.ErrorIs(err, boom)
	_, err = os.Stat(filename)
	s.True(os.IsNotExist(err))
}

func (s *BucketTestSuite) TestDrop() {
	filename := filepath.Join(s.T().TempDir(), "bucket.db")
	a := s.open(filename)
	sub := a.Subscribe()
	s.insert(a, M{"n": 1}, M{"n": 2})
	_, err := a.EnsureIndex(ctx, "n", domain.IndexOptions{Unique: true})
	s.Require().NoError(err)
	source := a.Source()

	s.Require().NoError(a.Drop(ctx))
	_, err = os.Stat(filename)
	s.True(os.IsNotExist(err))
	s.ErrorIs(a.Close(ctx), domain.ErrBucketClosed)
	s.ErrorIs(a.Drop(ctx), domain.ErrBucketClosed)
	_, err = a.Count(ctx)
	s.ErrorIs(err, domain.ErrBucketClosed)

	s.drain(sub, 1)
	_, ok := <-sub.C()
	s.False(ok)

	b := s.open(filename)
	defer b.Close(ctx)
	n, err := b.Count(ctx)
	s.NoError(err)
	s.Zero(n)
	s.Zero(b.Seq())
	s.NotEqual(source, b.Source())
	idx, err := b.ListIndexes(ctx)
	s.NoError(err)
	s.Len(idx, 1)
	s.Contains(idx, domain.PrimaryIndex)
}

func (s *BucketTestSuite) TestDropInMemory() {
	s.insert(s.b, M{"n": 1})
	s.Require().NoError(s.b.Drop(ctx))
	_, err := s.b.Insert(ctx, M{"n": 2})
	s.ErrorIs(err, domain.ErrBucketClosed)

	expected := `
# HELP albedo_documents Documents currently stored.
# TYPE albedo_documents gauge
albedo_documents{bucket="main"} 0
`
	s.NoError(testutil.GatherAndCompare(s.reg, bytes.NewBufferString(expected), metrics.Namespace+"_documents"))
}

func (s *BucketTestSuite) TestCanceledContext() {
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err := s.b.Insert(cctx, M{"n": 1})
	s.ErrorIs(err, context.Canceled)
	n, err := s.b.Count(ctx)
	s.NoError(err)
	s.Zero(n)
}

func (s *BucketTestSuite) TestMetrics() {
	s.insert(s.b, M{"n": 1}, M{"n": 2})
	_, err := s.b.Insert(ctx, M{"_id": 1})
	s.Error(err)
	cur, err := s.b.List(ctx)
	s.Require().NoError(err)

	n, err := testutil.GatherAndCount(s.reg, metrics.Namespace+"_open_cursors")
	s.NoError(err)
	s.Equal(1, n)

	expected := `
# HELP albedo_documents Documents currently stored.
# TYPE albedo_documents gauge
albedo_documents{bucket="main"} 2
`
	s.NoError(testutil.GatherAndCompare(s.reg, bytes.NewBufferString(expected), metrics.Namespace+"_documents"))
	s.NoError(cur.Close())

	expected = `
# HELP albedo_open_cursors Cursors not yet closed, by kind.
# TYPE albedo_open_cursors gauge
albedo_open_cursors{bucket="main",kind="list"} 0
`
	s.NoError(testutil.GatherAndCompare(s.reg, bytes.NewBufferString(expected), metrics.Namespace+"_open_cursors"))
}

func TestBucketTestSuite(t *testing.T) {
	suite.Run(t, new(BucketTestSuite))
}
