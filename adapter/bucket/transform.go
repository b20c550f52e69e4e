package bucket

import (
	"context"
	"fmt"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/data"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/transform"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
	"github.com/vinicius-lino-figueiredo/albedo/metrics"
)

// Transform implements [domain.Bucket]. Candidates are resolved now, but each
// one is read again before it is produced and every decision is committed on
// its own, so the cursor never holds the lock while the caller decides.
func (b *Bucket) Transform(ctx context.Context, opts ...domain.QueryOption) (cur domain.TransformCursor, err error) {
	defer func() { b.metrics.Observe(metrics.OpTransform, err) }()

	query := domain.NewQuery(opts...)
	filter, ids, err := b.resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	done := b.metrics.CursorOpened(metrics.CursorTransform)
	return transform.NewCursor(backend{b}, filter, ids, transform.WithOnClose(done)), nil
}

func (b *Bucket) resolve(ctx context.Context, query domain.Query) (domain.Filter, []domain.ObjectID, error) {
	if err := b.lock(ctx); err != nil {
		return nil, nil, err
	}
	defer b.executor.Unlock()

	c, err := b.querier.Plan(b.store, query)
	if err != nil {
		return nil, nil, err
	}
	docs, err := b.querier.Execute(ctx, b.store, c)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]domain.ObjectID, len(docs))
	for n, d := range docs {
		ids[n] = d.ID()
	}
	return c.Filter, ids, nil
}

// TransformFunc implements [domain.Bucket]. It stops at the first error
// returned by fn.
func (b *Bucket) TransformFunc(ctx context.Context, fn func(domain.Document) (domain.Decision, error), opts ...domain.QueryOption) error {
	cur, err := b.Transform(ctx, opts...)
	if err != nil {
		return err
	}
	defer cur.Close()

	for cur.Next(ctx) {
		d, err := fn(cur.Current())
		if err != nil {
			return err
		}
		if err := cur.Advance(ctx, d); err != nil {
			return err
		}
	}
	return cur.Err()
}

// backend implements [transform.Backend].
type backend struct {
	b *Bucket
}

func (t backend) Fetch(ctx context.Context, id domain.ObjectID) (domain.Document, bool, error) {
	b := t.b
	if err := b.lock(ctx); err != nil {
		return nil, false, err
	}
	defer b.executor.Unlock()

	doc, ok := b.store.Get(id)
	return doc, ok, nil
}

func (t backend) Replace(ctx context.Context, id domain.ObjectID, doc domain.Document) error {
	b := t.b
	replacement, err := data.NewDocument(doc)
	if err != nil {
		return err
	}
	if err := data.ValidateFieldNames(replacement); err != nil {
		return err
	}
	if replacement.Has("_id") {
		newID, err := toObjectID(replacement.Get("_id"))
		if err != nil {
			return err
		}
		if newID != id {
			return fmt.Errorf("%w: %s replaced by %s", domain.ErrCannotModifyID, id, newID)
		}
	}
	replacement.Set("_id", id)

	if err := b.lock(ctx); err != nil {
		return err
	}
	defer b.executor.Unlock()

	tx := b.store.Begin()
	if err := tx.Update(replacement); err != nil {
		return rollback(tx, err)
	}
	return b.commit(ctx, tx)
}

func (t backend) Remove(ctx context.Context, id domain.ObjectID) error {
	b := t.b
	if err := b.lock(ctx); err != nil {
		return err
	}
	defer b.executor.Unlock()

	tx := b.store.Begin()
	if _, err := tx.Delete(id); err != nil {
		return rollback(tx, err)
	}
	return b.commit(ctx, tx)
}
