package bucket

import (
	"context"
	"log/slog"
	"slices"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/data"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/replication"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/store"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
	"github.com/vinicius-lino-figueiredo/albedo/metrics"
)

// Subscribe implements [domain.Bucket]. Every batch committed from now on is
// delivered in order. The channel is closed when the bucket closes.
func (b *Bucket) Subscribe() domain.Subscription {
	return b.log.Subscribe()
}

// Applied returns the highest sequence number applied from source.
func (b *Bucket) Applied(ctx context.Context, source string) (uint64, error) {
	if err := b.lock(ctx); err != nil {
		return 0, err
	}
	defer b.executor.Unlock()
	return b.applied[source], nil
}

// ApplyBatch implements [domain.Bucket]. The batch is decoded completely
// before anything changes. Records already applied from the same source and
// documents whose content did not change are skipped. Either every remaining
// record is applied or none is. Applied changes are published again with
// this bucket's own sequence numbers.
func (b *Bucket) ApplyBatch(ctx context.Context, raw []byte) (err error) {
	defer func() { b.metrics.Observe(metrics.OpApplyBatch, err) }()

	batch, err := replication.DecodeBatch(raw)
	if err != nil {
		b.metrics.Batch(metrics.BatchRejected)
		b.logger.LogAttrs(ctx, slog.LevelWarn, "replication batch rejected",
			slog.String("bucket", b.name),
			slog.Any("error", err),
		)
		return err
	}
	for _, r := range batch.Records {
		if r.Doc == nil {
			continue
		}
		if err := data.ValidateFieldNames(r.Doc); err != nil {
			b.metrics.Batch(metrics.BatchRejected)
			return err
		}
	}

	if err := b.lock(ctx); err != nil {
		return err
	}
	defer b.executor.Unlock()

	if batch.Source == b.log.Source() {
		return nil
	}

	mark := b.applied[batch.Source]
	t := b.store.Begin()
	var skipped int
	for _, r := range batch.Records {
		if !batch.Snapshot && r.Seq <= mark {
			skipped++
			continue
		}
		changed, err := b.applyRecord(t, r)
		if err != nil {
			return rollback(t, err)
		}
		if !changed {
			skipped++
		}
	}
	newMark := max(mark, batch.HighWater)
	if newMark != mark {
		t.SetMeta(metaApplied+batch.Source, encodeUint(newMark))
	}
	if err := b.commit(ctx, t); err != nil {
		return err
	}
	b.applied[batch.Source] = newMark
	b.metrics.Batch(metrics.BatchApplied)
	b.logger.LogAttrs(ctx, slog.LevelDebug, "replication batch applied",
		slog.String("bucket", b.name),
		slog.String("source", batch.Source),
		slog.Bool("snapshot", batch.Snapshot),
		slog.Int("records", len(batch.Records)),
		slog.Int("skipped", skipped),
		slog.Uint64("high_water", newMark),
	)
	return nil
}

func (b *Bucket) applyRecord(t *store.Txn, r domain.Record) (bool, error) {
	if r.Op == domain.OpDelete {
		return t.Delete(r.ID)
	}
	if current, exists := b.store.Get(r.ID); exists {
		same, err := b.sameContent(current, r.Doc)
		if err != nil || same {
			return false, err
		}
	}
	return true, t.Upsert(r.Doc)
}

func (b *Bucket) sameContent(a, c domain.Document) (bool, error) {
	ha, err := b.hasher.Hash(a)
	if err != nil {
		return false, err
	}
	hc, err := b.hasher.Hash(c)
	if err != nil {
		return false, err
	}
	return ha == hc, nil
}

// Snapshot implements [domain.Bucket]. The batch holds every document as an
// unsequenced insert and the sequence number of the last committed change,
// so a replica seeded with it can keep applying this bucket's batches.
func (b *Bucket) Snapshot(ctx context.Context) (snap []byte, err error) {
	defer func() { b.metrics.Observe(metrics.OpSnapshot, err) }()

	if err := b.lock(ctx); err != nil {
		return nil, err
	}
	defer b.executor.Unlock()

	return b.log.Snapshot(slices.Collect(b.store.Scan()))
}
