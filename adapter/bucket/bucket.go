// Package bucket contains the default [domain.Bucket] implementation. It ties
// the in-memory store, the persistence layer, the query engine, both cursor
// kinds and the replication log together behind a single writer lock.
package bucket

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/cursor"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/data"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/deserializer"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/hasher"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/idgenerator"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/index"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/persistence"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/projector"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/querier"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/replication"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/serializer"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/storage"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/store"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/timegetter"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
	"github.com/vinicius-lino-figueiredo/albedo/metrics"
	"github.com/vinicius-lino-figueiredo/albedo/pkg/ctxsync"
)

// Default permissions of the data file and of the directories created for it.
const (
	DefaultDirMode  os.FileMode = 0o755
	DefaultFileMode os.FileMode = 0o644
)

// Keys of the meta records kept next to the documents.
const (
	metaSource  = "source"
	metaSeq     = "seq"
	metaApplied = "applied:"
)

var _ domain.Bucket = (*Bucket)(nil)

// Bucket implements domain.Bucket.
type Bucket struct {
	name           string
	filename       string
	inMemoryOnly   bool
	fileMode       os.FileMode
	dirMode        os.FileMode
	timeout        time.Duration
	noSync         bool
	executor       *ctxsync.Mutex
	closed         atomic.Bool
	persistence    domain.Persistence
	storage        domain.Storage
	serializer     domain.Serializer
	deserializer   domain.Deserializer
	store          *store.Store
	querier        *querier.Querier
	matcher        domain.Matcher
	comparer       domain.Comparer
	fieldNavigator domain.FieldNavigator
	projector      domain.Projector
	decoder        domain.Decoder
	cursorFactory  domain.CursorFactory
	idGenerator    domain.IDGenerator
	timeGetter     domain.TimeGetter
	randomReader   io.Reader
	hasher         domain.Hasher
	log            *replication.Log
	applied        map[string]uint64
	logger         *slog.Logger
	collectors     *metrics.Metrics
	metrics        *metrics.Bucket
}

// Open opens the bucket stored in filename, creating it if needed. An empty
// filename or [persistence.InMemory] opens a bucket without a data file.
func Open(ctx context.Context, filename string, options ...Option) (*Bucket, error) {
	b := &Bucket{
		filename:     filename,
		fileMode:     DefaultFileMode,
		dirMode:      DefaultDirMode,
		timeout:      persistence.DefaultTimeout,
		executor:     ctxsync.NewMutex(),
		randomReader: rand.Reader,
		collectors:   metrics.Default,
		applied:      make(map[string]uint64),
	}
	for _, option := range options {
		option(b)
	}
	if err := b.setDefaults(); err != nil {
		return nil, err
	}

	var created bool
	if b.onDisk() {
		exists, err := b.storage.Exists(b.filename)
		if err != nil {
			b.openFailed(ctx, err)
			return nil, err
		}
		created = !exists
	}

	if b.persistence == nil {
		p, err := persistence.NewPersistence(
			persistence.WithFilename(b.filename),
			persistence.WithInMemoryOnly(b.inMemoryOnly),
			persistence.WithFileMode(b.fileMode),
			persistence.WithDirMode(b.dirMode),
			persistence.WithTimeout(b.timeout),
			persistence.WithNoSync(b.noSync),
			persistence.WithSerializer(b.serializer),
			persistence.WithDeserializer(b.deserializer),
			persistence.WithStorage(b.storage),
		)
		if err != nil {
			b.openFailed(ctx, err)
			return nil, err
		}
		b.persistence = p
	}

	if err := b.load(ctx); err != nil {
		b.openFailed(ctx, err)
		return nil, errors.Join(err, b.persistence.Close())
	}

	msg := "bucket opened"
	if created {
		msg = "bucket created"
	}
	b.metrics.SetDocuments(b.store.Len())
	b.logger.LogAttrs(ctx, slog.LevelInfo, msg,
		slog.String("bucket", b.name),
		slog.String("source", b.log.Source()),
		slog.Int("documents", b.store.Len()),
		slog.Int("indexes", len(b.store.Indexes().ListIndexes())),
		slog.Uint64("seq", b.log.Seq()),
	)
	return b, nil
}

func (b *Bucket) setDefaults() error {
	if b.filename == persistence.InMemory {
		b.inMemoryOnly = true
	}
	if b.name == "" {
		b.name = "memory"
		if b.filename != "" && b.filename != persistence.InMemory {
			b.name = strings.TrimSuffix(filepath.Base(b.filename), filepath.Ext(b.filename))
		}
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.metrics = b.collectors.Bucket(b.name)
	if b.comparer == nil {
		b.comparer = comparer.NewComparer()
	}
	if b.fieldNavigator == nil {
		b.fieldNavigator = fieldnavigator.NewFieldNavigator()
	}
	if b.matcher == nil {
		b.matcher = matcher.NewMatcher(
			matcher.WithComparer(b.comparer),
			matcher.WithFieldNavigator(b.fieldNavigator),
		)
	}
	if b.projector == nil {
		b.projector = projector.NewProjector(projector.WithFieldNavigator(b.fieldNavigator))
	}
	if b.decoder == nil {
		b.decoder = decoder.NewDecoder()
	}
	if b.cursorFactory == nil {
		b.cursorFactory = cursor.NewCursor
	}
	if b.serializer == nil {
		b.serializer = serializer.NewSerializer()
	}
	if b.deserializer == nil {
		b.deserializer = deserializer.NewDeserializer()
	}
	if b.storage == nil {
		b.storage = storage.NewStorage()
	}
	if b.hasher == nil {
		b.hasher = hasher.NewHasher()
	}
	if b.timeGetter == nil {
		b.timeGetter = timegetter.NewTimeGetter()
	}
	if b.idGenerator == nil {
		gen, err := idgenerator.NewIDGenerator(
			idgenerator.WithReader(b.randomReader),
			idgenerator.WithTimeGetter(b.timeGetter),
		)
		if err != nil {
			return err
		}
		b.idGenerator = gen
	}
	b.querier = querier.NewQuerier(
		querier.WithMatcher(b.matcher),
		querier.WithComparer(b.comparer),
		querier.WithFieldNavigator(b.fieldNavigator),
	)
	return nil
}

// onDisk reports whether the bucket has a data file.
func (b *Bucket) onDisk() bool {
	return !b.inMemoryOnly && b.filename != "" && b.filename != persistence.InMemory
}

func (b *Bucket) openFailed(ctx context.Context, err error) {
	level := slog.LevelError
	if !errors.Is(err, domain.ErrStorageCorruption) {
		level = slog.LevelWarn
	}
	b.logger.LogAttrs(ctx, level, "cannot open bucket",
		slog.String("bucket", b.name),
		slog.String("filename", b.filename),
		slog.Any("error", err),
	)
}

func (b *Bucket) load(ctx context.Context) error {
	state, err := b.persistence.Load(ctx)
	if err != nil {
		return err
	}

	st, err := store.NewStore(store.WithIndexOptions(
		index.WithComparer(b.comparer),
		index.WithFieldNavigator(b.fieldNavigator),
	))
	if err != nil {
		return err
	}
	if err := st.Load(state); err != nil {
		return &domain.StorageCorruptionError{Path: b.filename, Err: err}
	}
	b.store = st

	var seq uint64
	if v, ok := state.Meta[metaSeq]; ok {
		if seq, err = decodeUint(v); err != nil {
			return &domain.StorageCorruptionError{Path: b.filename, Key: metaSeq, Err: err}
		}
	}
	for k, v := range state.Meta {
		source, ok := strings.CutPrefix(k, metaApplied)
		if !ok {
			continue
		}
		mark, err := decodeUint(v)
		if err != nil {
			return &domain.StorageCorruptionError{Path: b.filename, Key: k, Err: err}
		}
		b.applied[source] = mark
	}

	source := string(state.Meta[metaSource])
	b.log = replication.NewLog(source, seq)
	if source == "" {
		return b.persistence.Commit(ctx, domain.Commit{
			Meta: map[string][]byte{metaSource: []byte(b.log.Source())},
		})
	}
	return nil
}

func encodeUint(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func decodeUint(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("expected 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// Name returns the name the bucket reports in logs and metrics.
func (b *Bucket) Name() string {
	return b.name
}

// Source returns the replication identity of the bucket.
func (b *Bucket) Source() string {
	return b.log.Source()
}

// Seq returns the sequence number of the last committed change.
func (b *Bucket) Seq() uint64 {
	return b.log.Seq()
}

func (b *Bucket) lock(ctx context.Context) error {
	if b.closed.Load() {
		return domain.ErrBucketClosed
	}
	if err := b.executor.LockWithContext(ctx); err != nil {
		return err
	}
	if b.closed.Load() {
		b.executor.Unlock()
		return domain.ErrBucketClosed
	}
	return nil
}

// commit persists the changes of t and publishes its records. On failure t
// is rolled back. Must be called with the lock held.
func (b *Bucket) commit(ctx context.Context, t *store.Txn) error {
	records := t.Records()
	var batch domain.Batch
	if len(records) > 0 {
		batch = b.log.Stamp(records)
		t.SetMeta(metaSeq, encodeUint(batch.HighWater))
	}
	if err := b.persistence.Commit(ctx, t.Changes()); err != nil {
		return rollback(t, err)
	}
	b.metrics.SetDocuments(b.store.Len())
	if len(records) == 0 {
		return nil
	}
	if err := b.log.Publish(batch); err != nil {
		b.logger.LogAttrs(ctx, slog.LevelError, "cannot publish replication batch",
			slog.String("bucket", b.name),
			slog.Uint64("seq", batch.HighWater),
			slog.Any("error", err),
		)
		return nil
	}
	b.metrics.Batch(metrics.BatchPublished)
	return nil
}

func rollback(t *store.Txn, err error) error {
	if rbErr := t.Rollback(); rbErr != nil {
		return errors.Join(err, rbErr)
	}
	return err
}

// prepare turns v into a document ready to be inserted: a copy holding only
// values of the document model and a valid _id.
func (b *Bucket) prepare(ctx context.Context, v any) (domain.Document, error) {
	var (
		doc domain.Document
		err error
	)
	if raw, ok := v.([]byte); ok {
		doc, err = b.deserializer.Deserialize(ctx, raw)
	} else {
		doc, err = data.NewDocument(v)
	}
	if err != nil {
		return nil, err
	}
	if err := data.ValidateFieldNames(doc); err != nil {
		return nil, err
	}
	if !doc.Has("_id") {
		doc.Set("_id", b.idGenerator.GenerateID())
		return doc, nil
	}
	id, err := toObjectID(doc.Get("_id"))
	if err != nil {
		return nil, err
	}
	doc.Set("_id", id)
	return doc, nil
}

func toObjectID(v any) (domain.ObjectID, error) {
	switch t := v.(type) {
	case domain.ObjectID:
		if t.IsZero() {
			return t, fmt.Errorf("%w: zero _id", domain.ErrInvalidID)
		}
		return t, nil
	case string:
		return domain.ParseObjectID(t)
	}
	return domain.NilObjectID, fmt.Errorf("%w: _id of type %T", domain.ErrInvalidID, v)
}

// Insert implements [domain.Bucket].
func (b *Bucket) Insert(ctx context.Context, docs ...any) (ids []domain.ObjectID, err error) {
	defer func() { b.metrics.Observe(metrics.OpInsert, err) }()

	prepared := make([]domain.Document, len(docs))
	for n, d := range docs {
		if prepared[n], err = b.prepare(ctx, d); err != nil {
			return nil, err
		}
	}

	if err := b.lock(ctx); err != nil {
		return nil, err
	}
	defer b.executor.Unlock()

	t := b.store.Begin()
	ids = make([]domain.ObjectID, len(prepared))
	for n, d := range prepared {
		if err := t.Insert(d); err != nil {
			return nil, rollback(t, err)
		}
		ids[n] = d.ID()
	}
	if err := b.commit(ctx, t); err != nil {
		return nil, err
	}
	return ids, nil
}

// Get implements [domain.Bucket].
func (b *Bucket) Get(ctx context.Context, id domain.ObjectID) (doc domain.Document, ok bool, err error) {
	defer func() { b.metrics.Observe(metrics.OpGet, err) }()

	if err := b.lock(ctx); err != nil {
		return nil, false, err
	}
	defer b.executor.Unlock()

	if doc, ok = b.store.Get(id); !ok {
		return nil, false, nil
	}
	return doc.Clone(), true, nil
}

// Delete implements [domain.Bucket]. Every removed document is carried by a
// single replication batch.
func (b *Bucket) Delete(ctx context.Context, opts ...domain.QueryOption) (n int64, err error) {
	defer func() { b.metrics.Observe(metrics.OpDelete, err) }()

	if err := b.lock(ctx); err != nil {
		return 0, err
	}
	defer b.executor.Unlock()

	docs, _, err := b.querier.Find(ctx, b.store, domain.NewQuery(opts...))
	if err != nil {
		return 0, err
	}
	t := b.store.Begin()
	for _, d := range docs {
		if _, err := t.Delete(d.ID()); err != nil {
			return 0, rollback(t, err)
		}
	}
	if err := b.commit(ctx, t); err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// Count implements [domain.Bucket].
func (b *Bucket) Count(ctx context.Context, opts ...domain.QueryOption) (n int64, err error) {
	defer func() { b.metrics.Observe(metrics.OpCount, err) }()

	if err := b.lock(ctx); err != nil {
		return 0, err
	}
	defer b.executor.Unlock()

	docs, _, err := b.querier.Find(ctx, b.store, domain.NewQuery(opts...))
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// List implements [domain.Bucket]. The lock is only held while the result
// set is resolved, so the cursor observes no later change.
func (b *Bucket) List(ctx context.Context, opts ...domain.QueryOption) (cur domain.Cursor, err error) {
	defer func() { b.metrics.Observe(metrics.OpList, err) }()

	query := domain.NewQuery(opts...)
	docs, err := b.find(ctx, query)
	if err != nil {
		return nil, err
	}

	done := b.metrics.CursorOpened(metrics.CursorList)
	cur, err = b.cursorFactory(ctx, docs,
		domain.WithCursorDecoder(b.decoder),
		domain.WithCursorProjection(b.projector, query.Projection),
		domain.WithCursorOnClose(done),
	)
	if err != nil {
		done()
		return nil, err
	}
	return cur, nil
}

func (b *Bucket) find(ctx context.Context, query domain.Query) ([]domain.Document, error) {
	if err := b.lock(ctx); err != nil {
		return nil, err
	}
	defer b.executor.Unlock()

	docs, _, err := b.querier.Find(ctx, b.store, query)
	return docs, err
}

// Explain implements [domain.Bucket].
func (b *Bucket) Explain(ctx context.Context, opts ...domain.QueryOption) (domain.Plan, error) {
	if err := b.lock(ctx); err != nil {
		return domain.Plan{}, err
	}
	defer b.executor.Unlock()

	c, err := b.querier.Plan(b.store, domain.NewQuery(opts...))
	if err != nil {
		return domain.Plan{}, err
	}
	return c.Plan, nil
}

// EnsureIndex implements [domain.Bucket]. Ensuring an index that already
// exists with the same flags changes nothing; different flags rebuild it.
func (b *Bucket) EnsureIndex(ctx context.Context, field string, opts domain.IndexOptions) (info domain.IndexInfo, err error) {
	defer func() { b.metrics.Observe(metrics.OpEnsureIndex, err) }()

	if err := b.lock(ctx); err != nil {
		return info, err
	}
	defer b.executor.Unlock()

	if field == domain.PrimaryIndex {
		return b.store.Indexes().Primary().Info(), nil
	}
	info = domain.IndexInfo{
		Name:    field,
		Unique:  opts.Unique,
		Sparse:  opts.Sparse,
		Reverse: opts.Reverse,
	}
	if idx, ok := b.store.Index(field); ok && idx.Info() == info {
		return info, nil
	}

	start := time.Now()
	t := b.store.Begin()
	if err := t.EnsureIndex(info); err != nil {
		return domain.IndexInfo{}, rollback(t, err)
	}
	if err := b.commit(ctx, t); err != nil {
		return domain.IndexInfo{}, err
	}
	b.logger.LogAttrs(ctx, slog.LevelInfo, "index built",
		slog.String("bucket", b.name),
		slog.String("index", field),
		slog.Bool("unique", info.Unique),
		slog.Bool("sparse", info.Sparse),
		slog.Bool("reverse", info.Reverse),
		slog.Duration("took", time.Since(start)),
	)
	return info, nil
}

// DropIndex implements [domain.Bucket]. Dropping an index that does not
// exist succeeds.
func (b *Bucket) DropIndex(ctx context.Context, field string) (err error) {
	defer func() { b.metrics.Observe(metrics.OpDropIndex, err) }()

	if err := b.lock(ctx); err != nil {
		return err
	}
	defer b.executor.Unlock()

	t := b.store.Begin()
	dropped, err := t.DropIndex(field)
	if err != nil || !dropped {
		return err
	}
	if err := b.commit(ctx, t); err != nil {
		return err
	}
	b.logger.LogAttrs(ctx, slog.LevelInfo, "index dropped",
		slog.String("bucket", b.name),
		slog.String("index", field),
	)
	return nil
}

// ListIndexes implements [domain.Bucket].
func (b *Bucket) ListIndexes(ctx context.Context) (map[string]domain.IndexInfo, error) {
	if err := b.lock(ctx); err != nil {
		return nil, err
	}
	defer b.executor.Unlock()
	return b.store.Indexes().ListIndexes(), nil
}

// Close implements [domain.Bucket]. It waits for the running mutation, ends
// every subscription and releases the data file.
func (b *Bucket) Close(ctx context.Context) error {
	if err := b.lock(ctx); err != nil {
		return err
	}
	defer b.executor.Unlock()

	b.closed.Store(true)
	b.log.Close()
	err := b.persistence.Close()
	b.logger.LogAttrs(ctx, slog.LevelInfo, "bucket closed",
		slog.String("bucket", b.name),
		slog.Uint64("seq", b.log.Seq()),
	)
	return err
}

// Drop implements [domain.Bucket]. Every document, index and replication mark
// is deleted and the data file is removed. The bucket is closed afterwards,
// so a later Close returns [domain.ErrBucketClosed].
func (b *Bucket) Drop(ctx context.Context) (err error) {
	defer func() { b.metrics.Observe(metrics.OpDrop, err) }()

	if err := b.lock(ctx); err != nil {
		return err
	}
	defer b.executor.Unlock()

	if err := b.persistence.Drop(ctx); err != nil {
		return err
	}
	b.closed.Store(true)
	b.log.Close()
	err = b.persistence.Close()
	if b.onDisk() {
		err = errors.Join(err, b.storage.Remove(b.filename))
	}
	b.metrics.SetDocuments(0)
	b.logger.LogAttrs(ctx, slog.LevelInfo, "bucket dropped",
		slog.String("bucket", b.name),
		slog.String("filename", b.filename),
	)
	return err
}
