// Package store holds the documents of a bucket in memory together with their
// indexes. Every change goes through a [Txn], which can be rolled back.
package store

import (
	"errors"
	"fmt"
	"iter"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/index"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// Store is the in-memory document store. Reads of single documents are safe
// for concurrent use. Everything else must be serialized by the caller.
type Store struct {
	docs    *xsync.MapOf[domain.ObjectID, domain.Document]
	primary domain.Index
	indexes *index.Manager
}

// NewStore returns an empty store.
func NewStore(opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	primary, err := index.NewIndex(domain.IndexInfo{Name: domain.PrimaryIndex, Unique: true}, o.indexOptions...)
	if err != nil {
		return nil, err
	}
	return &Store{
		docs:    xsync.NewMapOf[domain.ObjectID, domain.Document](),
		primary: primary,
		indexes: index.NewManager(primary, o.indexOptions...),
	}, nil
}

// Indexes returns the index manager of the store.
func (s *Store) Indexes() *index.Manager {
	return s.indexes
}

// Index returns the index over field, if any.
func (s *Store) Index(field string) (domain.Index, bool) {
	return s.indexes.Index(field)
}

// Get returns the stored document with the given id. The returned document
// must not be modified.
func (s *Store) Get(id domain.ObjectID) (domain.Document, bool) {
	return s.docs.Load(id)
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	return s.docs.Size()
}

// Scan yields every document in _id order.
func (s *Store) Scan() iter.Seq[domain.Document] {
	return s.Resolve(s.primary.All())
}

// Resolve yields the documents with the given ids, in the same order,
// skipping ids that are not stored.
func (s *Store) Resolve(ids []domain.ObjectID) iter.Seq[domain.Document] {
	return func(yield func(domain.Document) bool) {
		for _, id := range ids {
			d, ok := s.docs.Load(id)
			if !ok {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// Load replaces the contents of the store with a persisted state.
func (s *Store) Load(state domain.State) error {
	docs := xsync.NewMapOf[domain.ObjectID, domain.Document]()
	for _, d := range state.Documents {
		if _, dup := docs.LoadOrStore(d.ID(), d); dup {
			return fmt.Errorf("%w: document %s", domain.ErrConstraintViolated, d.ID())
		}
	}
	all := func(yield func(domain.Document) bool) {
		docs.Range(func(_ domain.ObjectID, d domain.Document) bool {
			return yield(d)
		})
	}
	if err := s.primary.Reset(all); err != nil {
		return err
	}
	for _, info := range state.Indexes {
		if info.Name == domain.PrimaryIndex {
			continue
		}
		if _, err := s.indexes.EnsureIndex(info, all); err != nil {
			return fmt.Errorf("index %q: %w", info.Name, err)
		}
	}
	s.docs = docs
	return nil
}

// Begin starts a transaction.
func (s *Store) Begin() *Txn {
	return &Txn{
		store:   s,
		touched: make(map[domain.ObjectID]struct{}),
		indexes: make(map[string]*domain.IndexInfo),
		meta:    make(map[string][]byte),
	}
}

// Txn is a set of changes to a [Store] that is either committed or rolled
// back as a whole. Changes are visible in the store as soon as they are made.
type Txn struct {
	store   *Store
	undo    []func() error
	order   []domain.ObjectID
	touched map[domain.ObjectID]struct{}
	records []domain.Record
	indexes map[string]*domain.IndexInfo
	idxList []string
	meta    map[string][]byte
}

func (t *Txn) touch(id domain.ObjectID) {
	if _, ok := t.touched[id]; ok {
		return
	}
	t.touched[id] = struct{}{}
	t.order = append(t.order, id)
}

// Insert stores a new document.
func (t *Txn) Insert(doc domain.Document) error {
	s := t.store
	id := doc.ID()
	if _, exists := s.docs.Load(id); exists {
		return fmt.Errorf("%w: duplicate _id %s", domain.ErrConstraintViolated, id)
	}
	if err := s.indexes.OnInsert(doc); err != nil {
		return err
	}
	if err := s.primary.Insert(doc); err != nil {
		return errors.Join(err, s.indexes.OnDelete(doc))
	}
	s.docs.Store(id, doc)
	t.touch(id)
	t.records = append(t.records, domain.Record{Op: domain.OpInsert, ID: id, Doc: doc})
	t.undo = append(t.undo, func() error {
		s.docs.Delete(id)
		return errors.Join(s.primary.Remove(doc), s.indexes.OnDelete(doc))
	})
	return nil
}

// Update replaces the document with the same _id as doc.
func (t *Txn) Update(doc domain.Document) error {
	s := t.store
	id := doc.ID()
	old, exists := s.docs.Load(id)
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err := s.indexes.OnUpdate(old, doc); err != nil {
		return err
	}
	s.docs.Store(id, doc)
	t.touch(id)
	t.records = append(t.records, domain.Record{Op: domain.OpUpdate, ID: id, Doc: doc})
	t.undo = append(t.undo, func() error {
		s.docs.Store(id, old)
		return s.indexes.OnUpdate(doc, old)
	})
	return nil
}

// Upsert inserts doc or replaces the stored document with the same _id.
func (t *Txn) Upsert(doc domain.Document) error {
	if _, exists := t.store.docs.Load(doc.ID()); exists {
		return t.Update(doc)
	}
	return t.Insert(doc)
}

// Delete removes the document with the given id. It returns false if no such
// document is stored.
func (t *Txn) Delete(id domain.ObjectID) (bool, error) {
	s := t.store
	old, exists := s.docs.Load(id)
	if !exists {
		return false, nil
	}
	if err := s.indexes.OnDelete(old); err != nil {
		return false, err
	}
	if err := s.primary.Remove(old); err != nil {
		return false, errors.Join(err, s.indexes.OnInsert(old))
	}
	s.docs.Delete(id)
	t.touch(id)
	t.records = append(t.records, domain.Record{Op: domain.OpDelete, ID: id})
	t.undo = append(t.undo, func() error {
		s.docs.Store(id, old)
		return errors.Join(s.primary.Insert(old), s.indexes.OnInsert(old))
	})
	return true, nil
}

// EnsureIndex builds and installs the index described by info.
func (t *Txn) EnsureIndex(info domain.IndexInfo) error {
	s := t.store
	prev, err := s.indexes.EnsureIndex(info, s.Scan())
	if err != nil {
		return err
	}
	t.noteIndex(info.Name, &info)
	t.undo = append(t.undo, func() error {
		s.indexes.Restore(info.Name, prev)
		return nil
	})
	return nil
}

// DropIndex removes the index over field. It returns false if there was no
// such index.
func (t *Txn) DropIndex(field string) (bool, error) {
	s := t.store
	prev, err := s.indexes.DropIndex(field)
	if err != nil || prev == nil {
		return false, err
	}
	t.noteIndex(field, nil)
	t.undo = append(t.undo, func() error {
		s.indexes.Restore(field, prev)
		return nil
	})
	return true, nil
}

func (t *Txn) noteIndex(name string, info *domain.IndexInfo) {
	if _, ok := t.indexes[name]; !ok {
		t.idxList = append(t.idxList, name)
	}
	t.indexes[name] = info
}

// SetMeta records a metadata entry to be persisted with the transaction.
func (t *Txn) SetMeta(k string, v []byte) {
	t.meta[k] = v
}

// Records returns the document changes in the order they were made.
func (t *Txn) Records() []domain.Record {
	return t.records
}

// Changes returns the final state of everything the transaction touched.
func (t *Txn) Changes() domain.Commit {
	var c domain.Commit
	for _, id := range t.order {
		if d, ok := t.store.docs.Load(id); ok {
			c.Puts = append(c.Puts, d)
		} else {
			c.Deletes = append(c.Deletes, id)
		}
	}
	for _, name := range t.idxList {
		if info := t.indexes[name]; info != nil {
			c.Indexes = append(c.Indexes, *info)
		} else {
			c.DroppedIndexes = append(c.DroppedIndexes, name)
		}
	}
	if len(t.meta) > 0 {
		c.Meta = t.meta
	}
	return c
}

// Rollback undoes every change in reverse order.
func (t *Txn) Rollback() error {
	errs := make([]error, 0)
	for i := len(t.undo) - 1; i >= 0; i-- {
		if err := t.undo[i](); err != nil {
			errs = append(errs, err)
		}
	}
	t.undo = nil
	t.records = nil
	return errors.Join(errs...)
}
