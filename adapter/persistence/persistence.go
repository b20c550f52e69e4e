// Package persistence contains the default [domain.Persistence]
// implementation, which keeps documents, index definitions and metadata in a
// bbolt file.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/deserializer"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/serializer"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/storage"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

const (
	DefaultDirMode  os.FileMode = 0o755
	DefaultFileMode os.FileMode = 0o644
	DefaultTimeout              = 5 * time.Second
)

// InMemory is the filename that selects a bucket without a data file.
const InMemory = ":memory:"

var (
	bucketDocuments = []byte("documents")
	bucketIndexes   = []byte("indexes")
	bucketMeta      = []byte("meta")
)

// Persistence implements domain.Persistence.
type Persistence struct {
	inMemoryOnly bool
	filename     string
	fileMode     os.FileMode
	dirMode      os.FileMode
	timeout      time.Duration
	noSync       bool
	serializer   domain.Serializer
	deserializer domain.Deserializer
	storage      domain.Storage
	db           *bbolt.DB
}

// NewPersistence returns a new implementation of domain.Persistence. Unless
// in memory, the data file is opened, and created if missing.
func NewPersistence(options ...Option) (domain.Persistence, error) {
	p := Persistence{
		fileMode:     DefaultFileMode,
		dirMode:      DefaultDirMode,
		timeout:      DefaultTimeout,
		serializer:   serializer.NewSerializer(),
		deserializer: deserializer.NewDeserializer(),
		storage:      storage.NewStorage(),
	}
	for _, option := range options {
		option(&p)
	}
	if p.filename == "" || p.filename == InMemory {
		p.inMemoryOnly = true
	}
	if p.inMemoryOnly {
		return &p, nil
	}

	if err := p.storage.EnsureParentDirectoryExists(p.filename, p.dirMode); err != nil {
		return nil, err
	}

	bopt := *bbolt.DefaultOptions
	bopt.Timeout = p.timeout
	bopt.NoSync = p.noSync
	db, err := bbolt.Open(p.filename, p.fileMode, &bopt)
	if err != nil {
		if isCorruption(err) {
			return nil, &domain.StorageCorruptionError{Path: p.filename, Err: err}
		}
		return nil, fmt.Errorf("opening %s: %w", p.filename, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDocuments, bucketIndexes, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Join(&domain.StorageCorruptionError{Path: p.filename, Err: err}, db.Close())
	}
	p.db = db
	return &p, nil
}

func isCorruption(err error) bool {
	return errors.Is(err, bbolt.ErrInvalid) ||
		errors.Is(err, bbolt.ErrChecksum) ||
		errors.Is(err, bbolt.ErrVersionMismatch)
}

// Load implements domain.Persistence.
func (p *Persistence) Load(ctx context.Context) (domain.State, error) {
	state := domain.State{Meta: make(map[string][]byte)}
	if p.inMemoryOnly {
		return state, nil
	}

	err := p.db.View(func(tx *bbolt.Tx) error {
		err := tx.Bucket(bucketDocuments).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := p.readDocument(ctx, k, v)
			if err != nil {
				return err
			}
			state.Documents = append(state.Documents, doc)
			return nil
		})
		if err != nil {
			return err
		}

		err = tx.Bucket(bucketIndexes).ForEach(func(k, v []byte) error {
			var info domain.IndexInfo
			if err := msgpack.Unmarshal(v, &info); err != nil {
				return p.corrupt(k, err)
			}
			if info.Name != string(k) {
				return p.corrupt(k, fmt.Errorf("index stored as %q", info.Name))
			}
			state.Indexes = append(state.Indexes, info)
			return nil
		})
		if err != nil {
			return err
		}

		return tx.Bucket(bucketMeta).ForEach(func(k, v []byte) error {
			state.Meta[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return domain.State{}, err
	}
	return state, nil
}

func (p *Persistence) readDocument(ctx context.Context, k, v []byte) (domain.Document, error) {
	id, err := domain.ObjectIDFromBytes(k)
	if err != nil {
		return nil, p.corrupt(k, err)
	}
	doc, err := p.deserializer.Deserialize(ctx, v)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, p.corrupt(k, err)
	}
	if doc.ID() != id {
		return nil, p.corrupt(k, fmt.Errorf("document stored under %s has _id %v", id, doc.Get("_id")))
	}
	return doc, nil
}

func (p *Persistence) corrupt(k []byte, err error) error {
	return &domain.StorageCorruptionError{Path: p.filename, Key: fmt.Sprintf("%x", k), Err: err}
}

// Commit implements domain.Persistence.
func (p *Persistence) Commit(ctx context.Context, c domain.Commit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.inMemoryOnly || c.Empty() {
		return nil
	}

	puts := make([][]byte, len(c.Puts))
	for n, doc := range c.Puts {
		b, err := p.serializer.Serialize(ctx, doc)
		if err != nil {
			return err
		}
		puts[n] = b
	}
	indexes := make([][]byte, len(c.Indexes))
	for n, info := range c.Indexes {
		b, err := msgpack.Marshal(info)
		if err != nil {
			return err
		}
		indexes[n] = b
	}

	return p.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocuments)
		for n, doc := range c.Puts {
			if err := docs.Put(doc.ID().Bytes(), puts[n]); err != nil {
				return err
			}
		}
		for _, id := range c.Deletes {
			if err := docs.Delete(id.Bytes()); err != nil {
				return err
			}
		}
		idx := tx.Bucket(bucketIndexes)
		for n, info := range c.Indexes {
			if err := idx.Put([]byte(info.Name), indexes[n]); err != nil {
				return err
			}
		}
		for _, name := range c.DroppedIndexes {
			if err := idx.Delete([]byte(name)); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		for k, v := range c.Meta {
			if err := meta.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Drop implements domain.Persistence.
func (p *Persistence) Drop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.inMemoryOnly {
		return nil
	}
	return p.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDocuments, bucketIndexes, bucketMeta} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close implements domain.Persistence.
func (p *Persistence) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
