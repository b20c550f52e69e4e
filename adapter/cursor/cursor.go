// Package cursor contains the default [domain.Cursor] implementation.
package cursor

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/projector"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// Cursor implements domain.Cursor over a result set resolved when it is
// created. Documents are shared with the store, so each one is copied before
// it is handed out.
type Cursor struct {
	data       []domain.Document
	ctx        context.Context
	cancel     context.CancelCauseFunc
	dec        domain.Decoder
	proj       domain.Projector
	projection domain.Projection
	onClose    func()
	release    sync.Once
	index      int64
	exhausted  bool
}

// NewCursor returns a new implementation of Cursor.
func NewCursor(ctx context.Context, dt []domain.Document, options ...domain.CursorOption) (domain.Cursor, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	opts := domain.CursorOptions{
		Decoder: decoder.NewDecoder(),
	}

	for _, option := range options {
		option(&opts)
	}
	if opts.Projector == nil {
		opts.Projector = projector.NewProjector()
	}

	ctx, cancel := context.WithCancelCause(ctx)
	cur := &Cursor{
		ctx:        ctx,
		cancel:     cancel,
		index:      -1,
		dec:        opts.Decoder,
		proj:       opts.Projector,
		projection: opts.Projection,
		onClose:    opts.OnClose,
		data:       dt,
	}

	return cur, nil
}

// done releases the result set and the cursor context. A cause set earlier by
// fail or by the parent context is kept.
func (c *Cursor) done() {
	c.release.Do(func() {
		c.cancel(domain.ErrCursorClosed)
		c.data = nil
		if c.onClose != nil {
			c.onClose()
		}
	})
}

func (c *Cursor) fail(err error) {
	c.cancel(err)
	c.done()
}

// Err implements domain.Cursor. Closing the cursor is not an error.
func (c *Cursor) Err() error {
	err := context.Cause(c.ctx)
	if errors.Is(err, domain.ErrCursorClosed) {
		return nil
	}
	return err
}

// Scan implements domain.Cursor.
func (c *Cursor) Scan(ctx context.Context, target any) error {
	if c.exhausted {
		return domain.ErrNoDocument
	}
	select {
	case <-c.ctx.Done():
		return domain.ErrCursorClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if c.index < 0 {
		return domain.ErrScanBeforeNext
	}
	if c.index >= int64(len(c.data)) {
		return domain.ErrNoDocument
	}
	doc, err := c.current()
	if err != nil {
		return err
	}
	return c.dec.Decode(doc, target)
}

// Document implements domain.Cursor. It returns nil before the first call to
// Next and after the cursor is closed.
func (c *Cursor) Document() domain.Document {
	select {
	case <-c.ctx.Done():
		return nil
	default:
	}
	if c.index < 0 || c.index >= int64(len(c.data)) {
		return nil
	}
	doc, err := c.current()
	if err != nil {
		return nil
	}
	return doc
}

func (c *Cursor) current() (domain.Document, error) {
	doc, err := c.proj.Project(c.data[c.index], c.projection)
	if err != nil {
		c.fail(err)
		return nil, err
	}
	return doc, nil
}

// All implements domain.Cursor. The cursor is closed when the iteration
// ends, including when the caller breaks out of it.
func (c *Cursor) All() iter.Seq2[domain.Document, error] {
	return func(yield func(domain.Document, error) bool) {
		defer c.Close()
		for c.Next() {
			doc := c.Document()
			if doc == nil {
				break
			}
			if !yield(doc, nil) {
				return
			}
		}
		if err := c.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Close implements domain.Cursor.
func (c *Cursor) Close() error {
	c.cancel(domain.ErrCursorClosed)
	c.done()
	return nil
}

// Next implements domain.Cursor.
func (c *Cursor) Next() bool {
	select {
	case <-c.ctx.Done():
		c.done()
		return false
	default:
	}
	if c.index+1 < int64(len(c.data)) {
		c.index++
		return true
	}
	c.index = int64(len(c.data))
	c.exhausted = true
	c.done()
	return false
}
