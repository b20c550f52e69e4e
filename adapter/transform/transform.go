// Package transform contains the default [domain.TransformCursor]
// implementation.
//
// The cursor is an explicit state machine. It starts [StateOpen]; Next moves
// it to [StateYielded] with one document in flight; Advance applies the
// caller's decision and moves it back to [StateOpen]. Exhaustion, Close and
// any failure move it to [StateClosed], which is final.
package transform

import (
	"context"
	"fmt"

	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// State is the state of a [Cursor].
type State uint8

// Cursor states.
const (
	StateOpen State = iota
	StateYielded
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateYielded:
		return "yielded"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Backend is the bucket side of a transform cursor. Each call takes the
// bucket lock for its own duration only.
type Backend interface {
	// Fetch reads the current version of a document.
	Fetch(ctx context.Context, id domain.ObjectID) (domain.Document, bool, error)
	// Replace stores doc in place of the document with the given id.
	Replace(ctx context.Context, id domain.ObjectID, doc domain.Document) error
	// Remove deletes the document with the given id.
	Remove(ctx context.Context, id domain.ObjectID) error
}

// Option configures a [Cursor].
type Option func(*Cursor)

// WithOnClose registers a function run once when the cursor closes.
func WithOnClose(f func()) Option {
	return func(c *Cursor) {
		c.onClose = f
	}
}

// Cursor implements [domain.TransformCursor] over ids resolved when the
// cursor was created. Each document is read again before it is produced and
// skipped if it was removed or no longer matches the filter.
type Cursor struct {
	backend Backend
	filter  domain.Filter
	ids     []domain.ObjectID
	pos     int
	state   State
	current domain.Document
	err     error
	onClose func()
}

// NewCursor returns a cursor over ids. filter may be nil.
func NewCursor(backend Backend, filter domain.Filter, ids []domain.ObjectID, opts ...Option) *Cursor {
	c := &Cursor{
		backend: backend,
		filter:  filter,
		ids:     ids,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state of the cursor.
func (c *Cursor) State() State {
	return c.state
}

// Next implements [domain.TransformCursor].
func (c *Cursor) Next(ctx context.Context) bool {
	switch c.state {
	case StateClosed:
		return false
	case StateYielded:
		c.current = nil
		c.state = StateOpen
	}

	for c.pos < len(c.ids) {
		if err := ctx.Err(); err != nil {
			c.finish(err)
			return false
		}
		id := c.ids[c.pos]
		c.pos++

		doc, ok, err := c.backend.Fetch(ctx, id)
		if err != nil {
			c.finish(err)
			return false
		}
		if !ok || (c.filter != nil && !c.filter.Match(doc)) {
			continue
		}
		c.current = doc.Clone()
		c.state = StateYielded
		return true
	}
	c.finish(nil)
	return false
}

// Current implements [domain.TransformCursor].
func (c *Cursor) Current() domain.Document {
	if c.state != StateYielded {
		return nil
	}
	return c.current
}

// Advance implements [domain.TransformCursor]. A failed decision closes the
// cursor.
func (c *Cursor) Advance(ctx context.Context, d domain.Decision) error {
	switch c.state {
	case StateClosed:
		return domain.ErrCursorClosed
	case StateOpen:
		return domain.ErrNoDocument
	}

	id := c.current.ID()
	var err error
	switch d.Kind {
	case domain.DecisionKeep:
	case domain.DecisionReplace:
		if d.Document == nil {
			err = fmt.Errorf("%w: replacement document is nil", domain.ErrNoDocument)
			break
		}
		err = c.backend.Replace(ctx, id, d.Document)
	case domain.DecisionDelete:
		err = c.backend.Remove(ctx, id)
	default:
		err = fmt.Errorf("unknown decision kind %d", d.Kind)
	}
	if err != nil {
		c.finish(err)
		return err
	}
	c.current = nil
	c.state = StateOpen
	return nil
}

// Err implements [domain.TransformCursor].
func (c *Cursor) Err() error {
	return c.err
}

// Close implements [domain.TransformCursor]. A document in flight is left
// untouched.
func (c *Cursor) Close() error {
	c.finish(nil)
	return nil
}

func (c *Cursor) finish(err error) {
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed
	c.current = nil
	c.ids = nil
	c.err = err
	if c.onClose != nil {
		c.onClose()
	}
}
