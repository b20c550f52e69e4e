// Package projector contains the default [domain.Projector] implementation.
package projector

import (
	"github.com/vinicius-lino-figueiredo/albedo/adapter/data"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// Projector implements [domain.Projector].
type Projector struct {
	fn domain.FieldNavigator
}

// NewProjector returns a new implementation of [domain.Projector].
func NewProjector(opts ...Option) domain.Projector {
	var p Projector
	for _, opt := range opts {
		opt(&p)
	}
	if p.fn == nil {
		p.fn = fieldnavigator.NewFieldNavigator()
	}
	return &p
}

// Project implements [domain.Projector]. An include list always keeps _id.
// An omit list only removes _id if it is named.
func (q *Projector) Project(doc domain.Document, proj domain.Projection) (domain.Document, error) {
	if len(proj.Fields) == 0 {
		return doc.Clone(), nil
	}

	addrs := make([][]string, len(proj.Fields))
	for n, field := range proj.Fields {
		addr, err := q.fn.GetAddress(field)
		if err != nil {
			return nil, err
		}
		addrs[n] = addr
	}

	if proj.Omit {
		return q.negativeProject(doc, addrs), nil
	}
	return q.positiveProject(doc, addrs)
}

func (q *Projector) positiveProject(doc domain.Document, addrs [][]string) (domain.Document, error) {
	res := data.NewD(len(addrs) + 1)
	if doc.Has(domain.PrimaryIndex) {
		res.Set(domain.PrimaryIndex, doc.Get(domain.PrimaryIndex))
	}
	for _, addr := range addrs {
		value, ok := q.fn.GetField(doc, addr...)
		if !ok {
			continue
		}
		if err := q.fn.SetField(res, data.CloneValue(value), addr...); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (q *Projector) negativeProject(doc domain.Document, addrs [][]string) domain.Document {
	res := doc.Clone()
	for _, addr := range addrs {
		last := len(addr) - 1
		parent, ok := q.fn.GetField(res, addr[:last]...)
		if !ok {
			continue
		}
		if d, ok := parent.(domain.Document); ok {
			d.Unset(addr[last])
		}
	}
	return res
}
