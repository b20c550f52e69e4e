// Package querier plans and executes queries over a document source, using
// an index to produce candidates whenever the filter allows it.
package querier

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// Source is what queries run against.
type Source interface {
	// Index returns the index over field, if any.
	Index(field string) (domain.Index, bool)
	// Scan yields every document in _id order.
	Scan() iter.Seq[domain.Document]
	// Resolve yields the documents with the given ids in the same order.
	Resolve(ids []domain.ObjectID) iter.Seq[domain.Document]
}

// Querier plans and runs queries.
type Querier struct {
	mtchr domain.Matcher
	cmpr  domain.Comparer
	fn    domain.FieldNavigator
}

// NewQuerier returns a new Querier.
func NewQuerier(opts ...Option) *Querier {
	q := Querier{
		cmpr: comparer.NewComparer(),
	}
	for _, opt := range opts {
		opt(&q)
	}
	if q.fn == nil {
		q.fn = fieldnavigator.NewFieldNavigator()
	}
	if q.mtchr == nil {
		q.mtchr = matcher.NewMatcher(
			matcher.WithComparer(q.cmpr),
			matcher.WithFieldNavigator(q.fn),
		)
	}
	return &q
}

// Compiled is a planned query.
type Compiled struct {
	Query  domain.Query
	Plan   domain.Plan
	Filter domain.Filter
	drive  domain.Condition
	index  domain.Index
}

// Plan compiles the filter of query and chooses how candidates are read.
// The drive field is the first filter field, in declaration order, with an
// index and an operator the index can answer.
func (q *Querier) Plan(src Source, query domain.Query) (*Compiled, error) {
	if query.Sector.Offset < 0 || query.Sector.Limit < 0 {
		return nil, fmt.Errorf("%w: negative sector %+v", ErrInvalidQuery, query.Sector)
	}
	if query.Sort != nil {
		if _, err := q.fn.GetAddress(query.Sort.Field); err != nil {
			return nil, err
		}
	}
	filter, err := q.mtchr.Compile(query.Filter)
	if err != nil {
		return nil, err
	}
	c := &Compiled{Query: query, Filter: filter}

Terms:
	for _, term := range filter.Terms() {
		idx, ok := src.Index(term.Field)
		if !ok {
			continue
		}
		for _, cond := range term.Conditions {
			if cond.Operator.IndexCompatible() {
				c.drive, c.index = cond, idx
				c.Plan.DriveField = term.Field
				c.Plan.DriveOperator = cond.Operator
				break Terms
			}
		}
	}

	if c.index == nil {
		c.Plan.FullScan = true
		if query.Sort != nil {
			if idx, ok := src.Index(query.Sort.Field); ok && !idx.Info().Sparse {
				c.index = idx
				c.Plan.DriveField = query.Sort.Field
			}
		}
	}
	c.Plan.IndexOrder = query.Sort != nil && c.index != nil && c.Plan.DriveField == query.Sort.Field
	return c, nil
}

// Execute runs a planned query and returns the matching documents, sorted
// and restricted to the sector. Returned documents are the stored values and
// must not be modified.
func (q *Querier) Execute(ctx context.Context, src Source, c *Compiled) ([]domain.Document, error) {
	candidates, err := q.candidates(src, c)
	if err != nil {
		return nil, err
	}

	query := c.Query
	streaming := query.Sort == nil || c.Plan.IndexOrder
	var need int64
	if streaming && query.Sector.Limit > 0 {
		need = query.Sector.Offset + query.Sector.Limit
	}

	res := make([]domain.Document, 0)
	n := 0
	for doc := range candidates {
		if n++; n%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !c.Filter.Match(doc) {
			continue
		}
		res = append(res, doc)
		if need > 0 && int64(len(res)) >= need {
			break
		}
	}

	if !streaming {
		if res, err = q.sort(res, *query.Sort); err != nil {
			return nil, fmt.Errorf("sorting: %w", err)
		}
	}
	return skipAndLimit(res, query.Sector.Offset, query.Sector.Limit), nil
}

// Find plans and executes query.
func (q *Querier) Find(ctx context.Context, src Source, query domain.Query) ([]domain.Document, domain.Plan, error) {
	c, err := q.Plan(src, query)
	if err != nil {
		return nil, domain.Plan{}, err
	}
	res, err := q.Execute(ctx, src, c)
	if err != nil {
		return nil, domain.Plan{}, err
	}
	return res, c.Plan, nil
}

func (q *Querier) candidates(src Source, c *Compiled) (iter.Seq[domain.Document], error) {
	if c.index == nil {
		return src.Scan(), nil
	}

	var ids []domain.ObjectID
	if c.Plan.DriveOperator != "" {
		var err error
		ids, err = c.index.RangeScan(c.drive.Operator, c.drive.Operand)
		if err != nil {
			return nil, err
		}
	} else {
		ids = c.index.All()
	}

	if c.Plan.IndexOrder && c.Query.Sort.Descending != c.index.Info().Reverse {
		slices.Reverse(ids)
	}
	return src.Resolve(ids), nil
}

func (q *Querier) sort(docs []domain.Document, by domain.SortField) ([]domain.Document, error) {
	addr, err := q.fn.GetAddress(by.Field)
	if err != nil {
		return nil, err
	}

	type keyed struct {
		value any
		doc   domain.Document
	}
	ks := make([]keyed, len(docs))
	for n, doc := range docs {
		v, ok := q.fn.GetField(doc, addr...)
		if !ok {
			v = domain.Undefined{}
		}
		ks[n] = keyed{value: v, doc: doc}
	}

	slices.SortStableFunc(ks, func(a, b keyed) int {
		comp, cErr := q.cmpr.Compare(a.value, b.value)
		if cErr != nil && err == nil {
			err = cErr
		}
		if comp == 0 {
			comp = a.doc.ID().Compare(b.doc.ID())
		}
		if by.Descending {
			return -comp
		}
		return comp
	})
	if err != nil {
		return nil, err
	}

	res := make([]domain.Document, len(ks))
	for n, k := range ks {
		res[n] = k.doc
	}
	return res, nil
}

func skipAndLimit(data []domain.Document, skip, limit int64) []domain.Document {
	length := int64(len(data))

	skip = min(max(skip, 0), length)
	end := length
	if limit > 0 {
		end = min(skip+limit, length)
	}
	return data[skip:end]
}
