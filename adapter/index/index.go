// Package index contains the default [domain.Index] implementation and the
// manager that keeps every index of a bucket in sync with its documents.
package index

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/bst/adapter/avl"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// Index implements [domain.Index]. Entries are keyed by the field value and
// the document id, so equal values are kept in id order.
type Index struct {
	info domain.IndexInfo
	addr []string
	// Exported to allow testing. Should not be a problem because Index is
	// used as interface.
	Tree           bst.BST[any, key]
	members        map[domain.ObjectID]key
	comparer       domain.Comparer
	bstComparer    bst.Comparer[any, key]
	fieldNavigator domain.FieldNavigator
}

// NewIndex returns a new implementation of domain.Index.
func NewIndex(info domain.IndexInfo, options ...Option) (domain.Index, error) {
	opts := newOptions(options)

	if info.Name == "" {
		return nil, domain.ErrNoFieldName
	}
	addr, err := opts.fieldNavigator.GetAddress(info.Name)
	if err != nil {
		return nil, err
	}

	bstComparer := NewBSTComparer(opts.comparer)

	return &Index{
		info:           info,
		addr:           addr,
		Tree:           avl.NewBST(true, 8, bstComparer),
		members:        make(map[domain.ObjectID]key),
		comparer:       opts.comparer,
		bstComparer:    bstComparer,
		fieldNavigator: opts.fieldNavigator,
	}, nil
}

func newOptions(opts []Option) options {
	var o options
	for _, option := range opts {
		option(&o)
	}
	if o.comparer == nil {
		o.comparer = comparer.NewComparer()
	}
	if o.fieldNavigator == nil {
		o.fieldNavigator = fieldnavigator.NewFieldNavigator()
	}
	return o
}

// Info implements [domain.Index].
func (i *Index) Info() domain.IndexInfo {
	return i.info
}

// Has implements [domain.Index].
func (i *Index) Has(id domain.ObjectID) bool {
	_, ok := i.members[id]
	return ok
}

// Len implements [domain.Index].
func (i *Index) Len() int {
	return len(i.members)
}

func (i *Index) keyOf(doc domain.Document) (key, bool) {
	v, ok := i.fieldNavigator.GetField(doc, i.addr...)
	if !ok {
		if i.info.Sparse {
			return key{}, false
		}
		v = domain.Undefined{}
	}
	return key{Value: v, ID: doc.ID()}, true
}

// Insert implements [domain.Index].
func (i *Index) Insert(docs ...domain.Document) error {
	inserted := make([]key, 0, len(docs))

	var err error
	for _, d := range docs {
		if _, dup := i.members[d.ID()]; dup {
			err = fmt.Errorf("%w: document %s already indexed by %q", domain.ErrConstraintViolated, d.ID(), i.info.Name)
			break
		}
		k, ok := i.keyOf(d)
		if !ok {
			continue
		}
		if i.info.Unique {
			if err = i.checkUnique(k); err != nil {
				break
			}
		}
		if err = i.Tree.Insert(k, k); err != nil {
			if e := new(bst.ErrUniqueViolated); errors.As(err, e) {
				err = fmt.Errorf("%w: %w", domain.ErrConstraintViolated, err)
			}
			break
		}
		i.members[k.ID] = k
		inserted = append(inserted, k)
	}
	if err != nil {
		nErrs := make([]error, 1, len(inserted)+1)
		nErrs[0] = err
		for _, k := range inserted {
			if err := i.Tree.Delete(k, &k); err != nil {
				nErrs = append(nErrs, err)
			}
			delete(i.members, k.ID)
		}
		if len(nErrs) > 1 {
			return errors.Join(nErrs...)
		}
		return err
	}
	return nil
}

func (i *Index) checkUnique(k key) error {
	for v, err := range i.Tree.Query(i.equalQuery(k.Value)) {
		if err != nil {
			return err
		}
		if v.ID != k.ID {
			return fmt.Errorf("%w: duplicate key %v for index %q", domain.ErrConstraintViolated, k.Value, i.info.Name)
		}
	}
	return nil
}

// Remove implements [domain.Index].
func (i *Index) Remove(docs ...domain.Document) error {
	errs := make([]error, 0, len(docs))
	for _, d := range docs {
		k, ok := i.members[d.ID()]
		if !ok {
			continue
		}
		if err := i.Tree.Delete(k, &k); err != nil {
			errs = append(errs, err)
			continue
		}
		delete(i.members, k.ID)
	}
	return errors.Join(errs...)
}

// Update implements [domain.Index].
func (i *Index) Update(oldDoc, newDoc domain.Document) error {
	if err := i.Remove(oldDoc); err != nil {
		return err
	}
	if err := i.Insert(newDoc); err != nil {
		if err2 := i.Insert(oldDoc); err2 != nil {
			return errors.Join(err, err2)
		}
		return err
	}
	return nil
}

// Reset implements [domain.Index]. If any document cannot be indexed, the
// previous contents are restored.
func (i *Index) Reset(docs iter.Seq[domain.Document]) error {
	oldTree, oldMembers := i.Tree, i.members
	i.Tree = avl.NewBST(true, 8, i.bstComparer)
	i.members = make(map[domain.ObjectID]key)
	for d := range docs {
		if err := i.Insert(d); err != nil {
			i.Tree, i.members = oldTree, oldMembers
			return err
		}
	}
	return nil
}

// All implements [domain.Index].
func (i *Index) All() []domain.ObjectID {
	res := make([]domain.ObjectID, 0, len(i.members))
	for k := range i.Tree.GetAll() {
		res = append(res, k.ID)
	}
	return i.ordered(res)
}

// RangeScan implements [domain.Index]. Relational operators only return
// entries whose value is comparable with the operand.
func (i *Index) RangeScan(op domain.Operator, operand any) ([]domain.ObjectID, error) {
	var (
		res []domain.ObjectID
		err error
	)
	switch op {
	case domain.OpEq:
		res, err = i.collect(i.equalQuery(operand), nil)
	case domain.OpLt:
		res, err = i.collect(bst.Query[any]{
			LowerThan: &bst.Bound[any]{Value: lowKey(operand), IncludeEqual: false},
		}, i.comparableWith(operand))
	case domain.OpLte:
		res, err = i.collect(bst.Query[any]{
			LowerThan: &bst.Bound[any]{Value: highKey(operand), IncludeEqual: true},
		}, i.comparableWith(operand))
	case domain.OpGt:
		res, err = i.collect(bst.Query[any]{
			GreaterThan: &bst.Bound[any]{Value: highKey(operand), IncludeEqual: false},
		}, i.comparableWith(operand))
	case domain.OpGte:
		res, err = i.collect(bst.Query[any]{
			GreaterThan: &bst.Bound[any]{Value: lowKey(operand), IncludeEqual: true},
		}, i.comparableWith(operand))
	case domain.OpBetween:
		bounds, ok := operand.([]any)
		if !ok || len(bounds) != 2 {
			return nil, domain.ErrOperand{Operator: string(op), Operand: operand, Reason: "expected two bounds"}
		}
		res, err = i.collect(bst.Query[any]{
			GreaterThan: &bst.Bound[any]{Value: lowKey(bounds[0]), IncludeEqual: true},
			LowerThan:   &bst.Bound[any]{Value: highKey(bounds[1]), IncludeEqual: true},
		}, i.comparableWith(bounds[0]))
	case domain.OpIn:
		res, err = i.scanIn(op, operand)
	case domain.OpStartsWith:
		res, err = i.scanPrefix(op, operand)
	case domain.OpEndsWith:
		suffix, ok := operand.(string)
		if !ok {
			return nil, domain.ErrOperand{Operator: string(op), Operand: operand, Reason: "expected a string"}
		}
		for k := range i.Tree.GetAll() {
			if s, ok := k.Value.(string); ok && strings.HasSuffix(s, suffix) {
				res = append(res, k.ID)
			}
		}
	default:
		return nil, domain.ErrUnknownOperator{Operator: string(op)}
	}
	if err != nil {
		return nil, err
	}
	return i.ordered(res), nil
}

func (i *Index) scanIn(op domain.Operator, operand any) ([]domain.ObjectID, error) {
	values, ok := operand.([]any)
	if !ok {
		return nil, domain.ErrOperand{Operator: string(op), Operand: operand, Reason: "expected a list"}
	}
	values = slices.Clone(values)
	slices.SortFunc(values, i.compareThings)
	values = slices.CompactFunc(values, func(a, b any) bool { return i.compareThings(a, b) == 0 })

	var res []domain.ObjectID
	for _, v := range values {
		ids, err := i.collect(i.equalQuery(v), nil)
		if err != nil {
			return nil, err
		}
		res = append(res, ids...)
	}
	return res, nil
}

func (i *Index) scanPrefix(op domain.Operator, operand any) ([]domain.ObjectID, error) {
	prefix, ok := operand.(string)
	if !ok {
		return nil, domain.ErrOperand{Operator: string(op), Operand: operand, Reason: "expected a string"}
	}
	var res []domain.ObjectID
	qry := bst.Query[any]{
		GreaterThan: &bst.Bound[any]{Value: lowKey(prefix), IncludeEqual: true},
	}
	for k, err := range i.Tree.Query(qry) {
		if err != nil {
			return nil, err
		}
		s, ok := k.Value.(string)
		if !ok || !strings.HasPrefix(s, prefix) {
			break
		}
		res = append(res, k.ID)
	}
	return res, nil
}

func (i *Index) collect(qry bst.Query[any], keep func(any) bool) ([]domain.ObjectID, error) {
	var res []domain.ObjectID
	for k, err := range i.Tree.Query(qry) {
		if err != nil {
			return nil, err
		}
		if keep != nil && !keep(k.Value) {
			continue
		}
		res = append(res, k.ID)
	}
	return res, nil
}

func (i *Index) equalQuery(v any) bst.Query[any] {
	return bst.Query[any]{
		GreaterThan: &bst.Bound[any]{Value: lowKey(v), IncludeEqual: true},
		LowerThan:   &bst.Bound[any]{Value: highKey(v), IncludeEqual: true},
	}
}

func (i *Index) comparableWith(operand any) func(any) bool {
	return func(v any) bool {
		return i.comparer.Comparable(v, operand)
	}
}

func (i *Index) ordered(ids []domain.ObjectID) []domain.ObjectID {
	if i.info.Reverse {
		slices.Reverse(ids)
	}
	return ids
}

func (i *Index) compareThings(a any, b any) int {
	comp, _ := i.comparer.Compare(a, b)
	return comp
}

func lowKey(v any) key {
	return key{Value: v, ID: domain.NilObjectID}
}

func highKey(v any) key {
	return key{Value: v, ID: domain.MaxObjectID}
}
