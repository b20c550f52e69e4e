package index

import (
	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// key is the composite tree key of an index entry. Ordering by the id after
// the value makes every key unique and gives equal values a stable order.
type key struct {
	Value any
	ID    domain.ObjectID
}

type bstComparer struct {
	comparer domain.Comparer
}

// NewBSTComparer returns a [bst.Comparer] ordering index entries by value, then
// by id.
func NewBSTComparer(comparer domain.Comparer) bst.Comparer[any, key] {
	return &bstComparer{
		comparer: comparer,
	}
}

// CompareKeys implements bst.Comparer.
func (bc *bstComparer) CompareKeys(a any, b any) (int, error) {
	ka, ok := a.(key)
	if !ok {
		return 0, domain.ErrCompArgType{Value: a}
	}
	kb, ok := b.(key)
	if !ok {
		return 0, domain.ErrCompArgType{Value: b}
	}
	c, err := bc.comparer.Compare(ka.Value, kb.Value)
	if err != nil || c != 0 {
		return c, err
	}
	return ka.ID.Compare(kb.ID), nil
}

// CompareValues implements bst.Comparer.
func (bc *bstComparer) CompareValues(a key, b key) (bool, error) {
	return a.ID == b.ID, nil
}
