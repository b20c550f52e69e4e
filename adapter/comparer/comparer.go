// Package comparer contains the default [domain.Comparer] implementation,
// which defines the total order used by indexes and sorting.
package comparer

import (
	"bytes"
	"cmp"
	"math"
	"math/big"
	"slices"

	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// Comparer implements domain.Comparer. Values of different types are ordered
// by type: undefined < nil < numbers < strings < bytes < ObjectIDs < booleans
// < arrays < documents.
type Comparer struct{}

// NewComparer returns a new implementation of domain.Comparer.
func NewComparer() domain.Comparer {
	return &Comparer{}
}

// Comparable implements domain.Comparer.
func (c *Comparer) Comparable(a, b any) bool {
	if _, ok := c.asNumber(a); ok {
		_, ok = c.asNumber(b)
		return ok
	}

	switch a.(type) {
	case string:
		_, ok := b.(string)
		return ok
	case []byte:
		_, ok := b.([]byte)
		return ok
	case domain.ObjectID:
		_, ok := b.(domain.ObjectID)
		return ok
	case bool:
		_, ok := b.(bool)
		return ok
	default:
		return false
	}
}

// Compare implements domain.Comparer.
func (c *Comparer) Compare(a any, b any) (int, error) {

	// Missing fields
	if c, ok := c.checkUndefined(a, b); ok {
		return c, nil
	}

	// [nil] (null)
	if c, ok := c.checkNil(a, b); ok {
		return c, nil
	}

	// Numbers
	if c, ok := c.checkNumbers(a, b); ok {
		return c, nil
	}

	// Strings
	if c, ok := check(a, b, cmp.Compare[string]); ok {
		return c, nil
	}

	// Binary
	if c, ok := check(a, b, bytes.Compare); ok {
		return c, nil
	}

	// Identifiers
	if c, ok := check(a, b, domain.ObjectID.Compare); ok {
		return c, nil
	}

	// Booleans
	if c, ok := check(a, b, compareBool); ok {
		return c, nil
	}

	// Arrays
	if c, ok, err := c.checkArrays(a, b); err != nil || ok {
		return c, err
	}

	// Objects
	if c, ok, err := c.checkDocs(a, b); err != nil || ok {
		return c, err
	}

	if !c.known(a) {
		return 0, domain.ErrCompArgType{Value: a}
	}
	return 0, domain.ErrCompArgType{Value: b}
}

func (c *Comparer) checkUndefined(a, b any) (int, bool) {
	_, aUndef := a.(domain.Undefined)
	_, bUndef := b.(domain.Undefined)
	switch {
	case aUndef && bUndef:
		return 0, true
	case aUndef:
		return -1, true
	case bUndef:
		return 1, true
	}
	return 0, false
}

func (c *Comparer) checkNil(a, b any) (int, bool) {
	if a == nil {
		if b == nil {
			return 0, true
		}
		return -1, true
	}
	if b == nil {
		return 1, true // no need to test if a == nil
	}
	return 0, false
}

// check compares a and b with f if both have type T. If only one of them has
// type T, that one is the smallest.
func check[T any](a, b any, f func(T, T) int) (int, bool) {
	if a, ok := a.(T); ok {
		if b, ok := b.(T); ok {
			return f(a, b), true
		}
		return -1, true
	}
	if _, ok := b.(T); ok {
		return 1, true
	}
	return 0, false
}

func (c *Comparer) checkNumbers(a, b any) (int, bool) {
	if a, ok := c.asNumber(a); ok {
		if b, ok := c.asNumber(b); ok {
			return compareNumbers(a, b), true
		}
		return -1, true
	}
	if _, ok := c.asNumber(b); ok {
		return 1, true
	}
	return 0, false
}

func (c *Comparer) checkArrays(a, b any) (int, bool, error) {
	if a, ok := a.([]any); ok {
		if b, ok := b.([]any); ok {
			comp, err := c.compareArray(a, b)
			return comp, true, err
		}
		return -1, true, nil
	}
	if _, ok := b.([]any); ok {
		return 1, true, nil
	}
	return 0, false, nil
}

func (c *Comparer) checkDocs(a, b any) (int, bool, error) {
	if a, ok := a.(domain.Document); ok {
		if b, ok := b.(domain.Document); ok {
			comp, err := c.compareDoc(a, b)
			return comp, true, err
		}
		return -1, true, nil
	}
	if _, ok := b.(domain.Document); ok {
		return 1, true, nil
	}
	return 0, false, nil
}

func (c *Comparer) compareArray(a, b []any) (int, error) {
	for i := range min(len(a), len(b)) {
		comp, err := c.Compare(a[i], b[i])
		if err != nil {
			return 0, err
		}
		if comp != 0 {
			return comp, nil
		}
	}

	// Common section was identical, longest one wins
	return cmp.Compare(len(a), len(b)), nil
}

// compareDoc orders documents by their values under sorted keys, so field
// order does not affect equality.
func (c *Comparer) compareDoc(a domain.Document, b domain.Document) (int, error) {
	aKeys := slices.Sorted(a.Keys())
	bKeys := slices.Sorted(b.Keys())

	for i := range min(len(aKeys), len(bKeys)) {
		if comp := cmp.Compare(aKeys[i], bKeys[i]); comp != 0 {
			return comp, nil
		}
		comp, err := c.Compare(a.Get(aKeys[i]), b.Get(bKeys[i]))
		if err != nil {
			return 0, err
		}
		if comp != 0 {
			return comp, nil
		}
	}

	return cmp.Compare(len(aKeys), len(bKeys)), nil
}

func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if a {
		return 1
	}
	return -1
}

type number struct {
	i       int64
	f       float64
	isFloat bool
}

// compareNumbers orders integers and floats by value. NaN sorts before every
// other number.
func compareNumbers(a, b number) int {
	switch {
	case !a.isFloat && !b.isFloat:
		return cmp.Compare(a.i, b.i)
	case a.isFloat && b.isFloat:
		return cmp.Compare(a.f, b.f)
	case a.isFloat:
		return -compareIntFloat(b.i, a.f)
	default:
		return compareIntFloat(a.i, b.f)
	}
}

func compareIntFloat(i int64, f float64) int {
	if math.IsNaN(f) {
		return 1
	}
	if math.IsInf(f, 0) {
		if f > 0 {
			return -1
		}
		return 1
	}
	// big.Float holds both exactly, float64(i) would round above 2^53
	return new(big.Float).SetInt64(i).Cmp(big.NewFloat(f))
}

func (c *Comparer) asNumber(v any) (number, bool) {
	switch n := v.(type) {
	case int64:
		return number{i: n}, true
	case float64:
		return number{f: n, isFloat: true}, true
	case int:
		return number{i: int64(n)}, true
	case int32:
		return number{i: int64(n)}, true
	case float32:
		return number{f: float64(n), isFloat: true}, true
	default:
		return number{}, false
	}
}

func (c *Comparer) known(v any) bool {
	switch v.(type) {
	case nil, domain.Undefined, int64, float64, int, int32, float32, string,
		[]byte, domain.ObjectID, bool, []any, domain.Document:
		return true
	}
	return false
}

// Equal reports whether a and b compare as equal, treating errors as
// inequality.
func Equal(c domain.Comparer, a, b any) bool {
	comp, err := c.Compare(a, b)
	return err == nil && comp == 0
}

