// Package matcher contains the default [domain.Matcher] implementation.
package matcher

import (
	"strings"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/data"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// Matcher implements [domain.Matcher].
type Matcher struct {
	comparer       domain.Comparer
	fieldNavigator domain.FieldNavigator
}

// NewMatcher returns a new implementation of [domain.Matcher].
func NewMatcher(options ...Option) domain.Matcher {
	m := &Matcher{
		comparer:       comparer.NewComparer(),
		fieldNavigator: fieldnavigator.NewFieldNavigator(),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Compile implements [domain.Matcher]. A nil or empty filter matches every
// document.
func (m *Matcher) Compile(filter domain.Document) (domain.Filter, error) {
	q := &Query{m: m}
	if filter == nil {
		return q, nil
	}
	for field, operand := range filter.Iter() {
		rule, err := m.makeFieldRule(field, operand)
		if err != nil {
			return nil, err
		}
		q.Rules = append(q.Rules, rule)
	}
	return q, nil
}

func (m *Matcher) makeFieldRule(field string, operand any) (FieldRule, error) {
	addr, err := m.fieldNavigator.GetAddress(field)
	if err != nil {
		return FieldRule{}, err
	}
	fr := FieldRule{Field: field, Addr: addr}

	// maps and structs become documents, so they can carry operators
	val, err := data.Normalize(operand)
	if err != nil {
		return FieldRule{}, err
	}
	ops, isOps, err := m.operators(val)
	if err != nil {
		return FieldRule{}, err
	}
	if !isOps {
		fr.Conds = []Cond{{Op: domain.OpEq, Val: val}}
		return fr, nil
	}

	for k, v := range ops.Iter() {
		cond, err := m.makeCond(domain.Operator(k), v)
		if err != nil {
			return FieldRule{}, err
		}
		fr.Conds = append(fr.Conds, cond)
	}
	return fr, nil
}

// operators reports whether operand is an operator document. Operator and
// plain keys cannot be mixed.
func (m *Matcher) operators(operand any) (domain.Document, bool, error) {
	doc, ok := operand.(domain.Document)
	if !ok || doc.Len() == 0 {
		return nil, false, nil
	}
	dollar := 0
	for k := range doc.Keys() {
		if strings.HasPrefix(k, "$") {
			dollar++
		}
	}
	switch dollar {
	case 0:
		return nil, false, nil
	case doc.Len():
		return doc, true, nil
	default:
		return nil, false, domain.ErrMixedOperators
	}
}

func (m *Matcher) makeCond(op domain.Operator, v any) (Cond, error) {
	val, err := data.Normalize(v)
	if err != nil {
		return Cond{}, err
	}
	switch op {
	case domain.OpEq, domain.OpNe, domain.OpLt, domain.OpLte, domain.OpGt, domain.OpGte:
		return Cond{Op: op, Val: val}, nil
	case domain.OpIn:
		l, ok := val.([]any)
		if !ok {
			return Cond{}, domain.ErrOperand{Operator: string(op), Operand: v, Reason: "expected an array"}
		}
		return Cond{Op: op, Val: l}, nil
	case domain.OpBetween:
		l, ok := val.([]any)
		if !ok || len(l) != 2 {
			return Cond{}, domain.ErrOperand{Operator: string(op), Operand: v, Reason: "expected [low, high]"}
		}
		return Cond{Op: op, Val: l}, nil
	case domain.OpStartsWith, domain.OpEndsWith:
		if _, ok := val.(string); !ok {
			return Cond{}, domain.ErrOperand{Operator: string(op), Operand: v, Reason: "expected a string"}
		}
		return Cond{Op: op, Val: val}, nil
	case domain.OpExists:
		want, ok := val.(bool)
		if !ok {
			want = true
		}
		return Cond{Op: op, Val: val, Ok: want}, nil
	case domain.OpNotExists:
		return Cond{Op: op, Val: val}, nil
	default:
		return Cond{}, domain.ErrUnknownOperator{Operator: string(op)}
	}
}
