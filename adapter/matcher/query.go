package matcher

import (
	"strings"

	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// Query stores a compiled filter in a typed and easier to iterate struct. It
// implements [domain.Filter].
type Query struct {
	m     *Matcher
	Rules []FieldRule
}

// FieldRule stores the set of conditions used to match a given document field.
type FieldRule struct {
	Field string
	Addr  []string
	Conds []Cond
}

// Cond stores a single operation on a document field.
type Cond struct {
	Op  domain.Operator
	Val any
	// Ok is the expected presence for $exists.
	Ok bool
}

// Match implements [domain.Filter]. Every rule must match.
func (q *Query) Match(doc domain.Document) bool {
	for _, rule := range q.Rules {
		v, defined := q.m.fieldNavigator.GetField(doc, rule.Addr...)
		for _, cond := range rule.Conds {
			if !q.m.matchCond(v, defined, cond) {
				return false
			}
		}
	}
	return true
}

// Terms implements [domain.Filter].
func (q *Query) Terms() []domain.FieldTerm {
	res := make([]domain.FieldTerm, len(q.Rules))
	for n, rule := range q.Rules {
		conds := make([]domain.Condition, len(rule.Conds))
		for i, c := range rule.Conds {
			conds[i] = domain.Condition{Operator: c.Op, Operand: c.Val}
		}
		res[n] = domain.FieldTerm{Field: rule.Field, Conditions: conds}
	}
	return res
}

func (m *Matcher) matchCond(v any, defined bool, cond Cond) bool {
	switch cond.Op {
	case domain.OpExists:
		return defined == cond.Ok
	case domain.OpNotExists:
		return !defined
	}
	if !defined {
		return false
	}
	switch cond.Op {
	case domain.OpEq:
		return m.equal(v, cond.Val)
	case domain.OpNe:
		return !m.equal(v, cond.Val)
	case domain.OpLt:
		return m.relational(v, cond.Val, func(c int) bool { return c < 0 })
	case domain.OpLte:
		return m.relational(v, cond.Val, func(c int) bool { return c <= 0 })
	case domain.OpGt:
		return m.relational(v, cond.Val, func(c int) bool { return c > 0 })
	case domain.OpGte:
		return m.relational(v, cond.Val, func(c int) bool { return c >= 0 })
	case domain.OpIn:
		for _, item := range cond.Val.([]any) {
			if m.equal(v, item) {
				return true
			}
		}
		return false
	case domain.OpBetween:
		bounds := cond.Val.([]any)
		return m.relational(v, bounds[0], func(c int) bool { return c >= 0 }) &&
			m.relational(v, bounds[1], func(c int) bool { return c <= 0 })
	case domain.OpStartsWith:
		s, ok := v.(string)
		return ok && strings.HasPrefix(s, cond.Val.(string))
	case domain.OpEndsWith:
		s, ok := v.(string)
		return ok && strings.HasSuffix(s, cond.Val.(string))
	}
	return false
}

func (m *Matcher) equal(a, b any) bool {
	c, err := m.comparer.Compare(a, b)
	return err == nil && c == 0
}

func (m *Matcher) relational(a, b any, ok func(int) bool) bool {
	if !m.comparer.Comparable(a, b) {
		return false
	}
	c, err := m.comparer.Compare(a, b)
	return err == nil && ok(c)
}
