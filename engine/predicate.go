package engine

import (
	"fmt"
	"strings"
)

// Op is a comparison operator.
type Op uint8

const (
	OpLT Op = iota // <
	OpLE           // <=
	OpEQ           // ==
	OpNE           // !=
	OpGE           // >=
	OpGT           // >
)

func (o Op) apply(a, b int) bool {
	switch o {
	case OpLT:
		return a < b
	case OpLE:
		return a <= b
	case OpEQ:
		return a == b
	case OpNE:
		return a != b
	case OpGE:
		return a >= b
	case OpGT:
		return a > b
	}
	return false
}

func (o Op) String() string {
	switch o {
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpEQ:
		return "=="
	case OpNE:
		return "!="
	case OpGE:
		return ">="
	case OpGT:
		return ">"
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Predicate is a boolean test over one or more state variables.
type Predicate interface {
	// Keys returns the variables the predicate reads directly.
	Keys() []StateKey
	Test(v Valuation) (bool, error)
	String() string
}

// composite is implemented by predicates built from other predicates.
type composite interface {
	operands() []Predicate
}

type compareConst struct {
	key StateKey
	op  Op
	c   int
}

// Equal tests key == c.
func Equal(key StateKey, c int) Predicate { return compareConst{key: key, op: OpEQ, c: c} }

// Compare tests key <op> c.
func Compare(key StateKey, op Op, c int) Predicate { return compareConst{key: key, op: op, c: c} }

// Threshold tests key > t.
func Threshold(key StateKey, t int) Predicate { return compareConst{key: key, op: OpGT, c: t} }

func (p compareConst) Keys() []StateKey { return []StateKey{p.key} }

func (p compareConst) Test(v Valuation) (bool, error) {
	x, err := v.Value(p.key)
	if err != nil {
		return false, err
	}
	return p.op.apply(x, p.c), nil
}

func (p compareConst) String() string { return fmt.Sprintf("%s %s %d", p.key, p.op, p.c) }

type compareKeys struct {
	a, b StateKey
	op   Op
}

// EqualKeys tests a == b.
func EqualKeys(a, b StateKey) Predicate { return compareKeys{a: a, b: b, op: OpEQ} }

// CompareKeys tests a <op> b.
func CompareKeys(a StateKey, op Op, b StateKey) Predicate { return compareKeys{a: a, b: b, op: op} }

func (p compareKeys) Keys() []StateKey { return []StateKey{p.a, p.b} }

func (p compareKeys) Test(v Valuation) (bool, error) {
	x, err := v.Value(p.a)
	if err != nil {
		return false, err
	}
	y, err := v.Value(p.b)
	if err != nil {
		return false, err
	}
	return p.op.apply(x, y), nil
}

func (p compareKeys) String() string { return fmt.Sprintf("%s %s %s", p.a, p.op, p.b) }

type allOf []Predicate

// All is true when every operand is true. All() is true.
func All(ps ...Predicate) Predicate { return allOf(ps) }

func (p allOf) operands() []Predicate { return p }
func (p allOf) Keys() []StateKey      { return collectKeys(p) }

func (p allOf) Test(v Valuation) (bool, error) {
	for _, q := range p {
		ok, err := q.Test(v)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (p allOf) String() string { return joinPredicates(p, " and ") }

type anyOf []Predicate

// Any is true when some operand is true. Any() is false.
func Any(ps ...Predicate) Predicate { return anyOf(ps) }

func (p anyOf) operands() []Predicate { return p }
func (p anyOf) Keys() []StateKey      { return collectKeys(p) }

func (p anyOf) Test(v Valuation) (bool, error) {
	for _, q := range p {
		ok, err := q.Test(v)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (p anyOf) String() string { return joinPredicates(p, " or ") }

type not struct{ p Predicate }

// Not negates p.
func Not(p Predicate) Predicate { return not{p: p} }

func (p not) operands() []Predicate { return []Predicate{p.p} }
func (p not) Keys() []StateKey      { return p.p.Keys() }

func (p not) Test(v Valuation) (bool, error) {
	ok, err := p.p.Test(v)
	return !ok && err == nil, err
}

func (p not) String() string { return "not (" + p.p.String() + ")" }

func collectKeys(ps []Predicate) []StateKey {
	var keys []StateKey
	for _, p := range ps {
		keys = append(keys, p.Keys()...)
	}
	return keys
}

func joinPredicates(ps []Predicate, sep string) string {
	if len(ps) == 0 {
		if sep == " and " {
			return "true"
		}
		return "false"
	}
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = "(" + p.String() + ")"
	}
	return strings.Join(parts, sep)
}

// checkPredicate verifies p and its operands are non-nil and read only
// declared variables.
func checkPredicate(p Predicate, declared func(StateKey) bool) (StateKey, error) {
	if p == nil {
		return StateKey{}, fmt.Errorf("nil predicate")
	}
	if c, ok := p.(composite); ok {
		for _, q := range c.operands() {
			if key, err := checkPredicate(q, declared); err != nil {
				return key, err
			}
		}
		return StateKey{}, nil
	}
	for _, k := range p.Keys() {
		if !declared(k) {
			return k, fmt.Errorf("predicate %q reads an undeclared variable", p)
		}
	}
	return StateKey{}, nil
}
