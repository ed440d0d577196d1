package engine

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// Valuation supplies point values for state variables during tree evaluation.
// Both Assignment and a deterministic State implement it.
type Valuation interface {
	Value(key StateKey) (int, error)
}

// varIndex is the declaration-ordered variable table. It is copied on every
// declaration, so a State always sees the index it was built with.
type varIndex struct {
	vars []Variable
	pos  map[StateKey]int
}

func newVarIndex() *varIndex {
	return &varIndex{pos: make(map[StateKey]int)}
}

// with returns a copy of the index with v appended.
func (ix *varIndex) with(v Variable) *varIndex {
	next := &varIndex{
		vars: append(slices.Clone(ix.vars), v),
		pos:  make(map[StateKey]int, len(ix.pos)+1),
	}
	for k, i := range ix.pos {
		next.pos[k] = i
	}
	next.pos[v.Key] = len(next.vars) - 1
	return next
}

func (ix *varIndex) lookup(key StateKey) (int, error) {
	i, ok := ix.pos[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownVariable, key)
	}
	return i, nil
}

// State is an immutable snapshot of the distribution table: one Distribution
// per declared variable. Updates produce a new State.
type State struct {
	vars  *varIndex
	dists []Distribution
}

// Keys returns the declared variables in declaration order.
func (s State) Keys() []StateKey {
	if s.vars == nil {
		return nil
	}
	keys := make([]StateKey, len(s.dists))
	for i := range s.dists {
		keys[i] = s.vars.vars[i].Key
	}
	return keys
}

// Distribution returns the current distribution of key.
func (s State) Distribution(key StateKey) (Distribution, error) {
	if s.vars == nil {
		return Distribution{}, fmt.Errorf("%w: %s", ErrUnknownVariable, key)
	}
	i, err := s.vars.lookup(key)
	if err != nil {
		return Distribution{}, err
	}
	return s.dists[i], nil
}

// Value returns the point value of key. It fails with ErrNondeterministic when
// key carries more than one support value.
func (s State) Value(key StateKey) (int, error) {
	d, err := s.Distribution(key)
	if err != nil {
		return 0, err
	}
	v, ok := d.Point()
	if !ok {
		return 0, fmt.Errorf("%w: %s = %s", ErrNondeterministic, key, d)
	}
	return v, nil
}

// IsDeterministic reports whether every variable is a point mass.
func (s State) IsDeterministic() bool {
	for _, d := range s.dists {
		if d.Len() != 1 {
			return false
		}
	}
	return true
}

// with returns a copy of s with variable i replaced.
func (s State) with(i int, d Distribution) State {
	dists := slices.Clone(s.dists)
	dists[i] = d
	return State{vars: s.vars, dists: dists}
}

// weightedWorld is one point world of a State and its probability.
type weightedWorld struct {
	a Assignment
	p float64
}

// worlds expands s into the product of its marginals. A deterministic state
// yields exactly one world with probability 1.
func (s State) worlds() []weightedWorld {
	out := []weightedWorld{{a: Assignment{vars: s.vars, vals: make([]int, len(s.dists))}, p: 1}}
	for i, d := range s.dists {
		if v, ok := d.Point(); ok {
			for _, w := range out {
				w.a.vals[i] = v
			}
			continue
		}
		next := make([]weightedWorld, 0, len(out)*d.Len())
		for _, w := range out {
			for _, o := range d.support {
				vals := slices.Clone(w.a.vals)
				vals[i] = o.Value
				next = append(next, weightedWorld{a: Assignment{vars: s.vars, vals: vals}, p: w.p * o.Prob})
			}
		}
		out = next
	}
	return out
}

// marginalize folds weighted point worlds back into a State of per-variable
// distributions.
func marginalize(vars *varIndex, ws []weightedWorld) State {
	n := len(vars.vars)
	mass := make([]map[int]float64, n)
	for i := range mass {
		mass[i] = make(map[int]float64, 1)
	}
	for _, w := range ws {
		for i, v := range w.a.vals {
			mass[i][v] += w.p
		}
	}
	dists := make([]Distribution, n)
	for i := range mass {
		dists[i] = fromMass(mass[i])
	}
	return State{vars: vars, dists: dists}
}

// Assignment is one point world: a single value for every declared variable.
type Assignment struct {
	vars *varIndex
	vals []int
}

// Value returns the value assigned to key.
func (a Assignment) Value(key StateKey) (int, error) {
	i, err := a.vars.lookup(key)
	if err != nil {
		return 0, err
	}
	return a.vals[i], nil
}

// State returns the deterministic State holding exactly this assignment.
func (a Assignment) State() State {
	dists := make([]Distribution, len(a.vals))
	for i, v := range a.vals {
		dists[i] = PointMass(v)
	}
	return State{vars: a.vars, dists: dists}
}

func (a Assignment) clone() Assignment {
	return Assignment{vars: a.vars, vals: slices.Clone(a.vals)}
}

// memoKey encodes the assignment and a remaining depth as a map key.
func (a Assignment) memoKey(depth int) string {
	buf := make([]byte, 0, (len(a.vals)+1)*binary.MaxVarintLen64)
	buf = binary.AppendVarint(buf, int64(depth))
	for _, v := range a.vals {
		buf = binary.AppendVarint(buf, int64(v))
	}
	return string(buf)
}
