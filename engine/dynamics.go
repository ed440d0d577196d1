package engine

import (
	"fmt"
	"slices"
)

// RegisterDynamics binds t as the update of key when action is committed.
// The tree's leaves must all be transforms. A later registration for the same
// (key, action) replaces the earlier one. Registration is refused if it would
// make a parallel turn group write one variable from two agents.
func (w *World) RegisterDynamics(key StateKey, action Action, t *Tree) error {
	if !w.declared(key) {
		return fmt.Errorf("register dynamics: %w: %s", ErrUnknownVariable, key)
	}
	if !w.hasAction(action) {
		return fmt.Errorf("register dynamics: %w: %s", ErrUnknownAction, action)
	}
	binding := fmt.Sprintf("dynamics of %s under %s", key, action)
	if err := validateTree(t, leafTransform, binding, w.declared); err != nil {
		return err
	}

	dk := dynamicsKey{key: key, action: action}
	_, replacing := w.dynamics[dk]
	if !replacing {
		w.writes[action] = append(w.writes[action], key)
		if err := w.checkConflicts(w.order); err != nil {
			w.writes[action] = w.writes[action][:len(w.writes[action])-1]
			return fmt.Errorf("register dynamics: %w", err)
		}
	}
	w.dynamics[dk] = t
	return nil
}

// Writes returns the variables targeted by action's dynamics, in registration
// order.
func (w *World) Writes(action Action) []StateKey { return slices.Clone(w.writes[action]) }

// Project returns the post-action distribution of key when action is taken at
// state. With no tree registered for (key, action) the distribution is
// returned unchanged.
func (w *World) Project(key StateKey, action Action, state State) (Distribution, error) {
	if state.vars == nil {
		return Distribution{}, fmt.Errorf("project: %w: %s", ErrUnknownVariable, key)
	}
	i, err := state.vars.lookup(key)
	if err != nil {
		return Distribution{}, fmt.Errorf("project: %w", err)
	}
	t, ok := w.dynamics[dynamicsKey{key: key, action: action}]
	if !ok {
		return state.dists[i], nil
	}

	ws := state.worlds()
	if len(ws) == 1 {
		v, err := projectValue(t, i, ws[0].a)
		if err != nil {
			return Distribution{}, fmt.Errorf("project %s under %s: %w", key, action, err)
		}
		return PointMass(v), nil
	}
	mass := make(map[int]float64)
	for _, pw := range ws {
		v, err := projectValue(t, i, pw.a)
		if err != nil {
			return Distribution{}, fmt.Errorf("project %s under %s: %w", key, action, err)
		}
		mass[v] += pw.p
	}
	return fromMass(mass), nil
}

// projectValue evaluates dynamics tree t for variable i at a.
func projectValue(t *Tree, i int, a Assignment) (int, error) {
	tr, err := evalTransform(t, a)
	if err != nil {
		return 0, err
	}
	return tr.Apply(a.vals[i], a)
}

// apply commits actions to a point world. Every affected variable is computed
// from the pre-action assignment, so simultaneous actions never observe each
// other's writes.
func (w *World) apply(a Assignment, actions ...Action) (Assignment, error) {
	next := a.clone()
	for _, act := range actions {
		for _, key := range w.writes[act] {
			i, err := a.vars.lookup(key)
			if err != nil {
				return Assignment{}, fmt.Errorf("apply %s: %w", act, err)
			}
			v, err := projectValue(w.dynamics[dynamicsKey{key: key, action: act}], i, a)
			if err != nil {
				return Assignment{}, fmt.Errorf("apply %s to %s: %w", act, key, err)
			}
			next.vals[i] = v
		}
	}
	return next, nil
}

// commit applies actions to every support world of pre and folds the result
// into the next distribution table.
func (w *World) commit(pre State, actions []Action) (State, error) {
	ws := pre.worlds()
	if len(ws) == 1 {
		next, err := w.apply(ws[0].a, actions...)
		if err != nil {
			return State{}, err
		}
		return next.State(), nil
	}
	for i := range ws {
		next, err := w.apply(ws[i].a, actions...)
		if err != nil {
			return State{}, err
		}
		ws[i].a = next
	}
	return marginalize(pre.vars, ws), nil
}
