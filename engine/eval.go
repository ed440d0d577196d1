package engine

import "fmt"

// Evaluate descends t against v, following the branch selected by each
// predicate, and returns the terminal of the leaf reached. It has no side
// effects. Evaluating against a State requires the variables the tree reads to
// be deterministic.
func Evaluate(t *Tree, v Valuation) (Result, error) {
	for {
		if t == nil {
			return Result{}, fmt.Errorf("evaluate: nil subtree")
		}
		if t.IsLeaf() {
			if t.leaf.kind == leafNone {
				return Result{}, fmt.Errorf("evaluate: empty leaf")
			}
			return t.leaf, nil
		}
		ok, err := t.pred.Test(v)
		if err != nil {
			return Result{}, fmt.Errorf("evaluate %q: %w", t.pred, err)
		}
		if ok {
			t = t.onTrue
		} else {
			t = t.onFalse
		}
	}
}

// evalBool evaluates a legality or termination tree.
func evalBool(t *Tree, v Valuation) (bool, error) {
	r, err := Evaluate(t, v)
	if err != nil {
		return false, err
	}
	b, ok := r.Bool()
	if !ok {
		return false, fmt.Errorf("evaluate: expected boolean leaf, got %s", r)
	}
	return b, nil
}

// evalTransform evaluates a dynamics tree.
func evalTransform(t *Tree, v Valuation) (Transform, error) {
	r, err := Evaluate(t, v)
	if err != nil {
		return Transform{}, err
	}
	tr, ok := r.Transform()
	if !ok {
		return Transform{}, fmt.Errorf("evaluate: expected transform leaf, got %s", r)
	}
	return tr, nil
}
