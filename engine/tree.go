package engine

import (
	"fmt"
	"math"
	"strings"
)

// leafKind tags the terminal stored in a leaf.
type leafKind uint8

const (
	leafNone      leafKind = iota // 0: empty leaf, malformed
	leafBool                      // 1: legality and termination trees
	leafTransform                 // 2: dynamics trees
)

func (k leafKind) String() string {
	switch k {
	case leafBool:
		return "boolean"
	case leafTransform:
		return "transform"
	default:
		return "empty"
	}
}

// TransformKind selects how a dynamics leaf updates a variable.
type TransformKind uint8

const (
	TransformIdentity  TransformKind = iota // 0: keep the current value
	TransformIncrement                      // 1: add N
	TransformSet                            // 2: set to N
	TransformCopy                           // 3: copy the value of Source
)

// Transform is the value update produced by a dynamics tree leaf.
type Transform struct {
	Kind   TransformKind
	N      int
	Source StateKey
}

// Apply returns the post-action value of a variable whose current value is
// current. Source values are read from v.
func (t Transform) Apply(current int, v Valuation) (int, error) {
	switch t.Kind {
	case TransformIdentity:
		return current, nil
	case TransformIncrement:
		if (t.N > 0 && current > math.MaxInt-t.N) || (t.N < 0 && current < math.MinInt-t.N) {
			return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, current, t.N)
		}
		return current + t.N, nil
	case TransformSet:
		return t.N, nil
	case TransformCopy:
		return v.Value(t.Source)
	}
	return 0, fmt.Errorf("unknown transform kind %d", t.Kind)
}

func (t Transform) String() string {
	switch t.Kind {
	case TransformIdentity:
		return "unchanged"
	case TransformIncrement:
		return fmt.Sprintf("%+d", t.N)
	case TransformSet:
		return fmt.Sprintf("= %d", t.N)
	case TransformCopy:
		return fmt.Sprintf("= %s", t.Source)
	}
	return fmt.Sprintf("Transform(%d)", t.Kind)
}

// Result is the terminal a tree evaluates to.
type Result struct {
	kind leafKind
	b    bool
	t    Transform
}

// Bool returns the boolean terminal; ok is false for transform results.
func (r Result) Bool() (b, ok bool) { return r.b, r.kind == leafBool }

// Transform returns the transform terminal; ok is false for boolean results.
func (r Result) Transform() (t Transform, ok bool) { return r.t, r.kind == leafTransform }

func (r Result) String() string {
	switch r.kind {
	case leafBool:
		return fmt.Sprintf("%t", r.b)
	case leafTransform:
		return r.t.String()
	}
	return "<empty>"
}

// Tree is an immutable binary decision tree: either a branch holding a
// predicate and two children, or a leaf holding a terminal. Trees are built
// bottom-up from existing trees and may share subtrees.
type Tree struct {
	pred    Predicate
	onTrue  *Tree
	onFalse *Tree
	leaf    Result
}

// If returns a branch that follows onTrue when p holds and onFalse otherwise.
func If(p Predicate, onTrue, onFalse *Tree) *Tree {
	return &Tree{pred: p, onTrue: onTrue, onFalse: onFalse}
}

// BoolLeaf returns a leaf holding b.
func BoolLeaf(b bool) *Tree { return &Tree{leaf: Result{kind: leafBool, b: b}} }

// True and False are shared boolean leaves.
var (
	True  = BoolLeaf(true)
	False = BoolLeaf(false)
)

// Increment returns a dynamics leaf adding k to the variable.
func Increment(k int) *Tree { return transformLeaf(Transform{Kind: TransformIncrement, N: k}) }

// SetTo returns a dynamics leaf setting the variable to c.
func SetTo(c int) *Tree { return transformLeaf(Transform{Kind: TransformSet, N: c}) }

// CopyFrom returns a dynamics leaf setting the variable to the value of src.
func CopyFrom(src StateKey) *Tree { return transformLeaf(Transform{Kind: TransformCopy, Source: src}) }

// Identity returns a dynamics leaf leaving the variable unchanged.
func Identity() *Tree { return transformLeaf(Transform{Kind: TransformIdentity}) }

func transformLeaf(t Transform) *Tree { return &Tree{leaf: Result{kind: leafTransform, t: t}} }

// IsLeaf reports whether t is a leaf.
func (t *Tree) IsLeaf() bool { return t.pred == nil }

func (t *Tree) String() string {
	var b strings.Builder
	t.write(&b, 0)
	return strings.TrimRight(b.String(), "\n")
}

func (t *Tree) write(b *strings.Builder, indent int) {
	pad := strings.Repeat("  ", indent)
	if t == nil {
		b.WriteString(pad + "<nil>\n")
		return
	}
	if t.IsLeaf() {
		b.WriteString(pad + t.leaf.String() + "\n")
		return
	}
	fmt.Fprintf(b, "%sif %s:\n", pad, t.pred)
	t.onTrue.write(b, indent+1)
	b.WriteString(pad + "else:\n")
	t.onFalse.write(b, indent+1)
}

// validateTree checks that every path of t ends in a leaf of kind want, that
// every predicate and copy source names a declared variable, and that t is a
// finite DAG. Shared subtrees are visited once; only the active path is
// tracked for cycles.
func validateTree(t *Tree, want leafKind, binding string, declared func(StateKey) bool) error {
	onPath := make(map[*Tree]bool)
	done := make(map[*Tree]bool)

	var walk func(n *Tree) error
	walk = func(n *Tree) error {
		if n == nil {
			return &MalformedTreeError{Binding: binding, Reason: "nil subtree"}
		}
		if onPath[n] {
			return &MalformedTreeError{Binding: binding, Reason: "subtree is its own ancestor", Err: ErrCyclicTree}
		}
		if done[n] {
			return nil
		}
		if n.IsLeaf() {
			if n.leaf.kind != want {
				return &MalformedTreeError{Binding: binding, Reason: fmt.Sprintf("%s leaf where %s leaf expected", n.leaf.kind, want)}
			}
			if tr, ok := n.leaf.Transform(); ok && tr.Kind == TransformCopy && !declared(tr.Source) {
				return &MalformedTreeError{Binding: binding, Reason: "copy source is undeclared", Key: tr.Source}
			}
			done[n] = true
			return nil
		}
		if key, err := checkPredicate(n.pred, declared); err != nil {
			return &MalformedTreeError{Binding: binding, Reason: "bad predicate", Key: key, Err: err}
		}
		onPath[n] = true
		if err := walk(n.onTrue); err != nil {
			return err
		}
		if err := walk(n.onFalse); err != nil {
			return err
		}
		delete(onPath, n)
		done[n] = true
		return nil
	}
	return walk(t)
}
