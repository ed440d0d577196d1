package engine

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// Outcome is one support point of a Distribution.
type Outcome struct {
	Value int
	Prob  float64
}

// Distribution is an immutable discrete distribution over int values. The
// support is sorted by value and holds no zero-probability entries.
type Distribution struct {
	support []Outcome
}

// PointMass returns the deterministic distribution on v.
func PointMass(v int) Distribution {
	return Distribution{support: []Outcome{{Value: v, Prob: 1}}}
}

// NewDistribution builds a distribution from a value→probability map.
// Probabilities must be finite, non-negative, and sum to 1 within tol.
func NewDistribution(probs map[int]float64, tol float64) (Distribution, error) {
	if len(probs) == 0 {
		return Distribution{}, fmt.Errorf("%w: empty support", ErrInvalidDistribution)
	}
	values := make([]int, 0, len(probs))
	ps := make([]float64, 0, len(probs))
	for v := range probs {
		values = append(values, v)
	}
	sort.Ints(values)
	for _, v := range values {
		p := probs[v]
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return Distribution{}, fmt.Errorf("%w: probability %v for value %d", ErrInvalidDistribution, p, v)
		}
		ps = append(ps, p)
	}
	if sum := floats.Sum(ps); !scalar.EqualWithinAbs(sum, 1, tol) {
		return Distribution{}, fmt.Errorf("%w: probabilities sum to %v", ErrInvalidDistribution, sum)
	}
	return fromSorted(values, ps), nil
}

// fromSorted builds a distribution from parallel sorted slices, dropping zero
// entries. Mass is not renormalised.
func fromSorted(values []int, ps []float64) Distribution {
	support := make([]Outcome, 0, len(values))
	for i, v := range values {
		if ps[i] == 0 {
			continue
		}
		support = append(support, Outcome{Value: v, Prob: ps[i]})
	}
	return Distribution{support: support}
}

// fromMass builds a distribution from accumulated probability mass.
func fromMass(mass map[int]float64) Distribution {
	if len(mass) == 1 {
		for v := range mass {
			return PointMass(v)
		}
	}
	values := make([]int, 0, len(mass))
	for v := range mass {
		values = append(values, v)
	}
	sort.Ints(values)
	ps := make([]float64, len(values))
	for i, v := range values {
		ps[i] = mass[v]
	}
	return fromSorted(values, ps)
}

// IsZero reports whether d is the zero Distribution (no support).
func (d Distribution) IsZero() bool { return len(d.support) == 0 }

// Len returns the number of support points.
func (d Distribution) Len() int { return len(d.support) }

// Support returns a copy of the support, sorted by value.
func (d Distribution) Support() []Outcome { return slices.Clone(d.support) }

// Point returns the single value of a deterministic distribution.
func (d Distribution) Point() (int, bool) {
	if len(d.support) != 1 {
		return 0, false
	}
	return d.support[0].Value, true
}

// Prob returns the probability of v.
func (d Distribution) Prob(v int) float64 {
	i, ok := slices.BinarySearchFunc(d.support, v, func(o Outcome, v int) int { return cmp.Compare(o.Value, v) })
	if !ok {
		return 0
	}
	return d.support[i].Prob
}

// Expectation returns the mean value.
func (d Distribution) Expectation() float64 {
	vs := make([]float64, len(d.support))
	ps := make([]float64, len(d.support))
	for i, o := range d.support {
		vs[i] = float64(o.Value)
		ps[i] = o.Prob
	}
	return floats.Dot(vs, ps)
}

// Equal reports whether d and o share a support with probabilities within tol.
func (d Distribution) Equal(o Distribution, tol float64) bool {
	if len(d.support) != len(o.support) {
		return false
	}
	for i := range d.support {
		if d.support[i].Value != o.support[i].Value {
			return false
		}
		if !scalar.EqualWithinAbs(d.support[i].Prob, o.support[i].Prob, tol) {
			return false
		}
	}
	return true
}

func (d Distribution) String() string {
	if v, ok := d.Point(); ok {
		return fmt.Sprintf("%d", v)
	}
	parts := make([]string, len(d.support))
	for i, o := range d.support {
		parts[i] = fmt.Sprintf("%d: %.3f", o.Value, o.Prob)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
