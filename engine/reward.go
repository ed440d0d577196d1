package engine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// RewardTerm is one additive component of an agent's reward. Contribution
// returns the unweighted value of the term at a point world.
type RewardTerm interface {
	Keys() []StateKey
	Contribution(v Valuation) (float64, error)
	String() string
}

// WeightedTerm is a reward term scaled by its weight.
type WeightedTerm struct {
	Term   RewardTerm
	Weight float64
}

type difference struct{ a, b StateKey }

// Difference rewards closeness of a and b: -|a - b|. It is the
// distance-to-goal term of a maze.
func Difference(a, b StateKey) RewardTerm { return difference{a: a, b: b} }

func (t difference) Keys() []StateKey { return []StateKey{t.a, t.b} }

func (t difference) Contribution(v Valuation) (float64, error) {
	x, err := v.Value(t.a)
	if err != nil {
		return 0, err
	}
	y, err := v.Value(t.b)
	if err != nil {
		return 0, err
	}
	d := x - y
	if (y > 0 && d > x) || (y < 0 && d < x) || d == math.MinInt {
		return 0, fmt.Errorf("%w: |%d - %d|", ErrOverflow, x, y)
	}
	if d < 0 {
		d = -d
	}
	return -float64(d), nil
}

func (t difference) String() string { return fmt.Sprintf("minimize |%s - %s|", t.a, t.b) }

type maximize struct{ key StateKey }

// Maximize rewards the value of key.
func Maximize(key StateKey) RewardTerm { return maximize{key: key} }

func (t maximize) Keys() []StateKey { return []StateKey{t.key} }

func (t maximize) Contribution(v Valuation) (float64, error) {
	x, err := v.Value(t.key)
	return float64(x), err
}

func (t maximize) String() string { return fmt.Sprintf("maximize %s", t.key) }

type minimize struct{ key StateKey }

// Minimize rewards the negated value of key.
func Minimize(key StateKey) RewardTerm { return minimize{key: key} }

func (t minimize) Keys() []StateKey { return []StateKey{t.key} }

func (t minimize) Contribution(v Valuation) (float64, error) {
	x, err := v.Value(t.key)
	return -float64(x), err
}

func (t minimize) String() string { return fmt.Sprintf("minimize %s", t.key) }

type achieve struct {
	key StateKey
	c   int
}

// Achieve contributes 1 when key equals c and 0 otherwise.
func Achieve(key StateKey, c int) RewardTerm { return achieve{key: key, c: c} }

func (t achieve) Keys() []StateKey { return []StateKey{t.key} }

func (t achieve) Contribution(v Valuation) (float64, error) {
	x, err := v.Value(t.key)
	if err != nil || x != t.c {
		return 0, err
	}
	return 1, nil
}

func (t achieve) String() string { return fmt.Sprintf("achieve %s == %d", t.key, t.c) }

// RegisterRewardTerm appends a weighted term to an agent's reward model.
func (w *World) RegisterRewardTerm(id AgentID, term RewardTerm, weight float64) error {
	agent, ok := w.agents[id]
	if !ok {
		return fmt.Errorf("register reward term: %w: %s", ErrUnknownAgent, id)
	}
	if term == nil {
		return fmt.Errorf("register reward term for %s: nil term", id)
	}
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("register reward term for %s: weight %v is not finite", id, weight)
	}
	for _, k := range term.Keys() {
		if !w.declared(k) {
			return fmt.Errorf("register reward term %q for %s: %w: %s", term, id, ErrUnknownVariable, k)
		}
	}
	agent.reward = append(agent.reward, WeightedTerm{Term: term, Weight: weight})
	return nil
}

// Reward returns the agent's expected reward at state.
func (w *World) Reward(id AgentID, state State) (float64, error) {
	agent, ok := w.agents[id]
	if !ok {
		return 0, fmt.Errorf("reward: %w: %s", ErrUnknownAgent, id)
	}
	var total float64
	for _, pw := range state.worlds() {
		r, skipped := agent.rewardAt(pw.a)
		for _, err := range skipped {
			w.log.WithField("agent", id).WithError(err).Warn("reward term skipped")
		}
		total += pw.p * r
	}
	return total, nil
}

// rewardAt sums the weighted terms at a point world. A term that fails
// contributes zero and is reported in skipped.
func (a *Agent) rewardAt(v Valuation) (r float64, skipped []error) {
	if len(a.reward) == 0 {
		return 0, nil
	}
	contrib := make([]float64, 0, len(a.reward))
	for _, wt := range a.reward {
		c, err := wt.Term.Contribution(v)
		if err == nil {
			c *= wt.Weight
			if math.IsNaN(c) || math.IsInf(c, 0) {
				err = fmt.Errorf("%w: %s weighted by %v", ErrOverflow, wt.Term, wt.Weight)
			}
		}
		if err != nil {
			skipped = append(skipped, fmt.Errorf("%s: %w", wt.Term, err))
			continue
		}
		contrib = append(contrib, c)
	}
	return floats.Sum(contrib), skipped
}
