package engine

import "fmt"

// CandidateValue is the lookahead value of one legal action.
type CandidateValue struct {
	Action Action
	Value  float64
}

// Decision is the outcome of one agent's lookahead.
type Decision struct {
	Agent      AgentID
	Action     Action
	Value      float64
	Candidates []CandidateValue // every legal action, declaration order
	Skipped    int              // reward-term evaluations skipped during search
	SkipErr    error            // first skipped-term error, for diagnostics
}

// SelectAction scores every action legal at state by lookahead to the given
// depth and returns the best one.
//
// The value of action a at point world s with d steps remaining is
//
//	Q(s, a, d) = 0                                  if d == 0
//	Q(s, a, d) = R(T(s, a)) + V(T(s, a), d-1)       otherwise
//	V(s, d)    = max over actions legal at s of Q(s, a, d)
//
// where V is 0 when d == 0, when s is terminal, or when nothing is legal at s.
// Value therefore accrues from one step after the decision point, and depth 0
// scores every candidate 0. Under a non-deterministic state a candidate's
// value is the expectation of Q over the support worlds. Other agents are
// treated as idle inside the projection.
//
// Ties go to the earliest declared action. The search is exhaustive:
// O(b^d) per decision for b legal actions, less when Rules.Memoize lets
// repeated (world, depth) pairs be reused.
func (a *Agent) SelectAction(state State, depth int) (Decision, error) {
	if depth < 0 {
		return Decision{}, fmt.Errorf("select action for %s: negative depth %d", a.id, depth)
	}
	w := a.world
	ws := state.worlds()
	legal, err := w.legalActions(a, ws)
	if err != nil {
		return Decision{}, fmt.Errorf("select action for %s: %w", a.id, err)
	}
	if len(legal) == 0 {
		return Decision{}, &NoLegalActionError{Agent: a.id, Step: w.stepIndex}
	}

	s := &search{w: w, agent: a}
	if w.rules.Memoize {
		s.memo = make(map[string]float64)
	}
	cands := make([]CandidateValue, len(legal))
	for i, act := range legal {
		var q float64
		for _, pw := range ws {
			v, err := s.q(pw.a, act, depth)
			if err != nil {
				return Decision{}, fmt.Errorf("select action for %s: %w", a.id, err)
			}
			q += pw.p * v
		}
		cands[i] = CandidateValue{Action: act, Value: q}
	}

	best := 0
	for i := 1; i < len(cands); i++ {
		if cands[i].Value > cands[best].Value {
			best = i
		}
	}
	return Decision{
		Agent:      a.id,
		Action:     cands[best].Action,
		Value:      cands[best].Value,
		Candidates: cands,
		Skipped:    s.skipped,
		SkipErr:    s.firstSkip,
	}, nil
}

// search holds the per-decision state of one lookahead.
type search struct {
	w         *World
	agent     *Agent
	memo      map[string]float64
	skipped   int
	firstSkip error
}

func (s *search) q(a Assignment, act Action, depth int) (float64, error) {
	if depth == 0 {
		return 0, nil
	}
	next, err := s.w.apply(a, act)
	if err != nil {
		return 0, err
	}
	r, skipped := s.agent.rewardAt(next)
	if len(skipped) > 0 {
		if s.firstSkip == nil {
			s.firstSkip = skipped[0]
		}
		s.skipped += len(skipped)
	}
	cont, err := s.value(next, depth-1)
	if err != nil {
		return 0, err
	}
	return r + cont, nil
}

func (s *search) value(a Assignment, depth int) (float64, error) {
	if depth == 0 {
		return 0, nil
	}
	term, err := s.w.terminalAt(a)
	if err != nil || term {
		return 0, err
	}

	var key string
	if s.memo != nil {
		key = a.memoKey(depth)
		if v, ok := s.memo[key]; ok {
			return v, nil
		}
	}

	var best float64
	found := false
	for _, act := range s.agent.actions {
		legal, err := s.w.legalAt(act, a)
		if err != nil {
			return 0, err
		}
		if !legal {
			continue
		}
		v, err := s.q(a, act, depth)
		if err != nil {
			return 0, err
		}
		if !found || v > best {
			best, found = v, true
		}
	}

	if s.memo != nil {
		s.memo[key] = best
	}
	return best, nil
}
