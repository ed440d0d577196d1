package engine

import (
	"errors"
	"math"
	"testing"
)

func candidateValues(d Decision) map[string]float64 {
	out := make(map[string]float64, len(d.Candidates))
	for _, c := range d.Candidates {
		out[c.Action.Verb] = c.Value
	}
	return out
}

// TestSelectActionHorizonZero verifies depth 0 scores every candidate 0 and
// picks the first declared legal action.
func TestSelectActionHorizonZero(t *testing.T) {
	lw := newLineWorld(t, DefaultRules(), 5, 2, 0, 0)
	d, err := lw.agent.SelectAction(lw.w.State(), 0)
	must(t, err)
	if len(d.Candidates) != 2 {
		t.Fatalf("candidates = %v, want 2", d.Candidates)
	}
	for _, c := range d.Candidates {
		if c.Value != 0 {
			t.Errorf("%s value = %v, want 0", c.Action, c.Value)
		}
	}
	// Left is better with any lookahead; at depth 0 the tie goes to Right.
	if d.Action != lw.right || d.Value != 0 {
		t.Errorf("chose %s (%v), want A-Right (0)", d.Action, d.Value)
	}
	if _, err := lw.agent.SelectAction(lw.w.State(), -1); err == nil {
		t.Error("negative depth accepted")
	}
}

// TestSelectActionValues checks the recurrence on a short line.
func TestSelectActionValues(t *testing.T) {
	tests := []struct {
		start   int
		horizon int
		want    map[string]float64
		choose  string
	}{
		// Right: -2 + max(-1, -3). Left is off the board.
		{0, 2, map[string]float64{"Right": -3}, "Right"},
		// Right: -1 + 0 (goal reached). Left: -3 + -2.
		{1, 2, map[string]float64{"Right": -1, "Left": -5}, "Right"},
		{1, 1, map[string]float64{"Right": -1, "Left": -3}, "Right"},
		// Reaching the goal ends the lookahead.
		{2, 3, map[string]float64{"Right": 0, "Left": -2 + -1 + 0}, "Right"},
	}
	for _, tt := range tests {
		lw := newLineWorld(t, DefaultRules(), 3, tt.start, 3, tt.horizon)
		d, err := lw.agent.SelectAction(lw.w.State(), tt.horizon)
		must(t, err)
		got := candidateValues(d)
		if len(got) != len(tt.want) {
			t.Errorf("x=%d h=%d: candidates %v, want %v", tt.start, tt.horizon, got, tt.want)
			continue
		}
		for verb, v := range tt.want {
			if math.Abs(got[verb]-v) > 1e-9 {
				t.Errorf("x=%d h=%d: %s = %v, want %v", tt.start, tt.horizon, verb, got[verb], v)
			}
		}
		if d.Action.Verb != tt.choose || d.Value != got[tt.choose] {
			t.Errorf("x=%d h=%d: chose %s (%v), want %s", tt.start, tt.horizon, d.Action, d.Value, tt.choose)
		}
	}
}

// TestSelectActionNeverIllegal verifies an illegal action is never a
// candidate, whatever the horizon.
func TestSelectActionNeverIllegal(t *testing.T) {
	for h := 0; h <= 4; h++ {
		lw := newLineWorld(t, DefaultRules(), 5, 2, 5, h)
		// Right is the only way to the goal, and it is blocked here.
		must(t, lw.w.RegisterLegality(lw.right, If(Equal(lw.x, 2), False, True)))
		d, err := lw.agent.SelectAction(lw.w.State(), h)
		must(t, err)
		if d.Action == lw.right {
			t.Errorf("h=%d: chose illegal %s", h, d.Action)
		}
		for _, c := range d.Candidates {
			if c.Action == lw.right {
				t.Errorf("h=%d: illegal %s was scored", h, c.Action)
			}
		}
	}
}

// TestSelectActionTieBreak verifies equal values go to the earliest declared
// action regardless of horizon.
func TestSelectActionTieBreak(t *testing.T) {
	w, _ := quietWorld(DefaultRules())
	a, err := w.AddAgent("A", 3)
	must(t, err)
	must(t, w.DeclareVariable(Key("A", "x"), TypeInt, Unbounded(), PointMass(0)))
	for _, verb := range []string{"Wait", "Rest", "Idle"} {
		_, err := a.AddAction(verb)
		must(t, err)
	}
	for h := 0; h <= 3; h++ {
		for i := 0; i < 5; i++ {
			d, err := a.SelectAction(w.State(), h)
			must(t, err)
			if d.Action.Verb != "Wait" {
				t.Fatalf("h=%d: chose %s, want A-Wait", h, d.Action)
			}
		}
	}
}

// TestSelectActionMemoEquivalent verifies memoisation never changes a
// decision.
func TestSelectActionMemoEquivalent(t *testing.T) {
	memo := DefaultRules()
	plain := DefaultRules()
	plain.Memoize = false
	for start := 0; start <= 6; start++ {
		for h := 0; h <= 5; h++ {
			lm := newLineWorld(t, memo, 6, start, 4, h)
			lp := newLineWorld(t, plain, 6, start, 4, h)
			dm, err := lm.agent.SelectAction(lm.w.State(), h)
			must(t, err)
			dp, err := lp.agent.SelectAction(lp.w.State(), h)
			must(t, err)
			if dm.Action != dp.Action || dm.Value != dp.Value {
				t.Errorf("x=%d h=%d: memo %s (%v) != plain %s (%v)",
					start, h, dm.Action, dm.Value, dp.Action, dp.Value)
			}
		}
	}
}

// TestSelectActionNoLegalAction verifies an over-constrained agent errors.
func TestSelectActionNoLegalAction(t *testing.T) {
	lw := newLineWorld(t, DefaultRules(), 5, 2, 5, 2)
	must(t, lw.w.RegisterLegality(lw.right, False))
	must(t, lw.w.RegisterLegality(lw.left, False))

	_, err := lw.agent.SelectAction(lw.w.State(), 2)
	var nla *NoLegalActionError
	if !errors.As(err, &nla) || nla.Agent != "A" {
		t.Errorf("err = %v, want *NoLegalActionError for A", err)
	}
}

// TestSelectActionExpectation verifies candidates are scored by their
// expected value over the support worlds.
func TestSelectActionExpectation(t *testing.T) {
	lw := newLineWorld(t, DefaultRules(), 3, 0, 3, 1)
	d, _ := NewDistribution(map[int]float64{0: 0.5, 1: 0.5}, 1e-9)
	must(t, lw.w.SetDistribution(lw.x, d))

	dec, err := lw.agent.SelectAction(lw.w.State(), 1)
	must(t, err)
	// Left is illegal in the x=0 world; Right scores (-2 + -1) / 2.
	if len(dec.Candidates) != 1 || dec.Action != lw.right {
		t.Fatalf("candidates = %v, want only A-Right", dec.Candidates)
	}
	if math.Abs(dec.Value+1.5) > 1e-12 {
		t.Errorf("value = %v, want -1.5", dec.Value)
	}
}

// TestSelectActionValueRisesTowardGoal verifies that for a fixed horizon the
// chosen value never falls as the agent closes on the goal.
func TestSelectActionValueRisesTowardGoal(t *testing.T) {
	for h := 1; h <= 4; h++ {
		lw := newLineWorld(t, DefaultRules(), 8, 0, 8, h)
		prev := math.Inf(-1)
		for x := 0; x < 8; x++ {
			must(t, lw.w.SetValue(lw.x, x))
			d, err := lw.agent.SelectAction(lw.w.State(), h)
			must(t, err)
			if d.Action != lw.right {
				t.Errorf("h=%d x=%d: chose %s, want A-Right", h, x, d.Action)
			}
			if d.Value < prev {
				t.Errorf("h=%d x=%d: value %v fell below %v", h, x, d.Value, prev)
			}
			prev = d.Value
		}
	}
}
