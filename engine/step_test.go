package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestStepRunsToGoal verifies a short episode commits, records history, and
// terminates.
func TestStepRunsToGoal(t *testing.T) {
	lw := newLineWorld(t, DefaultRules(), 5, 0, 3, 2)
	results, err := lw.w.Run(context.Background(), 0)
	must(t, err)
	if len(results) != 3 {
		t.Fatalf("ran %d steps, want 3", len(results))
	}
	for i, r := range results {
		if r.Step != i+1 {
			t.Errorf("result %d: Step = %d", i, r.Step)
		}
		if got := r.Actions(); len(got) != 1 || got[0] != lw.right {
			t.Errorf("step %d: actions %v, want [A-Right]", r.Step, got)
		}
		if r.Terminal != (i == 2) {
			t.Errorf("step %d: Terminal = %v", r.Step, r.Terminal)
		}
	}
	if got := lw.pos(t); got != 3 {
		t.Errorf("x = %d, want 3", got)
	}
	if !lw.w.IsTerminated() || lw.w.StepIndex() != 3 {
		t.Errorf("terminated = %v, steps = %d", lw.w.IsTerminated(), lw.w.StepIndex())
	}
	if h := lw.w.History(); len(h) != 4 {
		t.Errorf("history = %d states, want 4", len(h))
	} else if x0, _ := h[0].Value(lw.x); x0 != 0 {
		t.Errorf("history[0] x = %d, want 0", x0)
	}
	if _, err := lw.w.Step(); !errors.Is(err, ErrTerminated) {
		t.Errorf("Step after end: err = %v, want ErrTerminated", err)
	}
}

// TestStepInitiallyTerminal verifies a world starting at its goal never
// steps.
func TestStepInitiallyTerminal(t *testing.T) {
	lw := newLineWorld(t, DefaultRules(), 5, 3, 3, 2)
	if _, err := lw.w.Step(); !errors.Is(err, ErrTerminated) {
		t.Errorf("err = %v, want ErrTerminated", err)
	}
	results, err := lw.w.Run(context.Background(), 0)
	if err != nil || len(results) != 0 {
		t.Errorf("Run = %d results, %v", len(results), err)
	}
}

// TestIsTerminalIdempotent verifies termination is a pure function of state.
func TestIsTerminalIdempotent(t *testing.T) {
	lw := newLineWorld(t, DefaultRules(), 5, 3, 3, 2)
	s := lw.w.State()
	for i := 0; i < 3; i++ {
		term, err := lw.w.IsTerminal(s)
		must(t, err)
		if !term {
			t.Fatalf("call %d: IsTerminal = false", i)
		}
	}
	must(t, lw.w.SetValue(lw.x, 2))
	if term, _ := lw.w.IsTerminal(lw.w.State()); term {
		t.Error("x=2: IsTerminal = true")
	}
	if term, _ := lw.w.IsTerminal(s); !term {
		t.Error("old snapshot no longer terminal")
	}
}

// TestStepParallelSnapshot verifies agents in one group see the pre-step
// state, not each other's writes.
func TestStepParallelSnapshot(t *testing.T) {
	w, a, b := twoAgentWorld(t)
	follow, err := a.AddAction("Follow")
	must(t, err)
	advance, err := b.AddAction("Advance")
	must(t, err)
	must(t, w.RegisterDynamics(Key("A", "x"), follow, CopyFrom(Key("B", "x"))))
	must(t, w.RegisterDynamics(Key("B", "x"), advance, Increment(1)))
	must(t, w.SetTurnOrder(Parallel("all", "A", "B")))

	r, err := w.Step()
	must(t, err)
	if r.Group != "all" || len(r.Decisions) != 2 {
		t.Fatalf("group %q with %d decisions", r.Group, len(r.Decisions))
	}
	ax, _ := w.Value(Key("A", "x"))
	bx, _ := w.Value(Key("B", "x"))
	if ax != 5 || bx != 6 {
		t.Errorf("A.x, B.x = %d, %d, want 5, 6", ax, bx)
	}
}

// TestStepParallelWorkerLimit verifies a bounded search pool gives the same
// result.
func TestStepParallelWorkerLimit(t *testing.T) {
	w, a, b := twoAgentWorld(t)
	w.rules.SearchWorkers = 1
	must(t, a.SetHorizon(2))
	must(t, b.SetHorizon(2))
	ax, bx := Key("A", "x"), Key("B", "x")
	for _, ag := range []*Agent{a, b} {
		up, err := ag.AddAction("Up")
		must(t, err)
		down, err := ag.AddAction("Down")
		must(t, err)
		key := Key(ag.ID(), "x")
		must(t, w.RegisterDynamics(key, up, Increment(1)))
		must(t, w.RegisterDynamics(key, down, Increment(-1)))
	}
	must(t, w.RegisterRewardTerm("A", Maximize(ax), 1))
	must(t, w.RegisterRewardTerm("B", Minimize(bx), 1))
	must(t, w.SetTurnOrder(Parallel("all", "A", "B")))

	results, err := w.Run(context.Background(), 3)
	must(t, err)
	if len(results) != 3 {
		t.Fatalf("ran %d steps, want 3", len(results))
	}
	av, _ := w.Value(ax)
	bv, _ := w.Value(bx)
	if av != 3 || bv != 2 {
		t.Errorf("A.x, B.x = %d, %d, want 3, 2", av, bv)
	}
}

// TestStepNoLegalAction verifies the error reaches the caller and nothing is
// committed.
func TestStepNoLegalAction(t *testing.T) {
	lw := newLineWorld(t, DefaultRules(), 5, 2, 5, 2)
	must(t, lw.w.RegisterLegality(lw.right, False))
	must(t, lw.w.RegisterLegality(lw.left, False))

	_, err := lw.w.Step()
	var nla *NoLegalActionError
	if !errors.As(err, &nla) {
		t.Fatalf("err = %v, want *NoLegalActionError", err)
	}
	if lw.w.StepIndex() != 0 || lw.pos(t) != 2 || len(lw.w.History()) != 0 {
		t.Error("state changed after a failed step")
	}
	if _, err := lw.w.Run(context.Background(), 0); !errors.As(err, &nla) {
		t.Errorf("Run: err = %v, want *NoLegalActionError", err)
	}
}

// TestStepWithoutAgents verifies an empty world refuses to step.
func TestStepWithoutAgents(t *testing.T) {
	w, _ := quietWorld(DefaultRules())
	if _, err := w.Step(); err == nil {
		t.Error("Step on an empty world succeeded")
	}
}

// TestRunLimits covers the step cap and cancellation.
func TestRunLimits(t *testing.T) {
	rules := DefaultRules()
	rules.MaxSteps = 4
	lw := newLineWorld(t, rules, 5, 0, 5, 1)
	must(t, lw.w.SetTermination(nil))

	results, err := lw.w.Run(context.Background(), 0)
	must(t, err)
	if len(results) != 4 {
		t.Errorf("Rules.MaxSteps: ran %d steps, want 4", len(results))
	}
	results, err = lw.w.Run(context.Background(), 1)
	must(t, err)
	if len(results) != 1 {
		t.Errorf("maxSteps=1: ran %d steps, want 1", len(results))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err = lw.w.Run(ctx, 0)
	if !errors.Is(err, context.Canceled) || len(results) != 0 {
		t.Errorf("cancelled: %d results, err = %v", len(results), err)
	}
}

// TestStepLogsSkippedTerms verifies skipped reward terms surface in the
// decision and the log.
func TestStepLogsSkippedTerms(t *testing.T) {
	w, hook := quietWorld(DefaultRules())
	a, err := w.AddAgent("A", 2)
	must(t, err)
	x := Key("A", "x")
	must(t, w.DeclareVariable(x, TypeInt, Unbounded(), PointMass(0)))
	inc, err := a.AddAction("Inc")
	must(t, err)
	must(t, w.RegisterDynamics(x, inc, Increment(1)))
	must(t, w.RegisterRewardTerm("A", failingTerm{key: x}, 1))
	must(t, w.RegisterRewardTerm("A", Maximize(x), 1))

	r, err := w.Step()
	must(t, err)
	d := r.Decisions[0]
	if d.Skipped == 0 || d.SkipErr == nil {
		t.Errorf("Skipped = %d, SkipErr = %v", d.Skipped, d.SkipErr)
	}
	// 1 + 2 from Maximize alone.
	if d.Value != 3 {
		t.Errorf("value = %v, want 3", d.Value)
	}

	var warned, debugged bool
	for _, e := range hook.AllEntries() {
		switch e.Level {
		case logrus.WarnLevel:
			warned = e.Data["agent"] == AgentID("A")
		case logrus.DebugLevel:
			debugged = e.Data["step"] == 1
		}
	}
	if !warned || !debugged {
		t.Errorf("warned = %v, debugged = %v", warned, debugged)
	}
}

// TestExplain verifies the trace at each verbosity.
func TestExplain(t *testing.T) {
	lw := newLineWorld(t, DefaultRules(), 5, 1, 3, 2)
	r, err := lw.w.Step()
	must(t, err)

	brief := Explain(r, ExplainActions)
	if !strings.Contains(brief, "A chooses A-Right") || strings.Contains(brief, "A-Left") {
		t.Errorf("ExplainActions:\n%s", brief)
	}
	values := Explain(r, ExplainValues)
	if !strings.Contains(values, "* A-Right") || !strings.Contains(values, "A-Left") {
		t.Errorf("ExplainValues:\n%s", values)
	}
	full := Explain(r, ExplainState)
	if !strings.Contains(full, "A's x = 2") || !strings.Contains(full, "A's goal = 3") {
		t.Errorf("ExplainState:\n%s", full)
	}
}
