package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// StepResult reports one committed step.
type StepResult struct {
	Step      int        // 1-based index of the committed step
	Group     string     // turn group that acted
	Decisions []Decision // one per acting agent, group order
	State     State      // committed post-step state
	Terminal  bool
}

// Actions returns the committed actions in group order.
func (r StepResult) Actions() []Action {
	out := make([]Action, len(r.Decisions))
	for i, d := range r.Decisions {
		out[i] = d.Action
	}
	return out
}

// Step advances the world by one step: the scheduled agents decide against
// the same pre-step snapshot, their effects are combined and committed as one
// table replacement, and termination is checked against the new state.
//
// The initial state is checked for termination before the first step; a
// world that starts terminal returns ErrTerminated.
func (w *World) Step() (StepResult, error) {
	if w.terminated {
		return StepResult{}, ErrTerminated
	}
	if len(w.agents) == 0 {
		return StepResult{}, fmt.Errorf("step: no agents")
	}
	pre := w.state
	if w.stepIndex == 0 {
		term, err := w.IsTerminal(pre)
		if err != nil {
			return StepResult{}, fmt.Errorf("step: %w", err)
		}
		if term {
			w.terminated = true
			return StepResult{}, ErrTerminated
		}
	}

	group := w.TurnOrder().group(w.stepIndex)
	decisions, err := w.decide(group, pre)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %d: %w", w.stepIndex+1, err)
	}
	actions := make([]Action, len(decisions))
	for i, d := range decisions {
		actions[i] = d.Action
	}

	post, err := w.commit(pre, actions)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %d: commit: %w", w.stepIndex+1, err)
	}
	term, err := w.IsTerminal(post)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %d: %w", w.stepIndex+1, err)
	}

	if len(w.history) == 0 {
		w.history = append(w.history, pre)
	}
	w.history = append(w.history, post)
	w.state = post
	w.stepIndex++
	w.terminated = term

	for _, d := range decisions {
		if d.Skipped > 0 {
			w.log.WithFields(logrus.Fields{
				"step":    w.stepIndex,
				"agent":   d.Agent,
				"skipped": d.Skipped,
			}).WithError(d.SkipErr).Warn("reward terms skipped during lookahead")
		}
	}
	w.log.WithFields(logrus.Fields{
		"step":     w.stepIndex,
		"group":    group.Name,
		"actions":  actions,
		"terminal": term,
	}).Debug("step committed")

	return StepResult{
		Step:      w.stepIndex,
		Group:     group.Name,
		Decisions: decisions,
		State:     post,
		Terminal:  term,
	}, nil
}

// decide runs the lookahead of every agent in group against pre. Searches of
// a parallel group run concurrently; pre is immutable for their duration.
func (w *World) decide(group TurnGroup, pre State) ([]Decision, error) {
	decisions := make([]Decision, len(group.Agents))
	if len(group.Agents) == 1 {
		agent := w.agents[group.Agents[0]]
		d, err := agent.SelectAction(pre, agent.horizon)
		if err != nil {
			return nil, err
		}
		decisions[0] = d
		return decisions, nil
	}

	var g errgroup.Group
	if w.rules.SearchWorkers > 0 {
		g.SetLimit(w.rules.SearchWorkers)
	}
	for i, id := range group.Agents {
		agent := w.agents[id]
		g.Go(func() error {
			d, err := agent.SelectAction(pre, agent.horizon)
			if err != nil {
				return err
			}
			decisions[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}

// Run steps until the episode terminates, maxSteps steps have been committed,
// or ctx is done. maxSteps <= 0 falls back to Rules.MaxSteps, where 0 means
// unlimited. A world already terminal before the first step returns no
// results and no error.
func (w *World) Run(ctx context.Context, maxSteps int) ([]StepResult, error) {
	if maxSteps <= 0 {
		maxSteps = w.rules.MaxSteps
	}
	var results []StepResult
	for !w.terminated && (maxSteps <= 0 || len(results) < maxSteps) {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r, err := w.Step()
		if errors.Is(err, ErrTerminated) {
			break
		}
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}
