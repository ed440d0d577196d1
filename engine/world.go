// Package engine implements a decision-theoretic multiagent simulation engine.
//
// A World holds typed state variables as discrete distributions together with
// the decision trees that encode dynamics, action legality, and episode
// termination. Each step, the agents scheduled by the turn order pick an
// action by exhaustive horizon-limited lookahead over those trees and their
// reward models, and the World commits the chosen effects as one atomic
// replacement of the distribution table.
//
// A World is an explicitly owned value: nothing in this package is global, so
// independent worlds may run side by side. A World is not safe for concurrent
// mutation; lookahead only reads immutable State snapshots.
package engine

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
)

// dynamicsKey binds a dynamics tree to one variable and one action.
type dynamicsKey struct {
	key    StateKey
	action Action
}

// World is the single source of truth for current state and the registry of
// every tree, agent, and the turn order.
type World struct {
	rules Rules
	log   logrus.FieldLogger

	vars    *varIndex
	state   State
	history []State

	dynamics    map[dynamicsKey]*Tree
	writes      map[Action][]StateKey // variables each action's dynamics target, registration order
	legality    map[Action]*Tree
	termination *Tree

	agents     map[AgentID]*Agent
	agentOrder []AgentID
	order      TurnOrder

	stepIndex  int
	terminated bool
}

// NewWorld returns an empty world using rules.
func NewWorld(rules Rules) *World {
	vars := newVarIndex()
	return &World{
		rules:    rules,
		log:      logrus.StandardLogger(),
		vars:     vars,
		state:    State{vars: vars},
		dynamics: make(map[dynamicsKey]*Tree),
		writes:   make(map[Action][]StateKey),
		legality: make(map[Action]*Tree),
		agents:   make(map[AgentID]*Agent),
	}
}

// SetLogger replaces the logger used for step diagnostics.
func (w *World) SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	w.log = l
}

// Rules returns the world's engine settings.
func (w *World) Rules() Rules { return w.rules }

// declared reports whether key names a declared variable.
func (w *World) declared(key StateKey) bool {
	_, ok := w.vars.pos[key]
	return ok
}

// DeclareVariable adds a variable with its type, domain, and initial
// distribution. Agent-scoped variables require the agent to exist. Boolean
// variables always use the domain [0, 1].
func (w *World) DeclareVariable(key StateKey, typ VarType, dom Domain, initial Distribution) error {
	if key.Name == "" {
		return fmt.Errorf("declare variable: empty name")
	}
	if w.declared(key) {
		return fmt.Errorf("declare variable %s: already declared", key)
	}
	if key.Agent != "" {
		if _, ok := w.agents[key.Agent]; !ok {
			return fmt.Errorf("declare variable %s: %w", key, ErrUnknownAgent)
		}
	}
	switch typ {
	case TypeInt:
	case TypeBool:
		dom = Bounded(0, 1)
	default:
		return fmt.Errorf("declare variable %s: unknown type %s", key, typ)
	}
	if dom.Bounded && dom.Min > dom.Max {
		return fmt.Errorf("declare variable %s: empty domain %s", key, dom)
	}
	if err := checkInDomain(key, dom, initial); err != nil {
		return fmt.Errorf("declare variable: %w", err)
	}

	w.vars = w.vars.with(Variable{Key: key, Type: typ, Domain: dom})
	w.state = State{vars: w.vars, dists: append(slices.Clone(w.state.dists), initial)}
	return nil
}

func checkInDomain(key StateKey, dom Domain, d Distribution) error {
	if d.IsZero() {
		return fmt.Errorf("%s: %w: empty support", key, ErrInvalidDistribution)
	}
	for _, o := range d.support {
		if !dom.Contains(o.Value) {
			return fmt.Errorf("%s: value %d outside domain %s", key, o.Value, dom)
		}
	}
	return nil
}

// Variable returns the declaration of key.
func (w *World) Variable(key StateKey) (Variable, bool) {
	i, ok := w.vars.pos[key]
	if !ok {
		return Variable{}, false
	}
	return w.vars.vars[i], true
}

// SetValue sets key to the point mass on v.
func (w *World) SetValue(key StateKey, v int) error {
	return w.SetDistribution(key, PointMass(v))
}

// SetDistribution replaces the distribution of key.
func (w *World) SetDistribution(key StateKey, d Distribution) error {
	i, err := w.vars.lookup(key)
	if err != nil {
		return fmt.Errorf("set distribution: %w", err)
	}
	if err := checkInDomain(key, w.vars.vars[i].Domain, d); err != nil {
		return fmt.Errorf("set distribution: %w", err)
	}
	w.state = w.state.with(i, d)
	return nil
}

// Distribution returns the current distribution of key.
func (w *World) Distribution(key StateKey) (Distribution, error) {
	return w.state.Distribution(key)
}

// Value returns the current point value of key.
func (w *World) Value(key StateKey) (int, error) {
	return w.state.Value(key)
}

// State returns the current state snapshot.
func (w *World) State() State { return w.state }

// History returns the committed trajectory: the state before the first step
// followed by the state after each committed step.
func (w *World) History() []State { return slices.Clone(w.history) }

// StepIndex returns the number of committed steps.
func (w *World) StepIndex() int { return w.stepIndex }
