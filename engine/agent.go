package engine

import (
	"fmt"
	"slices"
)

// Agent is a decision maker: an identifier, a lookahead horizon, ordered
// candidate actions, and a reward model. Agents read the World and propose
// actions; only the World commits them.
type Agent struct {
	id      AgentID
	horizon int
	actions []Action
	reward  []WeightedTerm
	world   *World
}

// AddAgent registers a new agent with the given horizon.
func (w *World) AddAgent(id AgentID, horizon int) (*Agent, error) {
	if id == "" {
		return nil, fmt.Errorf("add agent: empty id")
	}
	if _, ok := w.agents[id]; ok {
		return nil, fmt.Errorf("add agent %s: already exists", id)
	}
	if horizon < 0 {
		return nil, fmt.Errorf("add agent %s: negative horizon %d", id, horizon)
	}
	a := &Agent{id: id, horizon: horizon, world: w}
	w.agents[id] = a
	w.agentOrder = append(w.agentOrder, id)
	return a, nil
}

// Agent returns the agent registered under id.
func (w *World) Agent(id AgentID) (*Agent, bool) {
	a, ok := w.agents[id]
	return a, ok
}

// Agents returns every agent in registration order.
func (w *World) Agents() []*Agent {
	out := make([]*Agent, len(w.agentOrder))
	for i, id := range w.agentOrder {
		out[i] = w.agents[id]
	}
	return out
}

func (a *Agent) ID() AgentID { return a.id }

// Horizon returns the lookahead depth used when the agent acts.
func (a *Agent) Horizon() int { return a.horizon }

func (a *Agent) World() *World { return a.world }

// Actions returns the candidate actions in declaration order.
func (a *Agent) Actions() []Action { return slices.Clone(a.actions) }

// SetHorizon changes the lookahead depth.
func (a *Agent) SetHorizon(h int) error {
	if h < 0 {
		return fmt.Errorf("agent %s: negative horizon %d", a.id, h)
	}
	a.horizon = h
	return nil
}

// AddAction declares a candidate action. Declaration order is the tie-break
// order of the lookahead.
func (a *Agent) AddAction(verb string) (Action, error) {
	if verb == "" {
		return Action{}, fmt.Errorf("agent %s: empty verb", a.id)
	}
	act := Action{Actor: a.id, Verb: verb}
	if slices.Contains(a.actions, act) {
		return Action{}, fmt.Errorf("agent %s: action %s already declared", a.id, act)
	}
	a.actions = append(a.actions, act)
	return act, nil
}

// RewardTerms returns the agent's weighted reward terms in registration order.
func (a *Agent) RewardTerms() []WeightedTerm { return slices.Clone(a.reward) }

// hasAction reports whether act is declared by its actor.
func (w *World) hasAction(act Action) bool {
	a, ok := w.agents[act.Actor]
	return ok && slices.Contains(a.actions, act)
}
