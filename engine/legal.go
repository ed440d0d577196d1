package engine

import "fmt"

// RegisterLegality binds t as the legality gate of action. The tree's leaves
// must all be booleans. Actions without a tree are always legal, subject to
// the domain check in IsLegal.
func (w *World) RegisterLegality(action Action, t *Tree) error {
	if !w.hasAction(action) {
		return fmt.Errorf("register legality: %w: %s", ErrUnknownAction, action)
	}
	binding := fmt.Sprintf("legality of %s", action)
	if err := validateTree(t, leafBool, binding, w.declared); err != nil {
		return err
	}
	w.legality[action] = t
	return nil
}

// IsLegal reports whether action may be taken at state. An action is illegal
// when its legality tree evaluates false, or when its effect would move any
// variable outside its declared domain; effects are never clamped. Under a
// non-deterministic state the action must be legal in every support world.
func (w *World) IsLegal(action Action, state State) (bool, error) {
	if !w.hasAction(action) {
		return false, fmt.Errorf("is legal: %w: %s", ErrUnknownAction, action)
	}
	for _, pw := range state.worlds() {
		ok, err := w.legalAt(action, pw.a)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// legalAt is IsLegal for one point world.
func (w *World) legalAt(action Action, a Assignment) (bool, error) {
	if t, ok := w.legality[action]; ok {
		legal, err := evalBool(t, a)
		if err != nil {
			return false, fmt.Errorf("legality of %s: %w", action, err)
		}
		if !legal {
			return false, nil
		}
	}
	for _, key := range w.writes[action] {
		i, err := a.vars.lookup(key)
		if err != nil {
			return false, fmt.Errorf("legality of %s: %w", action, err)
		}
		v, err := projectValue(w.dynamics[dynamicsKey{key: key, action: action}], i, a)
		if err != nil {
			return false, fmt.Errorf("legality of %s: %w", action, err)
		}
		if !a.vars.vars[i].Domain.Contains(v) {
			return false, nil
		}
	}
	return true, nil
}

// LegalActions returns the agent's actions legal at state, in declaration
// order.
func (w *World) LegalActions(id AgentID, state State) ([]Action, error) {
	agent, ok := w.agents[id]
	if !ok {
		return nil, fmt.Errorf("legal actions: %w: %s", ErrUnknownAgent, id)
	}
	return w.legalActions(agent, state.worlds())
}

func (w *World) legalActions(agent *Agent, ws []weightedWorld) ([]Action, error) {
	var legal []Action
	for _, act := range agent.actions {
		ok := true
		for _, pw := range ws {
			l, err := w.legalAt(act, pw.a)
			if err != nil {
				return nil, err
			}
			if !l {
				ok = false
				break
			}
		}
		if ok {
			legal = append(legal, act)
		}
	}
	return legal, nil
}
