package engine

import (
	"fmt"
	"slices"
)

// TurnGroup is a set of agents acting within one step.
type TurnGroup struct {
	Name   string
	Agents []AgentID
}

// TurnOrder cycles through its groups, one group per step.
type TurnOrder struct {
	Groups []TurnGroup
}

// Sequential returns an order in which exactly one agent acts per step,
// cycling through ids.
func Sequential(ids ...AgentID) TurnOrder {
	groups := make([]TurnGroup, len(ids))
	for i, id := range ids {
		groups[i] = TurnGroup{Name: string(id), Agents: []AgentID{id}}
	}
	return TurnOrder{Groups: groups}
}

// Parallel returns an order in which every id acts in every step.
func Parallel(name string, ids ...AgentID) TurnOrder {
	return TurnOrder{Groups: []TurnGroup{{Name: name, Agents: slices.Clone(ids)}}}
}

// Then returns o followed by next.
func (o TurnOrder) Then(next TurnOrder) TurnOrder {
	return TurnOrder{Groups: append(slices.Clone(o.Groups), next.Groups...)}
}

// IsZero reports whether the order has no groups.
func (o TurnOrder) IsZero() bool { return len(o.Groups) == 0 }

func (o TurnOrder) group(stepIndex int) TurnGroup {
	return o.Groups[stepIndex%len(o.Groups)]
}

// NextToAct returns the agents acting at stepIndex.
func NextToAct(order TurnOrder, stepIndex int) []AgentID {
	if order.IsZero() || stepIndex < 0 {
		return nil
	}
	return slices.Clone(order.group(stepIndex).Agents)
}

// SetTurnOrder installs the turn order. Every group must be non-empty and name
// known agents at most once. Agents sharing a group must have disjoint
// dynamics targets.
func (w *World) SetTurnOrder(o TurnOrder) error {
	if o.IsZero() {
		return fmt.Errorf("set turn order: no groups")
	}
	for gi, g := range o.Groups {
		if len(g.Agents) == 0 {
			return fmt.Errorf("set turn order: group %d (%q) is empty", gi, g.Name)
		}
		seen := make(map[AgentID]bool, len(g.Agents))
		for _, id := range g.Agents {
			if _, ok := w.agents[id]; !ok {
				return fmt.Errorf("set turn order: %w: %s", ErrUnknownAgent, id)
			}
			if seen[id] {
				return fmt.Errorf("set turn order: agent %s listed twice in group %q", id, g.Name)
			}
			seen[id] = true
		}
	}
	if err := w.checkConflicts(o); err != nil {
		return fmt.Errorf("set turn order: %w", err)
	}
	w.order = o
	return nil
}

// TurnOrder returns the effective turn order: the installed one, or every
// agent in registration order, sequentially.
func (w *World) TurnOrder() TurnOrder {
	if w.order.IsZero() {
		return Sequential(w.agentOrder...)
	}
	return w.order
}

// checkConflicts rejects groups in which two agents' actions target the same
// variable.
func (w *World) checkConflicts(o TurnOrder) error {
	for _, g := range o.Groups {
		if len(g.Agents) < 2 {
			continue
		}
		owner := make(map[StateKey]AgentID)
		for _, id := range g.Agents {
			agent, ok := w.agents[id]
			if !ok {
				continue
			}
			for _, act := range agent.actions {
				for _, key := range w.writes[act] {
					if other, taken := owner[key]; taken && other != id {
						return &ConflictingWriteError{Group: g.Name, Key: key, Agents: [2]AgentID{other, id}}
					}
					owner[key] = id
				}
			}
		}
	}
	return nil
}
