package engine

import "fmt"

// AgentID names an agent. The empty ID is reserved for world-level variables.
type AgentID string

// StateKey identifies a state variable scoped to an agent (or to the world
// when Agent is empty). It is comparable and used as a map key throughout.
type StateKey struct {
	Agent AgentID
	Name  string
}

// Key returns the StateKey of an agent-scoped variable.
func Key(agent AgentID, name string) StateKey { return StateKey{Agent: agent, Name: name} }

// WorldKey returns the StateKey of a world-level variable.
func WorldKey(name string) StateKey { return StateKey{Name: name} }

func (k StateKey) String() string {
	if k.Agent == "" {
		return k.Name
	}
	return string(k.Agent) + "'s " + k.Name
}

// VarType is the declared type of a state variable.
type VarType uint8

const (
	TypeInt  VarType = iota // 0
	TypeBool                // 1: stored as 0/1
)

func (t VarType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	default:
		return fmt.Sprintf("VarType(%d)", uint8(t))
	}
}

// Domain bounds the values a variable may take.
// An unbounded domain accepts every int.
type Domain struct {
	Min     int
	Max     int
	Bounded bool
}

// Bounded returns the inclusive domain [min, max].
func Bounded(min, max int) Domain { return Domain{Min: min, Max: max, Bounded: true} }

// Unbounded returns a domain accepting every int.
func Unbounded() Domain { return Domain{} }

// Contains reports whether v lies inside the domain.
func (d Domain) Contains(v int) bool {
	if !d.Bounded {
		return true
	}
	return v >= d.Min && v <= d.Max
}

func (d Domain) String() string {
	if !d.Bounded {
		return "(-inf, +inf)"
	}
	return fmt.Sprintf("[%d, %d]", d.Min, d.Max)
}

// Variable is a declared state variable.
type Variable struct {
	Key    StateKey
	Type   VarType
	Domain Domain
}

// Action is a verb performed by an acting agent. Legality and dynamics trees
// are keyed by Action.
type Action struct {
	Actor AgentID
	Verb  string
}

// IsZero reports whether a is the null action.
func (a Action) IsZero() bool { return a == Action{} }

func (a Action) String() string {
	if a.IsZero() {
		return "<none>"
	}
	return fmt.Sprintf("%s-%s", a.Actor, a.Verb)
}
