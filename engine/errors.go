package engine

import (
	"errors"
	"fmt"
)

var (
	ErrCyclicTree          = errors.New("tree is not a finite DAG")
	ErrNondeterministic    = errors.New("state is not deterministic")
	ErrUnknownVariable     = errors.New("unknown variable")
	ErrUnknownAgent        = errors.New("unknown agent")
	ErrUnknownAction       = errors.New("unknown action")
	ErrInvalidDistribution = errors.New("invalid distribution")
	ErrOverflow            = errors.New("integer overflow")
	ErrTerminated          = errors.New("episode already terminated")
)

// MalformedTreeError reports a tree that was refused at registration: a
// predicate reads an undeclared variable, a path does not end in a leaf of the
// expected kind, or the tree is not a finite DAG.
type MalformedTreeError struct {
	Binding string   // what the tree was registered as, e.g. "legality of A-MoveUp"
	Reason  string
	Key     StateKey // offending variable, if any
	Err     error
}

func (e *MalformedTreeError) Error() string {
	msg := fmt.Sprintf("malformed tree for %s: %s", e.Binding, e.Reason)
	if e.Key != (StateKey{}) {
		msg += fmt.Sprintf(" (%s)", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedTreeError) Unwrap() error { return e.Err }

// NoLegalActionError is returned when an acting agent has no legal action at
// decision time. It signals an over-constrained scenario.
type NoLegalActionError struct {
	Agent AgentID
	Step  int
}

func (e *NoLegalActionError) Error() string {
	return fmt.Sprintf("agent %s has no legal action at step %d", e.Agent, e.Step)
}

// ConflictingWriteError is returned at setup when two agents of one parallel
// turn group have dynamics targeting the same variable.
type ConflictingWriteError struct {
	Group  string
	Key    StateKey
	Agents [2]AgentID
}

func (e *ConflictingWriteError) Error() string {
	return fmt.Sprintf("turn group %q: agents %s and %s both write %s",
		e.Group, e.Agents[0], e.Agents[1], e.Key)
}
