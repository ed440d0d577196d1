package engine

import "fmt"

// SetTermination installs the world-level episode-end tree. Its leaves must
// all be booleans. A nil tree removes termination.
func (w *World) SetTermination(t *Tree) error {
	if t == nil {
		w.termination = nil
		return nil
	}
	if err := validateTree(t, leafBool, "termination", w.declared); err != nil {
		return err
	}
	w.termination = t
	return nil
}

// IsTerminal reports whether state ends the episode. A non-deterministic
// state is terminal only when every support world is. Without a termination
// tree no state is terminal.
func (w *World) IsTerminal(state State) (bool, error) {
	if w.termination == nil {
		return false, nil
	}
	for _, pw := range state.worlds() {
		term, err := w.terminalAt(pw.a)
		if err != nil || !term {
			return false, err
		}
	}
	return true, nil
}

func (w *World) terminalAt(a Assignment) (bool, error) {
	if w.termination == nil {
		return false, nil
	}
	term, err := evalBool(w.termination, a)
	if err != nil {
		return false, fmt.Errorf("termination: %w", err)
	}
	return term, nil
}

// IsTerminated reports whether the episode has ended.
func (w *World) IsTerminated() bool { return w.terminated }
