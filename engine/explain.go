package engine

import (
	"fmt"
	"strings"
)

// Verbosity selects how much of a step Explain reports.
type Verbosity int

const (
	ExplainActions Verbosity = iota // chosen action and value per agent
	ExplainValues                   // plus every candidate's lookahead value
	ExplainState                    // plus the committed state
)

// Explain renders a human-readable trace of r. It is diagnostic output only
// and plays no part in decisions.
func Explain(r StepResult, v Verbosity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d", r.Step)
	if r.Group != "" {
		fmt.Fprintf(&b, " [%s]", r.Group)
	}
	b.WriteString("\n")

	for _, d := range r.Decisions {
		fmt.Fprintf(&b, "  %s chooses %s (value %.3f)\n", d.Agent, d.Action, d.Value)
		if v >= ExplainValues {
			for _, c := range d.Candidates {
				mark := " "
				if c.Action == d.Action {
					mark = "*"
				}
				fmt.Fprintf(&b, "    %s %-24s %10.3f\n", mark, c.Action, c.Value)
			}
		}
		if d.Skipped > 0 {
			fmt.Fprintf(&b, "    %d reward term evaluation(s) skipped: %v\n", d.Skipped, d.SkipErr)
		}
	}

	if v >= ExplainState {
		b.WriteString("  state:\n")
		for _, k := range r.State.Keys() {
			d, _ := r.State.Distribution(k)
			fmt.Fprintf(&b, "    %s = %s\n", k, d)
		}
	}
	if r.Terminal {
		b.WriteString("  episode terminated\n")
	}
	return b.String()
}
