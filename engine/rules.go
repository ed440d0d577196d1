package engine

// Rules holds configurable engine settings.
type Rules struct {
	MaxSteps      int     // step cap used by Run when no cap is passed; 0 = unlimited
	Memoize       bool    // cache (assignment, remaining depth) values within one decision
	SearchWorkers int     // concurrent searches for a parallel turn group; 0 = one per agent
	Tolerance     float64 // allowed deviation of a distribution's total mass from 1
}

// DefaultRules returns the standard engine settings.
func DefaultRules() Rules {
	return Rules{
		MaxSteps:      1000,
		Memoize:       true,
		SearchWorkers: 0,
		Tolerance:     1e-9,
	}
}

// tolerance returns the effective probability tolerance, treating 0 as the default.
func (r *Rules) tolerance() float64 {
	if r.Tolerance <= 0 {
		return 1e-9
	}
	return r.Tolerance
}
