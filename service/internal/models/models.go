// internal/models/models.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mazesim/engine/maze"
)

// Run identifies one simulated episode and the scenario it was built from.
type Run struct {
	ID        uuid.UUID   `json:"id"`
	Scenario  maze.Config `json:"scenario"`
	CreatedAt time.Time   `json:"createdAt"`
}

// CandidateRecord is the lookahead value of one legal action.
type CandidateRecord struct {
	Action string  `json:"action"`
	Value  float64 `json:"value"`
}

// DecisionRecord is one agent's choice within a step.
type DecisionRecord struct {
	Agent      string            `json:"agent"`
	Action     string            `json:"action"`
	Value      float64           `json:"value"`
	Candidates []CandidateRecord `json:"candidates"`
	Skipped    int               `json:"skipped,omitempty"` // reward terms skipped during lookahead
}

// StepRecord is the persisted form of one committed step.
type StepRecord struct {
	RunID     uuid.UUID             `json:"runId"`
	Step      int                   `json:"step"`
	Group     string                `json:"group"`
	Decisions []DecisionRecord      `json:"decisions"`
	Positions map[string]maze.Point `json:"positions"`
	Distances map[string]int        `json:"distances"`
	Terminal  bool                  `json:"terminal"`
}
