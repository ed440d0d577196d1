// adapter.go: Bridge between engine.StepResult and the persisted StepRecord.
package sim

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mazesim/engine"
	"github.com/jason-s-yu/mazesim/engine/maze"
	"github.com/jason-s-yu/mazesim/service/internal/models"
)

// toDecisionRecord converts one engine decision. Actions are reported by verb
// since the actor is already named.
func toDecisionRecord(d engine.Decision) models.DecisionRecord {
	cands := make([]models.CandidateRecord, len(d.Candidates))
	for i, c := range d.Candidates {
		cands[i] = models.CandidateRecord{Action: c.Action.Verb, Value: c.Value}
	}
	return models.DecisionRecord{
		Agent:      string(d.Agent),
		Action:     d.Action.Verb,
		Value:      d.Value,
		Candidates: cands,
		Skipped:    d.Skipped,
	}
}

// toStepRecord converts a committed step of m into its persisted form,
// recording every agent's position and distance after the step.
func toStepRecord(runID uuid.UUID, m *maze.Maze, r engine.StepResult) (models.StepRecord, error) {
	rec := models.StepRecord{
		RunID:     runID,
		Step:      r.Step,
		Group:     r.Group,
		Decisions: make([]models.DecisionRecord, len(r.Decisions)),
		Positions: make(map[string]maze.Point),
		Distances: make(map[string]int),
		Terminal:  r.Terminal,
	}
	for i, d := range r.Decisions {
		rec.Decisions[i] = toDecisionRecord(d)
	}
	for _, id := range m.Agents() {
		p, err := m.PositionIn(r.State, id)
		if err != nil {
			return models.StepRecord{}, fmt.Errorf("record step %d: %w", r.Step, err)
		}
		dist, err := m.DistanceIn(r.State, id)
		if err != nil {
			return models.StepRecord{}, fmt.Errorf("record step %d: %w", r.Step, err)
		}
		rec.Positions[string(id)] = p
		rec.Distances[string(id)] = dist
	}
	return rec, nil
}
