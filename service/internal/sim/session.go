// internal/sim/session.go
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mazesim/engine"
	"github.com/jason-s-yu/mazesim/engine/maze"
	"github.com/jason-s-yu/mazesim/service/internal/models"
	"github.com/jason-s-yu/mazesim/service/internal/store"
	"github.com/sirupsen/logrus"
)

// OnStepFunc is called after every committed and persisted step.
type OnStepFunc func(res engine.StepResult, rec models.StepRecord)

// Summary describes a finished Run call.
type Summary struct {
	RunID     uuid.UUID             `json:"runId"`
	Steps     int                   `json:"steps"`
	Terminal  bool                  `json:"terminal"`
	Positions map[string]maze.Point `json:"positions"`
}

// Session is one uuid-identified run of a maze scenario. Every committed step
// is persisted to the store before OnStep is called.
type Session struct {
	ID   uuid.UUID
	Maze *maze.Maze

	OnStep OnStepFunc // optional

	Mu      sync.Mutex // serialises access to the World
	store   store.Store
	log     *logrus.Entry
	created bool
}

// NewSession builds the scenario described by cfg. The World logs through
// log with the run ID attached.
func NewSession(cfg maze.Config, st store.Store, log logrus.FieldLogger) (*Session, error) {
	m, err := maze.Build(cfg)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	entry := log.WithField("run_id", id.String())
	m.World.SetLogger(entry)
	return &Session{
		ID:    id,
		Maze:  m,
		store: st,
		log:   entry,
	}, nil
}

// Run steps the episode until it terminates, maxSteps steps have been taken
// by this call, or ctx is done. maxSteps <= 0 falls back to the scenario's
// Rules.MaxSteps. The run is registered with the store on first use.
func (s *Session) Run(ctx context.Context, maxSteps int) (Summary, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if !s.created {
		run := models.Run{ID: s.ID, Scenario: s.Maze.Config(), CreatedAt: time.Now().UTC()}
		if err := s.store.CreateRun(ctx, run); err != nil {
			return Summary{}, err
		}
		s.created = true
		s.log.WithField("agents", len(run.Scenario.Agents)).Info("run created")
	}

	w := s.Maze.World
	if maxSteps <= 0 {
		maxSteps = w.Rules().MaxSteps
	}
	taken := 0
	var runErr error
	for maxSteps <= 0 || taken < maxSteps {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		res, err := w.Step()
		if errors.Is(err, engine.ErrTerminated) {
			break
		}
		if err != nil {
			runErr = err
			break
		}
		rec, err := toStepRecord(s.ID, s.Maze, res)
		if err != nil {
			runErr = err
			break
		}
		if err := s.store.AppendStep(ctx, rec); err != nil {
			runErr = fmt.Errorf("persist step %d: %w", res.Step, err)
			break
		}
		taken++
		if s.OnStep != nil {
			s.OnStep(res, rec)
		}
		if res.Terminal {
			break
		}
	}

	sum, err := s.summary()
	if err != nil && runErr == nil {
		runErr = err
	}
	fields := logrus.Fields{"steps": sum.Steps, "terminal": sum.Terminal}
	if runErr != nil {
		s.log.WithFields(fields).WithError(runErr).Error("run stopped")
	} else {
		s.log.WithFields(fields).Info("run finished")
	}
	return sum, runErr
}

func (s *Session) summary() (Summary, error) {
	w := s.Maze.World
	sum := Summary{
		RunID:     s.ID,
		Steps:     w.StepIndex(),
		Terminal:  w.IsTerminated(),
		Positions: make(map[string]maze.Point),
	}
	for _, id := range s.Maze.Agents() {
		p, err := s.Maze.Position(id)
		if err != nil {
			return sum, err
		}
		sum.Positions[string(id)] = p
	}
	return sum, nil
}
