// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mazesim/service/internal/models"
)

// ErrRunNotFound is returned when a run ID has never been created.
var ErrRunNotFound = errors.New("run not found")

// Store persists runs and their step records. Steps of a run are returned in
// step order; runs are returned oldest first.
type Store interface {
	CreateRun(ctx context.Context, run models.Run) error
	AppendStep(ctx context.Context, rec models.StepRecord) error
	Steps(ctx context.Context, runID uuid.UUID) ([]models.StepRecord, error)
	Runs(ctx context.Context) ([]models.Run, error)
	Close() error
}
