package dispatch

import (
	"context"

	"github.com/mattjoyce/forkjoin/internal/task"
)

//go:generate mockgen -destination=mocks/mock_recorder.go -package=mocks github.com/mattjoyce/forkjoin/internal/dispatch Recorder

// Recorder receives lifecycle notifications from a Manager.
type Recorder interface {
	RunStarted(ctx context.Context, runID string, dispatcherPID int) error
	TaskStarted(ctx context.Context, runID string, seq int, t *task.Task) error
	TaskCollected(ctx context.Context, runID string, t *task.Task) error
}
