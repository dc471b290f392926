package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/cleancity/wastetrack/internal/jobs"
	"github.com/cleancity/wastetrack/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDriverAssignment notifies a driver about a new assignment.
	TaskDriverAssignment = "notify:driver_assignment"
)

// NewDriverAssignmentTask constructs an Asynq task. Assignment notices are
// delivered at most once.
func NewDriverAssignmentTask(payload notify.Assignment) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDriverAssignment, data, asynq.Queue(QueueDefault), asynq.MaxRetry(0)), nil
}

// Deliverer processes an assignment payload.
type Deliverer interface {
	Deliver(ctx context.Context, a notify.Assignment) (notify.Notification, error)
}

// HandleDriverAssignmentTask returns the handler for TaskDriverAssignment.
func HandleDriverAssignmentTask(deliverer Deliverer, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskDriverAssignment)
		var payload notify.Assignment
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry))
		}
		if _, err := deliverer.Deliver(ctx, payload); err != nil {
			if errors.Is(err, notify.ErrDriverMissing) {
				return tracker.End(fmt.Errorf("%v: %w", err, asynq.SkipRetry))
			}
			return tracker.End(err)
		}
		return tracker.End(nil)
	}
}
