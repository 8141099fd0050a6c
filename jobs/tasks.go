package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExpirySweep marks long-expired assignments and overrides inactive.
	TaskExpirySweep = "rbac:expiry_sweep"
)

// ExpirySweepPayload configures one sweep run.
type ExpirySweepPayload struct {
	// Grace keeps rows expired more recently than this untouched, so an
	// operator reviewing the audit trail still sees them as stored.
	Grace time.Duration `json:"grace"`
}

// NewExpirySweepTask constructs an Asynq task.
func NewExpirySweepTask(payload ExpirySweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpirySweep, data), nil
}
