package jobs

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExpirySweepTask(t *testing.T) {
	task, err := NewExpirySweepTask(ExpirySweepPayload{Grace: 24 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, TaskExpirySweep, task.Type())

	var payload ExpirySweepPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, 24*time.Hour, payload.Grace)
}
