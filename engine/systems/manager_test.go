package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kiln/engine/core"
)

func TestSystemManager(t *testing.T) {
	sm, err := NewSystemManager(SystemManagerConfig{JobWorkers: 2, JobQueueSize: 8}, core.NewDiscardLogger())
	require.NoError(t, err)

	ran := false
	require.NoError(t, sm.Jobs().Submit(JobTask{
		Name:       "noop",
		OnStart:    func() (interface{}, error) { return nil, nil },
		OnComplete: func(interface{}) { ran = true },
	}))
	sm.Jobs().Flush()
	assert.True(t, ran)

	_, err = sm.Cameras().Acquire("world")
	require.NoError(t, err)
	sm.Update()

	require.NoError(t, sm.Shutdown())
	assert.Zero(t, sm.Cameras().Count())
	assert.ErrorIs(t, sm.Jobs().Submit(JobTask{Name: "late", OnStart: func() (interface{}, error) { return nil, nil }}), ErrJobSystemClosed)
}

func TestSystemManagerRejectsNoWorkers(t *testing.T) {
	_, err := NewSystemManager(SystemManagerConfig{}, core.NewDiscardLogger())
	assert.ErrorIs(t, err, ErrNoWorkers)
}
