package systems

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kiln/engine/containers"
	"github.com/spaghettifunk/kiln/engine/core"
)

func TestNewJobSystemRejectsBadSizes(t *testing.T) {
	_, err := NewJobSystem(0, 1, core.NewDiscardLogger())
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1, core.NewDiscardLogger())
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestCallbacksRunOnFlush(t *testing.T) {
	js, err := NewJobSystem(4, 16, core.NewDiscardLogger())
	require.NoError(t, err)
	defer js.Shutdown()

	var started atomic.Int32
	sum := 0
	for i := 1; i <= 10; i++ {
		i := i
		require.NoError(t, js.Submit(JobTask{
			Name: "square",
			OnStart: func() (interface{}, error) {
				started.Add(1)
				return i * i, nil
			},
			// runs on this goroutine, no locking needed
			OnComplete: func(result interface{}) {
				sum += result.(int)
			},
		}))
	}
	js.Flush()
	assert.Equal(t, int32(10), started.Load())
	assert.Equal(t, 385, sum)
	assert.Zero(t, js.Pending())
}

func TestFailureCallback(t *testing.T) {
	js, err := NewJobSystem(1, 0, core.NewDiscardLogger())
	require.NoError(t, err)
	defer js.Shutdown()

	boom := errors.New("boom")
	var got error
	completed := false
	require.NoError(t, js.Submit(JobTask{
		Name:       "fails",
		OnStart:    func() (interface{}, error) { return nil, boom },
		OnComplete: func(interface{}) { completed = true },
		OnFailure:  func(err error) { got = err },
	}))
	js.Flush()
	assert.ErrorIs(t, got, boom)
	assert.False(t, completed)
}

func TestSubmitLimits(t *testing.T) {
	js, err := NewJobSystem(1, 1, core.NewDiscardLogger())
	require.NoError(t, err)

	release := make(chan struct{})
	blocking := JobTask{Name: "wait", OnStart: func() (interface{}, error) {
		<-release
		return nil, nil
	}}
	require.NoError(t, js.Submit(blocking))
	require.NoError(t, js.Submit(blocking))
	assert.ErrorIs(t, js.Submit(blocking), containers.ErrQueueFull)
	assert.ErrorIs(t, js.Submit(JobTask{Name: "empty"}), ErrInvalidJob)

	close(release)
	js.Flush()
	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())
	assert.ErrorIs(t, js.Submit(blocking), ErrJobSystemClosed)
}

func TestCallbackCanSubmit(t *testing.T) {
	js, err := NewJobSystem(2, 4, core.NewDiscardLogger())
	require.NoError(t, err)
	defer js.Shutdown()

	var order []string
	require.NoError(t, js.Submit(JobTask{
		Name:    "first",
		OnStart: func() (interface{}, error) { return "first", nil },
		OnComplete: func(r interface{}) {
			order = append(order, r.(string))
			require.NoError(t, js.Submit(JobTask{
				Name:       "second",
				OnStart:    func() (interface{}, error) { return "second", nil },
				OnComplete: func(r interface{}) { order = append(order, r.(string)) },
			}))
		},
	}))
	js.Flush()
	assert.Equal(t, []string{"first", "second"}, order)
}
