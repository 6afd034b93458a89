package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/kiln/engine/containers"
	"github.com/spaghettifunk/kiln/engine/core"
)

var (
	ErrNoWorkers           = fmt.Errorf("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")
	ErrJobSystemClosed     = errors.New("job system is shut down")
	ErrInvalidJob          = errors.New("job has no OnStart function")
)

/**
 * @brief A unit of work. OnStart runs on a worker goroutine; OnComplete or
 * OnFailure run later on the goroutine calling Update.
 */
type JobTask struct {
	Name       string
	OnStart    func() (interface{}, error)
	OnComplete func(result interface{})
	OnFailure  func(err error)
}

type jobResult struct {
	task   JobTask
	result interface{}
	err    error
}

type JobSystem struct {
	logger     *core.Logger
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	mutex     sync.Mutex
	cond      *sync.Cond
	completed *containers.RingQueue[jobResult]
	// pending counts the jobs submitted whose callbacks did not run yet.
	pending int
	closed  bool
}

/**
 * @brief Starts numWorkers workers. At most channelSize+numWorkers jobs can
 * be in flight; Submit fails with containers.ErrQueueFull beyond that.
 */
func NewJobSystem(numWorkers int, channelSize int, logger *core.Logger) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	capacity := channelSize + numWorkers
	js := &JobSystem{
		logger:     logger,
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, capacity),
		completed:  containers.NewRingQueue[jobResult](capacity),
	}
	js.cond = sync.NewCond(&js.mutex)

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				result, err := job.OnStart()

				js.mutex.Lock()
				// pending bounds the queue, this cannot fail
				_ = js.completed.Enqueue(jobResult{task: job, result: result, err: err})
				js.cond.Broadcast()
				js.mutex.Unlock()
			}
		}()
	}
}

/**
 * @brief Submits the provided job to be queued for execution. Never blocks.
 * @param jt The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	if jt.OnStart == nil {
		return ErrInvalidJob
	}
	js.mutex.Lock()
	defer js.mutex.Unlock()
	if js.closed {
		return ErrJobSystemClosed
	}
	if js.pending >= js.completed.Cap() {
		return fmt.Errorf("job %q: %w", jt.Name, containers.ErrQueueFull)
	}
	js.pending++
	js.jobQueue <- jt
	return nil
}

/**
 * @brief Runs the callbacks of the jobs finished since the previous call.
 * Should happen once an update cycle.
 *
 * @return The number of jobs whose callbacks ran.
 */
func (js *JobSystem) Update() int {
	js.mutex.Lock()
	done := make([]jobResult, 0, js.completed.Len())
	for !js.completed.IsEmpty() {
		r, _ := js.completed.Dequeue()
		done = append(done, r)
	}
	js.pending -= len(done)
	js.mutex.Unlock()

	for _, r := range done {
		if r.err != nil {
			js.logger.Error("job failed", "job", r.task.Name, "err", r.err)
			if r.task.OnFailure != nil {
				r.task.OnFailure(r.err)
			}
			continue
		}
		if r.task.OnComplete != nil {
			r.task.OnComplete(r.result)
		}
	}
	return len(done)
}

// Flush blocks until every submitted job finished and its callbacks ran,
// including jobs submitted by those callbacks.
func (js *JobSystem) Flush() {
	for {
		js.Update()
		js.mutex.Lock()
		for js.pending > 0 && js.completed.IsEmpty() {
			js.cond.Wait()
		}
		idle := js.pending == 0
		js.mutex.Unlock()
		if idle {
			return
		}
	}
}

// Pending returns the number of jobs whose callbacks did not run yet.
func (js *JobSystem) Pending() int {
	js.mutex.Lock()
	defer js.mutex.Unlock()
	return js.pending
}

/**
 * @brief Shuts the job system down. Running jobs finish; callbacks that did
 * not run yet are dropped.
 */
func (js *JobSystem) Shutdown() error {
	js.mutex.Lock()
	if js.closed {
		js.mutex.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mutex.Unlock()

	js.wg.Wait()
	js.mutex.Lock()
	dropped := js.completed.Len()
	js.mutex.Unlock()
	if dropped > 0 {
		js.logger.Debug("job callbacks dropped at shutdown", "count", dropped)
	}
	return nil
}
