package worker

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// ErrDispatcherBusy is returned when the intake queue is full. Callers
// surface it instead of blocking the request handler.
var ErrDispatcherBusy = errors.New("generation queue is full")

// ErrInvalidJob is returned for generate jobs a worker could not complete
// safely: no task, or a result channel whose send could block the worker.
var ErrInvalidJob = errors.New("generate job needs a buffered result channel")

type sessionQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher fans generation jobs out to the worker pool. Jobs from one
// session run in submission order; the ready list rotates sessions LRU-style
// so a busy session cannot starve the others.
type Dispatcher struct {
	pool     *jobChannelPool
	jobQueue chan Job

	mu        sync.Mutex
	queues    map[int64]*sessionQueue // pending jobs per session
	ready     *list.List              // LRU queue storing session IDs
	positions map[int64]*list.Element
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, generator Generator, idleTimeout time.Duration) *Dispatcher {
	pool := newJobChannelPool(minWorkers, maxWorkers, idleTimeout, generator)
	jobQueue := make(chan Job, queueSize)

	d := &Dispatcher{
		queues:    make(map[int64]*sessionQueue),
		ready:     list.New(),
		positions: make(map[int64]*list.Element),
		pool:      pool,
		jobQueue:  jobQueue,
	}

	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit queues one generation job without blocking. Result channels must be
// buffered so workers never block on delivery.
func (d *Dispatcher) Submit(job Job) error {
	if job.Type == Generate {
		if job.Task == nil || job.Task.Result == nil || cap(job.Task.Result) == 0 {
			return ErrInvalidJob
		}
	}
	select {
	case d.jobQueue <- job:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

func (d *Dispatcher) run() {
	for {
		// dispatch one job of the session in the front of the LRU queue
		if !d.dispatchOne() {
			job := <-d.jobQueue // force congestion
			d.enqueueJob(job)
			continue
		}
		// if we have a new job, enqueue it and its session
		select {
		case job := <-d.jobQueue: // non-congestion
			d.enqueueJob(job)
		default:
		}
	}
}

// CancelSession drops a session's pending jobs. In-flight jobs finish.
func (d *Dispatcher) CancelSession(sessionID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.queues, sessionID)
	if elem, ok := d.positions[sessionID]; ok {
		d.ready.Remove(elem)
		delete(d.positions, sessionID)
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	sessionID := job.sessionID()

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[sessionID]
	if q == nil {
		q = &sessionQueue{}
		d.queues[sessionID] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		// session already enqueued, skip
		return
	}
	// new session, enqueue
	q.enqueued = true
	elem := d.ready.PushBack(sessionID)
	d.positions[sessionID] = elem
}

// dispatchOne get first session in LRU and dispatch its job
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	for elem != nil {
		sessionID := elem.Value.(int64)
		q := d.queues[sessionID]
		// get job from the first session
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		if len(q.jobs) == 0 {
			// session only has one job, it'll be handled, session quits the queue
			q.enqueued = false
			d.ready.Remove(elem)
			delete(d.positions, sessionID)
		} else {
			// get to the back of queue
			d.ready.MoveToBack(elem)
		}
		d.mu.Unlock()

		workerChan := d.pool.acquire()
		debugLog("[dispatcher] assign generation job for session %d", sessionID)
		workerChan <- job
		return true
	}
	d.mu.Unlock()
	return false
}
