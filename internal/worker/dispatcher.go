package worker

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// ErrDispatcherBusy is returned when the inbound queue is full. Callers
// surface it to the client instead of blocking the accept path.
var ErrDispatcherBusy = errors.New("dispatcher: queue full")

type userQueue struct {
	jobs     []Job
	enqueued bool // user is in the ready list
	inFlight bool // a job for this user is currently on a worker
}

// Dispatcher fans inbound tasks out to a worker pool while keeping two
// guarantees: jobs of one user run strictly in submission order, one at a
// time, and users take turns so a chatty user cannot starve the rest.
type Dispatcher struct {
	pool     *jobChannelPool
	jobQueue chan Job
	wake     chan struct{}

	mu        sync.Mutex
	queues    map[int64]*userQueue // pending jobs per user
	ready     *list.List           // rotation of users with a dispatchable job
	positions map[int64]*list.Element
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, manager *Manager, idleTimeout time.Duration) *Dispatcher {
	d := &Dispatcher{
		jobQueue:  make(chan Job, queueSize),
		wake:      make(chan struct{}, 1),
		queues:    make(map[int64]*userQueue),
		ready:     list.New(),
		positions: make(map[int64]*list.Element),
	}
	d.pool = newJobChannelPool(minWorkers, maxWorkers, idleTimeout, manager)

	// Warm up workers so the first messages do not pay spawn latency.
	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit hands a task to the dispatcher without blocking.
func (d *Dispatcher) Submit(task *DispatchTask) error {
	select {
	case d.jobQueue <- Job{Type: TaskDispatch, Task: task}:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

func (d *Dispatcher) run() {
	for {
		if !d.dispatchOne() {
			// nothing dispatchable: wait for a new job or a completion
			select {
			case job := <-d.jobQueue:
				d.enqueueJob(job)
			case <-d.wake:
			}
			continue
		}
		select {
		case job := <-d.jobQueue:
			d.enqueueJob(job)
		case <-d.wake:
		default:
		}
	}
}

// CancelUser drops the user's pending jobs. A job already on a worker is
// not interrupted.
func (d *Dispatcher) CancelUser(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.queues, userID)
	if elem, ok := d.positions[userID]; ok {
		d.ready.Remove(elem)
		delete(d.positions, userID)
	}
}

// PendingJobs reports queued (not in-flight) jobs for the user.
func (d *Dispatcher) PendingJobs(userID int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if q := d.queues[userID]; q != nil {
		return len(q.jobs)
	}
	return 0
}

func (d *Dispatcher) enqueueJob(job Job) {
	userID := job.Task.userID()

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[userID]
	if q == nil {
		q = &userQueue{}
		d.queues[userID] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued || q.inFlight {
		// already in rotation, or waiting for the in-flight job to finish
		return
	}
	q.enqueued = true
	elem := d.ready.PushBack(userID)
	d.positions[userID] = elem
}

// dispatchOne takes the user at the front of the rotation and hands its
// oldest job to a worker. The user leaves the rotation until that job
// completes.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	userID := elem.Value.(int64)
	q := d.queues[userID]

	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.inFlight = true
	q.enqueued = false
	d.ready.Remove(elem)
	delete(d.positions, userID)
	d.mu.Unlock()

	job.done = func() { d.jobDone(userID) }

	workerChan := d.pool.acquire()
	debugLog("[dispatcher] assign job for user %d to worker-%d", userID, d.pool.workerID(workerChan))
	workerChan <- job
	return true
}

// jobDone clears the in-flight mark and puts the user back into rotation
// when more jobs are waiting.
func (d *Dispatcher) jobDone(userID int64) {
	d.mu.Lock()
	q := d.queues[userID]
	if q == nil {
		d.mu.Unlock()
		return
	}
	q.inFlight = false
	if len(q.jobs) == 0 {
		delete(d.queues, userID)
	} else if !q.enqueued {
		q.enqueued = true
		elem := d.ready.PushBack(userID)
		d.positions[userID] = elem
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}
