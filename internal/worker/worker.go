package worker

type Worker struct {
	id         int
	pool       *jobChannelPool
	manager    *Manager
	jobChannel chan Job
}

func NewWorker(id int, pool *jobChannelPool, manager *Manager) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		manager:    manager,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		for job := range w.jobChannel {
			if job.Type == Stop {
				w.pool.retire(w.jobChannel)
				return
			}
			w.manager.handleDispatch(job.Task)
			if job.done != nil {
				job.done()
			}
			w.pool.Release(w.jobChannel)
		}
	}()
}
