package worker

type Worker struct {
	pool       *jobChannelPool
	generator  Generator
	jobChannel chan Job
}

func NewWorker(pool *jobChannelPool, generator Generator) *Worker {
	return &Worker{
		pool:       pool,
		generator:  generator,
		jobChannel: make(chan Job),
	}
}

// Start runs the worker loop. The worker announces itself idle before the
// first job and after each one; a Stop job retires it.
func (w *Worker) Start() {
	go func() {
		w.pool.Release(w.jobChannel)
		for job := range w.jobChannel {
			if job.Type == Stop {
				w.pool.retire(w.jobChannel)
				return
			}
			w.run(job)
			w.pool.Release(w.jobChannel)
		}
	}()
}

func (w *Worker) run(job Job) {
	task := job.Task
	if task == nil {
		return
	}
	summary, err := w.generator.Generate(task.Ctx, task.Req)
	// Submit rejects unbuffered result channels, so this send never blocks.
	task.Result <- GenerateResult{Summary: summary, Err: err}
}
