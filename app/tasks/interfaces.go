package tasks

// TaskSchedulerInterface is the scheduling surface used by the rest of the
// application: start and stop the worker pool, and enqueue one-off tasks
// (for example an on-demand section refresh triggered over the API).
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
