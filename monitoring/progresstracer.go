package monitoring

import (
	"sync"

	"github.com/sarchlab/simplemem/tracing"
)

// ProgressTracer moves a progress bar forward as the traced tasks start and
// end.
type ProgressTracer struct {
	bar    *ProgressBar
	filter tracing.TaskFilter

	lock     sync.Mutex
	inflight map[string]bool
}

// NewProgressTracer creates a ProgressTracer that reports to the given bar.
// Only the tasks that pass the filter when they start are counted.
func NewProgressTracer(
	bar *ProgressBar,
	filter tracing.TaskFilter,
) *ProgressTracer {
	return &ProgressTracer{
		bar:      bar,
		filter:   filter,
		inflight: make(map[string]bool),
	}
}

// StartTask counts the task as in progress.
func (t *ProgressTracer) StartTask(task tracing.Task) {
	if t.filter != nil && !t.filter(task) {
		return
	}

	t.lock.Lock()
	t.inflight[task.ID] = true
	t.lock.Unlock()

	t.bar.IncrementInProgress(1)
}

// StepTask does nothing.
func (t *ProgressTracer) StepTask(_ tracing.Task) {}

// EndTask counts the task as finished.
func (t *ProgressTracer) EndTask(task tracing.Task) {
	t.lock.Lock()
	_, found := t.inflight[task.ID]
	delete(t.inflight, task.ID)
	t.lock.Unlock()

	if !found {
		return
	}

	t.bar.MoveInProgressToFinished(1)
}
