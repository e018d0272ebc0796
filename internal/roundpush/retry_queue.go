package roundpush

import (
	"time"

	"tap-arena/internal/metrics"
)

// retryQueue re-dispatches a job after delay unless the manager has stopped.
type retryQueue struct {
	out  chan<- pushJob
	done <-chan struct{}
}

func newRetryQueue(out chan<- pushJob, done <-chan struct{}) *retryQueue {
	return &retryQueue{out: out, done: done}
}

func (q *retryQueue) Enqueue(job pushJob, delay time.Duration) {
	time.AfterFunc(max(delay, 0), func() {
		select {
		case <-q.done:
		case q.out <- job:
			metrics.PushQueueLen.Set(float64(len(q.out)))
		}
	})
}
