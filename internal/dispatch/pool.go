package dispatch

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/onex-learning/patternd/internal/config"
)

// defaultWorkerCount mirrors a conservative per-subscription concurrency;
// overridden by DISPATCH_WORKER_COUNT.
const defaultWorkerCount = 4

// workerPool runs a bounded number of goroutines against a single channel of
// fetched messages. Partition ordering is preserved by binding exactly one
// worker per partition: the Engine hands each worker its own sub-channel
// keyed by partition number rather than sharing one channel across workers,
// so two messages from the same partition are never processed concurrently.
type workerPool struct {
	workerCount int
	process     func(ctx context.Context, m kafka.Message)
}

func newWorkerPool(process func(ctx context.Context, m kafka.Message)) *workerPool {
	return &workerPool{
		workerCount: config.GetEnvInt("DISPATCH_WORKER_COUNT", defaultWorkerCount),
		process:     process,
	}
}

// run partitions msgs across p.workerCount goroutines by partition number so
// that messages from the same partition always land on the same worker, and
// blocks until ctx is cancelled and every worker has drained its lane.
func (p *workerPool) run(ctx context.Context, msgs <-chan kafka.Message) {
	lanes := make([]chan kafka.Message, p.workerCount)
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 1)
	}

	var wg sync.WaitGroup

	for _, lane := range lanes {
		wg.Add(1)

		go func(lane chan kafka.Message) {
			defer wg.Done()

			for m := range lane {
				p.process(ctx, m)
			}
		}(lane)
	}

	func() {
		defer func() {
			for _, lane := range lanes {
				close(lane)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}

				lane := lanes[int(m.Partition)%p.workerCount]

				select {
				case lane <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	wg.Wait()
}
