package crawler

import (
	"context"
	"errors"
	"sync"
)

type task func(ctx context.Context)

// workerPool runs crawl tasks on a fixed number of goroutines with a bounded
// queue. Unlike a plain job channel it tracks in-flight work, so the engine
// can wait for the crawl wave to drain without counting tasks itself.
type workerPool struct {
	ctx    context.Context
	cancel context.CancelFunc

	tasks    chan task
	workers  sync.WaitGroup
	inflight sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func newWorkerPool(parent context.Context, concurrency, queueSize int) (*workerPool, error) {
	if concurrency <= 0 || queueSize <= 0 {
		return nil, errors.New("worker pool requires positive concurrency and queue size")
	}
	ctx, cancel := context.WithCancel(parent)
	p := &workerPool{
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(chan task, queueSize),
	}
	for i := 0; i < concurrency; i++ {
		p.workers.Add(1)
		go p.work()
	}
	return p, nil
}

func (p *workerPool) work() {
	defer p.workers.Done()
	for t := range p.tasks {
		t(p.ctx)
		p.inflight.Done()
	}
}

// submit enqueues a task. When the queue is full the task runs inline on the
// submitting goroutine, which keeps concurrency bounded without dropping
// discovered URLs.
func (p *workerPool) submit(fn task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New("worker pool closed")
	}
	select {
	case <-p.ctx.Done():
		p.mu.Unlock()
		return p.ctx.Err()
	default:
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	select {
	case p.tasks <- fn:
	default:
		fn(p.ctx)
		p.inflight.Done()
	}
	return nil
}

// drain blocks until every submitted task, including tasks submitted by
// running tasks, has completed.
func (p *workerPool) drain() {
	p.inflight.Wait()
}

// close stops accepting tasks, waits for the queue to flush, and releases the
// workers.
func (p *workerPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.inflight.Wait()
	close(p.tasks)
	p.workers.Wait()
	p.cancel()
}
