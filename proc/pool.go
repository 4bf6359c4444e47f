package proc

import (
	"context"
	"sync"

	"github.com/leeineian/cadence/sys"
)

// WorkerPool runs blocking calls on a fixed set of goroutines so callers
// never spawn one per request.
type WorkerPool struct {
	tasks chan func()
	quit  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	p := &WorkerPool{
		tasks: make(chan func()),
		quit:  make(chan struct{}),
	}
	p.wg.Add(size)
	for range size {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case task := <-p.tasks:
			p.run(task)
		}
	}
}

func (p *WorkerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			sys.LogError(sys.MsgLoaderPanicRecovered, r)
		}
	}()
	task()
}

// Submit hands task to an idle worker. A nil return means the task will run;
// otherwise it never will.
func (p *WorkerPool) Submit(ctx context.Context, task func()) error {
	select {
	case <-p.quit:
		return ErrPoolClosed
	default:
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrPoolClosed
	}
}

// Close stops the workers after their current task.
func (p *WorkerPool) Close() {
	p.once.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}
