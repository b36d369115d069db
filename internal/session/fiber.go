package session

import (
	"sync"

	"go.uber.org/zap"
)

// Pool bounds how many fibers drain at the same time.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewPool creates a pool running at most size tasks concurrently.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Go runs fn once a worker slot is free. It never blocks the caller.
func (p *Pool) Go(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		fn()
	}()
}

// Wait blocks until every task handed to Go has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Fiber runs the tasks of one session in order, one at a time, on a shared Pool.
type Fiber struct {
	pool   *Pool
	logger *zap.Logger

	mu      sync.Mutex
	queue   []func()
	running bool
}

// NewFiber creates an idle fiber.
func NewFiber(pool *Pool, logger *zap.Logger) *Fiber {
	return &Fiber{pool: pool, logger: logger}
}

// Enqueue appends task and starts a drain if none is active.
func (f *Fiber) Enqueue(task func()) {
	f.mu.Lock()
	f.queue = append(f.queue, task)
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.mu.Unlock()

	f.pool.Go(f.drain)
}

// Pending returns the number of queued tasks.
func (f *Fiber) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

func (f *Fiber) drain() {
	for {
		f.mu.Lock()
		if len(f.queue) == 0 {
			f.running = false
			f.mu.Unlock()
			return
		}
		task := f.queue[0]
		f.queue[0] = nil
		f.queue = f.queue[1:]
		f.mu.Unlock()

		f.run(task)
	}
}

func (f *Fiber) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("fiber task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	task()
}
