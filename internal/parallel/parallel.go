// Package parallel provides a bounded worker pool with futures. Rule
// evaluations that hit the network are submitted to the pool and joined
// later, so one evaluation pass costs the slowest call, not the sum.
package parallel

import "sync"

// Future holds the eventual result of a submitted task.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Result blocks until the task finishes and returns its outcome.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.val, f.err
}

// Pool dispatches tasks to at most size concurrent workers. A nil Pool runs
// every task synchronously at submission time, which keeps tests and
// deterministic replays trivially ordered.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Submit schedules fn on the pool and returns a future for its result.
func Submit[T any](p *Pool, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	if p == nil {
		f.val, f.err = fn()
		close(f.done)
		return f
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		f.val, f.err = fn()
		close(f.done)
	}()
	return f
}

// Wait blocks until every submitted task has completed.
func (p *Pool) Wait() {
	if p != nil {
		p.wg.Wait()
	}
}
