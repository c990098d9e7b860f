package concurrent

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrScheduleTimeout = errors.New("schedule error: timed out")
	ErrPoolClosed      = errors.New("schedule error: pool closed")
)

// Pool. goroutine pool for short tasks fired by netpoll events.
// at most size goroutines run at once, queued tasks wait in a buffer of queue tasks.
type Pool struct {
	sem  chan struct{}
	work chan func()

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool. spawn goroutines are started eagerly, the rest on demand up to size.
func NewPool(size, queue, spawn int) *Pool {
	if size < 1 {
		size = 1
	}
	if spawn > size {
		spawn = size
	}
	p := &Pool{
		sem:  make(chan struct{}, size),
		work: make(chan func(), queue),
	}
	for i := 0; i < spawn; i++ {
		p.sem <- struct{}{}
		p.wg.Add(1)
		go p.worker(func() {})
	}
	return p
}

// Schedule. block until task is queued or a worker takes it.
func (p *Pool) Schedule(task func()) error {
	return p.schedule(task, nil)
}

// ScheduleTimeout. like Schedule but gives up with ErrScheduleTimeout after timeout.
func (p *Pool) ScheduleTimeout(timeout time.Duration, task func()) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	return p.schedule(task, t.C)
}

func (p *Pool) schedule(task func(), timeout <-chan time.Time) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-timeout:
		return ErrScheduleTimeout
	case p.work <- task:
		return nil
	case p.sem <- struct{}{}:
		p.wg.Add(1)
		go p.worker(task)
		return nil
	}
}

func (p *Pool) worker(task func()) {
	defer func() {
		<-p.sem
		p.wg.Done()
	}()

	task()
	for task := range p.work {
		task()
	}
}

// Close. stop accepting tasks, wait for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.work)
	p.mu.Unlock()

	p.wg.Wait()
}
