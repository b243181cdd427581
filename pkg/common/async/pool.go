package async

import (
	"context"
	"sync"
)

// DefaultMaxWorkers of a Pool. See Pool.SetMaxWorkers for more info.
const DefaultMaxWorkers = 4

// PoolOptions for constructing a new Pool.
type PoolOptions struct {
	MaxWorkers int
}

// Pool runs up to a maximum number of jobs concurrently. The pool has an
// internal queue, so all jobs added are accepted but not run until they
// reach the front of the queue and a worker is free. Each worker pulls a
// job off the queue and runs it to completion.
type Pool struct {
	sync.Mutex
	options    PoolOptions
	queue      *Queue
	numWorkers int
	jobs       sync.WaitGroup
	stopChan   chan bool
}

// NewPool returns a new pool, provided the PoolOptions.
func NewPool(o PoolOptions) *Pool {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}

	p := &Pool{
		options:    o,
		queue:      NewQueue(),
		numWorkers: o.MaxWorkers,
		stopChan:   make(chan bool),
	}

	for i := 0; i < o.MaxWorkers; i++ {
		go p.runWorker()
	}

	return p
}

// SetMaxWorkers resizes the pool. If smaller than the current value, it
// will lazily close existing workers. If greater, new workers will be
// created. If 0 or less is given, DefaultMaxWorkers is used instead.
func (p *Pool) SetMaxWorkers(num int) {
	if num <= 0 {
		num = DefaultMaxWorkers
	}

	p.Lock()
	p.options.MaxWorkers = num
	if p.numWorkers > p.options.MaxWorkers {
		go p.stopWorkers()
	} else if p.numWorkers < p.options.MaxWorkers {
		go p.addWorkers()
	}
	p.Unlock()
}

// Enqueue a job in the pool.
func (p *Pool) Enqueue(job Job) {
	p.jobs.Add(1)
	p.queue.Enqueue(job)
}

// WaitUntilProcessed blocks until both the queue is empty and all workers
// are idle. Useful for driving one placement round to completion in tests.
func (p *Pool) WaitUntilProcessed() {
	p.jobs.Wait()
}

// Stop sets the goal worker count to zero and tears down running workers.
func (p *Pool) Stop() {
	p.Lock()
	p.options.MaxWorkers = 0
	p.Unlock()
	p.stopWorkers()
}

func (p *Pool) addWorkers() {
	for {
		p.Lock()
		if p.numWorkers >= p.options.MaxWorkers {
			p.Unlock()
			break
		}
		p.numWorkers++
		go p.runWorker()
		p.Unlock()
	}
}

func (p *Pool) stopWorkers() {
	for {
		p.Lock()
		if p.numWorkers <= p.options.MaxWorkers {
			p.Unlock()
			break
		}
		select {
		case p.stopChan <- true:
			p.numWorkers--
		default:
		}
		p.Unlock()
	}
}

func (p *Pool) runWorker() {
	for {
		select {
		case <-p.stopChan:
			return
		case job := <-p.queue.DequeueChannel():
			job.Run(context.TODO())
			p.jobs.Done()
		}
	}
}
