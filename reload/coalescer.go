package reload

import "sync"

// Task is a unit of work run by a Coalescer.
type Task func()

// Coalescer runs submitted tasks one at a time, keeping only the most recent
// task that has not yet started.
type Coalescer struct {
	mu      sync.Mutex
	idle    *sync.Cond
	pending Task
	running bool

	ran      int
	replaced int
}

// NewCoalescer creates an idle Coalescer.
func NewCoalescer() *Coalescer {
	c := &Coalescer{}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Submit schedules task. It reports whether a pending task was displaced.
func (c *Coalescer) Submit(task Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	displaced := c.pending != nil
	if displaced {
		c.replaced++
	}
	c.pending = task

	if !c.running {
		c.running = true
		go c.drain()
	}
	return displaced
}

func (c *Coalescer) drain() {
	for {
		c.mu.Lock()
		task := c.pending
		c.pending = nil
		if task == nil {
			c.running = false
			c.idle.Broadcast()
			c.mu.Unlock()
			return
		}
		c.ran++
		c.mu.Unlock()

		task()
	}
}

// Wait blocks until no task is running or pending.
func (c *Coalescer) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.running {
		c.idle.Wait()
	}
}

// Stats returns how many tasks ran and how many were displaced before running.
func (c *Coalescer) Stats() (ran, replaced int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ran, c.replaced
}
