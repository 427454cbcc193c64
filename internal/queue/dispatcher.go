package queue

import "sync"

// dispatcher runs posted tasks one at a time, in post order, on its own
// goroutine. The task list is unbounded so posting never blocks, even when a
// task posts more work.
type dispatcher struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

// post appends a task. Returns false once the dispatcher is closed.
func (d *dispatcher) post(task func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.tasks = append(d.tasks, task)
	d.mu.Unlock()

	d.signal()
	return true
}

func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)

	for {
		d.mu.Lock()
		for len(d.tasks) == 0 && !d.closed {
			d.mu.Unlock()
			<-d.wake
			d.mu.Lock()
		}
		if len(d.tasks) == 0 {
			// closed and drained
			d.mu.Unlock()
			return
		}
		batch := d.tasks
		d.tasks = nil
		d.mu.Unlock()

		for _, task := range batch {
			task()
		}
	}
}

// close stops accepting tasks, runs everything already posted and waits for
// the goroutine to exit. It must not be called from a task.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.signal()
	<-d.done
}
