package scanner

import (
	"sync"
)

// Loop runs posted tasks one at a time, in posting order, on a single
// goroutine. It stands in for the presentation surface's own thread: every
// overlay redraw and list append happens here.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool
	done    chan struct{}
}

// NewLoop starts a loop goroutine.
func NewLoop() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.stopped {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		task()
	}
}

// Post schedules fn and reports whether it was accepted. Tasks posted after
// Stop are rejected.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return false
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return true
}

// Stop rejects new tasks, lets queued ones finish and waits for the loop
// goroutine to exit. It is safe to call more than once, but never from a
// task running on the loop.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.cond.Broadcast()
	l.mu.Unlock()
	<-l.done
}
