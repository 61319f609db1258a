package transport

import (
	"sync"
	"time"
)

//Loop runs posted functions one after another on a single goroutine.
//Everything that runs on the loop may touch shared state without locking.
type Loop struct {
	tasks     chan func()
	quit      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

//NewLoop creates a loop. Call Run or Start to process posted functions.
func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 64),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

//Run processes posted functions until Close is called. Only the first call runs the loop,
//later calls return immediately.
func (l *Loop) Run() {
	l.startOnce.Do(func() {
		defer close(l.done)
		for {
			select {
			case <-l.quit:
				return
			case fn := <-l.tasks:
				fn()
			}
		}
	})
}

//Start runs the loop in a new goroutine
func (l *Loop) Start() {
	go l.Run()
}

//Close stops the loop after the running function returned. Pending functions are dropped.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.quit)
	})
}

//Done is closed when Run returned
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

//Post schedules fn to run on the loop. It returns false if the loop was closed.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

//Call runs fn on the loop and waits until it returned. It returns false if fn did not run
//because the loop was closed. Do not use Call from a function that runs on the loop.
func (l *Loop) Call(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

//AfterFunc posts fn to the loop after the duration d. The returned timer can cancel it
//as long as it was not posted yet.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		l.Post(fn)
	})
}
