package transport

import (
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/Hundemeier/go-sacn/metrics"
)

//threadedReceiver reads in its own goroutine and calls the listener from there
type threadedReceiver struct {
	receiverBase
	state lifecycle
	quit  chan struct{}
	done  chan struct{}
}

func newThreadedReceiver(cfg Config, listener ReceiverListener) *threadedReceiver {
	return &threadedReceiver{receiverBase: receiverBase{cfg: cfg, listener: listener}}
}

func (r *threadedReceiver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case stateRunning:
		return nil
	case stateClosed:
		return ErrClosed
	}
	sock, err := listen(r.cfg.address(), r.cfg.Logger)
	if err != nil {
		return err
	}
	//some testing revealed that sometimes in multicast-use packets were lost
	//a bigger buffer should help out the problem
	sock.conn.SetReadBuffer(8 * maxDatagramSize)
	r.sock = sock
	r.quit = make(chan struct{})
	r.done = make(chan struct{})
	r.state = stateRunning
	go r.run(sock)
	r.cfg.Logger.Infof("started receiver on %v", sock.localAddr())
	return nil
}

func (r *threadedReceiver) run(sock *socket) {
	defer close(r.done)
	buf := make([]byte, maxDatagramSize)
	lastPeriodic := time.Now()
	for {
		select {
		case <-r.quit:
			return
		default:
		}
		sock.conn.SetReadDeadline(lastPeriodic.Add(r.cfg.PeriodicInterval))
		n, _, err := sock.conn.ReadFromUDP(buf)
		now := time.Now()
		if err != nil {
			//a timeout only means that the periodic callback is due
			var netErr net.Error
			timeout := errors.As(err, &netErr) && netErr.Timeout()
			if !timeout && r.readError(err) {
				return
			}
		} else {
			metrics.RecordReceive()
			r.listener.OnData(append([]byte(nil), buf[:n]...), now)
		}
		if now.Sub(lastPeriodic) >= r.cfg.PeriodicInterval {
			r.listener.OnPeriodic(now)
			lastPeriodic = now
		}
	}
}

//Stop wakes up the reading goroutine, waits for it and closes the socket.
//It must not be called from the listener.
func (r *threadedReceiver) Stop() {
	r.mu.Lock()
	wasRunning := r.state == stateRunning
	r.state = stateClosed
	r.mu.Unlock()
	if !wasRunning {
		return
	}
	//the lock is released, the listener may still join or leave groups until the goroutine exits
	close(r.quit)
	r.sock.conn.SetReadDeadline(time.Now())
	<-r.done
	r.sock.close()
	r.cfg.Logger.Info("stopped receiver")
}

//loopReceiver reads in a helper goroutine and posts every datagram to the Loop.
//There is no timer, OnPeriodic is called for every datagram before OnData.
type loopReceiver struct {
	receiverBase
	loop    *Loop
	state   lifecycle
	enabled atomic.Bool
	done    chan struct{}
}

func newLoopReceiver(cfg Config, listener ReceiverListener) *loopReceiver {
	return &loopReceiver{receiverBase: receiverBase{cfg: cfg, listener: listener}, loop: cfg.Loop}
}

func (r *loopReceiver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case stateRunning:
		return nil
	case stateClosed:
		return ErrClosed
	}
	sock, err := listen(r.cfg.address(), r.cfg.Logger)
	if err != nil {
		return err
	}
	sock.conn.SetReadBuffer(8 * maxDatagramSize)
	r.sock = sock
	r.done = make(chan struct{})
	r.enabled.Store(true)
	r.state = stateRunning
	go r.read(sock)
	r.cfg.Logger.Infof("started receiver on %v", sock.localAddr())
	return nil
}

func (r *loopReceiver) read(sock *socket) {
	defer close(r.done)
	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := sock.conn.ReadFromUDP(buf)
		if err != nil {
			if r.readError(err) {
				return
			}
			continue
		}
		metrics.RecordReceive()
		data := append([]byte(nil), buf[:n]...)
		now := time.Now()
		if !r.loop.Post(func() {
			if !r.enabled.Load() {
				return
			}
			r.listener.OnPeriodic(now)
			r.listener.OnData(data, now)
		}) {
			return
		}
	}
}

//Stop disables the callbacks, closes the socket and waits a bounded time for the reader to exit
//and for a callback that is running on the loop to return. It must not be called from the listener.
func (r *loopReceiver) Stop() {
	r.mu.Lock()
	wasRunning := r.state == stateRunning
	r.state = stateClosed
	r.mu.Unlock()
	if !wasRunning {
		return
	}
	r.enabled.Store(false)
	r.sock.close()
	deadline := time.NewTimer(stopTimeout)
	defer deadline.Stop()
	select {
	case <-r.done:
	case <-deadline.C:
		r.cfg.Logger.Warn("receiver did not settle")
		return
	}
	//the loop runs in order, so once this ran no callback of this receiver is running anymore
	settled := make(chan struct{})
	if r.loop.Post(func() { close(settled) }) {
		select {
		case <-settled:
		case <-r.loop.Done():
		case <-deadline.C:
			r.cfg.Logger.Warn("event loop did not settle")
			return
		}
	}
	r.cfg.Logger.Info("stopped receiver")
}
