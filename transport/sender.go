package transport

import (
	"sync"
	"time"
)

//threadedSender calls the listener from its own goroutine at the configured frame rate
type threadedSender struct {
	senderBase
	listener SenderListener
	mu       sync.Mutex
	state    lifecycle
	quit     chan struct{}
	done     chan struct{}
}

func newThreadedSender(cfg Config, listener SenderListener) *threadedSender {
	return &threadedSender{senderBase: senderBase{cfg: cfg}, listener: listener}
}

func (s *threadedSender) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateRunning:
		return nil
	case stateClosed:
		return ErrClosed
	}
	sock, err := listen(s.cfg.address(), s.cfg.Logger)
	if err != nil {
		return err
	}
	s.sock = sock
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	s.state = stateRunning
	go s.run()
	s.cfg.Logger.Infof("started sender on %v", sock.localAddr())
	return nil
}

func (s *threadedSender) run() {
	defer close(s.done)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-timer.C:
		}
		start := time.Now()
		s.listener.OnPeriodic(start)
		//this sleeps nearly exactly so long that the loop is called every 1/fps seconds
		timer.Reset(frameSleep(start, time.Now(), s.cfg.FPS))
	}
}

//Stop waits for the running frame to finish, calls OnStop if the listener is a StopListener
//and closes the socket. It must not be called from the listener.
func (s *threadedSender) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateRunning {
		close(s.quit)
		<-s.done
		stopListener(s.listener)
		s.sock.close()
		s.cfg.Logger.Info("stopped sender")
	}
	s.state = stateClosed
}

//loopSender runs its frames as timers on a Loop
type loopSender struct {
	senderBase
	listener SenderListener
	loop     *Loop
	mu       sync.Mutex
	state    lifecycle
	//only touched on the loop
	enabled bool
	timer   *time.Timer
}

func newLoopSender(cfg Config, listener SenderListener) *loopSender {
	return &loopSender{senderBase: senderBase{cfg: cfg}, listener: listener, loop: cfg.Loop}
}

func (s *loopSender) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateRunning:
		return nil
	case stateClosed:
		return ErrClosed
	}
	sock, err := listen(s.cfg.address(), s.cfg.Logger)
	if err != nil {
		return err
	}
	s.sock = sock
	if !s.loop.Post(func() {
		s.enabled = true
		s.tick()
	}) {
		sock.close()
		return ErrClosed
	}
	s.state = stateRunning
	s.cfg.Logger.Infof("started sender on %v", sock.localAddr())
	return nil
}

//tick runs on the loop
func (s *loopSender) tick() {
	if !s.enabled {
		return
	}
	start := time.Now()
	s.listener.OnPeriodic(start)
	s.timer = s.loop.AfterFunc(frameSleep(start, time.Now(), s.cfg.FPS), s.tick)
}

//Stop cancels the pending frame, calls OnStop on the loop if the listener is a StopListener,
//waits a bounded time for the loop to settle and closes the socket
func (s *loopSender) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateRunning {
		settled := make(chan struct{})
		if s.loop.Post(func() {
			s.enabled = false
			if s.timer != nil {
				s.timer.Stop()
			}
			stopListener(s.listener)
			close(settled)
		}) {
			select {
			case <-settled:
			case <-s.loop.Done():
			case <-time.After(stopTimeout):
				s.cfg.Logger.Warn("event loop did not settle, closing the sender anyway")
			}
		}
		s.sock.close()
		s.cfg.Logger.Info("stopped sender")
	}
	s.state = stateClosed
}

func stopListener(listener SenderListener) {
	if l, ok := listener.(StopListener); ok {
		l.OnStop(time.Now())
	}
}
