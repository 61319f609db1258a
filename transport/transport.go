/*Package transport owns the UDP sockets of the sACN sender and receiver.

Every transport comes in two backends with the same behaviour as seen from the caller:

Threaded runs each transport in its own goroutine. The sender goroutine calls
SenderListener.OnPeriodic once per frame, the receiver goroutine reads with a deadline so
ReceiverListener.OnPeriodic is called at least every PeriodicInterval even if no data arrives.

EventLoop runs all callbacks on the single goroutine of an EventLoop. Sender frames are
loop timers. The receiver has no free running timer: OnPeriodic is called right before
OnData for every datagram, so it only fires while data arrives. Callers have to tolerate that.

A transport can be started once. After Stop the socket is closed and the transport can not
be used again.
*/
package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Hundemeier/go-sacn/packets"
	log "github.com/sirupsen/logrus"
)

//Backend selects the concurrency model of a transport
type Backend int

const (
	//Threaded runs the transport in its own goroutine with a blocking socket
	Threaded Backend = iota
	//EventLoop runs all callbacks of the transport on an EventLoop
	EventLoop
)

func (b Backend) String() string {
	switch b {
	case Threaded:
		return "threaded"
	case EventLoop:
		return "eventloop"
	}
	return "Backend(" + strconv.Itoa(int(b)) + ")"
}

const (
	//DefaultFPS is the default rate of the sender loop
	DefaultFPS = 30
	//DefaultPeriodicInterval is the default interval of OnPeriodic for threaded receivers
	DefaultPeriodicInterval = time.Second
	//stopTimeout bounds the time Stop waits for the event loop to settle
	stopTimeout = time.Second
	//maxDatagramSize is big enough for every sACN packet
	maxDatagramSize = 1144
)

var (
	//ErrClosed is returned if a transport is used after Stop was called
	ErrClosed = errors.New("transport: transport was stopped and can not be reused")
	//ErrNotStarted is returned if the socket is used before Start was called
	ErrNotStarted = errors.New("transport: transport is not started")
	//ErrNoLoop is returned by the constructors if the EventLoop backend is chosen without a loop
	ErrNoLoop = errors.New("transport: the eventloop backend needs an EventLoop")
)

//SenderListener is driven by a Sender once per frame
type SenderListener interface {
	OnPeriodic(now time.Time)
}

//SenderListenerFunc adapts a function to a SenderListener
type SenderListenerFunc func(now time.Time)

//OnPeriodic calls f(now)
func (f SenderListenerFunc) OnPeriodic(now time.Time) {
	f(now)
}

//StopListener is implemented by SenderListeners that send a last time before the socket
//is closed. OnStop is called once by Stop after the last frame, on the goroutine that ran the frames.
type StopListener interface {
	OnStop(now time.Time)
}

//ReceiverListener gets the raw datagrams of a Receiver
type ReceiverListener interface {
	//OnData is called with a copy of every received datagram
	OnData(raw []byte, now time.Time)
	//OnPeriodic is used to drive timeouts. See the package documentation for the cadence.
	OnPeriodic(now time.Time)
}

//Sender sends out sACN packets. Only the goroutine that runs the listener may send,
//so the multicast TTL is never changed by someone else between setting it and sending.
type Sender interface {
	Start() error
	Stop()
	SendUnicast(data []byte, destination *net.UDPAddr) error
	SendMulticast(data []byte, destination *net.UDPAddr, ttl int) error
	SendBroadcast(data []byte) error
}

//Receiver receives sACN packets and manages the multicast memberships of its socket
type Receiver interface {
	Start() error
	Stop()
	JoinMulticast(group net.IP) error
	//LeaveMulticast never fails, leaving a group that was not joined is ignored
	LeaveMulticast(group net.IP)
	//Errors returns the number of errors the socket reported while receiving
	Errors() uint64
	//LocalAddr returns the bound address or nil if the receiver is not started
	LocalAddr() *net.UDPAddr
}

//Config holds the settings of a transport. The zero value is a threaded transport
//bound to all interfaces on port 5568.
type Config struct {
	//BindAddress is the ip address of the interface to bind to, empty for all
	BindAddress string
	//BindPort defaults to 5568. Use -1 to let the OS choose a port.
	BindPort int
	//FPS is the frame rate of the sender loop, defaults to 30
	FPS int
	//BroadcastPort is the destination port of broadcasts, defaults to 5568
	BroadcastPort int
	//PeriodicInterval is the cadence of OnPeriodic for threaded receivers
	PeriodicInterval time.Duration
	//Interface is used to join multicast groups. nil lets the OS choose.
	Interface *net.Interface
	Backend   Backend
	//Loop is required for the EventLoop backend
	Loop   *Loop
	Logger *log.Entry
}

func (c Config) withDefaults() Config {
	if c.BindPort == 0 {
		c.BindPort = packets.DefaultPort
	} else if c.BindPort < 0 {
		c.BindPort = 0
	}
	if c.FPS <= 0 {
		c.FPS = DefaultFPS
	}
	if c.BroadcastPort == 0 {
		c.BroadcastPort = packets.DefaultPort
	}
	if c.PeriodicInterval <= 0 {
		c.PeriodicInterval = DefaultPeriodicInterval
	}
	if c.Logger == nil {
		c.Logger = log.WithField("component", "sacn/transport")
	}
	return c
}

func (c Config) address() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.BindPort))
}

//NewSender creates a sender with the backend chosen in the config.
//The listener is called once per frame after Start.
func NewSender(cfg Config, listener SenderListener) (Sender, error) {
	cfg = cfg.withDefaults()
	switch cfg.Backend {
	case Threaded:
		return newThreadedSender(cfg, listener), nil
	case EventLoop:
		if cfg.Loop == nil {
			return nil, ErrNoLoop
		}
		return newLoopSender(cfg, listener), nil
	}
	return nil, fmt.Errorf("transport: unknown backend %v", cfg.Backend)
}

//NewReceiver creates a receiver with the backend chosen in the config
func NewReceiver(cfg Config, listener ReceiverListener) (Receiver, error) {
	cfg = cfg.withDefaults()
	switch cfg.Backend {
	case Threaded:
		return newThreadedReceiver(cfg, listener), nil
	case EventLoop:
		if cfg.Loop == nil {
			return nil, ErrNoLoop
		}
		return newLoopReceiver(cfg, listener), nil
	}
	return nil, fmt.Errorf("transport: unknown backend %v", cfg.Backend)
}

//frameSleep returns how long to sleep after a frame that started at start to keep the frame rate.
//Overruns are not caught up.
func frameSleep(start, now time.Time, fps int) time.Duration {
	sleep := time.Second/time.Duration(fps) - now.Sub(start)
	if sleep < 0 {
		return 0
	}
	return sleep
}
