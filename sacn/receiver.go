package sacn

import (
	"bytes"
	"errors"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Hundemeier/go-sacn/metrics"
	"github.com/Hundemeier/go-sacn/packets"
	"github.com/Hundemeier/go-sacn/transport"
	log "github.com/sirupsen/logrus"
)

//Timeout is the time after which a universe without data is timed out (E131_NETWORK_DATA_LOSS_TIMEOUT)
const Timeout = 2500 * time.Millisecond

//ReceiverSocket is used to listen on a network interface for sACN data.
//The OnChangeCallback is used for changed DMX data. So if a source or priority changed,
//this callback will not be invoked if not the DMX data has changed.
//This Receiver checks for out-of-order packets and sorts out packets with too low priority.
//
//All callbacks are called from the goroutine of the socket (or the EventLoop), they must not
//call Close.
type ReceiverSocket struct {
	receiver     transport.Receiver
	log          *log.Entry
	decodeErrors atomic.Uint64

	mu sync.Mutex
	//OnChangeCallback gets called if the data on one universe has changed
	onChangeCallback func(old, new *packets.DataPacket)
	//TimeoutCallback gets called, if a timout on a universe occurs
	timeoutCallback   func(universe uint16)
	discoveryCallback func(p *packets.UniverseDiscoveryPacket)
	syncCallback      func(p *packets.SyncPacket)
	lastDatas         map[uint16]lastData
	timeoutCalled     map[uint16]bool //true, if the timeout was called. To prevent send a timeoutcallback twice
}

type lastData struct {
	lastTime   time.Time
	lastPacket *packets.DataPacket
}

//ReceiverOption configures a ReceiverSocket
type ReceiverOption func(*transport.Config)

//WithReceiverBackend chooses the concurrency model of the socket. The loop is needed for transport.EventLoop.
func WithReceiverBackend(backend transport.Backend, loop *transport.Loop) ReceiverOption {
	return func(c *transport.Config) {
		c.Backend = backend
		c.Loop = loop
	}
}

//WithReceiverPort sets the port to listen on, default is 5568. Use -1 to let the system choose.
func WithReceiverPort(port int) ReceiverOption {
	return func(c *transport.Config) {
		c.BindPort = port
	}
}

//WithReceiverLogger sets the logger, default is the standard logrus logger
func WithReceiverLogger(logger *log.Entry) ReceiverOption {
	return func(c *transport.Config) {
		c.Logger = logger
	}
}

//NewReceiverSocket creates a new unbound ReceiverSocket. bind is the address to listen on, ""
//listens on all interfaces. ifi is the interface that is used for joining multicast groups,
//depending on your operating system nil may be enough. Call Start to receive.
func NewReceiverSocket(bind string, ifi *net.Interface, opts ...ReceiverOption) (*ReceiverSocket, error) {
	cfg := transport.Config{BindAddress: bind, Interface: ifi}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.WithField("component", "sacn/receiver")
	}
	r := &ReceiverSocket{
		log:           cfg.Logger,
		lastDatas:     make(map[uint16]lastData),
		timeoutCalled: make(map[uint16]bool),
	}
	recv, err := transport.NewReceiver(cfg, r)
	if err != nil {
		return nil, err
	}
	r.receiver = recv
	return r, nil
}

//Start binds the socket and starts receiving
func (r *ReceiverSocket) Start() error {
	return r.receiver.Start()
}

//Close will close the open udp socket. No callback is called after Close returned.
//If you want to receive again, create a new ReceiverSocket object.
func (r *ReceiverSocket) Close() {
	r.receiver.Stop()
}

//JoinUniverse joins the used udp socket to the multicast-group that is used for the universe.
//After the multicast-group was joined, any source that transmitt on this universe via multicast
//should reach this socket. Use packets.DiscoveryUniverse to receive universe discovery packets.
func (r *ReceiverSocket) JoinUniverse(universe uint16) error {
	if !packets.ValidUniverse(universe) && universe != packets.DiscoveryUniverse {
		return ErrInvalidUniverse
	}
	return r.receiver.JoinMulticast(packets.MulticastAddr(universe))
}

//LeaveUniverse will leave the mutlicast-group of the given universe.
//If the the socket was not joined to the multicast-group nothing will happen.
//Please note, that if you leave a group, a timeout may occurr, because no more data has arrived.
func (r *ReceiverSocket) LeaveUniverse(universe uint16) {
	r.receiver.LeaveMulticast(packets.MulticastAddr(universe))
}

//LocalAddr returns the address the socket is bound to, nil if it is not started
func (r *ReceiverSocket) LocalAddr() *net.UDPAddr {
	return r.receiver.LocalAddr()
}

//Errors returns the number of errors the socket reported
func (r *ReceiverSocket) Errors() uint64 {
	return r.receiver.Errors()
}

//DecodeErrors returns the number of datagrams that were no valid sACN packets
func (r *ReceiverSocket) DecodeErrors() uint64 {
	return r.decodeErrors.Load()
}

//SetOnChangeCallback sets the given function as callback for the receiver. If no old DataPacket can
//be provided, it is a packet with universe 0.
func (r *ReceiverSocket) SetOnChangeCallback(callback func(old, new *packets.DataPacket)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChangeCallback = callback
}

//SetTimeoutCallback sets the callback for timeouts. The callback gets called everytime a timeout is
//recognized or a source terminated its stream.
func (r *ReceiverSocket) SetTimeoutCallback(callback func(universe uint16)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeoutCallback = callback
}

//SetDiscoveryCallback sets the callback for universe discovery packets
func (r *ReceiverSocket) SetDiscoveryCallback(callback func(p *packets.UniverseDiscoveryPacket)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discoveryCallback = callback
}

//SetSyncCallback sets the callback for synchronization packets
func (r *ReceiverSocket) SetSyncCallback(callback func(p *packets.SyncPacket)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncCallback = callback
}

//OnData is called by the transport for every datagram
func (r *ReceiverSocket) OnData(raw []byte, now time.Time) {
	p, err := packets.Decode(raw)
	if err != nil {
		r.decodeErrors.Add(1)
		var decErr *packets.DecodeError
		if errors.As(err, &decErr) {
			metrics.RecordDecodeError(decErr.Kind.String())
		}
		r.log.Debugf("dropped datagram: %v", err)
		return
	}
	switch p := p.(type) {
	case *packets.DataPacket:
		r.handle(p, now)
	case *packets.UniverseDiscoveryPacket:
		r.mu.Lock()
		callback := r.discoveryCallback
		r.mu.Unlock()
		if callback != nil {
			callback(p)
		}
	case *packets.SyncPacket:
		r.mu.Lock()
		callback := r.syncCallback
		r.mu.Unlock()
		if callback != nil {
			callback(p)
		}
	}
}

//OnPeriodic is called by the transport and checks for timeouts
func (r *ReceiverSocket) OnPeriodic(now time.Time) {
	r.checkForTimeouts(now)
}

//handle checks all necessary things to decide if callbacks should be invoked.
//The callbacks are called after the lock was released.
func (r *ReceiverSocket) handle(p *packets.DataPacket, now time.Time) {
	univ := p.Universe()
	r.mu.Lock()
	last, ok := r.lastDatas[univ]
	//a packet after a timeout is always accepted
	if ok && now.Sub(last.lastTime) <= Timeout {
		if last.lastPacket.CID() == p.CID() {
			if !packets.CheckSequence(last.lastPacket.Sequence(), p.Sequence()) {
				r.mu.Unlock()
				return
			}
		} else if p.Priority() < last.lastPacket.Priority() {
			r.mu.Unlock()
			return
		}
	}

	if p.StreamTerminated() {
		callTimeout := ok && !r.timeoutCalled[univ]
		delete(r.lastDatas, univ)
		delete(r.timeoutCalled, univ)
		callback := r.timeoutCallback
		r.mu.Unlock()
		if callTimeout && callback != nil {
			callback(univ)
		}
		return
	}

	old := packets.NewDataPacket()
	if ok {
		old = last.lastPacket
	}
	changed := !ok || !bytes.Equal(old.Data(), p.Data())
	//store the packet
	r.lastDatas[univ] = lastData{lastPacket: p.Copy(), lastTime: now}
	r.timeoutCalled[univ] = false
	callback := r.onChangeCallback
	r.mu.Unlock()
	if changed && callback != nil {
		callback(old, p)
	}
}

//checkForTimeouts checks all last data if a universe had a timeout. Calls the timeoutCallback
//once per timeout in ascending order of the universes.
func (r *ReceiverSocket) checkForTimeouts(now time.Time) {
	r.mu.Lock()
	timedOut := make([]uint16, 0)
	for univ, last := range r.lastDatas {
		if now.Sub(last.lastTime) > Timeout && !r.timeoutCalled[univ] {
			r.timeoutCalled[univ] = true
			timedOut = append(timedOut, univ)
		}
	}
	callback := r.timeoutCallback
	r.mu.Unlock()
	if callback == nil {
		return
	}
	sort.Slice(timedOut, func(i, j int) bool { return timedOut[i] < timedOut[j] })
	for _, univ := range timedOut {
		callback(univ)
	}
}
