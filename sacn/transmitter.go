package sacn

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Hundemeier/go-sacn/packets"
	"github.com/Hundemeier/go-sacn/transport"
	log "github.com/sirupsen/logrus"
)

const (
	//KeepAliveInterval is the maximum time an unchanged universe is not sent out
	KeepAliveInterval = time.Second
	//DiscoveryInterval is the cadence of universe discovery packets (E131_UNIVERSE_DISCOVERY_INTERVAL)
	DiscoveryInterval = 10 * time.Second
	//terminationPackets is the number of packets with the stream terminated bit set
	terminationPackets = 3
)

//Transmitter : This struct is for managing the transmitting of sACN data.
//It handles all outputs and overwatches what universes are already used.
//Every frame it sends out the outputs that changed or were not sent for a second and every
//10 seconds it advertises all activated universes via universe discovery.
type Transmitter struct {
	registry   *Registry
	cid        [16]byte //the global cid for all packets
	sourceName string   //the global source name for all packets
	discovery  bool
	newSender  func(listener transport.SenderListener) (transport.Sender, error)
	log        *log.Entry

	//lifecycle serializes Start and Stop, mu guards the fields below it
	lifecycle     sync.Mutex
	mu            sync.Mutex
	running       bool
	sender        transport.Sender
	terminating   []*Output
	lastDiscovery time.Time
}

//Option configures a Transmitter
type Option func(*transmitterConfig)

type transmitterConfig struct {
	transport transport.Config
	discovery bool
	sender    transport.Sender
	logger    *log.Entry
}

//WithBind sets the address and port the socket binds to. Use "" for all interfaces.
//On some operating systems (eg Windows) a bind address is needed for multicast and broadcast.
func WithBind(address string, port int) Option {
	return func(c *transmitterConfig) {
		c.transport.BindAddress = address
		c.transport.BindPort = port
	}
}

//WithFPS sets the frame rate of the sending loop, default is 30
func WithFPS(fps int) Option {
	return func(c *transmitterConfig) {
		c.transport.FPS = fps
	}
}

//WithUniverseDiscovery turns the universe discovery packets on or off, default is on
func WithUniverseDiscovery(enabled bool) Option {
	return func(c *transmitterConfig) {
		c.discovery = enabled
	}
}

//WithBackend chooses the concurrency model of the socket. The loop is needed for transport.EventLoop.
func WithBackend(backend transport.Backend, loop *transport.Loop) Option {
	return func(c *transmitterConfig) {
		c.transport.Backend = backend
		c.transport.Loop = loop
	}
}

//WithBroadcastPort changes the destination port of broadcasts, default is 5568
func WithBroadcastPort(port int) Option {
	return func(c *transmitterConfig) {
		c.transport.BroadcastPort = port
	}
}

//WithSender uses the given sender instead of a UDP socket. The caller drives OnPeriodic.
func WithSender(sender transport.Sender) Option {
	return func(c *transmitterConfig) {
		c.sender = sender
	}
}

//WithLogger sets the logger, default is the standard logrus logger
func WithLogger(logger *log.Entry) Option {
	return func(c *transmitterConfig) {
		c.logger = logger
	}
}

//NewTransmitter creates a new Transmitter object and returns it. Only use one object for one
//network interface. Nothing is sent before Start is called.
func NewTransmitter(cid [16]byte, sourceName string, opts ...Option) *Transmitter {
	cfg := transmitterConfig{discovery: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.WithField("component", "sacn/transmitter")
	}
	cfg.transport.Logger = cfg.logger
	t := &Transmitter{
		registry:   NewRegistry(),
		cid:        cid,
		sourceName: sourceName,
		discovery:  cfg.discovery,
		log:        cfg.logger,
	}
	if cfg.sender != nil {
		t.newSender = func(transport.SenderListener) (transport.Sender, error) { return cfg.sender, nil }
	} else {
		t.newSender = func(l transport.SenderListener) (transport.Sender, error) {
			return transport.NewSender(cfg.transport, l)
		}
	}
	return t
}

//Start binds the socket and starts sending. If binding fails, the error is returned and the
//Transmitter stays stopped. Starting a running Transmitter does nothing.
func (t *Transmitter) Start() error {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	if t.IsRunning() {
		return nil
	}
	sender, err := t.newSender(t)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.sender = sender
	t.running = true
	t.lastDiscovery = time.Time{}
	t.mu.Unlock()
	if err := sender.Start(); err != nil {
		t.mu.Lock()
		t.sender = nil
		t.running = false
		t.mu.Unlock()
		return err
	}
	t.log.Infof("started transmitter %q", t.sourceName)
	return nil
}

//Stop stops sending and closes the socket before it returns. Universes that were deactivated
//but not terminated yet get their stream terminated packets before the socket is closed.
//It is safe to call Stop more than once.
//The Transmitter can be started again, a new socket is used then.
func (t *Transmitter) Stop() {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	t.mu.Lock()
	sender := t.sender
	wasRunning := t.running
	t.running = false
	t.mu.Unlock()
	if !wasRunning {
		return
	}
	//the sending goroutine may still be inside OnPeriodic, so mu must not be held here.
	//The sender calls OnStop before it closes the socket.
	sender.Stop()
	t.mu.Lock()
	t.sender = nil
	t.terminating = nil
	t.mu.Unlock()
	t.log.Infof("stopped transmitter %q", t.sourceName)
}

//IsRunning returns true between Start and Stop
func (t *Transmitter) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

//Activate starts sending out DMX data on the given universe. The universe is sent with
//512 zero bytes until Update is called.
func (t *Transmitter) Activate(universe uint16, opts OutputOptions) error {
	_, err := t.registry.Register(universe, opts)
	if err == nil {
		t.log.Debugf("activated universe %v", universe)
	}
	return err
}

//Deactivate stops sending the universe. If the Transmitter is running, three packets with the
//stream terminated bit are sent with the next frame, or by Stop if it comes first.
//The universe can be activated again immediately.
func (t *Transmitter) Deactivate(universe uint16) error {
	o, err := t.registry.Deregister(universe)
	if err != nil {
		return err
	}
	t.mu.Lock()
	if t.running {
		t.terminating = append(t.terminating, o)
	}
	t.mu.Unlock()
	t.log.Debugf("deactivated universe %v", universe)
	return nil
}

//Update sets the DMX data of the universe. Data that equals the current data is ignored.
func (t *Transmitter) Update(universe uint16, data []byte) error {
	return t.registry.UpdatePayload(universe, data)
}

//Flush sends the universe with the next frame even if nothing changed
func (t *Transmitter) Flush(universe uint16) error {
	return t.registry.MarkDirty(universe)
}

//IsActivated checks if the given universe was activated and returns true if this is the case
func (t *Transmitter) IsActivated(universe uint16) bool {
	return t.registry.Get(universe) != nil
}

//GetActivated returns a slice with all activated universes in ascending order
func (t *Transmitter) GetActivated() []uint16 {
	return t.registry.Universes()
}

//Output returns the output of the universe or nil if it is not activated
func (t *Transmitter) Output(universe uint16) *Output {
	return t.registry.Get(universe)
}

func (t *Transmitter) modify(universe uint16, fn func(st *outputState)) error {
	o := t.registry.Get(universe)
	if o == nil {
		return ErrUniverseNotActive
	}
	o.update(fn)
	return nil
}

//SetMulticast is for setting wether or not a universe should be send out via multicast.
//Keep in mind, that on some operating systems you have to provide a bind address.
func (t *Transmitter) SetMulticast(universe uint16, multicast bool) error {
	return t.modify(universe, func(st *outputState) { st.multicast = multicast })
}

//SetDestination sets the unicast destination of the universe. It is used if multicast is off.
//An empty string falls back to broadcast.
func (t *Transmitter) SetDestination(universe uint16, destination string) error {
	addr, err := resolveDestination(destination)
	if err != nil {
		return err
	}
	return t.modify(universe, func(st *outputState) { st.destination = addr })
}

//SetTTL sets the multicast time-to-live of the universe
func (t *Transmitter) SetTTL(universe uint16, ttl int) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return t.modify(universe, func(st *outputState) { st.ttl = ttl })
}

//SetPriority sets the priority of the universe. Value must be [0-200]!
func (t *Transmitter) SetPriority(universe uint16, prio byte) error {
	if prio > 200 {
		return fmt.Errorf("sacn: the priority was %v and therefore is not in range [0-200]", prio)
	}
	return t.modify(universe, func(st *outputState) { st.priority = prio })
}

//SetPreviewData sets the preview_data flag of the universe
func (t *Transmitter) SetPreviewData(universe uint16, preview bool) error {
	return t.modify(universe, func(st *outputState) { st.preview = preview })
}

//SetSyncUniverse sets the synchronization address of the universe, 0 for none
func (t *Transmitter) SetSyncUniverse(universe uint16, sync uint16) error {
	return t.modify(universe, func(st *outputState) { st.syncUniverse = sync })
}

//OnPeriodic is called by the sender once per frame. It first sends the universe discovery
//packets if they are due and then every output that is dirty or was not sent for a second.
func (t *Transmitter) OnPeriodic(now time.Time) {
	t.mu.Lock()
	sender := t.sender
	if sender == nil {
		t.mu.Unlock()
		return
	}
	terminating := t.terminating
	t.terminating = nil
	discoveryDue := t.discovery && now.Sub(t.lastDiscovery) > DiscoveryInterval
	if discoveryDue {
		t.lastDiscovery = now
	}
	t.mu.Unlock()

	if discoveryDue {
		t.sendUniverseDiscovery(sender)
	}

	for _, o := range terminating {
		t.sendTermination(sender, o, now)
	}

	t.registry.ForEachSnapshot(func(o *Output) {
		if o.dirty.Load() || now.Sub(o.LastSentAt()) > KeepAliveInterval {
			t.sendOut(sender, o, now)
		}
	})
}

//OnStop is called by the sender after the last frame, while the socket is still open.
//It sends the stream terminated packets of the universes that were deactivated since the last frame.
func (t *Transmitter) OnStop(now time.Time) {
	t.mu.Lock()
	sender := t.sender
	terminating := t.terminating
	t.terminating = nil
	t.mu.Unlock()
	if sender == nil {
		return
	}
	for _, o := range terminating {
		t.sendTermination(sender, o, now)
	}
}

//sendOut handles sending and sequence numbering. The dirty flag is cleared before the state
//is read, so an update that happens during the send marks the output dirty again.
func (t *Transmitter) sendOut(sender transport.Sender, o *Output, now time.Time) {
	o.dirty.Store(false)
	st := o.state.Load()
	p := t.buildPacket(o, st)
	err := t.send(sender, p.Bytes(), o.universe, st)
	o.sent(now)
	if err != nil {
		//retry the change with the next frame
		o.dirty.Store(true)
		t.log.WithError(err).Warnf("failed to send universe %v", o.universe)
	}
}

func (t *Transmitter) sendTermination(sender transport.Sender, o *Output, now time.Time) {
	st := o.state.Load()
	for i := 0; i < terminationPackets; i++ {
		p := t.buildPacket(o, st)
		p.SetStreamTerminated(true)
		if err := t.send(sender, p.Bytes(), o.universe, st); err != nil {
			t.log.WithError(err).Warnf("failed to send stream termination of universe %v", o.universe)
		}
		o.sent(now)
	}
}

func (t *Transmitter) buildPacket(o *Output, st *outputState) *packets.DataPacket {
	p := packets.NewDataPacket()
	p.SetCID(t.cid)
	p.SetSourceName(t.sourceName)
	p.SetUniverse(o.universe)
	p.SetPriority(st.priority)
	p.SetPreviewData(st.preview)
	p.SetSyncAddress(st.syncUniverse)
	p.SetSequence(o.Sequence())
	p.SetData(st.data)
	return p
}

//send chooses the destination: the multicast group if multicast is on, else the unicast
//destination and if there is none the broadcast address.
func (t *Transmitter) send(sender transport.Sender, data []byte, universe uint16, st *outputState) error {
	switch {
	case st.multicast:
		return sender.SendMulticast(data, packets.MulticastUDPAddr(universe), st.ttl)
	case st.destination != nil:
		return sender.SendUnicast(data, st.destination)
	default:
		return sender.SendBroadcast(data)
	}
}

//hint: on windows a bind address must be set, to use broadcast
func (t *Transmitter) sendUniverseDiscovery(sender transport.Sender) {
	list := packets.NewUniverseDiscoveryPackets(t.cid, t.sourceName, t.registry.Universes())
	for _, p := range list {
		if err := sender.SendBroadcast(p.Bytes()); err != nil {
			t.log.WithError(err).Warn("failed to send universe discovery")
		}
	}
	t.log.Debugf("sent %v universe discovery packets", len(list))
}

//Destination returns the unicast destination of the universe or nil
func (t *Transmitter) Destination(universe uint16) *net.UDPAddr {
	if o := t.registry.Get(universe); o != nil {
		return o.Destination()
	}
	return nil
}
