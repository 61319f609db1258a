package sacn

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Hundemeier/go-sacn/packets"
)

//DefaultTTL is the multicast time-to-live of new outputs
const DefaultTTL = 64

var (
	//ErrInvalidUniverse is returned for universes outside of [1-63999]
	ErrInvalidUniverse = errors.New("sacn: universe must be in range [1-63999]")
	//ErrUniverseActive is returned if a universe is activated twice
	ErrUniverseActive = errors.New("sacn: universe is already activated")
	//ErrUniverseNotActive is returned if a universe was not activated
	ErrUniverseNotActive = errors.New("sacn: universe is not activated")
)

//OutputOptions are the settings of an output. The zero value sends via broadcast with
//priority 100 and a multicast TTL of 64 once multicast is turned on.
type OutputOptions struct {
	//Multicast sends the universe to its multicast group, it has precedence over Destination
	Multicast bool
	//Destination is the unicast ip address, optionally with port. Empty means broadcast.
	Destination string
	//TTL is the multicast time-to-live, 0 means DefaultTTL
	TTL int
	//Priority in range [0-200], 0 means 100
	Priority    byte
	PreviewData bool
	//SyncUniverse is the synchronization address of the data packets, 0 for none
	SyncUniverse uint16
}

//outputState is never changed after it was published, updates replace the whole state
type outputState struct {
	data         []byte
	multicast    bool
	destination  *net.UDPAddr
	ttl          int
	priority     byte
	preview      bool
	syncUniverse uint16
}

//Output is the state of one universe that is sent out by a Transmitter.
//
//The application goroutine only replaces the state and sets the dirty flag. The sending
//goroutine only writes the sequence number and the time of the last send and clears the dirty flag.
//Every field has a single writer, so there is no lock per output.
type Output struct {
	universe   uint16
	state      atomic.Pointer[outputState]
	dirty      atomic.Bool
	sequence   atomic.Uint32
	lastSentAt atomic.Int64
}

func newOutput(universe uint16, opts OutputOptions) (*Output, error) {
	st, err := opts.state()
	if err != nil {
		return nil, err
	}
	st.data = make([]byte, packets.MaxChannels)
	o := &Output{universe: universe}
	o.state.Store(st)
	o.dirty.Store(true)
	return o, nil
}

func (opts OutputOptions) state() (*outputState, error) {
	st := &outputState{
		multicast:    opts.Multicast,
		ttl:          opts.TTL,
		priority:     opts.Priority,
		preview:      opts.PreviewData,
		syncUniverse: opts.SyncUniverse,
	}
	if st.ttl <= 0 {
		st.ttl = DefaultTTL
	}
	if st.priority == 0 {
		st.priority = 100
	}
	if st.priority > 200 {
		return nil, fmt.Errorf("sacn: the priority was %v and therefore is not in range [0-200]", opts.Priority)
	}
	dest, err := resolveDestination(opts.Destination)
	if err != nil {
		return nil, err
	}
	st.destination = dest
	return st, nil
}

//resolveDestination parses an ip address with optional port, port 5568 is used if it is missing
func resolveDestination(destination string) (*net.UDPAddr, error) {
	if destination == "" {
		return nil, nil
	}
	if _, _, err := net.SplitHostPort(destination); err != nil {
		destination = net.JoinHostPort(destination, strconv.Itoa(packets.DefaultPort))
	}
	return net.ResolveUDPAddr("udp4", destination)
}

//update publishes a modified copy of the state and marks the output dirty
func (o *Output) update(fn func(st *outputState)) {
	for {
		old := o.state.Load()
		st := *old
		fn(&st)
		if o.state.CompareAndSwap(old, &st) {
			o.dirty.Store(true)
			return
		}
	}
}

//setData stores a copy of the data if it differs from the current data. The copy is padded
//with zeros to 512 channels and longer data is cut off.
//Identical data does not mark the output dirty.
func (o *Output) setData(data []byte) bool {
	padded := make([]byte, packets.MaxChannels)
	copy(padded, data)
	if bytes.Equal(o.state.Load().data, padded) {
		return false
	}
	o.update(func(st *outputState) { st.data = padded })
	return true
}

//Universe returns the universe of the output
func (o *Output) Universe() uint16 {
	return o.universe
}

//Data returns a copy of the DMX data that is sent out
func (o *Output) Data() []byte {
	return append([]byte(nil), o.state.Load().data...)
}

//Multicast returns wether the output is sent to the multicast group of the universe
func (o *Output) Multicast() bool {
	return o.state.Load().multicast
}

//Destination returns the unicast destination or nil
func (o *Output) Destination() *net.UDPAddr {
	if d := o.state.Load().destination; d != nil {
		cp := *d
		return &cp
	}
	return nil
}

//TTL returns the multicast time-to-live
func (o *Output) TTL() int {
	return o.state.Load().ttl
}

//Priority returns the priority of the data packets
func (o *Output) Priority() byte {
	return o.state.Load().priority
}

//Dirty returns true if the output changed since it was sent the last time
func (o *Output) Dirty() bool {
	return o.dirty.Load()
}

//Sequence returns the sequence number the next packet will be sent with
func (o *Output) Sequence() byte {
	return byte(o.sequence.Load())
}

//LastSentAt returns the time of the last send, the zero time if it was never sent
func (o *Output) LastSentAt() time.Time {
	ns := o.lastSentAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

//sent is called by the sending goroutine after each packet
func (o *Output) sent(now time.Time) {
	o.sequence.Store((o.sequence.Load() + 1) % 256)
	o.lastSentAt.Store(now.UnixNano())
}

//Registry holds the outputs of all activated universes. It may be changed while
//another goroutine iterates over it with ForEachSnapshot.
type Registry struct {
	mu      sync.RWMutex
	outputs map[uint16]*Output
}

//NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{outputs: make(map[uint16]*Output)}
}

//Register creates the output for the universe. The new output is dirty, so it is sent
//with the next frame.
func (r *Registry) Register(universe uint16, opts OutputOptions) (*Output, error) {
	if !packets.ValidUniverse(universe) {
		return nil, ErrInvalidUniverse
	}
	o, err := newOutput(universe, opts)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.outputs[universe]; ok {
		return nil, fmt.Errorf("%w: %v", ErrUniverseActive, universe)
	}
	r.outputs[universe] = o
	return o, nil
}

//Deregister removes the output of the universe and returns it
func (r *Registry) Deregister(universe uint16) (*Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.outputs[universe]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUniverseNotActive, universe)
	}
	delete(r.outputs, universe)
	return o, nil
}

//Get returns the output of the universe or nil
func (r *Registry) Get(universe uint16) *Output {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.outputs[universe]
}

//Universes returns all registered universes in ascending order
func (r *Registry) Universes() []uint16 {
	r.mu.RLock()
	list := make([]uint16, 0, len(r.outputs))
	for univ := range r.outputs {
		list = append(list, univ)
	}
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

//Len returns the number of registered outputs
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outputs)
}

//ForEachSnapshot calls fn for every output that was registered when it was called, in
//ascending order of the universes. fn may register or deregister outputs.
func (r *Registry) ForEachSnapshot(fn func(o *Output)) {
	r.mu.RLock()
	snapshot := make([]*Output, 0, len(r.outputs))
	for _, o := range r.outputs {
		snapshot = append(snapshot, o)
	}
	r.mu.RUnlock()
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].universe < snapshot[j].universe })
	for _, o := range snapshot {
		fn(o)
	}
}

//MarkDirty forces the output of the universe to be sent with the next frame
func (r *Registry) MarkDirty(universe uint16) error {
	o := r.Get(universe)
	if o == nil {
		return fmt.Errorf("%w: %v", ErrUniverseNotActive, universe)
	}
	o.dirty.Store(true)
	return nil
}

//UpdatePayload sets the DMX data of the universe. Only data that differs from the current
//data marks the output dirty, so identical updates do not change the keep-alive timing.
//Data longer than 512 bytes is cut off.
func (r *Registry) UpdatePayload(universe uint16, data []byte) error {
	o := r.Get(universe)
	if o == nil {
		return fmt.Errorf("%w: %v", ErrUniverseNotActive, universe)
	}
	o.setData(data)
	return nil
}
