package sacn

import (
	"bytes"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Hundemeier/go-sacn/packets"
	"github.com/Hundemeier/go-sacn/transport"
)

type change struct {
	old, new *packets.DataPacket
}

//callbacks records the calls of all callbacks of a ReceiverSocket
type callbacks struct {
	mu        sync.Mutex
	changes   []change
	timeouts  []uint16
	discovery []*packets.UniverseDiscoveryPacket
	syncs     []*packets.SyncPacket
}

func newTestReceiver(t *testing.T) (*ReceiverSocket, *callbacks) {
	t.Helper()
	r, err := NewReceiverSocket("127.0.0.1", nil, WithReceiverPort(-1))
	if err != nil {
		t.Fatal(err)
	}
	c := &callbacks{}
	r.SetOnChangeCallback(func(old, new *packets.DataPacket) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.changes = append(c.changes, change{old, new})
	})
	r.SetTimeoutCallback(func(universe uint16) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.timeouts = append(c.timeouts, universe)
	})
	r.SetDiscoveryCallback(func(p *packets.UniverseDiscoveryPacket) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.discovery = append(c.discovery, p)
	})
	r.SetSyncCallback(func(p *packets.SyncPacket) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.syncs = append(c.syncs, p)
	})
	return r, c
}

func (c *callbacks) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.changes), len(c.timeouts)
}

func rawData(cid byte, universe uint16, sequence, priority byte, data ...byte) []byte {
	p := packets.NewDataPacket()
	p.SetCID([16]byte{cid})
	p.SetUniverse(universe)
	p.SetSequence(sequence)
	p.SetPriority(priority)
	p.SetData(data)
	return p.Bytes()
}

func TestReceiverFirstPacket(t *testing.T) {
	r, c := newTestReceiver(t)
	r.OnData(rawData(1, 1, 0, 100, 1, 2, 3), time.Now())
	if len(c.changes) != 1 {
		t.Fatalf("Expected one change, got %v", len(c.changes))
	}
	if c.changes[0].old.Universe() != 0 {
		t.Errorf("Without previous data the old packet should have universe 0, was %v",
			c.changes[0].old.Universe())
	}
	if !bytes.Equal(c.changes[0].new.Data(), []byte{1, 2, 3}) {
		t.Errorf("Wrong output! Was: %v; Should've been: %v", c.changes[0].new.Data(), []byte{1, 2, 3})
	}
}

func TestReceiverOnlyChanges(t *testing.T) {
	r, c := newTestReceiver(t)
	now := time.Now()
	r.OnData(rawData(1, 1, 0, 100, 1, 2, 3), now)
	r.OnData(rawData(1, 1, 1, 100, 1, 2, 3), now)
	if changes, _ := c.counts(); changes != 1 {
		t.Errorf("Identical data should not invoke the callback, got %v changes", changes)
	}
	r.OnData(rawData(1, 1, 2, 100, 1, 2, 4), now)
	if changes, _ := c.counts(); changes != 2 {
		t.Fatalf("Changed data should invoke the callback, got %v changes", changes)
	}
	if !bytes.Equal(c.changes[1].old.Data(), []byte{1, 2, 3}) {
		t.Errorf("The old packet should hold the previous data, was %v", c.changes[1].old.Data())
	}
}

func TestReceiverSequence(t *testing.T) {
	r, c := newTestReceiver(t)
	now := time.Now()
	r.OnData(rawData(1, 1, 10, 100, 1), now)
	r.OnData(rawData(1, 1, 5, 100, 2), now)
	if changes, _ := c.counts(); changes != 1 {
		t.Errorf("An out-of-order packet should be dropped, got %v changes", changes)
	}
	//other sources and universes have their own sequence
	r.OnData(rawData(2, 1, 0, 100, 3), now)
	r.OnData(rawData(1, 2, 0, 100, 4), now)
	if changes, _ := c.counts(); changes != 3 {
		t.Errorf("Expected 3 changes, got %v", changes)
	}
}

func TestReceiverPriority(t *testing.T) {
	r, c := newTestReceiver(t)
	now := time.Now()
	r.OnData(rawData(1, 1, 0, 100, 1), now)
	r.OnData(rawData(2, 1, 0, 50, 2), now)
	if changes, _ := c.counts(); changes != 1 {
		t.Errorf("A lower priority should be dropped, got %v changes", changes)
	}
	r.OnData(rawData(2, 1, 1, 150, 3), now)
	if changes, _ := c.counts(); changes != 2 {
		t.Errorf("A higher priority should be accepted, got %v changes", changes)
	}
	//after a timeout the lower priority is accepted again
	r.OnData(rawData(1, 1, 1, 100, 4), now.Add(Timeout+time.Millisecond))
	if changes, _ := c.counts(); changes != 3 {
		t.Errorf("After a timeout every source should be accepted, got %v changes", changes)
	}
}

func TestReceiverTimeout(t *testing.T) {
	r, c := newTestReceiver(t)
	now := time.Now()
	r.OnData(rawData(1, 3, 0, 100, 1), now)
	r.OnData(rawData(1, 2, 0, 100, 1), now)
	r.OnPeriodic(now.Add(time.Second))
	if _, timeouts := c.counts(); timeouts != 0 {
		t.Errorf("No timeout expected yet, got %v", timeouts)
	}
	r.OnPeriodic(now.Add(Timeout + time.Millisecond))
	r.OnPeriodic(now.Add(Timeout + time.Second))
	if len(c.timeouts) != 2 || c.timeouts[0] != 2 || c.timeouts[1] != 3 {
		t.Errorf("Expected one timeout per universe in ascending order, got %v", c.timeouts)
	}
	//new data resets the timeout
	r.OnData(rawData(1, 2, 1, 100, 1), now.Add(3*Timeout))
	r.OnPeriodic(now.Add(4*Timeout + time.Millisecond))
	if len(c.timeouts) != 3 || c.timeouts[2] != 2 {
		t.Errorf("Expected a second timeout on universe 2, got %v", c.timeouts)
	}
}

func TestReceiverStreamTerminated(t *testing.T) {
	r, c := newTestReceiver(t)
	now := time.Now()
	r.OnData(rawData(1, 1, 0, 100, 1), now)
	terminated := packets.NewDataPacket()
	terminated.SetCID([16]byte{1})
	terminated.SetUniverse(1)
	terminated.SetSequence(1)
	terminated.SetStreamTerminated(true)
	for i := 0; i < 3; i++ {
		terminated.SetSequence(byte(1 + i))
		r.OnData(terminated.Bytes(), now)
	}
	if len(c.timeouts) != 1 || c.timeouts[0] != 1 {
		t.Errorf("A terminated stream should time out once, got %v", c.timeouts)
	}
	r.OnPeriodic(now.Add(2 * Timeout))
	if len(c.timeouts) != 1 {
		t.Errorf("A terminated stream should not time out again, got %v", c.timeouts)
	}
	if changes, _ := c.counts(); changes != 1 {
		t.Errorf("A terminated stream should not invoke the change callback, got %v changes", changes)
	}
}

func TestReceiverOtherPackets(t *testing.T) {
	r, c := newTestReceiver(t)
	now := time.Now()
	for _, p := range packets.NewUniverseDiscoveryPackets([16]byte{1}, "src", []uint16{1, 2}) {
		r.OnData(p.Bytes(), now)
	}
	r.OnData(packets.NewSyncPacket([16]byte{1}, 0, 7).Bytes(), now)
	if len(c.discovery) != 1 || len(c.discovery[0].Universes()) != 2 {
		t.Errorf("Expected one discovery packet with 2 universes, got %v", c.discovery)
	}
	if len(c.syncs) != 1 || c.syncs[0].SyncAddress() != 7 {
		t.Errorf("Expected one sync packet for universe 7, got %v", c.syncs)
	}

	r.OnData([]byte{1, 2, 3}, now)
	unknown := rawData(1, 1, 0, 100, 1)
	unknown[43] = 9 //framing vector
	r.OnData(unknown, now)
	if r.DecodeErrors() != 2 {
		t.Errorf("Expected 2 decode errors, got %v", r.DecodeErrors())
	}
	if changes, _ := c.counts(); changes != 0 {
		t.Errorf("Invalid packets should not invoke callbacks, got %v changes", changes)
	}
}

func TestReceiverJoinUniverse(t *testing.T) {
	r, _ := newTestReceiver(t)
	if err := r.JoinUniverse(0); err != ErrInvalidUniverse {
		t.Errorf("Should have been ErrInvalidUniverse, was %v", err)
	}
	if err := r.JoinUniverse(1); err == nil {
		t.Error("Joining before Start should fail")
	}
	r.LeaveUniverse(1)
}

func TestReceiverSocketLoopback(t *testing.T) {
	r, err := NewReceiverSocket("127.0.0.1", nil, WithReceiverPort(-1))
	if err != nil {
		t.Fatal(err)
	}
	got := make(chan *packets.DataPacket, 1)
	r.SetOnChangeCallback(func(old, new *packets.DataPacket) { got <- new })
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	conn, err := net.DialUDP("udp4", nil, r.LocalAddr())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.Write([]byte("not sacn"))
	conn.Write(rawData(1, 9, 0, 100, 42))
	select {
	case p := <-got:
		if p.Universe() != 9 || !bytes.Equal(p.Data(), []byte{42}) {
			t.Errorf("Wrong packet: universe %v data %v", p.Universe(), p.Data())
		}
	case <-time.After(time.Second):
		t.Fatal("No packet received")
	}
	if r.DecodeErrors() != 1 {
		t.Errorf("Expected one decode error, got %v", r.DecodeErrors())
	}
}

func TestReceiverSocketCloseWaitsForCallback(t *testing.T) {
	loop := transport.NewLoop()
	loop.Start()
	defer loop.Close()
	r, err := NewReceiverSocket("127.0.0.1", nil, WithReceiverPort(-1),
		WithReceiverBackend(transport.EventLoop, loop))
	if err != nil {
		t.Fatal(err)
	}
	entered := make(chan struct{})
	var finished atomic.Bool
	r.SetOnChangeCallback(func(old, new *packets.DataPacket) {
		close(entered)
		time.Sleep(300 * time.Millisecond)
		finished.Store(true)
	})
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	conn, err := net.DialUDP("udp4", nil, r.LocalAddr())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.Write(rawData(1, 1, 0, 100, 1))
	select {
	case <-entered:
	case <-time.After(time.Second):
		r.Close()
		t.Fatal("No packet received")
	}
	r.Close()
	if !finished.Load() {
		t.Error("Close returned while the change callback was still running")
	}
}
