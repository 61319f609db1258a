package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/Hundemeier/go-sacn/metrics"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
)

//socket wraps the UDP connection that is owned by exactly one transport
type socket struct {
	conn      *net.UDPConn
	pc        *ipv4.PacketConn
	closeOnce sync.Once
}

//listen binds a new IPv4 UDP socket. Address reuse is enabled if the platform supports it.
func listen(address string, logger *log.Entry) (*socket, error) {
	lc := net.ListenConfig{Control: func(network, address string, c syscall.RawConn) error {
		return c.Control(func(fd uintptr) {
			if err := setReuseAddr(fd); err != nil {
				//not all systems support multiple sockets on the same port and interface
				logger.Debugf("could not enable address reuse: %v", err)
			}
		})
	}}
	c, err := lc.ListenPacket(context.Background(), "udp4", address)
	if err != nil {
		return nil, err
	}
	conn := c.(*net.UDPConn)
	return &socket{conn: conn, pc: ipv4.NewPacketConn(conn)}, nil
}

func (s *socket) close() {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
}

func (s *socket) localAddr() *net.UDPAddr {
	addr, _ := s.conn.LocalAddr().(*net.UDPAddr)
	return addr
}

func (s *socket) sendTo(data []byte, destination *net.UDPAddr, kind string) error {
	_, err := s.conn.WriteToUDP(data, destination)
	metrics.RecordSend(kind, err)
	return err
}

//senderBase implements the send methods that are the same for both backends
type senderBase struct {
	cfg  Config
	sock *socket
}

func (s *senderBase) SendUnicast(data []byte, destination *net.UDPAddr) error {
	if s.sock == nil {
		return ErrNotStarted
	}
	return s.sock.sendTo(data, destination, metrics.KindUnicast)
}

func (s *senderBase) SendMulticast(data []byte, destination *net.UDPAddr, ttl int) error {
	if s.sock == nil {
		return ErrNotStarted
	}
	//the TTL is set right before the send, the socket is not shared with other senders
	if err := s.sock.pc.SetMulticastTTL(ttl); err != nil {
		s.cfg.Logger.Debugf("could not set multicast TTL %v: %v", ttl, err)
	}
	return s.sock.sendTo(data, destination, metrics.KindMulticast)
}

func (s *senderBase) SendBroadcast(data []byte) error {
	if s.sock == nil {
		return ErrNotStarted
	}
	if err := enableBroadcast(s.sock.conn); err != nil {
		s.cfg.Logger.Debugf("could not enable broadcast: %v", err)
	}
	return s.sock.sendTo(data, &net.UDPAddr{IP: net.IPv4bcast, Port: s.cfg.BroadcastPort},
		metrics.KindBroadcast)
}

//receiverBase implements the multicast handling that is the same for both backends
type receiverBase struct {
	cfg      Config
	listener ReceiverListener
	mu       sync.Mutex
	sock     *socket
	errors   atomic.Uint64
}

func (r *receiverBase) current() *socket {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sock
}

func (r *receiverBase) JoinMulticast(group net.IP) error {
	sock := r.current()
	if sock == nil {
		return ErrNotStarted
	}
	return sock.pc.JoinGroup(r.cfg.Interface, &net.UDPAddr{IP: group})
}

func (r *receiverBase) LeaveMulticast(group net.IP) {
	sock := r.current()
	if sock == nil {
		return
	}
	if err := sock.pc.LeaveGroup(r.cfg.Interface, &net.UDPAddr{IP: group}); err != nil {
		r.cfg.Logger.Debugf("leaving multicast group %v: %v", group, err)
	}
}

func (r *receiverBase) Errors() uint64 {
	return r.errors.Load()
}

func (r *receiverBase) LocalAddr() *net.UDPAddr {
	sock := r.current()
	if sock == nil {
		return nil
	}
	return sock.localAddr()
}

//readError handles an error of the socket. It returns true if the socket was closed.
func (r *receiverBase) readError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	r.errors.Add(1)
	metrics.RecordReceiveError()
	r.cfg.Logger.Debugf("error while receiving: %v", err)
	return false
}

//lifecycle tracks the start/stop state shared by all transports
type lifecycle int

const (
	stateIdle lifecycle = iota
	stateRunning
	stateClosed
)
