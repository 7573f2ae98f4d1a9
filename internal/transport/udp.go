package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/ipv4"

	"github.com/dustdds-go/dds/internal/ddserrors"
	"github.com/dustdds-go/dds/internal/guid"
)

// UDPTransport is the production Transport implementation: one unicast UDP
// socket per participant plus zero or more joined multicast groups (SPDP's
// well-known group, SEDP groups), all funneled onto a single Recv() channel.
// Adapted from the teacher's UDPv4Transport (internal/transport/udp.go),
// which wraps one multicast socket in an ipv4.PacketConn purely to recover the
// arriving interface index; here the same wrapper recovers the source
// address so inbound datagrams can carry a guid.Locator instead of mDNS's
// net.Addr.
type UDPTransport struct {
	unicastConn *net.UDPConn
	unicastIPv4 *ipv4.PacketConn
	unicastLoc  guid.Locator

	mu            sync.Mutex
	multicastConn map[string]*ipv4.PacketConn // keyed by multicast locator string

	out    chan Datagram
	closed chan struct{}
	once   sync.Once
}

// NewUDPTransport opens a unicast socket on the host/port named by unicast
// (port 0 picks an ephemeral port, resolved back into the returned
// DefaultUnicastLocator) and joins every locator in multicastGroups on that
// same interface.
func NewUDPTransport(unicast guid.Locator, multicastGroups []guid.Locator) (*UDPTransport, error) {
	addr := &net.UDPAddr{IP: localInterfaceAddr(unicast), Port: int(unicast.Port)}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, &ddserrors.NetworkError{
			Operation: "listen unicast",
			Err:       err,
			Details:   fmt.Sprintf("failed to bind RTPS unicast socket on %s", addr),
		}
	}
	if err := conn.SetReadBuffer(maxDatagramSize); err != nil {
		_ = conn.Close()
		return nil, &ddserrors.NetworkError{Operation: "configure socket", Err: err, Details: "failed to set read buffer size"}
	}

	boundPort := conn.LocalAddr().(*net.UDPAddr).Port
	unicastLoc := unicast
	unicastLoc.Port = uint32(boundPort)

	t := &UDPTransport{
		unicastConn:   conn,
		unicastIPv4:   ipv4.NewPacketConn(conn),
		unicastLoc:    unicastLoc,
		multicastConn: make(map[string]*ipv4.PacketConn),
		out:           make(chan Datagram, 256),
		closed:        make(chan struct{}),
	}
	_ = t.unicastIPv4.SetControlMessage(ipv4.FlagSrc, true)

	go t.recvLoop(t.unicastIPv4)

	for _, group := range multicastGroups {
		if err := t.joinMulticast(group); err != nil {
			_ = t.Close()
			return nil, err
		}
	}
	return t, nil
}

// localInterfaceAddr picks the IP a caller-supplied locator names, or the
// wildcard address when the locator carries no specific address (typical for
// "bind my unicast socket to any interface on this port").
func localInterfaceAddr(loc guid.Locator) net.IP {
	addr, err := loc.UDPAddr()
	if err != nil || addr.IP == nil || addr.IP.IsUnspecified() {
		return nil
	}
	return addr.IP
}

func (t *UDPTransport) joinMulticast(group guid.Locator) error {
	addr, err := group.UDPAddr()
	if err != nil {
		return &ddserrors.NetworkError{Operation: "join multicast", Err: err, Details: "invalid multicast locator"}
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return &ddserrors.NetworkError{
			Operation: "join multicast",
			Err:       err,
			Details:   fmt.Sprintf("failed to join %s", addr.String()),
		}
	}
	if err := conn.SetReadBuffer(maxDatagramSize); err != nil {
		_ = conn.Close()
		return &ddserrors.NetworkError{Operation: "configure socket", Err: err, Details: "failed to set read buffer on multicast group"}
	}
	pc := ipv4.NewPacketConn(conn)
	_ = pc.SetControlMessage(ipv4.FlagSrc, true)

	t.mu.Lock()
	t.multicastConn[addr.String()] = pc
	t.mu.Unlock()

	go t.recvLoop(pc)
	return nil
}

// recvLoop reads datagrams off one socket and forwards them onto the shared
// out channel until the socket errors, which is the normal outcome of Close
// (the underlying conn is closed out from under ReadFrom).
func (t *UDPTransport) recvLoop(pc *ipv4.PacketConn) {
	for {
		bufPtr := GetBuffer()
		n, cm, srcAddr, err := pc.ReadFrom(*bufPtr)
		if err != nil {
			PutBuffer(bufPtr)
			return
		}

		payload := make([]byte, n)
		copy(payload, (*bufPtr)[:n])
		PutBuffer(bufPtr)

		source := sourceLocator(cm, srcAddr)
		select {
		case t.out <- Datagram{Source: source, Payload: payload}:
		case <-t.closed:
			return
		}
	}
}

func sourceLocator(cm *ipv4.ControlMessage, srcAddr net.Addr) guid.Locator {
	udpAddr, ok := srcAddr.(*net.UDPAddr)
	if !ok {
		return guid.InvalidLocator
	}
	ip := udpAddr.IP
	if cm != nil && cm.Src != nil {
		ip = cm.Src
	}
	return guid.NewUDPv4Locator(ip, uint16(udpAddr.Port))
}

// Send transmits datagram to dst over the unicast socket, matching spec §6's
// "best-effort, non-blocking" contract: failures are wrapped and returned so
// the caller can log them, never retried here.
func (t *UDPTransport) Send(ctx context.Context, dst guid.Locator, datagram []byte) error {
	select {
	case <-ctx.Done():
		return &ddserrors.NetworkError{Operation: "send", Err: ctx.Err(), Details: "context canceled before send"}
	default:
	}

	addr, err := dst.UDPAddr()
	if err != nil {
		return &ddserrors.NetworkError{Operation: "send", Err: err, Details: "invalid destination locator"}
	}
	n, err := t.unicastConn.WriteToUDP(datagram, addr)
	if err != nil {
		return &ddserrors.NetworkError{
			Operation: "send",
			Err:       err,
			Details:   fmt.Sprintf("failed to send %d bytes to %s", len(datagram), addr.String()),
		}
	}
	if n != len(datagram) {
		return &ddserrors.NetworkError{
			Operation: "send",
			Err:       fmt.Errorf("partial write: %d/%d bytes", n, len(datagram)),
			Details:   "incomplete transmission",
		}
	}
	return nil
}

func (t *UDPTransport) Recv() <-chan Datagram { return t.out }

func (t *UDPTransport) DefaultUnicastLocator() guid.Locator { return t.unicastLoc }

// Close closes every socket and the shared receive channel, guarding against
// double-close the way the teacher's Close does (nil-conn check), extended to
// the multicast sockets the teacher never had to track.
func (t *UDPTransport) Close() error {
	var firstErr error
	t.once.Do(func() {
		close(t.closed)
		if t.unicastConn != nil {
			if err := t.unicastConn.Close(); err != nil {
				firstErr = &ddserrors.NetworkError{Operation: "close socket", Err: err, Details: "failed to close unicast socket"}
			}
		}
		t.mu.Lock()
		for _, pc := range t.multicastConn {
			_ = pc.Close()
		}
		t.mu.Unlock()
		close(t.out)
	})
	return firstErr
}
