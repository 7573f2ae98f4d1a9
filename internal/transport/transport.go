// Package transport provides the network transport abstraction of spec §6: a
// pluggable collaborator the participant actor's receiver loop and writer/reader
// engines send datagrams through, decoupled from any concrete socket
// implementation. Adapted from the teacher's mDNS Transport interface
// (internal/transport/transport.go) to RTPS's locator-addressed, multi-destination
// send/receive shape: one Locator per destination instead of net.Addr, and a
// streamed receive channel instead of one-shot Receive() calls, since the
// participant actor's single goroutine selects on this channel alongside its
// mailbox and timer service (spec §5).
package transport

import (
	"context"

	"github.com/dustdds-go/dds/internal/guid"
)

// Datagram is one received packet plus the locator it arrived from.
type Datagram struct {
	Source  guid.Locator
	Payload []byte
}

// Transport abstracts sending and receiving RTPS datagrams over UDP multicast and
// unicast.
//
// Implementations:
//   - UDPTransport: production IPv4 unicast+multicast transport (adapted from the
//     teacher's UDPv4Transport).
//   - a hand-written fake implementing this interface for unit tests, matching the
//     teacher's MockTransport pattern.
type Transport interface {
	// Send transmits datagram to dst, best-effort and non-blocking (spec §6).
	// Failures are logged by the caller and never propagated into the protocol
	// state machines (spec §7): RTPS recovers via its own retransmission.
	Send(ctx context.Context, dst guid.Locator, datagram []byte) error

	// Recv returns a channel of inbound datagrams, filtered by the participant's
	// joined multicast groups and its unicast port (spec §6 recv_loop). The
	// channel is closed when Close is called.
	Recv() <-chan Datagram

	// DefaultUnicastLocator is the locator peers should use to unicast to us.
	DefaultUnicastLocator() guid.Locator

	// Close releases all sockets and closes the Recv channel.
	Close() error
}
