package guid

import (
	"fmt"
	"net"
)

// LocatorKind enumerates the address families a Locator may carry (spec §3).
type LocatorKind int32

const (
	LocatorKindInvalid LocatorKind = -1
	LocatorKindUDPv4    LocatorKind = 1
	LocatorKindUDPv6    LocatorKind = 2
)

// Locator is the RTPS network-address tuple: kind, port, 16-byte address.
type Locator struct {
	Kind    LocatorKind
	Port    uint32
	Address [16]byte
}

// InvalidLocator is the RTPS reserved "no locator" value.
var InvalidLocator = Locator{Kind: LocatorKindInvalid}

// NewUDPv4Locator builds a Locator from a dotted-quad/port pair, following the
// RTPS convention of storing an IPv4 address in the last 4 bytes of the 16-byte
// field (::ffff:a.b.c.d-style, but RTPS just zero-pads).
func NewUDPv4Locator(ip net.IP, port uint16) Locator {
	var l Locator
	l.Kind = LocatorKindUDPv4
	l.Port = uint32(port)
	v4 := ip.To4()
	if v4 != nil {
		copy(l.Address[12:], v4)
	}
	return l
}

// UDPAddr renders the locator back into a *net.UDPAddr for the transport layer.
func (l Locator) UDPAddr() (*net.UDPAddr, error) {
	switch l.Kind {
	case LocatorKindUDPv4:
		ip := net.IPv4(l.Address[12], l.Address[13], l.Address[14], l.Address[15])
		return &net.UDPAddr{IP: ip, Port: int(l.Port)}, nil
	case LocatorKindUDPv6:
		ip := make(net.IP, 16)
		copy(ip, l.Address[:])
		return &net.UDPAddr{IP: ip, Port: int(l.Port)}, nil
	default:
		return nil, fmt.Errorf("guid: invalid locator kind %d", l.Kind)
	}
}

func (l Locator) String() string {
	addr, err := l.UDPAddr()
	if err != nil {
		return "invalid-locator"
	}
	return addr.String()
}
