// Package discovery implements SPDP + SEDP (spec §4.7, C7): the builtin
// writers/readers that announce this participant's own participant/publication/
// subscription data and consume the same announcements from every other
// participant on the domain, driving the QoS matcher (C8) and the entity
// registry's discovered-participant lease tracking.
package discovery

import (
	"encoding/binary"
	"time"

	"github.com/dustdds-go/dds/internal/guid"
	"github.com/dustdds-go/dds/internal/qos"
	"github.com/dustdds-go/dds/internal/wire"
)

func byteOrderFor(littleEndian bool) binary.ByteOrder {
	if littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Well-known RTPS discovery ports (RTPS spec's port-mapping formula, domainId
// and participantId parameterized): PB=7400, DG=250, d0=0, d1=10, d2=1, d3=11.
const (
	portBase         = 7400
	domainGain       = 250
	participantGain  = 10
	offsetMetaMcast  = 0
	offsetMetaUcast  = 10
	offsetUserMcast  = 1
	offsetUserUcast  = 11
)

// MetatrafficMulticastPort / MetatrafficUnicastPort / DefaultSpdpMulticastLocator
// implement that formula for a given domain/participant id pair.
func MetatrafficMulticastPort(domainId int) uint16 {
	return uint16(portBase + domainGain*domainId + offsetMetaMcast)
}

func MetatrafficUnicastPort(domainId, participantId int) uint16 {
	return uint16(portBase + domainGain*domainId + offsetMetaUcast + participantGain*participantId)
}

func UserMulticastPort(domainId int) uint16 {
	return uint16(portBase + domainGain*domainId + offsetUserMcast)
}

func UserUnicastPort(domainId, participantId int) uint16 {
	return uint16(portBase + domainGain*domainId + offsetUserUcast + participantGain*participantId)
}

// DefaultSpdpMulticastAddress is the standard RTPS SPDP multicast group.
var DefaultSpdpMulticastAddress = []byte{239, 255, 0, 1}

// DefaultSpdpMulticastLocator builds the well-known SPDP locator for domainId.
func DefaultSpdpMulticastLocator(domainId int) guid.Locator {
	return guid.NewUDPv4Locator(DefaultSpdpMulticastAddress, MetatrafficMulticastPort(domainId))
}

// BuiltinEndpointSet bits (spec §4.7), only the ones this module announces.
const (
	DisabledBuiltinEndpoints            uint32 = 0
	BuiltinEndpointParticipantAnnouncer uint32 = 1 << 0
	BuiltinEndpointParticipantDetector  uint32 = 1 << 1
	BuiltinEndpointPublicationAnnouncer uint32 = 1 << 2
	BuiltinEndpointPublicationDetector  uint32 = 1 << 3
	BuiltinEndpointSubscriptionAnnouncer uint32 = 1 << 4
	BuiltinEndpointSubscriptionDetector  uint32 = 1 << 5
)

// ThisParticipantBuiltinEndpoints is the fixed capability set this module always
// announces: it implements every one of the builtin endpoint kinds above.
const ThisParticipantBuiltinEndpoints = BuiltinEndpointParticipantAnnouncer |
	BuiltinEndpointParticipantDetector |
	BuiltinEndpointPublicationAnnouncer |
	BuiltinEndpointPublicationDetector |
	BuiltinEndpointSubscriptionAnnouncer |
	BuiltinEndpointSubscriptionDetector

// ParticipantData is the decoded payload of an SPDP sample (spec §4.7's
// SpdpDiscoveredParticipantData).
type ParticipantData struct {
	GuidPrefix              guid.Prefix
	ProtocolVersion         [2]byte
	VendorId                [2]byte
	DefaultUnicastLocators  []guid.Locator
	MetatrafficUnicastLocators []guid.Locator
	AvailableBuiltinEndpoints uint32
	LeaseDuration           time.Duration
}

// EncodeParticipantData serializes p as a PL-CDR parameter list.
func EncodeParticipantData(p ParticipantData, littleEndian bool) []byte {
	var pl wire.ParameterList
	pl.Add(wire.PidProtocolVersion, p.ProtocolVersion[:])
	pl.Add(wire.PidVendorId, p.VendorId[:])
	pl.Add(wire.PidParticipantGuid, p.GuidPrefix[:])
	pl.Add(wire.PidBuiltinEndpointSet, wire.EncodeUint32(p.AvailableBuiltinEndpoints, littleEndian))
	pl.Add(wire.PidParticipantLease, wire.EncodeUint32(uint32(p.LeaseDuration/time.Second), littleEndian))
	for _, loc := range p.DefaultUnicastLocators {
		pl.Add(wire.PidDefaultUnicastLoc, encodeLocator(loc, littleEndian))
	}
	for _, loc := range p.MetatrafficUnicastLocators {
		pl.Add(wire.PidMetatrafficUnicastLoc, encodeLocator(loc, littleEndian))
	}
	return pl.Encode(littleEndian)
}

// DecodeParticipantData parses an SPDP sample payload back into ParticipantData.
func DecodeParticipantData(buf []byte, littleEndian bool) (ParticipantData, error) {
	pl, _, err := wire.DecodeParameterList(buf, littleEndian)
	if err != nil {
		return ParticipantData{}, err
	}
	var p ParticipantData
	if v, ok := pl.Get(wire.PidProtocolVersion); ok && len(v) >= 2 {
		copy(p.ProtocolVersion[:], v)
	}
	if v, ok := pl.Get(wire.PidVendorId); ok && len(v) >= 2 {
		copy(p.VendorId[:], v)
	}
	if v, ok := pl.Get(wire.PidParticipantGuid); ok && len(v) >= len(p.GuidPrefix) {
		copy(p.GuidPrefix[:], v)
	}
	if v, ok := pl.Get(wire.PidBuiltinEndpointSet); ok {
		bits, _ := wire.DecodeUint32(v, littleEndian)
		p.AvailableBuiltinEndpoints = bits
	}
	if v, ok := pl.Get(wire.PidParticipantLease); ok {
		secs, _ := wire.DecodeUint32(v, littleEndian)
		p.LeaseDuration = time.Duration(secs) * time.Second
	}
	for _, param := range pl.Params {
		switch param.Id {
		case wire.PidDefaultUnicastLoc:
			if loc, ok := decodeLocator(param.Value, littleEndian); ok {
				p.DefaultUnicastLocators = append(p.DefaultUnicastLocators, loc)
			}
		case wire.PidMetatrafficUnicastLoc:
			if loc, ok := decodeLocator(param.Value, littleEndian); ok {
				p.MetatrafficUnicastLocators = append(p.MetatrafficUnicastLocators, loc)
			}
		}
	}
	return p, nil
}

// EndpointData is the decoded payload common to DiscoveredWriterData and
// DiscoveredReaderData (spec §4.7): enough to construct a matching-side
// WriterProxy/ReaderProxy and run the QoS matcher.
type EndpointData struct {
	EndpointGuid guid.Guid
	TopicName    string
	TypeName     string
	Reliability  qos.ReliabilityKind
	Durability   qos.DurabilityKind
	Partition    []string
	UnicastLocators []guid.Locator
}

// EncodeEndpointData serializes e as a PL-CDR parameter list (shared shape for
// SEDP publication/subscription/topic announcements).
func EncodeEndpointData(e EndpointData, littleEndian bool) []byte {
	var pl wire.ParameterList
	pl.Add(wire.PidEndpointGuid, endpointGuidBytes(e.EndpointGuid))
	pl.Add(wire.PidTopicName, []byte(e.TopicName))
	pl.Add(wire.PidTypeName, []byte(e.TypeName))
	pl.Add(wire.PidReliability, []byte{byte(e.Reliability)})
	pl.Add(wire.PidDurability, []byte{byte(e.Durability)})
	for _, part := range e.Partition {
		pl.Add(wire.PidPartition, []byte(part))
	}
	for _, loc := range e.UnicastLocators {
		pl.Add(wire.PidDefaultUnicastLoc, encodeLocator(loc, littleEndian))
	}
	return pl.Encode(littleEndian)
}

// DecodeEndpointData parses a SEDP sample payload back into EndpointData.
func DecodeEndpointData(buf []byte, littleEndian bool) (EndpointData, error) {
	pl, _, err := wire.DecodeParameterList(buf, littleEndian)
	if err != nil {
		return EndpointData{}, err
	}
	var e EndpointData
	if v, ok := pl.Get(wire.PidEndpointGuid); ok {
		e.EndpointGuid = endpointGuidFromBytes(v)
	}
	if v, ok := pl.Get(wire.PidTopicName); ok {
		e.TopicName = string(v)
	}
	if v, ok := pl.Get(wire.PidTypeName); ok {
		e.TypeName = string(v)
	}
	if v, ok := pl.Get(wire.PidReliability); ok && len(v) > 0 {
		e.Reliability = qos.ReliabilityKind(v[0])
	}
	if v, ok := pl.Get(wire.PidDurability); ok && len(v) > 0 {
		e.Durability = qos.DurabilityKind(v[0])
	}
	for _, param := range pl.Params {
		switch param.Id {
		case wire.PidPartition:
			e.Partition = append(e.Partition, string(param.Value))
		case wire.PidDefaultUnicastLoc:
			if loc, ok := decodeLocator(param.Value, littleEndian); ok {
				e.UnicastLocators = append(e.UnicastLocators, loc)
			}
		}
	}
	return e, nil
}

func endpointGuidBytes(g guid.Guid) []byte {
	b := make([]byte, len(g.Prefix)+len(g.Entity))
	copy(b, g.Prefix[:])
	copy(b[len(g.Prefix):], g.Entity[:])
	return b
}

func endpointGuidFromBytes(b []byte) guid.Guid {
	var g guid.Guid
	if len(b) < len(g.Prefix)+len(g.Entity) {
		return g
	}
	copy(g.Prefix[:], b[:len(g.Prefix)])
	copy(g.Entity[:], b[len(g.Prefix):len(g.Prefix)+len(g.Entity)])
	return g
}

// encodeLocator/decodeLocator use RTPS's fixed 24-byte locator wire shape
// (kind: int32, port: uint32, address: 16 bytes), independent of wire's
// submessage-specific helpers since discovery payloads are plain PL-CDR.
func encodeLocator(loc guid.Locator, littleEndian bool) []byte {
	buf := make([]byte, 24)
	order := byteOrderFor(littleEndian)
	order.PutUint32(buf[0:4], uint32(loc.Kind))
	order.PutUint32(buf[4:8], uint32(loc.Port))
	copy(buf[8:24], loc.Address[:])
	return buf
}

func decodeLocator(buf []byte, littleEndian bool) (guid.Locator, bool) {
	if len(buf) < 24 {
		return guid.Locator{}, false
	}
	order := byteOrderFor(littleEndian)
	var loc guid.Locator
	loc.Kind = guid.LocatorKind(order.Uint32(buf[0:4]))
	loc.Port = order.Uint32(buf[4:8])
	copy(loc.Address[:], buf[8:24])
	return loc, true
}
