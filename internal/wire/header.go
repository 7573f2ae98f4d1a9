// Package wire implements the RTPS message/submessage framing of spec §4.1 (C1):
// the 20-byte message header, submessage headers, and the parameter-list encoding
// used by DATA/DATAFRAG inline QoS and builtin discovery payloads.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/dustdds-go/dds/internal/guid"
)

// ProtocolMagic is the fixed 4-byte marker every RTPS message begins with.
var ProtocolMagic = [4]byte{'R', 'T', 'P', 'S'}

// ProtocolVersion is the (major, minor) RTPS version this implementation speaks.
type ProtocolVersion struct{ Major, Minor byte }

var CurrentProtocolVersion = ProtocolVersion{2, 3}

// VendorId identifies the implementation that produced a message. The pack has no
// assigned vendor id; 0x01 0x0F is used here as an unregistered/experimental value.
type VendorId [2]byte

var ThisVendorId = VendorId{0x01, 0x0F}

// MessageHeader is the fixed 20-byte prefix of every RTPS datagram.
type MessageHeader struct {
	Version    ProtocolVersion
	Vendor     VendorId
	GuidPrefix guid.Prefix
}

const MessageHeaderLength = 4 + 2 + 2 + guid.PrefixLength

// ErrBadMagic is returned when a datagram doesn't start with "RTPS".
var ErrBadMagic = fmt.Errorf("wire: bad protocol magic")

// ErrTruncated is returned when a buffer is shorter than a fixed-size structure.
var ErrTruncated = fmt.Errorf("wire: truncated message")

// EncodeMessageHeader writes the 20-byte header.
func EncodeMessageHeader(h MessageHeader) []byte {
	buf := make([]byte, MessageHeaderLength)
	copy(buf[0:4], ProtocolMagic[:])
	buf[4], buf[5] = h.Version.Major, h.Version.Minor
	buf[6], buf[7] = h.Vendor[0], h.Vendor[1]
	copy(buf[8:20], h.GuidPrefix[:])
	return buf
}

// DecodeMessageHeader parses the 20-byte header, validating the magic.
func DecodeMessageHeader(buf []byte) (MessageHeader, error) {
	if len(buf) < MessageHeaderLength {
		return MessageHeader{}, ErrTruncated
	}
	if buf[0] != 'R' || buf[1] != 'T' || buf[2] != 'P' || buf[3] != 'S' {
		return MessageHeader{}, ErrBadMagic
	}
	var h MessageHeader
	h.Version = ProtocolVersion{buf[4], buf[5]}
	h.Vendor = VendorId{buf[6], buf[7]}
	copy(h.GuidPrefix[:], buf[8:20])
	return h, nil
}

// SubmessageKind enumerates the submessage kinds of spec §4.1.
type SubmessageKind byte

const (
	KindPad           SubmessageKind = 0x01
	KindAckNack       SubmessageKind = 0x06
	KindHeartbeat     SubmessageKind = 0x07
	KindGap           SubmessageKind = 0x08
	KindInfoTS        SubmessageKind = 0x09
	KindInfoSrc       SubmessageKind = 0x0C
	KindInfoReply     SubmessageKind = 0x0D
	KindInfoDst       SubmessageKind = 0x0E
	KindData          SubmessageKind = 0x15
	KindDataFrag      SubmessageKind = 0x16
	KindNackFrag      SubmessageKind = 0x12
	KindHeartbeatFrag SubmessageKind = 0x13
)

func (k SubmessageKind) String() string {
	switch k {
	case KindPad:
		return "PAD"
	case KindAckNack:
		return "ACKNACK"
	case KindHeartbeat:
		return "HEARTBEAT"
	case KindGap:
		return "GAP"
	case KindInfoTS:
		return "INFO_TS"
	case KindInfoSrc:
		return "INFO_SRC"
	case KindInfoReply:
		return "INFO_REPLY"
	case KindInfoDst:
		return "INFO_DST"
	case KindData:
		return "DATA"
	case KindDataFrag:
		return "DATAFRAG"
	case KindNackFrag:
		return "NACKFRAG"
	case KindHeartbeatFrag:
		return "HEARTBEATFRAG"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", byte(k))
	}
}

// Flag bit 0 of every submessage header is endianness; higher bits are
// submessage-specific (spec §4.1).
const FlagEndianness byte = 0x01

// SubmessageHeader is the 4-byte header preceding every submessage.
type SubmessageHeader struct {
	Kind                SubmessageKind
	Flags               byte
	OctetsToNextHeader  uint16
}

func (h SubmessageHeader) LittleEndian() bool { return h.Flags&FlagEndianness != 0 }

const SubmessageHeaderLength = 4

func EncodeSubmessageHeader(h SubmessageHeader) []byte {
	buf := make([]byte, SubmessageHeaderLength)
	buf[0] = byte(h.Kind)
	buf[1] = h.Flags
	order := submessageByteOrder(h.LittleEndian())
	order.PutUint16(buf[2:4], h.OctetsToNextHeader)
	return buf
}

func DecodeSubmessageHeader(buf []byte) (SubmessageHeader, error) {
	if len(buf) < SubmessageHeaderLength {
		return SubmessageHeader{}, ErrTruncated
	}
	h := SubmessageHeader{Kind: SubmessageKind(buf[0]), Flags: buf[1]}
	order := submessageByteOrder(h.LittleEndian())
	h.OctetsToNextHeader = order.Uint16(buf[2:4])
	return h, nil
}

func submessageByteOrder(littleEndian bool) binary.ByteOrder {
	if littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}
