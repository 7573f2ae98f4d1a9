package wire

import (
	"fmt"
)

// ParameterId identifies one entry of a parameter list (spec §4.1). Only the
// subset exercised by discovery (SPDP/SEDP) and inline QoS is named; unknown pids
// are preserved verbatim so a decode-then-reencode roundtrips.
type ParameterId uint16

const (
	PidPad               ParameterId = 0x0000
	PidKeyHash           ParameterId = 0x0070
	PidStatusInfo        ParameterId = 0x0071
	PidTopicName         ParameterId = 0x0005
	PidTypeName          ParameterId = 0x0007
	PidProtocolVersion   ParameterId = 0x0015
	PidVendorId          ParameterId = 0x0016
	PidDefaultUnicastLoc ParameterId = 0x0031
	PidMetatrafficUnicastLoc ParameterId = 0x0032
	PidParticipantGuid   ParameterId = 0x0050
	PidEndpointGuid      ParameterId = 0x005A
	PidReliability       ParameterId = 0x001A
	PidDurability        ParameterId = 0x001D
	PidParticipantLease  ParameterId = 0x0002
	PidBuiltinEndpointSet ParameterId = 0x0058
	PidPartition         ParameterId = 0x0029
	PidSentinel          ParameterId = 0x0001
)

// StatusInfo bits carried by PidStatusInfo, identifying a DATA submessage as
// a dispose/unregister instead of an ordinary sample write (spec §4.1).
const (
	StatusInfoDisposed     uint32 = 0x1
	StatusInfoUnregistered uint32 = 0x2
)

// Parameter is one (pid, value) entry of a parameter list; Length is implied by
// len(Value) and padded to a 4-byte boundary on the wire.
type Parameter struct {
	Id    ParameterId
	Value []byte
}

// ErrPidNotFound is returned by ParameterList.Require when a mandatory pid is
// absent from a decoded parameter list (spec §4.1).
var ErrPidNotFound = fmt.Errorf("wire: required parameter id not found")

// ParameterList is an ordered sequence of Parameters, terminated on the wire by
// PID_SENTINEL.
type ParameterList struct {
	Params []Parameter
}

func (pl *ParameterList) Add(id ParameterId, value []byte) {
	pl.Params = append(pl.Params, Parameter{Id: id, Value: value})
}

// Get returns the first parameter with the given id.
func (pl *ParameterList) Get(id ParameterId) ([]byte, bool) {
	for _, p := range pl.Params {
		if p.Id == id {
			return p.Value, true
		}
	}
	return nil, false
}

// Require is Get but returns ErrPidNotFound instead of ok=false.
func (pl *ParameterList) Require(id ParameterId) ([]byte, error) {
	v, ok := pl.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: 0x%04x", ErrPidNotFound, uint16(id))
	}
	return v, nil
}

// Encode serializes the parameter list, little- or big-endian per littleEndian,
// padding each value to a 4-byte boundary and appending PID_SENTINEL.
func (pl *ParameterList) Encode(littleEndian bool) []byte {
	order := submessageByteOrder(littleEndian)
	var buf []byte
	for _, p := range pl.Params {
		padded := pad4(len(p.Value))
		var head [4]byte
		order.PutUint16(head[0:2], uint16(p.Id))
		order.PutUint16(head[2:4], uint16(padded))
		buf = append(buf, head[:]...)
		buf = append(buf, p.Value...)
		buf = append(buf, make([]byte, padded-len(p.Value))...)
	}
	var sentinel [4]byte
	order.PutUint16(sentinel[0:2], uint16(PidSentinel))
	buf = append(buf, sentinel[:]...)
	return buf
}

func pad4(n int) int { return (n + 3) &^ 3 }

// DecodeParameterList reads entries until PID_SENTINEL or the buffer is exhausted.
// An empty list with only PID_SENTINEL decodes to a ParameterList with no entries,
// per the boundary test of spec §8.
func DecodeParameterList(buf []byte, littleEndian bool) (ParameterList, int, error) {
	order := submessageByteOrder(littleEndian)
	var pl ParameterList
	pos := 0
	for {
		if pos+4 > len(buf) {
			return ParameterList{}, 0, ErrTruncated
		}
		id := ParameterId(order.Uint16(buf[pos : pos+2]))
		length := int(order.Uint16(buf[pos+2 : pos+4]))
		pos += 4
		if id == PidSentinel {
			return pl, pos, nil
		}
		if pos+length > len(buf) {
			return ParameterList{}, 0, ErrTruncated
		}
		value := make([]byte, length)
		copy(value, buf[pos:pos+length])
		pl.Add(id, value)
		pos += length
	}
}

// EncodeUint32 / DecodeUint32 are small helpers for parameters whose value is a
// single fixed-width integer (e.g. builtin-endpoint-set bitmask, lease duration).
func EncodeUint32(v uint32, littleEndian bool) []byte {
	buf := make([]byte, 4)
	submessageByteOrder(littleEndian).PutUint32(buf, v)
	return buf
}

func DecodeUint32(buf []byte, littleEndian bool) (uint32, error) {
	if len(buf) < 4 {
		return 0, ErrTruncated
	}
	return submessageByteOrder(littleEndian).Uint32(buf), nil
}
