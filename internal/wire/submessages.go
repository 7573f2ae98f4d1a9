package wire

import (
	"encoding/binary"

	"github.com/dustdds-go/dds/internal/guid"
)

// Data flag bits (spec §4.1): bit0 endianness, bit1 inline-qos, bit2 data-present,
// bit3 key (the payload is a serialized key, not a full sample).
const (
	DataFlagInlineQos byte = 0x02
	DataFlagData      byte = 0x04
	DataFlagKey       byte = 0x08
)

// Data carries one CacheChange's wire representation (DATA submessage).
type Data struct {
	ReaderId         guid.EntityId
	WriterId         guid.EntityId
	WriterSN         guid.SequenceNumber
	InlineQos        *ParameterList
	SerializedPayload []byte // present iff DataFlagData set; key bytes iff DataFlagKey
}

// EncodeData serializes the DATA submessage body (header is written by the caller
// via EncodeSubmessageHeader, since octets_to_next_header depends on this length).
func EncodeData(d Data, littleEndian bool) []byte {
	order := submessageByteOrder(littleEndian)
	buf := make([]byte, 4) // extraFlags(2) + octetsToInlineQos(2)
	order.PutUint16(buf[2:4], 16) // fixed: readerId+writerId+seqnum = 16 bytes after this field
	buf = append(buf, d.ReaderId[:]...)
	buf = append(buf, d.WriterId[:]...)
	var sn [8]byte
	order.PutUint32(sn[0:4], uint32(d.WriterSN.High()))
	order.PutUint32(sn[4:8], d.WriterSN.Low())
	buf = append(buf, sn[:]...)
	if d.InlineQos != nil {
		buf = append(buf, d.InlineQos.Encode(littleEndian)...)
	}
	buf = append(buf, d.SerializedPayload...)
	return buf
}

// DecodeData parses a DATA submessage body given its already-known flags.
func DecodeData(buf []byte, flags byte, littleEndian bool) (Data, error) {
	if len(buf) < 20 {
		return Data{}, ErrTruncated
	}
	order := submessageByteOrder(littleEndian)
	octetsToInlineQos := int(order.Uint16(buf[2:4]))
	pos := 4
	var d Data
	copy(d.ReaderId[:], buf[pos:pos+4])
	copy(d.WriterId[:], buf[pos+4:pos+8])
	high := int32(order.Uint32(buf[pos+8 : pos+12]))
	low := order.Uint32(buf[pos+12 : pos+16])
	d.WriterSN = guid.FromParts(high, low)
	pos = 4 + octetsToInlineQos
	if pos > len(buf) {
		return Data{}, ErrTruncated
	}
	if flags&DataFlagInlineQos != 0 {
		pl, n, err := DecodeParameterList(buf[pos:], littleEndian)
		if err != nil {
			return Data{}, err
		}
		d.InlineQos = &pl
		pos += n
	}
	if flags&(DataFlagData|DataFlagKey) != 0 {
		d.SerializedPayload = append([]byte(nil), buf[pos:]...)
	}
	return d, nil
}

// DataFrag flag bits (spec §4.1): bit0 endianness, bit1 inline-qos, bit2 key.
const (
	DataFragFlagInlineQos byte = 0x02
	DataFragFlagKey       byte = 0x04
)

// DataFrag carries one fragment of a CacheChange too large to fit in a single
// DATA submessage (spec §4.3's writer-side fragmentation). FragmentSize is
// the nominal fragment size configured for the whole sample, not necessarily
// len(SerializedPayload) for the last fragment, which may be shorter.
type DataFrag struct {
	ReaderId              guid.EntityId
	WriterId              guid.EntityId
	WriterSN              guid.SequenceNumber
	FragmentStartingNum   uint32 // 1-based index of the first fragment in this submessage
	FragmentsInSubmessage uint16
	FragmentSize          uint16
	SampleSize            uint32
	InlineQos             *ParameterList
	SerializedPayload     []byte
}

func EncodeDataFrag(d DataFrag, littleEndian bool) []byte {
	order := submessageByteOrder(littleEndian)
	buf := make([]byte, 4) // extraFlags(2) + octetsToInlineQos(2)
	order.PutUint16(buf[2:4], 28) // readerId+writerId+writerSN+frag header = 28 bytes after this field
	buf = append(buf, d.ReaderId[:]...)
	buf = append(buf, d.WriterId[:]...)
	buf = appendSeqNum(buf, order, d.WriterSN)
	var frag [12]byte
	order.PutUint32(frag[0:4], d.FragmentStartingNum)
	order.PutUint16(frag[4:6], d.FragmentsInSubmessage)
	order.PutUint16(frag[6:8], d.FragmentSize)
	order.PutUint32(frag[8:12], d.SampleSize)
	buf = append(buf, frag[:]...)
	if d.InlineQos != nil {
		buf = append(buf, d.InlineQos.Encode(littleEndian)...)
	}
	buf = append(buf, d.SerializedPayload...)
	return buf
}

func DecodeDataFrag(buf []byte, flags byte, littleEndian bool) (DataFrag, error) {
	if len(buf) < 32 {
		return DataFrag{}, ErrTruncated
	}
	order := submessageByteOrder(littleEndian)
	octetsToInlineQos := int(order.Uint16(buf[2:4]))
	pos := 4
	var d DataFrag
	copy(d.ReaderId[:], buf[pos:pos+4])
	copy(d.WriterId[:], buf[pos+4:pos+8])
	high := int32(order.Uint32(buf[pos+8 : pos+12]))
	low := order.Uint32(buf[pos+12 : pos+16])
	d.WriterSN = guid.FromParts(high, low)
	d.FragmentStartingNum = order.Uint32(buf[pos+16 : pos+20])
	d.FragmentsInSubmessage = order.Uint16(buf[pos+20 : pos+22])
	d.FragmentSize = order.Uint16(buf[pos+22 : pos+24])
	d.SampleSize = order.Uint32(buf[pos+24 : pos+28])
	pos = 4 + octetsToInlineQos
	if pos > len(buf) {
		return DataFrag{}, ErrTruncated
	}
	if flags&DataFragFlagInlineQos != 0 {
		pl, n, err := DecodeParameterList(buf[pos:], littleEndian)
		if err != nil {
			return DataFrag{}, err
		}
		d.InlineQos = &pl
		pos += n
	}
	d.SerializedPayload = append([]byte(nil), buf[pos:]...)
	return d, nil
}

// Heartbeat carries the writer's retained-range announcement.
type Heartbeat struct {
	ReaderId guid.EntityId
	WriterId guid.EntityId
	FirstSN  guid.SequenceNumber
	LastSN   guid.SequenceNumber
	Count    int32
}

const (
	HeartbeatFlagFinal      byte = 0x02
	HeartbeatFlagLiveliness byte = 0x04
)

func EncodeHeartbeat(h Heartbeat, littleEndian bool) []byte {
	order := submessageByteOrder(littleEndian)
	buf := make([]byte, 0, 8+8+8+4)
	buf = append(buf, h.ReaderId[:]...)
	buf = append(buf, h.WriterId[:]...)
	buf = appendSeqNum(buf, order, h.FirstSN)
	buf = appendSeqNum(buf, order, h.LastSN)
	var c [4]byte
	order.PutUint32(c[:], uint32(h.Count))
	return append(buf, c[:]...)
}

func DecodeHeartbeat(buf []byte, littleEndian bool) (Heartbeat, error) {
	if len(buf) < 28 {
		return Heartbeat{}, ErrTruncated
	}
	order := submessageByteOrder(littleEndian)
	var h Heartbeat
	copy(h.ReaderId[:], buf[0:4])
	copy(h.WriterId[:], buf[4:8])
	h.FirstSN = readSeqNum(buf[8:16], order)
	h.LastSN = readSeqNum(buf[16:24], order)
	h.Count = int32(order.Uint32(buf[24:28]))
	return h, nil
}

// AckNack carries a reader's acknowledgement + missing-sequence-number bitmap.
type AckNack struct {
	ReaderId guid.EntityId
	WriterId guid.EntityId
	Base     guid.SequenceNumber
	Missing  []guid.SequenceNumber // decoded bitmap entries, Base..Base+255
	Count    int32
	Final    bool
}

const AckNackFlagFinal byte = 0x02

func EncodeAckNack(a AckNack, littleEndian bool) []byte {
	order := submessageByteOrder(littleEndian)
	buf := make([]byte, 0, 64)
	buf = append(buf, a.ReaderId[:]...)
	buf = append(buf, a.WriterId[:]...)
	buf = appendSeqNum(buf, order, a.Base)
	numBits := 0
	for _, sn := range a.Missing {
		bit := int(sn - a.Base)
		if bit+1 > numBits {
			numBits = bit + 1
		}
	}
	var nb [4]byte
	order.PutUint32(nb[:], uint32(numBits))
	buf = append(buf, nb[:]...)
	words := (numBits + 31) / 32
	bitmap := make([]uint32, words)
	for _, sn := range a.Missing {
		bit := int(sn - a.Base)
		bitmap[bit/32] |= 1 << (31 - uint(bit%32))
	}
	for _, w := range bitmap {
		var wb [4]byte
		order.PutUint32(wb[:], w)
		buf = append(buf, wb[:]...)
	}
	var c [4]byte
	order.PutUint32(c[:], uint32(a.Count))
	return append(buf, c[:]...)
}

func DecodeAckNack(buf []byte, flags byte, littleEndian bool) (AckNack, error) {
	if len(buf) < 24 {
		return AckNack{}, ErrTruncated
	}
	order := submessageByteOrder(littleEndian)
	var a AckNack
	copy(a.ReaderId[:], buf[0:4])
	copy(a.WriterId[:], buf[4:8])
	a.Base = readSeqNum(buf[8:16], order)
	numBits := int(order.Uint32(buf[16:20]))
	words := (numBits + 31) / 32
	pos := 20
	if pos+words*4 > len(buf) {
		return AckNack{}, ErrTruncated
	}
	for wi := 0; wi < words; wi++ {
		w := order.Uint32(buf[pos+wi*4 : pos+wi*4+4])
		for bit := 0; bit < 32; bit++ {
			idx := wi*32 + bit
			if idx >= numBits {
				break
			}
			if w&(1<<(31-uint(bit))) != 0 {
				a.Missing = append(a.Missing, a.Base+guid.SequenceNumber(idx))
			}
		}
	}
	pos += words * 4
	if pos+4 > len(buf) {
		return AckNack{}, ErrTruncated
	}
	a.Count = int32(order.Uint32(buf[pos : pos+4]))
	a.Final = flags&AckNackFlagFinal != 0
	return a, nil
}

// Gap announces that a range of sequence numbers is irrecoverable.
type Gap struct {
	ReaderId  guid.EntityId
	WriterId  guid.EntityId
	GapStart  guid.SequenceNumber
	GapListBase guid.SequenceNumber
	GapList   []guid.SequenceNumber
}

func EncodeGap(g Gap, littleEndian bool) []byte {
	order := submessageByteOrder(littleEndian)
	buf := make([]byte, 0, 64)
	buf = append(buf, g.ReaderId[:]...)
	buf = append(buf, g.WriterId[:]...)
	buf = appendSeqNum(buf, order, g.GapStart)
	buf = appendSeqNum(buf, order, g.GapListBase)
	numBits := 0
	for _, sn := range g.GapList {
		bit := int(sn - g.GapListBase)
		if bit+1 > numBits {
			numBits = bit + 1
		}
	}
	var nb [4]byte
	order.PutUint32(nb[:], uint32(numBits))
	buf = append(buf, nb[:]...)
	words := (numBits + 31) / 32
	bitmap := make([]uint32, words)
	for _, sn := range g.GapList {
		bit := int(sn - g.GapListBase)
		bitmap[bit/32] |= 1 << (31 - uint(bit%32))
	}
	for _, w := range bitmap {
		var wb [4]byte
		order.PutUint32(wb[:], w)
		buf = append(buf, wb[:]...)
	}
	return buf
}

func DecodeGap(buf []byte, littleEndian bool) (Gap, error) {
	if len(buf) < 24 {
		return Gap{}, ErrTruncated
	}
	order := submessageByteOrder(littleEndian)
	var g Gap
	copy(g.ReaderId[:], buf[0:4])
	copy(g.WriterId[:], buf[4:8])
	g.GapStart = readSeqNum(buf[8:16], order)
	g.GapListBase = readSeqNum(buf[16:24], order)
	if len(buf) < 28 {
		return g, nil
	}
	numBits := int(order.Uint32(buf[24:28]))
	words := (numBits + 31) / 32
	pos := 28
	for wi := 0; wi < words && pos+4 <= len(buf); wi++ {
		w := order.Uint32(buf[pos : pos+4])
		for bit := 0; bit < 32; bit++ {
			idx := wi*32 + bit
			if idx >= numBits {
				break
			}
			if w&(1<<(31-uint(bit))) != 0 {
				g.GapList = append(g.GapList, g.GapListBase+guid.SequenceNumber(idx))
			}
		}
		pos += 4
	}
	return g, nil
}

// HeartbeatFrag informs a reader which fragments of a partially-sent sample
// the writer still holds (spec §4.3's HEARTBEAT_FRAG submessage).
type HeartbeatFrag struct {
	ReaderId        guid.EntityId
	WriterId        guid.EntityId
	WriterSN        guid.SequenceNumber
	LastFragmentNum uint32
	Count           int32
}

func EncodeHeartbeatFrag(h HeartbeatFrag, littleEndian bool) []byte {
	order := submessageByteOrder(littleEndian)
	buf := make([]byte, 0, 8+8+4+4)
	buf = append(buf, h.ReaderId[:]...)
	buf = append(buf, h.WriterId[:]...)
	buf = appendSeqNum(buf, order, h.WriterSN)
	var lf [4]byte
	order.PutUint32(lf[:], h.LastFragmentNum)
	buf = append(buf, lf[:]...)
	var c [4]byte
	order.PutUint32(c[:], uint32(h.Count))
	return append(buf, c[:]...)
}

func DecodeHeartbeatFrag(buf []byte, littleEndian bool) (HeartbeatFrag, error) {
	if len(buf) < 24 {
		return HeartbeatFrag{}, ErrTruncated
	}
	order := submessageByteOrder(littleEndian)
	var h HeartbeatFrag
	copy(h.ReaderId[:], buf[0:4])
	copy(h.WriterId[:], buf[4:8])
	h.WriterSN = readSeqNum(buf[8:16], order)
	h.LastFragmentNum = order.Uint32(buf[16:20])
	h.Count = int32(order.Uint32(buf[20:24]))
	return h, nil
}

// NackFrag requests retransmission of specific fragments of one sample (spec
// §4.4's NACK_FRAG submessage), the fragment-granularity counterpart to
// AckNack.
type NackFrag struct {
	ReaderId         guid.EntityId
	WriterId         guid.EntityId
	WriterSN         guid.SequenceNumber
	MissingFragments []uint32
	Count            int32
}

func EncodeNackFrag(n NackFrag, littleEndian bool) []byte {
	order := submessageByteOrder(littleEndian)
	buf := make([]byte, 0, 64)
	buf = append(buf, n.ReaderId[:]...)
	buf = append(buf, n.WriterId[:]...)
	buf = appendSeqNum(buf, order, n.WriterSN)
	var base uint32
	for i, f := range n.MissingFragments {
		if i == 0 || f < base {
			base = f
		}
	}
	var b [4]byte
	order.PutUint32(b[:], base)
	buf = append(buf, b[:]...)
	numBits := 0
	for _, f := range n.MissingFragments {
		bit := int(f - base)
		if bit+1 > numBits {
			numBits = bit + 1
		}
	}
	var nb [4]byte
	order.PutUint32(nb[:], uint32(numBits))
	buf = append(buf, nb[:]...)
	words := (numBits + 31) / 32
	bitmap := make([]uint32, words)
	for _, f := range n.MissingFragments {
		bit := int(f - base)
		bitmap[bit/32] |= 1 << (31 - uint(bit%32))
	}
	for _, w := range bitmap {
		var wb [4]byte
		order.PutUint32(wb[:], w)
		buf = append(buf, wb[:]...)
	}
	var c [4]byte
	order.PutUint32(c[:], uint32(n.Count))
	return append(buf, c[:]...)
}

func DecodeNackFrag(buf []byte, littleEndian bool) (NackFrag, error) {
	if len(buf) < 24 {
		return NackFrag{}, ErrTruncated
	}
	order := submessageByteOrder(littleEndian)
	var n NackFrag
	copy(n.ReaderId[:], buf[0:4])
	copy(n.WriterId[:], buf[4:8])
	n.WriterSN = readSeqNum(buf[8:16], order)
	base := order.Uint32(buf[16:20])
	numBits := int(order.Uint32(buf[20:24]))
	words := (numBits + 31) / 32
	pos := 24
	if pos+words*4 > len(buf) {
		return NackFrag{}, ErrTruncated
	}
	for wi := 0; wi < words; wi++ {
		w := order.Uint32(buf[pos+wi*4 : pos+wi*4+4])
		for bit := 0; bit < 32; bit++ {
			idx := wi*32 + bit
			if idx >= numBits {
				break
			}
			if w&(1<<(31-uint(bit))) != 0 {
				n.MissingFragments = append(n.MissingFragments, base+uint32(idx))
			}
		}
	}
	pos += words * 4
	if pos+4 > len(buf) {
		return NackFrag{}, ErrTruncated
	}
	n.Count = int32(order.Uint32(buf[pos : pos+4]))
	return n, nil
}

// InfoTimestamp carries the wall-clock time a writer's samples were produced at.
type InfoTimestamp struct {
	Seconds     int32
	Fraction    uint32
}

func EncodeInfoTimestamp(ts InfoTimestamp, littleEndian bool) []byte {
	order := submessageByteOrder(littleEndian)
	buf := make([]byte, 8)
	order.PutUint32(buf[0:4], uint32(ts.Seconds))
	order.PutUint32(buf[4:8], ts.Fraction)
	return buf
}

func DecodeInfoTimestamp(buf []byte, littleEndian bool) (InfoTimestamp, error) {
	if len(buf) < 8 {
		return InfoTimestamp{}, ErrTruncated
	}
	order := submessageByteOrder(littleEndian)
	return InfoTimestamp{
		Seconds:  int32(order.Uint32(buf[0:4])),
		Fraction: order.Uint32(buf[4:8]),
	}, nil
}

func appendSeqNum(buf []byte, order binary.ByteOrder, sn guid.SequenceNumber) []byte {
	var b [8]byte
	order.PutUint32(b[0:4], uint32(sn.High()))
	order.PutUint32(b[4:8], sn.Low())
	return append(buf, b[:]...)
}

func readSeqNum(buf []byte, order binary.ByteOrder) guid.SequenceNumber {
	high := int32(order.Uint32(buf[0:4]))
	low := order.Uint32(buf[4:8])
	return guid.FromParts(high, low)
}
