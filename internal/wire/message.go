package wire

// RawSubmessage is one decoded-header, not-yet-interpreted submessage: the message
// receiver (C5) walks a list of these before dispatching each to the matching
// reader/writer engine.
type RawSubmessage struct {
	Header SubmessageHeader
	Body   []byte
}

// Message is a fully parsed RTPS datagram: the 20-byte header plus every
// submessage found before the buffer ran out.
type Message struct {
	Header      MessageHeader
	Submessages []RawSubmessage
}

// Builder assembles an outbound RTPS message one submessage at a time, computing
// octets_to_next_header as it goes (spec §4.1: 0 on the last submessage means "to
// end of datagram", which this builder relies on rather than writes explicitly).
type Builder struct {
	littleEndian bool
	header       MessageHeader
	buf          []byte
}

func NewBuilder(header MessageHeader, littleEndian bool) *Builder {
	b := &Builder{littleEndian: littleEndian, header: header}
	b.buf = append(b.buf, EncodeMessageHeader(header)...)
	return b
}

// Add appends one submessage: kind, submessage-specific flag bits (endianness is
// added automatically), and the already-serialized body.
func (b *Builder) Add(kind SubmessageKind, flags byte, body []byte) {
	if b.littleEndian {
		flags |= FlagEndianness
	} else {
		flags &^= FlagEndianness
	}
	h := SubmessageHeader{Kind: kind, Flags: flags, OctetsToNextHeader: uint16(len(body))}
	b.buf = append(b.buf, EncodeSubmessageHeader(h)...)
	b.buf = append(b.buf, body...)
}

// Bytes returns the assembled datagram.
func (b *Builder) Bytes() []byte { return b.buf }

// Parse decodes a datagram's header and walks its submessages without
// interpreting their bodies (spec §4.5 step 1-2), matching DecodeMessageHeader +
// a length-prefixed walk. An unknown submessage kind is kept as a RawSubmessage so
// the caller can skip it, per spec §4.5 step 3.
func Parse(datagram []byte) (Message, error) {
	header, err := DecodeMessageHeader(datagram)
	if err != nil {
		return Message{}, err
	}
	msg := Message{Header: header}
	pos := MessageHeaderLength
	for pos < len(datagram) {
		if pos+SubmessageHeaderLength > len(datagram) {
			return Message{}, ErrTruncated
		}
		sh, err := DecodeSubmessageHeader(datagram[pos : pos+SubmessageHeaderLength])
		if err != nil {
			return Message{}, err
		}
		pos += SubmessageHeaderLength
		length := int(sh.OctetsToNextHeader)
		if length == 0 {
			length = len(datagram) - pos
		}
		if pos+length > len(datagram) {
			return Message{}, ErrTruncated
		}
		msg.Submessages = append(msg.Submessages, RawSubmessage{Header: sh, Body: datagram[pos : pos+length]})
		pos += length
	}
	return msg, nil
}
