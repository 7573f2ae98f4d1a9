// Package cdr implements the Common Data Representation payload encoding of spec
// §4.1: plain CDR (XCDR1) and XCDR2, each in big- or little-endian, selected by a
// 4-byte representation header preceding the payload.
package cdr

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dustdds-go/dds/internal/qos"
)

// Version selects the alignment rule: XCDR1 aligns a primitive of size N to the Nth
// byte from the start of the payload; XCDR2 aligns to min(N, 4) (spec §4.1).
type Version int

const (
	XCDR1 Version = iota
	XCDR2
)

// Encapsulation is the 4-byte header preceding every CDR payload.
type Encapsulation struct {
	Version  Version
	BigEndian bool
	PLCDR    bool // parameter-list framing variant (0x0002/0x0003)
}

// RepresentationId returns the wire value for this encapsulation's header.
func (e Encapsulation) RepresentationId() qos.RepresentationId {
	switch {
	case e.PLCDR && e.BigEndian:
		return qos.PLCDRBE
	case e.PLCDR && !e.BigEndian:
		return qos.PLCDRLE
	case e.Version == XCDR2 && e.BigEndian:
		return qos.XCDR2BE
	case e.Version == XCDR2 && !e.BigEndian:
		return qos.XCDR2LE
	case e.BigEndian:
		return qos.XCDR1BE
	default:
		return qos.XCDR1LE
	}
}

// EncapsulationFromId decodes the representation id header into an Encapsulation.
func EncapsulationFromId(id qos.RepresentationId) (Encapsulation, error) {
	switch id {
	case qos.XCDR1BE:
		return Encapsulation{Version: XCDR1, BigEndian: true}, nil
	case qos.XCDR1LE:
		return Encapsulation{Version: XCDR1, BigEndian: false}, nil
	case qos.XCDR2BE:
		return Encapsulation{Version: XCDR2, BigEndian: true}, nil
	case qos.XCDR2LE:
		return Encapsulation{Version: XCDR2, BigEndian: false}, nil
	case qos.PLCDRBE:
		return Encapsulation{Version: XCDR1, BigEndian: true, PLCDR: true}, nil
	case qos.PLCDRLE:
		return Encapsulation{Version: XCDR1, BigEndian: false, PLCDR: true}, nil
	default:
		return Encapsulation{}, fmt.Errorf("cdr: unknown representation id 0x%04x", id)
	}
}

// ErrInvalidData is returned when a decode would read past the end of the buffer.
var ErrInvalidData = fmt.Errorf("cdr: invalid data")

// Writer serializes primitives with the alignment rules of the given encapsulation,
// tracking position relative to the start of the encapsulated payload (position 0
// right after the 4-byte header, per spec §4.1).
type Writer struct {
	enc Encapsulation
	buf []byte
}

func NewWriter(enc Encapsulation) *Writer {
	return &Writer{enc: enc}
}

func (w *Writer) order() binary.ByteOrder {
	if w.enc.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (w *Writer) alignment(size int) int {
	if w.enc.Version == XCDR2 && size > 4 {
		return 4
	}
	return size
}

func (w *Writer) align(size int) {
	a := w.alignment(size)
	if a <= 1 {
		return
	}
	for len(w.buf)%a != 0 {
		w.buf = append(w.buf, 0)
	}
}

// Bytes returns the payload written so far (excluding the 4-byte encapsulation
// header, which callers prepend with HeaderBytes()).
func (w *Writer) Bytes() []byte { return w.buf }

// HeaderBytes returns the 4-byte representation-id + options header to prepend.
func (w *Writer) HeaderBytes() []byte {
	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(w.enc.RepresentationId()))
	return hdr[:]
}

func (w *Writer) WriteByte(v byte) { w.buf = append(w.buf, v) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}

func (w *Writer) WriteUint16(v uint16) {
	w.align(2)
	var b [2]byte
	w.order().PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteInt16(v int16) { w.WriteUint16(uint16(v)) }

func (w *Writer) WriteUint32(v uint32) {
	w.align(4)
	var b [4]byte
	w.order().PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }

func (w *Writer) WriteUint64(v uint64) {
	w.align(8)
	var b [8]byte
	w.order().PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }

func (w *Writer) WriteFloat32(v float32) { w.WriteUint32(math.Float32bits(v)) }
func (w *Writer) WriteFloat64(v float64) { w.WriteUint64(math.Float64bits(v)) }

// WriteString writes a u32 length (including the trailing NUL) followed by the
// bytes and the NUL terminator, per spec §4.1.
func (w *Writer) WriteString(s string) {
	w.WriteUint32(uint32(len(s) + 1))
	w.buf = append(w.buf, []byte(s)...)
	w.buf = append(w.buf, 0)
}

// WriteBytes writes a raw byte sequence: u32 length + elements, no terminator.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteRaw appends bytes with no length prefix or alignment (used for fixed-size
// arrays such as a GuidPrefix already produced by another encoder).
func (w *Writer) WriteRaw(b []byte) { w.buf = append(w.buf, b...) }

// Reserve4 appends a placeholder 4-byte slot (e.g. for an XCDR2 DHEADER) and
// returns its offset so the caller can patch it once the body length is known.
func (w *Writer) Reserve4() int {
	off := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	return off
}

// PatchUint32At overwrites a previously reserved 4-byte slot.
func (w *Writer) PatchUint32At(offset int, v uint32) {
	w.order().PutUint32(w.buf[offset:offset+4], v)
}

// Reader deserializes primitives symmetrically to Writer.
type Reader struct {
	enc Encapsulation
	buf []byte
	pos int
}

func NewReader(enc Encapsulation, buf []byte) *Reader {
	return &Reader{enc: enc, buf: buf}
}

func (r *Reader) order() binary.ByteOrder {
	if r.enc.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (r *Reader) alignment(size int) int {
	if r.enc.Version == XCDR2 && size > 4 {
		return 4
	}
	return size
}

func (r *Reader) align(size int) {
	a := r.alignment(size)
	if a <= 1 {
		return
	}
	for r.pos%a != 0 {
		r.pos++
	}
}

// Remaining returns how many bytes are left unread.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return ErrInvalidData
	}
	return nil
}

func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	return b != 0, err
}

func (r *Reader) ReadUint16() (uint16, error) {
	r.align(2)
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := r.order().Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	r.align(4)
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := r.order().Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	r.align(8)
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := r.order().Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadString reads a u32 length (including trailing NUL) followed by the bytes,
// and strips the NUL terminator.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.pos : r.pos+int(n)-1])
	r.pos += int(n)
	return s, nil
}

// ReadBytes reads a u32 length followed by that many raw bytes.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return b, nil
}

// ReadRaw reads exactly n unaligned bytes.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}
