package cdr

import "testing"

func encodeDecodeRoundtrip(t *testing.T, enc Encapsulation) {
	t.Helper()
	w := NewWriter(enc)
	w.WriteUint32(42)
	w.WriteString("hello")
	w.WriteUint64(1 << 40)
	w.WriteBytes([]byte{1, 2, 3})
	w.WriteFloat64(3.5)

	r := NewReader(enc, w.Bytes())
	if v, err := r.ReadUint32(); err != nil || v != 42 {
		t.Fatalf("ReadUint32() = %d, %v, want 42, nil", v, err)
	}
	if s, err := r.ReadString(); err != nil || s != "hello" {
		t.Fatalf("ReadString() = %q, %v, want hello, nil", s, err)
	}
	if v, err := r.ReadUint64(); err != nil || v != 1<<40 {
		t.Fatalf("ReadUint64() = %d, %v, want %d, nil", v, err, 1<<40)
	}
	if b, err := r.ReadBytes(); err != nil || len(b) != 3 {
		t.Fatalf("ReadBytes() = %v, %v, want len 3", b, err)
	}
	if f, err := r.ReadFloat64(); err != nil || f != 3.5 {
		t.Fatalf("ReadFloat64() = %v, %v, want 3.5", f, err)
	}
}

func TestRoundtripAllFourEncodings(t *testing.T) {
	for _, enc := range []Encapsulation{
		{Version: XCDR1, BigEndian: true},
		{Version: XCDR1, BigEndian: false},
		{Version: XCDR2, BigEndian: true},
		{Version: XCDR2, BigEndian: false},
	} {
		encodeDecodeRoundtrip(t, enc)
	}
}

func TestEncapsulationRepresentationIdRoundtrip(t *testing.T) {
	for _, enc := range []Encapsulation{
		{Version: XCDR1, BigEndian: true},
		{Version: XCDR1, BigEndian: false},
		{Version: XCDR2, BigEndian: true},
		{Version: XCDR2, BigEndian: false},
		{Version: XCDR1, BigEndian: true, PLCDR: true},
		{Version: XCDR1, BigEndian: false, PLCDR: true},
	} {
		id := enc.RepresentationId()
		got, err := EncapsulationFromId(id)
		if err != nil {
			t.Fatalf("EncapsulationFromId(0x%04x) error = %v", id, err)
		}
		if got != enc {
			t.Errorf("EncapsulationFromId(0x%04x) = %+v, want %+v", id, got, enc)
		}
	}
}

func TestReadPastBufferIsInvalidData(t *testing.T) {
	r := NewReader(Encapsulation{}, []byte{0, 1})
	if _, err := r.ReadUint64(); err != ErrInvalidData {
		t.Fatalf("ReadUint64() error = %v, want ErrInvalidData", err)
	}
}

func TestXCDR2AlignsLargePrimitivesToFour(t *testing.T) {
	w := NewWriter(Encapsulation{Version: XCDR2})
	w.WriteByte(1) // offset 1
	w.WriteUint64(0x1122334455667788)
	// XCDR2 aligns 8-byte fields to 4, not 8: expect padding to offset 4, not 8.
	if len(w.Bytes()) != 4+8 {
		t.Fatalf("len(Bytes()) = %d, want %d", len(w.Bytes()), 12)
	}
}
