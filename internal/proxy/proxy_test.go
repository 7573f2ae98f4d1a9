package proxy

import (
	"testing"

	"github.com/dustdds-go/dds/internal/guid"
)

func TestReaderProxyPopRequestedAscending(t *testing.T) {
	rp := NewReaderProxy(guid.Guid{}, nil, nil)
	rp.RequestChanges([]guid.SequenceNumber{5, 1, 3})
	got := rp.PopRequested()
	want := []guid.SequenceNumber{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("PopRequested() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("PopRequested() = %v, want %v", got, want)
		}
	}
	if len(rp.RequestedChanges) != 0 {
		t.Fatalf("RequestedChanges not cleared: %v", rp.RequestedChanges)
	}
}

func TestFragmentMapCompleteAndReassemble(t *testing.T) {
	fm := NewFragmentMap(3)
	fm.Received[0] = []byte("ab")
	fm.Received[2] = []byte("ef")
	if fm.Complete() {
		t.Fatal("Complete() = true, want false (missing fragment 1)")
	}
	fm.Received[1] = []byte("cd")
	if !fm.Complete() {
		t.Fatal("Complete() = false, want true")
	}
	if string(fm.Reassemble()) != "abcdef" {
		t.Fatalf("Reassemble() = %q, want abcdef", fm.Reassemble())
	}
}

func TestWriterProxyMissingAndPurge(t *testing.T) {
	wp := NewWriterProxy(guid.Guid{}, nil, nil)
	wp.MarkMissing(1, 5)
	wp.ClearMissing(3)
	wp.PurgeBelow(4)
	got := wp.SortedMissing()
	if len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Fatalf("SortedMissing() = %v, want [4 5]", got)
	}
}
