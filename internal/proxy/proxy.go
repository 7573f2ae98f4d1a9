// Package proxy implements the per-match state mirroring the remote endpoint
// described in spec §3: ReaderProxy (held by a stateful writer) and WriterProxy
// (held by a stateful reader).
package proxy

import (
	"time"

	"github.com/dustdds-go/dds/internal/guid"
)

// ReaderProxy is a stateful writer's view of one matched reader.
type ReaderProxy struct {
	RemoteReaderGuid  guid.Guid
	UnicastLocators   []guid.Locator
	MulticastLocators []guid.Locator
	ExpectsInlineQos  bool

	HighestAckedSN      guid.SequenceNumber
	RequestedChanges     map[guid.SequenceNumber]struct{}
	NextUnsentSN         guid.SequenceNumber
	LastHeartbeatCountSent int32
	LastNackReceivedCount  int32
	TimeLastSentData       time.Time
	TimeNackReceived       time.Time
}

func NewReaderProxy(remote guid.Guid, unicast, multicast []guid.Locator) *ReaderProxy {
	return &ReaderProxy{
		RemoteReaderGuid:  remote,
		UnicastLocators:   unicast,
		MulticastLocators: multicast,
		HighestAckedSN:    0,
		RequestedChanges:  make(map[guid.SequenceNumber]struct{}),
		NextUnsentSN:      1,
	}
}

// RequestChanges unions a set of sequence numbers into RequestedChanges, used when
// an ACKNACK arrives (spec §4.3).
func (rp *ReaderProxy) RequestChanges(sns []guid.SequenceNumber) {
	for _, sn := range sns {
		rp.RequestedChanges[sn] = struct{}{}
	}
}

// PopRequested returns the requested sequence numbers in ascending order and
// clears the set, matching "smallest first" of spec §4.3's repair rule.
func (rp *ReaderProxy) PopRequested() []guid.SequenceNumber {
	out := make([]guid.SequenceNumber, 0, len(rp.RequestedChanges))
	for sn := range rp.RequestedChanges {
		out = append(out, sn)
	}
	sortSeqNums(out)
	rp.RequestedChanges = make(map[guid.SequenceNumber]struct{})
	return out
}

func sortSeqNums(s []guid.SequenceNumber) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// FragmentMap tracks which fragments of a DATAFRAG sequence number have arrived.
type FragmentMap struct {
	TotalFragments int
	Received       map[int][]byte
}

func NewFragmentMap(total int) *FragmentMap {
	return &FragmentMap{TotalFragments: total, Received: make(map[int][]byte)}
}

// Complete reports whether every fragment 0..TotalFragments-1 has arrived.
func (f *FragmentMap) Complete() bool {
	return len(f.Received) == f.TotalFragments
}

// Reassemble concatenates fragments in order; callers must check Complete() first.
func (f *FragmentMap) Reassemble() []byte {
	var out []byte
	for i := 0; i < f.TotalFragments; i++ {
		out = append(out, f.Received[i]...)
	}
	return out
}

// WriterProxy is a stateful reader's view of one matched writer.
type WriterProxy struct {
	RemoteWriterGuid  guid.Guid
	UnicastLocators   []guid.Locator
	MulticastLocators []guid.Locator

	HighestReceivedSN     guid.SequenceNumber
	MissingChanges        map[guid.SequenceNumber]struct{}
	ReceivedFragments     map[guid.SequenceNumber]*FragmentMap
	LastHeartbeatCountReceived int32
	LastAckNackCountSent       int32
	HeartbeatFirstSN           guid.SequenceNumber
	HeartbeatLastSN            guid.SequenceNumber
}

func NewWriterProxy(remote guid.Guid, unicast, multicast []guid.Locator) *WriterProxy {
	return &WriterProxy{
		RemoteWriterGuid:  remote,
		UnicastLocators:   unicast,
		MulticastLocators: multicast,
		HighestReceivedSN: 0,
		MissingChanges:    make(map[guid.SequenceNumber]struct{}),
		ReceivedFragments: make(map[guid.SequenceNumber]*FragmentMap),
	}
}

// MarkMissing adds every sequence number in [lo, hi] to MissingChanges.
func (wp *WriterProxy) MarkMissing(lo, hi guid.SequenceNumber) {
	for sn := lo; sn <= hi; sn++ {
		wp.MissingChanges[sn] = struct{}{}
	}
}

// ClearMissing removes one sequence number from the missing set (on receipt or GAP).
func (wp *WriterProxy) ClearMissing(sn guid.SequenceNumber) {
	delete(wp.MissingChanges, sn)
}

// PurgeBelow removes every missing entry strictly below sn (writer has discarded
// them, spec §4.4 HEARTBEAT handling).
func (wp *WriterProxy) PurgeBelow(sn guid.SequenceNumber) {
	for missing := range wp.MissingChanges {
		if missing < sn {
			delete(wp.MissingChanges, missing)
		}
	}
}

// SortedMissing returns the missing sequence numbers in ascending order.
func (wp *WriterProxy) SortedMissing() []guid.SequenceNumber {
	out := make([]guid.SequenceNumber, 0, len(wp.MissingChanges))
	for sn := range wp.MissingChanges {
		out = append(out, sn)
	}
	sortSeqNums(out)
	return out
}

// AckNackBase computes reader_sn_state.base per spec §4.4: highest_received_sn + 1
// minus the length of the contiguous tail of missing entries immediately below it.
// In this implementation (no out-of-order compaction beyond the missing set) base
// is simply highest_received_sn + 1 when nothing contiguous is missing there.
func (wp *WriterProxy) AckNackBase() guid.SequenceNumber {
	return wp.HighestReceivedSN + 1
}
