// Package rtpsreader implements the stateful reader engine of spec §4.4 (C4):
// DATA/HEARTBEAT/GAP handling against a writer proxy's missing-sequence-number
// set, and ACKNACK emission.
package rtpsreader

import (
	"context"
	"time"

	"github.com/dustdds-go/dds/internal/guid"
	"github.com/dustdds-go/dds/internal/history"
	"github.com/dustdds-go/dds/internal/proxy"
	"github.com/dustdds-go/dds/internal/qos"
	"github.com/dustdds-go/dds/internal/status"
	"github.com/dustdds-go/dds/internal/transport"
	"github.com/dustdds-go/dds/internal/wire"
)

// Reader drives one local DataReader's matched writer proxies. Like Writer,
// it is mutated only by the owning participant actor (spec §5).
type Reader struct {
	Guid              guid.Guid
	ParticipantPrefix guid.Prefix
	Qos               qos.ReaderQos
	Cache             *history.Cache
	Transport         transport.Transport

	IgnoreUnmatchedWriters bool

	// Filter, if set, is evaluated against a sample's raw payload before it is
	// ever added to Cache; a rejecting filter drops the sample as if it had
	// never arrived (the supplemented content-filtered-topic feature).
	Filter func(payload []byte) bool

	proxies            map[guid.Guid]*proxy.WriterProxy
	ackNackCount       int32
	sampleRejected     status.Counters
}

func New(id guid.Guid, participantPrefix guid.Prefix, q qos.ReaderQos, cache *history.Cache, tr transport.Transport) *Reader {
	return &Reader{
		Guid:              id,
		ParticipantPrefix: participantPrefix,
		Qos:               q,
		Cache:             cache,
		Transport:         tr,
		proxies:           make(map[guid.Guid]*proxy.WriterProxy),
	}
}

func (r *Reader) EntityId() guid.EntityId { return r.Guid.Entity }

// MatchesWriter backs the receiver's ENTITYID_UNKNOWN DATA/HEARTBEAT/GAP
// fan-out rule (spec §4.5).
func (r *Reader) MatchesWriter(w guid.Guid) bool {
	_, ok := r.proxies[w]
	return ok
}

func (r *Reader) MatchedWriterAdd(wp *proxy.WriterProxy) {
	r.proxies[wp.RemoteWriterGuid] = wp
}

func (r *Reader) MatchedWriterRemove(writer guid.Guid) {
	delete(r.proxies, writer)
}

// MatchedWriterRemoveByPrefix drops every matched writer proxy owned by
// prefix, used when that remote participant's SPDP lease expires (spec
// §4.7's "cascade removal to all matches").
func (r *Reader) MatchedWriterRemoveByPrefix(prefix guid.Prefix) {
	for g := range r.proxies {
		if g.Prefix == prefix {
			delete(r.proxies, g)
		}
	}
}

// OnData implements spec §4.4's DATA handling.
func (r *Reader) OnData(srcPrefix guid.Prefix, d wire.Data, ts time.Time) {
	writerGuid := guid.Guid{Prefix: srcPrefix, Entity: d.WriterId}
	wp, ok := r.proxies[writerGuid]
	if !ok {
		if r.IgnoreUnmatchedWriters {
			return
		}
		wp = proxy.NewWriterProxy(writerGuid, nil, nil)
		r.proxies[writerGuid] = wp
	}

	if d.WriterSN <= wp.HighestReceivedSN {
		if _, present := r.Cache.Get(d.WriterSN); present {
			return // duplicate
		}
	}

	if r.Filter != nil && !r.Filter(d.SerializedPayload) {
		r.advanceProxy(wp, d.WriterSN)
		return
	}

	change := history.CacheChange{
		Kind:               statusInfoKind(d.InlineQos),
		WriterGuid:         writerGuid,
		SequenceNumber:     d.WriterSN,
		ReceptionTimestamp: time.Now(),
		DataValue:          d.SerializedPayload,
	}
	if !ts.IsZero() {
		change.SourceTimestamp = &ts
	}
	if result, reason := r.Cache.Add(change); result == history.Rejected {
		r.sampleRejected.TotalCount++
		r.sampleRejected.TotalCountChange++
		_ = reason
	}

	r.advanceProxy(wp, d.WriterSN)
}

// statusInfoKind decodes PID_STATUS_INFO, if present, into the corresponding
// ChangeKind (spec §4.1); absent or unrecognized inline qos means Alive.
func statusInfoKind(inlineQos *wire.ParameterList) history.ChangeKind {
	if inlineQos == nil {
		return history.Alive
	}
	raw, ok := inlineQos.Get(wire.PidStatusInfo)
	if !ok {
		return history.Alive
	}
	bits, err := wire.DecodeUint32(raw, true)
	if err != nil {
		return history.Alive
	}
	switch {
	case bits&wire.StatusInfoDisposed != 0:
		return history.NotAliveDisposed
	case bits&wire.StatusInfoUnregistered != 0:
		return history.NotAliveUnregistered
	default:
		return history.Alive
	}
}

// advanceProxy updates the missing-set bookkeeping shared by OnData and
// OnDataFrag once a sequence number has been fully accounted for (whether
// stored, filtered out, or reassembled).
func (r *Reader) advanceProxy(wp *proxy.WriterProxy, sn guid.SequenceNumber) {
	if sn > wp.HighestReceivedSN+1 {
		wp.MarkMissing(wp.HighestReceivedSN+1, sn-1)
	}
	wp.ClearMissing(sn)
	if sn > wp.HighestReceivedSN {
		wp.HighestReceivedSN = sn
	}
}

// OnDataFrag implements spec §4.4's DATAFRAG handling: fragments accumulate
// in the writer proxy's FragmentMap until complete, at which point the
// reassembled payload is added to the cache exactly like a whole DATA.
func (r *Reader) OnDataFrag(srcPrefix guid.Prefix, d wire.DataFrag, ts time.Time) {
	writerGuid := guid.Guid{Prefix: srcPrefix, Entity: d.WriterId}
	wp, ok := r.proxies[writerGuid]
	if !ok {
		if r.IgnoreUnmatchedWriters {
			return
		}
		wp = proxy.NewWriterProxy(writerGuid, nil, nil)
		r.proxies[writerGuid] = wp
	}

	if d.WriterSN <= wp.HighestReceivedSN {
		if _, present := r.Cache.Get(d.WriterSN); present {
			return // duplicate, already reassembled
		}
	}

	fm, ok := wp.ReceivedFragments[d.WriterSN]
	if !ok {
		total := 1
		if d.FragmentSize > 0 {
			total = int((d.SampleSize + uint32(d.FragmentSize) - 1) / uint32(d.FragmentSize))
		}
		fm = proxy.NewFragmentMap(total)
		wp.ReceivedFragments[d.WriterSN] = fm
	}
	fm.Received[int(d.FragmentStartingNum)-1] = d.SerializedPayload

	if !fm.Complete() {
		return
	}
	delete(wp.ReceivedFragments, d.WriterSN)
	payload := fm.Reassemble()

	if r.Filter != nil && !r.Filter(payload) {
		r.advanceProxy(wp, d.WriterSN)
		return
	}

	change := history.CacheChange{
		Kind:               history.Alive,
		WriterGuid:         writerGuid,
		SequenceNumber:     d.WriterSN,
		ReceptionTimestamp: time.Now(),
		DataValue:          payload,
	}
	if !ts.IsZero() {
		change.SourceTimestamp = &ts
	}
	if result, reason := r.Cache.Add(change); result == history.Rejected {
		r.sampleRejected.TotalCount++
		r.sampleRejected.TotalCountChange++
		_ = reason
	}

	r.advanceProxy(wp, d.WriterSN)
}

// OnHeartbeatFrag marks a partially-fragmented sample missing if this reader
// never received (or never finished reassembling) it, so the next ACKNACK
// requests a full resend (spec §4.4).
func (r *Reader) OnHeartbeatFrag(srcPrefix guid.Prefix, hf wire.HeartbeatFrag) {
	writerGuid := guid.Guid{Prefix: srcPrefix, Entity: hf.WriterId}
	wp, ok := r.proxies[writerGuid]
	if !ok {
		return
	}
	if _, present := r.Cache.Get(hf.WriterSN); !present {
		wp.MissingChanges[hf.WriterSN] = struct{}{}
	}
}

// OnHeartbeat implements spec §4.4's HEARTBEAT handling. The caller schedules
// the ACKNACK response after heartbeat_response_delay; SendAckNack performs
// the actual emission once that delay elapses.
func (r *Reader) OnHeartbeat(srcPrefix guid.Prefix, hb wire.Heartbeat) (needsAckNack bool) {
	writerGuid := guid.Guid{Prefix: srcPrefix, Entity: hb.WriterId}
	wp, ok := r.proxies[writerGuid]
	if !ok {
		return false
	}
	if hb.Count <= wp.LastHeartbeatCountReceived {
		return false
	}
	wp.LastHeartbeatCountReceived = hb.Count
	wp.HeartbeatFirstSN, wp.HeartbeatLastSN = hb.FirstSN, hb.LastSN
	wp.PurgeBelow(hb.FirstSN)

	lo := wp.HighestReceivedSN + 1
	if hb.FirstSN > lo {
		lo = hb.FirstSN
	}
	for sn := lo; sn <= hb.LastSN; sn++ {
		if _, present := r.Cache.Get(sn); !present {
			wp.MissingChanges[sn] = struct{}{}
		}
	}
	return true
}

// HeartbeatFinal reports the HEARTBEAT submessage's FINAL_FLAG, which
// suppresses the caller's scheduled unsolicited ACKNACK (spec §4.4). Callers
// read the flag directly off the decoded submessage before invoking
// OnHeartbeat; exposed here only for symmetry with the writer-side API.
func HeartbeatFinal(flags byte) bool { return flags&wire.HeartbeatFlagFinal != 0 }

// OnGap implements spec §4.4's GAP handling: covered sequence numbers are
// irrecoverable and removed from the missing set.
func (r *Reader) OnGap(srcPrefix guid.Prefix, g wire.Gap) {
	writerGuid := guid.Guid{Prefix: srcPrefix, Entity: g.WriterId}
	wp, ok := r.proxies[writerGuid]
	if !ok {
		return
	}
	for sn := g.GapStart; sn < g.GapListBase; sn++ {
		wp.ClearMissing(sn)
		if sn > wp.HighestReceivedSN {
			wp.HighestReceivedSN = sn
		}
	}
	for _, sn := range g.GapList {
		wp.ClearMissing(sn)
		if sn > wp.HighestReceivedSN {
			wp.HighestReceivedSN = sn
		}
	}
}

// SendAckNack emits one ACKNACK per matched writer proxy, per spec §4.4's
// "reader_sn_state.base = highest_received_sn + 1 − |contiguous tail|" rule
// (this implementation tracks missing changes explicitly rather than a
// contiguous-tail count, so base is simply highest_received_sn + 1 whenever
// the missing set is empty at that boundary).
func (r *Reader) SendAckNack(ctx context.Context, final bool) error {
	r.ackNackCount++
	for _, wp := range r.proxies {
		missing := wp.SortedMissing()
		base := wp.AckNackBase()
		if len(missing) > 0 {
			base = missing[0]
		}
		an := wire.AckNack{
			ReaderId: r.Guid.Entity,
			WriterId: wp.RemoteWriterGuid.Entity,
			Base:     base,
			Missing:  missing,
			Count:    r.ackNackCount,
			Final:    final,
		}
		flags := byte(0)
		if final {
			flags |= wire.AckNackFlagFinal
		}
		body := wire.EncodeAckNack(an, true)
		header := wire.MessageHeader{Version: wire.CurrentProtocolVersion, Vendor: wire.ThisVendorId, GuidPrefix: r.ParticipantPrefix}
		b := wire.NewBuilder(header, true)
		b.Add(wire.KindAckNack, flags, body)

		locator := bestLocator(wp.UnicastLocators, wp.MulticastLocators)
		if locator.Kind == guid.LocatorKindInvalid {
			continue
		}
		if err := r.Transport.Send(ctx, locator, b.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func bestLocator(unicast, multicast []guid.Locator) guid.Locator {
	if len(unicast) > 0 {
		return unicast[0]
	}
	if len(multicast) > 0 {
		return multicast[0]
	}
	return guid.InvalidLocator
}
