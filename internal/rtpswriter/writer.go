// Package rtpswriter implements the stateful writer engine of spec §4.3 (C3):
// per-reader-proxy push/heartbeat/repair state machine, reliable retention
// until acknowledged, and best-effort fire-and-forget delivery.
package rtpswriter

import (
	"context"
	"time"

	"github.com/dustdds-go/dds/internal/ddserrors"
	"github.com/dustdds-go/dds/internal/guid"
	"github.com/dustdds-go/dds/internal/history"
	"github.com/dustdds-go/dds/internal/proxy"
	"github.com/dustdds-go/dds/internal/qos"
	"github.com/dustdds-go/dds/internal/transport"
	"github.com/dustdds-go/dds/internal/wire"
)

// Writer drives one local DataWriter's matched-reader proxies. It is not
// goroutine-safe: the owning participant actor serializes every call (spec
// §5's "no internal locks are required because every mutation runs on this
// task").
type Writer struct {
	Guid              guid.Guid
	ParticipantPrefix guid.Prefix
	Qos               qos.WriterQos
	Cache             *history.Cache
	Transport         transport.Transport

	proxies        map[guid.Guid]*proxy.ReaderProxy
	heartbeatCount int32
}

func New(id guid.Guid, participantPrefix guid.Prefix, q qos.WriterQos, cache *history.Cache, tr transport.Transport) *Writer {
	return &Writer{
		Guid:              id,
		ParticipantPrefix: participantPrefix,
		Qos:               q,
		Cache:             cache,
		Transport:         tr,
		proxies:           make(map[guid.Guid]*proxy.ReaderProxy),
	}
}

func (w *Writer) EntityId() guid.EntityId { return w.Guid.Entity }

// MatchesReader backs the receiver's ENTITYID_UNKNOWN ACKNACK fan-out rule
// (spec §4.5).
func (w *Writer) MatchesReader(r guid.Guid) bool {
	_, ok := w.proxies[r]
	return ok
}

func (w *Writer) isReliable() bool {
	return w.Qos.Reliability.Kind == qos.Reliable
}

// MatchedReaderAdd registers a reader proxy once the QoS matcher (C8) has
// confirmed compatibility (spec §4.3's "matched_reader_add" transition).
func (w *Writer) MatchedReaderAdd(rp *proxy.ReaderProxy) {
	w.proxies[rp.RemoteReaderGuid] = rp
}

func (w *Writer) MatchedReaderRemove(reader guid.Guid) {
	delete(w.proxies, reader)
}

// MatchedReaderRemoveByPrefix drops every matched reader proxy owned by
// prefix, used when that remote participant's SPDP lease expires (spec
// §4.7's "cascade removal to all matches").
func (w *Writer) MatchedReaderRemoveByPrefix(prefix guid.Prefix) {
	for g := range w.proxies {
		if g.Prefix == prefix {
			delete(w.proxies, g)
		}
	}
}

// Write adds change to the history cache and pushes it to every matched
// reader proxy immediately (the Pushing state of spec §4.3's diagram never
// waits for a tick to clear unsent==∅ for the first time).
func (w *Writer) Write(ctx context.Context, payload []byte, ts time.Time) (guid.SequenceNumber, error) {
	return w.writeChange(ctx, history.Alive, payload, ts)
}

// DisposeWithTimestamp implements spec §4.6's dispose_w_timestamp: it marks
// the writer's instance NOT_ALIVE_DISPOSED and propagates that over the wire
// via PID_STATUS_INFO (spec §4.1) so matched readers transition their own
// instance_state instead of treating it as an ordinary sample.
func (w *Writer) DisposeWithTimestamp(ctx context.Context, ts time.Time) (guid.SequenceNumber, error) {
	return w.writeChange(ctx, history.NotAliveDisposed, nil, ts)
}

// UnregisterInstance implements spec §4.6's unregister_instance.
func (w *Writer) UnregisterInstance(ctx context.Context, ts time.Time) (guid.SequenceNumber, error) {
	return w.writeChange(ctx, history.NotAliveUnregistered, nil, ts)
}

// writeChange is shared by Write/DisposeWithTimestamp/UnregisterInstance: all
// three differ only in ChangeKind and whether a payload accompanies the
// change (spec §4.2's history cache makes no other distinction between them).
func (w *Writer) writeChange(ctx context.Context, kind history.ChangeKind, payload []byte, ts time.Time) (guid.SequenceNumber, error) {
	sn := w.Cache.SeqNumMax() + 1
	if sn < 1 {
		sn = 1
	}
	change := history.CacheChange{
		Kind:               kind,
		WriterGuid:         w.Guid,
		InstanceHandle:     guid.InstanceHandle{}, // keyed instance resolution happens at the dds facade layer
		SequenceNumber:     sn,
		SourceTimestamp:    &ts,
		ReceptionTimestamp: ts,
		DataValue:          payload,
	}
	if result, reason := w.Cache.Add(change); result == history.Rejected {
		return guid.SequenceNumberUnknown, ddserrors.New(ddserrors.OutOfResources, "write", reason.String())
	}
	return sn, w.PushUnsent(ctx)
}

// PushUnsent sends DATA (or GAP, for changes the cache has already dropped)
// for every sequence number a proxy hasn't yet been sent, smallest first,
// never skipping ahead of an unsent lower sequence number (spec §4.3's
// ordering guarantee).
func (w *Writer) PushUnsent(ctx context.Context) error {
	maxSN := w.Cache.SeqNumMax()
	if maxSN == guid.SequenceNumberUnknown {
		return nil
	}
	for _, rp := range w.proxies {
		for sn := rp.NextUnsentSN; sn <= maxSN; sn++ {
			if err := w.sendChangeOrGap(ctx, rp, sn); err != nil {
				return err
			}
			rp.NextUnsentSN = sn + 1
			rp.TimeLastSentData = time.Now()
		}
	}
	return nil
}

func (w *Writer) sendChangeOrGap(ctx context.Context, rp *proxy.ReaderProxy, sn guid.SequenceNumber) error {
	change, ok := w.Cache.Get(sn)
	if !ok {
		return w.sendGap(ctx, rp, sn)
	}
	return w.sendData(ctx, rp, change)
}

// fragmentSize bounds a single DATA submessage's payload; larger changes are
// split into DATAFRAG fragments of this size instead (spec §4.3). Dispose/
// unregister changes carry no payload and so are never fragmented.
const fragmentSize = 1300

func (w *Writer) sendData(ctx context.Context, rp *proxy.ReaderProxy, change history.CacheChange) error {
	if len(change.DataValue) > fragmentSize {
		return w.sendDataFrag(ctx, rp, change)
	}
	d := wire.Data{
		ReaderId:          rp.RemoteReaderGuid.Entity,
		WriterId:          w.Guid.Entity,
		WriterSN:          change.SequenceNumber,
		SerializedPayload: change.DataValue,
	}
	flags := byte(0)
	if len(change.DataValue) > 0 {
		flags |= wire.DataFlagData
	}
	if pl := statusInfoParams(change.Kind); pl != nil {
		d.InlineQos = pl
		flags |= wire.DataFlagInlineQos
	}
	body := wire.EncodeData(d, true)
	var ts time.Time
	if change.SourceTimestamp != nil {
		ts = *change.SourceTimestamp
	}
	msg := w.buildMessage(ts, wire.KindData, flags, body)
	return w.sendTo(ctx, rp, msg)
}

// sendDataFrag splits change's payload into fixed-size DATAFRAG submessages,
// one per fragment, and sends each in sequence (spec §4.3's fragmentation;
// reassembly happens reader-side via proxy.FragmentMap).
func (w *Writer) sendDataFrag(ctx context.Context, rp *proxy.ReaderProxy, change history.CacheChange) error {
	total := len(change.DataValue)
	numFrags := (total + fragmentSize - 1) / fragmentSize
	var ts time.Time
	if change.SourceTimestamp != nil {
		ts = *change.SourceTimestamp
	}
	for i := 0; i < numFrags; i++ {
		start := i * fragmentSize
		end := start + fragmentSize
		if end > total {
			end = total
		}
		df := wire.DataFrag{
			ReaderId:              rp.RemoteReaderGuid.Entity,
			WriterId:              w.Guid.Entity,
			WriterSN:              change.SequenceNumber,
			FragmentStartingNum:   uint32(i + 1),
			FragmentsInSubmessage: 1,
			FragmentSize:          uint16(fragmentSize),
			SampleSize:            uint32(total),
			SerializedPayload:     change.DataValue[start:end],
		}
		body := wire.EncodeDataFrag(df, true)
		msg := w.buildMessage(ts, wire.KindDataFrag, 0, body)
		if err := w.sendTo(ctx, rp, msg); err != nil {
			return err
		}
	}
	return nil
}

// statusInfoParams encodes PID_STATUS_INFO for a dispose/unregister change,
// or nil for an ordinary Alive one (spec §4.1).
func statusInfoParams(kind history.ChangeKind) *wire.ParameterList {
	var bits uint32
	switch kind {
	case history.NotAliveDisposed:
		bits = wire.StatusInfoDisposed
	case history.NotAliveUnregistered:
		bits = wire.StatusInfoUnregistered
	default:
		return nil
	}
	pl := &wire.ParameterList{}
	pl.Add(wire.PidStatusInfo, wire.EncodeUint32(bits, true))
	return pl
}

func (w *Writer) sendGap(ctx context.Context, rp *proxy.ReaderProxy, sn guid.SequenceNumber) error {
	g := wire.Gap{
		ReaderId:    rp.RemoteReaderGuid.Entity,
		WriterId:    w.Guid.Entity,
		GapStart:    sn,
		GapListBase: sn,
		GapList:     []guid.SequenceNumber{sn},
	}
	body := wire.EncodeGap(g, true)
	msg := w.buildMessage(time.Time{}, wire.KindGap, 0, body)
	return w.sendTo(ctx, rp, msg)
}

// SendHeartbeat emits HEARTBEAT to every matched reader proxy, as done every
// heartbeat_period while unacked reliable changes exist (spec §4.3). A
// best-effort writer never calls this.
func (w *Writer) SendHeartbeat(ctx context.Context, final bool) error {
	if !w.isReliable() {
		return nil
	}
	firstSN := w.Cache.SeqNumMin()
	lastSN := w.Cache.SeqNumMax()
	if lastSN == guid.SequenceNumberUnknown {
		firstSN, lastSN = 1, 0 // empty retained set: first_sn > last_sn per RTPS convention
	}
	w.heartbeatCount++
	hb := wire.Heartbeat{WriterId: w.Guid.Entity, FirstSN: firstSN, LastSN: lastSN, Count: w.heartbeatCount}
	flags := byte(0)
	if final {
		flags |= wire.HeartbeatFlagFinal
	}
	for _, rp := range w.proxies {
		hb.ReaderId = rp.RemoteReaderGuid.Entity
		body := wire.EncodeHeartbeat(hb, true)
		msg := w.buildMessage(time.Time{}, wire.KindHeartbeat, flags, body)
		if err := w.sendTo(ctx, rp, msg); err != nil {
			return err
		}
		rp.LastHeartbeatCountSent = w.heartbeatCount
	}
	return nil
}

// OnAckNack applies spec §4.3's ACKNACK handling: advance highest_acked_sn,
// and union newly-requested sequence numbers in if the count strictly
// advanced (duplicate/stale ACKNACKs are otherwise ignored).
func (w *Writer) OnAckNack(srcPrefix guid.Prefix, an wire.AckNack) {
	reader := guid.Guid{Prefix: srcPrefix, Entity: an.ReaderId}
	rp, ok := w.proxies[reader]
	if !ok {
		return
	}
	if an.Count <= rp.LastNackReceivedCount {
		return
	}
	rp.LastNackReceivedCount = an.Count
	rp.HighestAckedSN = an.Base - 1
	rp.RequestChanges(an.Missing)
	rp.TimeNackReceived = time.Now()
}

// OnNackFrag handles a fragment-granularity repair request. This
// implementation doesn't track which individual fragments a reader already
// holds, so it requests a full resend of the change (which re-fragments);
// correct but less efficient than fragment-level repair.
func (w *Writer) OnNackFrag(srcPrefix guid.Prefix, nf wire.NackFrag) {
	reader := guid.Guid{Prefix: srcPrefix, Entity: nf.ReaderId}
	rp, ok := w.proxies[reader]
	if !ok {
		return
	}
	rp.RequestChanges([]guid.SequenceNumber{nf.WriterSN})
}

// RepairPending emits DATA/GAP for every sequence number requested since the
// last call, smallest first, implementing the MustRepair → Repairing leg of
// spec §4.3's state diagram after nack_response_delay has elapsed (the delay
// itself is enforced by the caller via the timer service).
func (w *Writer) RepairPending(ctx context.Context) error {
	for _, rp := range w.proxies {
		for _, sn := range rp.PopRequested() {
			if err := w.sendChangeOrGap(ctx, rp, sn); err != nil {
				return err
			}
		}
	}
	return nil
}

// AreAllChangesAcknowledged reports whether every retained change has been
// acknowledged by every matched reader proxy (spec §6's
// are_all_changes_acknowledged).
func (w *Writer) AreAllChangesAcknowledged() bool {
	maxSN := w.Cache.SeqNumMax()
	if maxSN == guid.SequenceNumberUnknown {
		return true
	}
	for _, rp := range w.proxies {
		if rp.HighestAckedSN < maxSN {
			return false
		}
	}
	return true
}

func (w *Writer) buildMessage(ts time.Time, kind wire.SubmessageKind, flags byte, body []byte) []byte {
	header := wire.MessageHeader{Version: wire.CurrentProtocolVersion, Vendor: wire.ThisVendorId, GuidPrefix: w.ParticipantPrefix}
	b := wire.NewBuilder(header, true)
	if !ts.IsZero() {
		secs := ts.Unix()
		frac := uint32((ts.UnixNano() % 1e9) * (1 << 32) / 1e9)
		tsBody := wire.EncodeInfoTimestamp(wire.InfoTimestamp{Seconds: int32(secs), Fraction: frac}, true)
		b.Add(wire.KindInfoTS, 0, tsBody)
	}
	b.Add(kind, flags, body)
	return b.Bytes()
}

func (w *Writer) sendTo(ctx context.Context, rp *proxy.ReaderProxy, msg []byte) error {
	locator := bestLocator(rp.UnicastLocators, rp.MulticastLocators)
	if locator.Kind == guid.LocatorKindInvalid {
		return nil
	}
	return w.Transport.Send(ctx, locator, msg)
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
