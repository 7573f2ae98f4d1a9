package rtpsreader

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dustdds-go/dds/internal/guid"
	"github.com/dustdds-go/dds/internal/history"
	"github.com/dustdds-go/dds/internal/proxy"
	"github.com/dustdds-go/dds/internal/qos"
	"github.com/dustdds-go/dds/internal/transport"
	"github.com/dustdds-go/dds/internal/wire"
)

type fakeTransport struct {
	sent []wire.AckNack
}

func (f *fakeTransport) Send(_ context.Context, _ guid.Locator, datagram []byte) error {
	msg, err := wire.Parse(datagram)
	if err != nil {
		return err
	}
	for _, sub := range msg.Submessages {
		if sub.Header.Kind == wire.KindAckNack {
			an, err := wire.DecodeAckNack(sub.Body, sub.Header.Flags, sub.Header.LittleEndian())
			if err == nil {
				f.sent = append(f.sent, an)
			}
		}
	}
	return nil
}
func (f *fakeTransport) Recv() <-chan transport.Datagram     { return nil }
func (f *fakeTransport) DefaultUnicastLocator() guid.Locator { return guid.InvalidLocator }
func (f *fakeTransport) Close() error                        { return nil }

func newTestReader() (*Reader, *fakeTransport, guid.Guid) {
	q := qos.DefaultReaderQos()
	cache := history.New(q.History, qos.ResourceLimits{MaxSamples: 100, MaxInstances: 10, MaxSamplesPerInstance: 100})
	tr := &fakeTransport{}
	id := guid.Guid{Prefix: guid.Prefix{2}, Entity: guid.EntityId{0, 0, 1, 0x04}}
	r := New(id, guid.Prefix{2}, q, cache, tr)
	writerGuid := guid.Guid{Prefix: guid.Prefix{1}, Entity: guid.EntityId{0, 0, 1, 0x02}}
	loc := guid.NewUDPv4Locator(net.ParseIP("127.0.0.1"), 7410)
	r.MatchedWriterAdd(proxy.NewWriterProxy(writerGuid, []guid.Locator{loc}, nil))
	return r, tr, writerGuid
}

func TestOnDataAdvancesHighestReceivedAndInsertsChange(t *testing.T) {
	r, _, writerGuid := newTestReader()
	r.OnData(writerGuid.Prefix, wire.Data{WriterId: writerGuid.Entity, ReaderId: r.Guid.Entity, WriterSN: 1, SerializedPayload: []byte("x")}, time.Now())

	if _, ok := r.Cache.Get(1); !ok {
		t.Fatal("Cache.Get(1) not found after OnData")
	}
	wp := r.proxies[writerGuid]
	if wp.HighestReceivedSN != 1 {
		t.Fatalf("HighestReceivedSN = %d, want 1", wp.HighestReceivedSN)
	}
}

func TestOnDataGapMarksMissing(t *testing.T) {
	r, _, writerGuid := newTestReader()
	r.OnData(writerGuid.Prefix, wire.Data{WriterId: writerGuid.Entity, WriterSN: 3, SerializedPayload: []byte("x")}, time.Now())

	wp := r.proxies[writerGuid]
	if _, missing := wp.MissingChanges[1]; !missing {
		t.Fatal("sequence 1 not marked missing after receiving sn=3 first")
	}
	if _, missing := wp.MissingChanges[2]; !missing {
		t.Fatal("sequence 2 not marked missing after receiving sn=3 first")
	}
}

func TestOnGapClearsMissing(t *testing.T) {
	r, _, writerGuid := newTestReader()
	wp := r.proxies[writerGuid]
	wp.MarkMissing(1, 3)

	r.OnGap(writerGuid.Prefix, wire.Gap{WriterId: writerGuid.Entity, GapStart: 1, GapListBase: 4})
	if len(wp.MissingChanges) != 0 {
		t.Fatalf("MissingChanges = %v after GAP covering 1..3, want empty", wp.MissingChanges)
	}
}

func TestSendAckNackEncodesMissingBitmap(t *testing.T) {
	r, tr, writerGuid := newTestReader()
	r.OnData(writerGuid.Prefix, wire.Data{WriterId: writerGuid.Entity, WriterSN: 3, SerializedPayload: []byte("x")}, time.Now())

	if err := r.SendAckNack(context.Background(), false); err != nil {
		t.Fatalf("SendAckNack() error = %v", err)
	}
	if len(tr.sent) != 1 {
		t.Fatalf("sent %d ACKNACKs, want 1", len(tr.sent))
	}
	if len(tr.sent[0].Missing) != 2 {
		t.Fatalf("Missing = %v, want 2 entries (sn 1,2)", tr.sent[0].Missing)
	}
}

func TestOnDataDecodesStatusInfoIntoChangeKind(t *testing.T) {
	r, _, writerGuid := newTestReader()
	r.OnData(writerGuid.Prefix, wire.Data{WriterId: writerGuid.Entity, WriterSN: 1, SerializedPayload: []byte("x")}, time.Now())

	pl := &wire.ParameterList{}
	pl.Add(wire.PidStatusInfo, wire.EncodeUint32(wire.StatusInfoDisposed, true))
	r.OnData(writerGuid.Prefix, wire.Data{WriterId: writerGuid.Entity, WriterSN: 2, InlineQos: pl}, time.Now())

	ch, ok := r.Cache.Get(2)
	if !ok {
		t.Fatal("Cache.Get(2) not found after OnData with PID_STATUS_INFO")
	}
	if ch.Kind != history.NotAliveDisposed {
		t.Fatalf("stored change Kind = %v, want NotAliveDisposed", ch.Kind)
	}
}

func TestOnDataFilterRejectsBeforeCacheInsertion(t *testing.T) {
	r, _, writerGuid := newTestReader()
	r.Filter = func(payload []byte) bool { return len(payload) > 0 && payload[0] == 'y' }

	r.OnData(writerGuid.Prefix, wire.Data{WriterId: writerGuid.Entity, WriterSN: 1, SerializedPayload: []byte("x")}, time.Now())
	r.OnData(writerGuid.Prefix, wire.Data{WriterId: writerGuid.Entity, WriterSN: 2, SerializedPayload: []byte("y")}, time.Now())

	if _, ok := r.Cache.Get(1); ok {
		t.Fatal("Cache.Get(1) found a filtered-out sample, want absent")
	}
	if _, ok := r.Cache.Get(2); !ok {
		t.Fatal("Cache.Get(2) missing a sample that should have passed the filter")
	}
	wp := r.proxies[writerGuid]
	if wp.HighestReceivedSN != 2 {
		t.Fatalf("HighestReceivedSN = %d after a filtered sample, want 2 (missing-set bookkeeping still advances)", wp.HighestReceivedSN)
	}
}

func TestOnDataFragReassemblesAcrossFragments(t *testing.T) {
	r, _, writerGuid := newTestReader()
	payload := []byte("hello world, this is a fragmented sample")
	fragSize := 10
	total := (len(payload) + fragSize - 1) / fragSize

	for i := 0; i < total; i++ {
		start := i * fragSize
		end := start + fragSize
		if end > len(payload) {
			end = len(payload)
		}
		df := wire.DataFrag{
			WriterId:              writerGuid.Entity,
			WriterSN:              1,
			FragmentStartingNum:   uint32(i + 1),
			FragmentsInSubmessage: 1,
			FragmentSize:          uint16(fragSize),
			SampleSize:            uint32(len(payload)),
			SerializedPayload:     payload[start:end],
		}
		r.OnDataFrag(writerGuid.Prefix, df, time.Now())
		if i < total-1 {
			if _, ok := r.Cache.Get(1); ok {
				t.Fatal("Cache.Get(1) found before every fragment arrived")
			}
		}
	}

	ch, ok := r.Cache.Get(1)
	if !ok {
		t.Fatal("Cache.Get(1) not found after the last fragment completed reassembly")
	}
	if string(ch.DataValue) != string(payload) {
		t.Fatalf("reassembled DataValue = %q, want %q", ch.DataValue, payload)
	}
}

func TestOnHeartbeatFragMarksIncompleteSampleMissing(t *testing.T) {
	r, _, writerGuid := newTestReader()
	r.OnHeartbeatFrag(writerGuid.Prefix, wire.HeartbeatFrag{
		WriterId: writerGuid.Entity, WriterSN: 1, LastFragmentNum: 3, Count: 1,
	})

	wp := r.proxies[writerGuid]
	if _, missing := wp.MissingChanges[1]; !missing {
		t.Fatal("HEARTBEATFRAG for an unreassembled sample did not mark it missing")
	}
}

func TestMatchedWriterRemoveByPrefixDropsOnlyThatPrefix(t *testing.T) {
	r, _, gone := newTestReader()
	stays := guid.Guid{Prefix: guid.Prefix{9}, Entity: gone.Entity}
	r.MatchedWriterAdd(proxy.NewWriterProxy(stays, nil, nil))

	r.MatchedWriterRemoveByPrefix(gone.Prefix)

	if r.MatchesWriter(gone) {
		t.Fatal("MatchedWriterRemoveByPrefix() left a proxy under the expired prefix")
	}
	if !r.MatchesWriter(stays) {
		t.Fatal("MatchedWriterRemoveByPrefix() removed a proxy under a different prefix")
	}
}
