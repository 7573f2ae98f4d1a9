package actor

import (
	"context"
	"testing"
	"time"

	"github.com/dustdds-go/dds/internal/discovery"
	"github.com/dustdds-go/dds/internal/guid"
	"github.com/dustdds-go/dds/internal/qos"
	"github.com/dustdds-go/dds/internal/transport"
	"github.com/dustdds-go/dds/internal/wire"
)

type fakeTransport struct {
	sent chan []byte
	recv chan transport.Datagram
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(chan []byte, 16), recv: make(chan transport.Datagram, 16)}
}

func (f *fakeTransport) Send(_ context.Context, _ guid.Locator, datagram []byte) error {
	select {
	case f.sent <- datagram:
	default:
	}
	return nil
}
func (f *fakeTransport) Recv() <-chan transport.Datagram     { return f.recv }
func (f *fakeTransport) DefaultUnicastLocator() guid.Locator { return guid.InvalidLocator }
func (f *fakeTransport) Close() error                        { return nil }

func newTestParticipant() (*Participant, *fakeTransport) {
	tr := newFakeTransport()
	p := New(guid.Prefix{9}, tr, nil, nil)
	go p.Run()
	return p, tr
}

func TestCreateAndDeleteTopic(t *testing.T) {
	p, _ := newTestParticipant()
	defer p.Close()

	topic, err := p.CreateTopic("Square", "ShapeType")
	if err != nil {
		t.Fatalf("CreateTopic() error = %v", err)
	}
	if err := p.DeleteTopic(topic.Handle); err != nil {
		t.Fatalf("DeleteTopic() error = %v", err)
	}
	if err := p.DeleteTopic(topic.Handle); err == nil {
		t.Fatal("DeleteTopic() on a stale handle succeeded, want BadParameter")
	}
}

func TestDeletePublisherRefusesWhileWritersExist(t *testing.T) {
	p, _ := newTestParticipant()
	defer p.Close()

	topic, _ := p.CreateTopic("Square", "ShapeType")
	pub, err := p.CreatePublisher(qos.PublisherQos{})
	if err != nil {
		t.Fatalf("CreatePublisher() error = %v", err)
	}
	dw, err := p.CreateDataWriter(pub.Handle, topic, qos.DefaultWriterQos())
	if err != nil {
		t.Fatalf("CreateDataWriter() error = %v", err)
	}
	if err := p.DeletePublisher(pub.Handle); err == nil {
		t.Fatal("DeletePublisher() with a live writer succeeded, want PreconditionNotMet")
	}
	pub.Writers = map[guid.InstanceHandle]*DataWriter{} // simulate delete_datawriter completing
	if err := p.DeletePublisher(pub.Handle); err != nil {
		t.Fatalf("DeletePublisher() once empty, error = %v", err)
	}
	_ = dw
}

func TestWriteWithTimestampRejectsWhenDisabled(t *testing.T) {
	p, _ := newTestParticipant()
	defer p.Close()

	topic, _ := p.CreateTopic("Square", "ShapeType")
	pub, _ := p.CreatePublisher(qos.PublisherQos{})
	dw, _ := p.CreateDataWriter(pub.Handle, topic, qos.DefaultWriterQos())

	_, err := p.WriteWithTimestamp(context.Background(), dw, []byte("x"), time.Now())
	if err == nil {
		t.Fatal("WriteWithTimestamp() on a disabled participant succeeded, want NotEnabled")
	}

	p.Enable()
	p.EnableDataWriter(dw)
	if _, err := p.WriteWithTimestamp(context.Background(), dw, []byte("x"), time.Now()); err != nil {
		t.Fatalf("WriteWithTimestamp() once enabled, error = %v", err)
	}
}

func TestReadThenTakeDrainsCacheOnce(t *testing.T) {
	p, _ := newTestParticipant()
	defer p.Close()

	topic, _ := p.CreateTopic("Square", "ShapeType")
	sub, _ := p.CreateSubscriber(qos.SubscriberQos{})
	dr, _ := p.CreateDataReader(sub.Handle, topic, qos.DefaultReaderQos())
	p.Enable()
	p.EnableDataReader(dr)

	writerGuid := guid.Guid{Prefix: guid.Prefix{1}, Entity: guid.EntityId{0, 0, 1, 0x02}}
	d := wire.Data{WriterId: writerGuid.Entity, ReaderId: dr.Engine.Guid.Entity, WriterSN: 1, SerializedPayload: []byte("x")}
	p.call(func() {
		dr.Engine.OnData(writerGuid.Prefix, d, time.Now())
	})

	samples, err := p.Read(dr, 0)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("Read() returned %d samples, want 1", len(samples))
	}

	taken, err := p.Take(dr, 0)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if len(taken) != 1 {
		t.Fatalf("Take() returned %d samples, want 1", len(taken))
	}
	if more, _ := p.Take(dr, 0); len(more) != 0 {
		t.Fatalf("second Take() returned %d samples, want 0", len(more))
	}
}

func TestRunSupervisedStopsAllOnExtraError(t *testing.T) {
	tr := newFakeTransport()
	p := New(guid.Prefix{9}, tr, nil, nil)

	errBoom := context.DeadlineExceeded
	done := make(chan error, 1)
	go func() {
		done <- p.RunSupervised(context.Background(), func(ctx context.Context) error {
			return errBoom
		})
	}()

	select {
	case err := <-done:
		if err != errBoom {
			t.Fatalf("RunSupervised() = %v, want %v", err, errBoom)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunSupervised() did not return after an extra goroutine failed")
	}
}

func TestPokeSerializesWithMailbox(t *testing.T) {
	p, _ := newTestParticipant()
	defer p.Close()

	var ran bool
	p.call(func() { ran = true })
	p.Poke()
	if !ran {
		t.Fatal("mailbox closure did not run before Poke returned")
	}
}

func TestAnnounceParticipantSendsOnSpdpWriter(t *testing.T) {
	p, tr := newTestParticipant()
	defer p.Close()

	mcast := guid.NewUDPv4Locator([]byte{239, 255, 0, 1}, 7400)
	p.CreateBuiltinEndpoints(mcast)
	p.Enable()

	data := discovery.ParticipantData{GuidPrefix: p.Prefix, AvailableBuiltinEndpoints: discovery.ThisParticipantBuiltinEndpoints, LeaseDuration: 20 * time.Second}
	if err := p.AnnounceParticipant(context.Background(), data); err != nil {
		t.Fatalf("AnnounceParticipant() error = %v", err)
	}

	select {
	case <-tr.sent:
	case <-time.After(time.Second):
		t.Fatal("AnnounceParticipant() did not send a datagram on the SPDP writer's transport")
	}
}

func TestPollDiscoveryMatchesSedpEndpointsOnFirstSighting(t *testing.T) {
	p, _ := newTestParticipant()
	defer p.Close()

	mcast := guid.NewUDPv4Locator([]byte{239, 255, 0, 1}, 7400)
	p.CreateBuiltinEndpoints(mcast)
	p.Enable()

	peer := guid.Prefix{42}
	peerData := discovery.ParticipantData{
		GuidPrefix:                 peer,
		MetatrafficUnicastLocators: []guid.Locator{guid.NewUDPv4Locator([]byte{127, 0, 0, 1}, 7410)},
		AvailableBuiltinEndpoints:  discovery.ThisParticipantBuiltinEndpoints,
		LeaseDuration:              20 * time.Second,
	}
	body := discovery.EncodeParticipantData(peerData, true)
	p.call(func() {
		p.spdpReader.OnData(peer, wire.Data{
			WriterId:          guid.EntityIdSPDPWriter,
			ReaderId:          guid.EntityIdSPDPReader,
			WriterSN:          1,
			SerializedPayload: body,
		}, time.Now())
	})

	first := p.PollDiscovery()
	if len(first) != 1 || first[0] != peer {
		t.Fatalf("PollDiscovery() = %v, want [%v]", first, peer)
	}
	if again := p.PollDiscovery(); len(again) != 0 {
		t.Fatalf("second PollDiscovery() = %v, want none (sample already drained)", again)
	}

	expired := p.CheckParticipantLiveness()
	if len(expired) != 0 {
		t.Fatalf("CheckParticipantLiveness() expired %v right after sighting, want none", expired)
	}
}

func TestPollDiscoveryMatchesLocalReaderAgainstRemoteSedpWriter(t *testing.T) {
	p, _ := newTestParticipant()
	defer p.Close()

	mcast := guid.NewUDPv4Locator([]byte{239, 255, 0, 1}, 7400)
	p.CreateBuiltinEndpoints(mcast)
	p.Enable()

	topic, _ := p.CreateTopic("Square", "ShapeType")
	sub, _ := p.CreateSubscriber(qos.SubscriberQos{})
	dr, _ := p.CreateDataReader(sub.Handle, topic, qos.DefaultReaderQos())
	p.EnableDataReader(dr)

	remoteWriter := guid.Guid{Prefix: guid.Prefix{7}, Entity: guid.EntityId{0, 0, 1, 0x02}}
	e := discovery.EndpointData{
		EndpointGuid: remoteWriter,
		TopicName:    "Square",
		TypeName:     "ShapeType",
		Reliability:  qos.BestEffort,
		Durability:   qos.Volatile,
	}
	body := discovery.EncodeEndpointData(e, true)
	p.call(func() {
		p.sedpPubReader.OnData(remoteWriter.Prefix, wire.Data{
			WriterId:          guid.EntityIdSEDPPubWriter,
			ReaderId:          guid.EntityIdSEDPPubReader,
			WriterSN:          1,
			SerializedPayload: body,
		}, time.Now())
	})

	p.PollDiscovery()

	if !dr.Engine.MatchesWriter(remoteWriter) {
		t.Fatal("PollDiscovery() did not match the local reader against the compatible remote SEDP writer")
	}
}

func TestEnableDataWriterAnnouncesOverSedp(t *testing.T) {
	p, _ := newTestParticipant()
	defer p.Close()

	mcast := guid.NewUDPv4Locator([]byte{239, 255, 0, 1}, 7400)
	p.CreateBuiltinEndpoints(mcast)
	p.Enable()

	topic, _ := p.CreateTopic("Square", "ShapeType")
	pub, _ := p.CreatePublisher(qos.PublisherQos{})
	dw, _ := p.CreateDataWriter(pub.Handle, topic, qos.DefaultWriterQos())
	p.EnableDataWriter(dw)

	var sedpCacheLen int
	p.call(func() { sedpCacheLen = p.sedpPubWriter.Cache.Len() })
	if sedpCacheLen == 0 {
		t.Fatal("EnableDataWriter() did not publish a DiscoveredWriterData sample over SEDP")
	}
}

func TestDisposeAndUnregisterInstanceRejectWhenDisabled(t *testing.T) {
	p, _ := newTestParticipant()
	defer p.Close()

	topic, _ := p.CreateTopic("Square", "ShapeType")
	pub, _ := p.CreatePublisher(qos.PublisherQos{})
	dw, _ := p.CreateDataWriter(pub.Handle, topic, qos.DefaultWriterQos())

	if _, err := p.DisposeWithTimestamp(context.Background(), dw, time.Now()); err == nil {
		t.Fatal("DisposeWithTimestamp() on a disabled participant succeeded, want NotEnabled")
	}
	if _, err := p.UnregisterInstance(context.Background(), dw, time.Now()); err == nil {
		t.Fatal("UnregisterInstance() on a disabled participant succeeded, want NotEnabled")
	}

	p.Enable()
	p.EnableDataWriter(dw)
	if _, err := p.WriteWithTimestamp(context.Background(), dw, []byte("x"), time.Now()); err != nil {
		t.Fatalf("WriteWithTimestamp() error = %v", err)
	}
	disposeSN, err := p.DisposeWithTimestamp(context.Background(), dw, time.Now())
	if err != nil {
		t.Fatalf("DisposeWithTimestamp() once enabled, error = %v", err)
	}
	unregisterSN, err := p.UnregisterInstance(context.Background(), dw, time.Now())
	if err != nil {
		t.Fatalf("UnregisterInstance() once enabled, error = %v", err)
	}
	if unregisterSN <= disposeSN {
		t.Fatalf("UnregisterInstance() sequence number %d did not advance past DisposeWithTimestamp()'s %d", unregisterSN, disposeSN)
	}
}

func TestSetDataReaderFilterInstallsOnReaderEngine(t *testing.T) {
	p, _ := newTestParticipant()
	defer p.Close()

	topic, _ := p.CreateTopic("Square", "ShapeType")
	sub, _ := p.CreateSubscriber(qos.SubscriberQos{})
	dr, _ := p.CreateDataReader(sub.Handle, topic, qos.DefaultReaderQos())
	p.Enable()
	p.EnableDataReader(dr)

	p.SetDataReaderFilter(dr, func(payload []byte) bool { return len(payload) > 0 && payload[0] == 'y' })

	writerGuid := guid.Guid{Prefix: guid.Prefix{1}, Entity: guid.EntityId{0, 0, 1, 0x02}}
	p.call(func() {
		dr.Engine.OnData(writerGuid.Prefix, wire.Data{WriterId: writerGuid.Entity, ReaderId: dr.Engine.Guid.Entity, WriterSN: 1, SerializedPayload: []byte("x")}, time.Now())
		dr.Engine.OnData(writerGuid.Prefix, wire.Data{WriterId: writerGuid.Entity, ReaderId: dr.Engine.Guid.Entity, WriterSN: 2, SerializedPayload: []byte("y")}, time.Now())
	})

	samples, err := p.Take(dr, 0)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("Take() returned %d samples, want 1 (the 'x' sample should have been filtered out before insertion)", len(samples))
	}
	if string(samples[0].DataValue) != "y" {
		t.Fatalf("Take()[0].DataValue = %q, want %q", samples[0].DataValue, "y")
	}
}
