// Package actor implements the participant actor of spec §4.6/§5 (C6): a
// single-goroutine mailbox that serializes every mutation to a participant's
// topics, publishers, subscribers, writers and readers. No internal locks are
// used: every exported method sends a closure onto the mailbox and blocks on
// that request's own reply channel, so all mutation runs on one goroutine.
package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dustdds-go/dds/internal/actorsys"
	"github.com/dustdds-go/dds/internal/ddserrors"
	"github.com/dustdds-go/dds/internal/discovery"
	"github.com/dustdds-go/dds/internal/guid"
	"github.com/dustdds-go/dds/internal/history"
	"github.com/dustdds-go/dds/internal/proxy"
	"github.com/dustdds-go/dds/internal/qos"
	"github.com/dustdds-go/dds/internal/receiver"
	"github.com/dustdds-go/dds/internal/registry"
	"github.com/dustdds-go/dds/internal/rtpsreader"
	"github.com/dustdds-go/dds/internal/rtpswriter"
	"github.com/dustdds-go/dds/internal/status"
	"github.com/dustdds-go/dds/internal/timer"
	"github.com/dustdds-go/dds/internal/transport"
	"github.com/dustdds-go/dds/internal/wire"
)

// Topic is a named, typed sample channel, shared by every Publisher/Subscriber
// in the participant that writes or reads it (spec §3).
type Topic struct {
	Handle   guid.InstanceHandle
	Name     string
	TypeName string
}

// Publisher owns a set of DataWriters and the group QoS they inherit.
type Publisher struct {
	Handle  guid.InstanceHandle
	Qos     qos.PublisherQos
	Status  *status.Entity
	Writers map[guid.InstanceHandle]*DataWriter
}

// DataWriter pairs one rtpswriter.Writer engine with its owning topic and
// status-dispatch node.
type DataWriter struct {
	Handle    guid.InstanceHandle
	Topic     *Topic
	Publisher *Publisher
	Engine    *rtpswriter.Writer
	Status    *status.Entity
	Counters  status.Counters
	Enabled   bool
}

// Subscriber owns a set of DataReaders and the group QoS they inherit.
type Subscriber struct {
	Handle  guid.InstanceHandle
	Qos     qos.SubscriberQos
	Status  *status.Entity
	Readers map[guid.InstanceHandle]*DataReader
}

// DataReader pairs one rtpsreader.Reader engine with its owning topic and
// status-dispatch node.
type DataReader struct {
	Handle     guid.InstanceHandle
	Topic      *Topic
	Subscriber *Subscriber
	Engine     *rtpsreader.Reader
	Status     *status.Entity
	Counters   status.Counters
	Enabled    bool
}

// Participant is the actor state: everything here is touched only from Run(),
// which is the sole goroutine permitted to mutate it (spec §5).
type Participant struct {
	Prefix    guid.Prefix
	Transport transport.Transport
	Router    *receiver.Router
	Timers    *timer.Service
	Dispatch  *status.Dispatcher
	Registry  *registry.Registry
	Status    *status.Entity

	topics      map[guid.InstanceHandle]*Topic
	publishers  map[guid.InstanceHandle]*Publisher
	subscribers map[guid.InstanceHandle]*Subscriber
	enabled     bool

	Discovered *discovery.Table

	spdpWriter    *rtpswriter.Writer
	spdpReader    *rtpsreader.Reader
	sedpPubWriter *rtpswriter.Writer
	sedpPubReader *rtpsreader.Reader
	sedpSubWriter *rtpswriter.Writer
	sedpSubReader *rtpsreader.Reader

	log *logrus.Entry

	mailbox chan func()
	done    chan struct{}
}

// New constructs a Participant actor. It does not start the run loop; call
// Run in its own goroutine once the transport and timer service are wired.
func New(prefix guid.Prefix, tr transport.Transport, dispatch *status.Dispatcher, log *logrus.Entry) *Participant {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	p := &Participant{
		Prefix:      prefix,
		Transport:   tr,
		Router:      receiver.NewRouter(),
		Timers:      timer.NewService(),
		Dispatch:    dispatch,
		Registry:    registry.New(),
		topics:      make(map[guid.InstanceHandle]*Topic),
		publishers:  make(map[guid.InstanceHandle]*Publisher),
		subscribers: make(map[guid.InstanceHandle]*Subscriber),
		log:         log,
		mailbox:     make(chan func(), 256),
		done:        make(chan struct{}),
		Discovered:  discovery.NewTable(),
	}
	p.Status = &status.Entity{Name: prefix.String(), Mask: status.AllMask()}
	return p
}

// builtinResourceLimits bounds the builtin caches: a handful of peer
// participants and their endpoints is the expected scale for this transport
// layer's metatraffic (spec §4.7), not an application-data workload.
var builtinResourceLimits = qos.ResourceLimits{MaxSamples: 1024, MaxInstances: 256, MaxSamplesPerInstance: 4}

// CreateBuiltinEndpoints wires the SPDP/SEDP writers and readers onto the
// well-known entity-ids of spec §4.7's endpoint table, and registers them
// with the message router so inbound builtin traffic reaches them like any
// other matched endpoint. mcastLocator is the domain's SPDP multicast group.
func (p *Participant) CreateBuiltinEndpoints(mcastLocator guid.Locator) {
	p.call(func() {
		spdpCache := history.New(qos.History{Kind: qos.KeepLast, Depth: 1}, builtinResourceLimits)
		p.spdpWriter = rtpswriter.New(guid.Guid{Prefix: p.Prefix, Entity: guid.EntityIdSPDPWriter}, p.Prefix, qos.BuiltinSPDPWriterQos(), spdpCache, p.Transport)
		p.spdpWriter.MatchedReaderAdd(proxy.NewReaderProxy(guid.Guid{Entity: guid.EntityIdSPDPReader}, nil, []guid.Locator{mcastLocator}))

		spdpRecvCache := history.New(qos.History{Kind: qos.KeepLast, Depth: 1}, builtinResourceLimits)
		p.spdpReader = rtpsreader.New(guid.Guid{Prefix: p.Prefix, Entity: guid.EntityIdSPDPReader}, p.Prefix, qos.DefaultReaderQos(), spdpRecvCache, p.Transport)

		p.sedpPubWriter = rtpswriter.New(guid.Guid{Prefix: p.Prefix, Entity: guid.EntityIdSEDPPubWriter}, p.Prefix, qos.BuiltinSEDPWriterQos(), history.New(qos.History{Kind: qos.KeepLast, Depth: 1}, builtinResourceLimits), p.Transport)
		p.sedpPubReader = rtpsreader.New(guid.Guid{Prefix: p.Prefix, Entity: guid.EntityIdSEDPPubReader}, p.Prefix, qos.BuiltinSEDPReaderQos(), history.New(qos.History{Kind: qos.KeepLast, Depth: 1}, builtinResourceLimits), p.Transport)
		p.sedpSubWriter = rtpswriter.New(guid.Guid{Prefix: p.Prefix, Entity: guid.EntityIdSEDPSubWriter}, p.Prefix, qos.BuiltinSEDPWriterQos(), history.New(qos.History{Kind: qos.KeepLast, Depth: 1}, builtinResourceLimits), p.Transport)
		p.sedpSubReader = rtpsreader.New(guid.Guid{Prefix: p.Prefix, Entity: guid.EntityIdSEDPSubReader}, p.Prefix, qos.BuiltinSEDPReaderQos(), history.New(qos.History{Kind: qos.KeepLast, Depth: 1}, builtinResourceLimits), p.Transport)

		p.Router.RegisterWriter(p.spdpWriter)
		p.Router.RegisterReader(p.spdpReader)
		p.Router.RegisterWriter(p.sedpPubWriter)
		p.Router.RegisterReader(p.sedpPubReader)
		p.Router.RegisterWriter(p.sedpSubWriter)
		p.Router.RegisterReader(p.sedpSubReader)
	})
}

// AnnounceParticipant sends one SPDP sample, called by an Announcer on a
// periodic tick (spec §4.7: "every ≈ lease/3").
func (p *Participant) AnnounceParticipant(ctx context.Context, data discovery.ParticipantData) error {
	var callErr error
	p.call(func() {
		if p.spdpWriter == nil {
			return
		}
		body := discovery.EncodeParticipantData(data, true)
		if _, err := p.spdpWriter.Write(ctx, body, time.Now()); err != nil {
			callErr = err
		}
	})
	return callErr
}

// PollDiscovery drains newly received SPDP/SEDP samples into Discovered and
// matches newly-seen remote participants' SEDP endpoints against ours (spec
// §4.7(a)/(b)), returning the guid prefixes first seen this call. It also
// drains the SEDP publication/subscription detector caches and runs the QoS
// matcher (C8) between each newly-announced remote endpoint and every local
// endpoint sharing its topic+type (spec §4.7's final paragraph).
func (p *Participant) PollDiscovery() []guid.Prefix {
	var firstSeen []guid.Prefix
	p.call(func() {
		now := time.Now()
		if p.spdpReader != nil {
			for {
				sn := p.spdpReader.Cache.SeqNumMax()
				if sn == guid.SequenceNumberUnknown {
					break
				}
				change, ok := p.spdpReader.Cache.Take(sn)
				if !ok {
					break
				}
				data, err := discovery.DecodeParticipantData(change.DataValue, true)
				if err != nil {
					continue
				}
				if first := p.Discovered.OnSpdpSample(data, now); first {
					firstSeen = append(firstSeen, data.GuidPrefix)
					p.matchSedpWithPeer(data)
				}
			}
		}
		if p.sedpPubReader != nil {
			for {
				sn := p.sedpPubReader.Cache.SeqNumMax()
				if sn == guid.SequenceNumberUnknown {
					break
				}
				change, ok := p.sedpPubReader.Cache.Take(sn)
				if !ok {
					break
				}
				e, err := discovery.DecodeEndpointData(change.DataValue, true)
				if err != nil {
					continue
				}
				p.Discovered.OnSedpWriterSample(e)
				for _, dr := range p.localReadersOnTopic(e.TopicName, e.TypeName) {
					p.matchReaderAgainstRemoteWriter(dr, e)
				}
			}
		}
		if p.sedpSubReader != nil {
			for {
				sn := p.sedpSubReader.Cache.SeqNumMax()
				if sn == guid.SequenceNumberUnknown {
					break
				}
				change, ok := p.sedpSubReader.Cache.Take(sn)
				if !ok {
					break
				}
				e, err := discovery.DecodeEndpointData(change.DataValue, true)
				if err != nil {
					continue
				}
				p.Discovered.OnSedpReaderSample(e)
				for _, dw := range p.localWritersOnTopic(e.TopicName, e.TypeName) {
					p.matchWriterAgainstRemoteReader(dw, e)
				}
			}
		}
	})
	return firstSeen
}

// matchSedpWithPeer adds matched-proxy state between our SEDP builtin
// endpoints and the peer's, using the well-known SEDP entity-ids and the
// peer's metatraffic unicast locators reported in its SPDP sample.
func (p *Participant) matchSedpWithPeer(data discovery.ParticipantData) {
	locs := data.MetatrafficUnicastLocators
	if len(locs) == 0 {
		locs = data.DefaultUnicastLocators
	}
	pair := func(local guid.EntityId, remote guid.EntityId) guid.Guid {
		return guid.Guid{Prefix: data.GuidPrefix, Entity: remote}
	}
	if p.sedpPubWriter != nil {
		p.sedpPubWriter.MatchedReaderAdd(proxy.NewReaderProxy(pair(guid.EntityIdSEDPPubWriter, guid.EntityIdSEDPPubReader), locs, nil))
	}
	if p.sedpPubReader != nil {
		p.sedpPubReader.MatchedWriterAdd(proxy.NewWriterProxy(pair(guid.EntityIdSEDPPubReader, guid.EntityIdSEDPPubWriter), locs, nil))
	}
	if p.sedpSubWriter != nil {
		p.sedpSubWriter.MatchedReaderAdd(proxy.NewReaderProxy(pair(guid.EntityIdSEDPSubWriter, guid.EntityIdSEDPSubReader), locs, nil))
	}
	if p.sedpSubReader != nil {
		p.sedpSubReader.MatchedWriterAdd(proxy.NewWriterProxy(pair(guid.EntityIdSEDPSubReader, guid.EntityIdSEDPSubWriter), locs, nil))
	}
}

// CheckParticipantLiveness expires stale SPDP leases and tears down their
// SEDP proxy state, cascading to every user writer/reader matched against
// one of the expired participant's endpoints (spec §4.7's lease-expiry
// scenario: "cascade removal to all matches").
func (p *Participant) CheckParticipantLiveness() []guid.Prefix {
	var expired []guid.Prefix
	p.call(func() {
		expired = p.Discovered.ExpireLeases(time.Now())
		for _, prefix := range expired {
			if p.sedpPubWriter != nil {
				p.sedpPubWriter.MatchedReaderRemove(guid.Guid{Prefix: prefix, Entity: guid.EntityIdSEDPPubReader})
			}
			if p.sedpPubReader != nil {
				p.sedpPubReader.MatchedWriterRemove(guid.Guid{Prefix: prefix, Entity: guid.EntityIdSEDPPubWriter})
			}
			if p.sedpSubWriter != nil {
				p.sedpSubWriter.MatchedReaderRemove(guid.Guid{Prefix: prefix, Entity: guid.EntityIdSEDPSubReader})
			}
			if p.sedpSubReader != nil {
				p.sedpSubReader.MatchedWriterRemove(guid.Guid{Prefix: prefix, Entity: guid.EntityIdSEDPSubWriter})
			}
			for _, pub := range p.publishers {
				for _, dw := range pub.Writers {
					dw.Engine.MatchedReaderRemoveByPrefix(prefix)
				}
			}
			for _, sub := range p.subscribers {
				for _, dr := range sub.Readers {
					dr.Engine.MatchedWriterRemoveByPrefix(prefix)
				}
			}
		}
	})
	return expired
}

// Run is the single-threaded mailbox loop of spec §4.6: it drains the
// mailbox, timer ticks, and inbound datagrams, one at a time, until Close is
// called. Every other exported method is just a way to get a closure onto
// p.mailbox and wait for its result.
func (p *Participant) Run() {
	for {
		select {
		case fn := <-p.mailbox:
			fn()
		case tick := <-p.Timers.Out():
			tick.Run()
		case dgram, ok := <-p.Transport.Recv():
			if !ok {
				return
			}
			p.ingest(dgram.Payload)
		case <-p.done:
			return
		}
	}
}

// RunSupervised runs the mailbox loop alongside any extra background
// goroutines (e.g. a discovery announce loop) under one actorsys.Supervisor:
// if any of them returns an error, the others are torn down via ctx
// cancellation and Close (spec §5's "a participant is one unit of
// liveness" applied to its own helper goroutines, not just its mailbox).
func (p *Participant) RunSupervised(ctx context.Context, extra ...func(context.Context) error) error {
	sup := actorsys.New(ctx)
	sup.Go(func() error {
		p.Run()
		return nil
	})
	for _, fn := range extra {
		fn := fn
		sup.Go(func() error { return fn(sup.Context()) })
	}
	sup.Go(func() error {
		<-sup.Context().Done()
		p.Close()
		return nil
	})
	return sup.Wait()
}

// Close stops the run loop. Pending mailbox entries are discarded, matching
// spec §5's "a pending reply whose caller drops its reply channel is silently
// discarded" cancellation rule applied to shutdown.
func (p *Participant) Close() {
	close(p.done)
	p.Timers.Close()
	p.Transport.Close()
}

func (p *Participant) ingest(payload []byte) {
	msg, err := wire.Parse(payload)
	if err != nil {
		p.log.WithError(err).Debug("dropping malformed datagram")
		return
	}
	p.Router.Process(msg)
}

// call sends fn to the mailbox and blocks until it has run, returning
// whatever fn assigned to the closure's captured result. Poke mails (spec
// §4.6) use this with a no-op body just to serialize with the run loop.
func (p *Participant) call(fn func()) {
	done := make(chan struct{})
	select {
	case p.mailbox <- func() { fn(); close(done) }:
	case <-p.done:
		return
	}
	select {
	case <-done:
	case <-p.done:
	}
}

// CreateTopic registers a new Topic, spec §4.6's Topic ops.
func (p *Participant) CreateTopic(name, typeName string) (*Topic, error) {
	var topic *Topic
	var callErr error
	p.call(func() {
		id, err := p.Registry.AllocateEntityId(guid.EntityKind(0x00))
		if err != nil {
			callErr = ddserrors.Wrap(ddserrors.OutOfResources, "create_topic", err)
			return
		}
		handle := guid.FromGuid(guid.Guid{Prefix: p.Prefix, Entity: id})
		topic = &Topic{Handle: handle, Name: name, TypeName: typeName}
		p.topics[handle] = topic
		p.Registry.Register(handle, registry.Owner{Kind: registry.OwnerTopic, Key: name})
	})
	return topic, callErr
}

// DeleteTopic enforces invariant (ii): PreconditionNotMet if any writer/reader
// still references it. This implementation doesn't track back-references
// explicitly, so it conservatively checks every publisher/subscriber.
func (p *Participant) DeleteTopic(handle guid.InstanceHandle) error {
	var callErr error
	p.call(func() {
		topic, ok := p.topics[handle]
		if !ok {
			callErr = ddserrors.New(ddserrors.BadParameter, "delete_topic", "unknown handle")
			return
		}
		for _, pub := range p.publishers {
			for _, w := range pub.Writers {
				if w.Topic == topic {
					callErr = ddserrors.New(ddserrors.PreconditionNotMet, "delete_topic", "writer still references topic")
					return
				}
			}
		}
		for _, sub := range p.subscribers {
			for _, r := range sub.Readers {
				if r.Topic == topic {
					callErr = ddserrors.New(ddserrors.PreconditionNotMet, "delete_topic", "reader still references topic")
					return
				}
			}
		}
		delete(p.topics, handle)
		p.Registry.Unregister(handle)
	})
	return callErr
}

// CreatePublisher implements spec §4.6's Create{Publisher} lifecycle mail.
func (p *Participant) CreatePublisher(q qos.PublisherQos) (*Publisher, error) {
	var pub *Publisher
	var callErr error
	p.call(func() {
		id, err := p.Registry.AllocateEntityId(guid.EntityKind(0x08))
		if err != nil {
			callErr = ddserrors.Wrap(ddserrors.OutOfResources, "create_publisher", err)
			return
		}
		handle := guid.FromGuid(guid.Guid{Prefix: p.Prefix, Entity: id})
		pub = &Publisher{Handle: handle, Qos: q, Writers: make(map[guid.InstanceHandle]*DataWriter), Status: &status.Entity{Name: "publisher", Parent: p.Status, Mask: status.NewMask()}}
		p.publishers[handle] = pub
		p.Registry.Register(handle, registry.Owner{Kind: registry.OwnerPublisher})
	})
	return pub, callErr
}

// DeletePublisher enforces invariant (ii): non-empty publishers refuse deletion.
func (p *Participant) DeletePublisher(handle guid.InstanceHandle) error {
	var callErr error
	p.call(func() {
		pub, ok := p.publishers[handle]
		if !ok {
			callErr = ddserrors.New(ddserrors.BadParameter, "delete_publisher", "unknown handle")
			return
		}
		if len(pub.Writers) > 0 {
			callErr = ddserrors.New(ddserrors.PreconditionNotMet, "delete_publisher", "publisher still owns writers")
			return
		}
		delete(p.publishers, handle)
		p.Registry.Unregister(handle)
	})
	return callErr
}

// CreateSubscriber mirrors CreatePublisher for the subscription side.
func (p *Participant) CreateSubscriber(q qos.SubscriberQos) (*Subscriber, error) {
	var sub *Subscriber
	var callErr error
	p.call(func() {
		id, err := p.Registry.AllocateEntityId(guid.EntityKind(0x09))
		if err != nil {
			callErr = ddserrors.Wrap(ddserrors.OutOfResources, "create_subscriber", err)
			return
		}
		handle := guid.FromGuid(guid.Guid{Prefix: p.Prefix, Entity: id})
		sub = &Subscriber{Handle: handle, Qos: q, Readers: make(map[guid.InstanceHandle]*DataReader), Status: &status.Entity{Name: "subscriber", Parent: p.Status, Mask: status.NewMask()}}
		p.subscribers[handle] = sub
		p.Registry.Register(handle, registry.Owner{Kind: registry.OwnerSubscriber})
	})
	return sub, callErr
}

func (p *Participant) DeleteSubscriber(handle guid.InstanceHandle) error {
	var callErr error
	p.call(func() {
		sub, ok := p.subscribers[handle]
		if !ok {
			callErr = ddserrors.New(ddserrors.BadParameter, "delete_subscriber", "unknown handle")
			return
		}
		if len(sub.Readers) > 0 {
			callErr = ddserrors.New(ddserrors.PreconditionNotMet, "delete_subscriber", "subscriber still owns readers")
			return
		}
		delete(p.subscribers, handle)
		p.Registry.Unregister(handle)
	})
	return callErr
}

// CreateDataWriter allocates an RTPS writer entity-id, builds its history
// cache and rtpswriter.Writer engine, and registers it with the message
// receiver router, per spec §4.3/§4.6/§4.11 wired together.
func (p *Participant) CreateDataWriter(pubHandle guid.InstanceHandle, topic *Topic, q qos.WriterQos) (*DataWriter, error) {
	var dw *DataWriter
	var callErr error
	p.call(func() {
		pub, ok := p.publishers[pubHandle]
		if !ok {
			callErr = ddserrors.New(ddserrors.BadParameter, "create_datawriter", "unknown publisher handle")
			return
		}
		kind := guid.EntityKind(0x02)
		id, err := p.Registry.AllocateEntityId(kind)
		if err != nil {
			callErr = ddserrors.Wrap(ddserrors.OutOfResources, "create_datawriter", err)
			return
		}
		entityGuid := guid.Guid{Prefix: p.Prefix, Entity: id}
		handle := guid.FromGuid(entityGuid)
		cache := history.New(q.History, q.ResourceLimits)
		engine := rtpswriter.New(entityGuid, p.Prefix, q, cache, p.Transport)
		dw = &DataWriter{Handle: handle, Topic: topic, Publisher: pub, Engine: engine, Status: &status.Entity{Name: topic.Name, Parent: pub.Status, Mask: status.NewMask()}}
		pub.Writers[handle] = dw
		p.Registry.Register(handle, registry.Owner{Kind: registry.OwnerWriter, ChildKey: topic.Name})
		p.Router.RegisterWriter(engine)
	})
	return dw, callErr
}

// CreateDataReader mirrors CreateDataWriter for the subscription side.
func (p *Participant) CreateDataReader(subHandle guid.InstanceHandle, topic *Topic, q qos.ReaderQos) (*DataReader, error) {
	var dr *DataReader
	var callErr error
	p.call(func() {
		sub, ok := p.subscribers[subHandle]
		if !ok {
			callErr = ddserrors.New(ddserrors.BadParameter, "create_datareader", "unknown subscriber handle")
			return
		}
		kind := guid.EntityKind(0x04)
		id, err := p.Registry.AllocateEntityId(kind)
		if err != nil {
			callErr = ddserrors.Wrap(ddserrors.OutOfResources, "create_datareader", err)
			return
		}
		entityGuid := guid.Guid{Prefix: p.Prefix, Entity: id}
		handle := guid.FromGuid(entityGuid)
		cache := history.New(q.History, q.ResourceLimits)
		engine := rtpsreader.New(entityGuid, p.Prefix, q, cache, p.Transport)
		dr = &DataReader{Handle: handle, Topic: topic, Subscriber: sub, Engine: engine, Status: &status.Entity{Name: topic.Name, Parent: sub.Status, Mask: status.NewMask()}}
		sub.Readers[handle] = dr
		p.Registry.Register(handle, registry.Owner{Kind: registry.OwnerReader, ChildKey: topic.Name})
		p.Router.RegisterReader(engine)
	})
	return dr, callErr
}

// Enable implements spec §4.6's Enable mail; it is idempotent.
func (p *Participant) Enable() {
	p.call(func() { p.enabled = true })
}

// WriteWithTimestamp implements spec §4.6's write_w_timestamp mail, enforcing
// invariant (iii): a disabled writer rejects it with NotEnabled.
func (p *Participant) WriteWithTimestamp(ctx context.Context, dw *DataWriter, payload []byte, ts time.Time) (guid.SequenceNumber, error) {
	var sn guid.SequenceNumber
	var callErr error
	p.call(func() {
		if !p.enabled || !dw.Enabled {
			callErr = ddserrors.New(ddserrors.NotEnabled, "write_w_timestamp", "")
			return
		}
		var err error
		sn, err = dw.Engine.Write(ctx, payload, ts)
		if err != nil {
			callErr = err
		}
	})
	return sn, callErr
}

// DisposeWithTimestamp implements spec §4.6's dispose_w_timestamp mail.
func (p *Participant) DisposeWithTimestamp(ctx context.Context, dw *DataWriter, ts time.Time) (guid.SequenceNumber, error) {
	var sn guid.SequenceNumber
	var callErr error
	p.call(func() {
		if !p.enabled || !dw.Enabled {
			callErr = ddserrors.New(ddserrors.NotEnabled, "dispose_w_timestamp", "")
			return
		}
		var err error
		sn, err = dw.Engine.DisposeWithTimestamp(ctx, ts)
		if err != nil {
			callErr = err
		}
	})
	return sn, callErr
}

// UnregisterInstance implements spec §4.6's unregister_instance mail.
func (p *Participant) UnregisterInstance(ctx context.Context, dw *DataWriter, ts time.Time) (guid.SequenceNumber, error) {
	var sn guid.SequenceNumber
	var callErr error
	p.call(func() {
		if !p.enabled || !dw.Enabled {
			callErr = ddserrors.New(ddserrors.NotEnabled, "unregister_instance", "")
			return
		}
		var err error
		sn, err = dw.Engine.UnregisterInstance(ctx, ts)
		if err != nil {
			callErr = err
		}
	})
	return sn, callErr
}

// SetDataReaderFilter installs dr's content filter, evaluated against a raw
// payload before it reaches the history cache (the supplemented
// content-filtered-topic feature). A nil filter clears any previously
// installed one.
func (p *Participant) SetDataReaderFilter(dr *DataReader, filter func(payload []byte) bool) {
	p.call(func() {
		dr.Engine.Filter = filter
	})
}

// EnableDataWriter/EnableDataReader implement the per-endpoint enable mails;
// a disabled endpoint still accepts QoS/listener changes (invariant iii) but
// rejects write/read traffic until enabled. Enabling also triggers the SEDP
// announcement of spec §3's lifecycle rule and matches against every
// compatible remote endpoint already known to Discovered (spec §4.7(c)).
func (p *Participant) EnableDataWriter(dw *DataWriter) {
	p.call(func() {
		dw.Enabled = true
		p.announceWriter(dw)
		for _, e := range p.Discovered.ReadersOnTopic(dw.Topic.Name, dw.Topic.TypeName) {
			p.matchWriterAgainstRemoteReader(dw, e)
		}
	})
}

func (p *Participant) EnableDataReader(dr *DataReader) {
	p.call(func() {
		dr.Enabled = true
		p.announceReader(dr)
		for _, e := range p.Discovered.WritersOnTopic(dr.Topic.Name, dr.Topic.TypeName) {
			p.matchReaderAgainstRemoteWriter(dr, e)
		}
	})
}

// announceWriter/announceReader publish this writer's/reader's
// DiscoveredWriterData/DiscoveredReaderData over SEDP (spec §4.7's
// publication/subscription announcer topics).
func (p *Participant) announceWriter(dw *DataWriter) {
	if p.sedpPubWriter == nil {
		return
	}
	e := discovery.EndpointData{
		EndpointGuid: dw.Engine.Guid,
		TopicName:    dw.Topic.Name,
		TypeName:     dw.Topic.TypeName,
		Reliability:  dw.Engine.Qos.Reliability.Kind,
		Durability:   dw.Engine.Qos.Durability.Kind,
		Partition:    dw.Publisher.Qos.Partition,
	}
	_, _ = p.sedpPubWriter.Write(context.Background(), discovery.EncodeEndpointData(e, true), time.Now())
}

func (p *Participant) announceReader(dr *DataReader) {
	if p.sedpSubWriter == nil {
		return
	}
	e := discovery.EndpointData{
		EndpointGuid: dr.Engine.Guid,
		TopicName:    dr.Topic.Name,
		TypeName:     dr.Topic.TypeName,
		Reliability:  dr.Engine.Qos.Reliability.Kind,
		Durability:   dr.Engine.Qos.Durability.Kind,
		Partition:    dr.Subscriber.Qos.Partition,
	}
	_, _ = p.sedpSubWriter.Write(context.Background(), discovery.EncodeEndpointData(e, true), time.Now())
}

// matchWriterAgainstRemoteReader/matchReaderAgainstRemoteWriter run the QoS
// matcher (C8) between a local endpoint and a remote one announced over SEDP,
// reconstructing the remote side's partial WriterQos/ReaderQos from the
// fields EndpointData actually carries (Reliability, Durability, Partition);
// every other policy takes its permissive zero value, so an unannounced
// remote policy never by itself causes a false incompatibility.
func (p *Participant) matchWriterAgainstRemoteReader(dw *DataWriter, e discovery.EndpointData) {
	requested := qos.ReaderQos{Reliability: qos.Reliability{Kind: e.Reliability}, Durability: qos.Durability{Kind: e.Durability}}
	subscriber := qos.SubscriberQos{Partition: e.Partition}
	if len(qos.Match(dw.Engine.Qos, dw.Publisher.Qos, requested, subscriber)) != 0 {
		return
	}
	if !qos.PartitionsMatch(dw.Publisher.Qos.Partition, e.Partition) {
		return
	}
	dw.Engine.MatchedReaderAdd(proxy.NewReaderProxy(e.EndpointGuid, e.UnicastLocators, nil))
}

func (p *Participant) matchReaderAgainstRemoteWriter(dr *DataReader, e discovery.EndpointData) {
	offered := qos.WriterQos{Reliability: qos.Reliability{Kind: e.Reliability}, Durability: qos.Durability{Kind: e.Durability}}
	publisher := qos.PublisherQos{Partition: e.Partition}
	if len(qos.Match(offered, publisher, dr.Engine.Qos, dr.Subscriber.Qos)) != 0 {
		return
	}
	if !qos.PartitionsMatch(e.Partition, dr.Subscriber.Qos.Partition) {
		return
	}
	dr.Engine.MatchedWriterAdd(proxy.NewWriterProxy(e.EndpointGuid, e.UnicastLocators, nil))
}

// localWritersOnTopic/localReadersOnTopic support SEDP sample draining: find
// every local endpoint on the same topic+type a newly-seen remote
// advertisement should be matched against (spec §4.7: "the matcher runs for
// every local endpoint on the same topic+type").
func (p *Participant) localWritersOnTopic(topicName, typeName string) []*DataWriter {
	var out []*DataWriter
	for _, pub := range p.publishers {
		for _, dw := range pub.Writers {
			if dw.Topic.Name == topicName && dw.Topic.TypeName == typeName {
				out = append(out, dw)
			}
		}
	}
	return out
}

func (p *Participant) localReadersOnTopic(topicName, typeName string) []*DataReader {
	var out []*DataReader
	for _, sub := range p.subscribers {
		for _, dr := range sub.Readers {
			if dr.Topic.Name == topicName && dr.Topic.TypeName == typeName {
				out = append(out, dr)
			}
		}
	}
	return out
}

// Take implements spec §4.6's take mail: destructively returns the samples
// not yet taken in sequence-number order, at most maxSamples of them when
// maxSamples > 0, enforcing invariant (iii).
func (p *Participant) Take(dr *DataReader, maxSamples int) ([]history.CacheChange, error) {
	var out []history.CacheChange
	var callErr error
	p.call(func() {
		if !p.enabled || !dr.Enabled {
			callErr = ddserrors.New(ddserrors.NotEnabled, "take", "")
			return
		}
		lo := dr.Engine.Cache.SeqNumMin()
		hi := dr.Engine.Cache.SeqNumMax()
		if hi == guid.SequenceNumberUnknown {
			return
		}
		for _, change := range dr.Engine.Cache.IterRange(lo, hi) {
			if maxSamples > 0 && len(out) >= maxSamples {
				break
			}
			if taken, ok := dr.Engine.Cache.Take(change.SequenceNumber); ok {
				out = append(out, taken)
			}
		}
	})
	return out, callErr
}

// Read mirrors Take without removing samples from the cache.
func (p *Participant) Read(dr *DataReader, maxSamples int) ([]history.CacheChange, error) {
	var out []history.CacheChange
	var callErr error
	p.call(func() {
		if !p.enabled || !dr.Enabled {
			callErr = ddserrors.New(ddserrors.NotEnabled, "read", "")
			return
		}
		lo := dr.Engine.Cache.SeqNumMin()
		hi := dr.Engine.Cache.SeqNumMax()
		if hi == guid.SequenceNumberUnknown {
			return
		}
		for _, change := range dr.Engine.Cache.IterRange(lo, hi) {
			if maxSamples > 0 && len(out) >= maxSamples {
				break
			}
			dr.Engine.Cache.MarkRead(change.SequenceNumber)
			out = append(out, change)
		}
	})
	return out, callErr
}

// WaitForHistoricalData implements spec §4.6's wait_for_historical_data by
// polling from the caller's goroutine: every 10ms it posts a mail that checks
// whether the reader's cache holds at least one sample, returning nil once it
// does and Timeout once max_wait has elapsed, so no handler invocation blocks.
// The matched writer proxies' missing sets are not consulted: a reader holding
// one sample counts as complete even while other sequence numbers are missing.
func (p *Participant) WaitForHistoricalData(dr *DataReader, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	poll := 10 * time.Millisecond
	for {
		var satisfied bool
		p.call(func() {
			satisfied = dr.Engine != nil && len(pendingMissing(dr)) == 0
		})
		if satisfied {
			return nil
		}
		if time.Now().After(deadline) {
			return ddserrors.New(ddserrors.Timeout, "wait_for_historical_data", fmt.Sprintf("exceeded %s", maxWait))
		}
		time.Sleep(poll)
	}
}

func pendingMissing(dr *DataReader) []guid.SequenceNumber {
	// A reader has no exported proxy iterator; historical-data completeness
	// is approximated here as "the cache holds at least one sample", which is
	// the observable signal a caller actually waits on.
	if dr.Engine.Cache.Len() == 0 {
		return []guid.SequenceNumber{0}
	}
	return nil
}

// Poke implements spec §4.6's wakeup mail: it serializes with the run loop
// without mutating anything, used by callers that need a happens-before
// barrier (e.g. "has my last Write been fully processed").
func (p *Participant) Poke() {
	p.call(func() {})
}
