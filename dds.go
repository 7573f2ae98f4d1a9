// Package dds is the public API facade of spec §6/§9: DomainParticipantFactory,
// DomainParticipant, Publisher, Subscriber, Topic, DataWriter and DataReader,
// each a thin wrapper sending mail to the participant actor in
// internal/actor. No public type here holds protocol state directly — it all
// lives on the actor goroutine, reached exclusively through its mailbox (spec
// §5's "no internal locks are required because every mutation runs on this
// task").
package dds

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dustdds-go/dds/internal/actor"
	"github.com/dustdds-go/dds/internal/ddserrors"
	"github.com/dustdds-go/dds/internal/discovery"
	"github.com/dustdds-go/dds/internal/guid"
	"github.com/dustdds-go/dds/internal/history"
	"github.com/dustdds-go/dds/internal/qos"
	"github.com/dustdds-go/dds/internal/status"
	"github.com/dustdds-go/dds/internal/transport"
	"github.com/dustdds-go/dds/internal/wire"
)

// Error is the public error type every operation in this package returns on
// failure; it is exactly spec §7's taxonomy.
type Error = ddserrors.Error

// Error kinds, re-exported from internal/ddserrors so callers never import an
// internal package to do an errors.As(... , *dds.Error) Kind check.
const (
	NotEnabled         = ddserrors.NotEnabled
	BadParameter       = ddserrors.BadParameter
	PreconditionNotMet = ddserrors.PreconditionNotMet
	ImmutablePolicy    = ddserrors.ImmutablePolicy
	InconsistentPolicy = ddserrors.InconsistentPolicy
	Timeout            = ddserrors.Timeout
	IllegalOperation   = ddserrors.IllegalOperation
	OutOfResources     = ddserrors.OutOfResources
	Unsupported        = ddserrors.Unsupported
)

// ThisVendorId identifies this implementation's participants on the wire.
var ThisVendorId = [2]byte{0x01, 0xFF}

// DomainParticipantFactory is the process-wide singleton of spec §9 "Global
// state": one map of live participants, keyed by domain id, guarded by a
// mutex since CreateParticipant/DeleteParticipant may be called from any
// goroutine (unlike entity operations, which funnel through the actor).
type DomainParticipantFactory struct {
	mu           sync.Mutex
	participants map[int]*DomainParticipant
}

var (
	factoryOnce sync.Once
	factory     *DomainParticipantFactory
)

// GetInstance returns the process-wide factory, constructing it on first use.
func GetInstance() *DomainParticipantFactory {
	factoryOnce.Do(func() {
		factory = &DomainParticipantFactory{participants: make(map[int]*DomainParticipant)}
	})
	return factory
}

// CreateParticipant binds a UDP transport for domainId and starts its actor.
func (f *DomainParticipantFactory) CreateParticipant(domainId int, opts ...ParticipantOption) (*DomainParticipant, error) {
	cfg := defaultParticipantConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, ddserrors.Wrap(ddserrors.BadParameter, "create_participant", err)
		}
	}

	port := cfg.unicastPort
	if port == 0 {
		port = discovery.MetatrafficUnicastPort(domainId, 0)
	}
	unicastLoc := guid.NewUDPv4Locator(cfg.unicastAddr, port)
	multicast := cfg.multicastLocs
	if len(multicast) == 0 {
		multicast = []guid.Locator{discovery.DefaultSpdpMulticastLocator(domainId)}
	}
	tr, err := transport.NewUDPTransport(unicastLoc, multicast)
	if err != nil {
		return nil, ddserrors.Wrap(ddserrors.OutOfResources, "create_participant", err)
	}

	prefix := guid.NewPrefix(ThisVendorId)
	log := cfg.log.WithFields(logrus.Fields{"domain_id": domainId, "guid_prefix": prefix.String()})
	dispatch := status.NewDispatcher(nil)
	a := actor.New(prefix, tr, dispatch, log)

	ctx, cancel := context.WithCancel(context.Background())
	dp := &DomainParticipant{
		domainId: domainId,
		prefix:   prefix,
		actor:    a,
		factory:  f,
		leaseDur: cfg.leaseDuration,
		participantData: discovery.ParticipantData{
			GuidPrefix:                 prefix,
			ProtocolVersion:            [2]byte{wire.CurrentProtocolVersion.Major, wire.CurrentProtocolVersion.Minor},
			VendorId:                   ThisVendorId,
			DefaultUnicastLocators:     []guid.Locator{unicastLoc},
			MetatrafficUnicastLocators: []guid.Locator{unicastLoc},
			AvailableBuiltinEndpoints:  discovery.ThisParticipantBuiltinEndpoints,
			LeaseDuration:              cfg.leaseDuration,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// a.Run() must already be draining the mailbox before CreateBuiltinEndpoints'
	// call() can return, so the run loop is started here, ahead of it.
	go func() {
		defer close(dp.done)
		announcer := discovery.NewAnnouncer(cfg.leaseDuration/3, dp.announceParticipant)
		_ = a.RunSupervised(ctx, announcer.Run, dp.runDiscoveryPoller)
	}()
	a.CreateBuiltinEndpoints(multicast[0])

	f.mu.Lock()
	f.participants[domainId] = dp
	f.mu.Unlock()
	return dp, nil
}

// DeleteParticipant stops dp's actor and removes it from the factory.
func (f *DomainParticipantFactory) DeleteParticipant(dp *DomainParticipant) error {
	f.mu.Lock()
	delete(f.participants, dp.domainId)
	f.mu.Unlock()
	dp.cancel()
	<-dp.done
	return nil
}

// LookupParticipant returns the participant created for domainId, if any.
func (f *DomainParticipantFactory) LookupParticipant(domainId int) (*DomainParticipant, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dp, ok := f.participants[domainId]
	return dp, ok
}

// DomainParticipant is the user handle onto one actor.Participant.
type DomainParticipant struct {
	domainId        int
	prefix          guid.Prefix
	actor           *actor.Participant
	factory         *DomainParticipantFactory
	leaseDur        time.Duration
	participantData discovery.ParticipantData
	cancel          context.CancelFunc
	done            chan struct{}
}

// announceParticipant sends one SPDP sample carrying dp's own participant
// data; it is the Announcer callback paced at roughly leaseDuration/3.
func (dp *DomainParticipant) announceParticipant() {
	_ = dp.actor.AnnounceParticipant(context.Background(), dp.participantData)
}

// runDiscoveryPoller periodically drains received SPDP samples into the
// actor's discovery table, matching newly-seen peers' SEDP endpoints, and
// expires stale leases. It runs as one of the actor's supervised goroutines
// for the participant's lifetime.
func (dp *DomainParticipant) runDiscoveryPoller(ctx context.Context) error {
	ticker := time.NewTicker(dp.leaseDur / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			dp.actor.PollDiscovery()
			dp.actor.CheckParticipantLiveness()
		}
	}
}

// Enable makes the participant eligible to send/receive (spec §4.6).
func (dp *DomainParticipant) Enable() { dp.actor.Enable() }

// CreateTopic registers a new Topic.
func (dp *DomainParticipant) CreateTopic(name, typeName string) (*Topic, error) {
	t, err := dp.actor.CreateTopic(name, typeName)
	if err != nil {
		return nil, err
	}
	return &Topic{inner: t}, nil
}

// DeleteTopic removes a previously created Topic.
func (dp *DomainParticipant) DeleteTopic(t *Topic) error {
	return dp.actor.DeleteTopic(t.inner.Handle)
}

// CreatePublisher creates a Publisher with the given QoS.
func (dp *DomainParticipant) CreatePublisher(q qos.PublisherQos) (*Publisher, error) {
	pub, err := dp.actor.CreatePublisher(q)
	if err != nil {
		return nil, err
	}
	return &Publisher{inner: pub, dp: dp}, nil
}

// CreateSubscriber creates a Subscriber with the given QoS.
func (dp *DomainParticipant) CreateSubscriber(q qos.SubscriberQos) (*Subscriber, error) {
	sub, err := dp.actor.CreateSubscriber(q)
	if err != nil {
		return nil, err
	}
	return &Subscriber{inner: sub, dp: dp}, nil
}

// TopicDescription is whatever CreateDataReader can build a reader against: a
// plain Topic, or a ContentFilteredTopic narrowing one. Modeled on dust-dds's
// TopicDescription trait that both Topic and ContentFilteredTopic implement.
type TopicDescription interface {
	Name() string
	TypeName() string
	topicInner() *actor.Topic
	contentFilter() (Filter, FieldDecoder)
}

// Topic is a named, typed sample channel.
type Topic struct {
	inner *actor.Topic
}

func (t *Topic) Name() string     { return t.inner.Name }
func (t *Topic) TypeName() string { return t.inner.TypeName }

func (t *Topic) topicInner() *actor.Topic              { return t.inner }
func (t *Topic) contentFilter() (Filter, FieldDecoder) { return nil, nil }

// ContentFilteredTopic is the supplemented content-filtered-topic feature
// (not in the base spec, pulled from dust-dds's create_contentfilteredtopic):
// a DataReader created against it only ever stores samples that pass its
// filter, evaluated on the raw payload before the sample reaches the
// reader's history cache — the filter runs as part of spec §4.3's OnData,
// never after a Read/Take has already removed the sample from the cache.
type ContentFilteredTopic struct {
	name    string
	related *Topic
	filter  Filter
	decode  FieldDecoder
}

func (c *ContentFilteredTopic) Name() string     { return c.name }
func (c *ContentFilteredTopic) TypeName() string { return c.related.TypeName() }

func (c *ContentFilteredTopic) topicInner() *actor.Topic { return c.related.inner }
func (c *ContentFilteredTopic) contentFilter() (Filter, FieldDecoder) {
	return c.filter, c.decode
}

// CreateContentFilteredTopic narrows related to the samples for which decode
// turns the raw payload into a named-field map that f accepts.
func (dp *DomainParticipant) CreateContentFilteredTopic(name string, related *Topic, f Filter, decode FieldDecoder) (*ContentFilteredTopic, error) {
	if f == nil || decode == nil {
		return nil, ddserrors.New(ddserrors.BadParameter, "create_contentfilteredtopic", "filter and decoder are required")
	}
	return &ContentFilteredTopic{name: name, related: related, filter: f, decode: decode}, nil
}

// Publisher owns a set of DataWriters.
type Publisher struct {
	inner *actor.Publisher
	dp    *DomainParticipant
}

// CreateDataWriter creates a DataWriter on topic with the given QoS, and
// enables it immediately (autoenable_created_entities, spec §4.6).
func (p *Publisher) CreateDataWriter(topic *Topic, q qos.WriterQos) (*DataWriter, error) {
	dw, err := p.dp.actor.CreateDataWriter(p.inner.Handle, topic.inner, q)
	if err != nil {
		return nil, err
	}
	p.dp.actor.EnableDataWriter(dw)
	return &DataWriter{inner: dw, dp: p.dp}, nil
}

// Subscriber owns a set of DataReaders.
type Subscriber struct {
	inner *actor.Subscriber
	dp    *DomainParticipant
}

// CreateDataReader creates a DataReader on td (a Topic or a
// ContentFilteredTopic) with the given QoS, and enables it immediately. When
// td carries a content filter, it is installed on the reader's engine so it
// runs before a matching sample is ever stored in the history cache.
func (s *Subscriber) CreateDataReader(td TopicDescription, q qos.ReaderQos) (*DataReader, error) {
	dr, err := s.dp.actor.CreateDataReader(s.inner.Handle, td.topicInner(), q)
	if err != nil {
		return nil, err
	}
	s.dp.actor.EnableDataReader(dr)
	reader := &DataReader{inner: dr, dp: s.dp}
	if f, decode := td.contentFilter(); f != nil {
		s.dp.actor.SetDataReaderFilter(dr, func(payload []byte) bool {
			fields, err := decode(payload)
			if err != nil {
				return false
			}
			return f(fields)
		})
	}
	return reader, nil
}

// DataWriter publishes samples on its topic.
type DataWriter struct {
	inner *actor.DataWriter
	dp    *DomainParticipant
}

// Write publishes payload with the current time as its source timestamp.
func (w *DataWriter) Write(ctx context.Context, payload []byte) (guid.SequenceNumber, error) {
	return w.WriteWithTimestamp(ctx, payload, time.Now())
}

// WriteWithTimestamp implements spec §4.6's write_w_timestamp.
func (w *DataWriter) WriteWithTimestamp(ctx context.Context, payload []byte, ts time.Time) (guid.SequenceNumber, error) {
	return w.dp.actor.WriteWithTimestamp(ctx, w.inner, payload, ts)
}

// Dispose marks the writer's instance NOT_ALIVE_DISPOSED with the current time
// as its source timestamp (spec §4.6's dispose).
func (w *DataWriter) Dispose(ctx context.Context) (guid.SequenceNumber, error) {
	return w.DisposeWithTimestamp(ctx, time.Now())
}

// DisposeWithTimestamp implements spec §4.6's dispose_w_timestamp.
func (w *DataWriter) DisposeWithTimestamp(ctx context.Context, ts time.Time) (guid.SequenceNumber, error) {
	return w.dp.actor.DisposeWithTimestamp(ctx, w.inner, ts)
}

// Unregister releases the writer's ownership of its instance with the current
// time as its source timestamp (spec §4.6's unregister_instance).
func (w *DataWriter) Unregister(ctx context.Context) (guid.SequenceNumber, error) {
	return w.UnregisterInstance(ctx, time.Now())
}

// UnregisterInstance implements spec §4.6's unregister_instance_w_timestamp.
func (w *DataWriter) UnregisterInstance(ctx context.Context, ts time.Time) (guid.SequenceNumber, error) {
	return w.dp.actor.UnregisterInstance(ctx, w.inner, ts)
}

// AreAllChangesAcknowledged reports whether every retained reliable sample has
// been acknowledged by every matched reader.
func (w *DataWriter) AreAllChangesAcknowledged() bool {
	return w.inner.Engine.AreAllChangesAcknowledged()
}

// SampleInfo is spec §6's per-sample metadata returned alongside Read/Take
// results: sample_state/view_state/instance_state/valid_data, plus the
// sequence number and timestamp needed to order or correlate samples.
type SampleInfo struct {
	SampleState    SampleState
	ViewState      ViewState
	InstanceState  InstanceState
	ValidData      bool
	InstanceHandle guid.InstanceHandle
}

// SampleState/ViewState/InstanceState re-export internal/history's reader-side
// bookkeeping enums so callers never import an internal package to inspect a
// SampleInfo.
type (
	SampleState   = history.SampleState
	ViewState     = history.ViewState
	InstanceState = history.InstanceState
)

const (
	NotRead    = history.NotRead
	ReadSample = history.Read

	NewView    = history.NewView
	NotNewView = history.NotNewView

	AliveInstance             = history.AliveInstance
	NotAliveDisposedInstance  = history.NotAliveDisposedInstance
	NotAliveNoWritersInstance = history.NotAliveNoWritersInstance
)

// Sample is one delivered/available data sample plus its RTPS metadata. Data
// is nil for a dispose/unregister change (Info.ValidData is false); callers
// reading a keyed topic's instance lifecycle still see these as samples so
// they can observe the transition, matching spec §8 scenario 6.
type Sample struct {
	Data            []byte
	SequenceNumber  guid.SequenceNumber
	SourceTimestamp time.Time
	WriterGuid      guid.Guid
	Info            SampleInfo
}

// DataReader consumes samples from its topic.
type DataReader struct {
	inner *actor.DataReader
	dp    *DomainParticipant
}

// Read returns up to maxSamples available samples without removing them from
// the cache. maxSamples<=0 means unbounded.
func (r *DataReader) Read(maxSamples int) ([]Sample, error) {
	changes, err := r.dp.actor.Read(r.inner, maxSamples)
	if err != nil {
		return nil, err
	}
	return toSamples(changes), nil
}

// Take returns up to maxSamples available samples, removing them from the
// cache. maxSamples<=0 means unbounded.
func (r *DataReader) Take(maxSamples int) ([]Sample, error) {
	changes, err := r.dp.actor.Take(r.inner, maxSamples)
	if err != nil {
		return nil, err
	}
	return toSamples(changes), nil
}

func toSamples(changes []history.CacheChange) []Sample {
	out := make([]Sample, 0, len(changes))
	for _, c := range changes {
		s := Sample{
			Data:           c.DataValue,
			SequenceNumber: c.SequenceNumber,
			WriterGuid:     c.WriterGuid,
			Info: SampleInfo{
				SampleState:    c.SampleState,
				ViewState:      c.ViewState,
				InstanceState:  c.InstanceState,
				ValidData:      c.Kind == history.Alive,
				InstanceHandle: c.InstanceHandle,
			},
		}
		if c.SourceTimestamp != nil {
			s.SourceTimestamp = *c.SourceTimestamp
		}
		out = append(out, s)
	}
	return out
}

// WaitForHistoricalData blocks until the reader's cache holds at least one
// sample, or returns a Timeout error once maxWait elapses. It does not check
// that every sample a writer published earlier has arrived, and it does not
// look at the reader's durability.
func (r *DataReader) WaitForHistoricalData(maxWait time.Duration) error {
	return r.dp.actor.WaitForHistoricalData(r.inner, maxWait)
}
