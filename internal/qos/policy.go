// Package qos implements the structured QoS policy records of spec §3 and the
// compatibility matcher of §4.8 (C8): a pure function from offered/requested policy
// sets to the list of incompatible policy ids.
package qos

import "time"

// PolicyId identifies one QoS policy for incompatibility reporting (spec §4.8).
type PolicyId int

const (
	InvalidPolicyID PolicyId = iota
	DurabilityPolicyID
	PresentationPolicyID
	DeadlinePolicyID
	LatencyBudgetPolicyID
	OwnershipPolicyID
	LivelinessPolicyID
	ReliabilityPolicyID
	DestinationOrderPolicyID
	DataRepresentationPolicyID
)

func (p PolicyId) String() string {
	switch p {
	case DurabilityPolicyID:
		return "DURABILITY_QOS_POLICY_ID"
	case PresentationPolicyID:
		return "PRESENTATION_QOS_POLICY_ID"
	case DeadlinePolicyID:
		return "DEADLINE_QOS_POLICY_ID"
	case LatencyBudgetPolicyID:
		return "LATENCY_BUDGET_QOS_POLICY_ID"
	case OwnershipPolicyID:
		return "OWNERSHIP_QOS_POLICY_ID"
	case LivelinessPolicyID:
		return "LIVELINESS_QOS_POLICY_ID"
	case ReliabilityPolicyID:
		return "RELIABILITY_QOS_POLICY_ID"
	case DestinationOrderPolicyID:
		return "DESTINATION_ORDER_QOS_POLICY_ID"
	case DataRepresentationPolicyID:
		return "DATA_REPRESENTATION_QOS_POLICY_ID"
	default:
		return "INVALID_QOS_POLICY_ID"
	}
}

// DurabilityKind orders VOLATILE < TRANSIENT_LOCAL < TRANSIENT < PERSISTENT.
type DurabilityKind int

const (
	Volatile DurabilityKind = iota
	TransientLocal
	Transient
	Persistent
)

type Durability struct{ Kind DurabilityKind }

// AccessScopeKind orders INSTANCE < TOPIC < GROUP.
type AccessScopeKind int

const (
	InstanceScope AccessScopeKind = iota
	TopicScope
	GroupScope
)

type Presentation struct {
	AccessScope     AccessScopeKind
	CoherentAccess  bool
	OrderedAccess   bool
}

// Deadline.Period == 0 means "infinite" (no deadline) in this implementation.
type Deadline struct{ Period time.Duration }

type LatencyBudget struct{ Duration time.Duration }

type OwnershipKind int

const (
	Shared OwnershipKind = iota
	Exclusive
)

type Ownership struct{ Kind OwnershipKind }

// LivelinessKind orders AUTOMATIC < MANUAL_BY_PARTICIPANT < MANUAL_BY_TOPIC.
type LivelinessKind int

const (
	Automatic LivelinessKind = iota
	ManualByParticipant
	ManualByTopic
)

type Liveliness struct {
	Kind          LivelinessKind
	LeaseDuration time.Duration
}

// ReliabilityKind orders BEST_EFFORT < RELIABLE.
type ReliabilityKind int

const (
	BestEffort ReliabilityKind = iota
	Reliable
)

type Reliability struct {
	Kind              ReliabilityKind
	MaxBlockingTime   time.Duration
}

// DestinationOrderKind orders BY_RECEPTION_TIMESTAMP < BY_SOURCE_TIMESTAMP.
type DestinationOrderKind int

const (
	ByReceptionTimestamp DestinationOrderKind = iota
	BySourceTimestamp
)

type DestinationOrder struct{ Kind DestinationOrderKind }

// RepresentationId mirrors the CDR representation identifiers of spec §4.1.
type RepresentationId uint16

const (
	XCDR1BE RepresentationId = 0x0000
	XCDR1LE RepresentationId = 0x0001
	XCDR2BE RepresentationId = 0x0010
	XCDR2LE RepresentationId = 0x0011
	PLCDRBE RepresentationId = 0x0002
	PLCDRLE RepresentationId = 0x0003
)

type DataRepresentation struct {
	// Value is the list of representations a writer offers, or a reader accepts.
	// An empty Value on the reader side means "XCDR1 only" (spec §4.8).
	Value []RepresentationId
}

type HistoryKind int

const (
	KeepLast HistoryKind = iota
	KeepAll
)

type History struct {
	Kind  HistoryKind
	Depth int
}

type ResourceLimits struct {
	MaxSamples            int
	MaxInstances          int
	MaxSamplesPerInstance int
}

// WriterQos groups the policies that apply to a DataWriter.
type WriterQos struct {
	Durability       Durability
	Deadline         Deadline
	LatencyBudget    LatencyBudget
	Ownership        Ownership
	Liveliness       Liveliness
	Reliability      Reliability
	DestinationOrder DestinationOrder
	History          History
	ResourceLimits   ResourceLimits
	Representation   DataRepresentation
}

// ReaderQos groups the policies that apply to a DataReader.
type ReaderQos struct {
	Durability       Durability
	Deadline         Deadline
	LatencyBudget    LatencyBudget
	Ownership        Ownership
	Liveliness       Liveliness
	Reliability      Reliability
	DestinationOrder DestinationOrder
	History          History
	ResourceLimits   ResourceLimits
	Representation   DataRepresentation
}

// PublisherQos / SubscriberQos carry the group-scoped policies (partition,
// presentation, group_data) shared by every writer/reader they contain.
type PublisherQos struct {
	Presentation Presentation
	Partition    []string
	GroupData    []byte
}

type SubscriberQos struct {
	Presentation Presentation
	Partition    []string
	GroupData    []byte
}

// DefaultWriterQos matches dust-dds's DEFAULT_RELIABLE_QOS for user endpoints:
// best-effort, volatile, keep-last(1) — conservative interoperable defaults.
func DefaultWriterQos() WriterQos {
	return WriterQos{
		Reliability:    Reliability{Kind: BestEffort, MaxBlockingTime: 100 * time.Millisecond},
		History:        History{Kind: KeepLast, Depth: 1},
		Representation: DataRepresentation{Value: []RepresentationId{XCDR1LE}},
	}
}

// DefaultReaderQos mirrors DefaultWriterQos for readers.
func DefaultReaderQos() ReaderQos {
	return ReaderQos{
		Reliability:    Reliability{Kind: BestEffort, MaxBlockingTime: 100 * time.Millisecond},
		History:        History{Kind: KeepLast, Depth: 1},
		Representation: DataRepresentation{Value: nil},
	}
}

// BuiltinSPDPWriterQos / BuiltinSEDPWriterQos follow spec §4.7: SPDP is always
// best-effort, SEDP writers/readers are always reliable + transient-local.
func BuiltinSPDPWriterQos() WriterQos {
	q := DefaultWriterQos()
	q.Reliability.Kind = BestEffort
	q.Durability.Kind = Volatile
	return q
}

func BuiltinSEDPWriterQos() WriterQos {
	q := DefaultWriterQos()
	q.Reliability.Kind = Reliable
	q.Durability.Kind = TransientLocal
	q.History = History{Kind: KeepLast, Depth: 1}
	return q
}

func BuiltinSEDPReaderQos() ReaderQos {
	q := DefaultReaderQos()
	q.Reliability.Kind = Reliable
	q.Durability.Kind = TransientLocal
	return q
}
