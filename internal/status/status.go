// Package status implements the per-entity status counters and the
// precedence-ordered listener cascade of spec §4.9 (C9).
package status

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dustdds-go/dds/internal/guid"
	"github.com/dustdds-go/dds/internal/qos"
)

// Kind enumerates the status kinds of spec §4.9.
type Kind int

const (
	PublicationMatched Kind = iota
	OfferedIncompatibleQos
	OfferedDeadlineMissed
	LivelinessLost
	DataAvailable
	DataOnReaders
	SampleLost
	SampleRejected
	SubscriptionMatched
	RequestedIncompatibleQos
	RequestedDeadlineMissed
	LivelinessChanged
	InconsistentTopic
)

func (k Kind) String() string {
	names := [...]string{
		"PublicationMatched", "OfferedIncompatibleQos", "OfferedDeadlineMissed",
		"LivelinessLost", "DataAvailable", "DataOnReaders", "SampleLost",
		"SampleRejected", "SubscriptionMatched", "RequestedIncompatibleQos",
		"RequestedDeadlineMissed", "LivelinessChanged", "InconsistentTopic",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// Mask is a set of status Kinds, used to gate both listener invocation and
// status-condition visibility.
type Mask map[Kind]bool

func NewMask(kinds ...Kind) Mask {
	m := make(Mask)
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

func AllMask() Mask {
	return NewMask(
		PublicationMatched, OfferedIncompatibleQos, OfferedDeadlineMissed,
		LivelinessLost, DataAvailable, DataOnReaders, SampleLost, SampleRejected,
		SubscriptionMatched, RequestedIncompatibleQos, RequestedDeadlineMissed,
		LivelinessChanged, InconsistentTopic,
	)
}

// Counters holds the generic total/current counter pairs shared by most status
// kinds (spec §4.9): total_count, total_count_change, current_count,
// current_count_change, last_*_handle, last_policy_id.
type Counters struct {
	TotalCount         int32
	TotalCountChange   int32
	CurrentCount       int32
	CurrentCountChange int32
	LastHandle         guid.InstanceHandle
	LastPolicyId       qos.PolicyId
}

// ReadAndReset returns the current counters and zeroes the *_change deltas,
// matching spec §4.9's read_and_reset getter.
func (c *Counters) ReadAndReset() Counters {
	snapshot := *c
	c.TotalCountChange = 0
	c.CurrentCountChange = 0
	return snapshot
}

// Listener is the capability set of spec §4.9/§9: one callback per event kind. A
// nil field means the entity doesn't implement that callback (effect-only, see
// spec §7: "listener callbacks never propagate errors back into the engine").
type Listener struct {
	OnPublicationMatched        func(Counters)
	OnOfferedIncompatibleQos    func(Counters)
	OnOfferedDeadlineMissed     func(Counters)
	OnLivelinessLost            func(Counters)
	OnDataAvailable             func()
	OnDataOnReaders             func()
	OnSampleLost                func(Counters)
	OnSampleRejected            func(Counters)
	OnSubscriptionMatched       func(Counters)
	OnRequestedIncompatibleQos  func(Counters)
	OnRequestedDeadlineMissed   func(Counters)
	OnLivelinessChanged         func(Counters)
	OnInconsistentTopic         func(Counters)
}

// Entity is one node in the cascade: its own listener+mask, and a pointer to its
// parent (Publisher/Subscriber -> Participant), per spec §4.9.
type Entity struct {
	Listener *Listener
	Mask     Mask
	Parent   *Entity
	Name     string // for metrics labeling and logging only
}

// Dispatcher fires events on the most specific entity whose mask contains the
// status, bubbling to the parent otherwise, and increments prometheus counters
// for every fired event regardless of whether a listener was present.
type Dispatcher struct {
	metric *prometheus.CounterVec
}

// NewDispatcher registers (or reuses, if already registered) the
// dds_status_events_total counter vector against reg.
func NewDispatcher(reg prometheus.Registerer) *Dispatcher {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dds_status_events_total",
		Help: "Total number of DDS status events dispatched, by kind and entity.",
	}, []string{"kind", "entity"})
	if reg != nil {
		if err := reg.Register(c); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				c = are.ExistingCollector.(*prometheus.CounterVec)
			}
		}
	}
	return &Dispatcher{metric: c}
}

// Fire implements the cascade of spec §4.9. invoke is called with the entity whose
// listener ultimately handles the event (possibly a parent), or never if no
// entity in the chain has a mask-matching listener — the status-condition change
// itself is never lost (callers update Counters regardless of dispatch).
func (d *Dispatcher) Fire(kind Kind, start *Entity, invoke func(*Listener)) {
	entity := start
	for entity != nil {
		if d.metric != nil {
			d.metric.WithLabelValues(kind.String(), entity.Name).Inc()
		}
		if entity.Mask[kind] && entity.Listener != nil {
			invoke(entity.Listener)
			return
		}
		entity = entity.Parent
	}
}

// SuppressesDataAvailable reports whether a Subscriber's DataOnReaders listener
// should suppress DataAvailable on its readers (spec §4.9).
func SuppressesDataAvailable(subscriber *Entity) bool {
	return subscriber != nil && subscriber.Mask[DataOnReaders] && subscriber.Listener != nil &&
		subscriber.Listener.OnDataOnReaders != nil
}
