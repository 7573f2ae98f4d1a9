package discovery

import (
	"time"

	"github.com/dustdds-go/dds/internal/guid"
)

// DiscoveredParticipant tracks one remote participant learned via SPDP (spec
// §4.7): its advertised data, plus a lease expiry the owning actor refreshes
// on every renewing sample and checks on a periodic timer tick.
type DiscoveredParticipant struct {
	Data       ParticipantData
	Expiry     time.Time
}

// Expired reports whether now is past the lease deadline without renewal.
func (d DiscoveredParticipant) Expired(now time.Time) bool {
	return now.After(d.Expiry)
}

// Table is the participant actor's view of every other participant and
// endpoint discovered so far. It holds no behavior of its own beyond
// bookkeeping; matching decisions are made by the qos package and cascaded by
// the caller (spec §4.7(b)/(c)).
type Table struct {
	Participants map[guid.Prefix]*DiscoveredParticipant
	Writers      map[guid.Guid]EndpointData
	Readers      map[guid.Guid]EndpointData
}

func NewTable() *Table {
	return &Table{
		Participants: make(map[guid.Prefix]*DiscoveredParticipant),
		Writers:      make(map[guid.Guid]EndpointData),
		Readers:      make(map[guid.Guid]EndpointData),
	}
}

// OnSpdpSample registers or refreshes a DiscoveredParticipant, per spec
// §4.7(a)/(c). Returns true the first time this prefix is seen (callers use
// this to decide whether to kick off SEDP matching against its builtin
// endpoints).
func (t *Table) OnSpdpSample(data ParticipantData, now time.Time) (first bool) {
	existing, ok := t.Participants[data.GuidPrefix]
	lease := data.LeaseDuration
	if lease <= 0 {
		lease = 100 * time.Second
	}
	if !ok {
		t.Participants[data.GuidPrefix] = &DiscoveredParticipant{Data: data, Expiry: now.Add(lease)}
		return true
	}
	existing.Data = data
	existing.Expiry = now.Add(lease)
	return false
}

// ExpireLeases removes every participant whose lease has elapsed, along with
// every writer/reader it advertised, returning the removed prefixes so the
// caller can cascade OfferedIncompatibleQos-style match teardown (spec §4.7's
// "Lease expiry" scenario: on_subscription_matched(current_count_change=-N)
// for every match whose remote prefix just expired).
func (t *Table) ExpireLeases(now time.Time) []guid.Prefix {
	var expired []guid.Prefix
	for prefix, dp := range t.Participants {
		if dp.Expired(now) {
			expired = append(expired, prefix)
			delete(t.Participants, prefix)
		}
	}
	for _, prefix := range expired {
		for g := range t.Writers {
			if g.Prefix == prefix {
				delete(t.Writers, g)
			}
		}
		for g := range t.Readers {
			if g.Prefix == prefix {
				delete(t.Readers, g)
			}
		}
	}
	return expired
}

// RemoveParticipant drops a participant and its endpoints immediately, e.g. on
// AnnounceDeletedParticipant (spec §4.6).
func (t *Table) RemoveParticipant(prefix guid.Prefix) {
	delete(t.Participants, prefix)
	for g := range t.Writers {
		if g.Prefix == prefix {
			delete(t.Writers, g)
		}
	}
	for g := range t.Readers {
		if g.Prefix == prefix {
			delete(t.Readers, g)
		}
	}
}

// OnSedpWriterSample records a discovered remote writer, keyed by its guid.
func (t *Table) OnSedpWriterSample(e EndpointData) { t.Writers[e.EndpointGuid] = e }

// OnSedpReaderSample records a discovered remote reader, keyed by its guid.
func (t *Table) OnSedpReaderSample(e EndpointData) { t.Readers[e.EndpointGuid] = e }

// WritersOnTopic / ReadersOnTopic support the matcher's "run for every local
// endpoint on the same topic+type" rule (spec §4.7).
func (t *Table) WritersOnTopic(topic, typeName string) []EndpointData {
	var out []EndpointData
	for _, w := range t.Writers {
		if w.TopicName == topic && w.TypeName == typeName {
			out = append(out, w)
		}
	}
	return out
}

func (t *Table) ReadersOnTopic(topic, typeName string) []EndpointData {
	var out []EndpointData
	for _, r := range t.Readers {
		if r.TopicName == topic && r.TypeName == typeName {
			out = append(out, r)
		}
	}
	return out
}
