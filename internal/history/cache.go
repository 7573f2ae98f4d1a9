// Package history implements the per-endpoint HistoryCache of spec §4.2 (C2): an
// ordered store of CacheChange keyed by sequence number, with a secondary instance
// index tracking view/instance state and sample state for readers.
package history

import (
	"sort"
	"time"

	"github.com/dustdds-go/dds/internal/guid"
	"github.com/dustdds-go/dds/internal/qos"
)

// ChangeKind mirrors spec §3's CacheChange.kind.
type ChangeKind int

const (
	Alive ChangeKind = iota
	NotAliveDisposed
	NotAliveUnregistered
)

// SampleState tracks whether a reader-side change has been returned by Read yet.
type SampleState int

const (
	NotRead SampleState = iota
	Read
)

// ViewState tracks whether an instance has been seen before by this reader.
type ViewState int

const (
	NewView ViewState = iota
	NotNewView
)

// InstanceState tracks an instance's liveliness as observed by this reader.
type InstanceState int

const (
	AliveInstance InstanceState = iota
	NotAliveDisposedInstance
	NotAliveNoWritersInstance
)

// CacheChange is the canonical unit of data (spec §3). Kind and payload never
// change once stored for a given (WriterGuid, SequenceNumber) pair.
type CacheChange struct {
	Kind             ChangeKind
	WriterGuid       guid.Guid
	InstanceHandle   guid.InstanceHandle
	SequenceNumber   guid.SequenceNumber
	SourceTimestamp  *time.Time
	ReceptionTimestamp time.Time
	DataValue        []byte

	SampleState SampleState

	// ViewState/InstanceState snapshot the instance's bookkeeping as of this
	// change's insertion (spec §6's SampleInfo); unlike Cache.ViewState/
	// Cache.InstanceState, which report the instance's CURRENT state, these
	// freeze at Add time so a sample taken later still reports what held true
	// when it arrived.
	ViewState     ViewState
	InstanceState InstanceState
}

// RejectReason explains why History.Add refused a change (spec §4.2 step 3).
type RejectReason int

const (
	RejectedMaxSamples RejectReason = iota
	RejectedMaxSamplesPerInstance
	RejectedMaxInstances
)

func (r RejectReason) String() string {
	switch r {
	case RejectedMaxSamples:
		return "max_samples exceeded"
	case RejectedMaxSamplesPerInstance:
		return "max_samples_per_instance exceeded"
	case RejectedMaxInstances:
		return "max_instances exceeded"
	default:
		return "unknown rejection"
	}
}

// AddResult is the outcome of History.Add.
type AddResult int

const (
	Added AddResult = iota
	Duplicate
	Rejected
)

type instanceEntry struct {
	handle        guid.InstanceHandle
	changes       []guid.SequenceNumber // ascending, owned sequence numbers present for this instance
	viewState     ViewState
	instanceState InstanceState
	lastReception time.Time
}

// Cache is the per-endpoint HistoryCache (C2). It is not goroutine-safe; callers
// (the writer/reader engines) are themselves single-owner actors per spec §5.
type Cache struct {
	historyKind qos.HistoryKind
	depth       int
	limits      qos.ResourceLimits

	bySeqNum  map[guid.SequenceNumber]*CacheChange
	order     []guid.SequenceNumber // ascending
	instances map[guid.InstanceHandle]*instanceEntry
}

func New(history qos.History, limits qos.ResourceLimits) *Cache {
	depth := history.Depth
	if history.Kind == qos.KeepLast && depth <= 0 {
		depth = 1
	}
	return &Cache{
		historyKind: history.Kind,
		depth:       depth,
		limits:      limits,
		bySeqNum:    make(map[guid.SequenceNumber]*CacheChange),
		instances:   make(map[guid.InstanceHandle]*instanceEntry),
	}
}

// Add implements the insertion algorithm of spec §4.2.
func (c *Cache) Add(change CacheChange) (AddResult, RejectReason) {
	if _, exists := c.bySeqNum[change.SequenceNumber]; exists {
		return Duplicate, 0
	}

	inst, instExists := c.instances[change.InstanceHandle]
	if !instExists {
		if c.limits.MaxInstances > 0 && len(c.instances) >= c.limits.MaxInstances {
			return Rejected, RejectedMaxInstances
		}
		inst = &instanceEntry{handle: change.InstanceHandle, viewState: NewView, instanceState: AliveInstance}
		c.instances[change.InstanceHandle] = inst
	}

	switch c.historyKind {
	case qos.KeepLast:
		for len(inst.changes) >= c.depth && c.depth > 0 {
			oldest := inst.changes[0]
			inst.changes = inst.changes[1:]
			c.removeSeqNum(oldest)
		}
	case qos.KeepAll:
		if c.limits.MaxSamplesPerInstance > 0 && len(inst.changes) >= c.limits.MaxSamplesPerInstance {
			return Rejected, RejectedMaxSamplesPerInstance
		}
		if c.limits.MaxSamples > 0 && len(c.bySeqNum) >= c.limits.MaxSamples {
			return Rejected, RejectedMaxSamples
		}
	}

	stored := change
	c.bySeqNum[change.SequenceNumber] = &stored
	c.insertOrdered(change.SequenceNumber)
	inst.changes = append(inst.changes, change.SequenceNumber)
	sort.Slice(inst.changes, func(i, j int) bool { return inst.changes[i] < inst.changes[j] })

	if instExists {
		inst.viewState = NotNewView
	}
	switch change.Kind {
	case NotAliveDisposed:
		inst.instanceState = NotAliveDisposedInstance
	case NotAliveUnregistered:
		if inst.instanceState == AliveInstance {
			inst.instanceState = NotAliveNoWritersInstance
		}
	}
	inst.lastReception = change.ReceptionTimestamp

	stored.ViewState = inst.viewState
	stored.InstanceState = inst.instanceState

	return Added, 0
}

func (c *Cache) insertOrdered(sn guid.SequenceNumber) {
	i := sort.Search(len(c.order), func(i int) bool { return c.order[i] >= sn })
	c.order = append(c.order, 0)
	copy(c.order[i+1:], c.order[i:])
	c.order[i] = sn
}

func (c *Cache) removeSeqNum(sn guid.SequenceNumber) {
	delete(c.bySeqNum, sn)
	i := sort.Search(len(c.order), func(i int) bool { return c.order[i] >= sn })
	if i < len(c.order) && c.order[i] == sn {
		c.order = append(c.order[:i], c.order[i+1:]...)
	}
}

// Remove deletes a change by sequence number (e.g. once every reliable reader has
// acknowledged it), also pruning it from its instance's change list.
func (c *Cache) Remove(sn guid.SequenceNumber) {
	change, ok := c.bySeqNum[sn]
	if !ok {
		return
	}
	if inst, ok := c.instances[change.InstanceHandle]; ok {
		for i, s := range inst.changes {
			if s == sn {
				inst.changes = append(inst.changes[:i], inst.changes[i+1:]...)
				break
			}
		}
	}
	c.removeSeqNum(sn)
}

// Get returns the change stored at sn, if any.
func (c *Cache) Get(sn guid.SequenceNumber) (CacheChange, bool) {
	ch, ok := c.bySeqNum[sn]
	if !ok {
		return CacheChange{}, false
	}
	return *ch, true
}

// SeqNumMin / SeqNumMax return the lowest/highest retained sequence number, or
// guid.SequenceNumberUnknown if the cache is empty.
func (c *Cache) SeqNumMin() guid.SequenceNumber {
	if len(c.order) == 0 {
		return guid.SequenceNumberUnknown
	}
	return c.order[0]
}

func (c *Cache) SeqNumMax() guid.SequenceNumber {
	if len(c.order) == 0 {
		return guid.SequenceNumberUnknown
	}
	return c.order[len(c.order)-1]
}

// IterRange returns every change with lo <= sn <= hi, ascending.
func (c *Cache) IterRange(lo, hi guid.SequenceNumber) []CacheChange {
	var out []CacheChange
	for _, sn := range c.order {
		if sn < lo {
			continue
		}
		if sn > hi {
			break
		}
		out = append(out, *c.bySeqNum[sn])
	}
	return out
}

// InstanceChanges returns every retained change for one instance, ascending.
func (c *Cache) InstanceChanges(h guid.InstanceHandle) []CacheChange {
	inst, ok := c.instances[h]
	if !ok {
		return nil
	}
	out := make([]CacheChange, 0, len(inst.changes))
	for _, sn := range inst.changes {
		out = append(out, *c.bySeqNum[sn])
	}
	return out
}

// ViewState / InstanceState expose the per-instance reader-side bookkeeping.
func (c *Cache) ViewState(h guid.InstanceHandle) ViewState {
	if inst, ok := c.instances[h]; ok {
		return inst.viewState
	}
	return NewView
}

func (c *Cache) InstanceState(h guid.InstanceHandle) InstanceState {
	if inst, ok := c.instances[h]; ok {
		return inst.instanceState
	}
	return AliveInstance
}

// MarkRead transitions a stored change's sample state NotRead -> Read. It is a
// no-op if the change no longer exists (already taken).
func (c *Cache) MarkRead(sn guid.SequenceNumber) {
	if ch, ok := c.bySeqNum[sn]; ok {
		ch.SampleState = Read
	}
}

// Take removes and returns the change, implementing the destructive/exclusive
// semantics of spec §8 invariant 5: once taken, no subsequent Read/Take returns it.
func (c *Cache) Take(sn guid.SequenceNumber) (CacheChange, bool) {
	ch, ok := c.Get(sn)
	if !ok {
		return CacheChange{}, false
	}
	c.Remove(sn)
	return ch, true
}

// Len reports the total retained sample count across all instances.
func (c *Cache) Len() int { return len(c.bySeqNum) }
