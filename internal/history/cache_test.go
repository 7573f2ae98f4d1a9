package history

import (
	"testing"
	"time"

	"github.com/dustdds-go/dds/internal/guid"
	"github.com/dustdds-go/dds/internal/qos"
)

func change(sn guid.SequenceNumber, handle guid.InstanceHandle) CacheChange {
	return CacheChange{
		Kind:               Alive,
		SequenceNumber:     sn,
		InstanceHandle:     handle,
		ReceptionTimestamp: time.Now(),
		DataValue:          []byte{byte(sn)},
	}
}

func TestAddDuplicateIgnored(t *testing.T) {
	c := New(qos.History{Kind: qos.KeepLast, Depth: 10}, qos.ResourceLimits{})
	h := guid.InstanceHandle{1}
	c.Add(change(1, h))
	result, _ := c.Add(change(1, h))
	if result != Duplicate {
		t.Fatalf("Add() = %v, want Duplicate", result)
	}
}

func TestKeepLastEvictsOldest(t *testing.T) {
	c := New(qos.History{Kind: qos.KeepLast, Depth: 2}, qos.ResourceLimits{})
	h := guid.InstanceHandle{1}
	c.Add(change(1, h))
	c.Add(change(2, h))
	c.Add(change(3, h))

	if _, ok := c.Get(1); ok {
		t.Fatal("Get(1) found, want evicted")
	}
	if got := c.InstanceChanges(h); len(got) != 2 {
		t.Fatalf("InstanceChanges = %v, want len 2", got)
	}
}

func TestKeepAllRejectsOverMaxSamplesPerInstance(t *testing.T) {
	c := New(qos.History{Kind: qos.KeepAll}, qos.ResourceLimits{MaxSamplesPerInstance: 1})
	h := guid.InstanceHandle{1}
	if res, _ := c.Add(change(1, h)); res != Added {
		t.Fatalf("first Add() = %v, want Added", res)
	}
	res, reason := c.Add(change(2, h))
	if res != Rejected || reason != RejectedMaxSamplesPerInstance {
		t.Fatalf("Add() = %v, %v, want Rejected, RejectedMaxSamplesPerInstance", res, reason)
	}
}

func TestViewStateTransitionsNewThenNotNew(t *testing.T) {
	c := New(qos.History{Kind: qos.KeepLast, Depth: 10}, qos.ResourceLimits{})
	h := guid.InstanceHandle{1}
	c.Add(change(1, h))
	if c.ViewState(h) != NewView {
		t.Fatalf("ViewState after first add = %v, want NewView", c.ViewState(h))
	}
	c.Add(change(2, h))
	if c.ViewState(h) != NotNewView {
		t.Fatalf("ViewState after second add = %v, want NotNewView", c.ViewState(h))
	}
}

func TestInstanceStateDisposedAfterDisposeChange(t *testing.T) {
	c := New(qos.History{Kind: qos.KeepLast, Depth: 10}, qos.ResourceLimits{})
	h := guid.InstanceHandle{1}
	c.Add(change(1, h))
	ch2 := change(2, h)
	ch2.Kind = NotAliveDisposed
	c.Add(ch2)
	if c.InstanceState(h) != NotAliveDisposedInstance {
		t.Fatalf("InstanceState = %v, want NotAliveDisposedInstance", c.InstanceState(h))
	}
}

func TestTakeIsDestructive(t *testing.T) {
	c := New(qos.History{Kind: qos.KeepLast, Depth: 10}, qos.ResourceLimits{})
	h := guid.InstanceHandle{1}
	c.Add(change(1, h))
	if _, ok := c.Take(1); !ok {
		t.Fatal("Take() ok = false, want true")
	}
	if _, ok := c.Get(1); ok {
		t.Fatal("Get() after Take() found, want gone")
	}
	if _, ok := c.Take(1); ok {
		t.Fatal("second Take() ok = true, want false")
	}
}

func TestIterRangeAscendingAndBounded(t *testing.T) {
	c := New(qos.History{Kind: qos.KeepAll}, qos.ResourceLimits{})
	h := guid.InstanceHandle{1}
	for _, sn := range []guid.SequenceNumber{5, 1, 3} {
		c.Add(change(sn, h))
	}
	got := c.IterRange(2, 5)
	if len(got) != 2 || got[0].SequenceNumber != 3 || got[1].SequenceNumber != 5 {
		t.Fatalf("IterRange(2,5) = %+v, want [3,5]", got)
	}
}

func TestStoredChangeSnapshotsViewAndInstanceStateAtAddTime(t *testing.T) {
	c := New(qos.History{Kind: qos.KeepAll}, qos.ResourceLimits{})
	h := guid.InstanceHandle{1}
	c.Add(change(1, h))

	disposed := change(2, h)
	disposed.Kind = NotAliveDisposed
	c.Add(disposed)

	unregistered := change(3, h)
	unregistered.Kind = NotAliveUnregistered
	c.Add(unregistered)

	first, _ := c.Get(1)
	if first.ViewState != NewView {
		t.Fatalf("stored change 1 ViewState = %v, want NewView (the instance's first sample)", first.ViewState)
	}
	if first.InstanceState != AliveInstance {
		t.Fatalf("stored change 1 InstanceState = %v, want AliveInstance", first.InstanceState)
	}

	second, _ := c.Get(2)
	if second.ViewState != NotNewView {
		t.Fatalf("stored change 2 ViewState = %v, want NotNewView", second.ViewState)
	}
	if second.InstanceState != NotAliveDisposedInstance {
		t.Fatalf("stored change 2 InstanceState = %v, want NotAliveDisposedInstance", second.InstanceState)
	}

	third, _ := c.Get(3)
	if third.InstanceState != NotAliveDisposedInstance {
		t.Fatalf("stored change 3 InstanceState = %v, want NotAliveDisposedInstance (disposal is stickier than a later unregister)", third.InstanceState)
	}

	// A later Add must not retroactively rewrite an earlier change's snapshot.
	if first.InstanceState != AliveInstance {
		t.Fatalf("stored change 1 InstanceState mutated after later Add()s: got %v, want AliveInstance", first.InstanceState)
	}
}

func TestSeqNumMinMaxEmpty(t *testing.T) {
	c := New(qos.History{Kind: qos.KeepLast, Depth: 1}, qos.ResourceLimits{})
	if c.SeqNumMin() != guid.SequenceNumberUnknown || c.SeqNumMax() != guid.SequenceNumberUnknown {
		t.Fatalf("empty cache bounds = %d,%d want Unknown", c.SeqNumMin(), c.SeqNumMax())
	}
}
