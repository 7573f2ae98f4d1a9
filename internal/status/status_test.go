package status

import "testing"

func TestReadAndResetZeroesChangeOnly(t *testing.T) {
	c := &Counters{TotalCount: 3, TotalCountChange: 3, CurrentCount: 2, CurrentCountChange: 2}
	snap := c.ReadAndReset()
	if snap.TotalCount != 3 || snap.CurrentCount != 2 {
		t.Fatalf("snapshot = %+v, want totals preserved", snap)
	}
	if c.TotalCountChange != 0 || c.CurrentCountChange != 0 {
		t.Fatalf("counters after reset = %+v, want deltas zeroed", c)
	}
	if c.TotalCount != 3 {
		t.Fatalf("TotalCount after reset = %d, want unchanged 3", c.TotalCount)
	}
}

func TestDispatcherBubblesToParent(t *testing.T) {
	d := NewDispatcher(nil)
	var fired string

	participant := &Entity{Name: "participant", Mask: AllMask(), Listener: &Listener{
		OnPublicationMatched: func(Counters) { fired = "participant" },
	}}
	publisher := &Entity{Name: "publisher", Mask: NewMask(), Parent: participant}
	writer := &Entity{Name: "writer", Mask: NewMask(), Parent: publisher}

	d.Fire(PublicationMatched, writer, func(l *Listener) { l.OnPublicationMatched(Counters{}) })
	if fired != "participant" {
		t.Fatalf("fired = %q, want participant (bubbled past writer/publisher)", fired)
	}
}

func TestDispatcherFiresOnMostSpecificEntity(t *testing.T) {
	d := NewDispatcher(nil)
	var fired string

	participant := &Entity{Name: "participant", Mask: AllMask(), Listener: &Listener{
		OnPublicationMatched: func(Counters) { fired = "participant" },
	}}
	writer := &Entity{Name: "writer", Mask: AllMask(), Parent: participant, Listener: &Listener{
		OnPublicationMatched: func(Counters) { fired = "writer" },
	}}

	d.Fire(PublicationMatched, writer, func(l *Listener) { l.OnPublicationMatched(Counters{}) })
	if fired != "writer" {
		t.Fatalf("fired = %q, want writer", fired)
	}
}

func TestSuppressesDataAvailable(t *testing.T) {
	sub := &Entity{Mask: NewMask(DataOnReaders), Listener: &Listener{OnDataOnReaders: func() {}}}
	if !SuppressesDataAvailable(sub) {
		t.Fatal("SuppressesDataAvailable() = false, want true")
	}
	sub2 := &Entity{Mask: NewMask(), Listener: &Listener{}}
	if SuppressesDataAvailable(sub2) {
		t.Fatal("SuppressesDataAvailable() = true, want false")
	}
}
