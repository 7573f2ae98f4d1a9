package guid

import "testing"

func TestCounterNextIncrements(t *testing.T) {
	var c Counter
	first, err := c.Next(kindWriterWithKey)
	if err != nil {
		t.Fatalf("Next() error = %v, want nil", err)
	}
	second, err := c.Next(kindWriterWithKey)
	if err != nil {
		t.Fatalf("Next() error = %v, want nil", err)
	}
	if first == second {
		t.Fatalf("Next() returned duplicate entity id %v", first)
	}
	if first.Kind() != kindWriterWithKey {
		t.Fatalf("Kind() = %v, want %v", first.Kind(), kindWriterWithKey)
	}
}

func TestSequenceNumberRoundtrip(t *testing.T) {
	cases := []SequenceNumber{0, 1, 42, 1<<33 + 7, -1}
	for _, sn := range cases {
		got := FromParts(sn.High(), sn.Low())
		if got != sn {
			t.Errorf("FromParts(%d.High(), %d.Low()) = %d, want %d", sn, sn, got, sn)
		}
	}
}

func TestEntityIdBuiltinReserved(t *testing.T) {
	reserved := []EntityId{
		EntityIdParticipant, EntityIdSPDPWriter, EntityIdSPDPReader,
		EntityIdSEDPPubWriter, EntityIdSEDPPubReader,
		EntityIdSEDPSubWriter, EntityIdSEDPSubReader,
		EntityIdSEDPTopicWriter, EntityIdSEDPTopicReader,
	}
	for _, id := range reserved {
		if !id.Kind().IsBuiltin() {
			t.Errorf("entity id %x: Kind().IsBuiltin() = false, want true", id)
		}
	}
}

func TestInstanceHandleFromGuidDeterministic(t *testing.T) {
	g := Guid{Prefix: Prefix{1, 2, 3}, Entity: EntityIdParticipant}
	h1 := FromGuid(g)
	h2 := FromGuid(g)
	if h1 != h2 {
		t.Fatalf("FromGuid not deterministic: %v != %v", h1, h2)
	}
}
