package registry

import (
	"testing"

	"github.com/dustdds-go/dds/internal/guid"
)

func TestAllocateEntityIdDistinctAcrossKinds(t *testing.T) {
	r := New()
	w, err := r.AllocateEntityId(guid.EntityKind(0x02))
	if err != nil {
		t.Fatalf("AllocateEntityId(writer) error = %v", err)
	}
	topic, err := r.AllocateEntityId(guid.EntityKind(0x00))
	if err != nil {
		t.Fatalf("AllocateEntityId(topic) error = %v", err)
	}
	if w == topic {
		t.Fatalf("entity ids collided across kinds: %v", w)
	}
}

func TestRegisterLookupUnregister(t *testing.T) {
	r := New()
	h := guid.InstanceHandle{1, 2, 3}
	r.Register(h, Owner{Kind: OwnerWriter, Key: "pub1", ChildKey: "w1"})

	owner, ok := r.Lookup(h)
	if !ok || owner.ChildKey != "w1" {
		t.Fatalf("Lookup() = %+v, %v, want ChildKey w1", owner, ok)
	}

	r.Unregister(h)
	if _, ok := r.Lookup(h); ok {
		t.Fatal("Lookup() after Unregister() found entry, want gone")
	}
}
