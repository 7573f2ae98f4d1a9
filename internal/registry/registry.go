// Package registry implements the entity registry of spec §4.11 (C11): a map from
// opaque InstanceHandle to owner, and per-kind entity-id counters.
package registry

import (
	"fmt"

	"github.com/dustdds-go/dds/internal/guid"
)

// OwnerKind discriminates the Owner union.
type OwnerKind int

const (
	OwnerPublisher OwnerKind = iota
	OwnerSubscriber
	OwnerTopic
	OwnerWriter
	OwnerReader
)

// Owner identifies what an InstanceHandle refers to, spec §4.11's
// "{Publisher(idx), Subscriber(idx), Topic(idx), Writer(pub_idx, w_idx),
// Reader(sub_idx, r_idx)}" enum, expressed with opaque string keys instead of
// slice indices (Go maps, not Rust Vec-of-slots, are this module's entity store).
type Owner struct {
	Kind       OwnerKind
	Key        string // owning container's key (publisher/subscriber/topic name or guid string)
	ChildKey   string // writer/reader key, empty for container-level owners
}

// Registry maps InstanceHandle to Owner and allocates entity-ids per kind.
type Registry struct {
	owners   map[guid.InstanceHandle]Owner
	counters map[guid.EntityKind]*guid.Counter
}

func New() *Registry {
	return &Registry{
		owners:   make(map[guid.InstanceHandle]Owner),
		counters: make(map[guid.EntityKind]*guid.Counter),
	}
}

// ErrOutOfResources mirrors spec §7's OutOfResources for counter overflow.
var ErrOutOfResources = fmt.Errorf("registry: entity key counter overflow")

// AllocateEntityId returns the next free EntityId for kind, per participant.
func (r *Registry) AllocateEntityId(kind guid.EntityKind) (guid.EntityId, error) {
	c, ok := r.counters[kind]
	if !ok {
		c = &guid.Counter{}
		r.counters[kind] = c
	}
	id, err := c.Next(kind)
	if err != nil {
		return guid.EntityId{}, fmt.Errorf("%w: %v", ErrOutOfResources, err)
	}
	return id, nil
}

// Register associates a handle with its owner.
func (r *Registry) Register(h guid.InstanceHandle, owner Owner) {
	r.owners[h] = owner
}

// Lookup returns the owner of a handle, or ok=false for a stale/unknown handle
// (spec §4.6 invariant (i): stale handles must yield BadParameter upstream).
func (r *Registry) Lookup(h guid.InstanceHandle) (Owner, bool) {
	o, ok := r.owners[h]
	return o, ok
}

// Unregister removes a handle, e.g. once its owning entity is deleted.
func (r *Registry) Unregister(h guid.InstanceHandle) {
	delete(r.owners, h)
}
