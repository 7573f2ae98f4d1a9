// Package guid implements the RTPS identifiers described in spec §3: GuidPrefix,
// EntityId, Guid and InstanceHandle, along with the reserved entity-ids of the
// builtin discovery endpoints.
package guid

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// PrefixLength is the size in bytes of a participant-unique GuidPrefix.
const PrefixLength = 12

// EntityIdLength is the size in bytes of an EntityId.
const EntityIdLength = 4

// Prefix is the 12-byte participant-unique portion of a Guid.
type Prefix [PrefixLength]byte

// String renders the prefix as hex, matching how the teacher's transport package
// formats addresses for logging.
func (p Prefix) String() string {
	return fmt.Sprintf("%x", [PrefixLength]byte(p))
}

// NewPrefix derives a GuidPrefix from a vendor id and fresh entropy, following the
// layout recommended by spec §6: 2-byte vendor id, 2-byte host id, 4-byte app id,
// 4-byte instance id. Entropy comes from google/uuid rather than crypto/rand
// directly so the pack's uuid dependency has a real caller.
func NewPrefix(vendorID [2]byte) Prefix {
	var p Prefix
	p[0], p[1] = vendorID[0], vendorID[1]

	u := uuid.New()
	copy(p[2:], u[:PrefixLength-2])
	return p
}

// EntityKind is the last byte of an EntityId: the low nibble encodes the entity
// category, and both high bits set (0xC0) mean "builtin".
type EntityKind byte

const (
	builtinFlag EntityKind = 0xC0

	kindParticipant    EntityKind = 0x01
	kindWriterWithKey  EntityKind = 0x02
	kindWriterNoKey    EntityKind = 0x03
	kindReaderNoKey    EntityKind = 0x04
	kindReaderWithKey  EntityKind = 0x07
	kindWriterGroup    EntityKind = 0x08
	kindReaderGroup    EntityKind = 0x09
	kindTopic          EntityKind = 0x00
)

// IsBuiltin reports whether the kind's builtin bit is set.
func (k EntityKind) IsBuiltin() bool { return k&builtinFlag == builtinFlag }

// EntityId identifies an entity within a participant: a 3-byte key plus a 1-byte kind.
type EntityId [EntityIdLength]byte

// Kind returns the entity-kind byte.
func (e EntityId) Kind() EntityKind { return EntityKind(e[3]) }

// Unknown is the wildcard entity-id used by the message receiver (spec §4.5) to mean
// "deliver to every reader/writer matching the rest of the criteria".
var Unknown = EntityId{0, 0, 0, 0}

// Well-known builtin entity-ids, spec §3 invariant.
var (
	EntityIdParticipant        = EntityId{0, 0, 0x01, 0xC1}
	EntityIdSPDPWriter         = EntityId{0, 0x01, 0x00, 0xC2}
	EntityIdSPDPReader         = EntityId{0, 0x01, 0x00, 0xC7}
	EntityIdSEDPPubWriter      = EntityId{0, 0, 0x03, 0xC2}
	EntityIdSEDPPubReader      = EntityId{0, 0, 0x03, 0xC7}
	EntityIdSEDPSubWriter      = EntityId{0, 0, 0x04, 0xC2}
	EntityIdSEDPSubReader      = EntityId{0, 0, 0x04, 0xC7}
	EntityIdSEDPTopicWriter    = EntityId{0, 0, 0x02, 0xC2}
	EntityIdSEDPTopicReader    = EntityId{0, 0, 0x02, 0xC7}
)

// Counter allocates sequential 3-byte entity keys for one entity kind, per
// participant, as described by C11. It is not goroutine-safe by itself: callers
// (the participant actor) serialize access to it through the mailbox.
type Counter struct {
	next uint32
}

// ErrExhausted is returned once a Counter's 24-bit key space is used up.
var ErrExhausted = fmt.Errorf("entity key counter exhausted")

// Next allocates the next EntityId of the given kind, or ErrExhausted on overflow.
func (c *Counter) Next(kind EntityKind) (EntityId, error) {
	if c.next > 0xFFFFFF {
		return EntityId{}, ErrExhausted
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], c.next<<8)
	c.next++
	return EntityId{buf[0], buf[1], buf[2], byte(kind)}, nil
}

// Guid is a participant-unique GuidPrefix plus an EntityId: 16 bytes total.
type Guid struct {
	Prefix Prefix
	Entity EntityId
}

// UnknownGuid is the RTPS-reserved "no guid" value (all zero).
var UnknownGuid = Guid{}

func (g Guid) String() string {
	return fmt.Sprintf("%s:%x", g.Prefix, g.Entity)
}

// ParticipantGuid builds the well-known participant-entity Guid for a prefix.
func ParticipantGuid(prefix Prefix) Guid {
	return Guid{Prefix: prefix, Entity: EntityIdParticipant}
}

// InstanceHandleLength is the size in bytes of an InstanceHandle (spec §3).
const InstanceHandleLength = 16

// InstanceHandle is the key-hash identifying one keyed instance within a topic.
type InstanceHandle [InstanceHandleLength]byte

// FromGuid derives the InstanceHandle RTPS uses for builtin-topic entities: the raw
// 16 bytes of the entity's own Guid (dust-dds does the same in discovery_service.rs).
func FromGuid(g Guid) InstanceHandle {
	var h InstanceHandle
	copy(h[:PrefixLength], g.Prefix[:])
	copy(h[PrefixLength:], g.Entity[:])
	return h
}

func (h InstanceHandle) String() string {
	return fmt.Sprintf("%x", [InstanceHandleLength]byte(h))
}
