package models

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/zeusync/enginedb/pkg/encoding"
)

// Record layout, 1-byte aligned, little-endian:
//
//	[12 bytes: name, UTF-8, unused tail zeroed]
//	[ 4 bytes: name length, int32]
//	[16 bytes: id, RFC 4122 byte order]
//	[ 4 bytes: tag slots, one byte each]
//	[ 1 byte : reserved, written as zero, ignored on read]
const (
	MaxNameBytes = 12
	RecordSize   = 37

	offName     = 0
	offNameLen  = offName + MaxNameBytes
	offID       = offNameLen + encoding.Int32Size
	offTags     = offID + 16
	offReserved = offTags + TagSlots
)

var _ encoding.Serializable = (*Record)(nil)

// Record is the fixed-size on-disk form of an Entity.
type Record struct {
	NameBytes  [MaxNameBytes]byte
	NameLength int32
	ID         uuid.UUID
	Tags       Tags
}

// NewRecord captures e in record form. Names longer than MaxNameBytes are cut
// at the last complete UTF-8 sequence that fits.
func NewRecord(e *Entity) Record {
	var r Record
	name := truncateName(e.Name)
	copy(r.NameBytes[:], name)
	r.NameLength = int32(len(name))
	r.ID = e.ID()
	r.Tags = e.Tags
	return r
}

// Serialize rejects a NameLength outside [0, MaxNameBytes] rather than write a
// record Deserialize would refuse.
func (r *Record) Serialize() ([]byte, error) {
	if r.NameLength < 0 || r.NameLength > MaxNameBytes {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNameLength, r.NameLength)
	}
	b := make([]byte, RecordSize)
	copy(b[offName:offNameLen], r.NameBytes[:])
	copy(b[offNameLen:offID], encoding.EncodeInt32(r.NameLength))
	copy(b[offID:offTags], r.ID[:])
	for i, t := range r.Tags {
		b[offTags+i] = byte(t)
	}
	b[offReserved] = 0
	return b, nil
}

// Deserialize fills r from b. Nothing is written to r when b is rejected.
func (r *Record) Deserialize(b []byte) error {
	if len(b) != RecordSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(b), RecordSize)
	}
	n := encoding.DecodeInt32(b[offNameLen:offID])
	if n < 0 || n > MaxNameBytes {
		return fmt.Errorf("%w: %d", ErrInvalidNameLength, n)
	}

	var out Record
	copy(out.NameBytes[:], b[offName:offNameLen])
	out.NameLength = n
	copy(out.ID[:], b[offID:offTags])
	for i := range out.Tags {
		out.Tags[i] = Tag(b[offTags+i])
	}
	*r = out
	return nil
}

// Name decodes the stored name. Invalid UTF-8 written by a foreign writer is
// replaced with U+FFFD. A NameLength outside [0, MaxNameBytes] is clamped.
func (r *Record) Name() string {
	n := min(max(r.NameLength, 0), MaxNameBytes)
	return strings.ToValidUTF8(string(r.NameBytes[:n]), "\uFFFD")
}

// Entity builds an entity from the record without registering its id.
func (r *Record) Entity() *Entity {
	return RestoreEntity(r.Name(), r.ID, r.Tags, nil)
}

// MarshalEntity encodes e into exactly RecordSize bytes. NewRecord always
// yields an in-range name length, so Serialize cannot fail here.
func MarshalEntity(e *Entity) []byte {
	r := NewRecord(e)
	b, err := r.Serialize()
	if err != nil {
		panic(err)
	}
	return b
}

// UnmarshalEntity decodes a record. The returned entity has no behaviours and
// its id is not registered with any allocator.
func UnmarshalEntity(b []byte) (*Entity, error) {
	var r Record
	if err := r.Deserialize(b); err != nil {
		return nil, err
	}
	return r.Entity(), nil
}

// NameFits reports whether name survives a round trip unchanged.
func NameFits(name string) bool {
	return len(name) <= MaxNameBytes
}

// StoredName returns the name as it will read back after a round trip.
func StoredName(name string) string {
	return string(truncateName(name))
}

func truncateName(name string) []byte {
	b := []byte(name)
	if len(b) <= MaxNameBytes {
		return b
	}
	n := MaxNameBytes
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return b[:n]
}
