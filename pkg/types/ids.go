package types

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// NodeID is an opaque 128-bit node identity (spec §3).
type NodeID [16]byte

// EdgeID is an opaque 128-bit edge identity.
type EdgeID [16]byte

func (id NodeID) String() string { return hex.EncodeToString(id[:]) }
func (id EdgeID) String() string { return hex.EncodeToString(id[:]) }

// IsZero reports whether id is the zero value (never a valid assigned id).
func (id NodeID) IsZero() bool { return id == NodeID{} }
func (id EdgeID) IsZero() bool { return id == EdgeID{} }

// NewNodeID generates a fresh random 128-bit node identity. Randomness
// comes from crypto/rand so that ids are globally unique with overwhelming
// probability across concurrent sessions (spec §3 invariant: node
// identities are globally unique within a database).
func NewNodeID() NodeID {
	var id NodeID
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand failing is fatal to the identity guarantee; panic is
		// appropriate here since there is no sane fallback.
		panic(fmt.Sprintf("graphlite: failed to generate node id: %v", err))
	}
	return id
}

// NewEdgeID generates a fresh random 128-bit edge identity.
func NewEdgeID() EdgeID {
	var id EdgeID
	if _, err := rand.Read(id[:]); err != nil {
		panic(fmt.Sprintf("graphlite: failed to generate edge id: %v", err))
	}
	return id
}

// ParseNodeID decodes a hex-encoded node id as produced by NodeID.String.
func ParseNodeID(s string) (NodeID, error) {
	var id NodeID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("invalid node id %q", s)
	}
	copy(id[:], b)
	return id, nil
}

// ParseEdgeID decodes a hex-encoded edge id.
func ParseEdgeID(s string) (EdgeID, error) {
	var id EdgeID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("invalid edge id %q", s)
	}
	copy(id[:], b)
	return id, nil
}

// SortKey returns the raw id bytes for use as a KV key component. Ids are
// random, so byte order does not follow generation order; this exists
// purely for readability at call sites, not for any ordering guarantee.
func (id NodeID) SortKey() []byte { return id[:] }
func (id EdgeID) SortKey() []byte { return id[:] }

// encodeUint64 is a small helper used by index key construction elsewhere
// in the storage package.
func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
