package codec

import (
	"bytes"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/groth16-session/types"
)

// Artifact is the serialized proof produced by a proving backend. It is
// immutable: the raw bytes are copied on creation and on read. The zero
// value represents the absence of an artifact.
type Artifact struct {
	raw []byte
}

// NewArtifact returns an Artifact holding a copy of raw.
func NewArtifact(raw []byte) Artifact {
	if len(raw) == 0 {
		return Artifact{}
	}
	return Artifact{raw: bytes.Clone(raw)}
}

// Bytes returns a copy of the raw bytes of the artifact.
func (a Artifact) Bytes() []byte {
	return bytes.Clone(a.raw)
}

// Len returns the length in bytes of the artifact.
func (a Artifact) Len() int {
	return len(a.raw)
}

// IsEmpty returns true if the artifact holds no bytes.
func (a Artifact) IsEmpty() bool {
	return len(a.raw) == 0
}

// Equal returns true if both artifacts hold the same bytes.
func (a Artifact) Equal(other Artifact) bool {
	return bytes.Equal(a.raw, other.raw)
}

// ID returns the keccak256 hash of the raw bytes, used to identify the
// artifact in logs and responses.
func (a Artifact) ID() common.Hash {
	if a.IsEmpty() {
		return common.Hash{}
	}
	return crypto.Keccak256Hash(a.raw)
}

// MarshalJSON encodes the artifact as a 0x prefixed hex string.
func (a Artifact) MarshalJSON() ([]byte, error) {
	return json.Marshal(types.HexBytes(a.raw))
}

// UnmarshalJSON decodes an artifact from a hex string.
func (a *Artifact) UnmarshalJSON(data []byte) error {
	var raw types.HexBytes
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = NewArtifact(raw)
	return nil
}
