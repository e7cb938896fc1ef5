package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/vocdoni/groth16-session/codec"
	"github.com/vocdoni/groth16-session/session"
	"github.com/vocdoni/groth16-session/types"
)

// SessionResponse describes a proof session: its ID and a snapshot of its
// state.
type SessionResponse struct {
	ID uuid.UUID `json:"id"`
	session.Snapshot
}

// ProofRequest is the body of a proof creation request. Each input can be
// a JSON number or a decimal or 0x prefixed hexadecimal string.
type ProofRequest struct {
	Inputs types.Values `json:"inputs"`
}

// ProofResponse is the response to a proof creation request.
type ProofResponse struct {
	ID       common.Hash    `json:"id"`
	Artifact codec.Artifact `json:"artifact"`
	// Proof is the record of the artifact. It is omitted if the artifact
	// can not be displayed, with the reason in DisplayError.
	Proof        *codec.Record `json:"proof,omitempty"`
	DisplayError string        `json:"displayError,omitempty"`
}

// VerifyRequest is the body of a verification request.
type VerifyRequest struct {
	PublicInputs types.Values `json:"publicInputs"`
}

// VerifyResponse is the response to a verification request.
type VerifyResponse struct {
	Valid bool `json:"valid"`
}

// EncodeRequest is the body of a codec encode request.
type EncodeRequest struct {
	Artifact types.HexBytes `json:"artifact"`
}

// ArtifactResponse is the response of the codec decode requests.
type ArtifactResponse struct {
	ID       common.Hash    `json:"id"`
	Artifact codec.Artifact `json:"artifact"`
}
