package codec

import (
	"fmt"

	"github.com/vocdoni/circom2gnark/parser"
)

// FromSnarkJS parses a proof in the json format produced by snarkjs and
// returns its record. The record still needs to go through
// DecodeFromDisplay to get a validated artifact.
func FromSnarkJS(data []byte) (*Record, error) {
	proof, err := parser.UnmarshalCircomProofJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid snarkjs proof: %v", ErrMalformedArtifact, err)
	}
	return &Record{
		Protocol: proof.Protocol,
		Curve:    CurveBN128,
		PiA:      proof.PiA,
		PiB:      proof.PiB,
		PiC:      proof.PiC,
	}, nil
}

// ToSnarkJS returns the snarkjs representation of the record. The gnark
// commitment extension has no snarkjs counterpart, so records with
// commitments are rejected.
func ToSnarkJS(r *Record) (*parser.CircomProof, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil record", ErrMalformedArtifact)
	}
	if len(r.Commitments) > 0 {
		return nil, fmt.Errorf("%w: commitments can not be represented in snarkjs format", ErrMalformedArtifact)
	}
	return &parser.CircomProof{
		PiA:      r.PiA,
		PiB:      r.PiB,
		PiC:      r.PiC,
		Protocol: r.Protocol,
	}, nil
}
