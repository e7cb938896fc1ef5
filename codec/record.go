package codec

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// ProtocolGroth16 is the protocol name reported in the records.
	ProtocolGroth16 = "groth16"
	// CurveBN128 is the name that snarkjs uses for the bn254 curve.
	CurveBN128 = "bn128"
)

// Record is the display representation of a proof artifact. It follows the
// snarkjs proof json layout: every coordinate is a decimal string, G1 points
// are [x, y, z] and G2 points are [[x0, x1], [y0, y1], [z0, z1]], with z set
// to 1 for affine points and to 0 for the point at infinity. The gnark
// commitment extension is reported only when the proof has commitments.
type Record struct {
	Protocol      string     `json:"protocol"`
	Curve         string     `json:"curve"`
	PiA           []string   `json:"pi_a"`
	PiB           [][]string `json:"pi_b"`
	PiC           []string   `json:"pi_c"`
	Commitments   [][]string `json:"commitments,omitempty"`
	CommitmentPok []string   `json:"commitment_pok,omitempty"`
}

// MarshalRecordJSON returns the indented json representation of the record.
func MarshalRecordJSON(r *Record) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil record", ErrMalformedArtifact)
	}
	return json.MarshalIndent(r, "", "  ")
}

// UnmarshalRecordJSON parses a record from its json representation. It only
// checks the json shape, the content is validated by DecodeFromDisplay.
func UnmarshalRecordJSON(data []byte) (*Record, error) {
	r := &Record{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("%w: invalid record json: %v", ErrMalformedArtifact, err)
	}
	return r, nil
}

func (r *Record) checkHeader() error {
	if !strings.EqualFold(r.Protocol, ProtocolGroth16) {
		return fmt.Errorf("%w: unsupported protocol %q", ErrMalformedArtifact, r.Protocol)
	}
	switch strings.ToLower(r.Curve) {
	case "", CurveBN128, "bn254":
		return nil
	default:
		return fmt.Errorf("%w: unsupported curve %q", ErrMalformedArtifact, r.Curve)
	}
}
