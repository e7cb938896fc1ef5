// Package codec translates the proof artifacts produced by the Groth16
// backend between their opaque binary form and a structured record that can
// be displayed, logged or exchanged as json. Every function is pure and safe
// for concurrent use.
//
// The binary form is the raw (uncompressed) gnark encoding of a bn254
// Groth16 proof. Any other encoding is rejected, which guarantees that
// DecodeFromDisplay(EncodeForDisplay(a)) returns exactly a.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
)

// ErrMalformedArtifact is returned when an artifact or a record can not be
// parsed under the expected encoding.
var ErrMalformedArtifact = errors.New("malformed artifact")

// EncodeForDisplay decodes the artifact bytes and returns its record.
func EncodeForDisplay(a Artifact) (*Record, error) {
	proof, err := decodeProof(a.raw)
	if err != nil {
		return nil, err
	}
	r := &Record{
		Protocol: ProtocolGroth16,
		Curve:    CurveBN128,
		PiA:      g1ToStrings(&proof.Ar),
		PiB:      g2ToStrings(&proof.Bs),
		PiC:      g1ToStrings(&proof.Krs),
	}
	if len(proof.Commitments) > 0 || !proof.CommitmentPok.IsInfinity() {
		r.Commitments = make([][]string, 0, len(proof.Commitments))
		for i := range proof.Commitments {
			r.Commitments = append(r.Commitments, g1ToStrings(&proof.Commitments[i]))
		}
		r.CommitmentPok = g1ToStrings(&proof.CommitmentPok)
	}
	return r, nil
}

// DecodeFromDisplay validates the record and returns the artifact it
// represents.
func DecodeFromDisplay(r *Record) (Artifact, error) {
	if r == nil {
		return Artifact{}, fmt.Errorf("%w: nil record", ErrMalformedArtifact)
	}
	if err := r.checkHeader(); err != nil {
		return Artifact{}, err
	}
	proof := &groth16_bn254.Proof{}
	var err error
	if proof.Ar, err = g1FromStrings("pi_a", r.PiA); err != nil {
		return Artifact{}, err
	}
	if proof.Bs, err = g2FromStrings("pi_b", r.PiB); err != nil {
		return Artifact{}, err
	}
	if proof.Krs, err = g1FromStrings("pi_c", r.PiC); err != nil {
		return Artifact{}, err
	}
	if len(r.Commitments) > 0 || len(r.CommitmentPok) > 0 {
		proof.Commitments = make([]bn254.G1Affine, len(r.Commitments))
		for i, c := range r.Commitments {
			if proof.Commitments[i], err = g1FromStrings(fmt.Sprintf("commitments[%d]", i), c); err != nil {
				return Artifact{}, err
			}
		}
		if proof.CommitmentPok, err = g1FromStrings("commitment_pok", r.CommitmentPok); err != nil {
			return Artifact{}, err
		}
	}
	raw, err := encodeProof(proof)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	return Artifact{raw: raw}, nil
}

// ProofFromArtifact returns the gnark proof contained in the artifact.
func ProofFromArtifact(a Artifact) (*groth16_bn254.Proof, error) {
	return decodeProof(a.raw)
}

// ArtifactFromProof encodes a gnark proof as an artifact.
func ArtifactFromProof(proof *groth16_bn254.Proof) (Artifact, error) {
	if proof == nil {
		return Artifact{}, fmt.Errorf("nil proof")
	}
	raw, err := encodeProof(proof)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{raw: raw}, nil
}

func encodeProof(proof *groth16_bn254.Proof) ([]byte, error) {
	buf := &bytes.Buffer{}
	if _, err := proof.WriteRawTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeProof(raw []byte) (*groth16_bn254.Proof, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty artifact", ErrMalformedArtifact)
	}
	proof := &groth16_bn254.Proof{}
	r := bytes.NewReader(raw)
	if _, err := proof.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedArtifact, r.Len())
	}
	// only the raw encoding is accepted, compressed points would not survive
	// a round trip
	canonical, err := encodeProof(proof)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	if !bytes.Equal(canonical, raw) {
		return nil, fmt.Errorf("%w: non canonical encoding", ErrMalformedArtifact)
	}
	return proof, nil
}

func fpToString(e *fp.Element) string {
	return e.BigInt(new(big.Int)).String()
}

func fpFromString(field, s string) (fp.Element, error) {
	var e fp.Element
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return e, fmt.Errorf("%w: %s: invalid number %q", ErrMalformedArtifact, field, s)
	}
	if v.Sign() < 0 || v.Cmp(fp.Modulus()) >= 0 {
		return e, fmt.Errorf("%w: %s: value out of field", ErrMalformedArtifact, field)
	}
	e.SetBigInt(v)
	return e, nil
}

func g1ToStrings(p *bn254.G1Affine) []string {
	if p.IsInfinity() {
		return []string{"0", "1", "0"}
	}
	return []string{fpToString(&p.X), fpToString(&p.Y), "1"}
}

func g1FromStrings(field string, coords []string) (bn254.G1Affine, error) {
	var p bn254.G1Affine
	if len(coords) != 2 && len(coords) != 3 {
		return p, fmt.Errorf("%w: %s: expected 3 coordinates, got %d", ErrMalformedArtifact, field, len(coords))
	}
	if len(coords) == 3 {
		switch coords[2] {
		case "0":
			return p, nil
		case "1":
		default:
			return p, fmt.Errorf("%w: %s: unexpected z coordinate %q", ErrMalformedArtifact, field, coords[2])
		}
	}
	var err error
	if p.X, err = fpFromString(field+".x", coords[0]); err != nil {
		return p, err
	}
	if p.Y, err = fpFromString(field+".y", coords[1]); err != nil {
		return p, err
	}
	if !p.IsOnCurve() || !p.IsInSubGroup() {
		return p, fmt.Errorf("%w: %s: point not in G1", ErrMalformedArtifact, field)
	}
	return p, nil
}

func g2ToStrings(p *bn254.G2Affine) [][]string {
	if p.IsInfinity() {
		return [][]string{{"0", "0"}, {"1", "0"}, {"0", "0"}}
	}
	return [][]string{
		{fpToString(&p.X.A0), fpToString(&p.X.A1)},
		{fpToString(&p.Y.A0), fpToString(&p.Y.A1)},
		{"1", "0"},
	}
}

func g2FromStrings(field string, coords [][]string) (bn254.G2Affine, error) {
	var p bn254.G2Affine
	if len(coords) != 2 && len(coords) != 3 {
		return p, fmt.Errorf("%w: %s: expected 3 coordinates, got %d", ErrMalformedArtifact, field, len(coords))
	}
	for i, c := range coords {
		if len(c) != 2 {
			return p, fmt.Errorf("%w: %s[%d]: expected 2 components, got %d", ErrMalformedArtifact, field, i, len(c))
		}
	}
	if len(coords) == 3 {
		switch {
		case coords[2][0] == "0" && coords[2][1] == "0":
			return p, nil
		case coords[2][0] == "1" && coords[2][1] == "0":
		default:
			return p, fmt.Errorf("%w: %s: unexpected z coordinate %v", ErrMalformedArtifact, field, coords[2])
		}
	}
	var err error
	if p.X.A0, err = fpFromString(field+".x0", coords[0][0]); err != nil {
		return p, err
	}
	if p.X.A1, err = fpFromString(field+".x1", coords[0][1]); err != nil {
		return p, err
	}
	if p.Y.A0, err = fpFromString(field+".y0", coords[1][0]); err != nil {
		return p, err
	}
	if p.Y.A1, err = fpFromString(field+".y1", coords[1][1]); err != nil {
		return p, err
	}
	if !p.IsOnCurve() || !p.IsInSubGroup() {
		return p, fmt.Errorf("%w: %s: point not in G2", ErrMalformedArtifact, field)
	}
	return p, nil
}
