package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
)

func g1(k int64) bn254.G1Affine {
	_, _, gen, _ := bn254.Generators()
	var p bn254.G1Affine
	p.ScalarMultiplication(&gen, big.NewInt(k))
	return p
}

func g2(k int64) bn254.G2Affine {
	_, _, _, gen := bn254.Generators()
	var p bn254.G2Affine
	p.ScalarMultiplication(&gen, big.NewInt(k))
	return p
}

func testProof(withCommitments bool) *groth16_bn254.Proof {
	proof := &groth16_bn254.Proof{
		Ar:  g1(3),
		Bs:  g2(5),
		Krs: g1(7),
	}
	if withCommitments {
		proof.Commitments = []bn254.G1Affine{g1(11), g1(13)}
		proof.CommitmentPok = g1(17)
	}
	return proof
}

func testArtifact(t *testing.T, proof *groth16_bn254.Proof) Artifact {
	a, err := ArtifactFromProof(proof)
	qt.Assert(t, err, qt.IsNil)
	return a
}

func TestRoundTrip(t *testing.T) {
	c := qt.New(t)
	infinityAr := testProof(false)
	infinityAr.Ar = bn254.G1Affine{}

	for name, proof := range map[string]*groth16_bn254.Proof{
		"plain":          testProof(false),
		"commitments":    testProof(true),
		"infinity point": infinityAr,
	} {
		a := testArtifact(t, proof)
		record, err := EncodeForDisplay(a)
		c.Assert(err, qt.IsNil, qt.Commentf(name))
		decoded, err := DecodeFromDisplay(record)
		c.Assert(err, qt.IsNil, qt.Commentf(name))
		c.Assert(decoded.Equal(a), qt.IsTrue, qt.Commentf(name))

		// through the json exchange format
		data, err := MarshalRecordJSON(record)
		c.Assert(err, qt.IsNil)
		parsed, err := UnmarshalRecordJSON(data)
		c.Assert(err, qt.IsNil)
		decoded, err = DecodeFromDisplay(parsed)
		c.Assert(err, qt.IsNil, qt.Commentf(name))
		c.Assert(decoded.Bytes(), qt.DeepEquals, a.Bytes(), qt.Commentf(name))
	}
}

func TestEncodeRecordLayout(t *testing.T) {
	c := qt.New(t)
	proof := testProof(false)
	record, err := EncodeForDisplay(testArtifact(t, proof))
	c.Assert(err, qt.IsNil)

	c.Assert(record.Protocol, qt.Equals, ProtocolGroth16)
	c.Assert(record.Curve, qt.Equals, CurveBN128)
	c.Assert(record.PiA, qt.HasLen, 3)
	c.Assert(record.PiA[0], qt.Equals, proof.Ar.X.BigInt(new(big.Int)).String())
	c.Assert(record.PiA[2], qt.Equals, "1")
	c.Assert(record.PiB, qt.HasLen, 3)
	c.Assert(record.PiB[0][1], qt.Equals, proof.Bs.X.A1.BigInt(new(big.Int)).String())
	c.Assert(record.PiB[2], qt.DeepEquals, []string{"1", "0"})
	c.Assert(record.Commitments, qt.IsNil)
	c.Assert(record.CommitmentPok, qt.IsNil)

	data, err := MarshalRecordJSON(record)
	c.Assert(err, qt.IsNil)
	c.Assert(bytes.Contains(data, []byte(`"commitments"`)), qt.IsFalse)

	record, err = EncodeForDisplay(testArtifact(t, testProof(true)))
	c.Assert(err, qt.IsNil)
	c.Assert(record.Commitments, qt.HasLen, 2)
	c.Assert(record.CommitmentPok, qt.HasLen, 3)
}

func TestEncodeMalformed(t *testing.T) {
	c := qt.New(t)
	proof := testProof(false)
	raw := testArtifact(t, proof).Bytes()

	compressed := &bytes.Buffer{}
	_, err := proof.WriteTo(compressed)
	c.Assert(err, qt.IsNil)

	flipped := bytes.Clone(raw)
	flipped[10] ^= 0x01

	for name, data := range map[string][]byte{
		"empty":       nil,
		"truncated":   raw[:len(raw)-5],
		"trailing":    append(bytes.Clone(raw), 0x00),
		"compressed":  compressed.Bytes(),
		"not a point": flipped,
		"garbage":     []byte("this is not a proof"),
	} {
		_, err := EncodeForDisplay(NewArtifact(data))
		c.Assert(errors.Is(err, ErrMalformedArtifact), qt.IsTrue, qt.Commentf("%s: %v", name, err))
	}
}

func TestDecodeMalformed(t *testing.T) {
	c := qt.New(t)
	valid, err := EncodeForDisplay(testArtifact(t, testProof(false)))
	c.Assert(err, qt.IsNil)

	clone := func(modify func(r *Record)) *Record {
		data, err := json.Marshal(valid)
		c.Assert(err, qt.IsNil)
		r := &Record{}
		c.Assert(json.Unmarshal(data, r), qt.IsNil)
		modify(r)
		return r
	}
	modulus := fp.Modulus().String()

	for name, r := range map[string]*Record{
		"nil record":      nil,
		"plonk":           clone(func(r *Record) { r.Protocol = "plonk" }),
		"bls12-381":       clone(func(r *Record) { r.Curve = "bls12381" }),
		"not a number":    clone(func(r *Record) { r.PiA[0] = "abc" }),
		"negative":        clone(func(r *Record) { r.PiA[1] = "-1" }),
		"out of field":    clone(func(r *Record) { r.PiC[0] = modulus }),
		"not on curve":    clone(func(r *Record) { r.PiA[0] = "1" }),
		"bad z":           clone(func(r *Record) { r.PiA[2] = "2" }),
		"few coords":      clone(func(r *Record) { r.PiA = r.PiA[:1] }),
		"bad g2 shape":    clone(func(r *Record) { r.PiB[1] = []string{"1"} }),
		"g2 not on curve": clone(func(r *Record) { r.PiB[0][0] = "1" }),
		"bad commitment":  clone(func(r *Record) { r.Commitments = [][]string{{"1", "1", "1"}}; r.CommitmentPok = r.PiA }),
	} {
		_, err := DecodeFromDisplay(r)
		c.Assert(errors.Is(err, ErrMalformedArtifact), qt.IsTrue, qt.Commentf("%s: %v", name, err))
	}

	// the curve name is optional and case insensitive
	for _, curve := range []string{"", "BN254", "bn128"} {
		_, err := DecodeFromDisplay(clone(func(r *Record) { r.Curve = curve }))
		c.Assert(err, qt.IsNil)
	}

	_, err = UnmarshalRecordJSON([]byte(`{"pi_a": 12}`))
	c.Assert(errors.Is(err, ErrMalformedArtifact), qt.IsTrue)
}

func TestSnarkJS(t *testing.T) {
	c := qt.New(t)
	a := testArtifact(t, testProof(false))
	record, err := EncodeForDisplay(a)
	c.Assert(err, qt.IsNil)

	circomProof, err := ToSnarkJS(record)
	c.Assert(err, qt.IsNil)
	data, err := json.Marshal(circomProof)
	c.Assert(err, qt.IsNil)

	parsed, err := FromSnarkJS(data)
	c.Assert(err, qt.IsNil)
	decoded, err := DecodeFromDisplay(parsed)
	c.Assert(err, qt.IsNil)
	c.Assert(decoded.Equal(a), qt.IsTrue)

	withCommitments, err := EncodeForDisplay(testArtifact(t, testProof(true)))
	c.Assert(err, qt.IsNil)
	_, err = ToSnarkJS(withCommitments)
	c.Assert(errors.Is(err, ErrMalformedArtifact), qt.IsTrue)

	_, err = FromSnarkJS([]byte("not json"))
	c.Assert(errors.Is(err, ErrMalformedArtifact), qt.IsTrue)
}

func TestArtifact(t *testing.T) {
	c := qt.New(t)
	raw := []byte{1, 2, 3}
	a := NewArtifact(raw)
	raw[0] = 9
	c.Assert(a.Bytes(), qt.DeepEquals, []byte{1, 2, 3})

	out := a.Bytes()
	out[1] = 9
	c.Assert(a.Bytes(), qt.DeepEquals, []byte{1, 2, 3})

	c.Assert(a.Len(), qt.Equals, 3)
	c.Assert(a.IsEmpty(), qt.IsFalse)
	c.Assert(NewArtifact(nil).IsEmpty(), qt.IsTrue)
	c.Assert(Artifact{}.ID(), qt.Equals, common.Hash{})
	c.Assert(a.ID(), qt.Not(qt.Equals), NewArtifact([]byte{1, 2, 4}).ID())

	data, err := json.Marshal(a)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, `"0x010203"`)
	var decoded Artifact
	c.Assert(json.Unmarshal(data, &decoded), qt.IsNil)
	c.Assert(decoded.Equal(a), qt.IsTrue)
}
