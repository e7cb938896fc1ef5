package circuits

import (
	"bytes"
	"fmt"
	"io"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/vocdoni/groth16-session/log"
)

// StoreSetup serializes the constraint system and the keys provided and
// stores them in the local cache. It returns the resulting CircuitArtifacts,
// with the hashes that identify each artifact.
func StoreSetup(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey) (*CircuitArtifacts, error) {
	artifacts := make([]*Artifact, 0, 3)
	for _, w := range []struct {
		name string
		obj  io.WriterTo
	}{
		{"constraint system", ccs},
		{"proving key", pk},
		{"verifying key", vk},
	} {
		buf := &bytes.Buffer{}
		if _, err := w.obj.WriteTo(buf); err != nil {
			return nil, fmt.Errorf("error encoding %s: %w", w.name, err)
		}
		hash, err := Store(buf.Bytes())
		if err != nil {
			return nil, err
		}
		log.Infow("artifact stored", "name", w.name, "hash", hash.String(), "size", buf.Len())
		artifacts = append(artifacts, &Artifact{Hash: hash, Content: buf.Bytes()})
	}
	return NewCircuitArtifacts(artifacts[0], artifacts[1], artifacts[2]), nil
}

// ReadConstraintSystem decodes a groth16 constraint system over the
// SessionCurve.
func ReadConstraintSystem(data []byte) (constraint.ConstraintSystem, error) {
	ccs := groth16.NewCS(SessionCurve)
	if _, err := ccs.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("error decoding constraint system: %w", err)
	}
	return ccs, nil
}

// ReadProvingKey decodes a groth16 proving key over the SessionCurve.
func ReadProvingKey(data []byte) (groth16.ProvingKey, error) {
	pk := groth16.NewProvingKey(SessionCurve)
	if _, err := pk.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("error decoding proving key: %w", err)
	}
	return pk, nil
}

// ReadVerifyingKey decodes a groth16 verifying key over the SessionCurve.
func ReadVerifyingKey(data []byte) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(SessionCurve)
	if _, err := vk.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("error decoding verifying key: %w", err)
	}
	return vk, nil
}
