package backend

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/vocdoni/groth16-session/circuits"
	"github.com/vocdoni/groth16-session/codec"
	"github.com/vocdoni/groth16-session/log"
)

var gnarkLoggerOnce sync.Once

// routeGnarkLogs makes gnark log through the package logger, so its output
// follows the configured level and format.
func routeGnarkLogs() {
	gnarkLoggerOnce.Do(func() {
		gnarklogger.Set(log.Logger().With().Str("module", "gnark").Logger())
	})
}

// Groth16Config is the configuration of a Groth16Loader.
type Groth16Config struct {
	// Circuit is the circuit to prove and verify.
	Circuit circuits.Definition
	// Artifacts, if set, contains the constraint system and the keys of a
	// fixed trusted setup. They are loaded from the local cache (and
	// downloaded if they are missing). If not set, the circuit is compiled
	// and a new setup is generated on load, which is only suitable for
	// development.
	Artifacts *circuits.CircuitArtifacts
}

// Groth16Loader loads a gnark Groth16 backend over the bn254 curve.
type Groth16Loader struct {
	conf Groth16Config
}

// NewGroth16Loader returns a new Groth16Loader.
func NewGroth16Loader(conf Groth16Config) *Groth16Loader {
	return &Groth16Loader{conf: conf}
}

// Load implements Loader.
func (l *Groth16Loader) Load(ctx context.Context) (Backend, error) {
	if l.conf.Circuit == nil {
		return nil, fmt.Errorf("circuit definition not provided")
	}
	routeGnarkLogs()
	startTime := time.Now()
	var (
		ccs constraint.ConstraintSystem
		pk  groth16.ProvingKey
		vk  groth16.VerifyingKey
		err error
	)
	if l.conf.Artifacts != nil {
		ccs, pk, vk, err = LoadSetup(ctx, l.conf.Artifacts)
	} else {
		ccs, pk, vk, err = Setup(l.conf.Circuit)
	}
	if err != nil {
		return nil, err
	}
	layout := l.conf.Circuit.Layout()
	if nb := vk.NbPublicWitness(); nb != len(layout.Public) {
		return nil, fmt.Errorf("verifying key expects %d public inputs, circuit %s declares %d",
			nb, l.conf.Circuit.Name(), len(layout.Public))
	}
	log.Infow("groth16 backend loaded",
		"circuit", l.conf.Circuit.Name(),
		"constraints", ccs.GetNbConstraints(),
		"fromArtifacts", l.conf.Artifacts != nil,
		"took", time.Since(startTime).String())
	return &Groth16{
		circuit: l.conf.Circuit,
		ccs:     ccs,
		pk:      pk,
		vk:      vk,
	}, nil
}

// Setup compiles the circuit and runs a local groth16 setup. The toxic waste
// of this setup is not discarded in any verifiable way, so the resulting
// keys must only be used for development or tests.
func Setup(def circuits.Definition) (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	ccs, err := frontend.Compile(circuits.SessionCurve.ScalarField(), r1cs.NewBuilder, def.Placeholder())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error compiling circuit %s: %w", def.Name(), err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error running setup for circuit %s: %w", def.Name(), err)
	}
	return ccs, pk, vk, nil
}

// LoadSetup loads the artifacts provided and decodes the constraint system
// and the keys.
func LoadSetup(ctx context.Context, artifacts *circuits.CircuitArtifacts) (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	if err := artifacts.LoadAll(ctx); err != nil {
		return nil, nil, nil, err
	}
	ccs, err := circuits.ReadConstraintSystem(artifacts.CircuitDefinition())
	if err != nil {
		return nil, nil, nil, err
	}
	pk, err := circuits.ReadProvingKey(artifacts.ProvingKey())
	if err != nil {
		return nil, nil, nil, err
	}
	vk, err := circuits.ReadVerifyingKey(artifacts.VerifyingKey())
	if err != nil {
		return nil, nil, nil, err
	}
	return ccs, pk, vk, nil
}

// Groth16 is a loaded gnark Groth16 backend.
type Groth16 struct {
	circuit circuits.Definition
	ccs     constraint.ConstraintSystem
	pk      groth16.ProvingKey
	vk      groth16.VerifyingKey
}

// Layout implements Backend.
func (g *Groth16) Layout() circuits.InputLayout {
	return g.circuit.Layout()
}

// Prove implements Backend.
func (g *Groth16) Prove(ctx context.Context, inputs []*big.Int) (codec.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return codec.Artifact{}, err
	}
	assignment, err := g.circuit.FullAssignment(inputs)
	if err != nil {
		return codec.Artifact{}, err
	}
	witness, err := frontend.NewWitness(assignment, circuits.SessionCurve.ScalarField())
	if err != nil {
		return codec.Artifact{}, fmt.Errorf("failed to create witness: %w", err)
	}
	startTime := time.Now()
	proof, err := groth16.Prove(g.ccs, g.pk, witness)
	if err != nil {
		return codec.Artifact{}, fmt.Errorf("failed to generate proof: %w", err)
	}
	bn254Proof, ok := proof.(*groth16_bn254.Proof)
	if !ok {
		return codec.Artifact{}, fmt.Errorf("unexpected proof type %T", proof)
	}
	artifact, err := codec.ArtifactFromProof(bn254Proof)
	if err != nil {
		return codec.Artifact{}, fmt.Errorf("failed to encode proof: %w", err)
	}
	log.Debugw("proof generated",
		"circuit", g.circuit.Name(),
		"size", artifact.Len(),
		"took", time.Since(startTime).String())
	return artifact, nil
}

// Verify implements Backend.
func (g *Groth16) Verify(ctx context.Context, artifact codec.Artifact, publicInputs []*big.Int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	proof, err := codec.ProofFromArtifact(artifact)
	if err != nil {
		return false, err
	}
	assignment, err := g.circuit.PublicAssignment(publicInputs)
	if err != nil {
		return false, err
	}
	publicWitness, err := frontend.NewWitness(assignment, circuits.SessionCurve.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("failed to create public witness: %w", err)
	}
	if err := g.checkShape(proof, len(publicInputs)); err != nil {
		return false, err
	}
	// With the shape checked, groth16.Verify fails only when the proof does
	// not hold: points out of the subgroup, a commitment proof of knowledge
	// that does not open, or the final pairing mismatch.
	if err := groth16.Verify(proof, g.vk, publicWitness); err != nil {
		log.Debugw("proof does not hold", "circuit", g.circuit.Name(), "error", err.Error())
		return false, nil
	}
	return true, nil
}

// checkShape returns an error if the verifying key can not evaluate the proof
// with the number of public inputs provided.
func (g *Groth16) checkShape(proof *groth16_bn254.Proof, nbPublic int) error {
	vk, ok := g.vk.(*groth16_bn254.VerifyingKey)
	if !ok {
		return fmt.Errorf("unexpected verifying key type %T", g.vk)
	}
	if expected := len(vk.G1.K) - len(vk.PublicAndCommitmentCommitted) - 1; nbPublic != expected {
		return fmt.Errorf("got %d public inputs, the verifying key expects %d", nbPublic, expected)
	}
	if len(proof.Commitments) != len(vk.CommitmentKeys) {
		return fmt.Errorf("proof carries %d commitments, the verifying key expects %d",
			len(proof.Commitments), len(vk.CommitmentKeys))
	}
	return nil
}

// Keys returns the constraint system and the keys of the backend, used to
// persist a development setup.
func (g *Groth16) Keys() (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey) {
	return g.ccs, g.pk, g.vk
}
