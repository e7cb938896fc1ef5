// Package sum implements the circuit used by default in proof sessions: the
// prover knows two values A and B whose sum is the public value Sum.
package sum

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/vocdoni/groth16-session/circuits"
)

// InputBits is the maximum bit length of each addend.
const InputBits = 64

// Circuit proves the knowledge of A and B such that A + B == Sum.
type Circuit struct {
	A   frontend.Variable `gnark:",secret"`
	B   frontend.Variable `gnark:",secret"`
	Sum frontend.Variable `gnark:",public"`
}

// Define declares the circuit constraints.
func (c *Circuit) Define(api frontend.API) error {
	// bound the addends so the sum can not wrap around the field
	api.ToBinary(c.A, InputBits)
	api.ToBinary(c.B, InputBits)
	api.AssertIsEqual(api.Add(c.A, c.B), c.Sum)
	return nil
}

// Definition is the circuits.Definition of the sum circuit.
type Definition struct{}

// Name implements circuits.Definition.
func (Definition) Name() string { return "sum" }

// Placeholder implements circuits.Definition.
func (Definition) Placeholder() frontend.Circuit { return &Circuit{} }

// Layout implements circuits.Definition. The prover receives both addends
// and the verifier the expected sum.
func (Definition) Layout() circuits.InputLayout {
	return circuits.InputLayout{
		Prove: []circuits.InputSpec{
			{Name: "a", MaxBits: InputBits},
			{Name: "b", MaxBits: InputBits},
		},
		Public: []circuits.InputSpec{
			{Name: "sum", MaxBits: InputBits + 1},
		},
	}
}

// FullAssignment implements circuits.Definition. The public sum is computed
// from the addends.
func (d Definition) FullAssignment(inputs []*big.Int) (frontend.Circuit, error) {
	if err := circuits.CheckInputs(d.Layout().Prove, inputs); err != nil {
		return nil, fmt.Errorf("invalid prove inputs: %w", err)
	}
	return &Circuit{
		A:   inputs[0],
		B:   inputs[1],
		Sum: new(big.Int).Add(inputs[0], inputs[1]),
	}, nil
}

// PublicAssignment implements circuits.Definition.
func (d Definition) PublicAssignment(public []*big.Int) (frontend.Circuit, error) {
	if err := circuits.CheckInputs(d.Layout().Public, public); err != nil {
		return nil, fmt.Errorf("invalid public inputs: %w", err)
	}
	return &Circuit{Sum: public[0]}, nil
}
