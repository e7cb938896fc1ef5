package circuits

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
)

// InputSpec describes a single input value of a circuit.
type InputSpec struct {
	// Name is used to reference the input in error messages.
	Name string
	// MaxBits is the maximum bit length accepted for the value. Zero means
	// that only the field modulus limits the value.
	MaxBits int
}

// InputLayout describes the ordered inputs that the prover and the verifier
// expect.
type InputLayout struct {
	Prove  []InputSpec
	Public []InputSpec
}

// Definition is implemented by the circuits that can be driven by a proof
// session.
type Definition interface {
	// Name returns a short identifier of the circuit.
	Name() string
	// Placeholder returns the circuit used to compile the constraint system.
	Placeholder() frontend.Circuit
	// Layout returns the layout of the inputs of the circuit.
	Layout() InputLayout
	// FullAssignment builds the witness assignment from the prove inputs,
	// in the order declared by Layout().Prove.
	FullAssignment(inputs []*big.Int) (frontend.Circuit, error)
	// PublicAssignment builds the public witness assignment from the public
	// inputs, in the order declared by Layout().Public.
	PublicAssignment(public []*big.Int) (frontend.Circuit, error)
}

// CheckInputs returns an error if the number of values does not match the
// specs or any of the values is out of its declared range.
func CheckInputs(specs []InputSpec, values []*big.Int) error {
	if len(values) != len(specs) {
		return fmt.Errorf("expected %d inputs, got %d", len(specs), len(values))
	}
	for i, spec := range specs {
		v := values[i]
		if v == nil {
			return fmt.Errorf("input %s is missing", spec.Name)
		}
		if v.Sign() < 0 {
			return fmt.Errorf("input %s is negative", spec.Name)
		}
		if spec.MaxBits > 0 && v.BitLen() > spec.MaxBits {
			return fmt.Errorf("input %s exceeds %d bits", spec.Name, spec.MaxBits)
		}
	}
	return nil
}
