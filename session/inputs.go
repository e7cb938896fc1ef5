package session

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/vocdoni/groth16-session/circuits"
)

// ParseInputs converts the caller values into numbers following the specs.
// Values can be decimal or 0x prefixed hexadecimal, surrounding spaces are
// ignored. Any malformed, negative or out of range value is reported as
// ErrInvalidInput.
func ParseInputs(specs []circuits.InputSpec, values []string) ([]*big.Int, error) {
	if len(values) != len(specs) {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrInvalidInput, len(specs), len(values))
	}
	res := make([]*big.Int, 0, len(values))
	for i, spec := range specs {
		v, err := parseValue(values[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, spec.Name, err)
		}
		res = append(res, v)
	}
	if err := circuits.CheckInputs(specs, res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return res, nil
}

func parseValue(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty value")
	}
	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	return v, nil
}
