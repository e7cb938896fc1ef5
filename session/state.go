package session

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// State is the lifecycle state of a proof session.
type State int

const (
	// Uninitialized is the initial state, no backend loaded.
	Uninitialized State = iota
	// Ready means that the backend is loaded and no proof is held.
	Ready
	// ProofHeld means that a proof artifact is held and not verified yet.
	ProofHeld
	// Verified means that the held proof has been verified at least once.
	Verified
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case ProofHeld:
		return "proof_held"
	case Verified:
		return "verified"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the state as its name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state from its name.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	state, err := ParseState(name)
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// ParseState returns the state with the name provided.
func ParseState(name string) (State, error) {
	for _, s := range []State{Uninitialized, Ready, ProofHeld, Verified} {
		if s.String() == name {
			return s, nil
		}
	}
	return Uninitialized, fmt.Errorf("unknown session state %q", name)
}

// Snapshot is a read-only copy of the observable session state.
type Snapshot struct {
	State            State        `json:"state"`
	ArtifactID       *common.Hash `json:"artifactId,omitempty"`
	LastVerification *bool        `json:"lastVerification,omitempty"`
}
