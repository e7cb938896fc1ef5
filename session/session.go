// Package session drives a proving backend through the lifecycle of a single
// proof: the backend is initialized once, a proof is created from the caller
// inputs and held by the session, and later verified against public inputs.
//
// The session enforces the lifecycle:
//
//	Uninitialized --Initialize--> Ready --CreateProof--> ProofHeld --VerifyProof--> Verified
//	                                ^                      |  ^                       |  |
//	                                |                      +--+ CreateProof           |  | VerifyProof
//	                                +---------------- Reset (from any state) ---------+--+
//
// Only one operation runs at a time on a session. Every failure is returned
// as an error wrapping one of the package sentinel errors.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/vocdoni/groth16-session/backend"
	"github.com/vocdoni/groth16-session/codec"
	"github.com/vocdoni/groth16-session/log"
)

// BusyPolicy decides what happens with an operation issued while another
// one is in flight on the same session.
type BusyPolicy int

const (
	// RejectWhenBusy fails the new operation with ErrSessionBusy.
	RejectWhenBusy BusyPolicy = iota
	// QueueWhenBusy waits for the in-flight operation to finish, or for the
	// context of the new one to be done.
	QueueWhenBusy
)

// Option configures a Session.
type Option func(*Session)

// WithBusyPolicy sets the policy applied to concurrent operations.
func WithBusyPolicy(p BusyPolicy) Option {
	return func(s *Session) { s.policy = p }
}

// WithDisplayEncoding enables or disables the display encoding of the
// proofs created. It is enabled by default.
func WithDisplayEncoding(enabled bool) Option {
	return func(s *Session) { s.display = enabled }
}

// WithName sets the name used to identify the session in logs.
func WithName(name string) Option {
	return func(s *Session) { s.name = name }
}

// ProofOutcome is the result of a successful CreateProof.
type ProofOutcome struct {
	// Artifact is the proof now held by the session.
	Artifact codec.Artifact
	// Display is the record of the artifact, nil if the display encoding is
	// disabled or failed.
	Display *codec.Record
	// DisplayErr is the display encoding error, if any. It does not affect
	// the held artifact.
	DisplayErr error
}

// Session holds the state of one proof lifecycle. It must be created with
// New. The backend handle acquired by Initialize is retained for the whole
// life of the session; the proof artifact and the verification result are
// owned by the session and never shared.
type Session struct {
	name    string
	loader  backend.Loader
	policy  BusyPolicy
	display bool
	// sem is a one slot semaphore that serializes the operations
	sem chan struct{}

	mu         sync.RWMutex
	state      State
	backend    backend.Backend
	artifact   codec.Artifact
	lastResult *bool
}

// New creates a new Uninitialized session that will acquire its backend
// from the loader provided.
func New(loader backend.Loader, opts ...Option) *Session {
	s := &Session{
		loader:  loader,
		policy:  RejectWhenBusy,
		display: true,
		sem:     make(chan struct{}, 1),
		state:   Uninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) acquire(ctx context.Context) error {
	if s.policy == QueueWhenBusy {
		select {
		case s.sem <- struct{}{}:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrSessionBusy, ctx.Err())
		}
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	default:
		return ErrSessionBusy
	}
}

func (s *Session) release() {
	<-s.sem
}

// Initialize loads the backend. Once the backend is loaded, calling it again
// does nothing and returns the current state. If the load fails the session
// stays Uninitialized and the error wraps ErrBackendInit.
func (s *Session) Initialize(ctx context.Context) (State, error) {
	if err := s.acquire(ctx); err != nil {
		return s.State(), err
	}
	defer s.release()

	s.mu.RLock()
	loaded, state := s.backend != nil, s.state
	s.mu.RUnlock()
	if loaded {
		return state, nil
	}
	if s.loader == nil {
		return Uninitialized, fmt.Errorf("%w: no backend loader", ErrBackendInit)
	}
	var b backend.Backend
	err := protect("load", func() (err error) {
		b, err = s.loader.Load(ctx)
		return err
	})
	if err == nil && b == nil {
		err = fmt.Errorf("loader returned no backend")
	}
	if err != nil {
		log.Warnw("backend initialization failed", "session", s.name, "error", err.Error())
		return Uninitialized, fmt.Errorf("%w: %v", ErrBackendInit, err)
	}
	s.mu.Lock()
	s.backend = b
	s.state = Ready
	s.mu.Unlock()
	log.Debugw("session initialized", "session", s.name)
	return Ready, nil
}

// CreateProof parses the inputs and asks the backend for a proof. On success
// the new artifact replaces the one held (if any), the last verification
// result is cleared and the session moves to ProofHeld. On failure the
// session is left untouched.
func (s *Session) CreateProof(ctx context.Context, inputs []string) (*ProofOutcome, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	s.mu.RLock()
	b := s.backend
	s.mu.RUnlock()
	if b == nil {
		return nil, fmt.Errorf("%w: session not initialized", ErrBackendInit)
	}
	values, err := ParseInputs(b.Layout().Prove, inputs)
	if err != nil {
		return nil, err
	}
	var artifact codec.Artifact
	err = protect("prove", func() (err error) {
		artifact, err = b.Prove(ctx, values)
		return err
	})
	if err == nil && artifact.IsEmpty() {
		err = fmt.Errorf("backend returned an empty artifact")
	}
	if err != nil {
		log.Warnw("proof generation failed", "session", s.name, "error", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}

	s.mu.Lock()
	s.artifact = artifact
	s.lastResult = nil
	s.state = ProofHeld
	s.mu.Unlock()
	log.Debugw("proof created", "session", s.name, "artifact", artifact.ID().Hex(), "size", artifact.Len())

	outcome := &ProofOutcome{Artifact: artifact}
	if s.display {
		outcome.Display, outcome.DisplayErr = codec.EncodeForDisplay(artifact)
		if outcome.DisplayErr != nil {
			log.Warnw("proof can not be displayed", "session", s.name, "error", outcome.DisplayErr.Error())
		}
	}
	return outcome, nil
}

// VerifyProof verifies the held artifact against the public inputs. A proof
// that does not hold returns false and no error. If no artifact is held it
// returns ErrNoArtifact without calling the backend.
func (s *Session) VerifyProof(ctx context.Context, publicInputs []string) (bool, error) {
	if err := s.acquire(ctx); err != nil {
		return false, err
	}
	defer s.release()

	s.mu.RLock()
	b, artifact := s.backend, s.artifact
	s.mu.RUnlock()
	if artifact.IsEmpty() {
		return false, ErrNoArtifact
	}
	values, err := ParseInputs(b.Layout().Public, publicInputs)
	if err != nil {
		return false, err
	}
	var valid bool
	err = protect("verify", func() (err error) {
		valid, err = b.Verify(ctx, artifact, values)
		return err
	})
	if err != nil {
		log.Warnw("verification failed", "session", s.name, "error", err.Error())
		return false, fmt.Errorf("%w: %v", ErrVerification, err)
	}

	s.mu.Lock()
	s.lastResult = &valid
	s.state = Verified
	s.mu.Unlock()
	log.Debugw("proof verified", "session", s.name, "artifact", artifact.ID().Hex(), "valid", valid)
	return valid, nil
}

// Reset drops the held artifact and the last verification result. The
// backend handle is retained, so an initialized session goes back to Ready.
// An Uninitialized session has nothing to drop and stays Uninitialized.
// If an operation is in flight, Reset waits for it to finish.
func (s *Session) Reset() {
	s.sem <- struct{}{}
	defer s.release()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifact = codec.Artifact{}
	s.lastResult = nil
	if s.backend != nil {
		s.state = Ready
	}
	log.Debugw("session reset", "session", s.name)
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Artifact returns the held artifact and true, or an empty artifact and
// false if none is held.
func (s *Session) Artifact() (codec.Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artifact, !s.artifact.IsEmpty()
}

// LastVerification returns the result of the last verification and true,
// or false and false if the held artifact has not been verified.
func (s *Session) LastVerification() (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastResult == nil {
		return false, false
	}
	return *s.lastResult, true
}

// Snapshot returns a copy of the observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{State: s.state}
	if !s.artifact.IsEmpty() {
		id := s.artifact.ID()
		snap.ArtifactID = &id
	}
	if s.lastResult != nil {
		valid := *s.lastResult
		snap.LastVerification = &valid
	}
	return snap
}

// protect runs fn converting a panic into an error, so backend faults never
// cross the session boundary.
func protect(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic during %s: %v", op, r)
		}
	}()
	return fn()
}

