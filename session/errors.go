package session

import "errors"

// Every error returned by a session wraps one of these, so callers can tell
// the kinds apart with errors.Is. A verification that returns false is not
// an error. Display failures are reported with codec.ErrMalformedArtifact.
var (
	// ErrBackendInit is returned when the backend can not be loaded, or when
	// an operation needs a backend and the session is not initialized.
	ErrBackendInit = errors.New("backend initialization failed")
	// ErrInvalidInput is returned when the caller input is malformed or out
	// of the declared range. Nothing is sent to the backend.
	ErrInvalidInput = errors.New("invalid input")
	// ErrProofGeneration is returned when the backend fails to build a
	// proof. The session state is unchanged.
	ErrProofGeneration = errors.New("proof generation failed")
	// ErrNoArtifact is returned when a verification is requested and the
	// session holds no proof.
	ErrNoArtifact = errors.New("no proof artifact held")
	// ErrVerification is returned when the backend can not evaluate the
	// verification.
	ErrVerification = errors.New("verification could not be evaluated")
	// ErrSessionBusy is returned when another operation is in flight on the
	// same session.
	ErrSessionBusy = errors.New("session busy")
)
