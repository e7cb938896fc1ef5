package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vocdoni/groth16-session/log"
	"github.com/vocdoni/groth16-session/session"
)

// newSession creates a new proof session
// POST /sessions
func (a *API) newSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.New()
	s := session.New(a.conf.Loader,
		session.WithBusyPolicy(a.conf.BusyPolicy),
		session.WithName(id.String()))

	a.sessionsMu.Lock()
	if a.conf.MaxSessions > 0 && len(a.sessions) >= a.conf.MaxSessions {
		a.sessionsMu.Unlock()
		ErrTooManySessions.Withf("limit of %d sessions reached", a.conf.MaxSessions).Write(w)
		return
	}
	a.sessions[id] = s
	a.sessionsMu.Unlock()

	log.Infow("new session", "sessionId", id.String())
	httpWriteJSON(w, &SessionResponse{ID: id, Snapshot: s.Snapshot()})
}

// getSession returns the state of a session
// GET /sessions/{sessionId}
func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	id, s, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	httpWriteJSON(w, &SessionResponse{ID: id, Snapshot: s.Snapshot()})
}

// deleteSession drops a session. Operations in flight finish, but their
// results are lost.
// DELETE /sessions/{sessionId}
func (a *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, _, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	a.sessionsMu.Lock()
	delete(a.sessions, id)
	a.sessionsMu.Unlock()
	log.Infow("session deleted", "sessionId", id.String())
	httpWriteOK(w)
}

// initSession loads the backend of a session
// POST /sessions/{sessionId}/init
func (a *API) initSession(w http.ResponseWriter, r *http.Request) {
	id, s, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	if _, err := s.Initialize(r.Context()); err != nil {
		operationError(err).Write(w)
		return
	}
	httpWriteJSON(w, &SessionResponse{ID: id, Snapshot: s.Snapshot()})
}

// createProof creates a proof with the inputs provided and keeps it in the
// session
// POST /sessions/{sessionId}/proof
func (a *API) createProof(w http.ResponseWriter, r *http.Request) {
	id, s, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	req := &ProofRequest{}
	if err := decodeBody(r, req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	outcome, err := s.CreateProof(r.Context(), req.Inputs)
	if err != nil {
		operationError(err).Write(w)
		return
	}
	res := &ProofResponse{
		ID:       outcome.Artifact.ID(),
		Artifact: outcome.Artifact,
		Proof:    outcome.Display,
	}
	if outcome.DisplayErr != nil {
		res.DisplayError = outcome.DisplayErr.Error()
	}
	log.Infow("proof created", "sessionId", id.String(), "artifactId", res.ID.Hex())
	httpWriteJSON(w, res)
}

// verifyProof verifies the proof held by the session against the public
// inputs provided. A proof that does not hold is not an error.
// POST /sessions/{sessionId}/verify
func (a *API) verifyProof(w http.ResponseWriter, r *http.Request) {
	id, s, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	req := &VerifyRequest{}
	if err := decodeBody(r, req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	valid, err := s.VerifyProof(r.Context(), req.PublicInputs)
	if err != nil {
		operationError(err).Write(w)
		return
	}
	log.Infow("proof verified", "sessionId", id.String(), "valid", valid)
	httpWriteJSON(w, &VerifyResponse{Valid: valid})
}

// resetSession drops the proof held by the session
// POST /sessions/{sessionId}/reset
func (a *API) resetSession(w http.ResponseWriter, r *http.Request) {
	id, s, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	s.Reset()
	httpWriteJSON(w, &SessionResponse{ID: id, Snapshot: s.Snapshot()})
}

// sessionFromRequest returns the session referenced by the URL parameter.
// If it can not be found, the error is written and false is returned.
func (a *API) sessionFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, *session.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, SessionURLParam))
	if err != nil {
		ErrMalformedSessionID.WithErr(err).Write(w)
		return uuid.Nil, nil, false
	}
	a.sessionsMu.RLock()
	s, ok := a.sessions[id]
	a.sessionsMu.RUnlock()
	if !ok {
		ErrSessionNotFound.Withf("session %s", id).Write(w)
		return uuid.Nil, nil, false
	}
	return id, s, true
}
