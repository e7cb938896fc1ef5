package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/vocdoni/groth16-session/api"
	"github.com/vocdoni/groth16-session/codec"
)

// ResponseError is returned when the API answers with a status other than
// 200. Code is the API error code, zero if the body is not an API error.
type ResponseError struct {
	Status  int
	Code    int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %d (code %d: %s)", errCodeNot200, e.Status, e.Code, e.Message)
}

// Is reports whether target is the api.Error with the same code, so callers
// can use errors.Is(err, api.ErrNoArtifact).
func (e *ResponseError) Is(target error) bool {
	apiErr, ok := target.(api.Error)
	return ok && apiErr.Code == e.Code
}

// call performs the request and decodes the json response into out, if
// provided.
func (c *HTTPclient) call(kind requestKind, method string, body, out any, urlPath ...string) error {
	data, status, err := c.request(kind, method, body, urlPath...)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		resErr := &ResponseError{Status: status, Message: string(data)}
		apiErr := struct {
			Error string `json:"error"`
			Code  int    `json:"code"`
		}{}
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Code != 0 {
			resErr.Code = apiErr.Code
			resErr.Message = apiErr.Error
		}
		return resErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func sessionPath(endpoint string, id uuid.UUID) string {
	return api.EndpointWithParam(endpoint, api.SessionURLParam, id.String())
}

// NewSession creates a new proof session.
func (c *HTTPclient) NewSession() (*api.SessionResponse, error) {
	res := &api.SessionResponse{}
	if err := c.call(mutation, http.MethodPost, nil, res, api.SessionsEndpoint); err != nil {
		return nil, err
	}
	return res, nil
}

// Session returns the state of a session.
func (c *HTTPclient) Session(id uuid.UUID) (*api.SessionResponse, error) {
	res := &api.SessionResponse{}
	if err := c.call(lookup, http.MethodGet, nil, res, sessionPath(api.SessionEndpoint, id)); err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteSession drops a session.
func (c *HTTPclient) DeleteSession(id uuid.UUID) error {
	return c.call(mutation, http.MethodDelete, nil, nil, sessionPath(api.SessionEndpoint, id))
}

// Initialize loads the backend of a session.
func (c *HTTPclient) Initialize(id uuid.UUID) (*api.SessionResponse, error) {
	res := &api.SessionResponse{}
	if err := c.call(operation, http.MethodPost, nil, res, sessionPath(api.SessionInitEndpoint, id)); err != nil {
		return nil, err
	}
	return res, nil
}

// CreateProof creates a proof in the session with the inputs provided. The
// request is not sent again if it fails once the server received it, the
// session may hold the new proof anyway.
func (c *HTTPclient) CreateProof(id uuid.UUID, inputs ...string) (*api.ProofResponse, error) {
	res := &api.ProofResponse{}
	if err := c.call(operation, http.MethodPost, &api.ProofRequest{Inputs: inputs}, res,
		sessionPath(api.SessionProofEndpoint, id)); err != nil {
		return nil, err
	}
	return res, nil
}

// VerifyProof verifies the proof held by the session against the public
// inputs provided.
func (c *HTTPclient) VerifyProof(id uuid.UUID, publicInputs ...string) (bool, error) {
	res := &api.VerifyResponse{}
	if err := c.call(operation, http.MethodPost, &api.VerifyRequest{PublicInputs: publicInputs}, res,
		sessionPath(api.SessionVerifyEndpoint, id)); err != nil {
		return false, err
	}
	return res.Valid, nil
}

// Reset drops the proof held by the session.
func (c *HTTPclient) Reset(id uuid.UUID) (*api.SessionResponse, error) {
	res := &api.SessionResponse{}
	if err := c.call(operation, http.MethodPost, nil, res, sessionPath(api.SessionResetEndpoint, id)); err != nil {
		return nil, err
	}
	return res, nil
}

// Encode returns the record of a raw proof artifact.
func (c *HTTPclient) Encode(artifact codec.Artifact) (*codec.Record, error) {
	res := &codec.Record{}
	if err := c.call(lookup, http.MethodPost, &api.EncodeRequest{Artifact: artifact.Bytes()}, res,
		api.CodecEncodeEndpoint); err != nil {
		return nil, err
	}
	return res, nil
}

// Decode returns the raw proof artifact of a record.
func (c *HTTPclient) Decode(record *codec.Record) (codec.Artifact, error) {
	res := &api.ArtifactResponse{}
	if err := c.call(lookup, http.MethodPost, record, res, api.CodecDecodeEndpoint); err != nil {
		return codec.Artifact{}, err
	}
	return res.Artifact, nil
}
