package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/vocdoni/groth16-session/codec"
	"github.com/vocdoni/groth16-session/log"
	"github.com/vocdoni/groth16-session/session"
)

// maxBodySize limits the size of the request bodies.
const maxBodySize = 1 << 20 // 1 MiB

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
	log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// readBody reads the request body, up to maxBodySize bytes.
func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodySize))
}

// decodeBody decodes the JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
}

// operationError maps the errors returned by sessions and the codec to
// the API errors.
func operationError(err error) Error {
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		return ErrInvalidInput.Wrap(err)
	case errors.Is(err, session.ErrNoArtifact):
		return ErrNoArtifact.Wrap(err)
	case errors.Is(err, session.ErrSessionBusy):
		return ErrSessionBusy.Wrap(err)
	case errors.Is(err, session.ErrBackendInit):
		return ErrBackendInit.Wrap(err)
	case errors.Is(err, session.ErrProofGeneration):
		return ErrProofGeneration.Wrap(err)
	case errors.Is(err, session.ErrVerification):
		return ErrVerification.Wrap(err)
	case errors.Is(err, codec.ErrMalformedArtifact):
		return ErrMalformedArtifact.Wrap(err)
	default:
		return ErrGenericInternalServerError.WithErr(err)
	}
}
