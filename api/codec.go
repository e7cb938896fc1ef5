package api

import (
	"net/http"

	"github.com/vocdoni/groth16-session/codec"
)

// encodeArtifact converts a raw proof artifact into its record
// POST /codec/encode
func (a *API) encodeArtifact(w http.ResponseWriter, r *http.Request) {
	req := &EncodeRequest{}
	if err := decodeBody(r, req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	record, err := codec.EncodeForDisplay(codec.NewArtifact(req.Artifact))
	if err != nil {
		operationError(err).Write(w)
		return
	}
	httpWriteJSON(w, record)
}

// decodeRecord converts a proof record into the raw artifact
// POST /codec/decode
func (a *API) decodeRecord(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		ErrMalformedBody.Withf("could not read request body: %v", err).Write(w)
		return
	}
	record, err := codec.UnmarshalRecordJSON(body)
	if err != nil {
		operationError(err).Write(w)
		return
	}
	writeArtifact(w, record)
}

// importSnarkJS converts a proof in the snarkjs json format into the raw
// artifact
// POST /codec/snarkjs
func (a *API) importSnarkJS(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		ErrMalformedBody.Withf("could not read request body: %v", err).Write(w)
		return
	}
	record, err := codec.FromSnarkJS(body)
	if err != nil {
		operationError(err).Write(w)
		return
	}
	writeArtifact(w, record)
}

func writeArtifact(w http.ResponseWriter, record *codec.Record) {
	artifact, err := codec.DecodeFromDisplay(record)
	if err != nil {
		operationError(err).Write(w)
		return
	}
	httpWriteJSON(w, &ArtifactResponse{ID: artifact.ID(), Artifact: artifact})
}
