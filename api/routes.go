package api

import "strings"

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"

	// SessionsEndpoint is the endpoint for creating a new proof session
	SessionsEndpoint = "/sessions"
	// SessionURLParam is the name of the URL parameter holding the session ID
	SessionURLParam = "sessionId"
	// SessionEndpoint is the endpoint to get or delete a session
	SessionEndpoint = "/sessions/{" + SessionURLParam + "}"
	// SessionInitEndpoint is the endpoint to load the backend of a session
	SessionInitEndpoint = SessionEndpoint + "/init"
	// SessionProofEndpoint is the endpoint to create a proof in a session
	SessionProofEndpoint = SessionEndpoint + "/proof"
	// SessionVerifyEndpoint is the endpoint to verify the proof held by a
	// session
	SessionVerifyEndpoint = SessionEndpoint + "/verify"
	// SessionResetEndpoint is the endpoint to drop the proof held by a session
	SessionResetEndpoint = SessionEndpoint + "/reset"

	// CodecEncodeEndpoint converts a raw proof artifact into its record
	CodecEncodeEndpoint = "/codec/encode"
	// CodecDecodeEndpoint converts a proof record into the raw artifact
	CodecDecodeEndpoint = "/codec/decode"
	// CodecSnarkJSEndpoint converts a snarkjs proof into the raw artifact
	CodecSnarkJSEndpoint = "/codec/snarkjs"
)

// EndpointWithParam replaces the URL parameter param of the endpoint with
// the value provided.
func EndpointWithParam(endpoint, param, value string) string {
	return strings.ReplaceAll(endpoint, "{"+param+"}", value)
}
