package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/vocdoni/groth16-session/backend"
	"github.com/vocdoni/groth16-session/circuits/sum"
	"github.com/vocdoni/groth16-session/codec"
	"github.com/vocdoni/groth16-session/session"
)

// sumLoader is shared by the tests so the circuit setup runs only once.
var sumLoader = backend.NewCached(backend.NewGroth16Loader(backend.Groth16Config{
	Circuit: sum.Definition{},
}))

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func testAPI(c *qt.C, conf APIConfig) string {
	conf.Host = "127.0.0.1"
	conf.Port = 0
	a, err := New(&conf)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = a.Close(context.Background()) })
	return "http://" + a.Addr().String()
}

// request performs the request and returns the response body and status.
// A []byte body is sent as is, anything else is encoded as json.
func request(c *qt.C, method, url string, body any) ([]byte, int) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		c.Assert(err, qt.IsNil)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	c.Assert(err, qt.IsNil)
	res, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	c.Assert(err, qt.IsNil)
	return data, res.StatusCode
}

func decode[T any](c *qt.C, data []byte) *T {
	v := new(T)
	c.Assert(json.Unmarshal(data, v), qt.IsNil, qt.Commentf("%s", data))
	return v
}

func assertAPIError(c *qt.C, data []byte, status int, expected Error) {
	c.Helper()
	c.Assert(status, qt.Equals, expected.HTTPstatus, qt.Commentf("%s", data))
	c.Assert(decode[errorResponse](c, data).Code, qt.Equals, expected.Code)
}

func sessionURL(host string, endpoint string, id uuid.UUID) string {
	return host + EndpointWithParam(endpoint, SessionURLParam, id.String())
}

func newTestSession(c *qt.C, host string) uuid.UUID {
	data, status := request(c, http.MethodPost, host+SessionsEndpoint, nil)
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))
	res := decode[SessionResponse](c, data)
	c.Assert(res.State, qt.Equals, session.Uninitialized)
	return res.ID
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	host := testAPI(c, APIConfig{Loader: sumLoader})
	_, status := request(c, http.MethodGet, host+PingEndpoint, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
}

func TestSessionFlow(t *testing.T) {
	c := qt.New(t)
	host := testAPI(c, APIConfig{Loader: sumLoader})
	id := newTestSession(c, host)

	// nothing to verify nor a backend to prove with
	data, status := request(c, http.MethodPost, sessionURL(host, SessionVerifyEndpoint, id),
		&VerifyRequest{PublicInputs: []string{"7"}})
	assertAPIError(c, data, status, ErrNoArtifact)
	data, status = request(c, http.MethodPost, sessionURL(host, SessionProofEndpoint, id),
		&ProofRequest{Inputs: []string{"3", "4"}})
	assertAPIError(c, data, status, ErrBackendInit)

	data, status = request(c, http.MethodPost, sessionURL(host, SessionInitEndpoint, id), nil)
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))
	c.Assert(decode[SessionResponse](c, data).State, qt.Equals, session.Ready)

	// inputs can be numbers or strings
	data, status = request(c, http.MethodPost, sessionURL(host, SessionProofEndpoint, id),
		[]byte(`{"inputs": [3, "0x4"]}`))
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))
	proof := decode[ProofResponse](c, data)
	c.Assert(proof.ID, qt.Equals, proof.Artifact.ID())
	c.Assert(proof.Proof, qt.IsNotNil)
	c.Assert(proof.DisplayError, qt.Equals, "")

	data, status = request(c, http.MethodPost, sessionURL(host, SessionVerifyEndpoint, id),
		&VerifyRequest{PublicInputs: []string{"7"}})
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))
	c.Assert(decode[VerifyResponse](c, data).Valid, qt.IsTrue)

	// a proof that does not hold is a successful request
	data, status = request(c, http.MethodPost, sessionURL(host, SessionVerifyEndpoint, id),
		&VerifyRequest{PublicInputs: []string{"8"}})
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))
	c.Assert(decode[VerifyResponse](c, data).Valid, qt.IsFalse)

	data, status = request(c, http.MethodGet, sessionURL(host, SessionEndpoint, id), nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	snapshot := decode[SessionResponse](c, data)
	c.Assert(snapshot.State, qt.Equals, session.Verified)
	c.Assert(*snapshot.ArtifactID, qt.Equals, proof.ID)
	c.Assert(*snapshot.LastVerification, qt.IsFalse)

	// bad requests leave the session untouched
	data, status = request(c, http.MethodPost, sessionURL(host, SessionProofEndpoint, id),
		&ProofRequest{Inputs: []string{"3"}})
	assertAPIError(c, data, status, ErrInvalidInput)
	data, status = request(c, http.MethodPost, sessionURL(host, SessionVerifyEndpoint, id),
		[]byte(`{"publicInputs": 7}`))
	assertAPIError(c, data, status, ErrMalformedBody)
	data, _ = request(c, http.MethodGet, sessionURL(host, SessionEndpoint, id), nil)
	c.Assert(decode[SessionResponse](c, data).State, qt.Equals, session.Verified)

	data, status = request(c, http.MethodPost, sessionURL(host, SessionResetEndpoint, id), nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	reset := decode[SessionResponse](c, data)
	c.Assert(reset.State, qt.Equals, session.Ready)
	c.Assert(reset.ArtifactID, qt.IsNil)
	c.Assert(reset.LastVerification, qt.IsNil)

	data, status = request(c, http.MethodPost, sessionURL(host, SessionVerifyEndpoint, id),
		&VerifyRequest{PublicInputs: []string{"7"}})
	assertAPIError(c, data, status, ErrNoArtifact)

	_, status = request(c, http.MethodDelete, sessionURL(host, SessionEndpoint, id), nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	data, status = request(c, http.MethodGet, sessionURL(host, SessionEndpoint, id), nil)
	assertAPIError(c, data, status, ErrSessionNotFound)

	data, status = request(c, http.MethodGet, host+EndpointWithParam(SessionEndpoint, SessionURLParam, "abc"), nil)
	assertAPIError(c, data, status, ErrMalformedSessionID)
}

func TestIndependentSessions(t *testing.T) {
	c := qt.New(t)
	host := testAPI(c, APIConfig{Loader: sumLoader})
	first, second := newTestSession(c, host), newTestSession(c, host)
	c.Assert(first, qt.Not(qt.Equals), second)

	for _, id := range []uuid.UUID{first, second} {
		_, status := request(c, http.MethodPost, sessionURL(host, SessionInitEndpoint, id), nil)
		c.Assert(status, qt.Equals, http.StatusOK)
	}
	_, status := request(c, http.MethodPost, sessionURL(host, SessionProofEndpoint, first),
		&ProofRequest{Inputs: []string{"1", "2"}})
	c.Assert(status, qt.Equals, http.StatusOK)

	data, _ := request(c, http.MethodGet, sessionURL(host, SessionEndpoint, second), nil)
	c.Assert(decode[SessionResponse](c, data).State, qt.Equals, session.Ready)
	data, status = request(c, http.MethodPost, sessionURL(host, SessionVerifyEndpoint, second),
		&VerifyRequest{PublicInputs: []string{"3"}})
	assertAPIError(c, data, status, ErrNoArtifact)
}

func TestCodecEndpoints(t *testing.T) {
	c := qt.New(t)
	host := testAPI(c, APIConfig{Loader: sumLoader})
	id := newTestSession(c, host)
	_, status := request(c, http.MethodPost, sessionURL(host, SessionInitEndpoint, id), nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	data, status := request(c, http.MethodPost, sessionURL(host, SessionProofEndpoint, id),
		&ProofRequest{Inputs: []string{"3", "4"}})
	c.Assert(status, qt.Equals, http.StatusOK)
	proof := decode[ProofResponse](c, data)

	data, status = request(c, http.MethodPost, host+CodecEncodeEndpoint,
		&EncodeRequest{Artifact: proof.Artifact.Bytes()})
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))
	record := decode[codec.Record](c, data)
	c.Assert(record, qt.DeepEquals, proof.Proof)

	data, status = request(c, http.MethodPost, host+CodecDecodeEndpoint, record)
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))
	decoded := decode[ArtifactResponse](c, data)
	c.Assert(decoded.Artifact.Equal(proof.Artifact), qt.IsTrue)
	c.Assert(decoded.ID, qt.Equals, proof.ID)

	snarkjs, err := codec.ToSnarkJS(record)
	c.Assert(err, qt.IsNil)
	data, status = request(c, http.MethodPost, host+CodecSnarkJSEndpoint, snarkjs)
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%s", data))
	c.Assert(decode[ArtifactResponse](c, data).Artifact.Equal(proof.Artifact), qt.IsTrue)

	data, status = request(c, http.MethodPost, host+CodecEncodeEndpoint,
		&EncodeRequest{Artifact: []byte("not a proof")})
	assertAPIError(c, data, status, ErrMalformedArtifact)
	record.Protocol = "plonk"
	data, status = request(c, http.MethodPost, host+CodecDecodeEndpoint, record)
	assertAPIError(c, data, status, ErrMalformedArtifact)
	data, status = request(c, http.MethodPost, host+CodecEncodeEndpoint, []byte(`{"artifact": "0xzz"}`))
	assertAPIError(c, data, status, ErrMalformedBody)
}

func TestBackendUnavailable(t *testing.T) {
	c := qt.New(t)
	failing := backend.LoaderFunc(func(context.Context) (backend.Backend, error) {
		return nil, fmt.Errorf("proving key not found")
	})
	host := testAPI(c, APIConfig{Loader: failing, MaxSessions: 1})
	id := newTestSession(c, host)

	data, status := request(c, http.MethodPost, sessionURL(host, SessionInitEndpoint, id), nil)
	assertAPIError(c, data, status, ErrBackendInit)
	c.Assert(decode[errorResponse](c, data).Error, qt.Matches, ".*proving key not found")

	data, status = request(c, http.MethodPost, host+SessionsEndpoint, nil)
	assertAPIError(c, data, status, ErrTooManySessions)

	_, status = request(c, http.MethodDelete, sessionURL(host, SessionEndpoint, id), nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	newTestSession(c, host)
}

func TestNewErrors(t *testing.T) {
	c := qt.New(t)
	_, err := New(nil)
	c.Assert(err, qt.ErrorMatches, "missing API configuration")
	_, err = New(&APIConfig{Host: "127.0.0.1"})
	c.Assert(err, qt.ErrorMatches, "missing backend loader")
}

// slowBackend delays the proofs of the sum backend and counts them.
type slowBackend struct {
	backend.Backend
	delay  time.Duration
	proofs atomic.Int32
}

func (b *slowBackend) Prove(ctx context.Context, inputs []*big.Int) (codec.Artifact, error) {
	b.proofs.Add(1)
	time.Sleep(b.delay)
	return b.Backend.Prove(ctx, inputs)
}

func (b *slowBackend) Load(ctx context.Context) (backend.Backend, error) {
	inner, err := sumLoader.Load(ctx)
	if err != nil {
		return nil, err
	}
	b.Backend = inner
	return b, nil
}

func TestQueuedOperationsWithoutTimeout(t *testing.T) {
	c := qt.New(t)
	slow := &slowBackend{delay: 300 * time.Millisecond}
	host := testAPI(c, APIConfig{
		Loader:         slow,
		BusyPolicy:     session.QueueWhenBusy,
		RequestTimeout: 100 * time.Millisecond,
	})
	id := newTestSession(c, host)
	_, status := request(c, http.MethodPost, sessionURL(host, SessionInitEndpoint, id), nil)
	c.Assert(status, qt.Equals, http.StatusOK)

	body, err := json.Marshal(&ProofRequest{Inputs: []string{"1", "2"}})
	c.Assert(err, qt.IsNil)
	url := sessionURL(host, SessionProofEndpoint, id)
	statuses := make([]int, 2)
	errs := make([]error, 2)
	wg := sync.WaitGroup{}
	for i := range statuses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := http.Post(url, "application/json", bytes.NewReader(body))
			if err != nil {
				errs[i] = err
				return
			}
			_ = res.Body.Close()
			statuses[i] = res.StatusCode
		}()
	}
	wg.Wait()
	c.Assert(errs, qt.DeepEquals, []error{nil, nil})
	// the second proof waits for the first one longer than the request
	// timeout and still succeeds
	c.Assert(statuses, qt.DeepEquals, []int{http.StatusOK, http.StatusOK})
	c.Assert(slow.proofs.Load(), qt.Equals, int32(2))
}
