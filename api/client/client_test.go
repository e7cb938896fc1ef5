package client

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/groth16-session/api"
	"github.com/vocdoni/groth16-session/backend"
	"github.com/vocdoni/groth16-session/circuits/sum"
	"github.com/vocdoni/groth16-session/codec"
	"github.com/vocdoni/groth16-session/session"
)

// sumLoader is shared by the tests so the circuit setup runs only once.
var sumLoader = backend.NewCached(backend.NewGroth16Loader(backend.Groth16Config{
	Circuit: sum.Definition{},
}))

// slowBackend delays the delivery of the proofs built by the sum backend
// and counts them.
type slowBackend struct {
	backend.Backend
	delay  time.Duration
	proofs atomic.Int32
}

func (b *slowBackend) Prove(ctx context.Context, inputs []*big.Int) (codec.Artifact, error) {
	b.proofs.Add(1)
	artifact, err := b.Backend.Prove(ctx, inputs)
	time.Sleep(b.delay)
	return artifact, err
}

func (b *slowBackend) Load(ctx context.Context) (backend.Backend, error) {
	inner, err := sumLoader.Load(ctx)
	if err != nil {
		return nil, err
	}
	b.Backend = inner
	return b, nil
}

func testClient(c *qt.C, loader backend.Loader) (*HTTPclient, *api.API) {
	a, err := api.New(&api.APIConfig{
		Host:   "127.0.0.1",
		Port:   0,
		Loader: loader,
	})
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = a.Close(context.Background()) })

	cli, err := New("http://" + a.Addr().String())
	c.Assert(err, qt.IsNil)
	return cli, a
}

func TestClientSessionFlow(t *testing.T) {
	c := qt.New(t)
	cli, _ := testClient(c, sumLoader)

	s, err := cli.NewSession()
	c.Assert(err, qt.IsNil)
	c.Assert(s.State, qt.Equals, session.Uninitialized)

	_, err = cli.VerifyProof(s.ID, "7")
	c.Assert(errors.Is(err, api.ErrNoArtifact), qt.IsTrue, qt.Commentf("%v", err))

	s, err = cli.Initialize(s.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(s.State, qt.Equals, session.Ready)

	proof, err := cli.CreateProof(s.ID, "3", "4")
	c.Assert(err, qt.IsNil)
	c.Assert(proof.Proof, qt.IsNotNil)

	valid, err := cli.VerifyProof(s.ID, "7")
	c.Assert(err, qt.IsNil)
	c.Assert(valid, qt.IsTrue)
	valid, err = cli.VerifyProof(s.ID, "8")
	c.Assert(err, qt.IsNil)
	c.Assert(valid, qt.IsFalse)

	_, err = cli.CreateProof(s.ID, "3", "-4")
	c.Assert(errors.Is(err, api.ErrInvalidInput), qt.IsTrue)
	var resErr *ResponseError
	c.Assert(errors.As(err, &resErr), qt.IsTrue)
	c.Assert(resErr.Status, qt.Equals, api.ErrInvalidInput.HTTPstatus)

	// codec round trip through the API
	record, err := cli.Encode(proof.Artifact)
	c.Assert(err, qt.IsNil)
	c.Assert(record, qt.DeepEquals, proof.Proof)
	artifact, err := cli.Decode(record)
	c.Assert(err, qt.IsNil)
	c.Assert(artifact.Equal(proof.Artifact), qt.IsTrue)

	s, err = cli.Reset(s.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(s.State, qt.Equals, session.Ready)
	c.Assert(s.ArtifactID, qt.IsNil)

	c.Assert(cli.DeleteSession(s.ID), qt.IsNil)
	_, err = cli.Session(s.ID)
	c.Assert(errors.Is(err, api.ErrSessionNotFound), qt.IsTrue)
}

func TestClientUnreachable(t *testing.T) {
	c := qt.New(t)
	_, err := New("http://127.0.0.1:1")
	c.Assert(err, qt.ErrorMatches, `http request failed \(attempt 3 of 3\): .*`)
}

func TestClientSlowProof(t *testing.T) {
	c := qt.New(t)
	slow := &slowBackend{delay: time.Second}
	cli, _ := testClient(c, slow)
	// only the lookups are bounded by this timeout
	cli.SetTimeout(300 * time.Millisecond)

	s, err := cli.NewSession()
	c.Assert(err, qt.IsNil)
	_, err = cli.Initialize(s.ID)
	c.Assert(err, qt.IsNil)

	proof, err := cli.CreateProof(s.ID, "3", "4")
	c.Assert(err, qt.IsNil)
	c.Assert(proof.Artifact.IsEmpty(), qt.IsFalse)
	c.Assert(slow.proofs.Load(), qt.Equals, int32(1))

	// a proof that outlives the operation timeout is not sent again
	cli.SetOperationTimeout(300 * time.Millisecond)
	_, err = cli.CreateProof(s.ID, "5", "6")
	c.Assert(err, qt.ErrorMatches, `http request failed \(attempt 1 of 3\): .*`)
	time.Sleep(2 * slow.delay)
	c.Assert(slow.proofs.Load(), qt.Equals, int32(2))

	// the server kept the proof the client gave up on
	cli.SetOperationTimeout(0)
	valid, err := cli.VerifyProof(s.ID, "11")
	c.Assert(err, qt.IsNil)
	c.Assert(valid, qt.IsTrue)
}

func TestClientRetries(t *testing.T) {
	c := qt.New(t)
	cli, a := testClient(c, sumLoader)
	cli.SetRetries(2)
	s, err := cli.NewSession()
	c.Assert(err, qt.IsNil)
	c.Assert(a.Close(context.Background()), qt.IsNil)
	cli.c.CloseIdleConnections()

	// the server is gone, so the connection is refused and the operation
	// can be sent again
	_, err = cli.Initialize(s.ID)
	c.Assert(err, qt.ErrorMatches, `http request failed \(attempt 2 of 2\): .*`)
	_, err = cli.Session(s.ID)
	c.Assert(err, qt.ErrorMatches, `http request failed \(attempt 2 of 2\): .*`)

	cli.SetRetries(0)
	_, err = cli.Session(s.ID)
	c.Assert(err, qt.ErrorMatches, `http request failed \(attempt 1 of 1\): .*`)
}
