// Package backend is the boundary between proof sessions and the
// cryptographic engine. The engine is consumed only through a Loader, that
// acquires a Backend handle, and the Backend Prove and Verify operations.
package backend

import (
	"context"
	"math/big"
	"sync"

	"github.com/vocdoni/groth16-session/circuits"
	"github.com/vocdoni/groth16-session/codec"
)

// Backend is a loaded proving engine. Implementations are stateless once
// loaded and safe to share between sessions.
type Backend interface {
	// Layout returns the inputs expected by Prove and Verify.
	Layout() circuits.InputLayout
	// Prove builds a proof for the inputs provided and returns it as an
	// artifact.
	Prove(ctx context.Context, inputs []*big.Int) (codec.Artifact, error)
	// Verify checks the artifact against the public inputs. A proof that
	// does not hold returns false and a nil error; an error means that the
	// verification could not be evaluated.
	Verify(ctx context.Context, artifact codec.Artifact, publicInputs []*big.Int) (bool, error)
}

// Loader acquires a Backend.
type Loader interface {
	Load(ctx context.Context) (Backend, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (Backend, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context) (Backend, error) {
	return f(ctx)
}

// Cached wraps a Loader so the backend is loaded once and then shared by
// every caller. Failed loads are not cached, the next call retries.
type Cached struct {
	loader  Loader
	mu      sync.Mutex
	backend Backend
}

// NewCached returns a Cached loader around the one provided.
func NewCached(loader Loader) *Cached {
	return &Cached{loader: loader}
}

// Load implements Loader.
func (c *Cached) Load(ctx context.Context) (Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend != nil {
		return c.backend, nil
	}
	b, err := c.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.backend = b
	return b, nil
}
