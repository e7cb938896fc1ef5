package service

import (
	"context"
	"time"

	"github.com/vocdoni/groth16-session/circuits"
	"golang.org/x/sync/errgroup"
)

// DownloadArtifacts downloads the artifacts of all the circuits provided
// concurrently.
func DownloadArtifacts(timeout time.Duration, artifacts ...*circuits.CircuitArtifacts) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for _, a := range artifacts {
		if a == nil {
			continue
		}
		g.Go(func() error {
			return a.DownloadAll(ctx)
		})
	}
	return g.Wait()
}
