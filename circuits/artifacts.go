package circuits

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vocdoni/groth16-session/log"
	"github.com/vocdoni/groth16-session/types"
)

// CheckHashes determines if the hashes of the artifacts are checked when
// they are loaded or downloaded. It can be disabled by setting the
// ZKSESSION_CHECK_HASHES environment variable to false or 0.
var CheckHashes = true

// BaseDir is the path of the local artifact cache. Defaults to the env var
// ZKSESSION_ARTIFACTS_DIR or to a folder in the user cache directory.
var BaseDir string

// downloadProgressInterval is the period between download progress logs.
var downloadProgressInterval = 10 * time.Second

func init() {
	if checkHashes := os.Getenv("ZKSESSION_CHECK_HASHES"); checkHashes != "" {
		if strings.ToLower(checkHashes) == "false" || checkHashes == "0" {
			CheckHashes = false
		}
	}
	if dir := os.Getenv("ZKSESSION_ARTIFACTS_DIR"); dir != "" {
		BaseDir = dir
		return
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		BaseDir = filepath.Join(os.TempDir(), "zksession-artifacts")
		return
	}
	BaseDir = filepath.Join(home, ".cache", "zksession-artifacts")
}

// Artifact holds the remote URL, the sha256 hash and the content of a
// circuit artifact. The content is loaded from the local cache or
// downloaded from the remote URL, checking its hash in both cases.
type Artifact struct {
	RemoteURL string
	Hash      types.HexBytes
	Content   []byte
}

// Load loads the artifact content from the local cache. If it is not
// there and a remote URL is set, the artifact is downloaded first. It
// returns an error if the content can not be found or its hash does not
// match.
func (k *Artifact) Load(ctx context.Context) error {
	if len(k.Content) != 0 {
		return nil
	}
	if len(k.Hash) == 0 {
		return fmt.Errorf("artifact hash not provided")
	}
	content, err := load(k.Hash)
	if err != nil {
		return err
	}
	if content == nil {
		if k.RemoteURL == "" {
			return fmt.Errorf("artifact %x not found in %s and remote url not provided", []byte(k.Hash), BaseDir)
		}
		if err := k.Download(ctx); err != nil {
			return err
		}
		if content, err = load(k.Hash); err != nil {
			return err
		}
		if content == nil {
			return fmt.Errorf("no content found after download")
		}
	}
	k.Content = content
	return nil
}

// Download downloads the artifact content from the remote URL, checks its
// hash and stores it in the local cache.
func (k *Artifact) Download(ctx context.Context) error {
	if k.RemoteURL == "" {
		return fmt.Errorf("remote url not provided")
	}
	return downloadAndStore(ctx, k.Hash, k.RemoteURL)
}

// CircuitArtifacts holds the artifacts of a circuit: the compiled
// constraint system, the proving key and the verifying key.
type CircuitArtifacts struct {
	circuitDefinition *Artifact
	provingKey        *Artifact
	verifyingKey      *Artifact
}

// NewCircuitArtifacts creates a new CircuitArtifacts with the artifacts
// provided.
func NewCircuitArtifacts(circuit, provingKey, verifyingKey *Artifact) *CircuitArtifacts {
	return &CircuitArtifacts{
		circuitDefinition: circuit,
		provingKey:        provingKey,
		verifyingKey:      verifyingKey,
	}
}

// LoadAll loads every artifact into memory, downloading the missing ones.
func (ca *CircuitArtifacts) LoadAll(ctx context.Context) error {
	if ca.circuitDefinition != nil {
		if err := ca.circuitDefinition.Load(ctx); err != nil {
			return fmt.Errorf("error loading circuit definition: %w", err)
		}
	}
	if ca.provingKey != nil {
		if err := ca.provingKey.Load(ctx); err != nil {
			return fmt.Errorf("error loading proving key: %w", err)
		}
	}
	if ca.verifyingKey != nil {
		if err := ca.verifyingKey.Load(ctx); err != nil {
			return fmt.Errorf("error loading verifying key: %w", err)
		}
	}
	return nil
}

// DownloadAll downloads every artifact with a remote URL into the local
// cache.
func (ca *CircuitArtifacts) DownloadAll(ctx context.Context) error {
	for name, a := range map[string]*Artifact{
		"circuit definition": ca.circuitDefinition,
		"proving key":        ca.provingKey,
		"verifying key":      ca.verifyingKey,
	} {
		if a == nil || a.RemoteURL == "" {
			continue
		}
		if err := a.Download(ctx); err != nil {
			return fmt.Errorf("error downloading %s: %w", name, err)
		}
	}
	return nil
}

// CircuitDefinition returns the content of the circuit definition, nil if
// it is not loaded.
func (ca *CircuitArtifacts) CircuitDefinition() []byte {
	if ca.circuitDefinition == nil {
		return nil
	}
	return ca.circuitDefinition.Content
}

// ProvingKey returns the content of the proving key, nil if it is not
// loaded.
func (ca *CircuitArtifacts) ProvingKey() []byte {
	if ca.provingKey == nil {
		return nil
	}
	return ca.provingKey.Content
}

// VerifyingKey returns the content of the verifying key, nil if it is not
// loaded.
func (ca *CircuitArtifacts) VerifyingKey() []byte {
	if ca.verifyingKey == nil {
		return nil
	}
	return ca.verifyingKey.Content
}

// CircuitDefinitionHash returns the hash of the circuit definition.
func (ca *CircuitArtifacts) CircuitDefinitionHash() types.HexBytes {
	if ca.circuitDefinition == nil {
		return nil
	}
	return ca.circuitDefinition.Hash
}

// ProvingKeyHash returns the hash of the proving key.
func (ca *CircuitArtifacts) ProvingKeyHash() types.HexBytes {
	if ca.provingKey == nil {
		return nil
	}
	return ca.provingKey.Hash
}

// VerifyingKeyHash returns the hash of the verifying key.
func (ca *CircuitArtifacts) VerifyingKeyHash() types.HexBytes {
	if ca.verifyingKey == nil {
		return nil
	}
	return ca.verifyingKey.Hash
}

// Store writes the content into the local cache and returns its hash, that
// is also the name of the file.
func Store(content []byte) (types.HexBytes, error) {
	if err := os.MkdirAll(BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating the base directory: %w", err)
	}
	hash := sha256.Sum256(content)
	path := filepath.Join(BaseDir, hex.EncodeToString(hash[:]))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("error writing artifact %s: %w", path, err)
	}
	return hash[:], nil
}

func load(hash []byte) ([]byte, error) {
	if err := os.MkdirAll(BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating the base directory: %w", err)
	}
	path := filepath.Join(BaseDir, hex.EncodeToString(hash))
	content, err := os.ReadFile(path)
	if err != nil {
		// a missing file is not an error, the caller decides what to do
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}
	if CheckHashes {
		fileHash := sha256.Sum256(content)
		if !bytes.Equal(fileHash[:], hash) {
			return nil, fmt.Errorf("hash mismatch for file %s: expected %x, got %x", path, hash, fileHash)
		}
	}
	return content, nil
}

// progressReader wraps an io.Reader and keeps track of the total bytes read.
type progressReader struct {
	reader        io.Reader
	total         int64 // updated atomically
	contentLength int64
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	atomic.AddInt64(&pr.total, int64(n))
	return n, err
}

// downloadAndStore downloads a file from a URL and stores it in the local
// cache, resuming partial downloads when the server supports ranges.
func downloadAndStore(ctx context.Context, expectedHash []byte, fileURL string) error {
	if _, err := url.Parse(fileURL); err != nil {
		return fmt.Errorf("error parsing the file URL provided: %w", err)
	}
	if err := os.MkdirAll(BaseDir, 0o755); err != nil {
		return fmt.Errorf("error creating the base directory: %w", err)
	}
	path := filepath.Join(BaseDir, hex.EncodeToString(expectedHash))
	partialPath := path + ".partial"

	var startByte int64
	if info, err := os.Stat(partialPath); err == nil {
		startByte = info.Size()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("error creating the file request: %w", err)
	}
	if startByte > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", startByte))
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("error performing the request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("error downloading file %s: http status: %d", fileURL, res.StatusCode)
	}
	// a full response means the server ignored the range, start over
	fileMode := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if startByte > 0 && res.StatusCode == http.StatusPartialContent {
		fileMode = os.O_APPEND | os.O_WRONLY
	} else {
		startByte = 0
	}
	hasher := sha256.New()
	if startByte > 0 {
		existing, err := os.ReadFile(partialPath)
		if err != nil {
			return fmt.Errorf("error reading partial download: %w", err)
		}
		hasher.Write(existing)
	}
	fd, err := os.OpenFile(partialPath, fileMode, 0o644)
	if err != nil {
		return fmt.Errorf("error opening artifact file: %w", err)
	}
	defer fd.Close()

	pr := &progressReader{
		reader:        res.Body,
		contentLength: res.ContentLength + startByte,
	}
	mw := io.MultiWriter(fd, hasher)
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(mw, pr)
		done <- err
	}()
	ticker := time.NewTicker(downloadProgressInterval)
	defer ticker.Stop()
	for waiting := true; waiting; {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("error copying data to file: %w", err)
			}
			waiting = false
		case <-ticker.C:
			total := atomic.LoadInt64(&pr.total) + startByte
			var percentage float64
			if pr.contentLength > 0 {
				percentage = (float64(total) / float64(pr.contentLength)) * 100
			}
			log.Debugw("download artifacts", "url", fileURL,
				"downloaded", fmt.Sprintf("%.2fMiB", float64(total)/(1024*1024)),
				"progress", fmt.Sprintf("%.2f%%", percentage))
		}
	}
	if CheckHashes {
		computedHash := hasher.Sum(nil)
		if !bytes.Equal(computedHash, expectedHash) {
			_ = os.Remove(partialPath)
			return fmt.Errorf("hash mismatch: expected %x, got %x", expectedHash, computedHash)
		}
	}
	if err := fd.Close(); err != nil {
		return fmt.Errorf("error closing artifact file: %w", err)
	}
	if err := os.Rename(partialPath, path); err != nil {
		return fmt.Errorf("error renaming file: %w", err)
	}
	log.Infow("artifact downloaded", "url", fileURL, "hash", hex.EncodeToString(expectedHash))
	return nil
}
