// Package config holds the configuration of the proof session service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/vocdoni/groth16-session/circuits"
	"github.com/vocdoni/groth16-session/session"
	"github.com/vocdoni/groth16-session/types"
)

const (
	// DefaultHost is the default listen address of the API.
	DefaultHost = "0.0.0.0"
	// DefaultPort is the default listen port of the API.
	DefaultPort = 9090
	// DefaultCircuit is the circuit proved by default.
	DefaultCircuit = "sum"
	// DefaultDownloadTimeout is the default time limit to download the
	// circuit artifacts.
	DefaultDownloadTimeout = 5 * time.Minute

	// BusyPolicyReject makes the operations on a busy session fail.
	BusyPolicyReject = "reject"
	// BusyPolicyQueue makes the operations on a busy session wait.
	BusyPolicyQueue = "queue"
)

// Config is the configuration of the service. It is loaded from flags,
// environment variables and an optional config file.
type Config struct {
	LogLevel  string `mapstructure:"logLevel"`
	LogOutput string `mapstructure:"logOutput"`

	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	BusyPolicy  string `mapstructure:"busyPolicy"`
	MaxSessions int    `mapstructure:"maxSessions"`

	Circuit         string          `mapstructure:"circuit"`
	ArtifactsDir    string          `mapstructure:"artifactsDir"`
	DownloadTimeout time.Duration   `mapstructure:"downloadTimeout"`
	Artifacts       ArtifactsConfig `mapstructure:"artifacts"`
}

// ArtifactsConfig locates the artifacts of a fixed circuit setup. Each
// artifact is identified by its sha256 hash and can optionally be
// downloaded from a remote URL. If no hash is set, a local setup is
// generated on start.
type ArtifactsConfig struct {
	CircuitURL       string `mapstructure:"circuitURL"`
	CircuitHash      string `mapstructure:"circuitHash"`
	ProvingKeyURL    string `mapstructure:"provingKeyURL"`
	ProvingKeyHash   string `mapstructure:"provingKeyHash"`
	VerifyingKeyURL  string `mapstructure:"verifyingKeyURL"`
	VerifyingKeyHash string `mapstructure:"verifyingKeyHash"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		LogLevel:        "info",
		LogOutput:       "stdout",
		Host:            DefaultHost,
		Port:            DefaultPort,
		BusyPolicy:      BusyPolicyReject,
		Circuit:         DefaultCircuit,
		DownloadTimeout: DefaultDownloadTimeout,
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("invalid max sessions %d", c.MaxSessions)
	}
	if _, err := c.SessionBusyPolicy(); err != nil {
		return err
	}
	if c.Circuit == "" {
		return fmt.Errorf("circuit not provided")
	}
	if _, err := c.CircuitArtifacts(); err != nil {
		return err
	}
	return nil
}

// SessionBusyPolicy returns the session.BusyPolicy configured.
func (c *Config) SessionBusyPolicy() (session.BusyPolicy, error) {
	switch strings.ToLower(c.BusyPolicy) {
	case "", BusyPolicyReject:
		return session.RejectWhenBusy, nil
	case BusyPolicyQueue:
		return session.QueueWhenBusy, nil
	default:
		return session.RejectWhenBusy, fmt.Errorf("invalid busy policy %q, expected %q or %q",
			c.BusyPolicy, BusyPolicyReject, BusyPolicyQueue)
	}
}

// CircuitArtifacts returns the artifacts configured, or nil if none is.
// The hashes of the three artifacts must be provided together.
func (c *Config) CircuitArtifacts() (*circuits.CircuitArtifacts, error) {
	a := c.Artifacts
	set := 0
	for _, h := range []string{a.CircuitHash, a.ProvingKeyHash, a.VerifyingKeyHash} {
		if h != "" {
			set++
		}
	}
	switch set {
	case 0:
		return nil, nil
	case 3:
	default:
		return nil, fmt.Errorf("the circuit, proving key and verifying key hashes must be set together")
	}
	circuit, err := artifact("circuit", a.CircuitURL, a.CircuitHash)
	if err != nil {
		return nil, err
	}
	provingKey, err := artifact("proving key", a.ProvingKeyURL, a.ProvingKeyHash)
	if err != nil {
		return nil, err
	}
	verifyingKey, err := artifact("verifying key", a.VerifyingKeyURL, a.VerifyingKeyHash)
	if err != nil {
		return nil, err
	}
	return circuits.NewCircuitArtifacts(circuit, provingKey, verifyingKey), nil
}

func artifact(name, url, hash string) (*circuits.Artifact, error) {
	h, err := types.HexStringToHexBytes(hash)
	if err != nil {
		return nil, fmt.Errorf("invalid %s hash: %w", name, err)
	}
	if len(h) != 32 {
		return nil, fmt.Errorf("invalid %s hash: expected 32 bytes, got %d", name, len(h))
	}
	return &circuits.Artifact{RemoteURL: url, Hash: h}, nil
}
