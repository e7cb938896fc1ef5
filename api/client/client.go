package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"syscall"
	"time"

	"github.com/vocdoni/groth16-session/api"
	"github.com/vocdoni/groth16-session/log"
)

const (
	errCodeNot200 = "API error"

	// DefaultRetries is the number of attempts made for a request before
	// giving up.
	DefaultRetries = 3
	// DefaultTimeout bounds every request that does not run a session
	// operation.
	DefaultTimeout = 10 * time.Second

	retryDelay = 500 * time.Millisecond
)

// requestKind tells how a request can be retried and which timeout bounds
// it.
type requestKind int

const (
	// lookup requests have no side effects on the server, they are retried
	// after any transport error.
	lookup requestKind = iota
	// mutation requests change the sessions registry. They are retried only
	// when the server refused the connection.
	mutation
	// operation requests run a session operation. They are retried like
	// mutations and bounded by the operation timeout.
	operation
)

// HTTPclient is the proof session API HTTP client.
type HTTPclient struct {
	c         *http.Client
	host      *url.URL
	retries   int
	timeout   time.Duration
	opTimeout time.Duration
}

// New connects to the API host and returns the handle. It fails if the
// host does not answer the ping endpoint.
func New(host string) (*HTTPclient, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	c := &HTTPclient{
		c: &http.Client{Transport: &http.Transport{
			IdleConnTimeout: DefaultTimeout,
			WriteBufferSize: 1 * 1024 * 1024, // 1 MiB
			ReadBufferSize:  1 * 1024 * 1024, // 1 MiB
		}},
		host:    hostURL,
		retries: DefaultRetries,
		timeout: DefaultTimeout,
	}
	log.Debugw("http client created", "host", hostURL.String())
	data, status, err := c.request(lookup, http.MethodGet, nil, api.PingEndpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	return c, nil
}

// SetRetries configures the number of attempts made for a request. Values
// lower than one are taken as one.
func (c *HTTPclient) SetRetries(n int) {
	c.retries = max(n, 1)
}

// SetTimeout configures the timeout of the requests that do not run a
// session operation. Zero disables it.
func (c *HTTPclient) SetTimeout(d time.Duration) {
	c.timeout = d
}

// SetOperationTimeout configures the timeout of the session operations
// (initialize, create proof, verify and reset). Zero, the default, disables
// it.
func (c *HTTPclient) SetOperationTimeout(d time.Duration) {
	c.opTimeout = d
}

// request performs the request to the endpoint joined from urlPath, with
// jsonBody encoded as JSON if not nil, and returns the response body and
// status code. The kind decides the timeout and the retries applied.
func (c *HTTPclient) request(kind requestKind, method string, jsonBody any, urlPath ...string) ([]byte, int, error) {
	var body []byte
	if jsonBody != nil {
		var err error
		if body, err = json.Marshal(jsonBody); err != nil {
			return nil, 0, fmt.Errorf("failed to marshal JSON: %w", err)
		}
	}
	u := *c.host
	u.Path = path.Join(u.Path, path.Join(urlPath...))

	timeout := c.timeout
	if kind == operation {
		timeout = c.opTimeout
	}
	log.Debugw("http client request",
		"type", method,
		"url", u.String(),
		"timeout", timeout.String(),
		"body", func() string {
			if len(body) > 512 {
				return string(body[:512]) + "..."
			}
			return string(body)
		}(),
	)

	attempts := max(c.retries, 1)
	for attempt := 1; ; attempt++ {
		data, status, err := c.do(method, u.String(), body, timeout)
		if err == nil {
			return data, status, nil
		}
		if attempt >= attempts || !retriable(kind, err) {
			return nil, 0, fmt.Errorf("http request failed (attempt %d of %d): %w", attempt, attempts, err)
		}
		log.Warnw("http request failed, retrying", "error", err.Error(), "attempt", attempt, "retries", attempts)
		time.Sleep(retryDelay)
	}
}

// do performs a single attempt of a request.
func (c *HTTPclient) do(method, u string, body []byte, timeout time.Duration) ([]byte, int, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
	}
	resp, err := c.c.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, resp.StatusCode, nil
}

// retriable reports whether a request of the kind provided can be sent
// again after failing with err.
func retriable(kind requestKind, err error) bool {
	if kind == lookup {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
