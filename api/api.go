package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/vocdoni/groth16-session/backend"
	"github.com/vocdoni/groth16-session/log"
	"github.com/vocdoni/groth16-session/session"
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host string
	Port int
	// Loader acquires the backend of the sessions. It is shared by all of
	// them, so it should be a backend.Cached loader.
	Loader backend.Loader
	// BusyPolicy is applied to the operations issued on a busy session.
	BusyPolicy session.BusyPolicy
	// MaxSessions limits the number of live sessions, zero means no limit.
	MaxSessions int
	// RequestTimeout bounds the requests that do not run a session
	// operation, DefaultRequestTimeout if zero. Session operations have no
	// deadline and end when the operation does or the client goes away.
	RequestTimeout time.Duration
}

// DefaultRequestTimeout is the RequestTimeout used when none is configured.
const DefaultRequestTimeout = 45 * time.Second

// API type represents the API HTTP server that exposes the proof sessions
// and the proof codec.
type API struct {
	router   *chi.Mux
	server   *http.Server
	listener net.Listener
	conf     APIConfig

	sessionsMu sync.RWMutex
	sessions   map[uuid.UUID]*session.Session
}

// New creates a new API instance with the given configuration and starts
// the HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Loader == nil {
		return nil, fmt.Errorf("missing backend loader")
	}
	a := &API{
		conf:     *conf,
		sessions: make(map[uuid.UUID]*session.Session),
	}
	if a.conf.RequestTimeout <= 0 {
		a.conf.RequestTimeout = DefaultRequestTimeout
	}

	// Initialize router
	a.initRouter()

	listener, err := net.Listen("tcp", net.JoinHostPort(conf.Host, fmt.Sprint(conf.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s:%d: %w", conf.Host, conf.Port, err)
	}
	a.listener = listener
	a.server = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "address", listener.Addr().String())
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server failed")
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// Addr returns the address the API server listens on.
func (a *API) Addr() net.Addr {
	return a.listener.Addr()
}

// Close gracefully shuts down the HTTP server and drops every session.
func (a *API) Close(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	a.sessionsMu.Lock()
	a.sessions = make(map[uuid.UUID]*session.Session)
	a.sessionsMu.Unlock()
	return err
}

// registerHandlers registers all the API handlers. The session operations
// are not bounded by the request timeout.
func (a *API) registerHandlers() {
	a.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(a.conf.RequestTimeout))
		log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
		r.Get(PingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
			httpWriteOK(w)
		})
		// sessions
		log.Infow("register handler", "endpoint", SessionsEndpoint, "method", "POST")
		r.Post(SessionsEndpoint, a.newSession)
		log.Infow("register handler", "endpoint", SessionEndpoint, "method", "GET")
		r.Get(SessionEndpoint, a.getSession)
		log.Infow("register handler", "endpoint", SessionEndpoint, "method", "DELETE")
		r.Delete(SessionEndpoint, a.deleteSession)
		// codec
		log.Infow("register handler", "endpoint", CodecEncodeEndpoint, "method", "POST")
		r.Post(CodecEncodeEndpoint, a.encodeArtifact)
		log.Infow("register handler", "endpoint", CodecDecodeEndpoint, "method", "POST")
		r.Post(CodecDecodeEndpoint, a.decodeRecord)
		log.Infow("register handler", "endpoint", CodecSnarkJSEndpoint, "method", "POST")
		r.Post(CodecSnarkJSEndpoint, a.importSnarkJS)
	})
	// session operations
	a.router.Group(func(r chi.Router) {
		log.Infow("register handler", "endpoint", SessionInitEndpoint, "method", "POST")
		r.Post(SessionInitEndpoint, a.initSession)
		log.Infow("register handler", "endpoint", SessionProofEndpoint, "method", "POST")
		r.Post(SessionProofEndpoint, a.createProof)
		log.Infow("register handler", "endpoint", SessionVerifyEndpoint, "method", "POST")
		r.Post(SessionVerifyEndpoint, a.verifyProof)
		log.Infow("register handler", "endpoint", SessionResetEndpoint, "method", "POST")
		r.Post(SessionResetEndpoint, a.resetSession)
	})
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))

	// Register the API handlers
	a.registerHandlers()
}
