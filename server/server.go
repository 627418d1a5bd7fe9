package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/cyp0633/calrest/server/auth"
	"github.com/cyp0633/calrest/server/events"
)

const (
	// DefaultBaseURI is the path the API is mounted under.
	DefaultBaseURI = "/api/rest/latest/"
	// HealthPath answers liveness probes without credentials.
	HealthPath = "/healthz"
)

// Options configures a Server.
type Options struct {
	BaseURI      string
	Realm        string
	Logger       *slog.Logger
	MaxBodyBytes int64
}

// Server is the calendar event API with authentication in front of it.
type Server struct {
	handler *Handler
	root    http.Handler
}

// New creates a server over svc, checking credentials with authenticator.
func New(svc *events.Service, authenticator auth.Authenticator, opts Options) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("event service is required")
	}
	if authenticator == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if opts.BaseURI == "" {
		opts.BaseURI = DefaultBaseURI
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	h := NewHandler(opts.BaseURI, svc, nil, opts.Logger)
	if opts.MaxBodyBytes > 0 {
		h.MaxBodyBytes = opts.MaxBodyBytes
	}

	mux := http.NewServeMux()
	mux.Handle(h.Prefix, h)
	mux.HandleFunc("GET "+HealthPath, func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, "Not Found")
	})

	root := auth.Middleware(authenticator, auth.Config{
		Realm:       opts.Realm,
		PublicPaths: []string{HealthPath},
		Logger:      opts.Logger,
	})(mux)

	return &Server{handler: h, root: root}, nil
}

// Handler returns the API handler without authentication.
func (s *Server) Handler() *Handler {
	return s.handler
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.root.ServeHTTP(w, r)
}
