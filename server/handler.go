package server

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cyp0633/calrest/server/auth"
	"github.com/cyp0633/calrest/server/events"
)

const defaultMaxBodyBytes = 1 << 20

// RequestContext holds parsed information about the incoming request.
type RequestContext struct {
	Resource  Resource
	Principal *auth.Principal
	Format    Format
}

// Handler serves the calendar event API under a prefix. It expects the
// authenticated principal on the request context (see auth.Middleware).
type Handler struct {
	Prefix       string // e.g., "/api/rest/latest/"
	Service      *events.Service
	URLConverter URLConverter
	Logger       *slog.Logger
	// MaxBodyBytes limits request bodies.
	MaxBodyBytes int64
}

// NewHandler creates a new Handler.
func NewHandler(prefix string, svc *events.Service, converter URLConverter, logger *slog.Logger) *Handler {
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	if converter == nil {
		converter = &DefaultURLConverter{Prefix: prefix}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		Prefix:       prefix,
		Service:      svc,
		URLConverter: converter,
		Logger:       logger,
		MaxBodyBytes: defaultMaxBodyBytes,
	}
}

// ServeHTTP parses the path and routes on resource kind and method.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("received request",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	resource, err := h.URLConverter.ParsePath(r.URL.Path)
	if err != nil {
		h.Logger.Debug("error parsing path",
			"path", r.URL.Path,
			"error", err)
		h.writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	ctx := &RequestContext{
		Resource:  resource,
		Principal: principal,
		Format:    negotiate(r, resource),
	}

	h.Logger.Debug("parsed path",
		"kind", resource.Kind,
		"event_id", resource.EventID,
		"format", ctx.Format,
		"user_id", principal.UserID)

	switch resource.Kind {
	case ResourceCollection:
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r, ctx)
		case http.MethodPost:
			h.handleCreate(w, r, ctx)
		default:
			h.methodNotAllowed(w, r, "GET, POST")
		}
	case ResourceEvent:
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, ctx)
		case http.MethodPut:
			h.handleUpdate(w, r, ctx)
		case http.MethodDelete:
			h.handleDelete(w, r, ctx)
		default:
			h.methodNotAllowed(w, r, "GET, PUT, DELETE")
		}
	case ResourceInvitation:
		if r.Method != http.MethodPost {
			h.methodNotAllowed(w, r, "POST")
			return
		}
		h.handleInvitation(w, r, ctx)
	default:
		h.writeError(w, http.StatusNotFound, "Not Found")
	}
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request, allow string) {
	h.Logger.Warn("method not allowed",
		"method", r.Method,
		"path", r.URL.Path)
	w.Header().Set(headerAllow, allow)
	h.writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}
