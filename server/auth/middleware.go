package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

type contextKey string

const (
	// PrincipalContextKey is the context key for the authenticated principal
	PrincipalContextKey contextKey = "principal"
)

// GetPrincipalFromContext retrieves the authenticated principal from the context
func GetPrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(PrincipalContextKey).(*Principal); ok {
		return p
	}
	return nil
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// Config configures Middleware.
type Config struct {
	Realm string
	// PublicPaths are served without credentials.
	PublicPaths []string
	Logger      *slog.Logger
}

// Middleware creates HTTP middleware that enforces Basic authentication
func Middleware(authenticator Authenticator, cfg Config) func(http.Handler) http.Handler {
	if cfg.Realm == "" {
		cfg.Realm = "calrest"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range cfg.PublicPaths {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				requestAuth(w, cfg.Realm)
				return
			}

			creds, err := parseBasicAuth(authHeader)
			if err != nil {
				cfg.Logger.Debug("rejecting malformed credentials", "error", err)
				requestAuth(w, cfg.Realm)
				return
			}

			principal, err := authenticator.Authenticate(r.Context(), creds)
			if err != nil {
				if IsType(err, ErrInvalidCredentials) {
					cfg.Logger.Info("authentication failed", "username", creds.Username)
				} else {
					cfg.Logger.Error("authenticator error", "username", creds.Username, "error", err)
				}
				requestAuth(w, cfg.Realm)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// requestAuth sends WWW-Authenticate header and a JSON error body
func requestAuth(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    http.StatusUnauthorized,
		"message": "Unauthorized",
	})
}

// parseBasicAuth parses an HTTP Basic Authentication string
func parseBasicAuth(auth string) (Credentials, error) {
	const prefix = "Basic "
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return Credentials{}, &Error{
			Type:    ErrMalformedHeader,
			Message: "invalid authorization header format",
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(auth[len(prefix):]))
	if err != nil {
		return Credentials{}, &Error{
			Type:    ErrMalformedHeader,
			Message: "invalid base64 encoding",
			Err:     err,
		}
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return Credentials{}, &Error{
			Type:    ErrMalformedHeader,
			Message: "invalid credentials format",
		}
	}

	return Credentials{Username: username, Password: password}, nil
}
