package server

import (
	"net/http"

	"github.com/cyp0633/calrest/server/auth"
)

// principal returns the authenticated principal of r, or sends a 401 when
// the handler is mounted without auth.Middleware in front of it.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p := auth.GetPrincipalFromContext(r.Context())
	if p == nil {
		h.Logger.Info("authentication required - no principal on request",
			"path", r.URL.Path)
		h.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return p, true
}
