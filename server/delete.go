package server

import (
	"net/http"
)

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, ctx *RequestContext) {
	h.Logger.Info("delete request received",
		"event_id", ctx.Resource.EventID,
		"user_id", ctx.Principal.UserID)

	if err := h.Service.Delete(r.Context(), ctx.Principal, ctx.Resource.EventID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.Logger.Info("event deleted successfully",
		"event_id", ctx.Resource.EventID)
	w.WriteHeader(http.StatusNoContent)
}
