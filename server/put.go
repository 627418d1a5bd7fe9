package server

import (
	"net/http"
)

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, ctx *RequestContext) {
	h.Logger.Info("put request received",
		"event_id", ctx.Resource.EventID,
		"user_id", ctx.Principal.UserID)

	payload, err := h.decodeBody(w, r)
	if err != nil {
		h.Logger.Warn("invalid request body",
			"error", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Service.Update(r.Context(), ctx.Principal, ctx.Resource.EventID, payload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.Logger.Info("event updated successfully",
		"event_id", ctx.Resource.EventID)
	h.write(w, http.StatusOK, ctx.Format, "calendarevent", res)
}
