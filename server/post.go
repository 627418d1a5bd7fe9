package server

import (
	"net/http"
)

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request, ctx *RequestContext) {
	h.Logger.Info("post request received",
		"user_id", ctx.Principal.UserID)

	payload, err := h.decodeBody(w, r)
	if err != nil {
		h.Logger.Warn("invalid request body",
			"error", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Service.Create(r.Context(), ctx.Principal, payload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	location, err := h.URLConverter.EncodePath(Resource{Kind: ResourceEvent, EventID: res.ID})
	if err != nil {
		// the id comes from storage, should not fail
		h.Logger.Error("unexpected error encoding path",
			"error", err,
			"event_id", res.ID)
	} else {
		w.Header().Set(headerLocation, location)
	}

	h.Logger.Info("event created successfully",
		"event_id", res.ID,
		"location", location)
	h.write(w, http.StatusCreated, ctx.Format, "calendarevent", res)
}

func (h *Handler) handleInvitation(w http.ResponseWriter, r *http.Request, ctx *RequestContext) {
	h.Logger.Info("invitation request received",
		"event_id", ctx.Resource.EventID,
		"status", ctx.Resource.Status,
		"user_id", ctx.Principal.UserID)

	res, err := h.Service.SetInvitationStatus(r.Context(), ctx.Principal, ctx.Resource.EventID, ctx.Resource.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.write(w, http.StatusOK, ctx.Format, "invitation", res)
}
