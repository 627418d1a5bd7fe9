package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, ctx *RequestContext) {
	h.Logger.Info("get request received",
		"event_id", ctx.Resource.EventID,
		"format", ctx.Format,
		"user_id", ctx.Principal.UserID)

	if ctx.Format == FormatICS {
		cal, err := h.Service.Export(r.Context(), ctx.Principal, ctx.Resource.EventID)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		h.writeCalendar(w, cal)
		return
	}

	rec, err := h.Service.Get(r.Context(), ctx.Principal, ctx.Resource.EventID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.write(w, http.StatusOK, ctx.Format, "calendarevent", rec)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, ctx *RequestContext) {
	q := r.URL.Query()
	h.Logger.Info("list request received",
		"calendar", q.Get("calendar"),
		"start", q.Get("start"),
		"end", q.Get("end"),
		"user_id", ctx.Principal.UserID)

	calendarID, start, end, err := parseRange(q)
	if err != nil {
		h.Logger.Warn("invalid list query",
			"error", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.Service.List(r.Context(), ctx.Principal, calendarID, start, end)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.write(w, http.StatusOK, ctx.Format, collectionSegment, records)
}

func parseRange(q url.Values) (calendarID int64, start, end time.Time, err error) {
	raw := q.Get("calendar")
	if raw == "" {
		return 0, start, end, fmt.Errorf("query parameter 'calendar' is required")
	}
	calendarID, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, start, end, fmt.Errorf("query parameter 'calendar' must be an integer")
	}
	if start, err = queryTime(q, "start"); err != nil {
		return 0, start, end, err
	}
	if end, err = queryTime(q, "end"); err != nil {
		return 0, start, end, err
	}
	return calendarID, start, end, nil
}

func queryTime(q url.Values, name string) (time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("query parameter '%s' is required", name)
	}
	// an unescaped "+" of the offset arrives as a space
	raw = strings.ReplaceAll(raw, " ", "+")
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("query parameter '%s' must be an RFC3339 timestamp", name)
	}
	return t, nil
}
