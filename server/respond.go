package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cyp0633/calrest/server/events"
	"github.com/emersion/go-ical"
)

const (
	// HTTP headers
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	headerAllow       = "Allow"
	headerLocation    = "Location"

	// MIME types
	mimeTypeJSON     = "application/json"
	mimeTypeXML      = "application/xml; charset=utf-8"
	mimeTypeCalendar = "text/calendar; charset=utf-8"
)

// negotiate picks the response format: an explicit path suffix wins, then
// the Accept header, then JSON.
func negotiate(r *http.Request, res Resource) Format {
	if res.Format != "" {
		return res.Format
	}
	for _, part := range strings.Split(r.Header.Get(headerAccept), ",") {
		mediaType, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		switch strings.ToLower(strings.TrimSpace(mediaType)) {
		case "application/json":
			return FormatJSON
		case "application/xml", "text/xml":
			return FormatXML
		case "text/calendar":
			if res.Kind == ResourceEvent {
				return FormatICS
			}
		}
	}
	return FormatJSON
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, mimeTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("failed to encode json response",
			"status", status,
			"error", err)
	}
}

// writeError sends the {code, message} body used for every failure except
// form validation.
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{
		"code":    status,
		"message": message,
	})
}

func (h *Handler) write(w http.ResponseWriter, status int, format Format, root string, v any) {
	if format != FormatXML {
		h.writeJSON(w, status, v)
		return
	}
	doc, err := encodeXML(root, v)
	if err != nil {
		h.Logger.Error("failed to encode xml response",
			"error", err)
		h.writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	w.Header().Set(headerContentType, mimeTypeXML)
	w.WriteHeader(status)
	_, _ = doc.WriteTo(w)
}

func (h *Handler) writeCalendar(w http.ResponseWriter, cal *ical.Calendar) {
	var buf strings.Builder
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		h.Logger.Error("failed to encode calendar",
			"error", err)
		h.writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	w.Header().Set(headerContentType, mimeTypeCalendar)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, buf.String())
}

// writeServiceError maps service errors to responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *events.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusBadRequest, verr.Envelope())
		return
	}

	var e *events.Error
	if errors.As(err, &e) {
		status := http.StatusInternalServerError
		switch e.Type {
		case events.ErrNotFound:
			status = http.StatusNotFound
		case events.ErrForbidden:
			status = http.StatusForbidden
		case events.ErrBadRequest:
			status = http.StatusBadRequest
		}
		h.Logger.Info("request refused",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"reason", e.Message)
		h.writeError(w, status, e.Message)
		return
	}

	h.Logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err)
	h.writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

var errNotObject = errors.New("request body must be a JSON object")

// decodeBody reads a JSON object. Numbers are kept as json.Number.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	body := http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid JSON body: trailing data")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}
