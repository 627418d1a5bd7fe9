package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) HttpClientWrapper {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	base, err := url.Parse(srv.URL + "/api/rest/latest/")
	require.NoError(t, err)
	client := &http.Client{Transport: NewBasicAuthTransport("admin", "secret", nil, logger)}
	c, err := NewHttpClientWrapper(client, *base, logger)
	require.NoError(t, err)
	return c
}

func TestDoJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "/api/rest/latest/calendarevents", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Standup", body["title"])

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": 7}`)
	})

	var out struct {
		ID int64 `json:"id"`
	}
	resp, err := c.DoJSON(context.Background(), http.MethodPost, "calendarevents", map[string]any{"title": "Standup"}, &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int64(7), out.ID)
}

func TestDoJSON_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		validation bool
	}{
		{"validation", http.StatusBadRequest, `{"code":400,"message":"Validation Failed","errors":{"children":{"title":["This value should not be blank."]}}}`, "Validation Failed", true},
		{"malformed", http.StatusBadRequest, `{"code":400,"message":"invalid JSON body"}`, "invalid JSON body", false},
		{"forbidden", http.StatusForbidden, `{"code":403,"message":"You have no access to this calendar."}`, "You have no access to this calendar.", false},
		{"plain text", http.StatusBadGateway, `upstream down`, "Bad Gateway", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.DoJSON(context.Background(), http.MethodGet, "calendarevents/1", nil, nil)
			var rerr *ResponseError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, tt.status, rerr.StatusCode)
			assert.Equal(t, tt.wantMsg, rerr.Message)
			assert.Equal(t, tt.validation, rerr.IsValidation())
		})
	}
}

func TestDoRaw(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/calendar", r.Header.Get("Accept"))
		if r.URL.Path == "/api/rest/latest/calendarevents/404" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"code":404,"message":"Event not found"}`)
			return
		}
		_, _ = io.WriteString(w, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	})

	data, err := c.DoRaw(context.Background(), http.MethodGet, "calendarevents/1", "text/calendar")
	require.NoError(t, err)
	assert.Contains(t, string(data), "BEGIN:VCALENDAR")

	_, err = c.DoRaw(context.Background(), http.MethodGet, "calendarevents/404", "text/calendar")
	var rerr *ResponseError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "Event not found", rerr.Message)
}

func TestBasicAuthTransport_DoesNotModifyRequest(t *testing.T) {
	var seen string
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r.Header.Get("Authorization")
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Header: http.Header{}}, nil
	})
	tr := NewBasicAuthTransport("admin", "secret", rt, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	_, err := tr.RoundTrip(req)
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.Empty(t, req.Header.Get("Authorization"))

	_, err = NewBasicAuthTransport("", "secret", rt, nil).RoundTrip(req)
	assert.Error(t, err)
}

func TestNewHttpClientWrapper_RequiresLogger(t *testing.T) {
	_, err := NewHttpClientWrapper(nil, url.URL{}, nil)
	assert.Error(t, err)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
