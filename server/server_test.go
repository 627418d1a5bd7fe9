package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/cyp0633/calrest/server/auth"
	authmem "github.com/cyp0633/calrest/server/auth/memory"
	"github.com/cyp0633/calrest/server/events"
	"github.com/cyp0633/calrest/server/storage"
	"github.com/cyp0633/calrest/server/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = "/api/rest/latest/calendarevents"

type testServer struct {
	srv      *Server
	store    *memory.Store
	adminCal *storage.Calendar
	janeCal  *storage.Calendar
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	now := func() time.Time { return time.Date(2016, 10, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	store := memory.New(memory.WithClock(now))
	creds := authmem.New()
	ts := &testServer{store: store}

	add := func(username, email string) *storage.Calendar {
		u := &storage.User{Username: username, Email: email, DisplayName: username}
		require.NoError(t, store.CreateUser(ctx, u))
		c := &storage.Calendar{UserID: u.ID, Name: "Default", Default: true}
		require.NoError(t, store.CreateCalendar(ctx, c))
		require.NoError(t, creds.AddUser(username, username+"-secret", u.ID))
		return c
	}
	ts.adminCal = add("admin", "admin@example.com")
	ts.janeCal = add("jane", "jane@example.com")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := events.NewService(store, events.WithClock(now), events.WithLogger(logger))
	srv, err := New(svc, creds, Options{Realm: "Test Realm", Logger: logger})
	require.NoError(t, err)
	ts.srv = srv
	return ts
}

func (ts *testServer) do(t *testing.T, user, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if user != "" {
		req.SetBasicAuth(user, user+"-secret")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func regularEventJSON(calendarID int64) string {
	return fmt.Sprintf(`{
		"title": "Regular event",
		"description": "Test Description",
		"start": "2016-10-14T22:00:00+00:00",
		"end": "2016-10-14T23:00:00+00:00",
		"allDay": false,
		"calendar": %d,
		"backgroundColor": "#AC725E",
		"attendees": [{"displayName": "Jane", "email": "jane@example.com"}]
	}`, calendarID)
}

func (ts *testServer) create(t *testing.T, body string) int64 {
	t.Helper()
	rec := ts.do(t, "admin", http.MethodPost, base, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id, ok := decode(t, rec)["id"].(float64)
	require.True(t, ok)
	return int64(id)
}

func TestServer_Authentication(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "", http.MethodGet, HealthPath, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = ts.do(t, "", http.MethodGet, base+"/1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="Test Realm"`, rec.Header().Get("WWW-Authenticate"))
	assert.JSONEq(t, `{"code":401,"message":"Unauthorized"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, base+"/1", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_HandlerWithoutMiddleware(t *testing.T) {
	ts := newTestServer(t)
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base+"/1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, base+"/1", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{UserID: 1, Username: "admin"}))
	rec = httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CreateAndGet(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "admin", http.MethodPost, base, regularEventJSON(ts.adminCal.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	id := int64(body["id"].(float64))
	assert.Equal(t, true, body["notifiable"])
	assert.Equal(t, "none", body["invitationStatus"])
	assert.Equal(t, fmt.Sprintf("%s/%d", base, id), rec.Header().Get("Location"))

	rec = ts.do(t, "admin", http.MethodGet, fmt.Sprintf("%s/%d", base, id), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	got := decode(t, rec)
	assert.Equal(t, "Regular event", got["title"])
	assert.Equal(t, "Test Description", got["description"])
	assert.Equal(t, "2016-10-14T22:00:00+00:00", got["start"])
	assert.Equal(t, "#AC725E", got["backgroundColor"])
	assert.Equal(t, true, got["editable"])
	assert.Nil(t, got["parentEventId"])
	assert.NotContains(t, got, "recurrence")

	attendees := got["attendees"].([]any)
	require.Len(t, attendees, 1)
	jane := attendees[0].(map[string]any)
	assert.Equal(t, "jane@example.com", jane["email"])
	assert.Equal(t, "none", jane["status"])
	assert.Equal(t, "required", jane["type"])
}

func TestServer_Representations(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, regularEventJSON(ts.adminCal.ID))
	path := fmt.Sprintf("%s/%d", base, id)

	rec := ts.do(t, "admin", http.MethodGet, path+".xml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeTypeXML, rec.Header().Get("Content-Type"))
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(rec.Body.Bytes()))
	assert.Equal(t, "Regular event", doc.FindElement("/calendarevent/title").Text())
	assert.Equal(t, "jane@example.com", doc.FindElement("/calendarevent/attendees/item/email").Text())

	rec = ts.do(t, "admin", http.MethodGet, path, "", "Accept", "text/calendar")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeTypeCalendar, rec.Header().Get("Content-Type"))
	ics := rec.Body.String()
	assert.Contains(t, ics, "BEGIN:VCALENDAR")
	assert.Contains(t, ics, "SUMMARY:Regular event")
	assert.Contains(t, ics, "DTSTART:20161014T220000Z")

	rec = ts.do(t, "admin", http.MethodGet, path+".ics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, "admin", http.MethodGet, path+".pdf", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"code":404,"message":"Not Found"}`, rec.Body.String())
}

func TestServer_ValidationEnvelope(t *testing.T) {
	ts := newTestServer(t)

	body := fmt.Sprintf(`{
		"title": "Recurring event",
		"start": "2016-10-14T22:00:00+00:00",
		"end": "2016-10-14T23:00:00+00:00",
		"calendar": %d,
		"recurrence": {"interval": 1, "startTime": "2016-10-14T22:00:00+00:00", "timeZone": "UTC", "occurrences": 5}
	}`, ts.adminCal.ID)
	rec := ts.do(t, "admin", http.MethodPost, base, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env := decode(t, rec)
	assert.Equal(t, float64(400), env["code"])
	assert.Equal(t, "Validation Failed", env["message"])
	children := env["errors"].(map[string]any)["children"].(map[string]any)
	assert.Equal(t, []any{}, children["title"])
	recurrence := children["recurrence"].(map[string]any)["children"].(map[string]any)
	assert.Equal(t, []any{"This value should not be blank."}, recurrence["recurrenceType"])
	assert.Equal(t, []any{}, recurrence["interval"])
}

func TestServer_OversizedIntervalIsRejected(t *testing.T) {
	ts := newTestServer(t)

	body := fmt.Sprintf(`{
		"title": "Monthly",
		"start": "2016-10-14T22:00:00+00:00",
		"end": "2016-10-14T23:00:00+00:00",
		"calendar": %d,
		"recurrence": {"recurrenceType": "monthly", "interval": 9223372036854775807, "dayOfMonth": 1,
			"startTime": "2016-10-14T22:00:00+00:00", "timeZone": "UTC", "occurrences": 3}
	}`, ts.adminCal.ID)
	rec := ts.do(t, "admin", http.MethodPost, base, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env := decode(t, rec)
	children := env["errors"].(map[string]any)["children"].(map[string]any)
	recurrence := children["recurrence"].(map[string]any)["children"].(map[string]any)
	assert.Equal(t, []any{"This value should be 99 or less."}, recurrence["interval"])

	// nothing was stored
	rec = ts.do(t, "admin", http.MethodGet, base+"/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_MalformedBodies(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"title": `},
		{"array", `[1, 2]`},
		{"trailing data", `{} {}`},
		{"trailing brace", `{}}`},
		{"trailing bracket", `{"title": "x"}]`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, "admin", http.MethodPost, base, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, float64(400), body["code"])
			assert.NotEmpty(t, body["message"])
			assert.NotContains(t, body, "errors")
		})
	}
}

func TestServer_UpdateAndDelete(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, regularEventJSON(ts.adminCal.ID))
	path := fmt.Sprintf("%s/%d", base, id)

	rec := ts.do(t, "admin", http.MethodPut, path, `{"title": "Renamed", "backgroundColor": null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"notifiable": true, "invitationStatus": "none"}`, rec.Body.String())

	got := decode(t, ts.do(t, "admin", http.MethodGet, path, ""))
	assert.Equal(t, "Renamed", got["title"])
	assert.Nil(t, got["backgroundColor"])
	assert.Equal(t, "Test Description", got["description"])

	rec = ts.do(t, "admin", http.MethodPut, path, `{"title": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, "jane", http.MethodDelete, path, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, "admin", http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = ts.do(t, "admin", http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"code":404,"message":"Event not found"}`, rec.Body.String())
}

func TestServer_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "admin", http.MethodPatch, base+"/1", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, PUT, DELETE", rec.Header().Get("Allow"))
	assert.JSONEq(t, `{"code":405,"message":"Method Not Allowed"}`, rec.Body.String())

	rec = ts.do(t, "admin", http.MethodDelete, base, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))

	rec = ts.do(t, "admin", http.MethodGet, base+"/1/invitation/accepted", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_ForeignCalendar(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, "admin", http.MethodPost, base, regularEventJSON(ts.janeCal.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Validation Failed", body["message"])
	children := body["errors"].(map[string]any)["children"].(map[string]any)
	assert.Equal(t, []any{"This value is not valid."}, children["calendar"])
	assert.Equal(t, []any{}, children["title"])
}

func TestServer_InvitationFlow(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, regularEventJSON(ts.adminCal.ID))

	rec := ts.do(t, "jane", http.MethodGet, base+"?calendar="+fmt.Sprint(ts.janeCal.ID)+
		"&start=2016-10-01T00:00:00Z&end=2016-10-31T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, float64(id), list[0]["parentEventId"])
	copyID := int64(list[0]["id"].(float64))

	rec = ts.do(t, "jane", http.MethodPost, fmt.Sprintf("%s/%d/invitation/accepted", base, copyID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"invitationStatus":"accepted"}`, rec.Body.String())

	rec = ts.do(t, "jane", http.MethodPost, fmt.Sprintf("%s/%d/invitation/maybe", base, copyID), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	got := decode(t, ts.do(t, "admin", http.MethodGet, fmt.Sprintf("%s/%d", base, id), ""))
	assert.Equal(t, "accepted", got["attendees"].([]any)[0].(map[string]any)["status"])
}

func TestServer_ListRange(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, fmt.Sprintf(`{
		"title": "Daily",
		"start": "2016-10-14T22:00:00+00:00",
		"end": "2016-10-14T23:00:00+00:00",
		"calendar": %d,
		"recurrence": {"recurrenceType": "daily", "interval": 1, "startTime": "2016-10-14T22:00:00+00:00",
			"timeZone": "UTC", "occurrences": 3}
	}`, ts.adminCal.ID))

	cal := fmt.Sprint(ts.adminCal.ID)
	// "+" left unescaped in the offset decodes to a space
	rec := ts.do(t, "admin", http.MethodGet, base+"?calendar="+cal+
		"&start=2016-10-15T00:00:00+00:00&end=2016-10-31T00:00:00%2B00:00", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "2016-10-15T22:00:00+00:00", list[0]["start"])
	assert.Equal(t, "2016-10-15T22:00:00+00:00", list[0]["originalStart"])

	rec = ts.do(t, "admin", http.MethodGet, base+"?calendar="+cal+
		"&start=2016-10-01T00:00:00Z&end=2016-10-31T00:00:00Z", "", "Accept", "application/xml")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(rec.Body.Bytes()))
	assert.Len(t, doc.FindElements("/calendarevents/calendarevent"), 3)

	for name, query := range map[string]string{
		"missing calendar": "?start=2016-10-01T00:00:00Z&end=2016-10-31T00:00:00Z",
		"bad calendar":     "?calendar=x&start=2016-10-01T00:00:00Z&end=2016-10-31T00:00:00Z",
		"missing start":    "?calendar=" + cal + "&end=2016-10-31T00:00:00Z",
		"bad end":          "?calendar=" + cal + "&start=2016-10-01T00:00:00Z&end=soon",
		"reversed range":   "?calendar=" + cal + "&start=2016-10-31T00:00:00Z&end=2016-10-01T00:00:00Z",
	} {
		t.Run(name, func(t *testing.T) {
			rec := ts.do(t, "admin", http.MethodGet, base+query, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec = ts.do(t, "jane", http.MethodGet, base+"?calendar="+cal+
		"&start=2016-10-01T00:00:00Z&end=2016-10-31T00:00:00Z", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_UnknownPaths(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, "admin", http.MethodGet, "/elsewhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, "admin", http.MethodGet, "/api/rest/latest/calendars", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(nil, authmem.New(), Options{})
	assert.Error(t, err)
	_, err = New(events.NewService(memory.New()), nil, Options{})
	assert.Error(t, err)
}

func TestHandler_WriteJSONLogsEncodeFailure(t *testing.T) {
	var logs bytes.Buffer
	h := NewHandler(DefaultBaseURI, nil, nil, slog.New(slog.NewTextHandler(&logs, nil)))

	rec := httptest.NewRecorder()
	h.writeJSON(rec, http.StatusOK, map[string]any{"value": math.NaN()})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "failed to encode json response")
	assert.Contains(t, logs.String(), "unsupported value")
}
