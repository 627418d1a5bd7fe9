package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cyp0633/calrest/internal/config"
	"github.com/cyp0633/calrest/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dailyRule = `{
	"recurrenceType": "daily",
	"interval": 1,
	"startTime": "2016-10-14T22:00:00+00:00",
	"timeZone": "UTC",
	"occurrences": 3
}`

func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"calrestd"}, args...))
	return out.String(), err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Addr:              "127.0.0.1:0",
		BaseURI:           server.DefaultBaseURI,
		Realm:             "calrest",
		FixturesFile:      filepath.Join("..", "..", "internal", "fixtures", "testdata", "sample.yaml"),
		LogLevel:          "debug",
		LogFormat:         "text",
		RecurrenceProfile: "default",
		MaxBodyBytes:      1 << 20,
		ShutdownTimeout:   time.Second,
		ReadHeaderTimeout: time.Second,
	}
}

func TestValidate_Valid(t *testing.T) {
	out, err := runApp(t, dailyRule, "validate", "--occurrences", "5")
	require.NoError(t, err)

	var res validateResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Contains(t, res.RRule, "FREQ=DAILY")
	assert.Contains(t, res.RRule, "COUNT=3")
	assert.Equal(t, "2016-10-16T22:00:00+00:00", res.CalculatedEndTime)
	assert.Equal(t, []string{
		"2016-10-14T22:00:00+00:00",
		"2016-10-15T22:00:00+00:00",
		"2016-10-16T22:00:00+00:00",
	}, res.Occurrences)
}

func TestValidate_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rule.json")
	require.NoError(t, os.WriteFile(path, []byte(dailyRule), 0o600))

	out, err := runApp(t, "", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"calculatedEndTime": "2016-10-16T22:00:00+00:00"`)
	assert.NotContains(t, out, "occurrences")
}

func TestValidate_Invalid(t *testing.T) {
	out, err := runApp(t, `{"interval": 1}`, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recurrence is invalid")
	assert.Contains(t, out, `"message": "Validation Failed"`)
	assert.Contains(t, out, "This value should not be blank.")

	_, err = runApp(t, `[1, 2]`, "validate")
	assert.EqualError(t, err, "recurrence must be a JSON object")

	_, err = runApp(t, `{`, "validate")
	assert.Error(t, err)
}

func TestServe_FixturesAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, cleanup, err := buildServer(ctx, cfg, logger)
	require.NoError(t, err)
	defer cleanup()
	ln, err := net.Listen("tcp", cfg.Addr)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, logger, srv, ln) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + server.HealthPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, base+server.DefaultBaseURI+"calendarevents/1", nil)
	require.NoError(t, err)
	req.SetBasicAuth("alice", "password")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Meeting with Team", rec["title"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestBuildServer_BadFixtures(t *testing.T) {
	cfg := testConfig(t)
	cfg.FixturesFile = filepath.Join(t.TempDir(), "missing.yaml")
	srv, cleanup, err := buildServer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
	assert.Nil(t, srv)
	assert.Nil(t, cleanup)
}

func TestExport(t *testing.T) {
	cfg := testConfig(t)
	srv, cleanup, err := buildServer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer cleanup()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	out, err := runApp(t, "", "export",
		"--url", ts.URL+server.DefaultBaseURI,
		"--username", "alice", "--password", "password", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "SUMMARY:Meeting with Team")
	assert.Contains(t, out, "RRULE:")
	assert.Contains(t, out, "RECURRENCE-ID:20161021T090000Z")

	_, err = runApp(t, "", "export", "--url", ts.URL+server.DefaultBaseURI, "--username", "alice", "x")
	assert.Error(t, err)
}
