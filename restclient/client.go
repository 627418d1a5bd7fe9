// Package restclient is a Go client for the calendar event API.
package restclient

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cyp0633/calrest/internal/httpclient"
	"github.com/cyp0633/calrest/server/events"
	"github.com/cyp0633/calrest/server/recurrence"
	"github.com/emersion/go-ical"
)

// Client interface defines the calendar event operations
type Client interface {
	CreateEvent(ctx context.Context, payload map[string]any) (*events.CreateResult, error)
	GetEvent(ctx context.Context, id int64) (*events.Record, error)
	UpdateEvent(ctx context.Context, id int64, payload map[string]any) (*events.UpdateResult, error)
	DeleteEvent(ctx context.Context, id int64) error
	ListEvents(ctx context.Context, calendarID int64, start, end time.Time) ([]events.Record, error)
	AnswerInvitation(ctx context.Context, id int64, status string) (*events.InvitationResult, error)
	ExportEvent(ctx context.Context, id int64) (*ical.Calendar, error)
}

type restClient struct {
	httpClient httpclient.HttpClientWrapper
}

// NewClient creates a client over a wrapper whose base URL is the API base
// path, e.g. "http://localhost:8080/api/rest/latest/".
func NewClient(httpClient httpclient.HttpClientWrapper) Client {
	return &restClient{httpClient: httpClient}
}

// Config holds optional settings for Dial.
type Config struct {
	Logger *slog.Logger
	// Client is used as the base client; its transport gets Basic Auth.
	Client *http.Client
}

// Dial creates a client for the API at baseURL authenticating as username.
func Dial(baseURL, username, password string, cfg *Config) (Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	client := &http.Client{}
	var transport http.RoundTripper
	if cfg.Client != nil {
		*client = *cfg.Client
		transport = cfg.Client.Transport
	}
	client.Transport = httpclient.NewBasicAuthTransport(username, password, transport, logger)

	wrapper, err := httpclient.NewHttpClientWrapper(client, *u, logger)
	if err != nil {
		return nil, err
	}
	return NewClient(wrapper), nil
}

func eventPath(id int64) string {
	return "calendarevents/" + strconv.FormatInt(id, 10)
}

func (c *restClient) CreateEvent(ctx context.Context, payload map[string]any) (*events.CreateResult, error) {
	var out events.CreateResult
	if _, err := c.httpClient.DoJSON(ctx, http.MethodPost, "calendarevents", payload, &out); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return &out, nil
}

func (c *restClient) GetEvent(ctx context.Context, id int64) (*events.Record, error) {
	var out events.Record
	if _, err := c.httpClient.DoJSON(ctx, http.MethodGet, eventPath(id), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return &out, nil
}

func (c *restClient) UpdateEvent(ctx context.Context, id int64, payload map[string]any) (*events.UpdateResult, error) {
	var out events.UpdateResult
	if _, err := c.httpClient.DoJSON(ctx, http.MethodPut, eventPath(id), payload, &out); err != nil {
		return nil, fmt.Errorf("failed to update event %d: %w", id, err)
	}
	return &out, nil
}

func (c *restClient) DeleteEvent(ctx context.Context, id int64) error {
	if _, err := c.httpClient.DoJSON(ctx, http.MethodDelete, eventPath(id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete event %d: %w", id, err)
	}
	return nil
}

func (c *restClient) ListEvents(ctx context.Context, calendarID int64, start, end time.Time) ([]events.Record, error) {
	q := url.Values{}
	q.Set("calendar", strconv.FormatInt(calendarID, 10))
	q.Set("start", start.UTC().Format(recurrence.TimeLayout))
	q.Set("end", end.UTC().Format(recurrence.TimeLayout))

	var out []events.Record
	if _, err := c.httpClient.DoJSON(ctx, http.MethodGet, "calendarevents?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list events of calendar %d: %w", calendarID, err)
	}
	return out, nil
}

func (c *restClient) AnswerInvitation(ctx context.Context, id int64, status string) (*events.InvitationResult, error) {
	var out events.InvitationResult
	path := eventPath(id) + "/invitation/" + url.PathEscape(status)
	if _, err := c.httpClient.DoJSON(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to answer invitation %d: %w", id, err)
	}
	return &out, nil
}

func (c *restClient) ExportEvent(ctx context.Context, id int64) (*ical.Calendar, error) {
	data, err := c.httpClient.DoRaw(ctx, http.MethodGet, eventPath(id)+".ics", "text/calendar")
	if err != nil {
		return nil, fmt.Errorf("failed to export event %d: %w", id, err)
	}
	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar of event %d: %w", id, err)
	}
	return cal, nil
}
