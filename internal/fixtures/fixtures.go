// Package fixtures seeds a store with users, calendars and events from a
// YAML document.
//
// Events are created through the event service so fixtures go through the
// same validation and invitation delivery as API requests:
//
//	users:
//	  - username: alice
//	    email: alice@example.com
//	    displayName: Alice Smith
//	    password: password
//	    calendars:
//	      - name: Default
//	        default: true
//	events:
//	  - key: standup
//	    owner: alice
//	    data:
//	      title: Standup
//	      start: "2016-10-14T09:00:00+00:00"
//	      end: "2016-10-14T09:15:00+00:00"
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cyp0633/calrest/server/auth"
	"github.com/cyp0633/calrest/server/events"
	"github.com/cyp0633/calrest/server/storage"
	"gopkg.in/yaml.v3"
)

// Document is the root of a fixtures file.
type Document struct {
	Users  []User  `yaml:"users"`
	Events []Event `yaml:"events"`
}

// User is an account with its calendars.
type User struct {
	Username    string     `yaml:"username"`
	Email       string     `yaml:"email"`
	DisplayName string     `yaml:"displayName"`
	Password    string     `yaml:"password"`
	Calendars   []Calendar `yaml:"calendars"`
}

// Calendar belongs to the enclosing user.
type Calendar struct {
	Name    string `yaml:"name"`
	Default bool   `yaml:"default"`
}

// Event is created by Owner in the named calendar, or in the owner's
// default calendar when Calendar is empty. Data is the API payload
// without the calendar field. RecurringEvent names the key of an earlier
// event and makes this one an exception of it.
type Event struct {
	Key            string         `yaml:"key"`
	Owner          string         `yaml:"owner"`
	Calendar       string         `yaml:"calendar"`
	RecurringEvent string         `yaml:"recurringEvent"`
	Data           map[string]any `yaml:"data"`
}

// CredentialStore receives the passwords of fixture users.
type CredentialStore interface {
	AddUser(username, password string, userID int64) error
}

// EventCreator creates events on behalf of a user.
type EventCreator interface {
	Create(ctx context.Context, p *auth.Principal, payload map[string]any) (*events.CreateResult, error)
}

// Refs maps fixture names to the ids assigned while applying.
type Refs struct {
	Users     map[string]int64
	Calendars map[string]map[string]int64
	Events    map[string]int64
}

// Parse decodes and checks a fixtures document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads and parses the fixtures file at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	return Parse(data)
}

// Validate checks references inside the document.
func (d *Document) Validate() error {
	var errs []error
	calendars := make(map[string]map[string]bool)
	for i, u := range d.Users {
		if u.Username == "" {
			errs = append(errs, fmt.Errorf("users[%d]: username is required", i))
			continue
		}
		if _, dup := calendars[u.Username]; dup {
			errs = append(errs, fmt.Errorf("users[%d]: duplicate username %q", i, u.Username))
			continue
		}
		names := make(map[string]bool)
		defaults := 0
		for _, c := range u.Calendars {
			if c.Name == "" {
				errs = append(errs, fmt.Errorf("user %q: calendar name is required", u.Username))
			}
			if names[c.Name] {
				errs = append(errs, fmt.Errorf("user %q: duplicate calendar %q", u.Username, c.Name))
			}
			names[c.Name] = true
			if c.Default {
				defaults++
			}
		}
		if defaults > 1 {
			errs = append(errs, fmt.Errorf("user %q: more than one default calendar", u.Username))
		}
		calendars[u.Username] = names
	}

	keys := make(map[string]bool)
	for i, e := range d.Events {
		names, ok := calendars[e.Owner]
		if !ok {
			errs = append(errs, fmt.Errorf("events[%d]: unknown owner %q", i, e.Owner))
		} else if e.Calendar != "" && !names[e.Calendar] {
			errs = append(errs, fmt.Errorf("events[%d]: user %q has no calendar %q", i, e.Owner, e.Calendar))
		}
		if e.RecurringEvent != "" && !keys[e.RecurringEvent] {
			errs = append(errs, fmt.Errorf("events[%d]: recurring event %q is not defined before it", i, e.RecurringEvent))
		}
		if e.Key != "" {
			if keys[e.Key] {
				errs = append(errs, fmt.Errorf("events[%d]: duplicate key %q", i, e.Key))
			}
			keys[e.Key] = true
		}
	}
	return errors.Join(errs...)
}

// Apply creates everything in the document. Users without calendars get a
// default calendar named "Default". A user without a password gets no
// credentials.
func (d *Document) Apply(ctx context.Context, store storage.Storage, creds CredentialStore, svc EventCreator) (*Refs, error) {
	refs := &Refs{
		Users:     make(map[string]int64),
		Calendars: make(map[string]map[string]int64),
		Events:    make(map[string]int64),
	}

	for _, u := range d.Users {
		user := &storage.User{Username: u.Username, Email: u.Email, DisplayName: u.DisplayName}
		if err := store.CreateUser(ctx, user); err != nil {
			return refs, fmt.Errorf("failed to create user %q: %w", u.Username, err)
		}
		refs.Users[u.Username] = user.ID
		refs.Calendars[u.Username] = make(map[string]int64)

		cals := u.Calendars
		if len(cals) == 0 {
			cals = []Calendar{{Name: "Default", Default: true}}
		}
		for _, c := range cals {
			cal := &storage.Calendar{UserID: user.ID, Name: c.Name, Default: c.Default}
			if err := store.CreateCalendar(ctx, cal); err != nil {
				return refs, fmt.Errorf("failed to create calendar %q of %q: %w", c.Name, u.Username, err)
			}
			refs.Calendars[u.Username][c.Name] = cal.ID
		}

		if u.Password != "" && creds != nil {
			if err := creds.AddUser(u.Username, u.Password, user.ID); err != nil {
				return refs, err
			}
		}
	}

	for i, e := range d.Events {
		calendarID, err := d.calendarFor(ctx, store, refs, e)
		if err != nil {
			return refs, fmt.Errorf("events[%d]: %w", i, err)
		}

		payload := make(map[string]any, len(e.Data)+2)
		for k, v := range e.Data {
			payload[k] = v
		}
		payload[events.FieldCalendar] = calendarID
		if e.RecurringEvent != "" {
			payload[events.FieldRecurringEventID] = refs.Events[e.RecurringEvent]
		}

		p := &auth.Principal{UserID: refs.Users[e.Owner], Username: e.Owner}
		res, err := svc.Create(ctx, p, payload)
		if err != nil {
			return refs, fmt.Errorf("events[%d] (%s): %w", i, e.Data[events.FieldTitle], err)
		}
		if e.Key != "" {
			refs.Events[e.Key] = res.ID
		}
	}
	return refs, nil
}

func (d *Document) calendarFor(ctx context.Context, store storage.Storage, refs *Refs, e Event) (int64, error) {
	if e.Calendar != "" {
		return refs.Calendars[e.Owner][e.Calendar], nil
	}
	cal, err := store.DefaultCalendar(ctx, refs.Users[e.Owner])
	if err != nil {
		return 0, fmt.Errorf("no default calendar for %q: %w", e.Owner, err)
	}
	return cal.ID, nil
}
