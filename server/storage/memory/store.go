// memory based implementation for development and testing purposes
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cyp0633/calrest/server/storage"
)

// Store implements storage.Storage interface using in-memory maps
type Store struct {
	mu        sync.RWMutex
	users     map[int64]*storage.User
	calendars map[int64]*storage.Calendar
	events    map[int64]*storage.Event
	nextUser  int64
	nextCal   int64
	nextEvent int64
	now       func() time.Time
}

var _ storage.Storage = (*Store)(nil)

// Option represents a configuration option for the Store
type Option func(*Store)

// WithClock sets the time source used for Created and Modified stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a new in-memory storage
func New(opts ...Option) *Store {
	s := &Store{
		users:     make(map[int64]*storage.User),
		calendars: make(map[int64]*storage.Calendar),
		events:    make(map[int64]*storage.Event),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func notFound(what string) error {
	return &storage.Error{Type: storage.ErrNotFound, Message: what + " not found"}
}

func copyUser(u *storage.User) *storage.User {
	c := *u
	return &c
}

func copyCalendar(c *storage.Calendar) *storage.Calendar {
	cc := *c
	return &cc
}

// User operations

func (s *Store) GetUser(_ context.Context, userID int64) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, notFound("user")
	}
	return copyUser(user), nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email != "" && strings.EqualFold(user.Email, email) {
			return copyUser(user), nil
		}
	}
	return nil, notFound("user")
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			return copyUser(user), nil
		}
	}
	return nil, notFound("user")
}

func (s *Store) CreateUser(_ context.Context, user *storage.User) error {
	if user.Username == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "username is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username {
			return &storage.Error{Type: storage.ErrAlreadyExists, Message: "user already exists"}
		}
		if user.Email != "" && strings.EqualFold(u.Email, user.Email) {
			return &storage.Error{Type: storage.ErrAlreadyExists, Message: "email already in use"}
		}
	}

	s.nextUser++
	user.ID = s.nextUser
	s.users[user.ID] = copyUser(user)
	return nil
}

// Calendar operations

func (s *Store) GetCalendar(_ context.Context, calendarID int64) (*storage.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cal, ok := s.calendars[calendarID]
	if !ok {
		return nil, notFound("calendar")
	}
	return copyCalendar(cal), nil
}

func (s *Store) DefaultCalendar(_ context.Context, userID int64) (*storage.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var first *storage.Calendar
	for _, cal := range s.calendars {
		if cal.UserID != userID {
			continue
		}
		if cal.Default {
			return copyCalendar(cal), nil
		}
		if first == nil || cal.ID < first.ID {
			first = cal
		}
	}
	if first == nil {
		return nil, notFound("calendar")
	}
	return copyCalendar(first), nil
}

func (s *Store) ListCalendars(_ context.Context, userID int64) ([]*storage.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var calendars []*storage.Calendar
	for _, cal := range s.calendars {
		if cal.UserID == userID {
			calendars = append(calendars, copyCalendar(cal))
		}
	}
	sort.Slice(calendars, func(i, j int) bool { return calendars[i].ID < calendars[j].ID })
	return calendars, nil
}

func (s *Store) CreateCalendar(_ context.Context, cal *storage.Calendar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[cal.UserID]; !ok {
		return notFound("user")
	}
	if cal.Default {
		for _, c := range s.calendars {
			if c.UserID == cal.UserID && c.Default {
				return &storage.Error{Type: storage.ErrAlreadyExists, Message: "default calendar already exists"}
			}
		}
	}

	s.nextCal++
	cal.ID = s.nextCal
	cal.Created = s.now()
	s.calendars[cal.ID] = copyCalendar(cal)
	return nil
}

// Event operations

func (s *Store) GetEvent(_ context.Context, eventID int64) (*storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[eventID]
	if !ok {
		return nil, notFound("event")
	}
	return event.Clone(), nil
}

func (s *Store) ListEvents(_ context.Context, opts storage.ListOptions) ([]*storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*storage.Event
	for _, event := range s.events {
		if opts.Matches(event) {
			events = append(events, event.Clone())
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

func (s *Store) CreateEvent(_ context.Context, event *storage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEvent(event); err != nil {
		return err
	}

	s.nextEvent++
	now := s.now()
	event.ID = s.nextEvent
	event.Created = now
	event.Modified = now
	s.events[event.ID] = event.Clone()
	return nil
}

func (s *Store) UpdateEvent(_ context.Context, event *storage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.events[event.ID]
	if !ok {
		return notFound("event")
	}
	if err := s.checkEvent(event); err != nil {
		return err
	}

	event.Created = old.Created
	event.Modified = s.now()
	s.events[event.ID] = event.Clone()
	return nil
}

func (s *Store) DeleteEvent(_ context.Context, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		return notFound("event")
	}
	delete(s.events, eventID)
	return nil
}

// checkEvent verifies references. Callers must hold the write lock.
func (s *Store) checkEvent(event *storage.Event) error {
	if _, ok := s.calendars[event.CalendarID]; !ok {
		return notFound("calendar")
	}
	if id, ok := event.RecurringEventID.Get(); ok {
		if _, exists := s.events[id]; !exists {
			return notFound("recurring event")
		}
	}
	if id, ok := event.ParentEventID.Get(); ok {
		if _, exists := s.events[id]; !exists {
			return notFound("parent event")
		}
	}
	if event.End.Before(event.Start) {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "event ends before it starts"}
	}
	return nil
}
