package storage

import "context"

// Storage connects the event service with a backend (e.g. database).
// Please use the error types provided; lookups of missing records must
// return an *Error of type ErrNotFound.
type Storage interface {
	// GetUser gets user information.
	GetUser(ctx context.Context, userID int64) (*User, error)
	// FindUserByEmail resolves an attendee address to an account.
	// Matching is case-insensitive.
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	// FindUserByUsername resolves a login name to an account.
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	// CreateUser stores a new user and assigns its ID.
	CreateUser(ctx context.Context, user *User) error

	// GetCalendar retrieves a calendar by id.
	GetCalendar(ctx context.Context, calendarID int64) (*Calendar, error)
	// DefaultCalendar returns the calendar invitations are delivered to.
	DefaultCalendar(ctx context.Context, userID int64) (*Calendar, error)
	// ListCalendars retrieves all calendars of a user ordered by id.
	ListCalendars(ctx context.Context, userID int64) ([]*Calendar, error)
	// CreateCalendar stores a new calendar and assigns its ID.
	CreateCalendar(ctx context.Context, calendar *Calendar) error

	// GetEvent finds an event by id. The result is a copy the caller owns.
	GetEvent(ctx context.Context, eventID int64) (*Event, error)
	// ListEvents returns events passing opts ordered by start, then id.
	ListEvents(ctx context.Context, opts ListOptions) ([]*Event, error)
	// CreateEvent stores a new event and assigns its ID.
	CreateEvent(ctx context.Context, event *Event) error
	// UpdateEvent replaces a stored event.
	UpdateEvent(ctx context.Context, event *Event) error
	// DeleteEvent removes an event. Exceptions and attendee copies are left
	// to the caller.
	DeleteEvent(ctx context.Context, eventID int64) error
}
