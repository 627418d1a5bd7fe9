package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cyp0633/calrest/server/recurrence"
	"github.com/samber/mo"
)

// Error types
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"
)

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsType reports whether err is, or wraps, a storage error of type t.
func IsType(err error, t ErrorType) bool {
	var se *Error
	return errors.As(err, &se) && se.Type == t
}

// IsNotFound is shorthand for IsType(err, ErrNotFound).
func IsNotFound(err error) bool { return IsType(err, ErrNotFound) }

// User is an account that owns calendars.
type User struct {
	ID          int64
	Username    string
	Email       string
	DisplayName string
}

// Calendar is a collection of events owned by one user.
type Calendar struct {
	ID      int64
	UserID  int64
	Name    string
	Default bool
	Created time.Time
}

// AttendeeStatus is an attendee's answer to an invitation.
type AttendeeStatus string

const (
	StatusNone      AttendeeStatus = "none"
	StatusAccepted  AttendeeStatus = "accepted"
	StatusDeclined  AttendeeStatus = "declined"
	StatusTentative AttendeeStatus = "tentative"
)

// ParseAttendeeStatus resolves a wire value.
func ParseAttendeeStatus(s string) (AttendeeStatus, bool) {
	switch st := AttendeeStatus(strings.ToLower(s)); st {
	case StatusNone, StatusAccepted, StatusDeclined, StatusTentative:
		return st, true
	}
	return "", false
}

// AttendeeType is the role of an attendee.
type AttendeeType string

const (
	TypeOrganizer AttendeeType = "organizer"
	TypeOptional  AttendeeType = "optional"
	TypeRequired  AttendeeType = "required"
)

// ParseAttendeeType resolves a wire value.
func ParseAttendeeType(s string) (AttendeeType, bool) {
	switch t := AttendeeType(strings.ToLower(s)); t {
	case TypeOrganizer, TypeOptional, TypeRequired:
		return t, true
	}
	return "", false
}

// Attendee is a participant of an event. Email may be empty for people
// without an address.
type Attendee struct {
	DisplayName string
	Email       string
	Status      AttendeeStatus
	Type        AttendeeType
	// UserID links the attendee to a known account, resolved by email.
	UserID mo.Option[int64]
}

// Event is a stored calendar event.
//
// A master event may carry a Recurrence. An exception overrides one
// occurrence of a master and has RecurringEventID and OriginalStart set.
// An attendee copy lives in an invited user's calendar and points back to
// the organizer's event through ParentEventID.
type Event struct {
	ID               int64
	UID              string
	CalendarID       int64
	ParentEventID    mo.Option[int64]
	Title            string
	Description      mo.Option[string]
	Start            time.Time
	End              time.Time
	AllDay           bool
	BackgroundColor  mo.Option[string]
	UseHangout       bool
	Attendees        []Attendee
	Recurrence       *recurrence.Rule
	RecurringEventID mo.Option[int64]
	OriginalStart    mo.Option[time.Time]
	IsCancelled      bool
	Created          time.Time
	Modified         time.Time
}

// IsException reports whether e overrides an occurrence of a series.
func (e *Event) IsException() bool {
	return e.RecurringEventID.IsPresent()
}

// IsCopy reports whether e is an attendee copy of another user's event.
func (e *Event) IsCopy() bool {
	return e.ParentEventID.IsPresent()
}

// Duration is the length of one occurrence.
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Clone returns a deep copy of e.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	c.Attendees = append([]Attendee(nil), e.Attendees...)
	c.Recurrence = e.Recurrence.Clone()
	return &c
}

// ListOptions filters ListEvents. Zero-valued options match everything.
type ListOptions struct {
	CalendarID       mo.Option[int64]
	ParentEventID    mo.Option[int64]
	RecurringEventID mo.Option[int64]
	UID              mo.Option[string]
	// MastersOnly drops exceptions.
	MastersOnly bool
	// Start and End select events overlapping the range. A recurring master
	// matches when its series starts before End; callers expand it.
	Start mo.Option[time.Time]
	End   mo.Option[time.Time]
}

// Matches reports whether e passes the filter.
func (o ListOptions) Matches(e *Event) bool {
	if v, ok := o.CalendarID.Get(); ok && e.CalendarID != v {
		return false
	}
	if v, ok := o.ParentEventID.Get(); ok && e.ParentEventID.OrElse(0) != v {
		return false
	}
	if v, ok := o.RecurringEventID.Get(); ok && e.RecurringEventID.OrElse(0) != v {
		return false
	}
	if v, ok := o.UID.Get(); ok && e.UID != v {
		return false
	}
	if o.MastersOnly && e.IsException() {
		return false
	}
	if e.Recurrence != nil {
		if end, ok := o.End.Get(); ok && e.Recurrence.StartTime.After(end) {
			return false
		}
		return true
	}
	if start, ok := o.Start.Get(); ok && e.End.Before(start) {
		return false
	}
	if end, ok := o.End.Get(); ok && e.Start.After(end) {
		return false
	}
	return true
}
