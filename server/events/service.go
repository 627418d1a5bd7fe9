// Package events implements calendar event operations: form validation,
// persistence, invitations of known users, and expansion of recurring
// series into occurrences.
package events

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cyp0633/calrest/server/auth"
	"github.com/cyp0633/calrest/server/recurrence"
	"github.com/cyp0633/calrest/server/storage"
	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Service applies event operations on behalf of an authenticated principal.
type Service struct {
	store  storage.Storage
	engine *recurrence.Engine
	logger *slog.Logger
	now    func() time.Time
}

// Option represents a configuration option for the Service
type Option func(*Service)

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used to decide whether an event is over.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEngine sets the recurrence engine used for expansion.
func WithEngine(engine *recurrence.Engine) Option {
	return func(s *Service) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// NewService creates an event service over store
func NewService(store storage.Storage, opts ...Option) *Service {
	s := &Service{
		store:  store,
		engine: recurrence.NewEngine(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates payload and stores a new event.
func (s *Service) Create(ctx context.Context, p *auth.Principal, payload map[string]any) (*CreateResult, error) {
	event := &storage.Event{}
	errs, err := s.decodeForm(ctx, p, payload, event)
	if err != nil {
		return nil, err
	}
	if errs.HasErrors() {
		s.logger.Info("event rejected",
			"user_id", p.UserID,
			"failed_fields", errs.Failed(),
			"form_errors", errs.FormMessages())
		return nil, &ValidationError{Errors: errs}
	}

	event.UID = uuid.NewString()
	if masterID, ok := event.RecurringEventID.Get(); ok {
		master, err := s.store.GetEvent(ctx, masterID)
		if err != nil {
			return nil, fmt.Errorf("failed to load recurring event %d: %w", masterID, err)
		}
		// exceptions share the UID of their series
		event.UID = master.UID
	}
	if err := s.resolveAttendees(ctx, event); err != nil {
		return nil, err
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	if err := s.syncInvitations(ctx, event); err != nil {
		return nil, err
	}

	s.logger.Info("event created",
		"event_id", event.ID,
		"calendar_id", event.CalendarID,
		"recurring", event.Recurrence != nil,
		"exception", event.IsException())

	v, err := s.view(ctx, p, event)
	if err != nil {
		return nil, err
	}
	return &CreateResult{
		ID:               event.ID,
		Notifiable:       v.notifiable(),
		InvitationStatus: string(v.invitationStatus()),
	}, nil
}

// Get returns the full record of an event.
func (s *Service) Get(ctx context.Context, p *auth.Principal, eventID int64) (*Record, error) {
	event, _, err := s.loadOwned(ctx, p, eventID)
	if err != nil {
		return nil, err
	}
	v, err := s.view(ctx, p, event)
	if err != nil {
		return nil, err
	}
	r := v.record()
	return &r, nil
}

// Update merges payload over the stored event and saves the result.
// Fields missing from payload keep their stored values; an explicit null
// clears an optional field.
func (s *Service) Update(ctx context.Context, p *auth.Principal, eventID int64, payload map[string]any) (*UpdateResult, error) {
	existing, _, err := s.loadOwned(ctx, p, eventID)
	if err != nil {
		return nil, err
	}
	if existing.IsCopy() {
		return nil, forbidden("An invitation can only be answered, not edited.")
	}

	merged := formPayload(existing)
	for k, v := range payload {
		merged[k] = v
	}
	target := existing.Clone()
	errs, err := s.decodeForm(ctx, p, merged, target)
	if err != nil {
		return nil, err
	}
	if errs.HasErrors() {
		s.logger.Info("event update rejected",
			"event_id", eventID,
			"failed_fields", errs.Failed(),
			"form_errors", errs.FormMessages())
		return nil, &ValidationError{Errors: errs}
	}

	if err := s.resolveAttendees(ctx, target); err != nil {
		return nil, err
	}
	if err := s.store.UpdateEvent(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to update event %d: %w", eventID, err)
	}
	if !existing.IsException() && !existing.Recurrence.Equal(target.Recurrence) {
		s.logger.Info("recurrence changed, dropping exceptions", "event_id", eventID)
		if err := s.deleteExceptions(ctx, eventID); err != nil {
			return nil, err
		}
	}
	if err := s.syncInvitations(ctx, target); err != nil {
		return nil, err
	}

	s.logger.Info("event updated", "event_id", eventID, "calendar_id", target.CalendarID)

	v, err := s.view(ctx, p, target)
	if err != nil {
		return nil, err
	}
	return &UpdateResult{
		Notifiable:       v.notifiable(),
		InvitationStatus: string(v.invitationStatus()),
	}, nil
}

// Delete removes an event. Deleting a series removes its exceptions and
// the attendee copies. Deleting an attendee copy declines the invitation.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, eventID int64) error {
	event, _, err := s.loadOwned(ctx, p, eventID)
	if err != nil {
		return err
	}

	if parentID, ok := event.ParentEventID.Get(); ok {
		if err := s.store.DeleteEvent(ctx, eventID); err != nil {
			return fmt.Errorf("failed to delete event %d: %w", eventID, err)
		}
		if _, err := s.answer(ctx, p, parentID, storage.StatusDeclined); err != nil && !isNotAttendee(err) {
			return err
		}
		s.logger.Info("invitation copy deleted", "event_id", eventID, "parent_event_id", parentID)
		return nil
	}

	if !event.IsException() {
		if err := s.deleteExceptions(ctx, eventID); err != nil {
			return err
		}
		if err := s.deleteCopies(ctx, eventID); err != nil {
			return err
		}
	}
	if err := s.store.DeleteEvent(ctx, eventID); err != nil {
		return fmt.Errorf("failed to delete event %d: %w", eventID, err)
	}
	s.logger.Info("event deleted", "event_id", eventID)
	return nil
}

// SetInvitationStatus records the principal's answer to an invitation.
func (s *Service) SetInvitationStatus(ctx context.Context, p *auth.Principal, eventID int64, status string) (*InvitationResult, error) {
	st, ok := storage.ParseAttendeeStatus(status)
	if !ok {
		return nil, badRequest(fmt.Sprintf("Unknown invitation status %q.", status))
	}
	event, _, err := s.loadOwned(ctx, p, eventID)
	if err != nil {
		return nil, err
	}
	masterID := event.ParentEventID.OrElse(event.ID)
	if _, err := s.answer(ctx, p, masterID, st); err != nil {
		return nil, err
	}
	s.logger.Info("invitation answered", "event_id", eventID, "user_id", p.UserID, "status", st)
	return &InvitationResult{InvitationStatus: string(st)}, nil
}

var errNotAttendee = forbidden("You are not an attendee of this event.")

func isNotAttendee(err error) bool {
	return err == errNotAttendee
}

// answer sets the principal's attendee status on the organizer's event and
// pushes the change to every copy.
func (s *Service) answer(ctx context.Context, p *auth.Principal, masterID int64, st storage.AttendeeStatus) (*storage.Event, error) {
	user, err := s.store.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", p.UserID, err)
	}
	master, err := s.store.GetEvent(ctx, masterID)
	if storage.IsNotFound(err) {
		return nil, notFound("Event")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %d: %w", masterID, err)
	}

	idx := -1
	for i, a := range master.Attendees {
		if a.Email != "" && strings.EqualFold(a.Email, user.Email) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errNotAttendee
	}
	master.Attendees[idx].Status = st
	if err := s.store.UpdateEvent(ctx, master); err != nil {
		return nil, fmt.Errorf("failed to update event %d: %w", masterID, err)
	}
	if err := s.syncInvitations(ctx, master); err != nil {
		return nil, err
	}
	return master, nil
}

// loadOwned fetches an event in a calendar of the principal.
func (s *Service) loadOwned(ctx context.Context, p *auth.Principal, eventID int64) (*storage.Event, *storage.Calendar, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if storage.IsNotFound(err) {
		return nil, nil, notFound("Event")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load event %d: %w", eventID, err)
	}
	cal, err := s.ownedCalendar(ctx, p, event.CalendarID)
	if err != nil {
		return nil, nil, err
	}
	return event, cal, nil
}

func (s *Service) ownedCalendar(ctx context.Context, p *auth.Principal, calendarID int64) (*storage.Calendar, error) {
	cal, err := s.store.GetCalendar(ctx, calendarID)
	if storage.IsNotFound(err) {
		return nil, notFound("Calendar")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar %d: %w", calendarID, err)
	}
	if cal.UserID != p.UserID {
		s.logger.Warn("access denied",
			"user_id", p.UserID,
			"calendar_id", calendarID)
		return nil, forbidden("You have no access to this calendar.")
	}
	return cal, nil
}

// view gathers what deriving the record of event needs.
func (s *Service) view(ctx context.Context, p *auth.Principal, event *storage.Event) (eventView, error) {
	cal, err := s.store.GetCalendar(ctx, event.CalendarID)
	if err != nil {
		return eventView{}, fmt.Errorf("failed to load calendar %d: %w", event.CalendarID, err)
	}
	owner, err := s.store.GetUser(ctx, cal.UserID)
	if err != nil {
		return eventView{}, fmt.Errorf("failed to load user %d: %w", cal.UserID, err)
	}
	return s.viewWithOwner(owner, p, event)
}

func (s *Service) viewWithOwner(owner *storage.User, p *auth.Principal, event *storage.Event) (eventView, error) {
	v := eventView{event: event, owner: owner, principal: p.UserID, now: s.now()}
	if event.Recurrence != nil {
		end, err := s.engine.CalculatedEndTime(event.Recurrence)
		if err != nil {
			return eventView{}, fmt.Errorf("failed to calculate end of series %d: %w", event.ID, err)
		}
		v.calcEnd = mo.Some(end)
	}
	return v, nil
}
