package events

import (
	"context"
	"fmt"

	"github.com/cyp0633/calrest/server/storage"
	"github.com/samber/mo"
)

// resolveAttendees links attendees to known accounts by email.
func (s *Service) resolveAttendees(ctx context.Context, event *storage.Event) error {
	for i := range event.Attendees {
		a := &event.Attendees[i]
		a.UserID = mo.None[int64]()
		if a.Email == "" {
			continue
		}
		user, err := s.store.FindUserByEmail(ctx, a.Email)
		if storage.IsNotFound(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to resolve attendee %s: %w", a.Email, err)
		}
		a.UserID = mo.Some(user.ID)
	}
	return nil
}

// syncInvitations makes the attendee copies of master match its attendee
// list. A copy is created in the default calendar of every known attendee
// except the organizer, unless that attendee has declined; copies of users
// no longer invited are removed. Exceptions never fan out.
func (s *Service) syncInvitations(ctx context.Context, master *storage.Event) error {
	if master.IsCopy() {
		return nil
	}
	cal, err := s.store.GetCalendar(ctx, master.CalendarID)
	if err != nil {
		return fmt.Errorf("failed to load calendar %d: %w", master.CalendarID, err)
	}

	invited := make(map[int64]storage.Attendee)
	if !master.IsException() {
		for _, a := range master.Attendees {
			if uid, ok := a.UserID.Get(); ok && uid != cal.UserID {
				invited[uid] = a
			}
		}
	}

	copies, err := s.store.ListEvents(ctx, storage.ListOptions{ParentEventID: mo.Some(master.ID)})
	if err != nil {
		return fmt.Errorf("failed to list copies of event %d: %w", master.ID, err)
	}
	have := make(map[int64]bool, len(copies))
	for _, c := range copies {
		owner, err := s.store.GetCalendar(ctx, c.CalendarID)
		if err != nil {
			return fmt.Errorf("failed to load calendar %d: %w", c.CalendarID, err)
		}
		if _, ok := invited[owner.UserID]; !ok || have[owner.UserID] {
			if err := s.store.DeleteEvent(ctx, c.ID); err != nil {
				return fmt.Errorf("failed to delete copy %d: %w", c.ID, err)
			}
			s.logger.Info("invitation withdrawn", "event_id", master.ID, "copy_id", c.ID, "user_id", owner.UserID)
			continue
		}
		have[owner.UserID] = true
		applyMaster(c, master)
		if err := s.store.UpdateEvent(ctx, c); err != nil {
			return fmt.Errorf("failed to update copy %d: %w", c.ID, err)
		}
	}

	for uid, a := range invited {
		if have[uid] || a.Status == storage.StatusDeclined {
			continue
		}
		target, err := s.store.DefaultCalendar(ctx, uid)
		if storage.IsNotFound(err) {
			s.logger.Warn("attendee has no calendar, skipping invitation", "event_id", master.ID, "user_id", uid)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load default calendar of user %d: %w", uid, err)
		}
		c := &storage.Event{CalendarID: target.ID, ParentEventID: mo.Some(master.ID)}
		applyMaster(c, master)
		if err := s.store.CreateEvent(ctx, c); err != nil {
			return fmt.Errorf("failed to create copy of event %d: %w", master.ID, err)
		}
		s.logger.Info("invitation sent", "event_id", master.ID, "copy_id", c.ID, "user_id", uid)
	}
	return nil
}

// applyMaster copies the shared fields of master onto an attendee copy.
func applyMaster(c, master *storage.Event) {
	m := master.Clone()
	c.UID = m.UID
	c.Title = m.Title
	c.Description = m.Description
	c.Start = m.Start
	c.End = m.End
	c.AllDay = m.AllDay
	c.BackgroundColor = m.BackgroundColor
	c.UseHangout = m.UseHangout
	c.Attendees = m.Attendees
	c.Recurrence = m.Recurrence
	c.IsCancelled = m.IsCancelled
}

func (s *Service) deleteExceptions(ctx context.Context, masterID int64) error {
	exceptions, err := s.store.ListEvents(ctx, storage.ListOptions{RecurringEventID: mo.Some(masterID)})
	if err != nil {
		return fmt.Errorf("failed to list exceptions of event %d: %w", masterID, err)
	}
	for _, e := range exceptions {
		if err := s.store.DeleteEvent(ctx, e.ID); err != nil {
			return fmt.Errorf("failed to delete exception %d: %w", e.ID, err)
		}
	}
	return nil
}

func (s *Service) deleteCopies(ctx context.Context, masterID int64) error {
	copies, err := s.store.ListEvents(ctx, storage.ListOptions{ParentEventID: mo.Some(masterID)})
	if err != nil {
		return fmt.Errorf("failed to list copies of event %d: %w", masterID, err)
	}
	for _, c := range copies {
		if err := s.store.DeleteEvent(ctx, c.ID); err != nil {
			return fmt.Errorf("failed to delete copy %d: %w", c.ID, err)
		}
	}
	return nil
}
