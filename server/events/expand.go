package events

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cyp0633/calrest/server/auth"
	"github.com/cyp0633/calrest/server/recurrence"
	"github.com/cyp0633/calrest/server/storage"
	"github.com/samber/mo"
)

// MaxListRange bounds the width of a List range. Series are expanded over the
// whole range, so the bound also caps the occurrences built per series.
const MaxListRange = 10 * 366 * 24 * time.Hour

// listExpansion expands without truncation; List bounds the range instead.
var listExpansion = recurrence.ExpansionOptions{}

// List returns the events of a calendar overlapping [start, end]. Recurring
// series are expanded into occurrences; exceptions replace the occurrence
// they override and cancelled ones remove it.
func (s *Service) List(ctx context.Context, p *auth.Principal, calendarID int64, start, end time.Time) ([]Record, error) {
	if end.Before(start) {
		return nil, badRequest("The end of the range must not precede its start.")
	}
	if end.Sub(start) > MaxListRange {
		return nil, badRequest("The range must not exceed 10 years.")
	}
	cal, err := s.ownedCalendar(ctx, p, calendarID)
	if err != nil {
		return nil, err
	}
	owner, err := s.store.GetUser(ctx, cal.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", cal.UserID, err)
	}

	events, err := s.store.ListEvents(ctx, storage.ListOptions{
		CalendarID: mo.Some(cal.ID),
		Start:      mo.Some(start),
		End:        mo.Some(end),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events of calendar %d: %w", cal.ID, err)
	}

	records := make([]Record, 0, len(events))
	for _, e := range events {
		switch {
		case e.IsException() && e.IsCancelled:
			continue
		case e.Recurrence != nil:
			// a copy is expanded regardless, the organizer may have moved
			// an occurrence into the range
			if !e.IsCopy() {
				ok, err := s.engine.HasOccurrenceInRange(e.Recurrence, e.Duration(), nil, start, end)
				if err != nil {
					return nil, fmt.Errorf("failed to probe event %d: %w", e.ID, err)
				}
				if !ok {
					continue
				}
			}
			occurrences, err := s.expand(ctx, owner, p, e, start, end)
			if err != nil {
				return nil, err
			}
			records = append(records, occurrences...)
		default:
			v, err := s.viewWithOwner(owner, p, e)
			if err != nil {
				return nil, err
			}
			records = append(records, v.record())
		}
	}

	// layout is fixed-width UTC, so text order is time order
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Start != records[j].Start {
			return records[i].Start < records[j].Start
		}
		return records[i].ID < records[j].ID
	})

	s.logger.Debug("listed events",
		"calendar_id", cal.ID,
		"start", start,
		"end", end,
		"count", len(records))
	return records, nil
}

// expand turns a recurring event into one record per occurrence in range.
// Exceptions of the organizer's series replace their occurrence; for an
// attendee copy they are substituted here, since they are not fanned out.
func (s *Service) expand(ctx context.Context, owner *storage.User, p *auth.Principal, e *storage.Event, start, end time.Time) ([]Record, error) {
	// copies follow the exceptions of the organizer's series
	seriesID := e.ParentEventID.OrElse(e.ID)
	exceptions, err := s.store.ListEvents(ctx, storage.ListOptions{RecurringEventID: mo.Some(seriesID)})
	if err != nil {
		return nil, fmt.Errorf("failed to list exceptions of event %d: %w", seriesID, err)
	}
	exdates := make([]time.Time, 0, len(exceptions))
	for _, ex := range exceptions {
		if t, ok := ex.OriginalStart.Get(); ok {
			exdates = append(exdates, t)
		}
	}

	duration := e.Duration()
	starts, err := s.engine.Occurrences(e.Recurrence, start.Add(-duration), end, listExpansion)
	if err != nil {
		return nil, fmt.Errorf("failed to expand event %d: %w", e.ID, err)
	}

	out := make([]Record, 0, len(starts))
	for _, occ := range starts {
		if recurrence.IsExcluded(occ, exdates) || occ.Add(duration).Before(start) {
			continue
		}
		inst := e.Clone()
		inst.Start = occ
		inst.End = occ.Add(duration)
		inst.Recurrence = nil
		inst.RecurringEventID = mo.Some(e.ID)
		inst.OriginalStart = mo.Some(occ)

		v, err := s.viewWithOwner(owner, p, inst)
		if err != nil {
			return nil, err
		}
		out = append(out, v.record())
	}

	if e.IsCopy() {
		for _, ex := range exceptions {
			if ex.IsCancelled || ex.End.Before(start) || ex.Start.After(end) {
				continue
			}
			v, err := s.viewWithOwner(owner, p, movedForCopy(e, ex, owner.Email))
			if err != nil {
				return nil, err
			}
			out = append(out, v.record())
		}
	}
	return out, nil
}

// movedForCopy shapes the organizer's exception ex as an occurrence of the
// attendee copy c. The invitee's answer is taken from the copy.
func movedForCopy(c, ex *storage.Event, ownerEmail string) *storage.Event {
	inst := ex.Clone()
	inst.ID = c.ID
	inst.CalendarID = c.CalendarID
	inst.ParentEventID = mo.Some(ex.ID)
	inst.RecurringEventID = mo.Some(c.ID)
	inst.Recurrence = nil

	answer, ok := findAttendee(c.Attendees, ownerEmail)
	if !ok {
		return inst
	}
	for i := range inst.Attendees {
		if strings.EqualFold(inst.Attendees[i].Email, ownerEmail) {
			inst.Attendees[i].Status = answer.Status
			return inst
		}
	}
	return inst
}
