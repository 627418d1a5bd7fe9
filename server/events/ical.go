package events

import (
	"context"
	"fmt"
	"time"

	"github.com/cyp0633/calrest/server/auth"
	"github.com/cyp0633/calrest/server/recurrence"
	"github.com/cyp0633/calrest/server/storage"
	"github.com/emersion/go-ical"
	"github.com/samber/mo"
)

const productID = "-//calrest//calendar events//EN"

var partStat = map[storage.AttendeeStatus]string{
	storage.StatusNone:      "NEEDS-ACTION",
	storage.StatusAccepted:  "ACCEPTED",
	storage.StatusDeclined:  "DECLINED",
	storage.StatusTentative: "TENTATIVE",
}

var role = map[storage.AttendeeType]string{
	storage.TypeOrganizer: "CHAIR",
	storage.TypeRequired:  "REQ-PARTICIPANT",
	storage.TypeOptional:  "OPT-PARTICIPANT",
}

// Export renders an event as an iCalendar object. A series carries its
// RRULE, the cancelled occurrences as EXDATE and one VEVENT per modified
// occurrence.
func (s *Service) Export(ctx context.Context, p *auth.Principal, eventID int64) (*ical.Calendar, error) {
	event, _, err := s.loadOwned(ctx, p, eventID)
	if err != nil {
		return nil, err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropVersion, "2.0")

	comp := eventComponent(event)
	cal.Children = append(cal.Children, comp)

	if id, ok := event.RecurringEventID.Get(); ok {
		if orig, ok := event.OriginalStart.Get(); ok {
			comp.Props.Set(recurrence.RecurrenceIDProp(orig))
		}
		s.logger.Debug("exported exception", "event_id", eventID, "recurring_event_id", id)
		return cal, nil
	}
	if event.Recurrence == nil {
		return cal, nil
	}

	rrule, err := s.engine.RRuleProp(event.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("failed to render recurrence of event %d: %w", eventID, err)
	}
	comp.Props.Set(rrule)

	seriesID := event.ParentEventID.OrElse(event.ID)
	exceptions, err := s.store.ListEvents(ctx, storage.ListOptions{RecurringEventID: mo.Some(seriesID)})
	if err != nil {
		return nil, fmt.Errorf("failed to list exceptions of event %d: %w", seriesID, err)
	}
	exdates := make([]time.Time, 0, len(exceptions))
	for _, ex := range exceptions {
		orig, ok := ex.OriginalStart.Get()
		if !ok {
			continue
		}
		if ex.IsCancelled || event.IsCopy() {
			exdates = append(exdates, orig)
			continue
		}
		child := eventComponent(ex)
		child.Props.Set(recurrence.RecurrenceIDProp(orig))
		cal.Children = append(cal.Children, child)
	}
	if prop := recurrence.ExceptionDatesProp(exdates); prop != nil {
		comp.Props.Set(prop)
	}
	return cal, nil
}

func eventComponent(e *storage.Event) *ical.Component {
	comp := ical.NewComponent(ical.CompEvent)
	comp.Props.SetText(ical.PropUID, e.UID)
	comp.Props.SetDateTime(ical.PropDateTimeStamp, e.Modified.UTC())
	if e.AllDay {
		comp.Props.SetDate(ical.PropDateTimeStart, e.Start)
		comp.Props.SetDate(ical.PropDateTimeEnd, e.End)
	} else {
		comp.Props.SetDateTime(ical.PropDateTimeStart, e.Start.UTC())
		comp.Props.SetDateTime(ical.PropDateTimeEnd, e.End.UTC())
	}
	comp.Props.SetText(ical.PropSummary, e.Title)
	if d, ok := e.Description.Get(); ok && d != "" {
		comp.Props.SetText(ical.PropDescription, d)
	}
	if c, ok := e.BackgroundColor.Get(); ok {
		comp.Props.SetText(ical.PropColor, c)
	}
	if e.IsCancelled {
		comp.Props.SetText(ical.PropStatus, "CANCELLED")
	}
	comp.Props.SetDateTime(ical.PropCreated, e.Created.UTC())
	comp.Props.SetDateTime(ical.PropLastModified, e.Modified.UTC())

	for _, a := range e.Attendees {
		if a.Email == "" {
			continue
		}
		prop := ical.NewProp(ical.PropAttendee)
		prop.Value = "mailto:" + a.Email
		if a.DisplayName != "" {
			prop.Params.Set("CN", a.DisplayName)
		}
		prop.Params.Set("PARTSTAT", partStat[a.Status])
		prop.Params.Set("ROLE", role[a.Type])
		comp.Props.Add(prop)
	}
	return comp
}
