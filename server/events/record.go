package events

import (
	"strings"
	"time"

	"github.com/cyp0633/calrest/server/recurrence"
	"github.com/cyp0633/calrest/server/storage"
	"github.com/samber/mo"
)

// Record is the full representation of an event returned to clients.
// Field order is the wire order.
type Record struct {
	ID               int64            `json:"id"`
	Calendar         int64            `json:"calendar"`
	ParentEventID    *int64           `json:"parentEventId"`
	Title            string           `json:"title"`
	Description      *string          `json:"description"`
	Start            string           `json:"start"`
	End              string           `json:"end"`
	AllDay           bool             `json:"allDay"`
	UseHangout       bool             `json:"use_hangout"`
	Attendees        []AttendeeRecord `json:"attendees"`
	Editable         bool             `json:"editable"`
	Removable        bool             `json:"removable"`
	Notifiable       bool             `json:"notifiable"`
	BackgroundColor  *string          `json:"backgroundColor"`
	InvitationStatus string           `json:"invitationStatus"`
	RecurringEventID *int64           `json:"recurringEventId"`
	OriginalStart    *string          `json:"originalStart"`
	IsCancelled      bool             `json:"isCancelled"`
	CreatedAt        string           `json:"createdAt"`
	UpdatedAt        string           `json:"updatedAt"`
	Recurrence       map[string]any   `json:"recurrence,omitempty"`
}

// AttendeeRecord is the client representation of an attendee.
type AttendeeRecord struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	UserID      *int64 `json:"userId"`
}

// CreateResult is the body of a 201 response.
type CreateResult struct {
	ID               int64  `json:"id"`
	Notifiable       bool   `json:"notifiable"`
	InvitationStatus string `json:"invitationStatus"`
}

// UpdateResult is the body of a successful update.
type UpdateResult struct {
	Notifiable       bool   `json:"notifiable"`
	InvitationStatus string `json:"invitationStatus"`
}

// InvitationResult is the body of a successful invitation answer.
type InvitationResult struct {
	InvitationStatus string `json:"invitationStatus"`
}

const fieldCalculatedEndTime = "calculatedEndTime"

func formatTime(t time.Time) string {
	return t.UTC().Format(recurrence.TimeLayout)
}

func optionalTime(o mo.Option[time.Time]) *string {
	t, ok := o.Get()
	if !ok {
		return nil
	}
	s := formatTime(t)
	return &s
}

func optionalString(o mo.Option[string]) *string {
	s, ok := o.Get()
	if !ok {
		return nil
	}
	return &s
}

func optionalID(o mo.Option[int64]) *int64 {
	id, ok := o.Get()
	if !ok {
		return nil
	}
	return &id
}

// eventView holds what deriving a record needs besides the event itself.
type eventView struct {
	event     *storage.Event
	owner     *storage.User
	principal int64
	now       time.Time
	calcEnd   mo.Option[time.Time]
}

// invitationStatus is the answer of the calendar owner, if they attend.
func (v eventView) invitationStatus() storage.AttendeeStatus {
	if a, ok := findAttendee(v.event.Attendees, v.owner.Email); ok {
		return a.Status
	}
	return storage.StatusNone
}

// notifiable reports whether attendees should be told about changes.
func (v eventView) notifiable() bool {
	e := v.event
	if e.IsCopy() || e.IsCancelled {
		return false
	}
	end := e.End
	if calc, ok := v.calcEnd.Get(); ok {
		end = calc.Add(e.Duration())
	}
	if !end.After(v.now) {
		return false
	}
	for _, a := range e.Attendees {
		if a.Email != "" && !strings.EqualFold(a.Email, v.owner.Email) {
			return true
		}
	}
	return false
}

func (v eventView) editable() bool {
	return v.removable() && !v.event.IsCopy()
}

func (v eventView) removable() bool {
	return v.owner.ID == v.principal
}

func (v eventView) record() Record {
	e := v.event
	r := Record{
		ID:               e.ID,
		Calendar:         e.CalendarID,
		ParentEventID:    optionalID(e.ParentEventID),
		Title:            e.Title,
		Description:      optionalString(e.Description),
		Start:            formatTime(e.Start),
		End:              formatTime(e.End),
		AllDay:           e.AllDay,
		UseHangout:       e.UseHangout,
		Attendees:        attendeeRecords(e.Attendees),
		Editable:         v.editable(),
		Removable:        v.removable(),
		Notifiable:       v.notifiable(),
		BackgroundColor:  optionalString(e.BackgroundColor),
		InvitationStatus: string(v.invitationStatus()),
		RecurringEventID: optionalID(e.RecurringEventID),
		OriginalStart:    optionalTime(e.OriginalStart),
		IsCancelled:      e.IsCancelled,
		CreatedAt:        formatTime(e.Created),
		UpdatedAt:        formatTime(e.Modified),
	}
	if e.Recurrence != nil {
		r.Recurrence = e.Recurrence.Payload()
		if calc, ok := v.calcEnd.Get(); ok {
			r.Recurrence[fieldCalculatedEndTime] = formatTime(calc)
		}
	}
	return r
}

func attendeeRecords(list []storage.Attendee) []AttendeeRecord {
	out := make([]AttendeeRecord, 0, len(list))
	for _, a := range list {
		out = append(out, AttendeeRecord{
			DisplayName: a.DisplayName,
			Email:       a.Email,
			Status:      string(a.Status),
			Type:        string(a.Type),
			UserID:      optionalID(a.UserID),
		})
	}
	return out
}

func findAttendee(list []storage.Attendee, email string) (storage.Attendee, bool) {
	if email == "" {
		return storage.Attendee{}, false
	}
	for _, a := range list {
		if strings.EqualFold(a.Email, email) {
			return a, true
		}
	}
	return storage.Attendee{}, false
}

// formPayload renders e in the shape the form decoder accepts, so a partial
// update can be merged over the stored state.
func formPayload(e *storage.Event) map[string]any {
	attendees := make([]any, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		attendees = append(attendees, map[string]any{
			FieldDisplayName: a.DisplayName,
			FieldEmail:       a.Email,
			FieldStatus:      string(a.Status),
			FieldType:        string(a.Type),
		})
	}
	payload := map[string]any{
		FieldCalendar:    e.CalendarID,
		FieldTitle:       e.Title,
		FieldStart:       formatTime(e.Start),
		FieldEnd:         formatTime(e.End),
		FieldAllDay:      e.AllDay,
		FieldUseHangout:  e.UseHangout,
		FieldAttendees:   attendees,
		FieldIsCancelled: e.IsCancelled,
	}
	if s, ok := e.Description.Get(); ok {
		payload[FieldDescription] = s
	}
	if s, ok := e.BackgroundColor.Get(); ok {
		payload[FieldBackgroundColor] = s
	}
	if e.Recurrence != nil {
		payload[FieldRecurrence] = e.Recurrence.Payload()
	}
	if id, ok := e.RecurringEventID.Get(); ok {
		payload[FieldRecurringEventID] = id
	}
	if t, ok := e.OriginalStart.Get(); ok {
		payload[FieldOriginalStart] = formatTime(t)
	}
	return payload
}
