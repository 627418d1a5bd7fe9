package events

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cyp0633/calrest/server/auth"
	"github.com/cyp0633/calrest/server/recurrence"
	"github.com/cyp0633/calrest/server/storage"
	"github.com/cyp0633/calrest/server/validation"
	"github.com/samber/mo"
)

// Event form field names as they appear on the wire.
const (
	FieldCalendar         = "calendar"
	FieldTitle            = "title"
	FieldDescription      = "description"
	FieldStart            = "start"
	FieldEnd              = "end"
	FieldAllDay           = "allDay"
	FieldBackgroundColor  = "backgroundColor"
	FieldUseHangout       = "use_hangout"
	FieldAttendees        = "attendees"
	FieldRecurrence       = "recurrence"
	FieldRecurringEventID = "recurringEventId"
	FieldOriginalStart    = "originalStart"
	FieldIsCancelled      = "isCancelled"
)

// FormFields lists the event form fields in envelope order.
var FormFields = []string{
	FieldCalendar,
	FieldTitle,
	FieldDescription,
	FieldStart,
	FieldEnd,
	FieldAllDay,
	FieldBackgroundColor,
	FieldUseHangout,
	FieldAttendees,
	FieldRecurrence,
	FieldRecurringEventID,
	FieldOriginalStart,
	FieldIsCancelled,
}

// Attendee sub-form fields.
const (
	FieldDisplayName    = "displayName"
	FieldEmail          = "email"
	FieldStatus         = "status"
	FieldType           = "type"
	fieldAttendeeUserID = "userId"
)

// AttendeeFields lists the attendee sub-form fields in envelope order.
var AttendeeFields = []string{FieldDisplayName, FieldEmail, FieldStatus, FieldType}

const maxTitleLength = 255

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// readOnlyFields are record keys a client may echo back unchanged.
var readOnlyFields = map[string]bool{
	"id":               true,
	"parentEventId":    true,
	"editable":         true,
	"removable":        true,
	"notifiable":       true,
	"invitationStatus": true,
	"createdAt":        true,
	"updatedAt":        true,
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// formDecoder fills target from a submitted form, recording every problem
// in errs. Only storage failures and access violations abort decoding.
type formDecoder struct {
	ctx       context.Context
	store     storage.Storage
	principal *auth.Principal
	obj       map[string]any
	errs      *validation.Errors
	target    *storage.Event
}

func (s *Service) decodeForm(ctx context.Context, p *auth.Principal, obj map[string]any, target *storage.Event) (*validation.Errors, error) {
	d := &formDecoder{
		ctx:       ctx,
		store:     s.store,
		principal: p,
		obj:       obj,
		errs:      validation.NewErrors(FormFields...),
		target:    target,
	}
	if err := d.decode(); err != nil {
		return nil, err
	}
	return d.errs, nil
}

func (d *formDecoder) decode() error {
	for key := range d.obj {
		if !contains(FormFields, key) && !readOnlyFields[key] {
			d.errs.AddForm(validation.MsgExtraFields)
			break
		}
	}

	if err := d.calendar(); err != nil {
		return err
	}
	d.title()
	d.description()
	d.period()
	d.target.AllDay = d.flag(FieldAllDay)
	d.backgroundColor()
	d.target.UseHangout = d.flag(FieldUseHangout)
	d.attendees()
	d.recurrence()
	if err := d.exception(); err != nil {
		return err
	}
	d.target.IsCancelled = d.flag(FieldIsCancelled)
	return nil
}

func (d *formDecoder) calendar() error {
	d.target.CalendarID = 0
	v, ok := validation.Lookup(d.obj, FieldCalendar)
	if !ok {
		d.errs.Add(FieldCalendar, validation.MsgNotBlank)
		return nil
	}
	id, err := validation.Int64(v).Get()
	if err != nil {
		d.errs.Add(FieldCalendar, validation.MsgInvalid)
		return nil
	}
	cal, err := d.store.GetCalendar(d.ctx, id)
	if storage.IsNotFound(err) {
		d.errs.Add(FieldCalendar, validation.MsgInvalid)
		return nil
	}
	if err != nil {
		return err
	}
	if cal.UserID != d.principal.UserID {
		d.errs.Add(FieldCalendar, validation.MsgInvalid)
		return nil
	}
	d.target.CalendarID = cal.ID
	return nil
}

func (d *formDecoder) title() {
	v, ok := validation.Lookup(d.obj, FieldTitle)
	if !ok {
		d.errs.Add(FieldTitle, validation.MsgNotBlank)
		return
	}
	s, err := validation.String(v).Get()
	switch {
	case err != nil:
		d.errs.Add(FieldTitle, validation.MsgInvalid)
	case strings.TrimSpace(s) == "":
		d.errs.Add(FieldTitle, validation.MsgNotBlank)
	case utf8.RuneCountInString(s) > maxTitleLength:
		d.errs.Add(FieldTitle, validation.MsgTooLong(maxTitleLength))
	default:
		d.target.Title = s
	}
}

func (d *formDecoder) description() {
	d.target.Description = mo.None[string]()
	v, ok := validation.Lookup(d.obj, FieldDescription)
	if !ok {
		return
	}
	s, err := validation.String(v).Get()
	if err != nil {
		d.errs.Add(FieldDescription, validation.MsgInvalid)
		return
	}
	d.target.Description = mo.Some(s)
}

func (d *formDecoder) period() {
	start, startOK := d.timestamp(FieldStart)
	end, endOK := d.timestamp(FieldEnd)
	if startOK && endOK && end.Before(start) {
		d.errs.Add(FieldEnd, validation.MsgEndBeforeStart)
	}
	d.target.Start = start
	d.target.End = end
}

func (d *formDecoder) timestamp(field string) (t time.Time, ok bool) {
	v, present := validation.Lookup(d.obj, field)
	if !present {
		d.errs.Add(field, validation.MsgNotBlank)
		return t, false
	}
	parsed, err := validation.Time(v).Get()
	if err != nil {
		d.errs.Add(field, validation.MsgInvalid)
		return t, false
	}
	return parsed.UTC(), true
}

func (d *formDecoder) flag(field string) bool {
	v, ok := validation.Lookup(d.obj, field)
	if !ok {
		return false
	}
	b, err := validation.Bool(v).Get()
	if err != nil {
		d.errs.Add(field, validation.MsgInvalid)
		return false
	}
	return b
}

func (d *formDecoder) backgroundColor() {
	d.target.BackgroundColor = mo.None[string]()
	v, ok := validation.Lookup(d.obj, FieldBackgroundColor)
	if !ok {
		return
	}
	s, err := validation.String(v).Get()
	switch {
	case err != nil:
		d.errs.Add(FieldBackgroundColor, validation.MsgInvalid)
	case s == "":
	case !colorPattern.MatchString(s):
		d.errs.Add(FieldBackgroundColor, validation.MsgInvalid)
	default:
		d.target.BackgroundColor = mo.Some(s)
	}
}

func (d *formDecoder) attendees() {
	d.target.Attendees = nil
	v, ok := validation.Lookup(d.obj, FieldAttendees)
	if !ok {
		return
	}
	items, ok := v.([]any)
	if !ok {
		d.errs.Add(FieldAttendees, validation.MsgInvalid)
		return
	}
	if len(items) == 0 {
		return
	}

	list := validation.NewErrors()
	seen := make(map[string]bool, len(items))
	out := make([]storage.Attendee, 0, len(items))
	for i, item := range items {
		child := validation.NewErrors(AttendeeFields...)
		list.SetChild(strconv.Itoa(i), child)

		a := decodeAttendee(item, child)
		if key := strings.ToLower(a.Email); key != "" {
			if seen[key] {
				child.Add(FieldEmail, validation.MsgDuplicate)
			}
			seen[key] = true
		}
		out = append(out, a)
	}
	d.errs.SetChild(FieldAttendees, list)
	d.target.Attendees = out
}

func decodeAttendee(item any, errs *validation.Errors) storage.Attendee {
	a := storage.Attendee{Status: storage.StatusNone, Type: storage.TypeRequired}
	obj, ok := item.(map[string]any)
	if !ok {
		errs.AddForm(validation.MsgInvalid)
		return a
	}
	for key := range obj {
		if !contains(AttendeeFields, key) && key != fieldAttendeeUserID {
			errs.AddForm(validation.MsgExtraFields)
			break
		}
	}

	if v, ok := validation.Lookup(obj, FieldDisplayName); ok {
		if s, err := validation.String(v).Get(); err != nil {
			errs.Add(FieldDisplayName, validation.MsgInvalid)
		} else {
			a.DisplayName = strings.TrimSpace(s)
		}
	}
	if v, ok := validation.Lookup(obj, FieldEmail); ok {
		s, err := validation.String(v).Get()
		s = strings.TrimSpace(s)
		switch {
		case err != nil:
			errs.Add(FieldEmail, validation.MsgInvalid)
		case s == "":
		case !validEmail(s):
			errs.Add(FieldEmail, validation.MsgEmail)
		default:
			a.Email = s
		}
	}
	if a.DisplayName == "" && a.Email == "" && len(errs.Messages(FieldEmail)) == 0 {
		errs.Add(FieldDisplayName, validation.MsgNotBlank)
	}

	if v, ok := validation.Lookup(obj, FieldStatus); ok {
		s, err := validation.String(v).Get()
		st, known := storage.ParseAttendeeStatus(s)
		if err != nil || !known {
			errs.Add(FieldStatus, validation.MsgChoice)
		} else {
			a.Status = st
		}
	}
	if v, ok := validation.Lookup(obj, FieldType); ok {
		s, err := validation.String(v).Get()
		t, known := storage.ParseAttendeeType(s)
		if err != nil || !known {
			errs.Add(FieldType, validation.MsgChoice)
		} else {
			a.Type = t
		}
	}
	return a
}

// validEmail accepts a bare address, not a "Name <addr>" form.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func (d *formDecoder) recurrence() {
	d.target.Recurrence = nil
	v, ok := validation.Lookup(d.obj, FieldRecurrence)
	if !ok {
		return
	}
	rule, errs, err := recurrence.Decode(v)
	if errors.Is(err, recurrence.ErrNotObject) {
		d.errs.Add(FieldRecurrence, validation.MsgInvalid)
		return
	}
	d.errs.SetChild(FieldRecurrence, errs)
	d.target.Recurrence = rule
}

// exception decodes the link of a recurrence exception to its series.
func (d *formDecoder) exception() error {
	d.target.RecurringEventID = mo.None[int64]()
	d.target.OriginalStart = mo.None[time.Time]()

	idv, hasID := validation.Lookup(d.obj, FieldRecurringEventID)
	osv, hasStart := validation.Lookup(d.obj, FieldOriginalStart)
	if !hasID {
		if hasStart {
			d.errs.Add(FieldOriginalStart, validation.MsgInvalid)
		}
		return nil
	}

	if id, err := validation.Int64(idv).Get(); err != nil {
		d.errs.Add(FieldRecurringEventID, validation.MsgInvalid)
	} else {
		master, err := d.store.GetEvent(d.ctx, id)
		switch {
		case storage.IsNotFound(err):
			d.errs.Add(FieldRecurringEventID, validation.MsgInvalid)
		case err != nil:
			return err
		case !d.canOverride(master):
			d.errs.Add(FieldRecurringEventID, validation.MsgInvalid)
		default:
			d.target.RecurringEventID = mo.Some(id)
		}
	}

	if !hasStart {
		d.errs.Add(FieldOriginalStart, validation.MsgNotBlank)
	} else if t, err := validation.Time(osv).Get(); err != nil {
		d.errs.Add(FieldOriginalStart, validation.MsgInvalid)
	} else {
		d.target.OriginalStart = mo.Some(t.UTC())
	}

	// an exception replaces a single occurrence and cannot recur itself
	if _, has := validation.Lookup(d.obj, FieldRecurrence); has {
		if child := d.errs.Child(FieldRecurrence); child != nil {
			child.AddForm(validation.MsgInvalid)
		}
		d.target.Recurrence = nil
	}
	return nil
}

// canOverride reports whether the target may be an exception of master.
func (d *formDecoder) canOverride(master *storage.Event) bool {
	if master.ID == d.target.ID || master.Recurrence == nil {
		return false
	}
	if master.IsException() || master.IsCopy() {
		return false
	}
	return d.target.CalendarID == 0 || master.CalendarID == d.target.CalendarID
}
