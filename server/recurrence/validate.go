package recurrence

import (
	"errors"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/cyp0633/calrest/server/validation"
	"github.com/samber/mo"
)

// ErrNotObject is returned when the recurrence payload is not a JSON object.
// Every other malformed input is reported field by field instead.
var ErrNotObject = errors.New("recurrence: payload is not an object")

// readOnly keys a client may echo back from a fetched record.
var readOnly = map[string]bool{
	"id":                true,
	"calculatedEndTime": true,
}

// Validate checks a decoded recurrence object and reports every field.
// It is pure: the same input always yields the same report.
func Validate(raw any) (*validation.Errors, error) {
	_, errs, err := Decode(raw)
	return errs, err
}

// Decode validates raw and, when it is valid, builds the Rule. The report
// always carries all recurrence fields.
func Decode(raw any) (*Rule, *validation.Errors, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, nil, ErrNotObject
	}

	d := decoder{obj: obj, errs: validation.NewErrors(Fields...)}
	rule := d.decode()
	if d.errs.HasErrors() {
		return nil, d.errs, nil
	}
	return rule, d.errs, nil
}

type decoder struct {
	obj  map[string]any
	errs *validation.Errors
}

func (d *decoder) decode() *Rule {
	for key := range d.obj {
		if !isField(key) && !readOnly[key] {
			d.errs.AddForm(validation.MsgExtraFields)
			break
		}
	}

	typ, typeOK := d.recurrenceType()

	rule := &Rule{Type: typ}
	rule.Interval = d.interval(typ, typeOK)
	rule.Instance = d.boundedInt(FieldInstance, typ, typeOK, InstanceFirst, InstanceLast)
	rule.DayOfWeek = d.dayOfWeek(typ, typeOK)
	rule.DayOfMonth = d.boundedInt(FieldDayOfMonth, typ, typeOK, 1, 31)
	rule.MonthOfYear = d.boundedInt(FieldMonthOfYear, typ, typeOK, 1, MonthsPerYear)
	rule.StartTime = d.startTime()
	rule.EndTime = d.endTime(rule.StartTime)
	rule.Occurrences = d.occurrences()
	rule.TimeZone = d.timeZone()

	if typeOK && typ == Yearly {
		d.checkDayInMonth(rule)
	}
	if typeOK {
		d.dropUnused(rule)
	}
	return rule
}

func isField(key string) bool {
	for _, f := range Fields {
		if f == key {
			return true
		}
	}
	return false
}

func (d *decoder) missing(field string, typ Type, typeOK bool) {
	if typeOK && typ.Requires(field) {
		d.errs.Add(field, validation.MsgNotBlank)
	}
}

func (d *decoder) recurrenceType() (Type, bool) {
	v, ok := validation.Lookup(d.obj, FieldRecurrenceType)
	if !ok {
		d.errs.Add(FieldRecurrenceType, validation.MsgNotBlank)
		return "", false
	}
	s, err := validation.String(v).Get()
	if err != nil {
		d.errs.Add(FieldRecurrenceType, validation.MsgInvalid)
		return "", false
	}
	if strings.TrimSpace(s) == "" {
		d.errs.Add(FieldRecurrenceType, validation.MsgNotBlank)
		return "", false
	}
	typ, ok := ParseType(s)
	if !ok {
		d.errs.Add(FieldRecurrenceType, validation.MsgChoice)
		return "", false
	}
	return typ, true
}

func (d *decoder) interval(typ Type, typeOK bool) int {
	v, ok := validation.Lookup(d.obj, FieldInterval)
	if !ok {
		d.errs.Add(FieldInterval, validation.MsgNotBlank)
		return 0
	}
	n, err := validation.Int(v).Get()
	if err != nil {
		d.errs.Add(FieldInterval, validation.MsgInvalid)
		return 0
	}
	if n < 1 {
		d.errs.Add(FieldInterval, validation.MsgMin(1))
		return n
	}
	limit := MaxInterval
	if typeOK && typ.countsMonths() {
		limit = MaxInterval * MonthsPerYear
	}
	if n > limit {
		d.errs.Add(FieldInterval, validation.MsgMax(limit))
		return n
	}
	if typeOK && typ.countsMonths() && n%MonthsPerYear != 0 {
		d.errs.Add(FieldInterval, validation.MsgMultipleOf(MonthsPerYear))
	}
	return n
}

func (d *decoder) boundedInt(field string, typ Type, typeOK bool, lo, hi int) mo.Option[int] {
	v, ok := validation.Lookup(d.obj, field)
	if !ok {
		d.missing(field, typ, typeOK)
		return mo.None[int]()
	}
	n, err := validation.Int(v).Get()
	switch {
	case err != nil:
		d.errs.Add(field, validation.MsgInvalid)
	case n < lo:
		d.errs.Add(field, validation.MsgMin(lo))
	case n > hi:
		d.errs.Add(field, validation.MsgMax(hi))
	default:
		return mo.Some(n)
	}
	return mo.None[int]()
}

func (d *decoder) dayOfWeek(typ Type, typeOK bool) []time.Weekday {
	v, ok := validation.Lookup(d.obj, FieldDayOfWeek)
	if !ok {
		d.missing(FieldDayOfWeek, typ, typeOK)
		return nil
	}
	names, err := validation.Strings(v).Get()
	if err != nil {
		d.errs.Add(FieldDayOfWeek, validation.MsgInvalid)
		return nil
	}
	if len(names) == 0 {
		d.missing(FieldDayOfWeek, typ, typeOK)
		return nil
	}

	var seen [7]bool
	for _, name := range names {
		wd, ok := ParseWeekday(name)
		if !ok {
			d.errs.Add(FieldDayOfWeek, validation.MsgChoices)
			return nil
		}
		seen[wd] = true
	}
	days := make([]time.Weekday, 0, len(names))
	for i, on := range seen {
		if on {
			days = append(days, time.Weekday(i))
		}
	}
	return days
}

func (d *decoder) startTime() time.Time {
	v, ok := validation.Lookup(d.obj, FieldStartTime)
	if !ok {
		d.errs.Add(FieldStartTime, validation.MsgNotBlank)
		return time.Time{}
	}
	t, err := validation.Time(v).Get()
	if err != nil {
		d.errs.Add(FieldStartTime, validation.MsgInvalid)
		return time.Time{}
	}
	return t.UTC()
}

func (d *decoder) endTime(start time.Time) mo.Option[time.Time] {
	v, ok := validation.Lookup(d.obj, FieldEndTime)
	if !ok {
		return mo.None[time.Time]()
	}
	t, err := validation.Time(v).Get()
	if err != nil {
		d.errs.Add(FieldEndTime, validation.MsgInvalid)
		return mo.None[time.Time]()
	}
	if !start.IsZero() && t.Before(start) {
		d.errs.Add(FieldEndTime, validation.MsgEndBeforeStart)
	}
	return mo.Some(t.UTC())
}

func (d *decoder) occurrences() mo.Option[int] {
	v, ok := validation.Lookup(d.obj, FieldOccurrences)
	if !ok {
		return mo.None[int]()
	}
	n, err := validation.Int(v).Get()
	switch {
	case err != nil:
		d.errs.Add(FieldOccurrences, validation.MsgInvalid)
		return mo.None[int]()
	case n < 1:
		d.errs.Add(FieldOccurrences, validation.MsgMin(1))
	case n > MaxOccurrences:
		d.errs.Add(FieldOccurrences, validation.MsgMax(MaxOccurrences))
	}
	if _, hasEnd := validation.Lookup(d.obj, FieldEndTime); hasEnd {
		d.errs.Add(FieldOccurrences, validation.MsgSingleEnd)
	}
	return mo.Some(n)
}

func (d *decoder) timeZone() string {
	v, ok := validation.Lookup(d.obj, FieldTimeZone)
	if !ok {
		d.errs.Add(FieldTimeZone, validation.MsgNotBlank)
		return ""
	}
	s, err := validation.String(v).Get()
	if err != nil {
		d.errs.Add(FieldTimeZone, validation.MsgInvalid)
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.errs.Add(FieldTimeZone, validation.MsgNotBlank)
		return ""
	}
	// time.LoadLocation maps "Local" to the host zone, which is not portable
	if s == "Local" {
		d.errs.Add(FieldTimeZone, validation.MsgTimezone)
		return ""
	}
	if _, err := time.LoadLocation(s); err != nil {
		d.errs.Add(FieldTimeZone, validation.MsgTimezone)
		return ""
	}
	return s
}

// checkDayInMonth rejects dates that never exist, such as 30 February.
// 29 February is allowed; such a series only fires in leap years.
func (d *decoder) checkDayInMonth(rule *Rule) {
	dom, ok1 := rule.DayOfMonth.Get()
	moy, ok2 := rule.MonthOfYear.Get()
	if !ok1 || !ok2 {
		return
	}
	// day 0 of the following month is the last day of moy, in a leap year
	last := time.Date(2000, time.Month(moy)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if dom > last {
		d.errs.Add(FieldDayOfMonth, validation.MsgInvalid)
	}
}

// dropUnused clears fields the declared type does not use.
func (d *decoder) dropUnused(rule *Rule) {
	if !rule.Type.Requires(FieldInstance) {
		rule.Instance = mo.None[int]()
	}
	if !rule.Type.Requires(FieldDayOfWeek) {
		rule.DayOfWeek = nil
	}
	if !rule.Type.Requires(FieldDayOfMonth) {
		rule.DayOfMonth = mo.None[int]()
	}
	if !rule.Type.Requires(FieldMonthOfYear) {
		rule.MonthOfYear = mo.None[int]()
	}
}
