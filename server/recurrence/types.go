package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Type is the kind of repetition of a Rule.
type Type string

const (
	Daily      Type = "daily"
	Weekly     Type = "weekly"
	Monthly    Type = "monthly"
	MonthlyNth Type = "monthlynth"
	Yearly     Type = "yearly"
	YearlyNth  Type = "yearlynth"
)

// Recurrence field names as they appear on the wire.
const (
	FieldRecurrenceType = "recurrenceType"
	FieldInterval       = "interval"
	FieldInstance       = "instance"
	FieldDayOfWeek      = "dayOfWeek"
	FieldDayOfMonth     = "dayOfMonth"
	FieldMonthOfYear    = "monthOfYear"
	FieldStartTime      = "startTime"
	FieldEndTime        = "endTime"
	FieldOccurrences    = "occurrences"
	FieldTimeZone       = "timeZone"
)

// Fields lists every recurrence field in envelope order.
var Fields = []string{
	FieldRecurrenceType,
	FieldInterval,
	FieldInstance,
	FieldDayOfWeek,
	FieldDayOfMonth,
	FieldMonthOfYear,
	FieldStartTime,
	FieldEndTime,
	FieldOccurrences,
	FieldTimeZone,
}

// Limits
const (
	InstanceFirst  = 1
	InstanceLast   = 5 // "last" occurrence of the weekday in the period
	MaxOccurrences = 999
	MonthsPerYear  = 12
	// MaxInterval bounds interval in periods of the type; yearly types count
	// months, so their bound is MaxInterval*MonthsPerYear.
	MaxInterval = 99
)

// MaxEndTime is the calculated end of a series that never ends.
var MaxEndTime = time.Date(9000, time.January, 1, 0, 0, 0, 0, time.UTC)

var typeAliases = map[string]Type{
	"monthnth": MonthlyNth,
	"yearnth":  YearlyNth,
}

// ParseType resolves a wire value to a Type.
func ParseType(s string) (Type, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch t := Type(s); t {
	case Daily, Weekly, Monthly, MonthlyNth, Yearly, YearlyNth:
		return t, true
	}
	t, ok := typeAliases[s]
	return t, ok
}

// required lists the fields each type needs besides the ones every rule
// needs (recurrenceType, interval, startTime, timeZone).
var required = map[Type][]string{
	Daily:      nil,
	Weekly:     {FieldDayOfWeek},
	Monthly:    {FieldDayOfMonth},
	MonthlyNth: {FieldInstance, FieldDayOfWeek},
	Yearly:     {FieldDayOfMonth, FieldMonthOfYear},
	YearlyNth:  {FieldInstance, FieldDayOfWeek, FieldMonthOfYear},
}

// Requires reports whether a rule of type t must carry field.
func (t Type) Requires(field string) bool {
	switch field {
	case FieldRecurrenceType, FieldInterval, FieldStartTime, FieldTimeZone:
		return true
	}
	for _, f := range required[t] {
		if f == field {
			return true
		}
	}
	return false
}

// Yearly types count their interval in months.
func (t Type) countsMonths() bool {
	return t == Yearly || t == YearlyNth
}

var weekdayNames = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// WeekdayName returns the wire name of d.
func WeekdayName(d time.Weekday) string {
	return weekdayNames[d]
}

// ParseWeekday resolves a wire weekday name.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range weekdayNames {
		if name == s {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// Rule is a validated recurrence pattern.
type Rule struct {
	Type        Type
	Interval    int
	Instance    mo.Option[int]
	DayOfWeek   []time.Weekday
	DayOfMonth  mo.Option[int]
	MonthOfYear mo.Option[int]
	StartTime   time.Time
	EndTime     mo.Option[time.Time]
	Occurrences mo.Option[int]
	TimeZone    string
}

// Location loads the rule's time zone, falling back to UTC.
func (r *Rule) Location() *time.Location {
	loc, err := time.LoadLocation(r.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Key fingerprints the rule for caching and change detection.
func (r *Rule) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%d/%s/%s", r.Type, r.Interval, r.StartTime.UTC().Format(time.RFC3339), r.TimeZone)
	if v, ok := r.Instance.Get(); ok {
		fmt.Fprintf(&b, "/i%d", v)
	}
	for _, d := range r.DayOfWeek {
		fmt.Fprintf(&b, "/w%d", d)
	}
	if v, ok := r.DayOfMonth.Get(); ok {
		fmt.Fprintf(&b, "/d%d", v)
	}
	if v, ok := r.MonthOfYear.Get(); ok {
		fmt.Fprintf(&b, "/m%d", v)
	}
	if v, ok := r.EndTime.Get(); ok {
		fmt.Fprintf(&b, "/u%s", v.UTC().Format(time.RFC3339))
	}
	if v, ok := r.Occurrences.Get(); ok {
		fmt.Fprintf(&b, "/c%d", v)
	}
	return b.String()
}

// Equal reports whether two rules describe the same series.
func (r *Rule) Equal(o *Rule) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.Key() == o.Key()
}

// Clone returns a deep copy of r.
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	c := *r
	c.DayOfWeek = append([]time.Weekday(nil), r.DayOfWeek...)
	return &c
}

// ExpansionOptions limits an expansion.
type ExpansionOptions struct {
	MaxOccurrences int // 0 = unlimited
}
