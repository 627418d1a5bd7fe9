package recurrence

import (
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

const icalUTCLayout = "20060102T150405Z"

// RRuleProp builds the RRULE property of a series.
//
// The value is assigned directly: Props.SetText would escape the commas and
// semicolons the rule syntax relies on.
func (e *Engine) RRuleProp(rule *Rule) (*ical.Prop, error) {
	value, err := e.RRuleString(rule)
	if err != nil {
		return nil, err
	}
	prop := ical.NewProp(ical.PropRecurrenceRule)
	prop.Value = value
	return prop, nil
}

// ExceptionDatesProp builds an EXDATE property listing excluded occurrence
// starts in UTC, or nil when there are none.
func ExceptionDatesProp(dates []time.Time) *ical.Prop {
	if len(dates) == 0 {
		return nil
	}
	values := make([]string, len(dates))
	for i, d := range dates {
		values[i] = d.UTC().Format(icalUTCLayout)
	}
	prop := ical.NewProp(ical.PropExceptionDates)
	prop.Value = strings.Join(values, ",")
	return prop
}

// RecurrenceIDProp builds the RECURRENCE-ID of an exception instance.
func RecurrenceIDProp(originalStart time.Time) *ical.Prop {
	prop := ical.NewProp("RECURRENCE-ID")
	prop.Value = originalStart.UTC().Format(icalUTCLayout)
	return prop
}
