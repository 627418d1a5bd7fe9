package recurrence

import "time"

// TimeLayout is RFC3339 with a numeric offset, "+00:00" rather than "Z".
const TimeLayout = "2006-01-02T15:04:05-07:00"

// Payload renders the rule back into its wire form. Decode(r.Payload())
// yields an equal rule.
func (r *Rule) Payload() map[string]any {
	days := make([]any, 0, len(r.DayOfWeek))
	for _, d := range r.DayOfWeek {
		days = append(days, WeekdayName(d))
	}
	return map[string]any{
		FieldRecurrenceType: string(r.Type),
		FieldInterval:       r.Interval,
		FieldInstance:       optionalInt(r.Instance.Get()),
		FieldDayOfWeek:      days,
		FieldDayOfMonth:     optionalInt(r.DayOfMonth.Get()),
		FieldMonthOfYear:    optionalInt(r.MonthOfYear.Get()),
		FieldStartTime:      r.StartTime.UTC().Format(TimeLayout),
		FieldEndTime:        optionalTime(r.EndTime.Get()),
		FieldOccurrences:    optionalInt(r.Occurrences.Get()),
		FieldTimeZone:       r.TimeZone,
	}
}

func optionalInt(v int, ok bool) any {
	if !ok {
		return nil
	}
	return v
}

func optionalTime(v time.Time, ok bool) any {
	if !ok {
		return nil
	}
	return v.UTC().Format(TimeLayout)
}
