package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Engine provides unified recurrence expansion logic
type Engine struct {
	cache  *RecurrenceCache
	config EngineConfig
}

// NewEngine creates a new recurrence engine instance without a cache
func NewEngine() *Engine {
	return NewEngineWithConfig(DisabledCacheConfig)
}

var rruleWeekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Options converts a rule into rrule options. The series is anchored at the
// rule's start time, expressed in the rule's time zone so that wall-clock
// times survive daylight saving changes.
func Options(rule *Rule) (rrule.ROption, error) {
	opt := rrule.ROption{
		Dtstart:  rule.StartTime.In(rule.Location()),
		Interval: rule.Interval,
	}

	weekdays := make([]rrule.Weekday, 0, len(rule.DayOfWeek))
	for _, d := range rule.DayOfWeek {
		weekdays = append(weekdays, rruleWeekdays[d])
	}
	setPos := func() []int {
		n := rule.Instance.OrElse(InstanceFirst)
		if n == InstanceLast {
			return []int{-1}
		}
		return []int{n}
	}

	switch rule.Type {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = weekdays
	case Monthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{rule.DayOfMonth.OrEmpty()}
	case MonthlyNth:
		opt.Freq = rrule.MONTHLY
		opt.Byweekday = weekdays
		opt.Bysetpos = setPos()
	case Yearly:
		opt.Freq = rrule.YEARLY
		opt.Interval = rule.Interval / MonthsPerYear
		opt.Bymonth = []int{rule.MonthOfYear.OrEmpty()}
		opt.Bymonthday = []int{rule.DayOfMonth.OrEmpty()}
	case YearlyNth:
		opt.Freq = rrule.YEARLY
		opt.Interval = rule.Interval / MonthsPerYear
		opt.Bymonth = []int{rule.MonthOfYear.OrEmpty()}
		opt.Byweekday = weekdays
		opt.Bysetpos = setPos()
	default:
		return rrule.ROption{}, fmt.Errorf("unsupported recurrence type %q", rule.Type)
	}
	if opt.Interval < 1 {
		opt.Interval = 1
	}

	if n, ok := rule.Occurrences.Get(); ok {
		opt.Count = n
	}
	if until, ok := rule.EndTime.Get(); ok {
		opt.Until = until.In(rule.Location())
	}
	return opt, nil
}

// RRule builds the rrule-go rule for a recurrence.
func (e *Engine) RRule(rule *Rule) (*rrule.RRule, error) {
	opt, err := Options(rule)
	if err != nil {
		return nil, err
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule %s: %w", rule.Key(), err)
	}
	return r, nil
}

// RRuleString renders the RRULE value (without DTSTART) of a recurrence.
func (e *Engine) RRuleString(rule *Rule) (string, error) {
	opt, err := Options(rule)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// Occurrences returns the start times of the series that fall inside
// [rangeStart, rangeEnd], in UTC.
func (e *Engine) Occurrences(rule *Rule, rangeStart, rangeEnd time.Time, opts ExpansionOptions) ([]time.Time, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get("occurrences", rule, rangeStart, rangeEnd); ok {
			return limit(cached.([]time.Time), opts.MaxOccurrences), nil
		}
	}

	r, err := e.RRule(rule)
	if err != nil {
		return nil, err
	}
	// Between is inclusive of both ends when inc is true
	raw := r.Between(rangeStart, rangeEnd, true)
	out := make([]time.Time, len(raw))
	for i, t := range raw {
		out[i] = t.UTC()
	}

	if e.cache != nil {
		e.cache.Set("occurrences", rule, rangeStart, rangeEnd, out)
	}
	return limit(out, opts.MaxOccurrences), nil
}

func limit(ts []time.Time, max int) []time.Time {
	if max > 0 && len(ts) > max {
		return ts[:max]
	}
	return ts
}

// HasOccurrenceInRange checks if a series whose occurrences last duration has
// any non-excluded occurrence overlapping the time range.
func (e *Engine) HasOccurrenceInRange(
	rule *Rule, duration time.Duration,
	exdates []time.Time,
	rangeStart, rangeEnd time.Time,
) (bool, error) {
	// look back by one duration so occurrences that started before the range
	// but are still running count as overlapping
	searchStart := rangeStart.Add(-duration)

	limitedEnd := rangeEnd
	if e.config.ProbeThreshold > 0 && rangeEnd.Sub(searchStart) > e.config.ProbeThreshold {
		limitedEnd = searchStart.Add(e.config.ProbeWindow)
	}

	occurrences, err := e.Occurrences(rule, searchStart, limitedEnd, ExpansionOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to check occurrences: %w", err)
	}
	for _, occ := range occurrences {
		if !IsExcluded(occ, exdates) && !occ.Add(duration).Before(rangeStart) {
			return true, nil
		}
	}

	if limitedEnd.Before(rangeEnd) {
		occurrences, err = e.Occurrences(rule, limitedEnd, rangeEnd,
			ExpansionOptions{MaxOccurrences: e.config.ProbeOccurrences})
		if err != nil {
			return false, fmt.Errorf("failed to check occurrences: %w", err)
		}
		for _, occ := range occurrences {
			if !IsExcluded(occ, exdates) {
				return true, nil
			}
		}
	}
	return false, nil
}

// CalculatedEndTime returns the last moment the series can produce an
// occurrence: the end time, the start of the last counted occurrence, or
// MaxEndTime for a series that never ends.
func (e *Engine) CalculatedEndTime(rule *Rule) (time.Time, error) {
	if end, ok := rule.EndTime.Get(); ok {
		return end.UTC(), nil
	}
	if _, ok := rule.Occurrences.Get(); ok {
		r, err := e.RRule(rule)
		if err != nil {
			return time.Time{}, err
		}
		all := r.All()
		if len(all) == 0 {
			return rule.StartTime.UTC(), nil
		}
		return all[len(all)-1].UTC(), nil
	}
	return MaxEndTime, nil
}

// IsExcluded checks if a given time is in the exclusion list
func IsExcluded(t time.Time, exdates []time.Time) bool {
	for _, exdate := range exdates {
		if t.Equal(exdate) {
			return true
		}
	}
	return false
}

// Close releases the engine's cache.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}
