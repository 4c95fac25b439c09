package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "timereport/internal/log"
)

const defaultMaxOccurrences = 5000

// occurrence is one concrete instance of a vevent.
type occurrence struct {
	Event vevent
	Start time.Time
	End   time.Time
}

// expand returns the instances of events intersecting [from, to), in the
// order of events. Instances of a recurring event are in time order.
func expand(events []vevent, from, to time.Time, maxPerEvent int) []occurrence {
	if maxPerEvent <= 0 {
		maxPerEvent = defaultMaxOccurrences
	}

	overrides := make(map[string][]vevent)
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		}
	}

	var out []occurrence
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			continue
		}
		if ev.RRule == "" {
			if overlaps(ev.Start, ev.End, from, to) {
				out = append(out, occurrence{Event: ev, Start: ev.Start, End: ev.End})
			}
			continue
		}
		out = append(out, expandRecurring(ev, overrides[ev.UID], from, to, maxPerEvent)...)
	}
	return out
}

func expandRecurring(ev vevent, overrides []vevent, from, to time.Time, max int) []occurrence {
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Error("ics: bad RRULE", err, "uid", ev.UID, "rrule", ev.RRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the duration so instances that started
	// before the window but still run into it are kept.
	dur := ev.End.Sub(ev.Start)
	loc := ev.Start.Location()
	starts := set.Between(from.Add(-dur).In(loc), to.In(loc), true)
	if len(starts) > max {
		appLog.Error("ics: occurrences truncated", errors.New("max occurrences reached"), "uid", ev.UID, "cap", max)
		starts = starts[:max]
	}

	out := make([]occurrence, 0, len(starts))
	for _, s := range starts {
		occ := occurrence{Event: ev, Start: s, End: s.Add(dur)}
		if o, ok := overrideFor(overrides, s); ok {
			occ = occurrence{Event: o, Start: o.Start, End: o.End}
		}
		if overlaps(occ.Start, occ.End, from, to) {
			out = append(out, occ)
		}
	}
	return out
}

// overrideFor finds the override whose RECURRENCE-ID is start.
func overrideFor(overrides []vevent, start time.Time) (vevent, bool) {
	for _, o := range overrides {
		if o.RecurrenceID.Equal(start) {
			return o, true
		}
	}
	return vevent{}, false
}

// overlaps reports whether the event [start, end) intersects the window
// [from, to). An instant event counts when it falls inside the window.
func overlaps(start, end, from, to time.Time) bool {
	if !start.Before(to) {
		return false
	}
	return end.After(from) || (!end.After(start) && !start.Before(from))
}
