package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "timereport/internal/log"
)

// vevent is a VEVENT before recurrence expansion.
type vevent struct {
	Feed Feed
	UID  string

	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string
	ExDates []time.Time
	// RecurrenceID is set on an override of one instance of a recurring
	// event.
	RecurrenceID *time.Time
}

// parseFeed reads the VEVENTs of one payload. Events without a UID are
// logged and skipped.
func parseFeed(feed Feed, body []byte) ([]vevent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var out []vevent
	for _, comp := range cal.Events() {
		ev, err := parseVEvent(feed, comp)
		if err != nil {
			appLog.Error("ics: skipping event", err, "id", feed.ID)
			continue
		}
		out = append(out, ev)
	}
	appLog.Debug("ics: parsed", "id", feed.ID, "events", len(out))
	return out, nil
}

func parseVEvent(feed Feed, ve *ical.VEvent) (vevent, error) {
	out := vevent{Feed: feed}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	out.Start = start
	if end, err := ve.GetEndAt(); err == nil {
		out.End = end
	} else {
		out.End = start
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if vs := p.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
		if !strings.Contains(p.Value, "T") {
			out.AllDay = true
		}
	}
	if out.AllDay && !out.End.After(out.Start) {
		out.End = out.Start.AddDate(0, 0, 1)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := propLocation(p, out.Start.Location())
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}
	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseICSTime(p.Value, propLocation(p, out.Start.Location())); err == nil {
			out.RecurrenceID = &t
		}
	}
	return out, nil
}

// propLocation is the zone named by the TZID parameter of p, or def when
// p has none or names an unknown zone.
func propLocation(p *ical.IANAProperty, def *time.Location) *time.Location {
	tzids := p.ICalParameters[string(ical.ParameterTzid)]
	if len(tzids) == 0 || tzids[0] == "" {
		return def
	}
	loc, err := time.LoadLocation(strings.Trim(tzids[0], `"`))
	if err != nil {
		appLog.Error("ics: unknown TZID", err, "tzid", tzids[0])
		return def
	}
	return loc
}

// parseICSTime reads a DATE or DATE-TIME value without its parameters.
// Values without a trailing Z are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
