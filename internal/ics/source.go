// Package ics is a calendar source over ICS subscriptions, for users whose
// calendar is not reachable through the Outlook REST endpoint.
package ics

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-multierror"

	"timereport/internal/host"
	appLog "timereport/internal/log"
	"timereport/internal/model"
)

// previewRunes is the length of the body preview, as the Outlook service
// truncates it.
const previewRunes = 255

// Source implements host.CalendarSource over several feeds.
type Source struct {
	Fetcher *Fetcher
	Feeds   []Feed
	// Location converts event times. Defaults to time.Local.
	Location       *time.Location
	MaxOccurrences int
}

// Events returns the instances intersecting w, grouped by feed in
// configuration order and sorted by start within a feed. A failing feed is
// logged and skipped; the call fails only when every feed fails.
func (s *Source) Events(ctx context.Context, w host.Window) (host.Page, error) {
	if len(s.Feeds) == 0 {
		return host.Page{}, errors.New("ics: no feed configured")
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}

	payloads, fetchErr := s.Fetcher.fetchAll(ctx, s.Feeds)
	errs := multierror.Append(nil, fetchErr)

	var page host.Page
	ok := 0
	for _, p := range payloads {
		events, err := parseFeed(p.Feed, p.Body)
		if err != nil {
			appLog.Error("ics: parse failed", err, "id", p.Feed.ID)
			errs = multierror.Append(errs, err)
			continue
		}
		ok++

		occs := expand(events, w.Start, w.End, s.MaxOccurrences)
		sort.SliceStable(occs, func(i, j int) bool { return occs[i].Start.Before(occs[j].Start) })
		for _, o := range occs {
			page.Events = append(page.Events, model.Event{
				SourceID:    p.Feed.ID,
				UID:         o.Event.UID,
				Subject:     o.Event.Summary,
				BodyPreview: Preview(o.Event.Description),
				Location:    o.Event.Location,
				Start:       o.Start.In(loc),
				End:         o.End.In(loc),
			})
		}
	}

	if ok == 0 {
		return host.Page{}, errs.ErrorOrNil()
	}
	if err := errs.ErrorOrNil(); err != nil {
		appLog.Error("ics: some feeds were skipped", err, "used", ok, "feeds", len(s.Feeds))
	}
	return page, nil
}

// Preview reduces an event description to at most 255 runes of plain text
// with collapsed whitespace. HTML descriptions are reduced to their text.
func Preview(description string) string {
	text := description
	if strings.Contains(text, "<") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			doc.Find("script, style").Remove()
			text = doc.Text()
		}
	}
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewRunes])
}
