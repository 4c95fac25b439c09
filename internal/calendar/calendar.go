// Package calendar builds the calendar source selected in the config.
package calendar

import (
	"errors"
	"net/http"
	"time"

	"timereport/internal/config"
	"timereport/internal/host"
	"timereport/internal/ics"
	"timereport/internal/outlook"
)

var ErrNoToken = errors.New("calendar: an access token is required")

// Factory returns the source for one export. token is the bearer token
// delegated by the host; ICS sources ignore it.
type Factory func(token, mailbox string) (host.CalendarSource, error)

// NewFactory binds cfg. client may be nil.
func NewFactory(cfg *config.Config, client *http.Client) Factory {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}
	var fetcher *ics.Fetcher
	if cfg.Calendar.Provider == "ics" {
		fetcher = ics.NewFetcher(cfg.Calendar.CacheDir, client)
	}

	return func(token, mailbox string) (host.CalendarSource, error) {
		if cfg.Calendar.Provider == "ics" {
			feeds := make([]ics.Feed, 0, len(cfg.Calendar.ICS))
			for _, c := range cfg.Calendar.ICS {
				if c.URL == "" {
					continue
				}
				feeds = append(feeds, ics.Feed{ID: c.ID, URL: c.URL})
			}
			return &ics.Source{Fetcher: fetcher, Feeds: feeds, Location: loc}, nil
		}
		if token == "" {
			return nil, ErrNoToken
		}
		return &outlook.Client{
			BaseURL: cfg.Calendar.BaseURL,
			Mailbox: mailbox,
			Token:   token,
			HTTP:    client,
		}, nil
	}
}
