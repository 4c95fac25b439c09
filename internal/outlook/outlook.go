// Package outlook reads a mailbox calendar through the Outlook REST
// CalendarView endpoint with a token delegated by the host.
package outlook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"timereport/internal/host"
	appLog "timereport/internal/log"
	"timereport/internal/model"
)

const DefaultBaseURL = "https://outlook.office.com/api/v2.0"

// Client is a host.CalendarSource over one mailbox.
type Client struct {
	BaseURL string
	Mailbox string
	Token   string

	HTTP *http.Client
}

type dateTime struct {
	DateTime string `json:"DateTime"`
	TimeZone string `json:"TimeZone"`
}

type location struct {
	DisplayName string `json:"DisplayName"`
}

type event struct {
	ID          string    `json:"Id"`
	Subject     string    `json:"Subject"`
	BodyPreview string    `json:"BodyPreview"`
	Start       dateTime  `json:"Start"`
	End         dateTime  `json:"End"`
	Location    *location `json:"Location"`
}

type calendarView struct {
	Value    []event `json:"value"`
	NextLink string  `json:"@odata.nextLink"`
}

// Events returns the first page of events intersecting w.
func (c *Client) Events(ctx context.Context, w host.Window) (host.Page, error) {
	if c.Mailbox == "" {
		return host.Page{}, fmt.Errorf("outlook: mailbox is empty")
	}
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	q := url.Values{}
	q.Set("startDateTime", w.Start.UTC().Format(time.RFC3339))
	q.Set("endDateTime", w.End.UTC().Format(time.RFC3339))
	u := fmt.Sprintf("%s/Users/%s/CalendarView?%s", base, url.PathEscape(c.Mailbox), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return host.Page{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json; odata.metadata=none")

	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return host.Page{}, fmt.Errorf("outlook: calendar view: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return host.Page{}, fmt.Errorf("outlook: calendar view: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var view calendarView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return host.Page{}, fmt.Errorf("outlook: decode calendar view: %w", err)
	}

	page := host.Page{NextLink: view.NextLink, Events: make([]model.Event, 0, len(view.Value))}
	for _, ev := range view.Value {
		start, err := parseDateTime(ev.Start)
		if err != nil {
			appLog.Error("outlook: bad start time", err, "event", ev.ID)
		}
		end, err := parseDateTime(ev.End)
		if err != nil {
			appLog.Error("outlook: bad end time", err, "event", ev.ID)
		}
		me := model.Event{
			SourceID:    c.Mailbox,
			UID:         ev.ID,
			Subject:     ev.Subject,
			BodyPreview: ev.BodyPreview,
			Start:       start,
			End:         end,
			StartText:   ev.Start.DateTime,
			EndText:     ev.End.DateTime,
		}
		if ev.Location != nil {
			me.Location = ev.Location.DisplayName
		}
		page.Events = append(page.Events, me)
	}
	appLog.Debug("outlook: calendar view", "mailbox", c.Mailbox, "events", len(page.Events), "more", page.NextLink != "")
	return page, nil
}

// parseDateTime reads the service's date-time, which has no offset, in its
// time zone. Unknown zones fall back to UTC.
func parseDateTime(dt dateTime) (time.Time, error) {
	if dt.DateTime == "" {
		return time.Time{}, nil
	}
	loc := time.UTC
	if dt.TimeZone != "" {
		if l, err := time.LoadLocation(dt.TimeZone); err == nil {
			loc = l
		}
	}
	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339Nano} {
		if t, err := time.ParseInLocation(layout, dt.DateTime, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("outlook: unrecognized date-time %q", dt.DateTime)
}
