// Package export collects the calendar events of a date range and writes
// them to a file for the time reporting tools.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"timereport/internal/host"
	appLog "timereport/internal/log"
	"timereport/internal/model"
)

var (
	ErrInvalidDateRange = errors.New("export: from date is after to date")
	ErrNoSurnameSegment = errors.New("export: mailbox has no surname segment")
)

const (
	dateLayout     = "2006-01-02"
	filenameLayout = "02012006"
)

// Recorder counts export results.
type Recorder interface {
	Export(result string)
}

// Collector pulls one page of events from Source and serializes it.
type Collector struct {
	Source  host.CalendarSource
	Mailbox host.Mailbox
	Guard   host.Guard

	// Location interprets the requested dates. Defaults to time.Local.
	Location *time.Location
	Writer   Writer

	Recorder Recorder // optional
}

// File is a collected export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	Events      int
	// Truncated is set when the source had more pages than the one used.
	Truncated bool
}

// Collect exports the events intersecting the days from..to (yyyy-mm-dd,
// both inclusive). Dates are checked before any call to the source.
func (c *Collector) Collect(ctx context.Context, from, to string) (*File, error) {
	f, err := c.collect(ctx, from, to)
	result := "ok"
	if err != nil {
		result = "error"
		appLog.Error("export: collect failed", err, "from", from, "to", to)
	} else {
		appLog.Info("export: collected", "file", f.Name, "events", f.Events, "truncated", f.Truncated)
	}
	if c.Recorder != nil {
		c.Recorder.Export(result)
	}
	return f, err
}

func (c *Collector) collect(ctx context.Context, from, to string) (*File, error) {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	w, err := ParseWindow(from, to, loc)
	if err != nil {
		return nil, err
	}

	address, err := host.Call(ctx, c.Guard, "mailbox_address", c.Mailbox.Address)
	if err != nil {
		return nil, err
	}
	user, surname, err := SplitMailbox(address)
	if err != nil {
		return nil, err
	}

	page, err := host.Call(ctx, c.Guard, "calendar_view", func(ctx context.Context) (host.Page, error) {
		return c.Source.Events(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	if page.NextLink != "" {
		appLog.Info("export: source has more results, only the first page is exported", "next", page.NextLink)
	}

	wr := c.Writer
	if wr == nil {
		wr = CSV{}
	}
	data, err := wr.Write(page.Events)
	if err != nil {
		return nil, fmt.Errorf("export: write %s: %w", wr.Ext(), err)
	}

	return &File{
		Name:        Filename(user, surname, w, wr.Ext()),
		ContentType: wr.ContentType(),
		Data:        data,
		Events:      len(page.Events),
		Truncated:   page.NextLink != "",
	}, nil
}

// ParseWindow turns two yyyy-mm-dd dates into the window from the start of
// the first day to the start of the day after the second.
func ParseWindow(from, to string, loc *time.Location) (host.Window, error) {
	start, err := time.ParseInLocation(dateLayout, strings.TrimSpace(from), loc)
	if err != nil {
		return host.Window{}, fmt.Errorf("export: from date %q: %w", from, err)
	}
	end, err := time.ParseInLocation(dateLayout, strings.TrimSpace(to), loc)
	if err != nil {
		return host.Window{}, fmt.Errorf("export: to date %q: %w", to, err)
	}
	if start.After(end) {
		return host.Window{}, fmt.Errorf("%w: %s > %s", ErrInvalidDateRange, from, to)
	}
	return host.Window{Start: start, End: end.AddDate(0, 0, 1)}, nil
}

// SplitMailbox returns the first two dot-separated segments of the local
// part of address.
func SplitMailbox(address string) (user, surname string, err error) {
	local, _, _ := strings.Cut(strings.TrimSpace(address), "@")
	parts := strings.Split(local, ".")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrNoSurnameSegment, address)
	}
	return parts[0], parts[1], nil
}

// Filename builds TR_<user>_<surname>_<ddmmyyyy>_<ddmmyyyy>.<ext> for w.
func Filename(user, surname string, w host.Window, ext string) string {
	last := w.End.AddDate(0, 0, -1)
	return fmt.Sprintf("TR_%s_%s_%s_%s.%s",
		user, surname, w.Start.Format(filenameLayout), last.Format(filenameLayout), ext)
}

// row is the exported fields of ev, in column order.
func row(ev model.Event) []string {
	return []string{
		formatTime(ev.StartText, ev.Start),
		formatTime(ev.EndText, ev.End),
		ev.Subject,
		ev.BodyPreview,
		ev.Location,
	}
}

func formatTime(text string, t time.Time) string {
	if text != "" {
		return text
	}
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02T15:04:05")
}
