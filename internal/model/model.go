package model

import "time"

// Event is a calendar event as returned by a calendar source for export.
// Events keep the order the source returned them in.
type Event struct {
	SourceID string // calendar source ID (config ICS ID, or the mailbox)
	UID      string // source identifier of the event, if known

	Subject     string
	BodyPreview string
	Location    string // empty when the event has none

	// Start / End as reported by the source, in the source timezone.
	Start time.Time
	End   time.Time

	// StartText / EndText are the date-times exactly as the source sent
	// them, when it sends text. Exports prefer them over Start / End.
	StartText string
	EndText   string
}
