package report

import (
	"errors"
	"fmt"
	"html"
	"strings"
)

// Field keys of the serialized form, in encoding order.
const (
	keyProject     = "projet"
	keyProjectCode = "projet_pae"
	keyServiceType = "prestation"
	keyIncluded    = "inclu"

	// keyIncludedLegacy is the last key written by the first release of the
	// add-in, whose markers are still found in older events.
	keyIncludedLegacy = "include"
)

// Sentinel is the line that precedes every marker.
const Sentinel = "-----------------------------------------------------"

// legacySentinel and legacyTrailer frame markers written by the first release.
const (
	legacySentinel = "---PAS EFFACER---"
	legacyTrailer  = "--------"
)

const (
	spanOpen  = `<span style="color:white;">`
	spanClose = `</span>`
)

// ErrMalformedMarker is returned by Decode when a field is missing.
var ErrMalformedMarker = errors.New("report: malformed marker")

// Encode serializes r into its canonical marker text. The output only
// depends on the field values, so encoding the same record twice yields
// identical bytes.
func Encode(r Record) string {
	var b strings.Builder
	b.WriteString("{")
	b.WriteString(keyProject + ":" + r.Project)
	b.WriteString(";" + keyProjectCode + ":" + r.ProjectCode)
	b.WriteString(";" + keyServiceType + ":" + r.ServiceType)
	b.WriteString(";" + keyIncluded + ":" + r.Included)
	b.WriteString("}")
	return b.String()
}

// Wrapped returns the marker as it is embedded in an event body: the
// sentinel line followed by the serialized record in a white span.
func Wrapped(r Record) string {
	return Sentinel + "<br>" + spanOpen + html.EscapeString(Encode(r)) + spanClose
}

// Block returns the wrapped marker inside its own div, the unit inserted
// into a body that has no marker yet.
func Block(r Record) string {
	return "<div>" + Wrapped(r) + "</div>"
}

// Decode parses marker text produced by Encode. Every field must be present
// in order; values may be empty.
func Decode(text string) (Record, error) {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "{") {
		return Record{}, fmt.Errorf("%w: missing opening brace", ErrMalformedMarker)
	}
	s = s[1:]

	if !strings.HasPrefix(s, keyProject+":") {
		return Record{}, fmt.Errorf("%w: missing %s", ErrMalformedMarker, keyProject)
	}
	s = s[len(keyProject)+1:]

	project, s, ok := cutField(s, ";"+keyProjectCode+":")
	if !ok {
		return Record{}, fmt.Errorf("%w: missing %s", ErrMalformedMarker, keyProjectCode)
	}
	code, s, ok := cutField(s, ";"+keyServiceType+":")
	if !ok {
		return Record{}, fmt.Errorf("%w: missing %s", ErrMalformedMarker, keyServiceType)
	}
	service, s, ok := cutField(s, ";"+keyIncluded)
	if !ok {
		return Record{}, fmt.Errorf("%w: missing %s", ErrMalformedMarker, keyIncluded)
	}
	switch {
	case strings.HasPrefix(s, ":"):
		s = s[1:]
	case strings.HasPrefix(s, keyIncludedLegacy[len(keyIncluded):]+":"):
		s = s[len(keyIncludedLegacy)-len(keyIncluded)+1:]
	default:
		return Record{}, fmt.Errorf("%w: missing %s", ErrMalformedMarker, keyIncluded)
	}
	included, rest, ok := cutField(s, "}")
	if !ok {
		return Record{}, fmt.Errorf("%w: missing closing brace", ErrMalformedMarker)
	}
	if strings.TrimSpace(rest) != "" {
		return Record{}, fmt.Errorf("%w: trailing text after closing brace", ErrMalformedMarker)
	}

	return Record{
		Project:     project,
		ProjectCode: code,
		ServiceType: service,
		Included:    included,
	}, nil
}

// cutField returns the text before the first sep and the text after it.
func cutField(s, sep string) (value, rest string, ok bool) {
	i := strings.Index(s, sep)
	if i < 0 {
		return "", s, false
	}
	return s[:i], s[i+len(sep):], true
}
