package report

import (
	stdhtml "html"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Marker is a marker located in an event body.
type Marker struct {
	// Text is the serialized record with annotation markup removed and
	// entities decoded.
	Text string
	// Start and End delimit the whole marker (sentinel through closing
	// tag) in the scanned body.
	Start int
	End   int
	// Legacy is set for markers written by the first release of the add-in.
	Legacy bool
}

// markerFormat describes one on-body shape of a marker.
type markerFormat struct {
	sentinel     string
	requireBreak bool
	trailer      string
	legacy       bool
}

var markerFormats = []markerFormat{
	{sentinel: Sentinel, requireBreak: true},
	{sentinel: legacySentinel, trailer: legacyTrailer, legacy: true},
}

// FindMarker returns the first marker in body.
func FindMarker(body string) (Marker, bool) {
	ms := Markers(body)
	if len(ms) == 0 {
		return Marker{}, false
	}
	return ms[0], true
}

// Markers returns every marker in body, current format first, each group in
// body order.
func Markers(body string) []Marker {
	var out []Marker
	for _, f := range markerFormats {
		from := 0
		for from < len(body) {
			i := strings.Index(body[from:], f.sentinel)
			if i < 0 {
				break
			}
			start := from + i
			m, ok := f.scan(body, start)
			if ok {
				out = append(out, m)
				from = m.End
				continue
			}
			from = f.skip(body, start)
		}
	}
	return out
}

// maxMarkerLen bounds the bytes read after a sentinel. A marker holds one
// short record, so anything longer is not a marker.
const maxMarkerLen = 64 << 10

// skip returns where the search resumes after a rejected sentinel at start.
// Every sentinel inside one dash run ends at the same place, so the whole
// run is passed at once.
func (f markerFormat) skip(body string, start int) int {
	pos := start + len(f.sentinel)
	if f.sentinel == Sentinel {
		for pos < len(body) && body[pos] == '-' {
			pos++
		}
	}
	return pos
}

// scan checks whether a well-formed marker starts at the sentinel found at
// start and returns it.
func (f markerFormat) scan(body string, start int) (Marker, bool) {
	pos := f.skip(body, start)
	if f.sentinel == Sentinel {
		// A longer dash run still ends with a sentinel.
		start = pos - len(f.sentinel)
	}

	// Only whitespace may separate the sentinel from the first tag.
	window := body[pos:min(len(body), pos+maxMarkerLen)]
	if !strings.HasPrefix(strings.TrimLeftFunc(window, unicode.IsSpace), "<") {
		return Marker{}, false
	}

	z := html.NewTokenizer(strings.NewReader(window))
	sawBreak := false

	// Prefix: optional whitespace and the line break, then the white span.
	for {
		tt := z.Next()
		raw := string(z.Raw())
		switch tt {
		case html.TextToken:
			if strings.TrimSpace(raw) != "" {
				return Marker{}, false
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "br":
				if sawBreak || !f.requireBreak {
					return Marker{}, false
				}
				sawBreak = true
			case "span":
				if f.requireBreak && !sawBreak {
					return Marker{}, false
				}
				if tt == html.SelfClosingTagToken || !hasAttr || !isHiddenSpan(z) {
					return Marker{}, false
				}
				pos += len(raw)
				inner, n, ok := readSpanContent(z)
				if !ok {
					return Marker{}, false
				}
				pos += n
				if f.trailer != "" && strings.HasPrefix(body[pos:], f.trailer) {
					pos += len(f.trailer)
				}
				return Marker{
					Text:   stdhtml.UnescapeString(StripAnnotations(inner)),
					Start:  start,
					End:    pos,
					Legacy: f.legacy,
				}, true
			default:
				return Marker{}, false
			}
		default:
			return Marker{}, false
		}
		pos += len(raw)
	}
}

// readSpanContent consumes tokens up to and including the end tag that
// closes an already opened span. It returns the raw content and the number
// of bytes consumed.
func readSpanContent(z *html.Tokenizer) (string, int, bool) {
	var (
		b        strings.Builder
		consumed int
		depth    int
	)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return "", 0, false
		}
		raw := string(z.Raw())
		consumed += len(raw)

		switch tt {
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == "span" {
				depth++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "span" {
				if depth == 0 {
					return b.String(), consumed, true
				}
				depth--
			}
		}
		b.WriteString(raw)
	}
}

// isHiddenSpan reports whether the current tag carries the white text
// style. Attributes are consumed.
func isHiddenSpan(z *html.Tokenizer) bool {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "style" {
			return isWhiteStyle(string(val))
		}
		if !more {
			return false
		}
	}
}

func isWhiteStyle(style string) bool {
	s := strings.ToLower(strings.Join(strings.Fields(style), ""))
	s = strings.TrimSuffix(s, ";")
	switch s {
	case "color:white", "color:#fff", "color:#ffffff", "color:rgb(255,255,255)":
		return true
	}
	return false
}

// isAnnotationSpan reports whether the current tag is a spelling or grammar
// annotation added by a word-processor based client. Attributes are consumed.
func isAnnotationSpan(z *html.Tokenizer) bool {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "class" {
			switch string(val) {
			case "SpellE", "GramE":
				return true
			}
			return false
		}
		if !more {
			return false
		}
	}
}

// StripAnnotations removes spelling and grammar annotation spans from an
// HTML fragment, keeping their content and leaving every other byte as is.
func StripAnnotations(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var (
		b        strings.Builder
		consumed int
		// stack records, for each open span, whether it is an annotation
		// whose tags are dropped.
		stack []bool
	)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// Whatever the tokenizer could not make sense of is kept verbatim.
			b.WriteString(fragment[consumed:])
			return b.String()
		}
		raw := string(z.Raw())
		consumed += len(raw)

		switch tt {
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) == "span" {
				annotation := hasAttr && isAnnotationSpan(z)
				stack = append(stack, annotation)
				if annotation {
					continue
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "span" && len(stack) > 0 {
				annotation := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if annotation {
					continue
				}
			}
		}
		b.WriteString(raw)
	}
}
