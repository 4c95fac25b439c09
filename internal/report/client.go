package report

import (
	"errors"
	"strings"
)

var (
	// ErrUnknownClientType is returned when inserting for a host that is
	// neither the desktop nor the web client.
	ErrUnknownClientType = errors.New("report: unknown client type")
	// ErrUnsupportedBodyFormat is returned when no insertion point exists
	// in a desktop body.
	ErrUnsupportedBodyFormat = errors.New("report: unsupported body format")
)

// Client identifies the calendar client hosting the add-in.
type Client int

const (
	UnknownClient Client = iota
	DesktopClient
	WebClient
)

func (c Client) String() string {
	switch c {
	case DesktopClient:
		return "desktop"
	case WebClient:
		return "web"
	default:
		return "unknown"
	}
}

// ClientFromHost maps the host name reported by the add-in runtime
// (mailbox diagnostics) to a Client.
func ClientFromHost(hostName string) Client {
	switch hostName {
	case "Outlook":
		return DesktopClient
	case "OutlookWebApp", "newOutlookWindows":
		// The new Windows client edits bodies the same way the web client does.
		return WebClient
	default:
		return UnknownClient
	}
}

// inserter places a marker block into a body that has none.
type inserter interface {
	insert(body, block string) (string, error)
}

func (c Client) inserter() (inserter, error) {
	switch c {
	case DesktopClient:
		return desktopInserter{}, nil
	case WebClient:
		return webInserter{}, nil
	default:
		return nil, ErrUnknownClientType
	}
}

// Desktop bodies are full HTML documents generated by Word.
const (
	desktopClosing   = "</div></body></html>"
	convertedComment = "<!-- Converted from text/plain format -->"
)

type desktopInserter struct{}

// insert places block before the last closing sequence of the document.
// Bodies converted from plain text have no such sequence; there the block
// goes right before the </body> that follows the conversion comment.
func (desktopInserter) insert(body, block string) (string, error) {
	if i := strings.LastIndex(body, desktopClosing); i >= 0 {
		return body[:i] + block + body[i:], nil
	}
	if i, ok := convertedInsertionPoint(body); ok {
		return body[:i] + block + body[i:], nil
	}
	return "", ErrUnsupportedBodyFormat
}

// convertedInsertionPoint finds <body>, then the conversion comment, then
// the next </body>, ignoring ASCII case, and returns the offset of that
// </body>.
func convertedInsertionPoint(body string) (int, bool) {
	open := indexFold(body, "<body", 0)
	for open >= 0 {
		next := open + len("<body")
		if next < len(body) && (body[next] == '>' || isSpace(body[next])) {
			break
		}
		open = indexFold(body, "<body", next)
	}
	if open < 0 {
		return 0, false
	}
	tagEnd := strings.IndexByte(body[open:], '>')
	if tagEnd < 0 {
		return 0, false
	}
	comment := indexFold(body, convertedComment, open+tagEnd+1)
	if comment < 0 {
		return 0, false
	}
	closing := indexFold(body, "</body>", comment+len(convertedComment))
	if closing < 0 {
		return 0, false
	}
	return closing, true
}

type webInserter struct{}

func (webInserter) insert(body, block string) (string, error) {
	return body + block, nil
}

// indexFold is strings.Index with ASCII case folding. Offsets stay valid in
// s because no byte is rewritten.
func indexFold(s, substr string, from int) int {
	n := len(substr)
	for i := from; i+n <= len(s); i++ {
		if equalFoldASCII(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}

func equalFoldASCII(a, b string) bool {
	for i := 0; i < len(a); i++ {
		if lowerASCII(a[i]) != lowerASCII(b[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
