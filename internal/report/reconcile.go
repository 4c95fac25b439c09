package report

import (
	"errors"
	"fmt"

	appLog "timereport/internal/log"
)

// Action is the outcome of comparing a proposed record with the body.
type Action int

const (
	// ActionInsert: the body has no valid marker.
	ActionInsert Action = iota
	// ActionDuplicate: the body already carries the proposed record.
	ActionDuplicate
	// ActionConflict: the body carries a different record; the user must
	// confirm before it is replaced.
	ActionConflict
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionDuplicate:
		return "duplicate"
	case ActionConflict:
		return "conflict"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision is the result of reconciliation. Existing and Marker are set for
// ActionDuplicate and ActionConflict.
type Decision struct {
	Action   Action
	Existing Record
	Marker   Marker
}

// Reconcile compares the record decoded from the body, if any, with the
// proposed one.
func Reconcile(existing *Record, proposed Record) Decision {
	if existing == nil {
		return Decision{Action: ActionInsert}
	}
	if existing.Equal(proposed) {
		return Decision{Action: ActionDuplicate, Existing: *existing}
	}
	return Decision{Action: ActionConflict, Existing: *existing}
}

// Inspect finds the first marker of body that decodes and reconciles it
// against proposed. Markers that fail to decode are logged and skipped.
func Inspect(body string, proposed Record) Decision {
	for _, m := range Markers(body) {
		rec, err := Decode(m.Text)
		if err != nil {
			appLog.Error("report: ignoring malformed marker", err, "start", m.Start, "legacy", m.Legacy)
			continue
		}
		d := Reconcile(&rec, proposed)
		d.Marker = m
		return d
	}
	return Reconcile(nil, proposed)
}

// Apply returns the body to write back for d. An insert uses the strategy
// of client; a conflict replaces the old marker, which the caller only asks
// for once the user has confirmed; a duplicate leaves body unchanged. On
// error body is not modified.
func Apply(body string, d Decision, proposed Record, client Client) (string, error) {
	if err := proposed.Validate(); err != nil {
		return body, err
	}
	switch d.Action {
	case ActionInsert:
		ins, err := client.inserter()
		if err != nil {
			return body, err
		}
		out, err := ins.insert(body, Block(proposed))
		if err != nil {
			return body, err
		}
		return out, nil
	case ActionDuplicate:
		return body, nil
	case ActionConflict:
		return Replace(body, d.Marker, proposed)
	default:
		return body, fmt.Errorf("report: unexpected action %v", d.Action)
	}
}

// errStaleMarker is returned when a marker range does not match the body.
var errStaleMarker = errors.New("report: marker does not belong to body")

// Replace substitutes the marker m of body with the marker for r. Bytes
// outside the marker are kept as they are.
func Replace(body string, m Marker, r Record) (string, error) {
	if m.Start < 0 || m.End > len(body) || m.Start >= m.End {
		return body, errStaleMarker
	}
	return body[:m.Start] + Wrapped(r) + body[m.End:], nil
}
