package report

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultServiceType is the service type pre-selected in the task pane.
const DefaultServiceType = "N/A"

// reservedChars are the delimiters of the serialized form. They are not
// escaped by the encoding, so values containing them cannot be decoded
// unambiguously.
const reservedChars = "{};:"

var (
	// ErrInvalidRecord is returned when a record is missing a field or
	// carries a reserved delimiter.
	ErrInvalidRecord = errors.New("report: invalid record")
)

// Record is the time-reporting metadata attached to a calendar event.
type Record struct {
	Project     string `json:"project" yaml:"project" msgpack:"project"`
	ProjectCode string `json:"project_code" yaml:"project_code" msgpack:"project_code"`
	ServiceType string `json:"service_type" yaml:"service_type" msgpack:"service_type"`
	Included    string `json:"included" yaml:"included" msgpack:"included"`
}

// Normalize trims surrounding whitespace and applies the default service type.
func (r Record) Normalize() Record {
	out := Record{
		Project:     strings.TrimSpace(r.Project),
		ProjectCode: strings.TrimSpace(r.ProjectCode),
		ServiceType: strings.TrimSpace(r.ServiceType),
		Included:    strings.TrimSpace(r.Included),
	}
	if out.ServiceType == "" {
		out.ServiceType = DefaultServiceType
	}
	return out
}

// Validate reports whether r can be encoded into a marker that decodes back
// to the same record.
func (r Record) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{keyProject, r.Project},
		{keyProjectCode, r.ProjectCode},
		{keyServiceType, r.ServiceType},
		{keyIncluded, r.Included},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidRecord, f.name)
		}
		if strings.ContainsAny(f.value, reservedChars) {
			return fmt.Errorf("%w: %s contains one of %q", ErrInvalidRecord, f.name, reservedChars)
		}
	}
	return nil
}

// Equal compares two records field by field.
func (r Record) Equal(o Record) bool {
	return r.Project == o.Project &&
		r.ProjectCode == o.ProjectCode &&
		r.ServiceType == o.ServiceType &&
		r.Included == o.Included
}
