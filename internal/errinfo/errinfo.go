package errinfo

import (
	"context"
	"errors"

	"timereport/internal/export"
	"timereport/internal/host"
	"timereport/internal/options"
	"timereport/internal/report"
)

// ErrorInfo is the structured error returned to the task pane.
type ErrorInfo struct {
	ErrorCode string `json:"error_code"`
	Phase     string `json:"phase,omitempty"`
	Detail    string `json:"detail,omitempty"`
	// Message is shown to the user as is.
	Message string `json:"message"`
}

const (
	CodeResourceLoadFailure   = "RESOURCE_LOAD_FAILURE"
	CodeMalformedMarker       = "MALFORMED_MARKER"
	CodeUnsupportedBodyFormat = "UNSUPPORTED_BODY_FORMAT"
	CodeUnknownClientType     = "UNKNOWN_CLIENT_TYPE"
	CodeInvalidDateRange      = "INVALID_DATE_RANGE"
	CodeNoSurnameSegment      = "NO_SURNAME_SEGMENT"
	CodeHostCallFailure       = "HOST_CALL_FAILURE"
	CodeHostTimeout           = "HOST_TIMEOUT"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeBusy                  = "SUBMIT_IN_PROGRESS"
	CodeUnknownPrompt         = "UNKNOWN_PROMPT"
	CodeInternal              = "INTERNAL"
)

const (
	PhaseSubmit  = "submit"
	PhaseConfirm = "confirm"
	PhaseExport  = "export"
	PhaseOptions = "options"
)

// kind ties a sentinel error to its code and user message.
type kind struct {
	target  error
	code    string
	message string
}

var kinds = []kind{
	{report.ErrMalformedMarker, CodeMalformedMarker, "Le reporting présent dans l'événement est illisible."},
	{report.ErrUnsupportedBodyFormat, CodeUnsupportedBodyFormat, "Le format de la description n'est pas pris en charge."},
	{report.ErrUnknownClientType, CodeUnknownClientType, "Ce client Outlook n'est pas pris en charge."},
	{report.ErrInvalidRecord, CodeValidationFailed, "Les éléments du reporting sont incomplets ou contiennent un caractère réservé ({ } ; :)."},
	{export.ErrInvalidDateRange, CodeInvalidDateRange, "La date \"De\" doit être antérieure à \"à\""},
	{export.ErrNoSurnameSegment, CodeNoSurnameSegment, "L'adresse de la boîte aux lettres doit être de la forme prenom.nom@domaine."},
	{options.ErrLoad, CodeResourceLoadFailure, "Impossible de charger les listes de projets et de prestations."},
}

// FromError classifies err.
func FromError(phase string, err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	info := &ErrorInfo{Phase: phase, Detail: err.Error()}

	// Host failures first: a timed out host call also wraps DeadlineExceeded.
	if errors.Is(err, host.ErrCallFailed) {
		info.ErrorCode = CodeHostCallFailure
		info.Message = "Outlook n'a pas répondu correctement, veuillez réessayer."
		if errors.Is(err, context.DeadlineExceeded) {
			info.ErrorCode = CodeHostTimeout
			info.Message = "Outlook n'a pas répondu à temps, veuillez réessayer."
		}
		return info
	}
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			info.ErrorCode = k.code
			info.Message = k.message
			return info
		}
	}
	info.ErrorCode = CodeInternal
	info.Message = "Une erreur inattendue est survenue."
	return info
}
