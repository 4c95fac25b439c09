package errinfo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timereport/internal/export"
	"timereport/internal/host"
	"timereport/internal/options"
	"timereport/internal/report"
)

func TestFromErrorNil(t *testing.T) {
	assert.Nil(t, FromError(PhaseSubmit, nil))
}

func TestFromErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("decode: %w", report.ErrMalformedMarker), CodeMalformedMarker},
		{report.ErrUnsupportedBodyFormat, CodeUnsupportedBodyFormat},
		{report.ErrUnknownClientType, CodeUnknownClientType},
		{fmt.Errorf("project: %w", report.ErrInvalidRecord), CodeValidationFailed},
		{export.ErrInvalidDateRange, CodeInvalidDateRange},
		{export.ErrNoSurnameSegment, CodeNoSurnameSegment},
		{fmt.Errorf("projets.csv: %w", options.ErrLoad), CodeResourceLoadFailure},
		{errors.New("boom"), CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			info := FromError(PhaseExport, tc.err)
			require.NotNil(t, info)
			assert.Equal(t, tc.code, info.ErrorCode)
			assert.Equal(t, PhaseExport, info.Phase)
			assert.Equal(t, tc.err.Error(), info.Detail)
			assert.NotEmpty(t, info.Message)
		})
	}
}

func TestFromErrorHostCalls(t *testing.T) {
	failed := &host.CallError{Op: "get_body", Err: errors.New("item closed")}
	assert.Equal(t, CodeHostCallFailure, FromError(PhaseSubmit, failed).ErrorCode)

	timedOut := &host.CallError{Op: "get_body", Err: context.DeadlineExceeded}
	assert.Equal(t, CodeHostTimeout, FromError(PhaseSubmit, timedOut).ErrorCode)

	// A host call failing with a known kind is still reported as a host failure.
	wrapped := &host.CallError{Op: "calendar_view", Err: export.ErrNoSurnameSegment}
	assert.Equal(t, CodeHostCallFailure, FromError(PhaseExport, wrapped).ErrorCode)
}
