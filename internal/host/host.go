// Package host describes what the calendar client hosting the add-in
// provides: the body of the item being edited, the client identity, user
// dialogs, the signed-in mailbox and its calendar.
package host

import (
	"context"
	"errors"
	"time"

	"timereport/internal/model"
)

// ErrCallFailed matches every error returned by a failing host call.
var ErrCallFailed = errors.New("host: call failed")

// CallError is the failure of one host operation.
type CallError struct {
	Op  string
	Err error
}

func (e *CallError) Error() string {
	return "host: " + e.Op + ": " + e.Err.Error()
}

// Unwrap exposes both ErrCallFailed and the underlying cause.
func (e *CallError) Unwrap() []error {
	return []error{ErrCallFailed, e.Err}
}

// BodyAccessor reads and writes the HTML body of the current item.
type BodyAccessor interface {
	Body(ctx context.Context) (string, error)
	SetBody(ctx context.Context, body string) error
}

// Identity reports the host name of the running client, e.g. "Outlook" or
// "OutlookWebApp".
type Identity interface {
	HostName(ctx context.Context) (string, error)
}

// Dialogs shows messages to the user. Confirm blocks until the user
// answers.
type Dialogs interface {
	Confirm(ctx context.Context, message string) (bool, error)
	Alert(ctx context.Context, message string) error
}

// Mailbox reports the address of the signed-in user.
type Mailbox interface {
	Address(ctx context.Context) (string, error)
}

// Window is a time range queried from a calendar. End is exclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// Page is one response of a calendar source. NextLink is set when the
// source has more results; callers do not follow it.
type Page struct {
	Events   []model.Event
	NextLink string
}

// CalendarSource lists the events intersecting a window.
type CalendarSource interface {
	Events(ctx context.Context, w Window) (Page, error)
}

// Observer is told about every guarded host call.
type Observer interface {
	ObserveHostCall(op string, d time.Duration, err error)
}

// Guard bounds host calls. A call that does not return within Timeout
// fails with a CallError wrapping context.DeadlineExceeded, even when the
// collaborator ignores its context.
type Guard struct {
	Timeout  time.Duration
	Observer Observer
}

type result[T any] struct {
	v   T
	err error
}

// Call runs fn under g. Every error is returned as a *CallError.
func Call[T any](ctx context.Context, g Guard, op string, fn func(context.Context) (T, error)) (T, error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	start := time.Now()
	ch := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		ch <- result[T]{v: v, err: err}
	}()

	var r result[T]
	select {
	case r = <-ch:
	case <-ctx.Done():
		r.err = ctx.Err()
	}

	if g.Observer != nil {
		g.Observer.ObserveHostCall(op, time.Since(start), r.err)
	}
	if r.err != nil {
		var zero T
		return zero, &CallError{Op: op, Err: r.err}
	}
	return r.v, nil
}

// Do is Call for operations without a result.
func Do(ctx context.Context, g Guard, op string, fn func(context.Context) error) error {
	_, err := Call(ctx, g, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
