// Package submit runs the tagging of one calendar item: fetch its body,
// compare the embedded report with the proposed one, then insert, replace
// after confirmation, or leave it alone.
package submit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"timereport/internal/errinfo"
	"timereport/internal/host"
	"timereport/internal/journal"
	appLog "timereport/internal/log"
	"timereport/internal/report"
)

// State of a submit flow. Inserted, NoOpAlert, Replaced, Cancelled and
// Failed are terminal.
type State string

const (
	StateIdle                 State = "idle"
	StateFetching             State = "fetching"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateInserted             State = "inserted"
	StateNoOpAlert            State = "noop_alert"
	StateReplaced             State = "replaced"
	StateCancelled            State = "cancelled"
	StateFailed               State = "failed"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case StateInserted, StateNoOpAlert, StateReplaced, StateCancelled, StateFailed:
		return true
	}
	return false
}

// User-facing messages.
const (
	msgAdded         = "Les éléments ont bien été ajoutés"
	msgReplaced      = "Les éléments ont bien été remplacés"
	msgAlreadyThere  = "Les éléments du reporting sont déjà présents"
	confirmTemplate  = "Un reporting existe déjà avec les éléments suivants :\nProjet: %s\nProjet PAE: %s\nType de prestation : %s\n\nVoulez-vous le remplacer?"
	defaultConfirmTO = 5 * time.Minute
)

// Recorder counts terminal states.
type Recorder interface {
	Submit(state string)
}

// Deps are the collaborators of a flow.
type Deps struct {
	Body     host.BodyAccessor
	Identity host.Identity
	Dialogs  host.Dialogs

	// Guard bounds every host call except the confirmation dialog.
	Guard host.Guard
	// ConfirmTimeout bounds the wait for the user's answer. An unanswered
	// prompt counts as a cancellation.
	ConfirmTimeout time.Duration

	Journal  journal.Journal // optional
	Recorder Recorder        // optional
}

// Outcome is the result of a flow.
type Outcome struct {
	State    State
	Client   report.Client
	Existing *report.Record // record found in the body, if any
	Body     string         // body after the flow
	Written  bool
	Err      error
}

// Flow is one submit of one record for one item. A Flow runs once.
type Flow struct {
	itemID string
	record report.Record
	deps   Deps

	mu       sync.Mutex
	state    State
	existing *report.Record
}

// New prepares a flow for record on the item identified by itemID (used
// for logs and the journal only).
func New(itemID string, record report.Record, deps Deps) *Flow {
	if deps.ConfirmTimeout <= 0 {
		deps.ConfirmTimeout = defaultConfirmTO
	}
	return &Flow{
		itemID: itemID,
		record: record.Normalize(),
		deps:   deps,
		state:  StateIdle,
	}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Existing returns the record found in the body. It is set before the
// flow asks for confirmation.
func (f *Flow) Existing() *report.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing
}

func (f *Flow) transition(to State) {
	f.mu.Lock()
	from := f.state
	f.state = to
	f.mu.Unlock()
	appLog.Debug("submit: transition", "item", f.itemID, "from", from, "to", to)
}

// Run executes the flow. Failures end in StateFailed with Outcome.Err set;
// they are also shown to the user.
func (f *Flow) Run(ctx context.Context) Outcome {
	if f.State() != StateIdle {
		return Outcome{State: StateFailed, Err: errors.New("submit: flow already ran")}
	}
	out := f.run(ctx)
	f.transition(out.State)
	f.finish(ctx, out)
	return out
}

func (f *Flow) run(ctx context.Context) Outcome {
	if err := f.record.Validate(); err != nil {
		return f.fail(ctx, Outcome{}, err)
	}

	f.transition(StateFetching)
	hostName, err := host.Call(ctx, f.deps.Guard, "host_name", f.deps.Identity.HostName)
	if err != nil {
		return f.fail(ctx, Outcome{}, err)
	}
	client := report.ClientFromHost(hostName)

	body, err := host.Call(ctx, f.deps.Guard, "get_body", f.deps.Body.Body)
	if err != nil {
		return f.fail(ctx, Outcome{Client: client}, err)
	}
	out := Outcome{Client: client, Body: body}

	d := report.Inspect(body, f.record)
	if d.Action != report.ActionInsert {
		existing := d.Existing
		out.Existing = &existing
		f.mu.Lock()
		f.existing = &existing
		f.mu.Unlock()
	}

	switch d.Action {
	case report.ActionDuplicate:
		f.alert(ctx, msgAlreadyThere)
		out.State = StateNoOpAlert
		return out

	case report.ActionInsert:
		return f.write(ctx, out, d, StateInserted, msgAdded)

	case report.ActionConflict:
		f.transition(StateAwaitingConfirmation)
		msg := fmt.Sprintf(confirmTemplate, d.Existing.Project, d.Existing.ProjectCode, d.Existing.ServiceType)
		confirmGuard := host.Guard{Timeout: f.deps.ConfirmTimeout, Observer: f.deps.Guard.Observer}
		ok, err := host.Call(ctx, confirmGuard, "confirm", func(ctx context.Context) (bool, error) {
			return f.deps.Dialogs.Confirm(ctx, msg)
		})
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				appLog.Info("submit: confirmation timed out, description not changed", "item", f.itemID)
				out.State = StateCancelled
				return out
			}
			return f.fail(ctx, out, err)
		}
		if !ok {
			appLog.Info("submit: user canceled, description not changed", "item", f.itemID)
			out.State = StateCancelled
			return out
		}
		return f.write(ctx, out, d, StateReplaced, msgReplaced)
	}

	return f.fail(ctx, out, fmt.Errorf("submit: unexpected action %v", d.Action))
}

// write applies d to the body, writes it back and notifies the user.
func (f *Flow) write(ctx context.Context, out Outcome, d report.Decision, done State, msg string) Outcome {
	updated, err := report.Apply(out.Body, d, f.record, out.Client)
	if err != nil {
		return f.fail(ctx, out, err)
	}
	err = host.Do(ctx, f.deps.Guard, "set_body", func(ctx context.Context) error {
		return f.deps.Body.SetBody(ctx, updated)
	})
	if err != nil {
		return f.fail(ctx, out, err)
	}
	appLog.Debug("submit: body updated", "item", f.itemID, "change", report.DescribeChange(out.Body, updated).String())

	out.Body = updated
	out.Written = true
	out.State = done
	f.alert(ctx, msg)
	return out
}

func (f *Flow) fail(ctx context.Context, out Outcome, err error) Outcome {
	appLog.Error("submit: flow failed", err, "item", f.itemID, "client", out.Client)
	out.State = StateFailed
	out.Err = err
	f.alert(ctx, errinfo.FromError(errinfo.PhaseSubmit, err).Message)
	return out
}

// alert shows msg. A failing alert does not change the outcome.
func (f *Flow) alert(ctx context.Context, msg string) {
	err := host.Do(ctx, f.deps.Guard, "alert", func(ctx context.Context) error {
		return f.deps.Dialogs.Alert(ctx, msg)
	})
	if err != nil {
		appLog.Error("submit: alert failed", err, "item", f.itemID)
	}
}

// finish records the terminal state.
func (f *Flow) finish(ctx context.Context, out Outcome) {
	appLog.Info("submit: flow finished", "item", f.itemID, "state", out.State, "client", out.Client)
	if f.deps.Recorder != nil {
		f.deps.Recorder.Submit(string(out.State))
	}
	if f.deps.Journal == nil {
		return
	}
	e := journal.Entry{
		ItemID:   f.itemID,
		State:    string(out.State),
		Client:   out.Client.String(),
		Record:   f.record,
		Previous: out.Existing,
	}
	if out.Err != nil {
		e.Error = out.Err.Error()
	}
	if err := f.deps.Journal.Append(context.WithoutCancel(ctx), e); err != nil {
		appLog.Error("submit: journal append failed", err, "item", f.itemID)
	}
}
