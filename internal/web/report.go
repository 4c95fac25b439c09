package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"timereport/internal/errinfo"
	"timereport/internal/host"
	appLog "timereport/internal/log"
	"timereport/internal/report"
	"timereport/internal/submit"
)

type submitRequest struct {
	ItemID string        `json:"item_id"`
	Host   string        `json:"host"`
	Body   string        `json:"body"`
	Record report.Record `json:"record"`
}

type confirmRequest struct {
	PromptID string `json:"prompt_id"`
	Confirm  bool   `json:"confirm"`
}

// outcomeResponse is the JSON shape of a submit or confirm result. Body is
// only set when the item must be updated with it.
type outcomeResponse struct {
	State    string             `json:"state"`
	Client   string             `json:"client,omitempty"`
	Existing *report.Record     `json:"existing,omitempty"`
	Body     string             `json:"body,omitempty"`
	Written  bool               `json:"written"`
	Alerts   []string           `json:"alerts,omitempty"`
	PromptID string             `json:"prompt_id,omitempty"`
	Message  string             `json:"message,omitempty"`
	Error    *errinfo.ErrorInfo `json:"error,omitempty"`
}

// pendingSubmit is a flow waiting for the answer to its replace prompt.
type pendingSubmit struct {
	itemID  string
	dialogs *submit.RemoteDialogs
	done    <-chan submit.Outcome
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, &errinfo.ErrorInfo{
			ErrorCode: errinfo.CodeValidationFailed,
			Phase:     errinfo.PhaseSubmit,
			Detail:    err.Error(),
			Message:   "Requête invalide.",
		})
		return
	}
	req.ItemID = strings.TrimSpace(req.ItemID)
	if req.ItemID == "" {
		writeError(w, http.StatusBadRequest, &errinfo.ErrorInfo{
			ErrorCode: errinfo.CodeValidationFailed,
			Phase:     errinfo.PhaseSubmit,
			Detail:    "item_id is required",
			Message:   "L'identifiant de l'événement est manquant.",
		})
		return
	}

	release, ok := s.guard.TryAcquire(req.ItemID)
	if !ok {
		writeError(w, http.StatusLocked, &errinfo.ErrorInfo{
			ErrorCode: errinfo.CodeBusy,
			Phase:     errinfo.PhaseSubmit,
			Message:   "Un envoi est déjà en cours pour cet événement.",
		})
		return
	}

	snap := host.NewSnapshot(req.Body)
	dialogs := s.broker.Dialogs(req.ItemID)
	flow := submit.New(req.ItemID, req.Record, submit.Deps{
		Body:           snap,
		Identity:       host.StaticIdentity(req.Host),
		Dialogs:        dialogs,
		Guard:          host.Guard{Timeout: s.cfg.HostTimeout, Observer: s.metrics},
		ConfirmTimeout: s.cfg.ConfirmTimeout,
		Journal:        s.journal,
		Recorder:       s.metrics,
	})

	done := make(chan submit.Outcome, 1)
	finished := make(chan struct{})
	go func() {
		out := flow.Run(s.base)
		release()
		done <- out
		close(finished)
	}()

	select {
	case out := <-done:
		writeOutcome(w, out, dialogs)

	case p := <-dialogs.Prompts():
		s.mu.Lock()
		s.pending[p.ID] = &pendingSubmit{itemID: req.ItemID, dialogs: dialogs, done: done}
		s.mu.Unlock()
		// An unanswered prompt expires with its flow.
		go func() {
			<-finished
			s.mu.Lock()
			delete(s.pending, p.ID)
			s.mu.Unlock()
		}()

		appLog.Debug("web: submit awaiting confirmation", "item", req.ItemID, "prompt", p.ID)
		writeJSON(w, http.StatusOK, outcomeResponse{
			State:    string(submit.StateAwaitingConfirmation),
			Client:   report.ClientFromHost(req.Host).String(),
			Existing: flow.Existing(),
			PromptID: p.ID,
			Message:  p.Message,
		})
	}
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(w, r, &req); err != nil || req.PromptID == "" {
		detail := "prompt_id is required"
		if err != nil {
			detail = err.Error()
		}
		writeError(w, http.StatusBadRequest, &errinfo.ErrorInfo{
			ErrorCode: errinfo.CodeValidationFailed,
			Phase:     errinfo.PhaseConfirm,
			Detail:    detail,
			Message:   "Requête invalide.",
		})
		return
	}

	s.mu.Lock()
	p := s.pending[req.PromptID]
	delete(s.pending, req.PromptID)
	s.mu.Unlock()

	if p == nil || s.broker.Answer(req.PromptID, req.Confirm) != nil {
		writeError(w, http.StatusNotFound, unknownPrompt())
		return
	}

	select {
	case out := <-p.done:
		writeOutcome(w, out, p.dialogs)
	case <-r.Context().Done():
		appLog.Error("web: confirm request ended before the flow", r.Context().Err(), "item", p.itemID)
	}
}

func unknownPrompt() *errinfo.ErrorInfo {
	return &errinfo.ErrorInfo{
		ErrorCode: errinfo.CodeUnknownPrompt,
		Phase:     errinfo.PhaseConfirm,
		Detail:    submit.ErrUnknownPrompt.Error(),
		Message:   "La demande de confirmation a expiré, veuillez recommencer.",
	}
}

func writeOutcome(w http.ResponseWriter, out submit.Outcome, dialogs *submit.RemoteDialogs) {
	resp := outcomeResponse{
		State:    string(out.State),
		Client:   out.Client.String(),
		Existing: out.Existing,
		Written:  out.Written,
		Alerts:   dialogs.Alerts(),
	}
	if out.Written {
		resp.Body = out.Body
	}
	status := http.StatusOK
	if out.Err != nil {
		resp.Error = errinfo.FromError(errinfo.PhaseSubmit, out.Err)
		status = http.StatusUnprocessableEntity
		if errors.Is(out.Err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}
