package web

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"timereport/internal/calendar"
	"timereport/internal/errinfo"
	"timereport/internal/export"
	"timereport/internal/host"
	"timereport/internal/journal"
	appLog "timereport/internal/log"
	"timereport/internal/options"
	"timereport/internal/outlook"
)

type optionsResponse struct {
	options.Options
	Error *errinfo.ErrorInfo `json:"error,omitempty"`
}

// handleOptions returns the project and service lists. A list that failed
// to load is empty and the error is reported next to the lists.
func (s *Server) handleOptions(w http.ResponseWriter, _ *http.Request) {
	if s.opts == nil {
		writeJSON(w, http.StatusOK, optionsResponse{})
		return
	}
	opts, err := s.opts.Options()
	resp := optionsResponse{Options: opts}
	if err != nil {
		resp.Error = errinfo.FromError(errinfo.PhaseOptions, err)
	}
	if resp.Projects == nil {
		resp.Projects = []options.Project{}
	}
	if resp.Services == nil {
		resp.Services = []options.Service{}
	}
	s.metrics.Options("projects", len(resp.Projects))
	s.metrics.Options("services", len(resp.Services))
	writeJSON(w, http.StatusOK, resp)
}

// handleExport streams the export of ?from=yyyy-mm-dd&to=yyyy-mm-dd.
// The bearer token is forwarded to the calendar service. The mailbox is
// taken from ?mailbox=, then the token claims, then the config.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := bearerToken(r)

	mailbox := strings.TrimSpace(q.Get("mailbox"))
	if mailbox == "" && token != "" {
		if m, err := outlook.MailboxFromToken(token); err == nil {
			mailbox = m
		} else {
			appLog.Debug("web: no mailbox in token", "err", err.Error())
		}
	}
	if mailbox == "" {
		mailbox = s.cfg.Export.Mailbox
	}

	format := q.Get("format")
	if format == "" {
		format = s.cfg.Export.Format
	}
	wr, err := export.NewWriter(format, s.cfg.Export.Encoding)
	if err != nil {
		writeError(w, http.StatusBadRequest, &errinfo.ErrorInfo{
			ErrorCode: errinfo.CodeValidationFailed,
			Phase:     errinfo.PhaseExport,
			Detail:    err.Error(),
			Message:   "Format d'export inconnu.",
		})
		return
	}

	// Dates are checked before the source is even built.
	loc, err := s.cfg.Location()
	if err != nil {
		appLog.Error("web: bad timezone, using local time", err, "timezone", s.cfg.Timezone)
		loc = time.Local
	}
	if _, err := export.ParseWindow(q.Get("from"), q.Get("to"), loc); err != nil {
		s.metrics.Export("error")
		info := exportError(err)
		if !errors.Is(err, export.ErrInvalidDateRange) {
			info.ErrorCode = errinfo.CodeValidationFailed
			info.Message = "Les dates doivent être au format AAAA-MM-JJ."
		}
		writeError(w, http.StatusBadRequest, info)
		return
	}

	src, err := s.sources(token, mailbox)
	if err != nil {
		s.metrics.Export("error")
		status := http.StatusInternalServerError
		info := errinfo.FromError(errinfo.PhaseExport, err)
		if errors.Is(err, calendar.ErrNoToken) {
			status = http.StatusUnauthorized
			info.ErrorCode = errinfo.CodeHostCallFailure
			info.Message = "Impossible d'obtenir le jeton d'accès au calendrier."
		}
		writeError(w, status, info)
		return
	}

	c := &export.Collector{
		Source:   src,
		Mailbox:  host.StaticMailbox(mailbox),
		Guard:    host.Guard{Timeout: s.cfg.HostTimeout, Observer: s.metrics},
		Location: loc,
		Writer:   wr,
		Recorder: s.metrics,
	}
	f, err := c.Collect(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, exportStatus(err), exportError(err))
		return
	}

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	w.Header().Set("X-Export-Events", fmt.Sprint(f.Events))
	if f.Truncated {
		w.Header().Set("X-Export-Truncated", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}

func exportError(err error) *errinfo.ErrorInfo {
	return errinfo.FromError(errinfo.PhaseExport, err)
}

func exportStatus(err error) int {
	switch {
	case errors.Is(err, export.ErrInvalidDateRange), errors.Is(err, export.ErrNoSurnameSegment):
		return http.StatusBadRequest
	case errors.Is(err, host.ErrCallFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// bearerToken reads the host token from X-Host-Token, used when basic auth
// occupies the Authorization header, or from a Bearer Authorization.
func bearerToken(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get("X-Host-Token")); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		appLog.Error("web: journal read failed", err)
		writeError(w, http.StatusInternalServerError, errinfo.FromError("journal", err))
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
