package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"timereport/internal/calendar"
	"timereport/internal/config"
	"timereport/internal/errinfo"
	"timereport/internal/journal"
	appLog "timereport/internal/log"
	"timereport/internal/metrics"
	"timereport/internal/options"
	"timereport/internal/submit"
)

// OptionsSource provides the selectable lists and the error of their last
// load.
type OptionsSource interface {
	Options() (options.Options, error)
}

// Deps are the collaborators of the server. Journal and Metrics default to
// an in-memory journal and a fresh registry.
type Deps struct {
	Options OptionsSource
	Sources calendar.Factory
	Journal journal.Journal
	Metrics *metrics.Metrics
}

// Server serves the task pane and its API.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	// base outlives requests: a flow waiting for confirmation keeps running
	// after its submit request returned.
	base context.Context

	opts    OptionsSource
	sources calendar.Factory
	journal journal.Journal
	metrics *metrics.Metrics

	guard  submit.Guard
	broker *submit.Broker

	mu      sync.Mutex
	pending map[string]*pendingSubmit
}

// embeddedStatic contains the task pane page.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server. Flows still running when base is
// cancelled end as failed or cancelled.
func NewServer(base context.Context, cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		base:    base,
		opts:    deps.Options,
		sources: deps.Sources,
		journal: deps.Journal,
		metrics: deps.Metrics,
		broker:  submit.NewBroker(),
		pending: make(map[string]*pendingSubmit),
	}
	if s.journal == nil {
		s.journal = journal.NewMemory(cfg.Journal.MaxEntries)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.sources == nil {
		s.sources = calendar.NewFactory(cfg, nil)
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.cfg.BasicAuth.Enabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="TimeReport", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/options", s.handleOptions)
	s.mux.HandleFunc("POST /api/report/submit", s.handleSubmit)
	s.mux.HandleFunc("POST /api/report/confirm", s.handleConfirm)
	s.mux.HandleFunc("GET /api/export", s.handleExport)
	s.mux.HandleFunc("GET /api/journal", s.handleJournal)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	// Everything else is the embedded task pane.
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// staticFileServer serves the embedded files from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unknown API paths must not fall back to HTML.
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusNotFound, &errinfo.ErrorInfo{ErrorCode: "NOT_FOUND", Message: "not found"})
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errResp struct {
	Error *errinfo.ErrorInfo `json:"error"`
}

func writeError(w http.ResponseWriter, status int, info *errinfo.ErrorInfo) {
	writeJSON(w, status, errResp{Error: info})
}

// decodeJSON reads a JSON request body of at most maxBody bytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// maxBody bounds request bodies; event bodies with inline images can be
// large.
const maxBody = 8 << 20
